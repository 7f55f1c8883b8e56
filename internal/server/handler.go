package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"liberator/internal/archivestore"
	"liberator/internal/ledger"
	"liberator/internal/pipeline"
)

const maxUploadSize = 64 << 20

// Handler exposes the pipeline over HTTP.
type Handler struct {
	pipeline *pipeline.Service
	archives archivestore.Store
	records  ledger.Store
	logger   *slog.Logger
}

func NewHandler(svc *pipeline.Service, archives archivestore.Store, records ledger.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pipeline: svc, archives: archives, records: records, logger: logger}
}

// NewMux wires all routes behind CORS.
func NewMux(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", h.HandleAnalyze)
	mux.HandleFunc("POST /api/liberate", h.HandleLiberate)
	mux.HandleFunc("GET /api/archives/{ref...}", h.HandleArchiveDownload)
	mux.HandleFunc("GET /api/history", h.HandleHistoryList)
	mux.HandleFunc("DELETE /api/history/{runID}", h.HandleHistoryDelete)
	mux.HandleFunc("GET /ws/liberate", h.HandleLiberateWS)
	return CORS(mux)
}

// liberateRequest is the JSON body accepted by the analyze/liberate
// endpoints. An uploaded archive travels base64-encoded in ArchiveData;
// raw zip/gzip bodies are accepted as well.
type liberateRequest struct {
	RepoURL     string `json:"repo_url"`
	Branch      string `json:"branch"`
	ProjectName string `json:"project_name"`
	OwnerID     string `json:"owner_id"`
	ArchiveData string `json:"archive_data"`
	SkipAI      bool   `json:"skip_ai"`
}

type errorResponse struct {
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodeInput(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}
	analysis, err := h.pipeline.Analyze(r.Context(), in, nil)
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *Handler) HandleLiberate(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodeInput(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}
	res, err := h.pipeline.Run(r.Context(), in, nil)
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleArchiveDownload(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.PathValue("ref"))
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "archive ref required"})
		return
	}
	data, err := h.archives.Get(r.Context(), ref)
	if errors.Is(err, archivestore.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "archive not found"})
		return
	}
	if err != nil {
		h.logger.Error("archive fetch failed", "ref", ref, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "archive fetch failed"})
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="liberated.zip"`)
	_, _ = w.Write(data)
}

func (h *Handler) HandleHistoryList(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "owner is required"})
		return
	}
	recs, err := h.records.List(r.Context(), owner)
	if err != nil {
		h.logger.Error("history list failed", "owner", owner, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "history unavailable"})
		return
	}
	if recs == nil {
		recs = []ledger.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) HandleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("runID"))
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if runID == "" || owner == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "run id and owner are required"})
		return
	}
	switch err := h.records.Delete(r.Context(), runID, owner); {
	case errors.Is(err, ledger.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "record not found"})
	case errors.Is(err, ledger.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Message: "record owned by another user"})
	case err != nil:
		h.logger.Error("history delete failed", "run_id", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "delete failed"})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeInput accepts either a JSON request body or a raw zip/tar.gz upload
// with metadata in query parameters.
func (h *Handler) decodeInput(r *http.Request) (pipeline.Input, error) {
	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "application/zip") || strings.Contains(ct, "application/gzip") ||
		strings.Contains(ct, "application/octet-stream") {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize))
		if err != nil {
			return pipeline.Input{}, err
		}
		q := r.URL.Query()
		return pipeline.Input{
			ArchiveData: data,
			ProjectName: strings.TrimSpace(q.Get("project")),
			OwnerID:     strings.TrimSpace(q.Get("owner")),
			SkipAI:      q.Get("skip_ai") == "true",
		}, nil
	}

	var req liberateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req); err != nil {
		return pipeline.Input{}, err
	}
	return inputFromRequest(req)
}

func inputFromRequest(req liberateRequest) (pipeline.Input, error) {
	in := pipeline.Input{
		RepoURL:     strings.TrimSpace(req.RepoURL),
		Branch:      strings.TrimSpace(req.Branch),
		ProjectName: strings.TrimSpace(req.ProjectName),
		OwnerID:     strings.TrimSpace(req.OwnerID),
		SkipAI:      req.SkipAI,
	}
	if req.ArchiveData != "" {
		data, err := base64.StdEncoding.DecodeString(req.ArchiveData)
		if err != nil {
			return pipeline.Input{}, err
		}
		in.ArchiveData = data
	}
	return in, nil
}

func (h *Handler) writeRunError(w http.ResponseWriter, err error) {
	var se *pipeline.StageError
	if errors.As(err, &se) {
		status := http.StatusBadGateway
		if se.Stage == pipeline.StageRetrieve {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Stage: string(se.Stage), Message: se.Err.Error()})
		return
	}
	h.logger.Error("run failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
