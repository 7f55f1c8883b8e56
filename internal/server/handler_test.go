package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"liberator/internal/archivestore"
	"liberator/internal/ledger"
	"liberator/internal/llmclient"
	"liberator/internal/pipeline"
	"liberator/internal/signature"
)

func testCatalog() signature.Catalog {
	return signature.Catalog{
		Weights:            signature.Weights{Critical: 15, Warning: 5, Info: 1},
		MaxRecommendations: 5,
		Platforms: []signature.Platform{{
			Name:           "acme",
			DeniedPackages: []string{"@acme/sdk"},
			ImportPrefixes: []string{"@acme/"},
			ImportRewrites: map[string]string{"@acme/sdk": "./lib"},
			CDNHosts:       []string{"cdn.acme.example"},
			RemovableFiles: []string{"acme.config.json"},
		}},
	}
}

func projectArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"package.json": `{"name":"demo","dependencies":{"@acme/sdk":"^1.0.0"}}`,
		"src/api.js":   "import { createClient } from \"@acme/sdk\";\n",
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type testEnv struct {
	srv      *httptest.Server
	archives *archivestore.MemoryStore
	records  *ledger.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	archives := archivestore.NewMemoryStore()
	records := ledger.NewMemoryStore()
	svc := pipeline.NewService(pipeline.ServiceConfig{
		Catalog:  testCatalog(),
		LLM:      &llmclient.FakeClient{},
		Archives: archives,
		Records:  records,
		AIDelay:  time.Millisecond,
	})
	h := NewHandler(svc, archives, records, nil)
	srv := httptest.NewServer(NewMux(h))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, archives: archives, records: records}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func TestHandleAnalyze(t *testing.T) {
	env := newTestEnv(t)
	resp := postJSON(t, env.srv.URL+"/api/analyze", map[string]any{
		"archive_data": base64.StdEncoding.EncodeToString(projectArchive(t)),
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var analysis struct {
		Score            int    `json:"score"`
		DetectedPlatform string `json:"detected_platform"`
		Issues           []any  `json:"issues"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&analysis))
	require.Equal(t, "acme", analysis.DetectedPlatform)
	require.Less(t, analysis.Score, 100)
	require.NotEmpty(t, analysis.Issues)
}

func TestHandleLiberateAndDownload(t *testing.T) {
	env := newTestEnv(t)
	resp := postJSON(t, env.srv.URL+"/api/liberate", map[string]any{
		"archive_data": base64.StdEncoding.EncodeToString(projectArchive(t)),
		"project_name": "demo",
		"owner_id":     "alice",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res pipeline.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.NotEmpty(t, res.RunID)
	require.NotEmpty(t, res.ArchiveRef)
	require.Greater(t, res.ScoreAfter, res.Analysis.Score)

	// The returned reference resolves through the download endpoint.
	dl, err := http.Get(env.srv.URL + "/api/archives/" + res.ArchiveRef)
	require.NoError(t, err)
	defer dl.Body.Close()
	require.Equal(t, http.StatusOK, dl.StatusCode)
	require.Equal(t, "application/zip", dl.Header.Get("Content-Type"))
}

func TestHandleLiberateRawUpload(t *testing.T) {
	env := newTestEnv(t)
	url := env.srv.URL + "/api/liberate?project=demo&owner=alice&skip_ai=true"
	resp, err := http.Post(url, "application/zip", bytes.NewReader(projectArchive(t)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res pipeline.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Zero(t, res.Stats.FilesChangedAI)

	recs, err := env.records.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "demo", recs[0].ProjectName)
}

func TestHandleLiberateWithoutSource(t *testing.T) {
	env := newTestEnv(t)
	resp := postJSON(t, env.srv.URL+"/api/liberate", map[string]any{})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var e struct {
		Stage   string `json:"stage"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	require.Equal(t, "retrieve", e.Stage)
}

func TestHandleArchiveDownloadMissing(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.srv.URL + "/api/archives/archives/none.zip")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleHistoryListAndDelete(t *testing.T) {
	env := newTestEnv(t)

	// Seed one run via the API.
	resp := postJSON(t, env.srv.URL+"/api/liberate", map[string]any{
		"archive_data": base64.StdEncoding.EncodeToString(projectArchive(t)),
		"project_name": "demo",
		"owner_id":     "alice",
	})
	var res pipeline.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	resp.Body.Close()

	list, err := http.Get(env.srv.URL + "/api/history?owner=alice")
	require.NoError(t, err)
	defer list.Body.Close()
	require.Equal(t, http.StatusOK, list.StatusCode)
	var recs []ledger.Record
	require.NoError(t, json.NewDecoder(list.Body).Decode(&recs))
	require.Len(t, recs, 1)

	// Deleting as another owner is forbidden.
	req, _ := http.NewRequest(http.MethodDelete,
		env.srv.URL+"/api/history/"+res.RunID+"?owner=bob", nil)
	forbidden, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	forbidden.Body.Close()
	require.Equal(t, http.StatusForbidden, forbidden.StatusCode)

	// The owner can delete.
	req, _ = http.NewRequest(http.MethodDelete,
		env.srv.URL+"/api/history/"+res.RunID+"?owner=alice", nil)
	ok, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	ok.Body.Close()
	require.Equal(t, http.StatusNoContent, ok.StatusCode)

	// Gone now.
	req, _ = http.NewRequest(http.MethodDelete,
		env.srv.URL+"/api/history/"+res.RunID+"?owner=alice", nil)
	gone, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	gone.Body.Close()
	require.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestHandleHistoryRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.srv.URL + "/api/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleHistoryEmptyListIsJSONArray(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.srv.URL + "/api/history?owner=nobody")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := new(bytes.Buffer)
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "[]", strings.TrimSpace(body.String()))
}

func TestCORSHeaders(t *testing.T) {
	env := newTestEnv(t)
	req, _ := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/history", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	require.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Methods"))
}
