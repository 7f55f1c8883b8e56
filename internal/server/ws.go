package server

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"liberator/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The HTTP surface is CORS-open; the websocket follows suit.
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsEvent struct {
	Type    string `json:"type"` // progress | result | error
	Pct     int    `json:"pct,omitempty"`
	Message string `json:"message,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// HandleLiberateWS runs the pipeline over a websocket: the client sends one
// liberateRequest, the server streams progress events and closes with a
// result or error frame.
func (h *Handler) HandleLiberateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var req liberateRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(wsEvent{Type: "error", Message: "invalid request: " + err.Error()})
		return
	}
	in, err := inputFromRequest(req)
	if err != nil {
		_ = conn.WriteJSON(wsEvent{Type: "error", Message: err.Error()})
		return
	}

	// Writes are serialized: progress callbacks fire from the pipeline
	// goroutine while read errors may surface concurrently.
	var mu sync.Mutex
	send := func(ev wsEvent) {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.WriteJSON(ev)
	}

	res, err := h.pipeline.Run(r.Context(), in, func(pct int, msg string) {
		send(wsEvent{Type: "progress", Pct: pct, Message: msg})
	})
	if err != nil {
		ev := wsEvent{Type: "error", Message: err.Error()}
		var se *pipeline.StageError
		if errors.As(err, &se) {
			ev.Stage = string(se.Stage)
			ev.Message = se.Err.Error()
		}
		send(ev)
		return
	}
	send(wsEvent{Type: "result", Result: res})
}
