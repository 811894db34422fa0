package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	eventStatus = "status"
	eventDone   = "done"
)

// handleStreamEvents streams workflow snapshots as server-sent events. Each
// state change is a "status" event carrying the JSON snapshot; a final
// "done" event follows once the workflow is terminal.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ch, unsub, err := s.engine.Subscribe(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, "subscribe workflow", err)
		return
	}
	defer unsub()
	defer trackStream(transportSSE)()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("set write deadline for SSE", "error", err)
	}

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				_ = writeSSEEvent(w, eventDone, id)
				if canFlush {
					flusher.Flush()
				}
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				s.logger.Error("encode workflow snapshot", "workflow_id", id, "error", err)
				return
			}
			if err := writeSSEEvent(w, eventStatus, string(data)); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
// data must not contain newlines.
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
