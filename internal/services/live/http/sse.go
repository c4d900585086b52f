// Package http exposes the live event stream over SSE
package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mural/internal/modkit/httpkit"
	perr "mural/internal/platform/errors"
	phttp "mural/internal/platform/net/http"
	bdomain "mural/internal/services/board/domain"
	boardhttp "mural/internal/services/board/http"
	"mural/internal/services/live/domain"
	"mural/internal/services/live/service"
)

// heartbeatEvery keeps idle connections alive through proxies
const heartbeatEvery = 25 * time.Second

// Register mounts the live routes
func Register(r httpkit.Router, hub *service.Hub) {
	h := &handlers{hub: hub}
	r.Get("/events", h.stream)
}

type handlers struct {
	hub *service.Hub
}

// stream is the SSE endpoint: snapshot immediately, then every board event
func (h *handlers) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		phttp.RespondError(w, r, perr.Internalf("streaming unsupported"))
		return
	}

	s, err := h.hub.Attach(r.Context())
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	defer h.hub.Detach(s)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-s.Events():
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent serializes one event in SSE framing
func writeEvent(w http.ResponseWriter, ev domain.Event) error {
	body, err := json.Marshal(wireData(ev))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Kind, body)
	return err
}

// wireData maps hub payloads to the board wire shapes
func wireData(ev domain.Event) any {
	switch d := ev.Data.(type) {
	case []bdomain.Note:
		views := make([]boardhttp.NoteView, 0, len(d))
		for _, n := range d {
			views = append(views, boardhttp.ViewOf(n))
		}
		return views
	case bdomain.Note:
		return boardhttp.ViewOf(d)
	case bdomain.Response:
		return boardhttp.ResponseViewOf(d)
	case string:
		return map[string]string{"id": d}
	default:
		return d
	}
}
