package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mtlprog/trustview/internal/projection"
)

const keepAliveInterval = 30 * time.Second

// StreamEvents handles GET /api/v1/events as a server-sent event stream.
// The current view is sent first, then one "view" event per re-render.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		slog.Debug("api: write deadline not adjustable", "error", err)
	}

	ch := h.events.Subscribe()
	defer h.events.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, rc, h.views.View()); err != nil {
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, rc, v); err != nil {
				slog.Debug("api: event stream closed", "error", err)
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, v projection.View) error {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("api: failed to marshal view event", "error", err)
		return err
	}
	if _, err := fmt.Fprintf(w, "event: view\ndata: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
