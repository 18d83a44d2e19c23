package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mtlprog/trustview/internal/broadcast"
	"github.com/mtlprog/trustview/internal/domain"
	"github.com/mtlprog/trustview/internal/projection"
)

// ViewSource provides the current projection view.
type ViewSource interface {
	View() projection.View
}

// Handler provides HTTP endpoints over the live projection.
type Handler struct {
	views  ViewSource
	events *broadcast.Broadcaster[projection.View]
}

// NewHandler creates a new API handler. events may be nil.
func NewHandler(views ViewSource, events *broadcast.Broadcaster[projection.View]) *Handler {
	return &Handler{views: views, events: events}
}

// GetProjection handles GET /api/v1/projection.
func (h *Handler) GetProjection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.views.View())
}

// ListLines handles GET /api/v1/lines.
func (h *Handler) ListLines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.views.View().Lines)
}

// GetLine handles GET /api/v1/lines/{key}, where key is counterparty+currency.
func (h *Handler) GetLine(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	line, ok := h.views.View().Lines[key]
	if !ok {
		writeError(w, http.StatusNotFound, "trust line not found")
		return
	}
	writeJSON(w, http.StatusOK, line)
}

// ListHistory handles GET /api/v1/history. Records are newest first; limit
// keeps only the newest N.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	history := h.views.View().History
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		history = history[:min(n, len(history))]
	}
	if history == nil {
		history = []domain.Record{}
	}
	writeJSON(w, http.StatusOK, history)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
