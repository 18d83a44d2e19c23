package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mtlprog/trustview/internal/archive"
)

// Capturer stores the current view on demand.
type Capturer interface {
	CaptureOnce(ctx context.Context) (bool, error)
}

// CaptureHandler provides endpoints over archived captures of the tracked account.
type CaptureHandler struct {
	views    ViewSource
	captures archive.Repository
	capturer Capturer
}

// NewCaptureHandler creates a capture handler. capturer may be nil.
func NewCaptureHandler(views ViewSource, captures archive.Repository, capturer Capturer) *CaptureHandler {
	return &CaptureHandler{views: views, captures: captures, capturer: capturer}
}

func (h *CaptureHandler) address(w http.ResponseWriter) (string, bool) {
	address := h.views.View().Address
	if address == "" {
		writeError(w, http.StatusServiceUnavailable, "no account loaded")
		return "", false
	}
	return address, true
}

// GetLatest handles GET /api/v1/captures/latest.
func (h *CaptureHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	address, ok := h.address(w)
	if !ok {
		return
	}
	c, err := h.captures.Latest(r.Context(), address)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no captures found")
			return
		}
		slog.Error("failed to get latest capture", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// List handles GET /api/v1/captures.
func (h *CaptureHandler) List(w http.ResponseWriter, r *http.Request) {
	const maxLimit = 365
	limit := 30
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxLimit)
		}
	}

	address, ok := h.address(w)
	if !ok {
		return
	}
	captures, err := h.captures.List(r.Context(), address, limit)
	if err != nil {
		slog.Error("failed to list captures", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if captures == nil {
		captures = []archive.Capture{}
	}
	writeJSON(w, http.StatusOK, captures)
}

// Create handles POST /api/v1/captures.
func (h *CaptureHandler) Create(w http.ResponseWriter, r *http.Request) {
	saved, err := h.capturer.CaptureOnce(r.Context())
	if err != nil {
		slog.Error("failed to store capture", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store capture")
		return
	}
	status := http.StatusCreated
	if !saved {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]bool{"saved": saved})
}
