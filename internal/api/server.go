// Package api serves the projection over HTTP.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/mtlprog/trustview/internal/archive"
	"github.com/mtlprog/trustview/internal/broadcast"
	"github.com/mtlprog/trustview/internal/projection"
)

// Options holds the optional collaborators of the server.
type Options struct {
	// Events enables GET /api/v1/events.
	Events *broadcast.Broadcaster[projection.View]
	// Captures enables the capture routes.
	Captures archive.Repository
	// Capturer enables POST /api/v1/captures.
	Capturer Capturer
	// AdminAPIKey protects the POST routes when set.
	AdminAPIKey string
}

// NewServer creates an HTTP server with all routes configured.
func NewServer(port string, views ViewSource, opts Options) *http.Server {
	handler := NewHandler(views, opts.Events)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/projection", handler.GetProjection)
	mux.HandleFunc("GET /api/v1/lines", handler.ListLines)
	mux.HandleFunc("GET /api/v1/lines/{key}", handler.GetLine)
	mux.HandleFunc("GET /api/v1/history", handler.ListHistory)
	if opts.Events != nil {
		mux.HandleFunc("GET /api/v1/events", handler.StreamEvents)
	}

	if opts.Captures != nil {
		capHandler := NewCaptureHandler(views, opts.Captures, opts.Capturer)
		mux.HandleFunc("GET /api/v1/captures/latest", capHandler.GetLatest)
		mux.HandleFunc("GET /api/v1/captures", capHandler.List)

		if opts.Capturer != nil {
			createHandler := http.HandlerFunc(capHandler.Create)
			if opts.AdminAPIKey != "" {
				mux.Handle("POST /api/v1/captures", requireAuth(opts.AdminAPIKey, createHandler))
			} else {
				mux.Handle("POST /api/v1/captures", createHandler)
			}
		}
	}

	return &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// Event streams clear their own write deadline.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
