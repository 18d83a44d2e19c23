package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mtlprog/trustview/internal/projection"
)

// ViewSource provides the current projection view.
type ViewSource interface {
	View() projection.View
}

// AfterCaptureHook is called after each stored capture.
type AfterCaptureHook interface {
	Export(ctx context.Context, address string) error
}

// CaptureWorker periodically stores the projection view.
type CaptureWorker struct {
	source   ViewSource
	repo     Repository
	interval time.Duration
	hook     AfterCaptureHook // optional
	now      func() time.Time

	// mu serializes the ticker and on-demand captures.
	mu   sync.Mutex
	last []byte
}

// NewCaptureWorker creates a CaptureWorker with an optional post-capture hook.
func NewCaptureWorker(source ViewSource, repo Repository, interval time.Duration, hook AfterCaptureHook) *CaptureWorker {
	return &CaptureWorker{
		source:   source,
		repo:     repo,
		interval: interval,
		hook:     hook,
		now:      time.Now,
	}
}

// CaptureOnce stores the current view. It reports false without error when
// the projection is not live yet or nothing changed since the last capture.
func (w *CaptureWorker) CaptureOnce(ctx context.Context) (bool, error) {
	v := w.source.View()
	if v.State != projection.StateLive || v.Address == "" {
		return false, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("encoding view: %w", err)
	}

	id, saved, err := w.store(ctx, v, data)
	if err != nil || !saved {
		return false, err
	}
	slog.Info("CaptureWorker: capture stored", "id", id, "address", v.Address, "lines", len(v.Lines), "history", len(v.History))

	if w.hook != nil {
		if err := w.hook.Export(ctx, v.Address); err != nil {
			slog.Error("CaptureWorker: export hook failed", "error", err)
		} else {
			slog.Info("CaptureWorker: export hook completed")
		}
	}
	return true, nil
}

func (w *CaptureWorker) store(ctx context.Context, v projection.View, data []byte) (int64, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if bytes.Equal(data, w.last) {
		return 0, false, nil
	}
	id, err := w.repo.Save(ctx, v.Address, w.now().UTC(), v.Balance, data)
	if err != nil {
		return 0, false, err
	}
	w.last = data
	return id, true, nil
}

func (w *CaptureWorker) capture(ctx context.Context) {
	if _, err := w.CaptureOnce(ctx); err != nil {
		slog.Error("CaptureWorker: capture failed", "error", err)
	}
}

// Run captures once on start and then every interval until ctx is cancelled.
func (w *CaptureWorker) Run(ctx context.Context) {
	slog.Info("CaptureWorker: starting", "interval", w.interval)
	w.capture(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("CaptureWorker: shutting down")
			return
		case <-ticker.C:
			w.capture(ctx)
		}
	}
}
