package archive

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mtlprog/trustview/internal/domain"
	"github.com/mtlprog/trustview/internal/projection"
)

type staticSource struct {
	mu sync.Mutex
	v  projection.View
}

func (s *staticSource) View() projection.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v
}

func (s *staticSource) set(v projection.View) {
	s.mu.Lock()
	s.v = v
	s.mu.Unlock()
}

type mockRepo struct {
	mu      sync.Mutex
	saved   []Capture
	saveErr error
}

func (m *mockRepo) Save(_ context.Context, address string, at time.Time, balance string, view json.RawMessage) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	id := int64(len(m.saved) + 1)
	m.saved = append(m.saved, Capture{ID: id, Address: address, CapturedAt: at, Balance: balance, View: view})
	return id, nil
}

func (m *mockRepo) Latest(_ context.Context, _ string) (*Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil, ErrNotFound
	}
	c := m.saved[len(m.saved)-1]
	return &c, nil
}

func (m *mockRepo) List(_ context.Context, _ string, _ int) ([]Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Capture(nil), m.saved...), nil
}

func (m *mockRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

type mockHook struct {
	addresses []string
	err       error
}

func (h *mockHook) Export(_ context.Context, address string) error {
	h.addresses = append(h.addresses, address)
	return h.err
}

func liveView(balance string) projection.View {
	return projection.View{
		State:   projection.StateLive,
		Address: "rACC1",
		Balance: balance,
		Lines: map[string]domain.TrustLine{
			"rPEER1USD": {Account: "rPEER1", Currency: "USD"},
		},
		History: []domain.Record{{Hash: "H1", Type: domain.TxTypeTrustSet, Direction: domain.DirectionTrusting}},
	}
}

func TestCaptureOnceSkipsUntilLive(t *testing.T) {
	src := &staticSource{v: projection.View{State: projection.StateLoading, Address: "rACC1"}}
	repo := &mockRepo{}
	w := NewCaptureWorker(src, repo, time.Minute, nil)

	saved, err := w.CaptureOnce(context.Background())
	if err != nil || saved {
		t.Fatalf("CaptureOnce = %v, %v; want skipped", saved, err)
	}
	if repo.count() != 0 {
		t.Errorf("repository has %d captures, want 0", repo.count())
	}
}

func TestCaptureOnceStoresAndDeduplicates(t *testing.T) {
	src := &staticSource{v: liveView("100")}
	repo := &mockRepo{}
	hook := &mockHook{}
	w := NewCaptureWorker(src, repo, time.Minute, hook)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	ctx := context.Background()
	if saved, err := w.CaptureOnce(ctx); err != nil || !saved {
		t.Fatalf("first CaptureOnce = %v, %v; want stored", saved, err)
	}
	if saved, err := w.CaptureOnce(ctx); err != nil || saved {
		t.Fatalf("unchanged CaptureOnce = %v, %v; want skipped", saved, err)
	}
	src.set(liveView("200"))
	if saved, err := w.CaptureOnce(ctx); err != nil || !saved {
		t.Fatalf("changed CaptureOnce = %v, %v; want stored", saved, err)
	}

	if repo.count() != 2 {
		t.Fatalf("repository has %d captures, want 2", repo.count())
	}
	first := repo.saved[0]
	if first.Address != "rACC1" || first.Balance != "100" || !first.CapturedAt.Equal(fixed) {
		t.Errorf("first capture = %+v", first)
	}
	v, err := first.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(v.History) != 1 || v.History[0].Hash != "H1" {
		t.Errorf("decoded history = %+v", v.History)
	}
	if _, ok := v.Lines["rPEER1USD"]; !ok {
		t.Errorf("decoded lines missing rPEER1USD: %v", v.Lines)
	}
	if len(hook.addresses) != 2 {
		t.Errorf("hook called %d times, want 2", len(hook.addresses))
	}
}

func TestCaptureOnceSaveErrorRetriesNextTime(t *testing.T) {
	src := &staticSource{v: liveView("100")}
	repo := &mockRepo{saveErr: errors.New("db down")}
	w := NewCaptureWorker(src, repo, time.Minute, nil)

	if _, err := w.CaptureOnce(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
	repo.saveErr = nil
	if saved, err := w.CaptureOnce(context.Background()); err != nil || !saved {
		t.Errorf("CaptureOnce after recovery = %v, %v; want stored", saved, err)
	}
}

func TestCaptureHookErrorDoesNotFail(t *testing.T) {
	src := &staticSource{v: liveView("1")}
	w := NewCaptureWorker(src, &mockRepo{}, time.Minute, &mockHook{err: errors.New("sheets down")})
	if saved, err := w.CaptureOnce(context.Background()); err != nil || !saved {
		t.Errorf("CaptureOnce = %v, %v; want stored despite hook failure", saved, err)
	}
}

func TestCaptureOnceConcurrentCallsStoreOnce(t *testing.T) {
	src := &staticSource{v: liveView("100")}
	repo := &mockRepo{}
	w := NewCaptureWorker(src, repo, time.Minute, nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if _, err := w.CaptureOnce(context.Background()); err != nil {
					t.Errorf("CaptureOnce: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := repo.count(); got != 1 {
		t.Errorf("captures = %d, want 1 for an unchanged view", got)
	}
}

func TestCaptureWorkerRunsAndShutdown(t *testing.T) {
	src := &staticSource{v: liveView("1")}
	repo := &mockRepo{}
	w := NewCaptureWorker(src, repo, 20*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	src.set(liveView("2"))
	<-done

	if got := repo.count(); got != 2 {
		t.Errorf("captures = %d, want 2", got)
	}
}
