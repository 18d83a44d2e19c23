package projection

import "github.com/mtlprog/trustview/internal/domain"

// State is the projection lifecycle stage.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateLive          State = "live"
)

// View is an immutable read view of the projection. Callers must not
// modify its maps or slices.
type View struct {
	State         State                       `json:"state"`
	Address       string                      `json:"address"`
	Balance       string                      `json:"balance"`
	Currencies    []domain.Currency           `json:"currencies"`
	CurrenciesAll []domain.Currency           `json:"currencies_all"`
	Lines         map[string]domain.TrustLine `json:"lines"`
	History       []domain.Record             `json:"history"`
}

// Renderer is notified once after every batch of mutations.
type Renderer interface {
	Render(View)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(View)

// Render implements Renderer.
func (f RenderFunc) Render(v View) { f(v) }
