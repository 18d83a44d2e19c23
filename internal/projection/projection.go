// Package projection maintains the client-side view of one ledger account,
// reconciling snapshot queries, history backfill and the live stream.
package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/mtlprog/trustview/internal/domain"
	"github.com/mtlprog/trustview/internal/history"
	"github.com/mtlprog/trustview/internal/lines"
	"github.com/mtlprog/trustview/internal/rewriter"
	"github.com/mtlprog/trustview/internal/rippled"
)

// ErrAddressMismatch is logged when a second identity targets another account.
var ErrAddressMismatch = errors.New("projection already tracks another account")

// Network is the ledger transport the projection drives.
type Network interface {
	AccountLines(ctx context.Context, account string) (rippled.LinesResult, error)
	WalletAccounts(ctx context.Context, secret string) (rippled.AccountsResult, error)
	AccountTx(ctx context.Context, account string, minLedger, maxLedger int64) (rippled.TxResult, error)
	Subscribe(ctx context.Context, account string, handle func(rippled.TxEntry)) error
}

// Journal records live-stream events before they are applied.
type Journal interface {
	Append(entry rippled.TxEntry) error
}

// Option configures a Projection.
type Option func(*Projection)

// WithParser sets the amount parser used for snapshot lines.
func WithParser(p domain.AmountParser) Option {
	return func(pr *Projection) { pr.parser = p }
}

// WithRenderer sets the re-render hook.
func WithRenderer(r Renderer) Option {
	return func(pr *Projection) { pr.renderer = r }
}

// WithJournal records live events to j.
func WithJournal(j Journal) Option {
	return func(pr *Projection) { pr.journal = j }
}

// WithHistory configures history deduplication and capacity.
func WithHistory(dedup bool, limit int) Option {
	return func(pr *Projection) { pr.history = history.New(dedup, limit) }
}

// WithBackfillRange sets the ledger range of the history backfill.
func WithBackfillRange(minLedger, maxLedger int64) Option {
	return func(pr *Projection) {
		pr.minLedger = minLedger
		pr.maxLedger = maxLedger
	}
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return func(pr *Projection) {
		if n > 0 {
			pr.events = make(chan Event, n)
		}
	}
}

// Projection owns the balance, trust-line table and history of one account.
// All state is mutated by a single goroutine (Run, or a caller of Apply);
// other goroutines read through View.
type Projection struct {
	net      Network
	parser   domain.AmountParser
	renderer Renderer
	journal  Journal
	events   chan Event

	minLedger int64
	maxLedger int64

	state             State
	address           string
	balance           string
	liveBalancePos    domain.Position
	backfillRequested bool
	currenciesAll     []domain.Currency
	lines             *lines.Table
	history           *history.Log

	view     atomic.Pointer[View]
	inflight sync.WaitGroup
}

// New creates a projection. net may be nil for offline use (replay), in
// which case identity loads issue no requests.
func New(net Network, opts ...Option) *Projection {
	p := &Projection{
		net:           net,
		parser:        domain.DecimalParser{},
		events:        make(chan Event, 256),
		minLedger:     -1,
		maxLedger:     -1,
		state:         StateUninitialized,
		balance:       "0",
		currenciesAll: domain.CurrenciesAll(),
		lines:         lines.NewTable(),
		history:       history.New(true, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.publish(false)
	return p
}

// View returns the latest published view. Safe for concurrent use.
func (p *Projection) View() View {
	return *p.view.Load()
}

// Post queues an event for the loop. It blocks while the queue is full.
func (p *Projection) Post(ctx context.Context, ev Event) error {
	select {
	case p.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events in arrival order until ctx is cancelled, then waits
// for in-flight requests to finish.
func (p *Projection) Run(ctx context.Context) error {
	slog.Info("projection: starting")
	for {
		select {
		case <-ctx.Done():
			p.inflight.Wait()
			slog.Info("projection: shutting down")
			return ctx.Err()
		case ev := <-p.events:
			p.Apply(ctx, ev)
		}
	}
}

// Apply handles one event synchronously and publishes a new view if state
// changed. It must not run concurrently with Run.
func (p *Projection) Apply(ctx context.Context, ev Event) {
	var changed bool
	switch e := ev.(type) {
	case IdentityLoaded:
		changed = p.handleIdentity(ctx, e)
	case LinesSnapshot:
		changed = p.handleLines(e)
	case AccountsSnapshot:
		changed = p.handleAccounts(ctx, e)
	case TxBackfill:
		changed = p.handleBackfill(e)
	case LiveTx:
		changed = p.handleLive(e)
	default:
		slog.Warn("projection: unknown event", "type", fmt.Sprintf("%T", ev))
	}
	if changed {
		p.publish(true)
	}
}

func (p *Projection) handleIdentity(ctx context.Context, e IdentityLoaded) bool {
	if e.Account == "" {
		slog.Warn("projection: identity without account ignored")
		return false
	}
	if p.address != "" {
		if e.Account != p.address {
			slog.Warn("projection: identity ignored", "tracked", p.address, "requested", e.Account, "error", ErrAddressMismatch)
		}
		return false
	}

	p.address = e.Account
	p.state = StateLoading
	slog.Info("projection: identity loaded", "account", e.Account)

	if p.net == nil {
		return true
	}

	account, secret := e.Account, e.Secret
	p.request(ctx, "account_lines", func(ctx context.Context) (Event, error) {
		res, err := p.net.AccountLines(ctx, account)
		return LinesSnapshot{Result: res}, err
	})
	p.request(ctx, "wallet_accounts", func(ctx context.Context) (Event, error) {
		res, err := p.net.WalletAccounts(ctx, secret)
		return AccountsSnapshot{Result: res}, err
	})

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		err := p.net.Subscribe(ctx, account, func(entry rippled.TxEntry) {
			_ = p.Post(ctx, LiveTx{Entry: entry})
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("projection: live stream ended", "account", account, "error", err)
		}
	}()
	return true
}

// request runs fetch in the background and posts its result. Failures are
// logged only; the affected slice of state stays as it was.
func (p *Projection) request(ctx context.Context, name string, fetch func(context.Context) (Event, error)) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		ev, err := fetch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("projection: request failed", "request", name, "error", err)
			}
			return
		}
		_ = p.Post(ctx, ev)
	}()
}

func (p *Projection) handleLines(e LinesSnapshot) bool {
	snapshot := lo.Map(e.Result.Lines, func(l rippled.Line, _ int) lines.SnapshotLine {
		return lines.SnapshotLine{
			Account:    l.Account,
			Currency:   l.Currency,
			Balance:    l.Balance,
			Limit:      l.Limit,
			LimitPeer:  l.LimitPeer,
			QualityIn:  l.QualityIn,
			QualityOut: l.QualityOut,
		}
	})
	if err := p.lines.Load(snapshot, p.parser, e.Result.LedgerIndex); err != nil {
		slog.Warn("projection: dropped unparsable trust lines", "error", err)
	}
	p.state = StateLive
	slog.Info("projection: lines updated", "count", p.lines.Len(), "ledger", e.Result.LedgerIndex)
	return true
}

func (p *Projection) handleAccounts(ctx context.Context, e AccountsSnapshot) bool {
	if len(e.Result.Accounts) == 0 {
		slog.Warn("projection: wallet accounts response is empty")
		return false
	}
	acct := e.Result.Accounts[0]
	p.balance = acct.Balance
	p.liveBalancePos = domain.Position{}
	p.state = StateLive

	if p.net != nil && !p.backfillRequested && acct.Account != "" {
		p.backfillRequested = true
		account, minLedger, maxLedger := acct.Account, p.minLedger, p.maxLedger
		p.request(ctx, "account_tx", func(ctx context.Context) (Event, error) {
			res, err := p.net.AccountTx(ctx, account, minLedger, maxLedger)
			return TxBackfill{Result: res}, err
		})
	}
	return true
}

func (p *Projection) handleBackfill(e TxBackfill) bool {
	if p.address == "" {
		slog.Warn("projection: backfill before identity dropped")
		return false
	}
	applied := 0
	for _, entry := range e.Result.Transactions {
		if p.process(entry, false) {
			applied++
		}
	}
	p.state = StateLive
	slog.Info("projection: history backfilled", "received", len(e.Result.Transactions), "applied", applied)
	return applied > 0
}

func (p *Projection) handleLive(e LiveTx) bool {
	if p.address == "" {
		slog.Warn("projection: live transaction before identity dropped", "hash", e.Entry.Tx.Hash)
		return false
	}
	if p.journal != nil && !e.Replayed {
		if err := p.journal.Append(e.Entry); err != nil {
			slog.Warn("projection: journal append failed", "hash", e.Entry.Tx.Hash, "error", err)
		}
	}
	return p.process(e.Entry, true)
}

// process is the per-transaction path: normalize, prepend to history, fold
// into the trust-line table. Live payments also carry the native balance.
func (p *Projection) process(entry rippled.TxEntry, live bool) bool {
	rec, ok := rewriter.Normalize(entry.Tx, entry.Meta, p.address)
	if !ok {
		return false
	}
	if !p.history.Prepend(rec) {
		return false
	}
	p.lines.Merge(rec)

	if live && rec.Type == domain.TxTypePayment && rec.NativeBalance != "" &&
		(!rec.Position.Known() || rec.Position.After(p.liveBalancePos)) {
		p.balance = rec.NativeBalance
		if rec.Position.Known() {
			p.liveBalancePos = rec.Position
		}
	}
	return true
}

func (p *Projection) publish(notify bool) {
	v := View{
		State:         p.state,
		Address:       p.address,
		Balance:       p.balance,
		Currencies:    p.currenciesAll[1:],
		CurrenciesAll: p.currenciesAll,
		Lines:         p.lines.Snapshot(),
		History:       p.history.Records(),
	}
	p.view.Store(&v)
	if notify && p.renderer != nil {
		p.renderer.Render(v)
	}
}
