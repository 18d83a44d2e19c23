package projection

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/trustview/internal/domain"
	"github.com/mtlprog/trustview/internal/rippled"
)

const (
	me   = "rACC1"
	peer = "rPEER1"
)

type fakeNetwork struct {
	lines    rippled.LinesResult
	accounts rippled.AccountsResult
	txs      rippled.TxResult
	linesErr error

	mu        sync.Mutex
	txCalls   int
	txAccount string
	handlers  chan func(rippled.TxEntry)
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{handlers: make(chan func(rippled.TxEntry), 1)}
}

func (f *fakeNetwork) AccountLines(_ context.Context, _ string) (rippled.LinesResult, error) {
	return f.lines, f.linesErr
}

func (f *fakeNetwork) WalletAccounts(_ context.Context, _ string) (rippled.AccountsResult, error) {
	return f.accounts, nil
}

func (f *fakeNetwork) AccountTx(_ context.Context, account string, _, _ int64) (rippled.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCalls++
	f.txAccount = account
	return f.txs, nil
}

func (f *fakeNetwork) Subscribe(ctx context.Context, _ string, handle func(rippled.TxEntry)) error {
	f.handlers <- handle
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeNetwork) backfillCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txCalls
}

type fakeJournal struct {
	entries []rippled.TxEntry
	err     error
}

func (j *fakeJournal) Append(e rippled.TxEntry) error {
	j.entries = append(j.entries, e)
	return j.err
}

func issued(value, currency, issuer string) map[string]any {
	return map[string]any{"value": value, "currency": currency, "issuer": issuer}
}

func usdState(lowLimit, highLimit, balance string) rippled.AffectedNode {
	return rippled.AffectedNode{ModifiedNode: &rippled.LedgerNode{
		LedgerEntryType: "RippleState",
		FinalFields: map[string]any{
			"Balance":   issued(balance, "USD", "rrrrrrrrrrrrrrrrrrrrBZbvji"),
			"LowLimit":  issued(lowLimit, "USD", me),
			"HighLimit": issued(highLimit, "USD", peer),
		},
	}}
}

func trustSetEntry(hash, limit string, ledger uint32) rippled.TxEntry {
	return rippled.TxEntry{
		Tx: rippled.Transaction{
			TransactionType: "TrustSet",
			Account:         me,
			LimitAmount:     json.RawMessage(`{"currency":"USD","issuer":"rPEER1","value":"` + limit + `"}`),
			Fee:             "12",
			Hash:            hash,
			LedgerIndex:     ledger,
		},
		Meta: rippled.Meta{
			TransactionResult: "tesSUCCESS",
			AffectedNodes:     []rippled.AffectedNode{usdState(limit, "0", "10")},
		},
		Validated: true,
	}
}

func paymentEntry(hash, balance, native string, ledger, index uint32) rippled.TxEntry {
	return rippled.TxEntry{
		Tx: rippled.Transaction{
			TransactionType: "Payment",
			Account:         peer,
			Destination:     me,
			Amount:          json.RawMessage(`{"currency":"USD","issuer":"rPEER1","value":"5"}`),
			Fee:             "12",
			Hash:            hash,
			LedgerIndex:     ledger,
		},
		Meta: rippled.Meta{
			TransactionResult: "tesSUCCESS",
			TransactionIndex:  index,
			AffectedNodes: []rippled.AffectedNode{
				usdState("100", "0", balance),
				{ModifiedNode: &rippled.LedgerNode{
					LedgerEntryType: "AccountRoot",
					FinalFields:     map[string]any{"Account": me, "Balance": native},
				}},
			},
		},
	}
}

func snapshot(ledger uint32) rippled.LinesResult {
	return rippled.LinesResult{
		Account:     me,
		LedgerIndex: ledger,
		Lines: []rippled.Line{
			{Account: peer, Currency: "USD", Balance: "10", Limit: "100", LimitPeer: "0"},
		},
	}
}

func recorder(buf int) (Renderer, <-chan View) {
	ch := make(chan View, buf)
	return RenderFunc(func(v View) { ch <- v }), ch
}

func waitFor(t *testing.T, views <-chan View, what string, pred func(View) bool) View {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v := <-views:
			if pred(v) {
				return v
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", what)
			return View{}
		}
	}
}

func limitOf(v View, key string) decimal.Decimal {
	return v.Lines[key].Limit.Value
}

func TestNewInitialView(t *testing.T) {
	p := New(nil)
	v := p.View()

	if v.State != StateUninitialized {
		t.Errorf("state = %s, want uninitialized", v.State)
	}
	if v.Balance != "0" {
		t.Errorf("balance = %q, want 0", v.Balance)
	}
	if len(v.CurrenciesAll) == 0 || v.CurrenciesAll[0].Code != domain.NativeCurrency {
		t.Fatalf("currencies_all must start with the native currency, got %v", v.CurrenciesAll)
	}
	if len(v.Currencies) != len(v.CurrenciesAll)-1 || v.Currencies[0] != v.CurrenciesAll[1] {
		t.Errorf("currencies must be currencies_all without its first entry")
	}
	if len(v.Lines) != 0 || len(v.History) != 0 {
		t.Errorf("expected empty lines and history, got %d/%d", len(v.Lines), len(v.History))
	}
}

func TestRunEndToEnd(t *testing.T) {
	net := newFakeNetwork()
	net.lines = snapshot(100)
	net.accounts = rippled.AccountsResult{Accounts: []rippled.WalletAccount{{Account: me, Balance: "1000000000"}}}
	net.txs = rippled.TxResult{Account: me, Transactions: []rippled.TxEntry{trustSetEntry("OLD", "100", 90)}}

	render, views := recorder(64)
	p := New(net, WithRenderer(render))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	if err := p.Post(ctx, IdentityLoaded{Account: me, Secret: "sSECRET"}); err != nil {
		t.Fatalf("Post: %v", err)
	}

	v := waitFor(t, views, "snapshot and backfill", func(v View) bool {
		_, ok := v.Lines[peer+"USD"]
		return ok && v.Balance == "1000000000" && len(v.History) == 1
	})
	if v.Address != me || v.State != StateLive {
		t.Errorf("address/state = %s/%s, want %s/live", v.Address, v.State, me)
	}
	if !limitOf(v, peer+"USD").Equal(decimal.NewFromInt(100)) {
		t.Errorf("limit = %s, want 100", limitOf(v, peer+"USD"))
	}

	var handle func(rippled.TxEntry)
	select {
	case handle = <-net.handlers:
	case <-time.After(2 * time.Second):
		t.Fatal("live stream was never subscribed")
	}
	handle(trustSetEntry("NEW", "150", 101))

	v = waitFor(t, views, "live trust set", func(v View) bool {
		return len(v.History) == 2
	})
	line := v.Lines[peer+"USD"]
	if !line.Limit.Value.Equal(decimal.NewFromInt(150)) {
		t.Errorf("limit = %s, want 150", line.Limit.Value)
	}
	if !line.LimitPeer.Value.IsZero() {
		t.Errorf("limit_peer = %s, want 0", line.LimitPeer.Value)
	}
	if !line.Balance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("balance = %s, want 10", line.Balance)
	}
	head := v.History[0]
	if head.Hash != "NEW" || !head.RippleState {
		t.Errorf("history head = %s rippleState=%v, want NEW with rippleState", head.Hash, head.RippleState)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
	if calls := net.backfillCalls(); calls != 1 {
		t.Errorf("backfill requested %d times, want 1", calls)
	}
}

func TestBackfillRequestedOnce(t *testing.T) {
	net := newFakeNetwork()
	p := New(net)
	ctx, cancel := context.WithCancel(context.Background())

	p.address = me
	accounts := AccountsSnapshot{Result: rippled.AccountsResult{Accounts: []rippled.WalletAccount{{Account: me, Balance: "5"}}}}
	p.Apply(ctx, accounts)
	p.Apply(ctx, accounts)

	cancel()
	p.inflight.Wait()
	if calls := net.backfillCalls(); calls != 1 {
		t.Errorf("backfill requested %d times, want 1", calls)
	}
	if net.txAccount != me {
		t.Errorf("backfill account = %q, want %q", net.txAccount, me)
	}
	if p.View().Balance != "5" {
		t.Errorf("balance = %q, want 5", p.View().Balance)
	}
}

func TestEmptyAccountsLeavesBalance(t *testing.T) {
	p := New(nil)
	p.Apply(context.Background(), AccountsSnapshot{})
	if p.View().Balance != "0" {
		t.Errorf("balance = %q, want 0", p.View().Balance)
	}
}

func TestSnapshotReplacesTable(t *testing.T) {
	ctx := context.Background()
	p := New(nil)
	p.Apply(ctx, IdentityLoaded{Account: me})
	p.Apply(ctx, LinesSnapshot{Result: snapshot(100)})

	next := rippled.LinesResult{LedgerIndex: 110, Lines: []rippled.Line{
		{Account: "rOTHER", Currency: "EUR", Balance: "1", Limit: "2", LimitPeer: "3"},
		{Account: peer, Currency: "BTC", Balance: "x", Limit: "bad", LimitPeer: "0"},
	}}
	p.Apply(ctx, LinesSnapshot{Result: next})

	v := p.View()
	if len(v.Lines) != 1 {
		t.Fatalf("lines = %v, want only rOTHEREUR", v.Lines)
	}
	if _, ok := v.Lines["rOTHEREUR"]; !ok {
		t.Errorf("rOTHEREUR missing after snapshot")
	}
}

func TestUninvolvedTransactionIgnored(t *testing.T) {
	ctx := context.Background()
	render, views := recorder(8)
	p := New(nil, WithRenderer(render))
	p.Apply(ctx, IdentityLoaded{Account: me})
	<-views

	p.Apply(ctx, LiveTx{Entry: rippled.TxEntry{Tx: rippled.Transaction{
		TransactionType: "Payment",
		Account:         "rX",
		Destination:     "rY",
		Amount:          json.RawMessage(`"1000"`),
		Hash:            "H",
	}}})

	if n := len(p.View().History); n != 0 {
		t.Errorf("history length = %d, want 0", n)
	}
	select {
	case <-views:
		t.Error("render called for an unchanged projection")
	default:
	}
}

func TestLiveBeforeIdentityDropped(t *testing.T) {
	p := New(nil)
	p.Apply(context.Background(), LiveTx{Entry: trustSetEntry("H", "150", 5)})
	if n := len(p.View().History); n != 0 {
		t.Errorf("history length = %d, want 0", n)
	}
}

func TestSecondIdentityIgnored(t *testing.T) {
	ctx := context.Background()
	p := New(nil)
	p.Apply(ctx, IdentityLoaded{Account: me})
	p.Apply(ctx, IdentityLoaded{Account: "rSOMEONE"})

	if got := p.View().Address; got != me {
		t.Errorf("address = %q, want %q", got, me)
	}
}

func TestHistoryNewestFirstAndDeduplicated(t *testing.T) {
	ctx := context.Background()
	p := New(nil)
	p.Apply(ctx, IdentityLoaded{Account: me})
	p.Apply(ctx, TxBackfill{Result: rippled.TxResult{Transactions: []rippled.TxEntry{
		trustSetEntry("A", "100", 10),
		trustSetEntry("B", "110", 11),
	}}})
	p.Apply(ctx, LiveTx{Entry: trustSetEntry("C", "120", 12)})
	p.Apply(ctx, LiveTx{Entry: trustSetEntry("B", "110", 11)})

	hist := p.View().History
	if len(hist) != 3 {
		t.Fatalf("history length = %d, want 3", len(hist))
	}
	for i, want := range []string{"C", "B", "A"} {
		if hist[i].Hash != want {
			t.Errorf("history[%d] = %s, want %s", i, hist[i].Hash, want)
		}
	}
}

func TestStaleLiveEventIgnoredForLine(t *testing.T) {
	ctx := context.Background()
	p := New(nil)
	p.Apply(ctx, IdentityLoaded{Account: me})
	p.Apply(ctx, LinesSnapshot{Result: snapshot(100)})
	p.Apply(ctx, LiveTx{Entry: trustSetEntry("OLD", "50", 99)})

	v := p.View()
	if !limitOf(v, peer+"USD").Equal(decimal.NewFromInt(100)) {
		t.Errorf("limit = %s, want snapshot value 100", limitOf(v, peer+"USD"))
	}
	if len(v.History) != 1 {
		t.Errorf("stale event should still be logged, history length = %d", len(v.History))
	}
}

func TestLivePaymentUpdatesNativeBalance(t *testing.T) {
	ctx := context.Background()
	p := New(nil)
	p.Apply(ctx, IdentityLoaded{Account: me})
	p.Apply(ctx, LinesSnapshot{Result: snapshot(100)})
	p.Apply(ctx, LiveTx{Entry: paymentEntry("P2", "20", "900", 102, 0)})
	p.Apply(ctx, LiveTx{Entry: paymentEntry("P1", "15", "800", 101, 0)})

	v := p.View()
	if v.Balance != "900" {
		t.Errorf("balance = %q, want 900 from the later ledger", v.Balance)
	}
	if !v.Lines[peer+"USD"].Balance.Equal(decimal.NewFromInt(20)) {
		t.Errorf("line balance = %s, want 20", v.Lines[peer+"USD"].Balance)
	}
}

func TestBackfillPaymentKeepsSnapshotBalance(t *testing.T) {
	ctx := context.Background()
	p := New(nil)
	p.Apply(ctx, IdentityLoaded{Account: me})
	p.Apply(ctx, AccountsSnapshot{Result: rippled.AccountsResult{Accounts: []rippled.WalletAccount{{Account: me, Balance: "1000"}}}})
	p.Apply(ctx, TxBackfill{Result: rippled.TxResult{Transactions: []rippled.TxEntry{paymentEntry("P", "1", "1", 5, 0)}}})

	if got := p.View().Balance; got != "1000" {
		t.Errorf("balance = %q, want 1000", got)
	}
}

func TestJournalRecordsLiveOnly(t *testing.T) {
	ctx := context.Background()
	j := &fakeJournal{err: errors.New("disk full")}
	p := New(nil, WithJournal(j))
	p.Apply(ctx, IdentityLoaded{Account: me})

	p.Apply(ctx, LiveTx{Entry: trustSetEntry("L", "150", 5)})
	p.Apply(ctx, LiveTx{Entry: trustSetEntry("R", "160", 6), Replayed: true})

	if len(j.entries) != 1 || j.entries[0].Tx.Hash != "L" {
		t.Errorf("journal = %v, want only L", j.entries)
	}
	if n := len(p.View().History); n != 2 {
		t.Errorf("history length = %d, want 2 despite journal failure", n)
	}
}

func TestPostRespectsContext(t *testing.T) {
	p := New(nil, WithEventBuffer(1))
	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Post(ctx, IdentityLoaded{Account: me}); err != nil {
		t.Fatalf("first Post: %v", err)
	}
	cancel()
	if err := p.Post(ctx, IdentityLoaded{Account: me}); !errors.Is(err, context.Canceled) {
		t.Errorf("Post on full queue = %v, want context.Canceled", err)
	}
}
