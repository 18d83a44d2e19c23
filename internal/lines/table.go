// Package lines holds the trust-line table of the observed account.
package lines

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/samber/lo"

	"github.com/mtlprog/trustview/internal/domain"
)

// SnapshotLine is one trust line as returned by a bulk snapshot query,
// amounts still unparsed.
type SnapshotLine struct {
	Account    string
	Currency   string
	Balance    string
	Limit      string
	LimitPeer  string
	QualityIn  uint32
	QualityOut uint32
}

// entry tracks the balance and the limits separately: Payments and TrustSets
// touch disjoint fields, so neither may make the other look stale.
type entry struct {
	line       domain.TrustLine
	balancePos domain.Position
	limitsPos  domain.Position
}

// Table maps counterparty+currency to trust-line state. It is not safe for
// concurrent use; the projection loop owns it.
type Table struct {
	entries map[string]*entry
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Load replaces the whole table with the snapshot taken at the given
// validated ledger (0 if unknown). Lines whose amounts fail to parse are
// dropped and reported in the returned error; the rest are installed.
// Duplicate keys collapse to the last line.
func (t *Table) Load(snapshot []SnapshotLine, parser domain.AmountParser, ledger uint32) error {
	var pos domain.Position
	if ledger != 0 {
		pos = domain.EndOfLedger(ledger)
	}

	next := make(map[string]*entry, len(snapshot))
	var errs []error
	for _, sl := range snapshot {
		line, err := parseLine(sl, parser)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %s: %w", domain.LineKey(sl.Account, sl.Currency), err))
			continue
		}
		next[line.Key()] = &entry{line: line, balancePos: pos, limitsPos: pos}
	}

	t.entries = next
	return errors.Join(errs...)
}

func parseLine(sl SnapshotLine, parser domain.AmountParser) (domain.TrustLine, error) {
	limit, err := parser.ParseAmount(sl.Limit, sl.Currency)
	if err != nil {
		return domain.TrustLine{}, fmt.Errorf("limit: %w", err)
	}
	limitPeer, err := parser.ParseAmount(sl.LimitPeer, sl.Currency)
	if err != nil {
		return domain.TrustLine{}, fmt.Errorf("limit_peer: %w", err)
	}
	line := domain.TrustLine{
		Account:    sl.Account,
		Currency:   sl.Currency,
		Limit:      limit,
		LimitPeer:  limitPeer,
		QualityIn:  sl.QualityIn,
		QualityOut: sl.QualityOut,
	}
	if sl.Balance != "" {
		balance, err := parser.ParseAmount(sl.Balance, sl.Currency)
		if err != nil {
			return domain.TrustLine{}, fmt.Errorf("balance: %w", err)
		}
		line.Balance = balance.Value
	}
	return line, nil
}

// Merge folds a normalized record into its line and reports whether the
// table changed. Payment records set only the balance; TrustSet records set
// only the two limits. A record positioned at or before the last state
// applied to the same fields is stale and ignored.
func (t *Table) Merge(rec domain.Record) bool {
	if !rec.RippleState || rec.Counterparty == "" || rec.Currency == "" {
		return false
	}

	var (
		apply func(*domain.TrustLine)
		pos   func(*entry) *domain.Position
	)
	switch rec.Type {
	case domain.TxTypePayment:
		if rec.Balance == nil {
			return false
		}
		apply = func(l *domain.TrustLine) { l.Balance = *rec.Balance }
		pos = func(e *entry) *domain.Position { return &e.balancePos }
	case domain.TxTypeTrustSet:
		if rec.TrustOut == nil && rec.TrustIn == nil {
			return false
		}
		pos = func(e *entry) *domain.Position { return &e.limitsPos }
		apply = func(l *domain.TrustLine) {
			if rec.TrustOut != nil {
				l.Limit = domain.Amount{Value: *rec.TrustOut, Currency: rec.Currency}
			}
			if rec.TrustIn != nil {
				l.LimitPeer = domain.Amount{Value: *rec.TrustIn, Currency: rec.Currency}
			}
		}
	default:
		return false
	}

	key := rec.LineKey()
	e, ok := t.entries[key]
	if ok && rec.Position.Known() && !rec.Position.After(*pos(e)) {
		return false
	}
	if !ok {
		e = &entry{line: domain.TrustLine{
			Account:   rec.Counterparty,
			Currency:  rec.Currency,
			Limit:     domain.Amount{Currency: rec.Currency},
			LimitPeer: domain.Amount{Currency: rec.Currency},
		}}
		t.entries[key] = e
	}

	apply(&e.line)
	if rec.Position.Known() {
		*pos(e) = rec.Position
	}
	return true
}

// Get returns the line for a counterparty and currency.
func (t *Table) Get(counterparty, currency string) (domain.TrustLine, bool) {
	e, ok := t.entries[domain.LineKey(counterparty, currency)]
	if !ok {
		return domain.TrustLine{}, false
	}
	return e.line, true
}

// Len returns the number of lines.
func (t *Table) Len() int {
	return len(t.entries)
}

// Keys returns the table keys in sorted order.
func (t *Table) Keys() []string {
	keys := slices.Collect(maps.Keys(t.entries))
	slices.Sort(keys)
	return keys
}

// Snapshot returns a copy of the table contents keyed by counterparty+currency.
func (t *Table) Snapshot() map[string]domain.TrustLine {
	return lo.MapValues(t.entries, func(e *entry, _ string) domain.TrustLine {
		return e.line
	})
}
