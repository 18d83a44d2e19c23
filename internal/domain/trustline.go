package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// TrustLine is a bilateral credit relationship between the observed account
// and one counterparty in one currency.
type TrustLine struct {
	Account    string          `json:"account"`
	Currency   string          `json:"currency"`
	Balance    decimal.Decimal `json:"balance"`
	Limit      Amount          `json:"limit"`
	LimitPeer  Amount          `json:"limit_peer"`
	QualityIn  uint32          `json:"quality_in"`
	QualityOut uint32          `json:"quality_out"`
}

// Key returns the table key of the line.
func (l TrustLine) Key() string {
	return LineKey(l.Account, l.Currency)
}

// LineKey builds the trust-line table key: counterparty followed by currency.
func LineKey(counterparty, currency string) string {
	return counterparty + currency
}

// Position orders ledger state changes: by ledger, then by transaction index
// within that ledger. The zero Position means unknown.
type Position struct {
	Ledger  uint32 `json:"ledger_index"`
	TxIndex uint32 `json:"tx_index"`
}

// EndOfLedger is the position after every transaction in ledger l.
func EndOfLedger(l uint32) Position {
	return Position{Ledger: l, TxIndex: math.MaxUint32}
}

// Known reports whether the position carries a ledger index.
func (p Position) Known() bool {
	return p.Ledger != 0
}

// After reports whether p is strictly later than o.
func (p Position) After(o Position) bool {
	if p.Ledger != o.Ledger {
		return p.Ledger > o.Ledger
	}
	return p.TxIndex > o.TxIndex
}
