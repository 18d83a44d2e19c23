package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType is the ledger transaction type.
type TxType string

const (
	TxTypePayment     TxType = "Payment"
	TxTypeTrustSet    TxType = "TrustSet"
	TxTypeOfferCreate TxType = "OfferCreate"
	TxTypeOfferCancel TxType = "OfferCancel"
	TxTypeAccountSet  TxType = "AccountSet"
)

// Direction describes how a transaction relates to the observed account.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
	DirectionSelf     Direction = "self"
	DirectionTrusting Direction = "trusting"
	DirectionTrusted  Direction = "trusted"
	DirectionOther    Direction = "other"
)

// Record is one ledger transaction as it affects the observed account.
// Optional values are nil when the source data did not carry them.
type Record struct {
	Hash          string           `json:"hash,omitempty"`
	Type          TxType           `json:"tx_type"`
	Direction     Direction        `json:"type"`
	Result        string           `json:"tx_result,omitempty"`
	Counterparty  string           `json:"counterparty,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	Amount        *Amount          `json:"amount,omitempty"`
	Fee           string           `json:"fee,omitempty"`
	Date          time.Time        `json:"date,omitzero"`
	Position      Position         `json:"position"`
	Balance       *decimal.Decimal `json:"balance,omitempty"`
	TrustOut      *decimal.Decimal `json:"trust_out,omitempty"`
	TrustIn       *decimal.Decimal `json:"trust_in,omitempty"`
	NativeBalance string           `json:"native_balance,omitempty"`
	RippleState   bool             `json:"rippleState,omitempty"`
}

// LineKey returns the trust-line key this record refers to.
func (r Record) LineKey() string {
	return LineKey(r.Counterparty, r.Currency)
}
