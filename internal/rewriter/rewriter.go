// Package rewriter turns raw ledger transactions into records describing
// their effect on one observed account.
package rewriter

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/trustview/internal/domain"
	"github.com/mtlprog/trustview/internal/rippled"
)

// rippleEpoch is the ledger time origin (2000-01-01T00:00:00Z) in Unix seconds.
const rippleEpoch = 946684800

const (
	entryRippleState = "RippleState"
	entryAccountRoot = "AccountRoot"
)

// lineState is one RippleState node seen from the observed account's side.
type lineState struct {
	counterparty string
	currency     string
	balance      decimal.Decimal
	trustOut     decimal.Decimal
	trustIn      decimal.Decimal
}

// Normalize describes tx as it affects account. It returns false when the
// transaction does not involve the account. Malformed fields are omitted,
// never fatal.
func Normalize(tx rippled.Transaction, meta rippled.Meta, account string) (domain.Record, bool) {
	if account == "" || tx.TransactionType == "" {
		return domain.Record{}, false
	}

	rec := domain.Record{
		Hash:     tx.Hash,
		Type:     domain.TxType(tx.TransactionType),
		Result:   meta.TransactionResult,
		Position: domain.Position{Ledger: tx.Ledger(), TxIndex: meta.TransactionIndex},
	}
	if tx.Date != 0 {
		rec.Date = time.Unix(int64(tx.Date)+rippleEpoch, 0).UTC()
	}
	if fee, err := domain.DropsToNative(tx.Fee); err == nil {
		rec.Fee = domain.FormatNative(fee)
	}

	involved := tx.Account == account || tx.Destination == account

	switch rec.Type {
	case domain.TxTypePayment:
		describePayment(&rec, tx, account)
	case domain.TxTypeTrustSet:
		if describeTrustSet(&rec, tx, account) {
			involved = true
		}
	default:
		rec.Direction = domain.DirectionOther
		if tx.Account != account {
			rec.Counterparty = tx.Account
		} else {
			rec.Counterparty = tx.Destination
		}
	}

	states := lineStates(meta, account)
	native, hasNative := nativeBalance(meta, account)
	if !involved && len(states) == 0 && !hasNative {
		return domain.Record{}, false
	}
	if hasNative {
		rec.NativeBalance = native
	}

	if !succeeded(rec.Result) {
		return rec, true
	}

	switch rec.Type {
	case domain.TxTypePayment:
		if st, ok := pickState(states, rec); ok {
			rec.Counterparty = st.counterparty
			rec.Currency = st.currency
			rec.Balance = lo.ToPtr(st.balance)
			rec.RippleState = true
		}
	case domain.TxTypeTrustSet:
		if st, ok := pickState(states, rec); ok {
			rec.Counterparty = st.counterparty
			rec.Currency = st.currency
			rec.TrustOut = lo.ToPtr(st.trustOut)
			rec.TrustIn = lo.ToPtr(st.trustIn)
		}
		rec.RippleState = rec.Counterparty != "" && rec.Currency != ""
	}

	return rec, true
}

func describePayment(rec *domain.Record, tx rippled.Transaction, account string) {
	switch {
	case tx.Account == account && tx.Destination == account:
		rec.Direction = domain.DirectionSelf
	case tx.Account == account:
		rec.Direction = domain.DirectionSent
		rec.Counterparty = tx.Destination
	case tx.Destination == account:
		rec.Direction = domain.DirectionReceived
		rec.Counterparty = tx.Account
	default:
		rec.Direction = domain.DirectionOther
	}

	if amt, err := domain.AmountFromJSON(tx.Amount); err == nil {
		rec.Amount = &amt
		rec.Currency = amt.Currency
	}
}

// describeTrustSet fills the limit fields from the transaction itself and
// reports whether the account is the trusted side.
func describeTrustSet(rec *domain.Record, tx rippled.Transaction, account string) bool {
	limit, err := domain.AmountFromJSON(tx.LimitAmount)
	if err != nil {
		if tx.Account == account {
			rec.Direction = domain.DirectionTrusting
		} else {
			rec.Direction = domain.DirectionOther
		}
		return false
	}
	rec.Amount = &limit
	rec.Currency = limit.Currency

	switch {
	case tx.Account == account:
		rec.Direction = domain.DirectionTrusting
		rec.Counterparty = limit.Issuer
		rec.TrustOut = lo.ToPtr(limit.Value)
		return false
	case limit.Issuer == account:
		rec.Direction = domain.DirectionTrusted
		rec.Counterparty = tx.Account
		rec.TrustIn = lo.ToPtr(limit.Value)
		return true
	default:
		rec.Direction = domain.DirectionOther
		return false
	}
}

// lineStates extracts every RippleState node in which account is a side.
func lineStates(meta rippled.Meta, account string) []lineState {
	return lo.FilterMap(meta.AffectedNodes, func(an rippled.AffectedNode, _ int) (lineState, bool) {
		node := an.Node()
		if node == nil || node.LedgerEntryType != entryRippleState {
			return lineState{}, false
		}
		return rippleSide(node.Fields(), account)
	})
}

// rippleSide reads a RippleState from the account's side. The stored balance
// is from the low side's view and is negated for the high side.
func rippleSide(fields map[string]any, account string) (lineState, bool) {
	if fields == nil {
		return lineState{}, false
	}
	high, errHigh := domain.AmountFromValue(fields["HighLimit"])
	low, errLow := domain.AmountFromValue(fields["LowLimit"])
	if errHigh != nil || errLow != nil {
		return lineState{}, false
	}
	balance, err := domain.AmountFromValue(fields["Balance"])
	if err != nil {
		balance = domain.Amount{Currency: high.Currency}
	}

	switch account {
	case high.Issuer:
		return lineState{
			counterparty: low.Issuer,
			currency:     high.Currency,
			balance:      balance.Value.Neg(),
			trustOut:     high.Value,
			trustIn:      low.Value,
		}, true
	case low.Issuer:
		return lineState{
			counterparty: high.Issuer,
			currency:     low.Currency,
			balance:      balance.Value,
			trustOut:     low.Value,
			trustIn:      high.Value,
		}, true
	default:
		return lineState{}, false
	}
}

// pickState prefers the line matching the record's counterparty and
// currency, then any line in the record's currency, then the first line.
func pickState(states []lineState, rec domain.Record) (lineState, bool) {
	if len(states) == 0 {
		return lineState{}, false
	}
	if st, ok := lo.Find(states, func(s lineState) bool {
		return s.counterparty == rec.Counterparty && s.currency == rec.Currency
	}); ok {
		return st, true
	}
	if st, ok := lo.Find(states, func(s lineState) bool {
		return s.currency == rec.Currency
	}); ok {
		return st, true
	}
	return states[0], true
}

// nativeBalance returns the account's post-transaction native balance in drops.
func nativeBalance(meta rippled.Meta, account string) (string, bool) {
	for _, an := range meta.AffectedNodes {
		node := an.Node()
		if node == nil || node.LedgerEntryType != entryAccountRoot {
			continue
		}
		fields := node.Fields()
		if owner, _ := fields["Account"].(string); owner != account {
			continue
		}
		if balance, ok := fields["Balance"].(string); ok && balance != "" {
			return balance, true
		}
	}
	return "", false
}

// succeeded treats an unknown result as success: stream messages may omit it.
func succeeded(result string) bool {
	return result == "" || strings.HasPrefix(result, "tes")
}
