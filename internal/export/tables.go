package export

import (
	"slices"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/trustview/internal/domain"
	"github.com/mtlprog/trustview/internal/projection"
)

const (
	sheetHistory = "HISTORY"
	sheetLines   = "LINES"
	sheetSummary = "SUMMARY"
)

const dateLayout = "2006-01-02 15:04:05"

// historyTable lists the records newest first, as the view holds them.
// Columns: Date | Hash | Type | Direction | Counterparty | Currency | Amount | Fee | Balance | Trust out | Trust in | Result | Ledger
func historyTable(view projection.View) Table {
	rows := lo.Map(view.History, func(r domain.Record, _ int) []any {
		var date, amount any
		if !r.Date.IsZero() {
			date = r.Date.UTC().Format(dateLayout)
		}
		if r.Amount != nil {
			amount = toFloat(r.Amount.Value)
		}
		return []any{
			date, r.Hash, string(r.Type), string(r.Direction),
			r.Counterparty, r.Currency, amount, r.Fee,
			ptrFloat(r.Balance), ptrFloat(r.TrustOut), ptrFloat(r.TrustIn),
			r.Result, int64(r.Position.Ledger),
		}
	})
	return Table{
		Name: sheetHistory,
		Header: []string{
			"Date", "Hash", "Type", "Direction",
			"Counterparty", "Currency", "Amount", "Fee",
			"Balance", "Trust out", "Trust in",
			"Result", "Ledger",
		},
		Rows: rows,
	}
}

// linesTable lists trust lines ordered by key.
// Columns: Counterparty | Currency | Balance | Limit | Limit peer | Quality in | Quality out
func linesTable(view projection.View) Table {
	keys := lo.Keys(view.Lines)
	slices.Sort(keys)
	rows := lo.Map(keys, func(k string, _ int) []any {
		l := view.Lines[k]
		return []any{
			l.Account, l.Currency,
			toFloat(l.Balance), toFloat(l.Limit.Value), toFloat(l.LimitPeer.Value),
			int64(l.QualityIn), int64(l.QualityOut),
		}
	})
	return Table{
		Name:   sheetLines,
		Header: []string{"Counterparty", "Currency", "Balance", "Limit", "Limit peer", "Quality in", "Quality out"},
		Rows:   rows,
	}
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func ptrFloat(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return toFloat(*d)
}
