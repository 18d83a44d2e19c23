package export

import (
	"time"

	"github.com/samber/lo"

	"github.com/mtlprog/trustview/internal/domain"
	"github.com/mtlprog/trustview/internal/projection"
)

// summaryCol describes one column of the SUMMARY sheet. Column A (Date) is
// prepended separately.
type summaryCol struct {
	header string
	value  func(projection.View) any
}

var summaryColumns = []summaryCol{
	{header: "Address", value: func(v projection.View) any { return v.Address }},
	{header: "Balance XRP", value: nativeBalance},
	{header: "Trust lines", value: func(v projection.View) any { return len(v.Lines) }},
	{header: "Records", value: func(v projection.View) any { return len(v.History) }},
	{header: "Lines in debt", value: func(v projection.View) any {
		return lo.CountBy(lo.Values(v.Lines), func(l domain.TrustLine) bool { return l.Balance.IsNegative() })
	}},
	{header: "Last ledger", value: lastLedger},
}

// summaryTable builds a single data row per export.
func summaryTable(view projection.View, at time.Time) Table {
	header := make([]string, 1+len(summaryColumns))
	header[0] = "Date"
	for i, col := range summaryColumns {
		header[i+1] = col.header
	}

	row := make([]any, 1+len(summaryColumns))
	row[0] = at.UTC().Format(dateLayout)
	for i, col := range summaryColumns {
		row[i+1] = col.value(view)
	}

	return Table{Name: sheetSummary, Header: header, Rows: [][]any{row}, Append: true}
}

// nativeBalance converts the drop balance; an unparsable balance is left blank.
func nativeBalance(v projection.View) any {
	d, err := domain.DropsToNative(v.Balance)
	if err != nil {
		return nil
	}
	return toFloat(d)
}

func lastLedger(v projection.View) any {
	if len(v.History) == 0 {
		return nil
	}
	return int64(v.History[0].Position.Ledger)
}

