package rippled

import (
	"context"
	"fmt"
)

// AccountLines retrieves every trust line of the account in the latest
// validated ledger, following pagination markers.
func (c *Client) AccountLines(ctx context.Context, account string) (LinesResult, error) {
	var out LinesResult
	var marker any
	for {
		params := map[string]any{
			"account":      account,
			"ledger_index": "validated",
		}
		if marker != nil {
			params["marker"] = marker
		}

		var page LinesResult
		if err := c.call(ctx, "account_lines", params, &page); err != nil {
			return LinesResult{}, fmt.Errorf("fetching lines for %s: %w", account, err)
		}

		out.Account = page.Account
		out.Lines = append(out.Lines, page.Lines...)
		if out.LedgerIndex == 0 {
			out.LedgerIndex = page.LedgerIndex
		}

		if page.Marker == nil || len(page.Lines) == 0 {
			return out, nil
		}
		marker = page.Marker
	}
}
