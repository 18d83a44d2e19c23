package rippled

import (
	"context"
	"fmt"
)

// maxTxPages bounds pagination so a misbehaving server cannot loop forever.
const maxTxPages = 1000

// AccountTx returns the account's transactions between minLedger and
// maxLedger (-1 means the server's earliest/latest), oldest first.
func (c *Client) AccountTx(ctx context.Context, account string, minLedger, maxLedger int64) (TxResult, error) {
	out := TxResult{Account: account}
	var marker any
	for range maxTxPages {
		params := map[string]any{
			"account":          account,
			"ledger_index_min": minLedger,
			"ledger_index_max": maxLedger,
			"forward":          true,
			"binary":           false,
		}
		if marker != nil {
			params["marker"] = marker
		}

		var page TxResult
		if err := c.call(ctx, "account_tx", params, &page); err != nil {
			return TxResult{}, fmt.Errorf("fetching transactions for %s: %w", account, err)
		}

		out.Transactions = append(out.Transactions, page.Transactions...)
		out.LedgerIndexMin = page.LedgerIndexMin
		out.LedgerIndexMax = page.LedgerIndexMax

		if page.Marker == nil || len(page.Transactions) == 0 {
			return out, nil
		}
		marker = page.Marker
	}
	return out, fmt.Errorf("fetching transactions for %s: more than %d pages", account, maxTxPages)
}
