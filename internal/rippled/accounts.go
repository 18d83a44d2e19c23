package rippled

import (
	"context"
	"errors"
	"fmt"
)

// WalletAccounts lists the accounts derived from a wallet secret.
func (c *Client) WalletAccounts(ctx context.Context, secret string) (AccountsResult, error) {
	if secret == "" {
		return AccountsResult{}, errors.New("fetching wallet accounts: empty secret")
	}

	var res AccountsResult
	if err := c.call(ctx, "wallet_accounts", map[string]any{"seed": secret}, &res); err != nil {
		return AccountsResult{}, fmt.Errorf("fetching wallet accounts: %w", err)
	}
	return res, nil
}
