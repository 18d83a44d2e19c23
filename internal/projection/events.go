package projection

import "github.com/mtlprog/trustview/internal/rippled"

// Event is an input to the projection loop.
type Event interface {
	event()
}

// IdentityLoaded starts tracking an account.
type IdentityLoaded struct {
	Account string
	Secret  string
}

// LinesSnapshot carries a trust-line snapshot response.
type LinesSnapshot struct {
	Result rippled.LinesResult
}

// AccountsSnapshot carries a wallet-accounts snapshot response.
type AccountsSnapshot struct {
	Result rippled.AccountsResult
}

// TxBackfill carries a transaction-history backfill response.
type TxBackfill struct {
	Result rippled.TxResult
}

// LiveTx carries one transaction from the live stream. Replayed marks
// events read back from the journal.
type LiveTx struct {
	Entry    rippled.TxEntry
	Replayed bool
}

func (IdentityLoaded) event()   {}
func (LinesSnapshot) event()    {}
func (AccountsSnapshot) event() {}
func (TxBackfill) event()       {}
func (LiveTx) event()           {}
