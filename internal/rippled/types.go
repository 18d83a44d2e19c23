package rippled

import (
	"encoding/json"
	"fmt"
)

// RPCError is an error result returned by the server.
type RPCError struct {
	Method  string `json:"-"`
	Status  string `json:"status"`
	Code    string `json:"error"`
	Message string `json:"error_message"`
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Method, e.Code)
}

// Line is one entry of an account_lines response.
type Line struct {
	Account    string `json:"account"`
	Currency   string `json:"currency"`
	Balance    string `json:"balance"`
	Limit      string `json:"limit"`
	LimitPeer  string `json:"limit_peer"`
	QualityIn  uint32 `json:"quality_in"`
	QualityOut uint32 `json:"quality_out"`
}

// LinesResult is the result of account_lines.
type LinesResult struct {
	Account     string `json:"account"`
	Lines       []Line `json:"lines"`
	LedgerIndex uint32 `json:"ledger_index"`
	Marker      any    `json:"marker,omitempty"`
}

// WalletAccount is one entry of a wallet_accounts response.
type WalletAccount struct {
	Account    string `json:"Account"`
	Balance    string `json:"Balance"`
	Sequence   uint32 `json:"Sequence"`
	OwnerCount uint32 `json:"OwnerCount"`
	Flags      uint32 `json:"Flags"`
}

// AccountsResult is the result of wallet_accounts.
type AccountsResult struct {
	Accounts []WalletAccount `json:"accounts"`
}

// Transaction is the subset of transaction fields the projection reads.
// Amount fields stay raw: they are either drop strings or issued objects.
type Transaction struct {
	TransactionType string          `json:"TransactionType"`
	Account         string          `json:"Account"`
	Destination     string          `json:"Destination,omitempty"`
	Amount          json.RawMessage `json:"Amount,omitempty"`
	LimitAmount     json.RawMessage `json:"LimitAmount,omitempty"`
	Fee             string          `json:"Fee,omitempty"`
	Sequence        uint32          `json:"Sequence,omitempty"`
	Hash            string          `json:"hash,omitempty"`
	Date            uint32          `json:"date,omitempty"`
	LedgerIndex     uint32          `json:"ledger_index,omitempty"`
	InLedger        uint32          `json:"inLedger,omitempty"`
}

// Ledger returns the ledger the transaction was included in, if known.
func (t Transaction) Ledger() uint32 {
	if t.LedgerIndex != 0 {
		return t.LedgerIndex
	}
	return t.InLedger
}

// LedgerNode is a ledger entry touched by a transaction.
type LedgerNode struct {
	LedgerEntryType string         `json:"LedgerEntryType"`
	LedgerIndex     string         `json:"LedgerIndex"`
	FinalFields     map[string]any `json:"FinalFields,omitempty"`
	PreviousFields  map[string]any `json:"PreviousFields,omitempty"`
	NewFields       map[string]any `json:"NewFields,omitempty"`
}

// Fields returns the post-transaction state of the node.
func (n *LedgerNode) Fields() map[string]any {
	if n.FinalFields != nil {
		return n.FinalFields
	}
	return n.NewFields
}

// AffectedNode wraps exactly one of the created, modified or deleted node forms.
type AffectedNode struct {
	CreatedNode  *LedgerNode `json:"CreatedNode,omitempty"`
	ModifiedNode *LedgerNode `json:"ModifiedNode,omitempty"`
	DeletedNode  *LedgerNode `json:"DeletedNode,omitempty"`
}

// Node returns the wrapped node, or nil if none is set.
func (a AffectedNode) Node() *LedgerNode {
	switch {
	case a.CreatedNode != nil:
		return a.CreatedNode
	case a.ModifiedNode != nil:
		return a.ModifiedNode
	default:
		return a.DeletedNode
	}
}

// Meta is transaction execution metadata.
type Meta struct {
	TransactionResult string         `json:"TransactionResult"`
	TransactionIndex  uint32         `json:"TransactionIndex"`
	AffectedNodes     []AffectedNode `json:"AffectedNodes"`
}

// UnmarshalJSON leaves the metadata empty when it is not an object
// (binary blobs, nulls), so one malformed entry does not fail a whole batch.
func (m *Meta) UnmarshalJSON(data []byte) error {
	type plain Meta
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*m = Meta{}
		return nil
	}
	*m = Meta(p)
	return nil
}

// TxEntry pairs a transaction with its metadata.
type TxEntry struct {
	Tx        Transaction `json:"tx"`
	Meta      Meta        `json:"meta"`
	Validated bool        `json:"validated"`
}

// TxResult is the result of account_tx.
type TxResult struct {
	Account        string    `json:"account"`
	Transactions   []TxEntry `json:"transactions"`
	LedgerIndexMin int64     `json:"ledger_index_min"`
	LedgerIndexMax int64     `json:"ledger_index_max"`
	Marker         any       `json:"marker,omitempty"`
}
