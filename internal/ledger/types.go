package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/bankpull-dev/bankpull/internal/model"
)

// Account is a ledger-side account as reported by the worker.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Record is the wire shape one transaction takes on import. Amounts are
// integer minor units, debit-negative: the ledger's sign convention is
// the opposite of model.Transaction.SignedAmount.
type Record struct {
	Date          string `json:"date"`
	Amount        int64  `json:"amount"`
	Payee         string `json:"payee_name"`
	ImportedPayee string `json:"imported_payee"`
	Notes         string `json:"notes"`
	Cleared       bool   `json:"cleared"`
}

// ImportResult summarizes one account submission. The ledger dedupes on
// its side by date+amount+payee matching, so repeated runs are safe.
type ImportResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

// Client is the external ledger capability.
type Client interface {
	Accounts() ([]Account, error)
	ImportTransactions(accountID string, records []Record) (ImportResult, error)
	Close() error
}

var cents = decimal.NewFromInt(100)

// Convert maps a canonical transaction to its ledger wire record. The
// amount is computed from the raw fields, never from SignedAmount: the
// two sign conventions are intentionally opposite.
func Convert(t model.Transaction) Record {
	amount := t.AbsoluteAmount.Mul(cents).Round(0).IntPart()
	if t.IsDebit {
		amount = -amount
	}
	return Record{
		Date:          t.Date.Format("2006-01-02"),
		Amount:        amount,
		Payee:         t.Description,
		ImportedPayee: t.Description,
		Notes:         t.Description,
		Cleared:       !t.IsPending,
	}
}

// ConvertAll maps a transaction slice to wire records, preserving order.
func ConvertAll(txns []model.Transaction) []Record {
	records := make([]Record, len(txns))
	for i, txn := range txns {
		records[i] = Convert(txn)
	}
	return records
}
