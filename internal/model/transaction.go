package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one normalized bank statement row. A parser constructs it
// once from a single source row; it is never mutated afterwards.
type Transaction struct {
	Account        string          // source account label, e.g. "dbs-6789"
	Date           time.Time       // calendar date only, Singapore civil time
	Description    string
	AbsoluteAmount decimal.Decimal // always >= 0
	IsDebit        bool            // true = money leaving the account
	IsPending      bool            // true = not yet settled
}

// SignedAmount returns the debit-positive amount used in the combined
// export. The ledger wire format uses the opposite sign and is computed
// from the raw fields, never from this accessor.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.IsDebit {
		return t.AbsoluteAmount
	}
	return t.AbsoluteAmount.Neg()
}

// Status returns the settlement status label used in export artifacts.
func (t Transaction) Status() string {
	if t.IsPending {
		return "pending"
	}
	return "cleared"
}
