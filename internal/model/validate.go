package model

import "fmt"

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Index       int
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("transaction %d: %s", e.Index, e.Description)
}

// Validate enforces structural invariants on a transaction set.
func Validate(txns []Transaction) []ValidationError {
	var errs []ValidationError

	for i, txn := range txns {
		// Invariant 1: amounts are stored as non-negative magnitudes.
		if txn.AbsoluteAmount.IsNegative() {
			errs = append(errs, ValidationError{
				Index:       i,
				Description: fmt.Sprintf("negative amount %s", txn.AbsoluteAmount),
			})
		}

		// Invariant 2: every transaction carries a real calendar date.
		if txn.Date.IsZero() {
			errs = append(errs, ValidationError{
				Index:       i,
				Description: "missing date",
			})
		}

		// Invariant 3: every transaction is attributed to an account.
		if txn.Account == "" {
			errs = append(errs, ValidationError{
				Index:       i,
				Description: "missing account",
			})
		}
	}

	return errs
}
