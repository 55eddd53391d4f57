package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bankpull-dev/bankpull/internal/model"
)

// DBSParser parses DBS/POSB delimited-text statement exports.
type DBSParser struct{}

const (
	dbsSignature  = "Transaction History for"
	dbsDateFormat = "2 Jan 2006"

	dbsColDate   = "Transaction Date"
	dbsColDebit  = "Debit Amount"
	dbsColCredit = "Credit Amount"
)

// Reference column priority for the two known DBS sub-formats: savings
// and current account exports carry Transaction Ref1..3, card exports
// carry Description 1/2.
var (
	dbsSavingsRefs = []string{"Transaction Ref1", "Transaction Ref2", "Transaction Ref3"}
	dbsCardRefs    = []string{"Description 1", "Description 2"}
)

// accountDigits matches an account or card number in a statement preamble.
var accountDigits = regexp.MustCompile(`[0-9][0-9-]{6,}[0-9]`)

// Bank returns the parser name.
func (p *DBSParser) Bank() string { return "dbs" }

// Parse reads a DBS CSV export and returns Transactions, oldest first.
// The export lists rows newest-first, so rows are walked in reverse.
func (p *DBSParser) Parse(raw []byte) ([]model.Transaction, error) {
	text := string(raw)
	if !strings.Contains(text, dbsSignature) {
		return nil, fmt.Errorf("%w: missing %q marker", ErrInvalidFormat, dbsSignature)
	}

	account := accountLabel("dbs", text)

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading dbs CSV: %w", err)
	}

	headerIdx := -1
	for i, rec := range records {
		if len(rec) > 0 && strings.TrimSpace(rec[0]) == dbsColDate {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w: header row not found", ErrInvalidFormat)
	}

	cols := make(map[string]int, len(records[headerIdx]))
	for i, name := range records[headerIdx] {
		cols[strings.TrimSpace(name)] = i
	}

	for _, name := range []string{dbsColDate, dbsColDebit, dbsColCredit} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: missing %q column", ErrInvalidFormat, name)
		}
	}

	refCols, err := dbsRefColumns(cols)
	if err != nil {
		return nil, err
	}

	rows := records[headerIdx+1:]
	txns := make([]model.Transaction, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		rec := rows[i]
		if isBlankRow(rec) {
			continue
		}

		// Quoted fields may span lines, so the position is the CSV record
		// number, not a file line.
		date, err := time.ParseInLocation(dbsDateFormat, strings.TrimSpace(cell(rec, cols[dbsColDate])), sgt)
		if err != nil {
			return nil, fmt.Errorf("record %d: parsing date %q: %w", headerIdx+i+2, cell(rec, cols[dbsColDate]), err)
		}

		refs := make([]string, len(refCols))
		for j, idx := range refCols {
			refs[j] = cell(rec, idx)
		}

		debit := SafeAmount(cell(rec, cols[dbsColDebit]))
		credit := SafeAmount(cell(rec, cols[dbsColCredit]))

		txn := model.Transaction{
			Account:     account,
			Date:        date,
			Description: BuildDescription(refs),
		}
		// Debit takes precedence when both sides carry an amount.
		if debit.IsPositive() {
			txn.AbsoluteAmount = debit
			txn.IsDebit = true
		} else {
			txn.AbsoluteAmount = credit
		}

		txns = append(txns, txn)
	}
	return txns, nil
}

// dbsRefColumns resolves the reference columns for whichever DBS
// sub-format the header matches.
func dbsRefColumns(cols map[string]int) ([]int, error) {
	for _, names := range [][]string{dbsSavingsRefs, dbsCardRefs} {
		if _, ok := cols[names[0]]; !ok {
			continue
		}
		idxs := make([]int, 0, len(names))
		for _, n := range names {
			if i, ok := cols[n]; ok {
				idxs = append(idxs, i)
			}
		}
		return idxs, nil
	}
	return nil, fmt.Errorf("%w: no known reference columns", ErrInvalidFormat)
}

// accountLabel derives the canonical account label (bank + last 4 digits)
// from the account number in a statement preamble.
func accountLabel(bank, text string) string {
	digits := strings.ReplaceAll(accountDigits.FindString(text), "-", "")
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	if digits == "" {
		return bank
	}
	return bank + "-" + digits
}

// cell returns the field at idx, or "" when the row is short.
func cell(rec []string, idx int) string {
	if idx >= 0 && idx < len(rec) {
		return rec[idx]
	}
	return ""
}

func isBlankRow(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
