// Package export produces the persisted views of an aggregated
// transaction batch: a combined CSV sorted newest-first and a YAML
// snapshot sorted oldest-first.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bankpull-dev/bankpull/internal/model"
)

// Header is the CSV header for the combined export.
const Header = "date,description,amount,account,status"

const (
	numFields  = 5
	dateFormat = "2006-01-02"
	colDate    = 0
	colDesc    = 1
	colAmount  = 2
	colAccount = 3
	colStatus  = 4
)

// CombinedName and SnapshotName are the artifact file names under the
// exports directory.
const (
	CombinedName = "combined.csv"
	SnapshotName = "transactions.yaml"
)

// MarshalTransaction converts a Transaction to a combined-export row.
func MarshalTransaction(t model.Transaction) []string {
	row := make([]string, numFields)
	row[colDate] = t.Date.Format(dateFormat)
	row[colDesc] = t.Description
	row[colAmount] = t.SignedAmount().StringFixed(2)
	row[colAccount] = t.Account
	row[colStatus] = t.Status()
	return row
}

// WriteCombined writes the date-descending CSV view, including header.
func WriteCombined(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, txn := range sortByDate(txns, false) {
		if err := cw.Write(MarshalTransaction(txn)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// snapshotEntry is one transaction in the YAML snapshot.
type snapshotEntry struct {
	Date        string `yaml:"date"`
	Description string `yaml:"description"`
	Amount      string `yaml:"amount"`
	Account     string `yaml:"account"`
	Pending     bool   `yaml:"pending"`
}

// snapshot is the YAML snapshot document.
type snapshot struct {
	Transactions []snapshotEntry `yaml:"transactions"`
}

// WriteSnapshot writes the date-ascending YAML view of the same set.
func WriteSnapshot(w io.Writer, txns []model.Transaction) error {
	doc := snapshot{Transactions: make([]snapshotEntry, 0, len(txns))}
	for _, txn := range sortByDate(txns, true) {
		doc.Transactions = append(doc.Transactions, snapshotEntry{
			Date:        txn.Date.Format(dateFormat),
			Description: txn.Description,
			Amount:      txn.SignedAmount().StringFixed(2),
			Account:     txn.Account,
			Pending:     txn.IsPending,
		})
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// WriteFiles writes both artifacts under dir, creating it if needed.
// An empty batch writes nothing and is not an error.
func WriteFiles(dir string, txns []model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating exports dir: %w", err)
	}

	combined, err := os.Create(filepath.Join(dir, CombinedName))
	if err != nil {
		return fmt.Errorf("creating combined export: %w", err)
	}
	defer combined.Close()
	if err := WriteCombined(combined, txns); err != nil {
		return fmt.Errorf("writing combined export: %w", err)
	}

	snap, err := os.Create(filepath.Join(dir, SnapshotName))
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer snap.Close()
	if err := WriteSnapshot(snap, txns); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// sortByDate returns a sorted copy. The sort is stable: transactions on
// the same date keep their concatenation order from parsing.
func sortByDate(txns []model.Transaction, ascending bool) []model.Transaction {
	sorted := make([]model.Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		if ascending {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Date.After(sorted[j].Date)
	})
	return sorted
}
