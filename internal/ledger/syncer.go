package ledger

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/bankpull-dev/bankpull/internal/model"
)

// MappingEntry pairs a source account label with the ledger account name
// its transactions are imported into.
type MappingEntry struct {
	Source string `yaml:"source"`
	Ledger string `yaml:"ledger"`
}

// Mapping is the ordered source-to-ledger account mapping. Only source
// accounts listed here are forwarded; everything else is dropped at this
// boundary, not during parsing.
type Mapping []MappingEntry

// ConfigError reports a configured destination account that does not
// exist in the ledger. It invalidates every submission, so the sync
// aborts before anything is sent.
type ConfigError struct {
	Account string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ledger account %q not found", e.Account)
}

// AccountResult is the outcome of one account's submission.
type AccountResult struct {
	Source    string
	Ledger    string
	Submitted int
	Added     int
	Updated   int
	Err       error
}

// Syncer drives one ledger import pass per batch.
type Syncer struct {
	log zerolog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(log zerolog.Logger) *Syncer {
	return &Syncer{log: log}
}

// Sync resolves the account mapping against the ledger's account list,
// groups transactions by source account, and submits each mapped account.
// A failed submission does not stop the others; their errors are
// collected and returned together. A mapping that names a missing ledger
// account fails the whole pass up front.
func (s *Syncer) Sync(client Client, mapping Mapping, txns []model.Transaction) ([]AccountResult, error) {
	accounts, err := client.Accounts()
	if err != nil {
		return nil, fmt.Errorf("listing ledger accounts: %w", err)
	}

	byName := make(map[string]string, len(accounts))
	for _, a := range accounts {
		byName[a.Name] = a.ID
	}

	// Resolve every destination before submitting anything.
	resolved := make(map[string]string, len(mapping))
	for _, entry := range mapping {
		id, ok := byName[entry.Ledger]
		if !ok {
			return nil, &ConfigError{Account: entry.Ledger}
		}
		resolved[entry.Source] = id
	}

	grouped := groupByAccount(txns)

	var results []AccountResult
	var errs error
	for _, entry := range mapping {
		group := grouped[entry.Source]
		if len(group) == 0 {
			continue
		}

		records := ConvertAll(group)
		res := AccountResult{
			Source:    entry.Source,
			Ledger:    entry.Ledger,
			Submitted: len(records),
		}

		imported, err := client.ImportTransactions(resolved[entry.Source], records)
		if err != nil {
			res.Err = err
			errs = multierr.Append(errs, fmt.Errorf("account %s: %w", entry.Source, err))
			s.log.Error().Err(err).Str("account", entry.Source).Msg("ledger import failed")
		} else {
			res.Added = imported.Added
			res.Updated = imported.Updated
			s.log.Info().
				Str("account", entry.Source).
				Int("submitted", res.Submitted).
				Int("added", res.Added).
				Int("updated", res.Updated).
				Msg("ledger import done")
		}
		results = append(results, res)
	}

	return results, errs
}

// groupByAccount buckets transactions by source account, preserving
// their order within each bucket.
func groupByAccount(txns []model.Transaction) map[string][]model.Transaction {
	grouped := make(map[string][]model.Transaction)
	for _, txn := range txns {
		grouped[txn.Account] = append(grouped[txn.Account], txn)
	}
	return grouped
}
