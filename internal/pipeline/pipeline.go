// Package pipeline runs one batch: scan the drop directory, parse every
// raw export, aggregate, write artifacts, and optionally push the mapped
// accounts to the ledger.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/bankpull-dev/bankpull/internal/config"
	"github.com/bankpull-dev/bankpull/internal/export"
	"github.com/bankpull-dev/bankpull/internal/ledger"
	"github.com/bankpull-dev/bankpull/internal/model"
	"github.com/bankpull-dev/bankpull/internal/parser"
)

// parseLimit bounds how many raw documents are parsed at once.
const parseLimit = 4

// SourceResult is the outcome of parsing one raw document.
type SourceResult struct {
	File  string
	Bank  string
	Count int
	Err   error
}

// Result is the outcome of one batch. LedgerErr is set when the ledger
// step failed as a whole: worker start failure, a configuration error,
// or any rejected submission.
type Result struct {
	Transactions []model.Transaction
	Sources      []SourceResult
	Accounts     []ledger.AccountResult
	LedgerErr    error
}

// Pipeline wires the parsers, exporter and ledger adapter together.
type Pipeline struct {
	cfg      *config.Config
	registry *parser.Registry
	log      zerolog.Logger

	// newClient is swapped out in tests.
	newClient func() (ledger.Client, error)
}

// New creates a Pipeline for a configuration.
func New(cfg *config.Config, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		registry: parser.DefaultRegistry(),
		log:      log,
		newClient: func() (ledger.Client, error) {
			return ledger.NewBridge(ledger.ConnectParams{
				DataDir:   cfg.Ledger.DataDir,
				ServerURL: cfg.Ledger.ServerURL,
				Password:  cfg.Ledger.Password,
				SyncID:    cfg.Ledger.SyncID,
			})
		},
	}
}

// Run executes one batch rooted at workspace. Parser failures are
// recorded per source and do not stop the batch; ledger configuration
// errors abort before any submission. The returned error is the overall
// run verdict: non-nil when any source or account failed.
func (p *Pipeline) Run(ctx context.Context, workspace string, syncLedger bool) (*Result, error) {
	files, err := parser.Scan(workspace)
	if err != nil {
		return nil, err
	}

	type job struct {
		file parser.FileInfo
		bank string
	}
	var jobs []job
	for _, f := range files {
		bank, ok := p.matchSource(f.Name)
		if !ok {
			p.log.Warn().Str("file", f.Name).Msg("no source matches file, skipping")
			continue
		}
		jobs = append(jobs, job{file: f, bank: bank})
	}

	exportsDir := filepath.Join(workspace, p.cfg.Workspace.ExportsDir)

	// Parsers are pure, so documents parse in parallel. Results land in
	// per-job slots to keep concatenation order deterministic.
	results := make([]SourceResult, len(jobs))
	parsed := make([][]model.Transaction, len(jobs))
	var mkdirOnce sync.Once

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(parseLimit)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			results[i] = SourceResult{File: j.file.Name, Bank: j.bank}

			raw, err := os.ReadFile(j.file.Path)
			if err != nil {
				results[i].Err = fmt.Errorf("reading %s: %w", j.file.Name, err)
				return nil
			}

			ps := p.registry.Get(j.bank)
			if ps == nil {
				results[i].Err = fmt.Errorf("no parser for bank %q", j.bank)
				return nil
			}

			txns, err := ps.Parse(raw)
			if err != nil {
				results[i].Err = fmt.Errorf("parsing %s: %w", j.file.Name, err)
				return nil
			}
			if verrs := model.Validate(txns); len(verrs) > 0 {
				msgs := make([]string, len(verrs))
				for k, ve := range verrs {
					msgs[k] = ve.Error()
				}
				results[i].Err = fmt.Errorf("validating %s: %s", j.file.Name, strings.Join(msgs, "; "))
				return nil
			}
			parsed[i] = txns
			results[i].Count = len(txns)

			// Markup exports also archive a delimited rendering of the
			// settled rows.
			if rz, ok := ps.(parser.Reserializer); ok {
				data, err := rz.Reserialize(raw)
				if err != nil {
					results[i].Err = fmt.Errorf("reserializing %s: %w", j.file.Name, err)
					return nil
				}
				mkdirOnce.Do(func() { _ = os.MkdirAll(exportsDir, 0o755) })
				name := strings.TrimSuffix(j.file.Name, filepath.Ext(j.file.Name)) + ".csv"
				if err := os.WriteFile(filepath.Join(exportsDir, name), data, 0o644); err != nil {
					results[i].Err = fmt.Errorf("writing archive %s: %w", name, err)
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{Sources: results}
	var errs error
	for i, sr := range results {
		if sr.Err != nil {
			p.log.Error().Err(sr.Err).Str("file", sr.File).Msg("source failed")
			errs = multierr.Append(errs, sr.Err)
			continue
		}
		result.Transactions = append(result.Transactions, parsed[i]...)
	}

	if err := export.WriteFiles(exportsDir, result.Transactions); err != nil {
		return result, multierr.Append(errs, err)
	}

	if syncLedger && len(result.Transactions) > 0 {
		client, err := p.newClient()
		if err != nil {
			result.LedgerErr = fmt.Errorf("starting ledger worker: %w", err)
			return result, multierr.Append(errs, result.LedgerErr)
		}
		defer client.Close()

		accounts, err := ledger.NewSyncer(p.log).Sync(client, p.cfg.Accounts, result.Transactions)
		result.Accounts = accounts
		if err != nil {
			// A ConfigError arrives here too; it aborted the sync before
			// any submission and fails the run outright.
			result.LedgerErr = err
			errs = multierr.Append(errs, err)
		}
	}

	return result, errs
}

// matchSource returns the bank whose configured glob matches a file name.
func (p *Pipeline) matchSource(name string) (string, bool) {
	for _, src := range p.cfg.Sources {
		ok, err := filepath.Match(src.FileGlob, name)
		if err == nil && ok {
			return src.Bank, true
		}
	}
	return "", false
}
