// Package history records sync runs in a local sqlite database. It is
// bookkeeping for the operator; import idempotency stays with the ledger.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_runs (
	id TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	transactions INTEGER NOT NULL,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_run_accounts (
	run_id TEXT NOT NULL REFERENCES sync_runs(id),
	account TEXT NOT NULL,
	submitted INTEGER NOT NULL,
	added INTEGER NOT NULL,
	updated INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_run_accounts_run ON sync_run_accounts(run_id);
`

// Run is one recorded sync run.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Transactions int
	Status       string // ok, partial or failed
}

// AccountOutcome is the per-account result of a run.
type AccountOutcome struct {
	RunID     string
	Account   string
	Submitted int
	Added     int
	Updated   int
	Error     string
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open opens the history database, creating the schema if needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RecordRun stores a run and its per-account outcomes atomically.
func (s *Store) RecordRun(run Run, outcomes []AccountOutcome) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning history tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sync_runs (id, started_at, finished_at, transactions, status) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Transactions, run.Status,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}

	for _, o := range outcomes {
		_, err = tx.Exec(
			`INSERT INTO sync_run_accounts (run_id, account, submitted, added, updated, error) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, o.Account, o.Submitted, o.Added, o.Updated, o.Error,
		)
		if err != nil {
			return fmt.Errorf("recording account outcome: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing history: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, transactions, status
		 FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Transactions, &r.Status); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Outcomes returns the per-account outcomes of a run.
func (s *Store) Outcomes(runID string) ([]AccountOutcome, error) {
	rows, err := s.db.Query(
		`SELECT run_id, account, submitted, added, updated, error
		 FROM sync_run_accounts WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []AccountOutcome
	for rows.Next() {
		var o AccountOutcome
		if err := rows.Scan(&o.RunID, &o.Account, &o.Submitted, &o.Added, &o.Updated, &o.Error); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
