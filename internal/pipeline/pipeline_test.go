package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankpull-dev/bankpull/internal/config"
	"github.com/bankpull-dev/bankpull/internal/export"
	"github.com/bankpull-dev/bankpull/internal/ledger"
	"github.com/bankpull-dev/bankpull/internal/logger"
)

type fakeClient struct {
	accounts []ledger.Account
	imported map[string][]ledger.Record
}

func (f *fakeClient) Accounts() ([]ledger.Account, error) { return f.accounts, nil }

func (f *fakeClient) ImportTransactions(accountID string, records []ledger.Record) (ledger.ImportResult, error) {
	if f.imported == nil {
		f.imported = make(map[string][]ledger.Record)
	}
	f.imported[accountID] = append(f.imported[accountID], records...)
	return ledger.ImportResult{Added: len(records)}, nil
}

func (f *fakeClient) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Workspace: config.WorkspaceConfig{ExportsDir: "exports"},
		Sources: []config.Source{
			{Bank: "dbs", FileGlob: "dbs*.csv"},
			{Bank: "uob", FileGlob: "uob*.html"},
		},
	}
}

func setupWorkspace(t *testing.T, fixtures ...string) string {
	t.Helper()
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	for _, name := range fixtures {
		data, err := os.ReadFile(filepath.Join("../../testdata", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(importDir, name), data, 0o644))
	}
	return dir
}

func newTestPipeline(cfg *config.Config) *Pipeline {
	return New(cfg, logger.NewWithWriter(discard{}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestRun_ParsesAndWritesArtifacts(t *testing.T) {
	dir := setupWorkspace(t, "dbs_savings.csv", "uob_history.html")
	p := newTestPipeline(testConfig())

	result, err := p.Run(context.Background(), dir, false)
	require.NoError(t, err)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, 4, result.Sources[0].Count)
	assert.Equal(t, 4, result.Sources[1].Count)
	assert.Len(t, result.Transactions, 8)

	exportsDir := filepath.Join(dir, "exports")

	combined, err := os.ReadFile(filepath.Join(exportsDir, export.CombinedName))
	require.NoError(t, err)
	assert.Contains(t, string(combined), "NTUC FAIRPRICE SINGAPORE SG")
	assert.Contains(t, string(combined), "GRAB *RIDE")

	_, err = os.Stat(filepath.Join(exportsDir, export.SnapshotName))
	require.NoError(t, err)

	// The markup export leaves behind a delimited archive without the
	// pending row.
	archive, err := os.ReadFile(filepath.Join(exportsDir, "uob_history.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(archive), "GIRO SP SERVICES")
	assert.NotContains(t, string(archive), "GRAB")
}

// A document that fails to parse is recorded against its source; the
// rest of the batch still goes through.
func TestRun_SourceFailureIsIsolated(t *testing.T) {
	dir := setupWorkspace(t, "dbs_savings.csv")
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "dbs_broken.csv"), []byte("not a statement"), 0o644))

	p := newTestPipeline(testConfig())
	result, err := p.Run(context.Background(), dir, false)
	require.Error(t, err)

	require.Len(t, result.Sources, 2)
	var failed, ok int
	for _, src := range result.Sources {
		if src.Err != nil {
			failed++
		} else {
			ok++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, ok)
	assert.Len(t, result.Transactions, 4)

	// The healthy source still made it into the combined export.
	combined, err := os.ReadFile(filepath.Join(dir, "exports", export.CombinedName))
	require.NoError(t, err)
	assert.Contains(t, string(combined), "CASH WITHDRAWAL")
}

func TestRun_EmptyWorkspaceIsNoOp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "import"), 0o755))

	p := newTestPipeline(testConfig())
	result, err := p.Run(context.Background(), dir, false)
	require.NoError(t, err)
	assert.Empty(t, result.Transactions)

	_, err = os.Stat(filepath.Join(dir, "exports", export.CombinedName))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_UnmatchedFilesAreSkipped(t *testing.T) {
	dir := setupWorkspace(t, "dbs_savings.csv")
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "mystery.csv"), []byte("data"), 0o644))

	p := newTestPipeline(testConfig())
	result, err := p.Run(context.Background(), dir, false)
	require.NoError(t, err)
	assert.Len(t, result.Sources, 1)
}

func TestRun_LedgerSync(t *testing.T) {
	dir := setupWorkspace(t, "dbs_savings.csv", "uob_history.html")

	cfg := testConfig()
	cfg.Accounts = ledger.Mapping{{Source: "dbs-6789", Ledger: "DBS Savings"}}

	client := &fakeClient{accounts: []ledger.Account{{ID: "a1", Name: "DBS Savings"}}}
	p := newTestPipeline(cfg)
	p.newClient = func() (ledger.Client, error) { return client, nil }

	result, err := p.Run(context.Background(), dir, true)
	require.NoError(t, err)
	assert.NoError(t, result.LedgerErr)

	// Only the mapped account was submitted; the UOB transactions still
	// appear in the aggregate.
	require.Len(t, result.Accounts, 1)
	assert.Equal(t, "dbs-6789", result.Accounts[0].Source)
	assert.Equal(t, 4, result.Accounts[0].Submitted)
	assert.Len(t, client.imported["a1"], 4)
	assert.Len(t, result.Transactions, 8)
}

// A mapping naming a missing ledger account fails the run before any
// submission happens.
func TestRun_LedgerConfigErrorAborts(t *testing.T) {
	dir := setupWorkspace(t, "dbs_savings.csv")

	cfg := testConfig()
	cfg.Accounts = ledger.Mapping{{Source: "dbs-6789", Ledger: "No Such Account"}}

	client := &fakeClient{accounts: []ledger.Account{{ID: "a1", Name: "DBS Savings"}}}
	p := newTestPipeline(cfg)
	p.newClient = func() (ledger.Client, error) { return client, nil }

	result, err := p.Run(context.Background(), dir, true)
	require.Error(t, err)

	var cfgErr *ledger.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, client.imported)
	assert.Empty(t, result.Accounts)
	assert.ErrorAs(t, result.LedgerErr, &cfgErr)
}

func TestRun_WorkerStartFailure(t *testing.T) {
	dir := setupWorkspace(t, "dbs_savings.csv")

	cfg := testConfig()
	cfg.Accounts = ledger.Mapping{{Source: "dbs-6789", Ledger: "DBS Savings"}}

	p := newTestPipeline(cfg)
	p.newClient = func() (ledger.Client, error) { return nil, errors.New("node not found") }

	result, err := p.Run(context.Background(), dir, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting ledger worker")
	assert.Error(t, result.LedgerErr)
}
