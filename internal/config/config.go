package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bankpull-dev/bankpull/internal/ledger"
)

// passwordEnv is the environment variable holding the ledger password.
// The password never lives in bankpull.yaml.
const passwordEnv = "BANKPULL_LEDGER_PASSWORD"

// Config represents the top-level bankpull.yaml configuration.
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Sources   []Source        `yaml:"sources,omitempty"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Accounts  ledger.Mapping  `yaml:"accounts,omitempty"`
}

// WorkspaceConfig locates the working directories and files.
type WorkspaceConfig struct {
	ExportsDir string `yaml:"exports_dir"`
	HistoryDB  string `yaml:"history_db"`
}

// Source ties dropped export files to the parser that reads them.
type Source struct {
	Bank     string `yaml:"bank"`      // parser name, e.g. "dbs"
	FileGlob string `yaml:"file_glob"` // matched against file names in import/
}

// LedgerConfig carries the connection parameters handed to the ledger
// worker. They are opaque to the pipeline.
type LedgerConfig struct {
	DataDir   string `yaml:"data_dir"`
	ServerURL string `yaml:"server_url"`
	SyncID    string `yaml:"sync_id"`
	Password  string `yaml:"-"` // from BANKPULL_LEDGER_PASSWORD
}

// Load reads a bankpull.yaml file from disk. A .env file next to it is
// loaded first, if present, to supply the ledger password; the workspace
// owns its secrets regardless of where the command runs.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Ledger.Password = os.Getenv(passwordEnv)
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new workspace.
func Default() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			ExportsDir: "exports",
			HistoryDB:  "bankpull.db",
		},
		Sources: []Source{
			{Bank: "dbs", FileGlob: "dbs*.csv"},
			{Bank: "uob", FileGlob: "uob*.html"},
		},
		Ledger: LedgerConfig{
			DataDir:   ".ledger-cache",
			ServerURL: "http://localhost:5006",
		},
	}
}

// Validate checks the parts of the configuration every run needs.
func (c *Config) Validate() error {
	if c.Workspace.ExportsDir == "" {
		return fmt.Errorf("workspace.exports_dir is required")
	}
	for i, src := range c.Sources {
		if src.Bank == "" {
			return fmt.Errorf("sources[%d]: bank is required", i)
		}
		if src.FileGlob == "" {
			return fmt.Errorf("sources[%d]: file_glob is required", i)
		}
	}
	for i, entry := range c.Accounts {
		if entry.Source == "" || entry.Ledger == "" {
			return fmt.Errorf("accounts[%d]: source and ledger are required", i)
		}
	}
	return nil
}

// ValidateLedger checks the fields needed to open a ledger session.
func (c *Config) ValidateLedger() error {
	if c.Ledger.ServerURL == "" {
		return fmt.Errorf("ledger.server_url is required")
	}
	if c.Ledger.SyncID == "" {
		return fmt.Errorf("ledger.sync_id is required")
	}
	if c.Ledger.Password == "" {
		return fmt.Errorf("%s is not set", passwordEnv)
	}
	return nil
}
