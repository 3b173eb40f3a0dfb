// Package config loads the glossync YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no -config flag is given.
const DefaultPath = "glossync.yaml"

// Ledger backends.
const (
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

// Configuration validation errors.
var (
	ErrUnknownBackend       = errors.New("ledger.backend must be one of: sqlite, sheets, memory")
	ErrMissingSpreadsheetID = errors.New("ledger.spreadsheet_id is required for the sheets backend")
	ErrMissingSheetName     = errors.New("ledger.sheet_name is required for the sheets backend")
	ErrInvalidTimeout       = errors.New("collect.timeout_sec must be at least 1")
	ErrInvalidDelay         = errors.New("collect.delay_ms must be non-negative")
	ErrInvalidConcurrency   = errors.New("collect.concurrency must be at least 1")
	ErrInvalidMaxLength     = errors.New("normalize.max_length must be at least 1")
	ErrInvalidDetailCap     = errors.New("detail page caps must be non-negative")
	ErrNoEnabledSources     = errors.New("at least one source must be enabled")
)

// Config is the root configuration.
type Config struct {
	Ledger      LedgerConfig      `yaml:"ledger"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Collect     CollectConfig     `yaml:"collect"`
	Sources     SourcesConfig     `yaml:"sources"`
	Normalize   NormalizeConfig   `yaml:"normalize"`
	Server      ServerConfig      `yaml:"server"`
}

// LedgerConfig selects where canonical rows are stored.
type LedgerConfig struct {
	Backend       string `yaml:"backend"`
	SQLitePath    string `yaml:"sqlite_path"`
	SpreadsheetID string `yaml:"spreadsheet_id"`
	SheetName     string `yaml:"sheet_name"`
}

// CredentialsConfig lists where store credentials are looked up, in order.
type CredentialsConfig struct {
	Files []string `yaml:"files"`
	Env   string   `yaml:"env"`
}

// CollectConfig holds fetch settings shared by all collectors.
type CollectConfig struct {
	TimeoutSec    int    `yaml:"timeout_sec"`
	DelayMs       int    `yaml:"delay_ms"`
	Concurrency   int    `yaml:"concurrency"`
	InferReadings bool   `yaml:"infer_readings"`
	UserAgent     string `yaml:"user_agent"`
}

// Timeout returns the per-fetch timeout.
func (c CollectConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Delay returns the politeness delay before each fetch.
func (c CollectConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// SourcesConfig configures each collector variant.
type SourcesConfig struct {
	SMBC    SourceConfig `yaml:"smbc"`
	Okasan  SourceConfig `yaml:"okasan"`
	Rakuten SourceConfig `yaml:"rakuten"`
}

// SourceConfig configures one collector. Enabled is a pointer so that an
// omitted key keeps the default instead of disabling the source.
type SourceConfig struct {
	Enabled    *bool  `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	MaxDetails int    `yaml:"max_details"`
}

// IsEnabled reports whether the source should run.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// NormalizeConfig configures the rephrasing stage.
type NormalizeConfig struct {
	MaxLength int `yaml:"max_length"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	TCPAddr      string        `yaml:"tcp_addr"`
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// Load reads a config from path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			Backend:   BackendSQLite,
			SheetName: "シート1",
		},
		Credentials: CredentialsConfig{
			Files: []string{"service-account.json", "~/.glossync/service-account.json"},
			Env:   "GOOGLE_SERVICE_ACCOUNT_JSON",
		},
		Collect: CollectConfig{
			TimeoutSec:  15,
			DelayMs:     1000,
			Concurrency: 1,
		},
		Sources: SourcesConfig{
			Okasan:  SourceConfig{MaxDetails: 50},
			Rakuten: SourceConfig{MaxDetails: 20},
		},
		Normalize: NormalizeConfig{MaxLength: 300},
		Server: ServerConfig{
			Addr:    ":8080",
			TCPAddr: ":7070",
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GLOSSYNC_LEDGER"); v != "" {
		cfg.Ledger.Backend = v
	}
	if v := os.Getenv("GLOSSYNC_DB_PATH"); v != "" {
		cfg.Ledger.SQLitePath = v
	}
	if v := os.Getenv("GLOSSYNC_SPREADSHEET_ID"); v != "" {
		cfg.Ledger.SpreadsheetID = v
	}
	if v := os.Getenv("GLOSSYNC_SHEET"); v != "" {
		cfg.Ledger.SheetName = v
	}
}

func applyDefaults(cfg *Config) {
	cfg.Ledger.Backend = strings.ToLower(strings.TrimSpace(cfg.Ledger.Backend))
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = BackendSQLite
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.TCPAddr == "" {
		cfg.Server.TCPAddr = ":7070"
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Ledger.Backend {
	case BackendSQLite, BackendMemory:
	case BackendSheets:
		if c.Ledger.SpreadsheetID == "" {
			return ErrMissingSpreadsheetID
		}
		if c.Ledger.SheetName == "" {
			return ErrMissingSheetName
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Ledger.Backend)
	}

	if c.Collect.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}
	if c.Collect.DelayMs < 0 {
		return ErrInvalidDelay
	}
	if c.Collect.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Normalize.MaxLength < 1 {
		return ErrInvalidMaxLength
	}
	if c.Sources.Okasan.MaxDetails < 0 || c.Sources.Rakuten.MaxDetails < 0 {
		return ErrInvalidDetailCap
	}
	if !c.Sources.SMBC.IsEnabled() && !c.Sources.Okasan.IsEnabled() && !c.Sources.Rakuten.IsEnabled() {
		return ErrNoEnabledSources
	}
	return nil
}
