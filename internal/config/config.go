// Package config manages folio configuration and the .folio directory.
// It handles loading, saving, and initializing a content workspace.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	FolioDir       = ".folio"
	ConfigFile     = "config"
	LedgerFile     = "ledger.db"
	DefaultContent = "content.db"
	PlansDir       = "plans"
)

// Content backends.
const (
	BackendSQLite   = "sqlite"
	BackendWeaviate = "weaviate"
)

// Config represents the folio configuration
type Config struct {
	Backend        string `toml:"backend"`
	ContentDB      string `toml:"content_db,omitempty"` // relative paths resolve against .folio
	WeaviateURL    string `toml:"weaviate_url,omitempty"`
	ServerVersion  string `toml:"server_version,omitempty"` // Detected Weaviate server version on init
	RedisAddr      string `toml:"redis_addr,omitempty"`
	RedisChannel   string `toml:"redis_channel,omitempty"`
	LogMode        string `toml:"log_mode,omitempty"`
	StaleAfterDays int    `toml:"stale_after_days,omitempty"`
	SnapshotLimit  int    `toml:"snapshot_limit,omitempty"`
	path           string // path to .folio directory
}

// InitOptions are the values chosen at `folio init`.
type InitOptions struct {
	Backend     string
	WeaviateURL string
	RedisAddr   string
}

// FindRoot finds the .folio directory by walking up from the current directory
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindRootFrom(dir)
}

// FindRootFrom finds the .folio directory by walking up from dir
func FindRootFrom(dir string) (string, error) {
	for {
		folioPath := filepath.Join(dir, FolioDir)
		if info, err := os.Stat(folioPath); err == nil && info.IsDir() {
			return folioPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a folio workspace (or any parent up to root)")
		}
		dir = parent
	}
}

// Load loads the configuration from the nearest .folio directory
func Load() (*Config, error) {
	folioPath, err := FindRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(folioPath)
}

// LoadFrom loads the configuration from a .folio directory
func LoadFrom(folioPath string) (*Config, error) {
	configPath := filepath.Join(folioPath, ConfigFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendSQLite
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.path = folioPath
	return &cfg, nil
}

// Validate checks backend settings.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
	case BackendWeaviate:
		if c.WeaviateURL == "" {
			return fmt.Errorf("weaviate backend requires weaviate_url")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendSQLite, BackendWeaviate)
	}
	if c.StaleAfterDays < 0 || c.SnapshotLimit < 0 {
		return fmt.Errorf("stale_after_days and snapshot_limit must not be negative")
	}
	return nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	configPath := filepath.Join(c.path, ConfigFile)
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// FolioPath returns the path to the .folio directory
func (c *Config) FolioPath() string {
	return c.path
}

// LedgerPath returns the path to the bbolt plan and change ledger
func (c *Config) LedgerPath() string {
	return filepath.Join(c.path, LedgerFile)
}

// ContentDBPath returns the path to the SQLite content database
func (c *Config) ContentDBPath() string {
	name := c.ContentDB
	if name == "" {
		name = DefaultContent
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.path, name)
}

// PlansPath returns the directory where saved plan files are archived
func (c *Config) PlansPath() string {
	return filepath.Join(c.path, PlansDir)
}

// StaleAfter returns the staleness threshold, zero when unset.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterDays) * 24 * time.Hour
}

// Initialize creates a new .folio directory in the current directory
func Initialize(opts InitOptions) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return InitializeAt(cwd, opts)
}

// InitializeAt creates a new .folio directory under dir
func InitializeAt(dir string, opts InitOptions) (*Config, error) {
	folioPath := filepath.Join(dir, FolioDir)

	// Check if already initialized
	if _, err := os.Stat(folioPath); err == nil {
		return nil, fmt.Errorf("folio workspace already exists")
	}

	backend := opts.Backend
	if backend == "" {
		backend = BackendSQLite
	}
	cfg := &Config{
		Backend:     backend,
		WeaviateURL: opts.WeaviateURL,
		RedisAddr:   opts.RedisAddr,
		path:        folioPath,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(folioPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .folio directory: %w", err)
	}
	if err := os.MkdirAll(cfg.PlansPath(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create plans directory: %w", err)
	}

	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(folioPath)
		return nil, err
	}

	return cfg, nil
}

// SupportsSorting returns true if the Weaviate server can sort Get queries
func (c *Config) SupportsSorting() bool {
	if c.ServerVersion == "" {
		// Assume a modern server if version unknown
		return true
	}

	var major, minor int
	_, err := fmt.Sscanf(c.ServerVersion, "%d.%d", &major, &minor)
	if err != nil {
		return true
	}

	// Sorting in Get queries requires Weaviate 1.13+
	return major > 1 || (major == 1 && minor >= 13)
}
