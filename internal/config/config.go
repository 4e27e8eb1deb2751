// Package config loads the optional cellnote.yaml configuration file and
// resolves it against built-in defaults. Command-line flags override the
// file; the file overrides the built-ins.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cellnote/cellnote/core/backup"
	"github.com/cellnote/cellnote/core/errors"
	"github.com/cellnote/cellnote/core/style"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "cellnote.yaml"

// Built-in defaults used when neither flag nor file sets a value.
const (
	DefaultLedgerPath = "cellnote.db"
	DefaultServerAddr = "localhost:8799"
)

// Config represents the optional cellnote.yaml configuration.
type Config struct {
	Style  StyleConfig  `yaml:"style"`
	Ledger LedgerConfig `yaml:"ledger"`
	Backup BackupConfig `yaml:"backup"`
	Server ServerConfig `yaml:"server"`
}

// StyleConfig sets the default annotation style.
type StyleConfig struct {
	Font      string `yaml:"font,omitempty"`
	Size      int    `yaml:"size,omitempty"`
	Color     string `yaml:"color,omitempty"`
	Bold      bool   `yaml:"bold,omitempty"`
	Italic    bool   `yaml:"italic,omitempty"`
	Underline bool   `yaml:"underline,omitempty"`
	Script    string `yaml:"script,omitempty"`
}

// LedgerConfig enables the annotation audit ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// BackupConfig controls pre-mutation snapshots. Backups are on unless
// disabled.
type BackupConfig struct {
	Disabled    bool   `yaml:"disabled,omitempty"`
	Compression string `yaml:"compression,omitempty"`
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Resolved contains resolved configuration values. The style keeps unset
// fields zero so flags can still fill them before normalization.
type Resolved struct {
	Style             style.Style
	LedgerEnabled     bool
	LedgerPath        string
	BackupEnabled     bool
	BackupCompression backup.Compression
	ServerAddr        string
}

// LoadOptional reads cellnote.yaml from dir if present. A missing file
// yields an empty configuration, not an error.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, errors.NewIO("read", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &errors.ParseError{Format: "yaml", Path: path, Message: err.Error(), Err: err}
	}
	return &cfg, nil
}

// Resolve loads cellnote.yaml from dir (if present) and resolves defaults.
func Resolve(dir string) (*Resolved, error) {
	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	return cfg.Resolve()
}

// Resolve validates the configuration and fills defaults.
func (c *Config) Resolve() (*Resolved, error) {
	st := style.Style{
		Font:      strings.TrimSpace(c.Style.Font),
		Size:      c.Style.Size,
		Bold:      c.Style.Bold,
		Italic:    c.Style.Italic,
		Underline: c.Style.Underline,
		Script:    style.Script(strings.TrimSpace(c.Style.Script)),
	}
	if c.Style.Size < 0 {
		return nil, errors.NewValidation("style.size", "point size must not be negative")
	}
	if !st.Script.Valid() {
		return nil, errors.NewValidation("style.script",
			"must be one of none, superscript, subscript")
	}
	if color := strings.TrimSpace(c.Style.Color); color != "" {
		normalized, err := style.NormalizeColor(color)
		if err != nil {
			return nil, err
		}
		st.Color = normalized
	}

	compression, err := backup.ParseCompression(strings.TrimSpace(c.Backup.Compression))
	if err != nil {
		return nil, err
	}

	ledgerPath := strings.TrimSpace(c.Ledger.Path)
	if ledgerPath == "" {
		ledgerPath = DefaultLedgerPath
	}

	addr := strings.TrimSpace(c.Server.Addr)
	if addr == "" {
		addr = DefaultServerAddr
	}

	return &Resolved{
		Style:             st,
		LedgerEnabled:     c.Ledger.Enabled,
		LedgerPath:        ledgerPath,
		BackupEnabled:     !c.Backup.Disabled,
		BackupCompression: compression,
		ServerAddr:        addr,
	}, nil
}
