// Package config handles global kb configuration and per-KB settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultSearchLimit is used when [search] limit is unset or not positive.
const DefaultSearchLimit = 20

// Config represents the global kb configuration (config.toml).
type Config struct {
	// DefaultKB is the name of the default knowledge base (from KBs).
	DefaultKB string `toml:"default_kb"`

	// KBs maps knowledge-base names to directories.
	KBs map[string]string `toml:"kbs"`

	Search       SearchConfig     `toml:"search"`
	Sync         SyncConfig       `toml:"sync"`
	Capabilities CapabilityConfig `toml:"capabilities"`
	UI           UIConfig         `toml:"ui"`
}

// SearchConfig controls the search command.
type SearchConfig struct {
	Limit int `toml:"limit"`
}

// SyncConfig controls where auto-sync publishes entries.
type SyncConfig struct {
	// Target is the shared repository directory entries are copied into.
	Target string `toml:"target"`

	// Commit creates a git commit in Target after each sync when Target is a git work tree.
	Commit *bool `toml:"commit"`
}

// CapabilityConfig toggles the optional collaborators. Unset means enabled.
type CapabilityConfig struct {
	Metadata *bool `toml:"metadata"`
	Usage    *bool `toml:"usage"`
	Changes  *bool `toml:"changes"`
}

// UIConfig represents optional CLI theming preferences.
type UIConfig struct {
	// Accent is an optional accent color: ANSI codes ("0" to "255") or hex ("#RRGGBB").
	Accent string `toml:"accent"`
}

// GetKBPath returns the path for a named knowledge base.
// If name is empty, returns the default knowledge base path.
func (c *Config) GetKBPath(name string) (string, error) {
	if name == "" {
		name = c.DefaultKB
	}
	if name == "" {
		return "", fmt.Errorf("no default knowledge base configured")
	}
	if path, ok := c.KBs[name]; ok {
		return expandHome(path), nil
	}
	return "", fmt.Errorf("knowledge base '%s' not found in config", name)
}

// SearchLimit returns the configured result limit.
func (c *Config) SearchLimit() int {
	if c.Search.Limit > 0 {
		return c.Search.Limit
	}
	return DefaultSearchLimit
}

// SyncCommit reports whether auto-sync should commit in git targets (default: true).
func (c *Config) SyncCommit() bool {
	return c.Sync.Commit == nil || *c.Sync.Commit
}

// CapabilityEnabled reports whether the named capability is enabled.
func (c *Config) CapabilityEnabled(name string) bool {
	var flag *bool
	switch name {
	case "metadata":
		flag = c.Capabilities.Metadata
	case "usage":
		flag = c.Capabilities.Usage
	case "changes":
		flag = c.Capabilities.Changes
	}
	return flag == nil || *flag
}

// Load loads the configuration from the default location.
// Returns a default config if the file doesn't exist.
func Load() (*Config, error) {
	configPath := DefaultPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &Config{}, nil
	}

	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from a specific path.
func LoadFrom(path string) (*Config, error) {
	var config Config
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &config, nil
}

// DefaultPath returns the default config file path.
// Checks ~/.config/kb/config.toml first (XDG style),
// then falls back to the OS-specific location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "kb", "config.toml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "kb", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}

// ResolveConfigPath returns the explicit path when given, else DefaultPath.
func ResolveConfigPath(explicit string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	return DefaultPath()
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
