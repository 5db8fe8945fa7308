package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// KBConfigFile is the per-KB settings file at the KB root.
const KBConfigFile = "kb.yaml"

// KBConfig represents knowledge-base level configuration from kb.yaml.
type KBConfig struct {
	// RequiredFields lists front-matter keys every entry must carry (default: [title]).
	RequiredFields []string `yaml:"required_fields,omitempty"`

	// Types restricts the allowed values of the `type` field. Empty allows any type.
	Types []string `yaml:"types,omitempty"`

	// DateFields lists keys whose values must be dates (default: date, created, updated).
	DateFields []string `yaml:"date_fields,omitempty"`

	// SyncTarget overrides the global [sync] target for this KB.
	SyncTarget string `yaml:"sync_target,omitempty"`
}

var (
	defaultRequiredFields = []string{"title"}
	defaultDateFields     = []string{"date", "created", "updated"}
)

// LoadKBConfig loads kb.yaml from the KB root. A missing file yields defaults.
func LoadKBConfig(root string) (*KBConfig, error) {
	path := filepath.Join(root, KBConfigFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &KBConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", KBConfigFile, err)
	}

	var cfg KBConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", KBConfigFile, err)
	}
	return &cfg, nil
}

// GetRequiredFields returns the required front-matter keys with defaults applied.
// An explicit empty list in kb.yaml is not distinguishable from unset, so
// `required_fields: []` still yields the default.
func (c *KBConfig) GetRequiredFields() []string {
	if c == nil || len(c.RequiredFields) == 0 {
		return defaultRequiredFields
	}
	return c.RequiredFields
}

// GetDateFields returns the date-typed keys with defaults applied.
func (c *KBConfig) GetDateFields() []string {
	if c == nil || len(c.DateFields) == 0 {
		return defaultDateFields
	}
	return c.DateFields
}

// AllowsType reports whether t is an acceptable entry type.
func (c *KBConfig) AllowsType(t string) bool {
	if c == nil || len(c.Types) == 0 || t == "" {
		return true
	}
	for _, allowed := range c.Types {
		if allowed == t {
			return true
		}
	}
	return false
}
