package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override configuration.
const (
	EnvKBPath     = "KB_PATH"
	EnvSyncTarget = "KB_SYNC_TARGET"
	EnvLogLevel   = "KB_LOG_LEVEL"
)

// LoadDotEnv loads a .env file from the working directory when present.
// Variables already set in the environment take precedence.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// EnvKBPathValue returns the KB_PATH override, if any.
func EnvKBPathValue() string {
	return strings.TrimSpace(os.Getenv(EnvKBPath))
}

// EnvLogLevelValue returns the lowercased KB_LOG_LEVEL value.
func EnvLogLevelValue() string {
	return strings.ToLower(strings.TrimSpace(os.Getenv(EnvLogLevel)))
}

// ResolveSyncTarget returns the sync target for a KB: KB_SYNC_TARGET first,
// then the kb.yaml override, then the global config. Relative kb.yaml targets
// resolve against the KB root.
func ResolveSyncTarget(cfg *Config, kbCfg *KBConfig, root string) string {
	if v := strings.TrimSpace(os.Getenv(EnvSyncTarget)); v != "" {
		return expandHome(v)
	}
	if kbCfg != nil && strings.TrimSpace(kbCfg.SyncTarget) != "" {
		target := expandHome(kbCfg.SyncTarget)
		if !filepath.IsAbs(target) {
			target = filepath.Join(root, target)
		}
		return target
	}
	if cfg != nil {
		return expandHome(strings.TrimSpace(cfg.Sync.Target))
	}
	return ""
}
