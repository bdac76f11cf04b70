package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: CONNASCENCE_[SECTION]_[KEY] (e.g., CONNASCENCE_ANALYSIS_WORKERS).
func ApplyEnvOverrides(cfg *Config) {
	// Analysis
	setEnvString(&cfg.Analysis.Mode, "CONNASCENCE_ANALYSIS_MODE")
	setEnvInt(&cfg.Analysis.Workers, "CONNASCENCE_ANALYSIS_WORKERS")
	setEnvDuration(&cfg.Analysis.FileTimeout, "CONNASCENCE_ANALYSIS_FILE_TIMEOUT")

	setEnvInt(&cfg.Cache.MaxEntries, "CONNASCENCE_CACHE_MAX_ENTRIES")
	setEnvInt(&cfg.Pool.MaxPerCategory, "CONNASCENCE_POOL_MAX_PER_CATEGORY")
	setEnvDuration(&cfg.Watch.Debounce, "CONNASCENCE_WATCH_DEBOUNCE")

	// Policy
	setEnvString(&cfg.Policy.Mode, "CONNASCENCE_POLICY_MODE")
	if val, ok := os.LookupEnv("CONNASCENCE_POLICY_MIN_SCORE"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", "CONNASCENCE_POLICY_MIN_SCORE", "value", val)
			cfg.Policy.MinScore = &f
		}
	}

	// History
	setEnvBool(&cfg.History.Enabled, "CONNASCENCE_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "CONNASCENCE_HISTORY_PATH")
	setEnvString(&cfg.History.ProjectKey, "CONNASCENCE_HISTORY_PROJECT_KEY")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "CONNASCENCE_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "CONNASCENCE_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
