package config

import (
	"fmt"
	"slices"
	"strings"

	"connascence/internal/core/analysis"

	"github.com/gobwas/glob"
)

// Validate returns every problem found in cfg. Load fails when the slice is
// non-empty.
func Validate(cfg *Config) []error {
	var errs []error
	for _, check := range []func(*Config) error{
		validateVersion,
		validateExclude,
		validateLanguages,
		validateAnalysis,
		validateCacheAndPool,
		validateWatch,
		validateDetectors,
		validateCompliance,
		validateHistory,
	} {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, ValidatePolicy(cfg.Policy)...)
	return errs
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateExclude(cfg *Config) error {
	for i, pattern := range cfg.Exclude.Dirs {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude.dirs[%d] %q is not a valid glob: %w", i, pattern, err)
		}
	}
	for i, pattern := range cfg.Exclude.Files {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude.files[%d] %q is not a valid glob: %w", i, pattern, err)
		}
	}
	return nil
}

func validateLanguages(cfg *Config) error {
	known := KnownLanguages()
	for language, settings := range cfg.Languages {
		if strings.TrimSpace(language) == "" {
			return fmt.Errorf("languages key must not be empty")
		}
		if !slices.Contains(known, language) {
			return fmt.Errorf("languages.%s is not supported; supported languages are %s", language, strings.Join(known, ", "))
		}
		for _, ext := range settings.Extensions {
			if strings.TrimSpace(ext) == "" || ext == "." {
				return fmt.Errorf("languages.%s.extensions must not include empty values", language)
			}
		}
	}
	return nil
}

func validateAnalysis(cfg *Config) error {
	if _, ok := analysis.ParseMode(cfg.Analysis.Mode); !ok {
		return fmt.Errorf("analysis.mode must be one of: batch, streaming, hybrid")
	}
	if cfg.Analysis.Workers < 1 || cfg.Analysis.Workers > 1024 {
		return fmt.Errorf("analysis.workers must be between 1 and 1024")
	}
	if cfg.Analysis.FileTimeout <= 0 {
		return fmt.Errorf("analysis.file_timeout must be positive")
	}
	return nil
}

func validateCacheAndPool(cfg *Config) error {
	if cfg.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache.max_entries must be >= 1")
	}
	if cfg.Pool.MaxPerCategory < 1 {
		return fmt.Errorf("pool.max_per_category must be >= 1")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.MaxEventsPerSecond <= 0 {
		return fmt.Errorf("watch.max_events_per_second must be positive")
	}
	if cfg.Watch.Burst < 1 {
		return fmt.Errorf("watch.burst must be >= 1")
	}
	return nil
}

func validateDetectors(cfg *Config) error {
	d := cfg.Detectors
	if d.MagicLiteral.RepeatThreshold < 2 {
		return fmt.Errorf("detectors.magic_literal.repeat_threshold must be >= 2")
	}
	p := d.Position
	if p.MaxPositionalParams < 1 {
		return fmt.Errorf("detectors.position.max_positional_params must be >= 1")
	}
	if !(p.MediumAt < p.HighAt && p.HighAt < p.CriticalAt) {
		return fmt.Errorf("detectors.position bands must satisfy medium_at < high_at < critical_at, got %d, %d, %d", p.MediumAt, p.HighAt, p.CriticalAt)
	}
	if d.GodObject.MaxMethods < 1 || d.GodObject.MaxFields < 1 || d.GodObject.MaxLines < 1 {
		return fmt.Errorf("detectors.god_object thresholds must be positive")
	}
	if d.Algorithm.MinBlockStatements < 2 {
		return fmt.Errorf("detectors.algorithm.min_block_statements must be >= 2")
	}
	for i, name := range d.Timing.SleepCalls {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("detectors.timing.sleep_calls[%d] must not be empty", i)
		}
	}
	if d.Values.MinOccurrences < 2 {
		return fmt.Errorf("detectors.values.min_occurrences must be >= 2")
	}
	if d.Execution.MinSequence < 2 {
		return fmt.Errorf("detectors.execution.min_sequence must be >= 2")
	}
	return nil
}

func validateCompliance(cfg *Config) error {
	if cfg.Compliance.MaxFunctionLines < 1 {
		return fmt.Errorf("compliance.max_function_lines must be >= 1")
	}
	if cfg.Compliance.MaxNesting < 1 {
		return fmt.Errorf("compliance.max_nesting must be >= 1")
	}
	if cfg.Duplication.MinBlockStatements < 2 {
		return fmt.Errorf("duplication.min_block_statements must be >= 2")
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if !cfg.History.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		return fmt.Errorf("history.path must not be empty when history.enabled=true")
	}
	if strings.TrimSpace(cfg.History.ProjectKey) == "" {
		return fmt.Errorf("history.project_key must not be empty when history.enabled=true")
	}
	return nil
}

// ValidatePolicy checks a policy section on its own, for callers that build
// one without going through Load.
func ValidatePolicy(p Policy) []error {
	var errs []error
	if _, ok := presetMinScores[p.Mode]; !ok {
		errs = append(errs, fmt.Errorf("policy.mode must be one of: strict, standard, lenient"))
	}
	if p.MinScore != nil && (*p.MinScore < 0 || *p.MinScore > 100) {
		errs = append(errs, fmt.Errorf("policy.min_score must be between 0 and 100, got %v", *p.MinScore))
	}
	for sev, weight := range p.SeverityWeights {
		if _, ok := analysis.ParseSeverity(sev); !ok {
			errs = append(errs, fmt.Errorf("policy.severity_weights: unknown severity %q", sev))
			continue
		}
		if weight <= 0 {
			errs = append(errs, fmt.Errorf("policy.severity_weights.%s must be positive, got %v", sev, weight))
		}
	}
	for name, mult := range p.CategoryMultipliers {
		if _, ok := analysis.ParseCategory(name); !ok {
			errs = append(errs, fmt.Errorf("policy.category_multipliers: unknown category %q", name))
			continue
		}
		if mult <= 0 {
			errs = append(errs, fmt.Errorf("policy.category_multipliers.%s must be positive, got %v", name, mult))
		}
	}

	metrics := PolicyMetrics()
	seen := make(map[string]bool, len(p.Rules))
	for i, rule := range p.Rules {
		ref := fmt.Sprintf("policy.rules[%d]", i)
		if rule.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id must not be empty", ref))
		} else if seen[rule.ID] {
			errs = append(errs, fmt.Errorf("duplicate policy rule id %q", rule.ID))
		} else if rule.ID == RuleNoCriticalViolations || rule.ID == RuleMinComplianceScore {
			errs = append(errs, fmt.Errorf("%s.id %q is reserved for a built-in rule", ref, rule.ID))
		}
		seen[rule.ID] = true
		if !slices.Contains(metrics, rule.Metric) {
			errs = append(errs, fmt.Errorf("%s.metric %q is not recognized", ref, rule.Metric))
		}
		if rule.Threshold <= 0 {
			errs = append(errs, fmt.Errorf("%s.threshold must be positive, got %v", ref, rule.Threshold))
		}
		if _, ok := analysis.ParseSeverity(rule.Severity); !ok {
			errs = append(errs, fmt.Errorf("%s.severity %q is not recognized", ref, rule.Severity))
		}
		for j, pattern := range rule.Paths {
			if _, err := glob.Compile(pattern, '/'); err != nil {
				errs = append(errs, fmt.Errorf("%s.paths[%d] %q is not a valid glob: %w", ref, j, pattern, err))
			}
		}
	}
	return errs
}
