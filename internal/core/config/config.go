// Package config loads the engine's TOML configuration. A loaded Config is
// validated once and handed to the engine by value of its pointer; nothing
// mutates it afterwards.
package config

import (
	"time"
)

type Config struct {
	Version       int                 `toml:"version"`
	WatchPaths    []string            `toml:"watch_paths"`
	Exclude       Exclude             `toml:"exclude"`
	Languages     map[string]Language `toml:"languages"`
	Analysis      Analysis            `toml:"analysis"`
	Cache         Cache               `toml:"cache"`
	Pool          Pool                `toml:"pool"`
	Watch         Watch               `toml:"watch"`
	Detectors     Detectors           `toml:"detectors"`
	Compliance    Compliance          `toml:"compliance"`
	Duplication   Duplication         `toml:"duplication"`
	Policy        Policy              `toml:"policy"`
	History       History             `toml:"history"`
	Observability Observability       `toml:"observability"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Language struct {
	Enabled    *bool    `toml:"enabled"`
	Extensions []string `toml:"extensions"`
}

type Analysis struct {
	Mode         string        `toml:"mode"`
	Workers      int           `toml:"workers"`
	FileTimeout  time.Duration `toml:"file_timeout"`
	IncludeTests *bool         `toml:"include_tests"`
}

type Cache struct {
	MaxEntries int `toml:"max_entries"`
}

type Pool struct {
	MaxPerCategory int `toml:"max_per_category"`
}

type Watch struct {
	Debounce           time.Duration `toml:"debounce"`
	MaxEventsPerSecond float64       `toml:"max_events_per_second"`
	Burst              int           `toml:"burst"`
}

type Detectors struct {
	MagicLiteral MagicLiteral `toml:"magic_literal"`
	Position     Position     `toml:"position"`
	GodObject    GodObject    `toml:"god_object"`
	Algorithm    Algorithm    `toml:"algorithm"`
	Timing       Timing       `toml:"timing"`
	Convention   Convention   `toml:"convention"`
	Values       Values       `toml:"values"`
	Execution    Execution    `toml:"execution"`
	Identity     Identity     `toml:"identity"`
}

type MagicLiteral struct {
	Enabled         *bool     `toml:"enabled"`
	AllowedNumbers  []float64 `toml:"allowed_numbers"`
	AllowedStrings  []string  `toml:"allowed_strings"`
	RepeatThreshold int       `toml:"repeat_threshold"`
	FlagStrings     bool      `toml:"flag_strings"`
}

type Position struct {
	Enabled             *bool `toml:"enabled"`
	MaxPositionalParams int   `toml:"max_positional_params"`
	MediumAt            int   `toml:"medium_at"`
	HighAt              int   `toml:"high_at"`
	CriticalAt          int   `toml:"critical_at"`
}

type GodObject struct {
	Enabled    *bool `toml:"enabled"`
	MaxMethods int   `toml:"max_methods"`
	MaxFields  int   `toml:"max_fields"`
	MaxLines   int   `toml:"max_lines"`
}

type Algorithm struct {
	Enabled            *bool `toml:"enabled"`
	MinBlockStatements int   `toml:"min_block_statements"`
}

type Timing struct {
	Enabled    *bool    `toml:"enabled"`
	SleepCalls []string `toml:"sleep_calls"`
}

type Convention struct {
	Enabled *bool `toml:"enabled"`
}

type Values struct {
	Enabled        *bool `toml:"enabled"`
	MinOccurrences int   `toml:"min_occurrences"`
}

type Execution struct {
	Enabled     *bool `toml:"enabled"`
	MinSequence int   `toml:"min_sequence"`
}

type Identity struct {
	Enabled *bool `toml:"enabled"`
}

type Compliance struct {
	Enabled            *bool `toml:"enabled"`
	MaxFunctionLines   int   `toml:"max_function_lines"`
	MaxNesting         int   `toml:"max_nesting"`
	FlagRecursion      *bool `toml:"flag_recursion"`
	FlagUnboundedLoops *bool `toml:"flag_unbounded_loops"`
}

type Duplication struct {
	Enabled            *bool `toml:"enabled"`
	MinBlockStatements int   `toml:"min_block_statements"`
}

type Policy struct {
	Mode                string             `toml:"mode"`
	MinScore            *float64           `toml:"min_score"`
	SeverityWeights     map[string]float64 `toml:"severity_weights"`
	CategoryMultipliers map[string]float64 `toml:"category_multipliers"`
	Rules               []PolicyRule       `toml:"rules"`
}

// PolicyRule is a threshold over one aggregate metric. Paths optionally
// restricts the violations the metric is computed over.
type PolicyRule struct {
	ID          string   `toml:"id"`
	Metric      string   `toml:"metric"`
	Threshold   float64  `toml:"threshold"`
	Severity    string   `toml:"severity"`
	Description string   `toml:"description"`
	Paths       []string `toml:"paths"`
}

type History struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	ProjectKey  string        `toml:"project_key"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	Retention   int           `toml:"retention"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Built-in gate rules reported in GateDecision.ViolatedRules.
const (
	RuleNoCriticalViolations = "no-critical-violations"
	RuleMinComplianceScore   = "min-compliance-score"
)

const (
	PolicyModeStrict   = "strict"
	PolicyModeStandard = "standard"
	PolicyModeLenient  = "lenient"
)

var presetMinScores = map[string]float64{
	PolicyModeStrict:   92,
	PolicyModeStandard: 80,
	PolicyModeLenient:  60,
}

// EffectiveMinScore returns the explicit min_score, or the preset of the
// configured mode.
func (p Policy) EffectiveMinScore() float64 {
	if p.MinScore != nil {
		return *p.MinScore
	}
	if score, ok := presetMinScores[p.Mode]; ok {
		return score
	}
	return presetMinScores[PolicyModeStandard]
}

// Rule metrics understood by the policy engine.
const (
	MetricMaxViolations       = "max_violations"
	MetricMaxCritical         = "max_critical"
	MetricMaxHigh             = "max_high"
	MetricMaxMedium           = "max_medium"
	MetricMaxLow              = "max_low"
	MetricMaxDiagnostics      = "max_diagnostics"
	MetricMaxPositionalParams = "max_positional_params"
	MetricMaxGodMethods       = "max_god_object_methods"
	MetricMaxGodFields        = "max_god_object_fields"
	MetricMaxFunctionLines    = "max_function_lines"
	MetricMaxMagicLiterals    = "max_magic_literals"
	MetricMaxDuplicateBlocks  = "max_duplicate_blocks"
)

func PolicyMetrics() []string {
	return []string{
		MetricMaxViolations,
		MetricMaxCritical,
		MetricMaxHigh,
		MetricMaxMedium,
		MetricMaxLow,
		MetricMaxDiagnostics,
		MetricMaxPositionalParams,
		MetricMaxGodMethods,
		MetricMaxGodFields,
		MetricMaxFunctionLines,
		MetricMaxMagicLiterals,
		MetricMaxDuplicateBlocks,
	}
}

// KnownLanguages lists the language ids the parser ships extractors for.
func KnownLanguages() []string {
	return []string{"go", "javascript", "python", "tsx", "typescript"}
}

// Enabled resolves an optional toggle, treating unset as on.
func Enabled(flag *bool) bool {
	return flag == nil || *flag
}

func boolPtr(v bool) *bool {
	return &v
}
