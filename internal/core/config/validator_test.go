package config

import (
	"strings"
	"testing"

	coreerrors "connascence/internal/core/errors"
)

func expectError(t *testing.T, errs []error, fragment string) {
	t.Helper()
	for _, err := range errs {
		if strings.Contains(err.Error(), fragment) {
			return
		}
	}
	t.Errorf("Expected error containing %q, got %v", fragment, errs)
}

func TestValidatePolicyRules(t *testing.T) {
	cases := []struct {
		name     string
		rule     PolicyRule
		fragment string
	}{
		{"empty id", PolicyRule{Metric: MetricMaxHigh, Threshold: 1, Severity: "high"}, ".id must not be empty"},
		{"unknown metric", PolicyRule{ID: "r", Metric: "max_bananas", Threshold: 1, Severity: "high"}, `metric "max_bananas" is not recognized`},
		{"zero threshold", PolicyRule{ID: "r", Metric: MetricMaxHigh, Threshold: 0, Severity: "high"}, "threshold must be positive"},
		{"negative threshold", PolicyRule{ID: "r", Metric: MetricMaxHigh, Threshold: -3, Severity: "high"}, "threshold must be positive"},
		{"unknown severity", PolicyRule{ID: "r", Metric: MetricMaxHigh, Threshold: 1, Severity: "urgent"}, `severity "urgent" is not recognized`},
		{"bad glob", PolicyRule{ID: "r", Metric: MetricMaxHigh, Threshold: 1, Severity: "high", Paths: []string{"src/[a"}}, "is not a valid glob"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Policy.Rules = []PolicyRule{tc.rule}
			expectError(t, Validate(cfg), tc.fragment)
		})
	}
}

func TestValidateDuplicateRuleIDs(t *testing.T) {
	cfg := Default()
	rule := PolicyRule{ID: "dup", Metric: MetricMaxViolations, Threshold: 10, Severity: "high"}
	cfg.Policy.Rules = []PolicyRule{rule, rule}
	expectError(t, Validate(cfg), `duplicate policy rule id "dup"`)
}

func TestValidateWeights(t *testing.T) {
	cfg := Default()
	cfg.Policy.SeverityWeights["high"] = 0
	cfg.Policy.CategoryMultipliers = map[string]float64{"Telepathy": 2}
	errs := Validate(cfg)
	expectError(t, errs, "policy.severity_weights.high must be positive")
	expectError(t, errs, `unknown category "Telepathy"`)
}

func TestValidatePositionBands(t *testing.T) {
	cfg := Default()
	cfg.Detectors.Position.HighAt = 3
	expectError(t, Validate(cfg), "medium_at < high_at < critical_at")
}

func TestValidateModes(t *testing.T) {
	cfg := Default()
	cfg.Analysis.Mode = "turbo"
	cfg.Policy.Mode = "relaxed"
	errs := Validate(cfg)
	expectError(t, errs, "analysis.mode must be one of")
	expectError(t, errs, "policy.mode must be one of")
}

func TestValidateUnsupportedLanguage(t *testing.T) {
	cfg := Default()
	cfg.Languages = map[string]Language{"cobol": {Extensions: []string{".cbl"}}}
	expectError(t, Validate(cfg), "languages.cobol is not supported")
}

func TestParseFailsFastOnInvalidRule(t *testing.T) {
	_, err := Parse(`
[[policy.rules]]
id = "broken"
metric = "max_critical"
threshold = 0
`)
	if !coreerrors.IsCode(err, coreerrors.CodeConfiguration) {
		t.Fatalf("Expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "threshold must be positive") {
		t.Errorf("Expected threshold message, got %v", err)
	}
}
