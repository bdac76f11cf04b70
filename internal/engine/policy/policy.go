// Package policy turns an aggregated violation set into a compliance score
// and a gate decision. Evaluation is pure: the same input always yields the
// same Evaluation.
package policy

import (
	"errors"
	"math"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	coreerrors "connascence/internal/core/errors"
	"connascence/internal/engine/compliance"
	"connascence/internal/engine/detectors"
	"connascence/internal/engine/duplication"
)

const maxScore = 100.0

// RuleResult is the measured value of one rule for a run.
type RuleResult struct {
	ID        string            `json:"id"`
	Metric    string            `json:"metric"`
	Threshold float64           `json:"threshold"`
	Actual    float64           `json:"actual"`
	Severity  analysis.Severity `json:"severity"`
	Violated  bool              `json:"violated"`
}

type Evaluation struct {
	Score float64               `json:"score"`
	Gate  analysis.GateDecision `json:"gate"`
	Rules []RuleResult          `json:"rules"`
}

// Engine holds the validated policy. It is read-only after New and safe to
// share between goroutines.
type Engine struct {
	minScore    float64
	weights     map[analysis.Severity]float64
	multipliers map[analysis.Category]float64
	rules       []Rule
}

// New validates the policy section and compiles its rules. Invalid
// definitions fail with CONFIGURATION_ERROR.
func New(cfg config.Policy) (*Engine, error) {
	if errs := config.ValidatePolicy(cfg); len(errs) > 0 {
		return nil, coreerrors.Wrap(errors.Join(errs...), coreerrors.CodeConfiguration, "invalid policy")
	}

	defaults := config.Default().Policy
	e := &Engine{
		minScore:    cfg.EffectiveMinScore(),
		weights:     make(map[analysis.Severity]float64, 4),
		multipliers: make(map[analysis.Category]float64),
		rules:       make([]Rule, 0, len(cfg.Rules)),
	}
	for _, sev := range analysis.Severities() {
		w, ok := cfg.SeverityWeights[sev.String()]
		if !ok {
			w = defaults.SeverityWeights[sev.String()]
		}
		e.weights[sev] = w
	}
	for name, mult := range cfg.CategoryMultipliers {
		category, _ := analysis.ParseCategory(name)
		e.multipliers[category] = mult
	}
	for _, rule := range cfg.Rules {
		e.rules = append(e.rules, compileRule(rule))
	}
	return e, nil
}

func (e *Engine) MinScore() float64 { return e.minScore }

// Rules returns the configured rules in declaration order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Weight is the severity weight scaled by the category multiplier.
// Diagnostics weigh like low findings.
func (e *Engine) Weight(v analysis.Violation) float64 {
	sev := v.Severity
	if v.IsDiagnostic() || !sev.Valid() {
		sev = analysis.SeverityLow
	}
	mult, ok := e.multipliers[v.Category]
	if !ok {
		mult = 1
	}
	return e.weights[sev] * mult
}

// Stamp sets Weight on every violation in place.
func (e *Engine) Stamp(vs []analysis.Violation) {
	for i := range vs {
		vs[i].Weight = e.Weight(vs[i])
	}
}

// Score is 100 minus the summed finding weights, clamped to [0, 100].
// Diagnostics do not count.
func (e *Engine) Score(vs []analysis.Violation) float64 {
	total := 0.0
	for _, v := range vs {
		if v.IsDiagnostic() {
			continue
		}
		total += e.Weight(v)
	}
	score := math.Max(0, math.Min(maxScore, maxScore-total))
	return math.Round(score*100) / 100
}

// Evaluate scores the violations and decides the gate. The gate passes iff
// there is no critical finding, the score reaches the minimum and no rule of
// critical severity is exceeded. Every exceeded rule is listed in
// Gate.ViolatedRules, built-in rules first.
func (e *Engine) Evaluate(vs []analysis.Violation) Evaluation {
	score := e.Score(vs)
	criticals := 0
	for _, v := range vs {
		if !v.IsDiagnostic() && v.Severity == analysis.SeverityCritical {
			criticals++
		}
	}

	results := []RuleResult{
		{
			ID:       config.RuleNoCriticalViolations,
			Metric:   config.MetricMaxCritical,
			Actual:   float64(criticals),
			Severity: analysis.SeverityCritical,
			Violated: criticals > 0,
		},
		{
			ID:        config.RuleMinComplianceScore,
			Metric:    "min_score",
			Threshold: e.minScore,
			Actual:    score,
			Severity:  analysis.SeverityCritical,
			Violated:  score < e.minScore,
		},
	}
	for _, rule := range e.rules {
		actual := measure(rule, vs)
		results = append(results, RuleResult{
			ID:        rule.ID,
			Metric:    rule.Metric,
			Threshold: rule.Threshold,
			Actual:    actual,
			Severity:  rule.Severity,
			Violated:  actual > rule.Threshold,
		})
	}

	gate := analysis.GateDecision{Passed: true, MinScore: e.minScore}
	for _, r := range results {
		if !r.Violated {
			continue
		}
		gate.ViolatedRules = append(gate.ViolatedRules, r.ID)
		if r.Severity == analysis.SeverityCritical {
			gate.Passed = false
		}
	}
	return Evaluation{Score: score, Gate: gate, Rules: results}
}

// measure computes a rule's metric over the violations in its scope. Count
// metrics count; max_* size metrics take the largest value reported by the
// matching detector.
func measure(rule Rule, vs []analysis.Violation) float64 {
	value := 0
	for _, v := range vs {
		if !rule.Covers(v.Location.File) {
			continue
		}
		if rule.Metric == config.MetricMaxDiagnostics {
			value += countIf(v.IsDiagnostic())
			continue
		}
		if v.IsDiagnostic() {
			continue
		}
		switch rule.Metric {
		case config.MetricMaxViolations:
			value++
		case config.MetricMaxCritical:
			value += countIf(v.Severity == analysis.SeverityCritical)
		case config.MetricMaxHigh:
			value += countIf(v.Severity == analysis.SeverityHigh)
		case config.MetricMaxMedium:
			value += countIf(v.Severity == analysis.SeverityMedium)
		case config.MetricMaxLow:
			value += countIf(v.Severity == analysis.SeverityLow)
		case config.MetricMaxMagicLiterals:
			value += countIf(v.RuleID == detectors.RuleMagicLiteral || v.RuleID == detectors.RuleRepeatedLiteral)
		case config.MetricMaxDuplicateBlocks:
			value += countIf(v.RuleID == detectors.RuleDuplicateBlock || v.RuleID == duplication.RuleCrossFileDuplicate)
		case config.MetricMaxPositionalParams:
			value = maxContext(value, v, detectors.RulePositionalParams, "positional_params")
		case config.MetricMaxGodMethods:
			value = maxContext(value, v, detectors.RuleGodObject, "methods")
		case config.MetricMaxGodFields:
			value = maxContext(value, v, detectors.RuleGodObject, "fields")
		case config.MetricMaxFunctionLines:
			value = maxContext(value, v, compliance.RuleFunctionLength, "lines")
		}
	}
	return float64(value)
}

func countIf(ok bool) int {
	if ok {
		return 1
	}
	return 0
}

func maxContext(cur int, v analysis.Violation, rule, key string) int {
	if v.RuleID != rule {
		return cur
	}
	if n, ok := v.IntContext(key); ok && n > cur {
		return n
	}
	return cur
}
