// Package compliance applies a subset of the NASA "Power of Ten" rules to the
// syntax model: short functions, no recursion, bounded loops and shallow
// nesting. Findings use the Compliance category.
package compliance

import (
	"fmt"
	"sort"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	"connascence/internal/engine/parser"
)

const (
	RuleFunctionLength = "pot10-function-length"
	RuleRecursion      = "pot10-recursion"
	RuleUnboundedLoop  = "pot10-unbounded-loop"
	RuleNesting        = "pot10-nesting"
)

// Checker is stateless and safe for concurrent use.
type Checker struct {
	enabled       bool
	maxLines      int
	maxNesting    int
	flagRecursion bool
	flagUnbounded bool
}

func New(cfg config.Compliance) *Checker {
	return &Checker{
		enabled:       config.Enabled(cfg.Enabled),
		maxLines:      cfg.MaxFunctionLines,
		maxNesting:    cfg.MaxNesting,
		flagRecursion: config.Enabled(cfg.FlagRecursion),
		flagUnbounded: config.Enabled(cfg.FlagUnboundedLoops),
	}
}

func (c *Checker) Check(file *parser.File) []analysis.Violation {
	if !c.enabled || file == nil {
		return nil
	}
	var out []analysis.Violation
	for _, fn := range file.Functions {
		if c.maxLines > 0 && fn.Lines > c.maxLines {
			sev := analysis.SeverityMedium
			if fn.Lines > 2*c.maxLines {
				sev = analysis.SeverityHigh
			}
			v := c.violation(file, fn.Location, RuleFunctionLength, sev)
			v.Entity = fn.QualifiedName()
			v.Description = fmt.Sprintf("%s spans %d lines (limit %d)", fn.QualifiedName(), fn.Lines, c.maxLines)
			v.Recommendation = "Split the function so each piece fits on one screen."
			v.Context = map[string]any{"lines": fn.Lines, "limit": c.maxLines}
			out = append(out, v)
		}
		if c.maxNesting > 0 && fn.MaxNesting > c.maxNesting {
			sev := analysis.SeverityMedium
			if fn.MaxNesting > c.maxNesting+2 {
				sev = analysis.SeverityHigh
			}
			v := c.violation(file, fn.Location, RuleNesting, sev)
			v.Entity = fn.QualifiedName()
			v.Description = fmt.Sprintf("%s nests control flow %d levels deep (limit %d)", fn.QualifiedName(), fn.MaxNesting, c.maxNesting)
			v.Recommendation = "Return early or extract the inner blocks."
			v.Context = map[string]any{"depth": fn.MaxNesting, "limit": c.maxNesting}
			out = append(out, v)
		}
		if c.flagRecursion && fn.Recursive {
			v := c.violation(file, fn.Location, RuleRecursion, analysis.SeverityMedium)
			v.Entity = fn.QualifiedName()
			v.Description = fmt.Sprintf("%s calls itself", fn.QualifiedName())
			v.Recommendation = "Rewrite the recursion as a loop with an explicit bound."
			v.Confidence = 0.9
			out = append(out, v)
		}
	}
	if c.flagUnbounded {
		for _, loop := range file.Loops {
			if !loop.Unbounded {
				continue
			}
			v := c.violation(file, loop.Location, RuleUnboundedLoop, analysis.SeverityLow)
			v.Entity = loop.Function
			v.Description = "Loop has no fixed upper bound"
			if loop.Function != "" {
				v.Description += " in " + loop.Function
			}
			v.Recommendation = "Give the loop a maximum iteration count."
			v.Confidence = 0.7
			out = append(out, v)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		return a.RuleID < b.RuleID
	})
	return out
}

func (c *Checker) violation(file *parser.File, loc parser.Location, rule string, sev analysis.Severity) analysis.Violation {
	return analysis.NewViolation(rule, analysis.CategoryCompliance, sev, analysis.Location{
		File:   file.Path,
		Line:   loc.Line,
		Column: loc.Column,
	})
}
