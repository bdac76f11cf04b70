package detectors

import (
	"fmt"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	"connascence/internal/engine/parser"
)

const RuleCallSequence = "call-sequence"

// Execution flags long runs of calls on one receiver, which usually encode
// an ordering protocol callers must repeat exactly.
type Execution struct {
	accumulator
	minSequence int
}

func NewExecution(cfg config.Execution) *Execution {
	return &Execution{minSequence: cfg.MinSequence}
}

func (d *Execution) Category() analysis.Category { return analysis.CategoryExecution }

func (d *Execution) Detect(file *parser.File, _ []string) ([]analysis.Violation, error) {
	if file == nil {
		return nil, nil
	}
	for _, fn := range file.Functions {
		calls := fn.StatementCalls
		for start := 0; start < len(calls); {
			end := start + 1
			for end < len(calls) && calls[start] != "" && calls[end] == calls[start] {
				end++
			}
			if run := end - start; calls[start] != "" && run >= d.minSequence {
				d.add(d.sequence(file, fn, calls[start], run, fn.StatementLines[start]))
			}
			start = end
		}
	}
	return d.results(), nil
}

func (d *Execution) sequence(file *parser.File, fn parser.Function, receiver string, run, line int) analysis.Violation {
	v := analysis.NewViolation(RuleCallSequence, analysis.CategoryExecution, analysis.SeverityLow, d.location(file, parser.Location{Line: line, Column: 1}))
	v.Entity = fn.QualifiedName()
	v.Description = fmt.Sprintf("%d consecutive calls on %s must run in this exact order", run, receiver)
	v.Recommendation = "Wrap the sequence in a single method on the receiver so callers cannot reorder it."
	v.Confidence = 0.6
	v.Context = map[string]any{"receiver": receiver, "calls": run}
	return v
}
