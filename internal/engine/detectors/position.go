package detectors

import (
	"fmt"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	"connascence/internal/engine/parser"
)

const RulePositionalParams = "positional-params"

// Position flags functions whose callers must get argument order right for
// too many parameters.
type Position struct {
	accumulator
	cfg config.Position
}

func NewPosition(cfg config.Position) *Position {
	return &Position{cfg: cfg}
}

func (d *Position) Category() analysis.Category { return analysis.CategoryPosition }

func (d *Position) Detect(file *parser.File, _ []string) ([]analysis.Violation, error) {
	if file == nil {
		return nil, nil
	}
	for _, fn := range file.Functions {
		count := fn.PositionalCount()
		if count <= d.cfg.MaxPositionalParams {
			continue
		}
		v := analysis.NewViolation(RulePositionalParams, analysis.CategoryPosition, d.severity(count), d.location(file, fn.Location))
		v.Entity = fn.QualifiedName()
		v.Description = fmt.Sprintf("%s takes %d positional parameters (max %d)", fn.QualifiedName(), count, d.cfg.MaxPositionalParams)
		v.Recommendation = "Group related parameters into an object or make them keyword/named arguments."
		v.Context = map[string]any{
			"positional_params": count,
			"total_params":      len(fn.Params),
			"max":               d.cfg.MaxPositionalParams,
		}
		d.add(v)
	}
	return d.results(), nil
}

func (d *Position) severity(count int) analysis.Severity {
	switch {
	case count >= d.cfg.CriticalAt:
		return analysis.SeverityCritical
	case count >= d.cfg.HighAt:
		return analysis.SeverityHigh
	case count >= d.cfg.MediumAt:
		return analysis.SeverityMedium
	default:
		return analysis.SeverityLow
	}
}
