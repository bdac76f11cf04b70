package detectors

import (
	"fmt"
	"math"
	"strings"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	"connascence/internal/engine/parser"
)

const RuleGodObject = "god-object"

type GodObject struct {
	accumulator
	cfg config.GodObject
}

func NewGodObject(cfg config.GodObject) *GodObject {
	return &GodObject{cfg: cfg}
}

func (d *GodObject) Category() analysis.Category { return analysis.CategoryGodObject }

func (d *GodObject) Detect(file *parser.File, _ []string) ([]analysis.Violation, error) {
	if file == nil {
		return nil, nil
	}
	for _, class := range file.Classes {
		fields := len(class.Fields)
		metrics := []struct {
			name        string
			actual, max int
		}{
			{"methods", class.Methods, d.cfg.MaxMethods},
			{"fields", fields, d.cfg.MaxFields},
			{"lines", class.Lines, d.cfg.MaxLines},
		}

		ratio := 0.0
		var exceeded []string
		for _, m := range metrics {
			if m.max <= 0 {
				continue
			}
			r := float64(m.actual) / float64(m.max)
			if r > 1 {
				exceeded = append(exceeded, fmt.Sprintf("%s %d/%d", m.name, m.actual, m.max))
			}
			ratio = math.Max(ratio, r)
		}
		if ratio <= 1 {
			continue
		}

		v := analysis.NewViolation(RuleGodObject, analysis.CategoryGodObject, godObjectSeverity(ratio), d.location(file, class.Location))
		v.Entity = class.Name
		v.Description = fmt.Sprintf("%s is a god object: %s", class.Name, strings.Join(exceeded, ", "))
		v.Recommendation = "Split the type along its responsibilities; move cohesive method and field groups into collaborators."
		v.Confidence = 0.9
		v.Context = map[string]any{
			"methods":     class.Methods,
			"fields":      fields,
			"lines":       class.Lines,
			"max_methods": d.cfg.MaxMethods,
			"max_fields":  d.cfg.MaxFields,
			"max_lines":   d.cfg.MaxLines,
			"ratio":       math.Round(ratio*100) / 100,
		}
		d.add(v)
	}
	return d.results(), nil
}

func godObjectSeverity(ratio float64) analysis.Severity {
	switch {
	case ratio <= 1.5:
		return analysis.SeverityMedium
	case ratio <= 2:
		return analysis.SeverityHigh
	default:
		return analysis.SeverityCritical
	}
}
