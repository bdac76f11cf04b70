package detectors

import (
	"fmt"
	"sort"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	"connascence/internal/engine/parser"
)

const RuleSharedValue = "shared-value"

// Values reports literals that several comparisons must agree on, where
// changing one occurrence silently breaks the others (connascence of value).
type Values struct {
	accumulator
	minOccurrences int
	trivial        literalAllowList
}

func NewValues(cfg config.Values, literals config.MagicLiteral) *Values {
	return &Values{
		minOccurrences: cfg.MinOccurrences,
		trivial:        newLiteralAllowList(literals.AllowedNumbers, literals.AllowedStrings),
	}
}

func (d *Values) Category() analysis.Category { return analysis.CategoryValue }

func (d *Values) Detect(file *parser.File, _ []string) ([]analysis.Violation, error) {
	if file == nil {
		return nil, nil
	}
	groups := make(map[string][]parser.Literal)
	var order []string
	for _, lit := range file.Literals {
		if !lit.InComparison || lit.InConstant || d.trivial.contains(lit) {
			continue
		}
		key := string(lit.Kind) + ":" + lit.Value
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], lit)
	}

	for _, key := range order {
		uses := groups[key]
		if len(uses) < d.minOccurrences {
			continue
		}
		lines := make([]int, 0, len(uses))
		scopes := make(map[string]bool)
		for _, u := range uses {
			lines = append(lines, u.Location.Line)
			scopes[u.Function] = true
		}
		functions := make([]string, 0, len(scopes))
		for fn := range scopes {
			functions = append(functions, fn)
		}
		sort.Strings(functions)

		first := uses[0]
		v := analysis.NewViolation(RuleSharedValue, analysis.CategoryValue, analysis.SeverityMedium, d.location(file, first.Location))
		v.Entity = first.Function
		v.Description = fmt.Sprintf("%d comparisons depend on the value %s", len(uses), quoteLiteral(first))
		v.Recommendation = "Define the value once (constant or enum) and compare against that name everywhere."
		v.Confidence = 0.75
		v.Context = map[string]any{
			"value":       first.Value,
			"occurrences": len(uses),
			"lines":       lines,
			"functions":   functions,
		}
		d.add(v)
	}
	return d.results(), nil
}
