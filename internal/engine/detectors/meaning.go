package detectors

import (
	"fmt"
	"strconv"
	"strings"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	"connascence/internal/engine/parser"
)

const (
	RuleMagicLiteral    = "magic-literal"
	RuleRepeatedLiteral = "repeated-literal"
)

// MagicLiteral reports unexplained literals (connascence of meaning).
type MagicLiteral struct {
	accumulator
	cfg     config.MagicLiteral
	allowed literalAllowList
	counts  map[string]*literalCount
}

type literalCount struct {
	first parser.Literal
	n     int
}

func NewMagicLiteral(cfg config.MagicLiteral) *MagicLiteral {
	return &MagicLiteral{
		cfg:     cfg,
		allowed: newLiteralAllowList(cfg.AllowedNumbers, cfg.AllowedStrings),
		counts:  make(map[string]*literalCount),
	}
}

func (d *MagicLiteral) Category() analysis.Category { return analysis.CategoryMeaning }

func (d *MagicLiteral) Reset(path string, lines []string) {
	d.accumulator.Reset(path, lines)
	clear(d.counts)
}

func (d *MagicLiteral) Detect(file *parser.File, _ []string) ([]analysis.Violation, error) {
	if file == nil {
		return nil, nil
	}
	var order []string
	for _, lit := range file.Literals {
		if lit.InConstant || d.allowed.contains(lit) {
			continue
		}
		if lit.Kind == parser.LiteralNumber || len(lit.Value) > 1 {
			key := string(lit.Kind) + ":" + lit.Value
			if c, ok := d.counts[key]; ok {
				c.n++
			} else {
				d.counts[key] = &literalCount{first: lit, n: 1}
				order = append(order, key)
			}
		}
		if lit.Kind == parser.LiteralString && !d.cfg.FlagStrings && !lit.InConditional {
			continue
		}
		d.add(d.magic(file, lit))
	}

	for _, key := range order {
		c := d.counts[key]
		if c.n < d.cfg.RepeatThreshold {
			continue
		}
		v := analysis.NewViolation(RuleRepeatedLiteral, analysis.CategoryMeaning, analysis.SeverityMedium, d.location(file, c.first.Location))
		v.Entity = c.first.Function
		v.Description = fmt.Sprintf("Literal %s appears %d times in this file", quoteLiteral(c.first), c.n)
		v.Recommendation = "Extract the value into a single named constant shared by every use."
		v.Confidence = 0.9
		v.Context = map[string]any{"value": c.first.Value, "kind": string(c.first.Kind), "occurrences": c.n}
		d.add(v)
	}
	return d.results(), nil
}

func (d *MagicLiteral) magic(file *parser.File, lit parser.Literal) analysis.Violation {
	sev := analysis.SeverityLow
	if lit.InConditional {
		sev = analysis.SeverityMedium
	}
	v := analysis.NewViolation(RuleMagicLiteral, analysis.CategoryMeaning, sev, d.location(file, lit.Location))
	v.Entity = lit.Function
	v.Description = fmt.Sprintf("Magic %s literal %s", lit.Kind, quoteLiteral(lit))
	if lit.InConditional {
		v.Description += " used in a condition"
	}
	v.Recommendation = "Replace the literal with a named constant that states its meaning."
	v.Confidence = 0.8
	if lit.Kind == parser.LiteralString {
		v.Confidence = 0.6
	}
	v.Context = map[string]any{"value": lit.Value, "kind": string(lit.Kind), "in_conditional": lit.InConditional}
	return v
}

func quoteLiteral(lit parser.Literal) string {
	if lit.Kind == parser.LiteralString {
		return strconv.Quote(lit.Value)
	}
	return lit.Value
}

type literalAllowList struct {
	numbers map[float64]bool
	strings map[string]bool
}

func newLiteralAllowList(numbers []float64, strs []string) literalAllowList {
	l := literalAllowList{numbers: make(map[float64]bool), strings: make(map[string]bool)}
	for _, n := range numbers {
		l.numbers[n] = true
	}
	for _, s := range strs {
		l.strings[s] = true
	}
	return l
}

func (l literalAllowList) contains(lit parser.Literal) bool {
	if lit.Kind == parser.LiteralString {
		if l.strings[lit.Value] {
			return true
		}
		unescaped, err := strconv.Unquote(`"` + lit.Value + `"`)
		return err == nil && l.strings[unescaped]
	}
	n, ok := numericValue(lit.Value)
	return ok && l.numbers[n]
}

// numericValue parses literal text across the supported languages, ignoring
// type suffixes such as 10L, 3j, 2i and 9n.
func numericValue(raw string) (float64, bool) {
	s := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "_", ""))
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return float64(i), true
	}
	trimmed := strings.TrimRight(s, "lujin")
	if trimmed != s && trimmed != "" {
		return numericValue(trimmed)
	}
	return 0, false
}
