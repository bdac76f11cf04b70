package detectors

import (
	"fmt"
	"strings"

	"connascence/internal/core/analysis"
	"connascence/internal/engine/parser"
)

const (
	RuleMutableDefault = "mutable-default"
	RuleGlobalMutation = "global-mutation"
)

var mutableDefaultKinds = map[string]bool{
	"list":                     true,
	"dictionary":               true,
	"set":                      true,
	"list_comprehension":       true,
	"dictionary_comprehension": true,
	"set_comprehension":        true,
}

// Identity reports shared mutable state: default arguments evaluated once and
// functions that rebind module-level variables.
type Identity struct {
	accumulator
}

func NewIdentity() *Identity {
	return &Identity{}
}

func (d *Identity) Category() analysis.Category { return analysis.CategoryIdentity }

func (d *Identity) Detect(file *parser.File, _ []string) ([]analysis.Violation, error) {
	if file == nil {
		return nil, nil
	}
	if file.Language == "python" {
		for _, fn := range file.Functions {
			for _, p := range fn.Params {
				if !p.HasDefault || !isMutableDefault(p) {
					continue
				}
				v := analysis.NewViolation(RuleMutableDefault, analysis.CategoryIdentity, analysis.SeverityHigh, d.location(file, fn.Location))
				v.Entity = fn.QualifiedName()
				v.Description = fmt.Sprintf("Parameter %s of %s defaults to a mutable object shared by every call", p.Name, fn.QualifiedName())
				v.Recommendation = "Default to None and build a fresh object inside the function."
				v.Confidence = 0.95
				v.Context = map[string]any{"param": p.Name, "default": p.DefaultText}
				d.add(v)
			}
		}
	}
	for _, g := range file.Globals {
		v := analysis.NewViolation(RuleGlobalMutation, analysis.CategoryIdentity, analysis.SeverityMedium, d.location(file, g.Location))
		v.Entity = g.Function
		v.Description = fmt.Sprintf("%s rebinds module-level variable %s", g.Function, g.Name)
		v.Recommendation = "Pass the state explicitly or encapsulate it in an object owned by the caller."
		v.Confidence = 0.9
		v.Context = map[string]any{"variable": g.Name}
		d.add(v)
	}
	return d.results(), nil
}

func isMutableDefault(p parser.Param) bool {
	if mutableDefaultKinds[p.DefaultKind] {
		return true
	}
	if p.DefaultKind != "call" {
		return false
	}
	text := strings.ReplaceAll(p.DefaultText, " ", "")
	for _, ctor := range []string{"list(", "dict(", "set(", "bytearray(", "collections.defaultdict(", "defaultdict("} {
		if strings.HasPrefix(text, ctor) {
			return true
		}
	}
	return false
}
