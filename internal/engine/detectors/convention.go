package detectors

import (
	"fmt"
	"regexp"
	"strings"

	"connascence/internal/core/analysis"
	"connascence/internal/engine/parser"
)

const RuleNamingConvention = "naming-convention"

var (
	identifierRE = regexp.MustCompile(`^[#$]?[A-Za-z_$][A-Za-z0-9_$]*$`)

	pythonFunctionRE = regexp.MustCompile(`^_{0,2}[a-z][a-z0-9_]*$`)
	pascalCaseRE     = regexp.MustCompile(`^_?[A-Z][A-Za-z0-9]*$`)
	jsFunctionRE     = regexp.MustCompile(`^[#_$]?[A-Za-z$][A-Za-z0-9$]*$`)
	mixedCapsRE      = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)
	goTestFunctionRE = regexp.MustCompile(`^(Test|Benchmark|Example|Fuzz)[A-Za-z0-9_]*$`)
)

type namingStyle struct {
	function func(string) bool
	class    func(string) bool
	expected [2]string
}

var namingStyles = map[string]namingStyle{
	"python": {
		function: func(n string) bool { return pythonFunctionRE.MatchString(n) || isDunder(n) },
		class:    pascalCaseRE.MatchString,
		expected: [2]string{"snake_case", "PascalCase"},
	},
	"javascript": {function: jsFunctionRE.MatchString, class: pascalCaseRE.MatchString, expected: [2]string{"camelCase", "PascalCase"}},
	"typescript": {function: jsFunctionRE.MatchString, class: pascalCaseRE.MatchString, expected: [2]string{"camelCase", "PascalCase"}},
	"tsx":        {function: jsFunctionRE.MatchString, class: pascalCaseRE.MatchString, expected: [2]string{"camelCase", "PascalCase"}},
	"go": {
		function: func(n string) bool { return mixedCapsRE.MatchString(n) || goTestFunctionRE.MatchString(n) },
		class:    mixedCapsRE.MatchString,
		expected: [2]string{"MixedCaps", "MixedCaps"},
	},
}

// Convention checks declaration names against the idiom of their language.
type Convention struct {
	accumulator
}

func NewConvention() *Convention {
	return &Convention{}
}

func (d *Convention) Category() analysis.Category { return analysis.CategoryConvention }

func (d *Convention) Detect(file *parser.File, _ []string) ([]analysis.Violation, error) {
	if file == nil {
		return nil, nil
	}
	style, ok := namingStyles[file.Language]
	if !ok {
		return nil, nil
	}
	for _, fn := range file.Functions {
		name := lastSegment(fn.Name)
		if !checkable(name) || style.function(name) {
			continue
		}
		d.add(d.naming(file, "function", fn.QualifiedName(), name, style.expected[0], fn.Location))
	}
	for _, class := range file.Classes {
		if !checkable(class.Name) || style.class(class.Name) {
			continue
		}
		d.add(d.naming(file, "class", class.Name, class.Name, style.expected[1], class.Location))
	}
	return d.results(), nil
}

func (d *Convention) naming(file *parser.File, kind, entity, name, expected string, loc parser.Location) analysis.Violation {
	v := analysis.NewViolation(RuleNamingConvention, analysis.CategoryConvention, analysis.SeverityLow, d.location(file, loc))
	v.Entity = entity
	v.Description = fmt.Sprintf("%s name %q does not follow %s", kind, name, expected)
	v.Recommendation = fmt.Sprintf("Rename to %s so readers and tools can rely on the convention.", expected)
	v.Confidence = 0.7
	v.Context = map[string]any{"name": name, "kind": kind, "expected": expected}
	return v
}

// checkable skips synthesized names and computed keys.
func checkable(name string) bool {
	return name != "" && !strings.HasPrefix(name, "<") && identifierRE.MatchString(name)
}

func lastSegment(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func isDunder(name string) bool {
	return len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}
