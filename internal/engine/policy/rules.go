package policy

import (
	"path/filepath"
	"strings"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	"connascence/internal/shared/util"

	"github.com/gobwas/glob"
)

// Rule is a validated PolicyRule with its path scope compiled.
type Rule struct {
	ID          string
	Metric      string
	Threshold   float64
	Severity    analysis.Severity
	Description string
	Paths       []compiledPattern
}

type compiledPattern struct {
	raw        string
	isWildcard bool
	glob       glob.Glob
}

func compileRule(rule config.PolicyRule) Rule {
	sev, _ := analysis.ParseSeverity(rule.Severity)
	return Rule{
		ID:          rule.ID,
		Metric:      rule.Metric,
		Threshold:   rule.Threshold,
		Severity:    sev,
		Description: rule.Description,
		Paths:       compilePatterns(rule.Paths),
	}
}

// Covers reports whether a violation at path is in the rule's scope. A rule
// without paths covers everything. Patterns are relative and may match at
// any directory depth, so "src/core/**" covers /home/me/proj/src/core/x.py.
func (r Rule) Covers(path string) bool {
	if len(r.Paths) == 0 {
		return true
	}
	return matchPatterns(r.Paths, filepath.ToSlash(path))
}

func compilePatterns(raw []string) []compiledPattern {
	if len(raw) == 0 {
		return nil
	}
	out := make([]compiledPattern, 0, len(raw))
	for _, pattern := range raw {
		norm := util.NormalizePatternPath(pattern)
		if norm == "" {
			continue
		}
		cp := compiledPattern{
			raw:        norm,
			isWildcard: strings.ContainsAny(norm, "*?[]{}"),
		}
		if cp.isWildcard {
			g, err := glob.Compile(norm, '/')
			if err != nil {
				continue
			}
			cp.glob = g
		}
		out = append(out, cp)
	}
	return out
}

func matchPatterns(patterns []compiledPattern, target string) bool {
	candidates := pathSuffixes(util.NormalizePatternPath(target))
	for _, p := range patterns {
		for _, candidate := range candidates {
			if p.isWildcard && p.glob.Match(candidate) {
				return true
			}
			if !p.isWildcard && util.HasPathPrefix(candidate, p.raw) {
				return true
			}
		}
	}
	return false
}

// pathSuffixes returns target followed by every suffix that starts right
// after a separator, down to the base name.
func pathSuffixes(target string) []string {
	out := []string{target}
	for i := 0; i < len(target)-1; i++ {
		if target[i] == '/' {
			out = append(out, target[i+1:])
		}
	}
	return out
}
