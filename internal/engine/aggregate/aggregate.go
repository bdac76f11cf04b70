// Package aggregate merges per-file and project-wide violation lists into the
// ordered set a Result carries.
package aggregate

import (
	"sort"
	"strings"

	"connascence/internal/core/analysis"
)

type key struct {
	path     string
	line     int
	category analysis.Category
	id       string
}

type entityKey struct {
	path   string
	entity string
}

// Merge concatenates the groups, collapses entries sharing (path, line,
// category) into their most severe member, scores cross-category correlation
// per entity and returns the violations in report order. Diagnostics only
// collapse with exact duplicates of themselves. The inputs are not modified.
func Merge(groups ...[]analysis.Violation) ([]analysis.Violation, []analysis.Correlation) {
	survivors := make(map[key]analysis.Violation)
	merged := make(map[key]int)
	miss := make(map[key]float64)

	for _, group := range groups {
		for _, v := range group {
			k := key{path: v.Location.File, line: v.Location.Line, category: v.Category}
			if v.IsDiagnostic() {
				k.id = v.ID
			}
			miss[k] = missProbability(miss, k, v.Confidence)
			merged[k]++
			cur, ok := survivors[k]
			if !ok || outranks(v, cur) {
				survivors[k] = v
			}
		}
	}

	out := make([]analysis.Violation, 0, len(survivors))
	for k, v := range survivors {
		if n := merged[k]; n > 1 {
			v.Confidence = clamp(1 - miss[k])
			v.Context = withMerged(v.Context, n)
		}
		out = append(out, v)
	}

	correlations := correlate(out)
	Sort(out)
	return out, correlations
}

func missProbability(miss map[key]float64, k key, confidence float64) float64 {
	p, ok := miss[k]
	if !ok {
		p = 1
	}
	return p * (1 - clamp(confidence))
}

// outranks orders candidates for one dedup slot: severity, then confidence,
// then the lower ID so the winner does not depend on arrival order.
func outranks(a, b analysis.Violation) bool {
	if a.Severity != b.Severity {
		return a.Severity > b.Severity
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.ID < b.ID
}

func withMerged(ctx map[string]any, n int) map[string]any {
	out := make(map[string]any, len(ctx)+1)
	for k, v := range ctx {
		out[k] = v
	}
	out["merged"] = n
	return out
}

// correlate stamps Correlation = 1 - 1/k on every finding of an entity hit by
// k >= 2 distinct categories.
func correlate(vs []analysis.Violation) []analysis.Correlation {
	cats := make(map[entityKey]map[analysis.Category]bool)
	for _, v := range vs {
		ek, ok := entityOf(v)
		if !ok {
			continue
		}
		if cats[ek] == nil {
			cats[ek] = make(map[analysis.Category]bool)
		}
		cats[ek][v.Category] = true
	}

	scores := make(map[entityKey]float64)
	var out []analysis.Correlation
	for ek, set := range cats {
		if len(set) < 2 {
			continue
		}
		list := make([]analysis.Category, 0, len(set))
		for c := range set {
			list = append(list, c)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		score := 1 - 1/float64(len(set))
		scores[ek] = score
		out = append(out, analysis.Correlation{Path: ek.path, Entity: ek.entity, Categories: list, Score: score})
	}

	for i := range vs {
		if ek, ok := entityOf(vs[i]); ok {
			vs[i].Correlation = scores[ek]
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Entity < out[j].Entity
	})
	return out
}

// entityOf keys a finding by its top-level entity, so a method's findings
// count toward its class.
func entityOf(v analysis.Violation) (entityKey, bool) {
	if v.IsDiagnostic() || v.Entity == "" {
		return entityKey{}, false
	}
	top, _, _ := strings.Cut(v.Entity, ".")
	return entityKey{path: v.Location.File, entity: top}, true
}

// Sort orders violations by severity (most severe first), path and line, with
// the remaining fields as tie-breakers.
func Sort(vs []analysis.Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Location.File != b.Location.File {
			return a.Location.File < b.Location.File
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		if a.Location.Column != b.Location.Column {
			return a.Location.Column < b.Location.Column
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.ID < b.ID
	})
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
