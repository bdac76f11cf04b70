package aggregate

import (
	"errors"
	"testing"

	"connascence/internal/core/analysis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finding(path string, line int, cat analysis.Category, sev analysis.Severity, rule string) analysis.Violation {
	v := analysis.NewViolation(rule, cat, sev, analysis.Location{File: path, Line: line, Column: 1})
	return v
}

func TestMergeDeduplicatesByLocationAndCategory(t *testing.T) {
	low := finding("a.py", 3, analysis.CategoryMeaning, analysis.SeverityLow, "magic-literal")
	low.Confidence = 0.5
	medium := finding("a.py", 3, analysis.CategoryMeaning, analysis.SeverityMedium, "repeated-literal")
	medium.Confidence = 0.5
	other := finding("a.py", 3, analysis.CategoryTiming, analysis.SeverityLow, "sleep-coupling")

	got, _ := Merge([]analysis.Violation{low, other}, []analysis.Violation{medium})
	require.Len(t, got, 2)

	assert.Equal(t, "repeated-literal", got[0].RuleID, "highest severity survives")
	assert.InDelta(t, 0.75, got[0].Confidence, 1e-9)
	assert.Equal(t, 2, got[0].Context["merged"])
	assert.Equal(t, "sleep-coupling", got[1].RuleID)
	assert.Nil(t, low.Context, "inputs are not modified")
}

func TestMergeKeepsDiagnosticsPerDetector(t *testing.T) {
	exploding := analysis.DetectorDiagnostic("a.py", "Exploding", errors.New("panic"))
	failing := analysis.DetectorDiagnostic("a.py", "Failing", errors.New("bad input"))

	got, _ := Merge([]analysis.Violation{exploding, failing}, []analysis.Violation{exploding})
	require.Len(t, got, 2)
	assert.ElementsMatch(t, []any{"Exploding", "Failing"}, []any{got[0].Context["detector"], got[1].Context["detector"]})
	for _, v := range got {
		if v.Context["detector"] == "Exploding" {
			assert.Equal(t, 2, v.Context["merged"], "an identical diagnostic still collapses")
		}
	}
}

func TestMergeTieBreakIsOrderIndependent(t *testing.T) {
	a := finding("a.py", 1, analysis.CategoryMeaning, analysis.SeverityLow, "rule-a")
	b := finding("a.py", 1, analysis.CategoryMeaning, analysis.SeverityLow, "rule-b")

	first, _ := Merge([]analysis.Violation{a, b})
	second, _ := Merge([]analysis.Violation{b, a})
	require.Len(t, first, 1)
	assert.Equal(t, first, second)
}

func TestMergeOrdering(t *testing.T) {
	in := []analysis.Violation{
		finding("b.py", 1, analysis.CategoryMeaning, analysis.SeverityLow, "r"),
		finding("a.py", 9, analysis.CategoryMeaning, analysis.SeverityLow, "r"),
		finding("a.py", 2, analysis.CategoryMeaning, analysis.SeverityLow, "r"),
		finding("z.py", 5, analysis.CategoryPosition, analysis.SeverityCritical, "r"),
		finding("c.py", 1, analysis.CategoryPosition, analysis.SeverityHigh, "r"),
	}
	got, _ := Merge(in)

	var order []string
	for _, v := range got {
		order = append(order, v.Location.String())
	}
	assert.Equal(t, []string{"z.py:5:1", "c.py:1:1", "a.py:2:1", "a.py:9:1", "b.py:1:1"}, order)
}

func TestCorrelation(t *testing.T) {
	pos := finding("a.py", 4, analysis.CategoryPosition, analysis.SeverityMedium, "positional-params")
	pos.Entity = "Order.create"
	god := finding("a.py", 1, analysis.CategoryGodObject, analysis.SeverityHigh, "god-object")
	god.Entity = "Order"
	magic := finding("a.py", 9, analysis.CategoryMeaning, analysis.SeverityLow, "magic-literal")
	magic.Entity = "Order.total"
	alone := finding("a.py", 30, analysis.CategoryMeaning, analysis.SeverityLow, "magic-literal")
	alone.Entity = "helper"
	diag := analysis.Diagnostic(analysis.CategoryParseError, "a.py", errors.New("boom"))

	got, correlations := Merge([]analysis.Violation{pos, god, magic, alone, diag})

	require.Len(t, correlations, 1)
	c := correlations[0]
	assert.Equal(t, "Order", c.Entity)
	assert.Equal(t, []analysis.Category{analysis.CategoryGodObject, analysis.CategoryMeaning, analysis.CategoryPosition}, c.Categories)
	assert.InDelta(t, 2.0/3.0, c.Score, 1e-9)

	for _, v := range got {
		switch v.Entity {
		case "Order", "Order.create", "Order.total":
			assert.InDelta(t, 2.0/3.0, v.Correlation, 1e-9, v.RuleID)
		default:
			assert.Zero(t, v.Correlation, v.RuleID)
		}
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	var in []analysis.Violation
	for i := 0; i < 50; i++ {
		v := finding("f.py", i%7, analysis.FindingCategories()[i%5], analysis.Severity(1+i%4), "r")
		v.Entity = "C"
		in = append(in, v)
	}
	a, ca := Merge(in)
	b, cb := Merge(in)
	assert.Equal(t, a, b)
	assert.Equal(t, ca, cb)
}

func TestMergeEmpty(t *testing.T) {
	got, correlations := Merge()
	assert.Empty(t, got)
	assert.Empty(t, correlations)
}
