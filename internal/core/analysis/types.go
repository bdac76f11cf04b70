// Package analysis holds the engine's output contract: violations, their
// taxonomy, and the aggregated result handed to formatters and CLI wrappers.
package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Category is a connascence type, or a diagnostic kind for tooling failures.
type Category string

const (
	CategoryMeaning    Category = "Meaning"
	CategoryPosition   Category = "Position"
	CategoryAlgorithm  Category = "Algorithm"
	CategoryTiming     Category = "Timing"
	CategoryValue      Category = "Value"
	CategoryExecution  Category = "Execution"
	CategoryIdentity   Category = "Identity"
	CategoryName       Category = "Name"
	CategoryConvention Category = "Convention"
	CategoryGodObject  Category = "GodObject"
	CategoryCompliance Category = "Compliance"

	CategoryParseError    Category = "ParseError"
	CategoryDetectorError Category = "DetectorError"
	CategoryCacheIOError  Category = "CacheIOError"
	CategoryTimeout       Category = "Timeout"
)

var findingCategories = []Category{
	CategoryMeaning,
	CategoryPosition,
	CategoryAlgorithm,
	CategoryTiming,
	CategoryValue,
	CategoryExecution,
	CategoryIdentity,
	CategoryName,
	CategoryConvention,
	CategoryGodObject,
	CategoryCompliance,
}

var diagnosticCategories = []Category{
	CategoryParseError,
	CategoryDetectorError,
	CategoryCacheIOError,
	CategoryTimeout,
}

// FindingCategories returns the code-quality categories in declaration order.
func FindingCategories() []Category {
	return append([]Category(nil), findingCategories...)
}

// IsDiagnostic reports whether the category records a tooling failure rather
// than a code-quality finding.
func (c Category) IsDiagnostic() bool {
	for _, d := range diagnosticCategories {
		if c == d {
			return true
		}
	}
	return false
}

// SkipsFile reports whether the diagnostic means the file produced no
// findings at all. A DetectorError leaves the other detectors' findings in
// place, so it does not.
func (c Category) SkipsFile() bool {
	switch c {
	case CategoryParseError, CategoryCacheIOError, CategoryTimeout:
		return true
	}
	return false
}

// ParseCategory matches a category name case-insensitively.
func ParseCategory(raw string) (Category, bool) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.NewReplacer("_", "", "-", "", " ", "").Replace(norm)
	for _, c := range append(FindingCategories(), diagnosticCategories...) {
		if strings.ToLower(string(c)) == norm {
			return c, true
		}
	}
	if norm == "godobjects" || norm == "god" {
		return CategoryGodObject, true
	}
	return "", false
}

// Severity is ordered: a larger value is more severe.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Severities lists all severities from least to most severe.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityCritical
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, ok := ParseSeverity(string(text))
	if !ok {
		return fmt.Errorf("unknown severity %q", string(text))
	}
	*s = parsed
	return nil
}

// ParseSeverity accepts the lowercase names produced by String.
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return SeverityLow, true
	case "medium":
		return SeverityMedium, true
	case "high":
		return SeverityHigh, true
	case "critical":
		return SeverityCritical, true
	}
	return 0, false
}

type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Violation is one detected defect instance. Weight is stamped by the policy
// engine; detectors leave it at zero.
type Violation struct {
	ID             string         `json:"id"`
	RuleID         string         `json:"rule_id"`
	Category       Category       `json:"category"`
	Severity       Severity       `json:"severity"`
	Weight         float64        `json:"weight"`
	Location       Location       `json:"location"`
	Entity         string         `json:"entity,omitempty"`
	Description    string         `json:"description"`
	Recommendation string         `json:"recommendation,omitempty"`
	Confidence     float64        `json:"confidence"`
	Correlation    float64        `json:"correlation,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
}

// ViolationID hashes file, line and rule into a stable identifier.
func ViolationID(file string, line int, rule string) string {
	sum := xxhash.Sum64String(file + "|" + strconv.Itoa(line) + "|" + rule)
	return strconv.FormatUint(sum, 16)
}

// NewViolation fills the identifying fields shared by every detector.
func NewViolation(rule string, category Category, severity Severity, loc Location) Violation {
	return Violation{
		ID:         ViolationID(loc.File, loc.Line, rule),
		RuleID:     rule,
		Category:   category,
		Severity:   severity,
		Location:   loc,
		Confidence: 1,
	}
}

// IsDiagnostic reports whether the violation records a tooling failure.
func (v Violation) IsDiagnostic() bool {
	return v.Category.IsDiagnostic()
}

// IntContext reads a numeric context value, tolerating the integer and float
// types detectors store.
func (v Violation) IntContext(key string) (int, bool) {
	raw, ok := v.Context[key]
	if !ok {
		return 0, false
	}
	switch n := raw.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// Diagnostic builds the synthetic violation recorded for a per-file tooling
// failure.
func Diagnostic(category Category, path string, err error) Violation {
	v := NewViolation("diagnostic/"+strings.ToLower(string(category)), category, SeverityLow, Location{File: path, Line: 0, Column: 0})
	v.Description = fmt.Sprintf("%s while analysing file", category)
	if err != nil {
		v.Description = err.Error()
	}
	v.Recommendation = "Analysis of this file is incomplete; fix the underlying error and re-run."
	return v
}

// DetectorDiagnostic is the DetectorError diagnostic for one detector on one
// file. The detector category is part of the ID, so failures of different
// detectors on the same file stay distinct.
func DetectorDiagnostic(path string, detector Category, err error) Violation {
	v := Diagnostic(CategoryDetectorError, path, err)
	v.ID = ViolationID(path, 0, v.RuleID+"/"+string(detector))
	v.Context = map[string]any{"detector": string(detector)}
	return v
}
