// Package detectors holds the connascence detectors and the registry that
// maps each category to a factory. Detectors are stateful only between
// Reset and Detect; the pool guarantees a single owner at a time.
package detectors

import (
	"sort"
	"strings"
	"sync"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	coreerrors "connascence/internal/core/errors"
	"connascence/internal/engine/parser"
)

// Detector inspects one parsed file. Detect must be deterministic for the
// same input, perform no I/O, and return violations the caller may keep after
// the instance is reset.
type Detector interface {
	Category() analysis.Category
	Reset(path string, lines []string)
	Detect(file *parser.File, lines []string) ([]analysis.Violation, error)
}

type Factory func() Detector

type Registry struct {
	mu        sync.RWMutex
	factories map[analysis.Category]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[analysis.Category]Factory)}
}

// Builtin returns a registry holding every built-in detector enabled in cfg.
// Name has no built-in detector; callers may Register one.
func Builtin(cfg config.Detectors) *Registry {
	r := NewRegistry()
	add := func(enabled *bool, cat analysis.Category, f Factory) {
		if config.Enabled(enabled) {
			r.factories[cat] = f
		}
	}
	add(cfg.MagicLiteral.Enabled, analysis.CategoryMeaning, func() Detector { return NewMagicLiteral(cfg.MagicLiteral) })
	add(cfg.Position.Enabled, analysis.CategoryPosition, func() Detector { return NewPosition(cfg.Position) })
	add(cfg.GodObject.Enabled, analysis.CategoryGodObject, func() Detector { return NewGodObject(cfg.GodObject) })
	add(cfg.Algorithm.Enabled, analysis.CategoryAlgorithm, func() Detector { return NewAlgorithm(cfg.Algorithm) })
	add(cfg.Timing.Enabled, analysis.CategoryTiming, func() Detector { return NewTiming(cfg.Timing) })
	add(cfg.Convention.Enabled, analysis.CategoryConvention, func() Detector { return NewConvention() })
	add(cfg.Values.Enabled, analysis.CategoryValue, func() Detector { return NewValues(cfg.Values, cfg.MagicLiteral) })
	add(cfg.Execution.Enabled, analysis.CategoryExecution, func() Detector { return NewExecution(cfg.Execution) })
	add(cfg.Identity.Enabled, analysis.CategoryIdentity, func() Detector { return NewIdentity() })
	return r
}

// Register adds a factory for a category that has none yet.
func (r *Registry) Register(category analysis.Category, factory Factory) error {
	if strings.TrimSpace(string(category)) == "" || factory == nil {
		return coreerrors.New(coreerrors.CodeValidationError, "detector registration needs a category and a factory")
	}
	if category.IsDiagnostic() {
		return coreerrors.AddContext(
			coreerrors.New(coreerrors.CodeValidationError, "diagnostic categories cannot have detectors"),
			coreerrors.CtxCategory, string(category),
		)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[category]; exists {
		return coreerrors.AddContext(
			coreerrors.New(coreerrors.CodeValidationError, "detector already registered"),
			coreerrors.CtxCategory, string(category),
		)
	}
	r.factories[category] = factory
	return nil
}

func (r *Registry) Unregister(category analysis.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, category)
}

// Categories returns the registered categories in sorted order.
func (r *Registry) Categories() []analysis.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]analysis.Category, 0, len(r.factories))
	for cat := range r.factories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// New builds a fresh instance for category.
func (r *Registry) New(category analysis.Category) (Detector, error) {
	r.mu.RLock()
	factory, ok := r.factories[category]
	r.mu.RUnlock()
	if !ok {
		return nil, coreerrors.AddContext(
			coreerrors.New(coreerrors.CodeNotFound, "no detector registered"),
			coreerrors.CtxCategory, string(category),
		)
	}
	d := factory()
	if d == nil || d.Category() != category {
		return nil, coreerrors.AddContext(
			coreerrors.New(coreerrors.CodeDetector, "factory returned a detector for the wrong category"),
			coreerrors.CtxCategory, string(category),
		)
	}
	return d, nil
}

// accumulator is the per-file state shared by the built-in detectors.
type accumulator struct {
	path  string
	lines []string
	found []analysis.Violation
}

func (a *accumulator) Reset(path string, lines []string) {
	a.path = path
	a.lines = lines
	clear(a.found)
	a.found = a.found[:0]
}

func (a *accumulator) location(file *parser.File, loc parser.Location) analysis.Location {
	path := a.path
	if path == "" && file != nil {
		path = file.Path
	}
	return analysis.Location{File: path, Line: loc.Line, Column: loc.Column}
}

func (a *accumulator) add(v analysis.Violation) {
	if snippet := a.snippet(v.Location.Line); snippet != "" {
		if v.Context == nil {
			v.Context = map[string]any{}
		}
		v.Context["source"] = snippet
	}
	a.found = append(a.found, v)
}

func (a *accumulator) snippet(line int) string {
	if line < 1 || line > len(a.lines) {
		return ""
	}
	return strings.TrimSpace(a.lines[line-1])
}

// results copies the accumulated violations in source order; the backing
// array is reused after the next Reset.
func (a *accumulator) results() []analysis.Violation {
	if len(a.found) == 0 {
		return nil
	}
	out := make([]analysis.Violation, len(a.found))
	copy(out, a.found)
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := out[i].Location, out[j].Location
		if li.Line != lj.Line {
			return li.Line < lj.Line
		}
		if li.Column != lj.Column {
			return li.Column < lj.Column
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out
}
