package detectors

import (
	"fmt"
	"strings"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	"connascence/internal/engine/parser"
)

const RuleSleepCoupling = "sleep-coupling"

// Timing flags code that relies on wall-clock delays for correctness.
type Timing struct {
	accumulator
	calls []string
}

func NewTiming(cfg config.Timing) *Timing {
	return &Timing{calls: cfg.SleepCalls}
}

func (d *Timing) Category() analysis.Category { return analysis.CategoryTiming }

func (d *Timing) Detect(file *parser.File, _ []string) ([]analysis.Violation, error) {
	if file == nil {
		return nil, nil
	}
	for _, call := range file.Calls {
		if !d.matches(call.Name) {
			continue
		}
		v := analysis.NewViolation(RuleSleepCoupling, analysis.CategoryTiming, analysis.SeverityMedium, d.location(file, call.Location))
		v.Entity = call.Function
		v.Description = fmt.Sprintf("Call to %s couples correctness to timing", call.Name)
		v.Recommendation = "Wait on an explicit signal (event, channel, future or condition) instead of sleeping."
		v.Confidence = 0.9
		v.Context = map[string]any{"call": call.Name, "args": call.Args}
		d.add(v)
	}
	return d.results(), nil
}

// matches compares the full dotted name; an entry without a dot also matches
// the last segment of a qualified call.
func (d *Timing) matches(name string) bool {
	last := name
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		last = name[idx+1:]
	}
	for _, entry := range d.calls {
		if entry == name || (!strings.Contains(entry, ".") && entry == last) {
			return true
		}
	}
	return false
}
