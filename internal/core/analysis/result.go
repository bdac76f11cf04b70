package analysis

import (
	"strings"
	"time"

	coreerrors "connascence/internal/core/errors"
)

// Mode selects how a project analysis is executed.
type Mode string

const (
	ModeBatch     Mode = "batch"
	ModeStreaming Mode = "streaming"
	ModeHybrid    Mode = "hybrid"
)

func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeBatch:
		return ModeBatch, true
	case ModeStreaming:
		return ModeStreaming, true
	case ModeHybrid:
		return ModeHybrid, true
	}
	return "", false
}

type Summary struct {
	Total         int              `json:"total"`
	BySeverity    map[string]int   `json:"by_severity"`
	ByCategory    map[Category]int `json:"by_category"`
	Diagnostics   int              `json:"diagnostics"`
	FilesAnalyzed int              `json:"files_analyzed"`
	FilesSkipped  int              `json:"files_skipped"`
}

// Summarize counts findings per severity and category. Diagnostics are
// counted separately and excluded from Total.
func Summarize(violations []Violation, filesAnalyzed int) Summary {
	s := Summary{
		BySeverity:    make(map[string]int, 4),
		ByCategory:    make(map[Category]int),
		FilesAnalyzed: filesAnalyzed,
	}
	skipped := make(map[string]bool)
	for _, v := range violations {
		if v.IsDiagnostic() {
			s.Diagnostics++
			if v.Category.SkipsFile() {
				skipped[v.Location.File] = true
			}
			continue
		}
		s.Total++
		s.BySeverity[v.Severity.String()]++
		s.ByCategory[v.Category]++
	}
	s.FilesSkipped = len(skipped)
	return s
}

// GateDecision is the policy verdict for a result.
type GateDecision struct {
	Passed        bool     `json:"passed"`
	MinScore      float64  `json:"min_score"`
	ViolatedRules []string `json:"violated_rules,omitempty"`
}

// Correlation flags an entity that several connascence categories hit at once.
type Correlation struct {
	Path       string     `json:"path"`
	Entity     string     `json:"entity"`
	Categories []Category `json:"categories"`
	Score      float64    `json:"score"`
}

// Result is the aggregate output for a file or project. It is built once per
// run and must be treated as read-only by consumers.
type Result struct {
	RunID        string        `json:"run_id"`
	Mode         Mode          `json:"mode"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Files        []string      `json:"files"`
	Violations   []Violation   `json:"violations"`
	Summary      Summary       `json:"summary"`
	Correlations []Correlation `json:"correlations,omitempty"`
	Score        float64       `json:"score"`
	Gate         GateDecision  `json:"gate"`
}

// Diagnostics returns the number of tooling-failure entries.
func (r *Result) Diagnostics() int {
	if r == nil {
		return 0
	}
	return r.Summary.Diagnostics
}

// Complete reports whether every file was fully analysed. A result with zero
// findings but diagnostics is not a clean codebase.
func (r *Result) Complete() bool {
	return r != nil && r.Summary.Diagnostics == 0
}

// Findings returns the non-diagnostic violations.
func (r *Result) Findings() []Violation {
	if r == nil {
		return nil
	}
	out := make([]Violation, 0, len(r.Violations))
	for _, v := range r.Violations {
		if !v.IsDiagnostic() {
			out = append(out, v)
		}
	}
	return out
}

// Outcome is the status surface a CLI wrapper maps to exit codes.
type Outcome int

const (
	OutcomeClean Outcome = iota
	OutcomeViolationsPassed
	OutcomeGateFailed
	OutcomeConfigurationError
	OutcomeFatalError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeClean:
		return "clean"
	case OutcomeViolationsPassed:
		return "violations_passed"
	case OutcomeGateFailed:
		return "gate_failed"
	case OutcomeConfigurationError:
		return "configuration_error"
	default:
		return "fatal_error"
	}
}

func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeClean, OutcomeViolationsPassed:
		return 0
	case OutcomeGateFailed:
		return 1
	case OutcomeConfigurationError:
		return 2
	default:
		return 3
	}
}

func (r *Result) Outcome() Outcome {
	if r == nil {
		return OutcomeFatalError
	}
	if !r.Gate.Passed {
		return OutcomeGateFailed
	}
	if r.Summary.Total > 0 || r.Summary.Diagnostics > 0 {
		return OutcomeViolationsPassed
	}
	return OutcomeClean
}

// OutcomeForError classifies a run-level error.
func OutcomeForError(err error) Outcome {
	if err == nil {
		return OutcomeClean
	}
	if coreerrors.IsCode(err, coreerrors.CodeConfiguration) {
		return OutcomeConfigurationError
	}
	return OutcomeFatalError
}

// Delta is one incremental update emitted by a streaming session. Added and
// Resolved compare Result with the session's previous result, so a change can
// also resolve cross-file findings reported against other files.
type Delta struct {
	SessionID string      `json:"session_id"`
	Seq       uint64      `json:"seq"`
	Changed   []string    `json:"changed"`
	Removed   []string    `json:"removed,omitempty"`
	Added     []Violation `json:"added,omitempty"`
	Resolved  []Violation `json:"resolved,omitempty"`
	Result    *Result     `json:"result"`
}
