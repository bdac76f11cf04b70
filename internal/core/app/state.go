package app

import (
	"sync"
	"time"

	coreerrors "connascence/internal/core/errors"
)

// State is a phase of one analysis run.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateParsingFile
	StateDetectingViolations
	StateAggregatingResults
	StateApplyingPolicy
	StateCompleted
	StateFailed
	StateSkippedFile
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateParsingFile:
		return "parsing_file"
	case StateDetectingViolations:
		return "detecting_violations"
	case StateAggregatingResults:
		return "aggregating_results"
	case StateApplyingPolicy:
		return "applying_policy"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateSkippedFile:
		return "skipped_file"
	}
	return "unknown"
}

// Files of a project run are processed concurrently, so the per-file states
// may follow each other in any order until aggregation starts.
var transitions = map[State][]State{
	StateIdle:                {StateInitializing},
	StateInitializing:        {StateParsingFile, StateSkippedFile, StateAggregatingResults, StateFailed},
	StateParsingFile:         {StateParsingFile, StateDetectingViolations, StateSkippedFile, StateAggregatingResults, StateFailed},
	StateDetectingViolations: {StateParsingFile, StateDetectingViolations, StateSkippedFile, StateAggregatingResults, StateFailed},
	StateSkippedFile:         {StateParsingFile, StateDetectingViolations, StateSkippedFile, StateAggregatingResults, StateFailed},
	StateAggregatingResults:  {StateApplyingPolicy, StateFailed},
	StateApplyingPolicy:      {StateCompleted, StateFailed},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	Path string    `json:"path,omitempty"`
	At   time.Time `json:"at"`
}

// RunRecord is the audit trail of one run.
type RunRecord struct {
	RunID       string       `json:"run_id"`
	State       State        `json:"state"`
	Transitions []Transition `json:"transitions"`
	Skipped     []string     `json:"skipped,omitempty"`
}

type tracker struct {
	mu     sync.Mutex
	now    func() time.Time
	record RunRecord
}

func newTracker(runID string, now func() time.Time) *tracker {
	return &tracker{now: now, record: RunRecord{RunID: runID, State: StateIdle}}
}

// move applies a transition. An illegal one is an engine bug and is reported
// as INTERNAL_ERROR without changing state.
func (t *tracker) move(to State, path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	from := t.record.State
	if !canTransition(from, to) {
		return coreerrors.Newf(coreerrors.CodeInternal, "illegal state transition %s -> %s", from, to)
	}
	t.record.State = to
	t.record.Transitions = append(t.record.Transitions, Transition{From: from, To: to, Path: path, At: t.now()})
	if to == StateSkippedFile && path != "" {
		t.record.Skipped = append(t.record.Skipped, path)
	}
	return nil
}

// fail moves to Failed from any non-terminal state.
func (t *tracker) fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.record.State == StateCompleted || t.record.State == StateFailed {
		return
	}
	t.record.Transitions = append(t.record.Transitions, Transition{From: t.record.State, To: StateFailed, At: t.now()})
	t.record.State = StateFailed
}

func (t *tracker) snapshot() RunRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.record
	out.Transitions = append([]Transition(nil), t.record.Transitions...)
	out.Skipped = append([]string(nil), t.record.Skipped...)
	return out
}
