package history

import (
	"time"

	"connascence/internal/core/analysis"
)

const SchemaVersion = 1

// Snapshot is the persisted summary of one project run.
type Snapshot struct {
	SchemaVersion int       `json:"schema_version"`
	ProjectKey    string    `json:"project_key"`
	RunID         string    `json:"run_id"`
	Timestamp     time.Time `json:"timestamp"`
	Mode          string    `json:"mode"`
	FileCount     int       `json:"file_count"`
	Violations    int       `json:"violations"`
	Critical      int       `json:"critical"`
	High          int       `json:"high"`
	Medium        int       `json:"medium"`
	Low           int       `json:"low"`
	Diagnostics   int       `json:"diagnostics"`
	Score         float64   `json:"score"`
	Passed        bool      `json:"passed"`
}

// FromResult captures the counters of a finished run.
func FromResult(projectKey string, r *analysis.Result) Snapshot {
	if r == nil {
		return Snapshot{ProjectKey: projectKey}
	}
	ts := r.FinishedAt
	if ts.IsZero() {
		ts = r.StartedAt
	}
	return Snapshot{
		SchemaVersion: SchemaVersion,
		ProjectKey:    projectKey,
		RunID:         r.RunID,
		Timestamp:     ts.UTC(),
		Mode:          string(r.Mode),
		FileCount:     len(r.Files),
		Violations:    r.Summary.Total,
		Critical:      r.Summary.BySeverity[analysis.SeverityCritical.String()],
		High:          r.Summary.BySeverity[analysis.SeverityHigh.String()],
		Medium:        r.Summary.BySeverity[analysis.SeverityMedium.String()],
		Low:           r.Summary.BySeverity[analysis.SeverityLow.String()],
		Diagnostics:   r.Summary.Diagnostics,
		Score:         r.Score,
		Passed:        r.Gate.Passed,
	}
}

type TrendPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	RunID           string    `json:"run_id"`
	Score           float64   `json:"score"`
	Violations      int       `json:"violations"`
	Critical        int       `json:"critical"`
	Diagnostics     int       `json:"diagnostics"`
	Passed          bool      `json:"passed"`
	DeltaScore      float64   `json:"delta_score"`
	DeltaViolations int       `json:"delta_violations"`
	DeltaCritical   int       `json:"delta_critical"`
	AvgScore        float64   `json:"avg_score"`
	WindowHours     float64   `json:"window_hours"`
}

type TrendReport struct {
	SchemaVersion int          `json:"schema_version"`
	ProjectKey    string       `json:"project_key"`
	Since         time.Time    `json:"since"`
	Until         time.Time    `json:"until"`
	Window        string       `json:"window"`
	ScanCount     int          `json:"scan_count"`
	Points        []TrendPoint `json:"points"`
}

// Latest returns the newest point, false for an empty report.
func (r TrendReport) Latest() (TrendPoint, bool) {
	if len(r.Points) == 0 {
		return TrendPoint{}, false
	}
	return r.Points[len(r.Points)-1], true
}
