package history

import (
	"fmt"
	"math"
	"time"
)

// BuildTrendReport derives per-run deltas and a moving average score from
// snapshots ordered oldest first.
func BuildTrendReport(projectKey string, snapshots []Snapshot, window time.Duration) (TrendReport, error) {
	if len(snapshots) == 0 {
		return TrendReport{}, fmt.Errorf("no snapshots available for project %q", projectKey)
	}

	points := make([]TrendPoint, 0, len(snapshots))
	for i, cur := range snapshots {
		point := TrendPoint{
			Timestamp:   cur.Timestamp,
			RunID:       cur.RunID,
			Score:       cur.Score,
			Violations:  cur.Violations,
			Critical:    cur.Critical,
			Diagnostics: cur.Diagnostics,
			Passed:      cur.Passed,
		}
		if i > 0 {
			prev := snapshots[i-1]
			point.DeltaScore = round2(cur.Score - prev.Score)
			point.DeltaViolations = cur.Violations - prev.Violations
			point.DeltaCritical = cur.Critical - prev.Critical
		}
		point.AvgScore = round2(movingAverage(snapshots, i, window))
		point.WindowHours = round2(window.Hours())
		points = append(points, point)
	}

	return TrendReport{
		SchemaVersion: SchemaVersion,
		ProjectKey:    projectKey,
		Since:         snapshots[0].Timestamp,
		Until:         snapshots[len(snapshots)-1].Timestamp,
		Window:        window.String(),
		ScanCount:     len(points),
		Points:        points,
	}, nil
}

func movingAverage(snapshots []Snapshot, index int, window time.Duration) float64 {
	if window <= 0 {
		return snapshots[index].Score
	}
	cutoff := snapshots[index].Timestamp.Add(-window)
	sum, n := 0.0, 0
	for i := index; i >= 0; i-- {
		if snapshots[i].Timestamp.Before(cutoff) {
			break
		}
		sum += snapshots[i].Score
		n++
	}
	return sum / float64(n)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
