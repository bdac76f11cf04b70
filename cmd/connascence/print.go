package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"connascence/internal/core/analysis"
	"connascence/internal/data/history"
)

func printResult(w io.Writer, res *analysis.Result, limit int) {
	gate := "passed"
	if !res.Gate.Passed {
		gate = "failed"
	}
	fmt.Fprintf(w, "files: %d analysed, %d skipped\n", res.Summary.FilesAnalyzed, res.Summary.FilesSkipped)
	fmt.Fprintf(w, "violations: %d (%s)\n", res.Summary.Total, severityCounts(res.Summary))
	if res.Summary.Diagnostics > 0 {
		fmt.Fprintf(w, "diagnostics: %d, result incomplete\n", res.Summary.Diagnostics)
	}
	fmt.Fprintf(w, "score: %.2f (min %.2f), gate %s\n", res.Score, res.Gate.MinScore, gate)
	if len(res.Gate.ViolatedRules) > 0 {
		fmt.Fprintf(w, "violated rules: %s\n", strings.Join(res.Gate.ViolatedRules, ", "))
	}
	for i, v := range res.Violations {
		if i == limit {
			fmt.Fprintf(w, "... %d more\n", len(res.Violations)-limit)
			break
		}
		printViolation(w, "", v)
	}
}

func printDelta(w io.Writer, d analysis.Delta) {
	fmt.Fprintf(w, "#%d changed=%d removed=%d +%d -%d score=%.2f\n",
		d.Seq, len(d.Changed), len(d.Removed), len(d.Added), len(d.Resolved), d.Result.Score)
	for _, v := range d.Added {
		printViolation(w, "+ ", v)
	}
	for _, v := range d.Resolved {
		printViolation(w, "- ", v)
	}
}

func printViolation(w io.Writer, prefix string, v analysis.Violation) {
	fmt.Fprintf(w, "%s%s %s %s/%s %s\n", prefix, v.Location, v.Severity, v.Category, v.RuleID, v.Description)
}

func severityCounts(s analysis.Summary) string {
	keys := make([]string, 0, len(s.BySeverity))
	for k := range s.BySeverity {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, s.BySeverity[k]))
	}
	return strings.Join(parts, " ")
}

func printTrend(w io.Writer, store *history.Store, projectKey string) int {
	snaps, err := store.LoadSnapshots(projectKey, nowFunc().Add(-trendLookback))
	if err != nil {
		fmt.Fprintln(w, err)
		return analysis.OutcomeFatalError.ExitCode()
	}
	report, err := history.BuildTrendReport(projectKey, snaps, trendWindow)
	if err != nil {
		fmt.Fprintln(w, err)
		return analysis.OutcomeFatalError.ExitCode()
	}
	for _, p := range report.Points {
		status := "pass"
		if !p.Passed {
			status = "fail"
		}
		fmt.Fprintf(w, "%s %s score=%.2f (%+.2f, avg %.2f) violations=%d (%+d) %s\n",
			p.Timestamp.Format("2006-01-02 15:04"), p.RunID, p.Score, p.DeltaScore, p.AvgScore, p.Violations, p.DeltaViolations, status)
	}
	return 0
}
