package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"connascence/internal/core/analysis"
	coreerrors "connascence/internal/core/errors"
	"connascence/internal/data/history"
	"connascence/internal/engine/aggregate"
	"connascence/internal/engine/parser"
	"connascence/internal/shared/observability"
	"connascence/internal/shared/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// AnalyzeFile runs the full pipeline over a single file. Parse and I/O
// failures are reported inside the result as diagnostics; only cancellation
// of ctx is returned as an error.
func (e *Engine) AnalyzeFile(ctx context.Context, path string) (*analysis.Result, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	runID := uuid.NewString()
	t := e.startRun(runID)
	started := e.now()
	e.move(t, StateInitializing, "")

	r := e.analyzeOne(ctx, t, path)
	if err := ctx.Err(); err != nil {
		t.fail()
		return nil, coreerrors.Wrap(err, coreerrors.CodeTimeout, "file analysis cancelled")
	}
	e.remember([]fileResult{r})
	return e.finish(t, runID, analysis.ModeBatch, started, []string{path}, []fileResult{r}), nil
}

// AnalyzeProject analyses every file under paths. Batch re-analyses
// everything; streaming reuses per-file results whose content hash is
// unchanged since the last run; hybrid runs a batch baseline and then keeps
// a streaming session open over the same roots.
func (e *Engine) AnalyzeProject(ctx context.Context, paths []string, mode analysis.Mode) (*analysis.Result, error) {
	switch mode {
	case "", analysis.ModeBatch:
		return e.runProject(ctx, paths, analysis.ModeBatch, false)
	case analysis.ModeStreaming:
		return e.runProject(ctx, paths, analysis.ModeStreaming, true)
	case analysis.ModeHybrid:
		res, _, err := e.StartHybrid(ctx, paths)
		return res, err
	}
	return nil, coreerrors.Newf(coreerrors.CodeValidationError, "unknown analysis mode %q", mode)
}

// StartHybrid runs the batch baseline and opens a streaming session seeded
// with its per-file results.
func (e *Engine) StartHybrid(ctx context.Context, paths []string) (*analysis.Result, *Session, error) {
	res, err := e.runProject(ctx, paths, analysis.ModeHybrid, false)
	if err != nil {
		return nil, nil, err
	}
	s, err := e.startSession(ctx, paths, res)
	if err != nil {
		return res, nil, err
	}
	return res, s, nil
}

func (e *Engine) runProject(ctx context.Context, paths []string, mode analysis.Mode, reuse bool) (*analysis.Result, error) {
	runID := uuid.NewString()
	ctx, span := observability.Tracer.Start(ctx, "engine.AnalyzeProject", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("mode", string(mode)),
	))
	defer span.End()

	t := e.startRun(runID)
	started := e.now()
	e.move(t, StateInitializing, "")

	files, err := e.enumerator.ListFiles(ctx, paths)
	if err != nil {
		t.fail()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	slog.Info("analysing project", "run_id", runID, "mode", mode, "files", len(files), "workers", e.cfg.Analysis.Workers)

	results, reused := e.analyzeFiles(ctx, t, files, reuse)
	if err := ctx.Err(); err != nil {
		t.fail()
		span.SetStatus(codes.Error, "cancelled")
		return nil, coreerrors.Wrap(err, coreerrors.CodeTimeout, "project analysis cancelled")
	}
	e.remember(results)

	res := e.finish(t, runID, mode, started, files, results)
	span.SetAttributes(
		attribute.Int("files", len(files)),
		attribute.Int("reused", reused),
		attribute.Int("violations", len(res.Violations)),
		attribute.Float64("score", res.Score),
	)
	e.saveHistory(res)
	slog.Info("project analysis complete",
		"run_id", runID,
		"violations", res.Summary.Total,
		"diagnostics", res.Summary.Diagnostics,
		"score", res.Score,
		"passed", res.Gate.Passed,
		"reused", reused,
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)
	slog.Debug("heap after run", "run_id", runID, "heap_mb", util.GetHeapAllocMB())
	return res, nil
}

// analyzeFiles fans files out to at most Workers goroutines. Every file gets
// a slot in the returned slice regardless of how its pipeline ended.
func (e *Engine) analyzeFiles(ctx context.Context, t *tracker, files []string, reuse bool) ([]fileResult, int) {
	results := make([]fileResult, len(files))
	reusedFlags := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Analysis.Workers)
	for i, path := range files {
		g.Go(func() error {
			if reuse {
				if prev, ok := e.reusable(path); ok {
					results[i] = prev
					reusedFlags[i] = true
					return nil
				}
			}
			results[i] = e.analyzeOne(gctx, t, path)
			return nil
		})
	}
	_ = g.Wait()

	reused := 0
	for _, ok := range reusedFlags {
		if ok {
			reused++
		}
	}
	return results, reused
}

// finish merges per-file output after the barrier, runs the cross-file scan
// and applies policy.
func (e *Engine) finish(t *tracker, runID string, mode analysis.Mode, started time.Time, files []string, results []fileResult) *analysis.Result {
	e.move(t, StateAggregatingResults, "")

	groups := make([][]analysis.Violation, 0, len(results)+1)
	trees := make([]*parser.File, 0, len(results))
	analysed := 0
	for _, r := range results {
		groups = append(groups, r.violations)
		if r.analysed() {
			trees = append(trees, r.tree)
			analysed++
		}
	}
	groups = append(groups, e.duplication.Scan(trees))
	violations, correlations := aggregate.Merge(groups...)

	e.move(t, StateApplyingPolicy, "")
	e.policy.Stamp(violations)
	eval := e.policy.Evaluate(violations)

	res := &analysis.Result{
		RunID:        runID,
		Mode:         mode,
		StartedAt:    started,
		FinishedAt:   e.now(),
		Files:        files,
		Violations:   violations,
		Summary:      analysis.Summarize(violations, analysed),
		Correlations: correlations,
		Score:        eval.Score,
		Gate:         eval.Gate,
	}
	e.move(t, StateCompleted, "")
	record(res)
	return res
}

func record(res *analysis.Result) {
	for _, v := range res.Violations {
		if v.IsDiagnostic() {
			observability.DiagnosticsTotal.WithLabelValues(string(v.Category)).Inc()
			continue
		}
		observability.ViolationsTotal.WithLabelValues(string(v.Category), v.Severity.String()).Inc()
	}
	observability.ComplianceScore.Set(res.Score)
	observability.AnalysisDuration.WithLabelValues("project").Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
}

// saveHistory is best effort; a failed snapshot never fails the run.
func (e *Engine) saveHistory(res *analysis.Result) {
	if e.history == nil {
		return
	}
	if err := e.history.SaveSnapshot(e.projectKey, history.FromResult(e.projectKey, res)); err != nil {
		slog.Warn("failed to save history snapshot", "run_id", res.RunID, "error", err)
	}
}

// reusable returns the last result for path if its content is unchanged.
// Files that could not be analysed or hashed are always retried.
func (e *Engine) reusable(path string) (fileResult, bool) {
	e.mu.Lock()
	prev, ok := e.known[path]
	e.mu.Unlock()
	if !ok || !prev.analysed() || prev.hash == 0 {
		return fileResult{}, false
	}
	hash, err := e.cache.ContentHash(path)
	if err != nil || hash != prev.hash {
		return fileResult{}, false
	}
	return prev, true
}

func (e *Engine) remember(results []fileResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range results {
		e.known[r.path] = r
	}
}

func (e *Engine) forget(path string) {
	e.mu.Lock()
	delete(e.known, path)
	e.mu.Unlock()
}
