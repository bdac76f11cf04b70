package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"connascence/internal/core/analysis"
	coreerrors "connascence/internal/core/errors"
	"connascence/internal/engine/detectors"
	"connascence/internal/engine/parser"
	"connascence/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// fileResult is the output of one file's pipeline. tree is nil when the file
// could not be parsed; such a result carries only diagnostics.
type fileResult struct {
	path       string
	hash       uint64
	tree       *parser.File
	violations []analysis.Violation
}

func (r fileResult) analysed() bool { return r.tree != nil }

// analyzeOne runs the pipeline for path under the per-file timeout. When the
// deadline passes the partial work is abandoned and a Timeout diagnostic takes
// its place.
func (e *Engine) analyzeOne(ctx context.Context, t *tracker, path string) fileResult {
	ctx, span := observability.Tracer.Start(ctx, "engine.AnalyzeFile", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()
	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("file").Observe(time.Since(start).Seconds())
	}()

	if timeout := e.cfg.Analysis.FileTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan fileResult, 1)
	go func() { done <- e.runPipeline(ctx, t, path) }()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		select {
		case res := <-done:
			return res
		default:
		}
		err := coreerrors.AddContext(
			coreerrors.Wrap(ctx.Err(), coreerrors.CodeTimeout, "file analysis timed out"),
			coreerrors.CtxPath, path,
		)
		span.SetStatus(codes.Error, "timeout")
		slog.Warn("file analysis timed out", "path", path, "timeout", e.cfg.Analysis.FileTimeout)
		e.move(t, StateSkippedFile, path)
		return fileResult{path: path, violations: []analysis.Violation{analysis.Diagnostic(analysis.CategoryTimeout, path, err)}}
	}
}

func (e *Engine) runPipeline(ctx context.Context, t *tracker, path string) fileResult {
	res := fileResult{path: path}
	e.move(t, StateParsingFile, path)

	tree, err := e.cache.GetTree(path)
	if err != nil {
		category := analysis.CategoryParseError
		if coreerrors.IsCode(err, coreerrors.CodeCacheIO) {
			category = analysis.CategoryCacheIOError
		}
		slog.Warn("skipping file", "path", path, "category", category, "error", err)
		e.move(t, StateSkippedFile, path)
		res.violations = []analysis.Violation{analysis.Diagnostic(category, path, err)}
		return res
	}
	lines, err := e.cache.GetLines(path)
	if err != nil {
		e.move(t, StateSkippedFile, path)
		res.violations = []analysis.Violation{analysis.Diagnostic(analysis.CategoryCacheIOError, path, err)}
		return res
	}
	// A zero hash never matches, so the file is simply re-analysed next time.
	if res.hash, err = e.cache.ContentHash(path); err != nil {
		slog.Debug("content hash unavailable", "path", path, "error", err)
	}
	res.tree = tree

	e.move(t, StateDetectingViolations, path)
	held, err := e.pool.AcquireAll(ctx, path, lines)
	if err != nil {
		category := analysis.CategoryDetectorError
		if coreerrors.IsCode(err, coreerrors.CodeTimeout) {
			category = analysis.CategoryTimeout
		}
		res.violations = append(res.violations, analysis.Diagnostic(category, path, err))
	} else {
		res.violations = append(res.violations, e.runDetectors(held, path, tree, lines)...)
		if err := e.pool.ReleaseAll(held); err != nil {
			slog.Error("failed to release detectors", "path", path, "error", err)
		}
	}

	res.violations = append(res.violations, e.compliance.Check(tree)...)
	return res
}

// runDetectors runs every held detector in category order. A failing
// detector contributes a DetectorError diagnostic; the others still run.
func (e *Engine) runDetectors(held map[analysis.Category]detectors.Detector, path string, tree *parser.File, lines []string) []analysis.Violation {
	categories := make([]analysis.Category, 0, len(held))
	for category := range held {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	var out []analysis.Violation
	for _, category := range categories {
		start := time.Now()
		found, err := detectSafely(held[category], tree, lines)
		observability.DetectorDuration.WithLabelValues(string(category)).Observe(time.Since(start).Seconds())
		if err != nil {
			slog.Warn("detector failed", "path", path, "category", category, "error", err)
			out = append(out, analysis.DetectorDiagnostic(path, category, err))
			continue
		}
		out = append(out, found...)
	}
	return out
}

func detectSafely(d detectors.Detector, tree *parser.File, lines []string) (found []analysis.Violation, err error) {
	defer func() {
		if r := recover(); r != nil {
			found = nil
			err = coreerrors.AddContext(
				coreerrors.New(coreerrors.CodeDetector, fmt.Sprintf("detector panicked: %v", r)),
				coreerrors.CtxCategory, string(d.Category()),
			)
		}
	}()
	found, err = d.Detect(tree, lines)
	if err != nil && !coreerrors.IsCode(err, coreerrors.CodeDetector) {
		err = coreerrors.AddContext(
			coreerrors.Wrap(err, coreerrors.CodeDetector, "detector failed"),
			coreerrors.CtxCategory, string(d.Category()),
		)
	}
	return found, err
}

// move records a transition. Work abandoned after a timeout may try to move a
// run that has already finished; the tracker refuses and that is logged only.
func (e *Engine) move(t *tracker, to State, path string) {
	if t == nil {
		return
	}
	if err := t.move(to, path); err != nil {
		slog.Debug("state transition refused", "run_id", t.snapshot().RunID, "path", path, "error", err)
	}
}
