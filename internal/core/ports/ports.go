package ports

import (
	"context"
	"time"

	"connascence/internal/core/analysis"
	"connascence/internal/data/history"
	"connascence/internal/engine/cache"
	"connascence/internal/engine/parser"
	"connascence/internal/engine/pool"
)

// SourceParser turns file content into the language-neutral syntax model.
// Malformed input must fail with a PARSE_ERROR.
type SourceParser interface {
	Parse(path string, content []byte) (*parser.File, error)
	Language(path string) string
	IsSupportedPath(path string) bool
}

// FileEnumerator lists analysable files under the given roots. The engine
// treats the result as an opaque ordered list.
type FileEnumerator interface {
	ListFiles(ctx context.Context, roots []string) ([]string, error)
}

// HistoryStore abstracts snapshot persistence for trend reporting.
type HistoryStore interface {
	SaveSnapshot(projectKey string, snapshot history.Snapshot) error
	LoadSnapshots(projectKey string, since time.Time) ([]history.Snapshot, error)
}

// StreamSession is a long-lived incremental analysis over a set of roots.
type StreamSession interface {
	ID() string
	Notify(paths ...string)
	Deltas() <-chan analysis.Delta
	Stop() error
}

// AnalysisService is the engine surface exposed to CLI wrappers and other
// driving adapters.
type AnalysisService interface {
	AnalyzeFile(ctx context.Context, path string) (*analysis.Result, error)
	AnalyzeProject(ctx context.Context, paths []string, mode analysis.Mode) (*analysis.Result, error)
	StartStreaming(ctx context.Context, paths []string) (StreamSession, error)
	StopStreaming() error
	GetCacheStats() cache.Stats
	GetPoolStats() map[analysis.Category]pool.CategoryStats
}
