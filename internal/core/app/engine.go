// Package app is the analysis orchestrator. It drives files through the
// source cache, the pooled detectors and the compliance scan, then merges
// the per-file output, scores it and records the run.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	coreerrors "connascence/internal/core/errors"
	"connascence/internal/core/ports"
	"connascence/internal/engine/cache"
	"connascence/internal/engine/compliance"
	"connascence/internal/engine/detectors"
	"connascence/internal/engine/duplication"
	"connascence/internal/engine/parser"
	"connascence/internal/engine/policy"
	"connascence/internal/engine/pool"
)

type Option func(*Engine)

// WithRegistry replaces the built-in detector set, e.g. to add plugin
// categories.
func WithRegistry(r *detectors.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

func WithParser(p ports.SourceParser) Option {
	return func(e *Engine) { e.parser = p }
}

func WithEnumerator(en ports.FileEnumerator) Option {
	return func(e *Engine) { e.enumerator = en }
}

// WithHistory enables a snapshot per project run.
func WithHistory(h ports.HistoryStore) Option {
	return func(e *Engine) { e.history = h }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is safe for concurrent use. Its config is read-only after New.
type Engine struct {
	cfg         *config.Config
	parser      ports.SourceParser
	cache       *cache.SourceCache
	registry    *detectors.Registry
	pool        *pool.Pool
	compliance  *compliance.Checker
	duplication *duplication.Scanner
	policy      *policy.Engine
	enumerator  ports.FileEnumerator
	history     ports.HistoryStore
	now         func() time.Time
	projectKey  string

	mu      sync.Mutex
	lastRun *tracker
	known   map[string]fileResult
	session *Session
}

var _ ports.AnalysisService = (*Engine)(nil)

// New validates cfg and wires the engine. Any configuration problem is a
// CONFIGURATION_ERROR and nothing is analysed.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, coreerrors.New(coreerrors.CodeConfiguration, "config is required")
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, coreerrors.Wrap(errors.Join(errs...), coreerrors.CodeConfiguration, "invalid config")
	}
	pol, err := policy.New(cfg.Policy)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		compliance:  compliance.New(cfg.Compliance),
		duplication: duplication.New(cfg.Duplication),
		policy:      pol,
		now:         time.Now,
		projectKey:  cfg.History.ProjectKey,
		known:       make(map[string]fileResult),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.parser == nil {
		e.parser = parser.New(cfg.Languages)
	}
	if e.registry == nil {
		e.registry = detectors.Builtin(cfg.Detectors)
	}
	if e.enumerator == nil {
		en, err := NewEnumerator(e.parser, cfg.Exclude, config.Enabled(cfg.Analysis.IncludeTests))
		if err != nil {
			return nil, err
		}
		e.enumerator = en
	}
	if e.projectKey == "" {
		e.projectKey = "default"
	}
	e.cache = cache.New(e.parser, cfg.Cache.MaxEntries)
	e.pool = pool.New(e.registry, cfg.Pool.MaxPerCategory)

	slog.Debug("engine ready",
		"detectors", len(e.registry.Categories()),
		"workers", cfg.Analysis.Workers,
		"policy_min_score", pol.MinScore(),
	)
	return e, nil
}

func (e *Engine) Config() *config.Config { return e.cfg }

func (e *Engine) GetCacheStats() cache.Stats {
	return e.cache.Stats()
}

func (e *Engine) GetPoolStats() map[analysis.Category]pool.CategoryStats {
	return e.pool.Stats()
}

// State reports the phase of the most recent run, StateIdle before any.
func (e *Engine) State() State {
	e.mu.Lock()
	t := e.lastRun
	e.mu.Unlock()
	if t == nil {
		return StateIdle
	}
	return t.snapshot().State
}

// LastRun returns the transition log of the most recent run.
func (e *Engine) LastRun() (RunRecord, bool) {
	e.mu.Lock()
	t := e.lastRun
	e.mu.Unlock()
	if t == nil {
		return RunRecord{}, false
	}
	return t.snapshot(), true
}

func (e *Engine) startRun(runID string) *tracker {
	t := newTracker(runID, e.now)
	e.mu.Lock()
	e.lastRun = t
	e.mu.Unlock()
	return t
}

// Close stops an active streaming session.
func (e *Engine) Close(context.Context) error {
	return e.StopStreaming()
}
