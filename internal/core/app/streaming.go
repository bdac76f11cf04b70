package app

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"connascence/internal/core/analysis"
	"connascence/internal/core/app/helpers"
	coreerrors "connascence/internal/core/errors"
	"connascence/internal/core/ports"
	"connascence/internal/core/watcher"
	"connascence/internal/shared/observability"
	"connascence/internal/shared/util"

	"github.com/google/uuid"
)

const (
	deltaBuffer = 16
	limiterTTL  = 10 * time.Minute
)

type acceptor interface {
	Accept(path string) bool
}

// pending is one path of a Notify batch. gen is the path's generation at the
// time of the call; a result is applied only if no later Notify for the same
// path happened in between.
type pending struct {
	path   string
	root   string
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

type outcome struct {
	removed bool
	result  fileResult
}

// Session is a live incremental analysis over a fixed set of roots. Changes
// arrive through Notify, either from the filesystem watcher or from the
// caller, and each applied batch produces one Delta.
type Session struct {
	id       string
	engine   *Engine
	roots    []string
	ctx      context.Context
	cancel   context.CancelFunc
	limiters *util.LimiterRegistry
	watcher  *watcher.Watcher
	deltas   chan analysis.Delta

	mu       sync.Mutex
	stopped  bool
	gen      map[string]uint64
	inflight map[string]context.CancelFunc
	files    map[string]fileResult
	last     *analysis.Result
	seq      uint64

	// serialises apply so deltas leave in sequence order
	emitMu sync.Mutex

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

var _ ports.StreamSession = (*Session)(nil)

// StartStreaming runs an incremental pass over paths to seed the session,
// then watches them for changes. Only one session may be active per engine.
func (e *Engine) StartStreaming(ctx context.Context, paths []string) (ports.StreamSession, error) {
	if err := e.ensureNoSession(); err != nil {
		return nil, err
	}
	seed, err := e.runProject(ctx, paths, analysis.ModeStreaming, true)
	if err != nil {
		return nil, err
	}
	s, err := e.startSession(ctx, paths, seed)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (e *Engine) StopStreaming() error {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Stop()
}

// ActiveSession returns the running session, if any.
func (e *Engine) ActiveSession() (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, e.session != nil
}

func (e *Engine) ensureNoSession() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return coreerrors.AddContext(
			coreerrors.New(coreerrors.CodeValidationError, "a streaming session is already active"),
			"session_id", e.session.id,
		)
	}
	return nil
}

func (e *Engine) startSession(ctx context.Context, paths []string, seed *analysis.Result) (*Session, error) {
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:       uuid.NewString(),
		engine:   e,
		roots:    helpers.UniqueScanRoots(paths),
		ctx:      sctx,
		cancel:   cancel,
		limiters: util.NewLimiterRegistry(e.cfg.Watch.MaxEventsPerSecond, e.cfg.Watch.Burst, limiterTTL),
		deltas:   make(chan analysis.Delta, deltaBuffer),
		gen:      make(map[string]uint64),
		inflight: make(map[string]context.CancelFunc),
		files:    make(map[string]fileResult, len(seed.Files)),
		last:     seed,
	}

	e.mu.Lock()
	if e.session != nil {
		e.mu.Unlock()
		cancel()
		s.limiters.Close()
		return nil, coreerrors.New(coreerrors.CodeValidationError, "a streaming session is already active")
	}
	for _, path := range seed.Files {
		if r, ok := e.known[path]; ok {
			s.files[path] = r
		}
	}
	e.session = s
	e.mu.Unlock()

	accept := e.parser.IsSupportedPath
	if a, ok := e.enumerator.(acceptor); ok {
		accept = a.Accept
	}
	w, err := watcher.New(watcher.Options{
		Debounce:    e.cfg.Watch.Debounce,
		ExcludeDirs: e.cfg.Exclude.Dirs,
		Accept:      accept,
	}, func(paths []string) { s.Notify(paths...) })
	if err == nil {
		err = w.Watch(s.roots)
		if err != nil {
			_ = w.Close()
		}
	}
	if err != nil {
		slog.Warn("filesystem watcher unavailable, session accepts explicit notifications only", "session_id", s.id, "error", err)
	} else {
		s.watcher = w
	}

	context.AfterFunc(sctx, func() { _ = s.Stop() })
	slog.Info("streaming session started", "session_id", s.id, "roots", s.roots, "files", len(s.files))
	return s, nil
}

func (e *Engine) clearSession(s *Session) {
	e.mu.Lock()
	if e.session == s {
		e.session = nil
	}
	e.mu.Unlock()
}

func (s *Session) ID() string { return s.id }

func (s *Session) Deltas() <-chan analysis.Delta { return s.deltas }

// Result returns the most recent full result of the session.
func (s *Session) Result() *analysis.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Notify schedules re-analysis of paths. Paths outside the session roots are
// ignored. A path notified again before its previous analysis finished
// supersedes it: the older result is discarded.
func (s *Session) Notify(paths ...string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	batch := make([]pending, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, raw := range paths {
		path := raw
		if abs, err := filepath.Abs(raw); err == nil {
			path = abs
		}
		if seen[path] {
			continue
		}
		seen[path] = true
		root, err := helpers.FindContainingRoot(path, s.roots)
		if err != nil {
			slog.Debug("ignoring change outside session roots", "session_id", s.id, "path", path)
			continue
		}
		if cancel := s.inflight[path]; cancel != nil {
			cancel()
		}
		s.gen[path]++
		ctx, cancel := context.WithCancel(s.ctx)
		s.inflight[path] = cancel
		batch = append(batch, pending{path: path, root: root, gen: s.gen[path], ctx: ctx, cancel: cancel})
	}
	if len(batch) == 0 {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.process(batch)
}

func (s *Session) process(batch []pending) {
	defer s.wg.Done()
	e := s.engine

	outcomes := make([]outcome, len(batch))
	for i, item := range batch {
		if err := s.limiters.Get(item.root).Wait(item.ctx, 1); err != nil {
			continue
		}
		e.cache.Invalidate(item.path)
		if _, err := os.Stat(item.path); errors.Is(err, fs.ErrNotExist) {
			outcomes[i] = outcome{removed: true}
			continue
		}
		outcomes[i] = outcome{result: e.analyzeOne(item.ctx, nil, item.path)}
	}
	s.apply(batch, outcomes)
}

// apply folds the current outcomes of a batch into the session state and
// emits a delta when anything changed.
func (s *Session) apply(batch []pending, outcomes []outcome) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	e := s.engine

	s.mu.Lock()
	var changed, removed []string
	var applied []fileResult
	for i, item := range batch {
		o := outcomes[i]
		current := s.gen[item.path] == item.gen
		if current {
			delete(s.inflight, item.path)
		}
		item.cancel()
		if !current || s.ctx.Err() != nil || (!o.removed && o.result.path == "") {
			observability.StreamDiscardedTotal.Inc()
			slog.Debug("discarding stale analysis", "session_id", s.id, "path", item.path)
			continue
		}
		if o.removed {
			if _, ok := s.files[item.path]; ok {
				delete(s.files, item.path)
				removed = append(removed, item.path)
			}
			e.forget(item.path)
			continue
		}
		s.files[item.path] = o.result
		applied = append(applied, o.result)
		changed = append(changed, item.path)
	}
	if len(changed) == 0 && len(removed) == 0 {
		s.mu.Unlock()
		return
	}
	files := util.SortedStringKeys(s.files)
	results := make([]fileResult, len(files))
	for i, path := range files {
		results[i] = s.files[path]
	}
	prev := s.last
	s.mu.Unlock()
	e.remember(applied)

	runID := uuid.NewString()
	t := e.startRun(runID)
	e.move(t, StateInitializing, "")
	res := e.finish(t, runID, analysis.ModeStreaming, e.now(), files, results)
	added, resolved := diffViolations(prev, res)

	s.mu.Lock()
	s.last = res
	s.seq++
	d := analysis.Delta{
		SessionID: s.id,
		Seq:       s.seq,
		Changed:   changed,
		Removed:   removed,
		Added:     added,
		Resolved:  resolved,
		Result:    res,
	}
	s.mu.Unlock()

	select {
	case s.deltas <- d:
		observability.StreamDeltasTotal.Inc()
		slog.Debug("delta emitted", "session_id", s.id, "seq", d.Seq, "changed", len(changed), "removed", len(removed), "added", len(added), "resolved", len(resolved))
	case <-s.ctx.Done():
	}
}

// Stop cancels in-flight work, waits for it to drain and closes Deltas.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		if s.watcher != nil {
			s.stopErr = s.watcher.Close()
		}
		s.cancel()
		s.wg.Wait()
		s.limiters.Close()
		close(s.deltas)
		s.engine.clearSession(s)
		slog.Info("streaming session stopped", "session_id", s.id)
	})
	return s.stopErr
}

// diffViolations compares two results by violation ID. Both inputs are
// already sorted, and so are the outputs.
func diffViolations(prev, next *analysis.Result) (added, resolved []analysis.Violation) {
	before := make(map[string]bool)
	if prev != nil {
		for _, v := range prev.Violations {
			before[v.ID] = true
		}
	}
	after := make(map[string]bool, len(next.Violations))
	for _, v := range next.Violations {
		after[v.ID] = true
		if !before[v.ID] {
			added = append(added, v)
		}
	}
	if prev != nil {
		for _, v := range prev.Violations {
			if !after[v.ID] {
				resolved = append(resolved, v)
			}
		}
	}
	return added, resolved
}
