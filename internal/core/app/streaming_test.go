package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	coreerrors "connascence/internal/core/errors"
	"connascence/internal/engine/detectors"
	"connascence/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextDelta(t *testing.T, s *Session) analysis.Delta {
	t.Helper()
	select {
	case d, ok := <-s.Deltas():
		require.True(t, ok, "delta channel closed")
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("no delta received")
	}
	return analysis.Delta{}
}

func assertNoDelta(t *testing.T, s *Session, wait time.Duration) {
	t.Helper()
	select {
	case d := <-s.Deltas():
		t.Fatalf("unexpected delta %d for %v", d.Seq, d.Changed)
	case <-time.After(wait):
	}
}

func TestStreamingSessionEmitsDeltas(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.py")
	b := filepath.Join(dir, "b.py")
	writeFile(t, a, "def small(x):\n    return x\n")
	writeFile(t, b, wideSignature)

	e := newTestEngine(t, nil)
	ss, err := e.StartStreaming(context.Background(), []string{dir})
	require.NoError(t, err)
	s := ss.(*Session)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, analysis.ModeStreaming, s.Result().Mode)
	require.Len(t, byCategory(s.Result().Violations, analysis.CategoryPosition), 1)

	writeFile(t, a, "def wide(p1, p2, p3, p4, p5, p6, p7):\n    return p1\n")
	s.Notify(a)
	d := nextDelta(t, s)
	assert.Equal(t, s.ID(), d.SessionID)
	assert.Equal(t, uint64(1), d.Seq)
	assert.Equal(t, []string{a}, d.Changed)
	require.NotEmpty(t, d.Added)
	assert.Equal(t, a, byCategory(d.Added, analysis.CategoryPosition)[0].Location.File)
	assert.Empty(t, d.Resolved)
	assert.Len(t, byCategory(d.Result.Violations, analysis.CategoryPosition), 2)

	require.NoError(t, os.Remove(b))
	s.Notify(b)
	d = nextDelta(t, s)
	assert.Equal(t, uint64(2), d.Seq)
	assert.Equal(t, []string{b}, d.Removed)
	assert.Empty(t, d.Changed)
	require.NotEmpty(t, d.Resolved)
	for _, v := range d.Resolved {
		assert.Equal(t, b, v.Location.File)
	}
	assert.Equal(t, []string{a}, d.Result.Files)

	s.Notify(filepath.Join(t.TempDir(), "elsewhere.py"))
	assertNoDelta(t, s, 100*time.Millisecond)

	require.NoError(t, e.StopStreaming())
	_, open := <-s.Deltas()
	assert.False(t, open, "Stop closes the delta channel")
	_, active := e.ActiveSession()
	assert.False(t, active)
	s.Notify(a)
}

func TestStreamingLastWriterWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hot.py")
	writeFile(t, path, "def hot(x):\n    return x\n")

	gate := make(chan struct{})
	var calls atomic.Int64
	var blocked atomic.Bool
	cfg := testConfig(nil)
	reg := detectors.Builtin(cfg.Detectors)
	require.NoError(t, reg.Register("Gate", func() detectors.Detector {
		return &scriptedDetector{category: "Gate", fn: func(f *parser.File) ([]analysis.Violation, error) {
			calls.Add(1)
			if len(f.Functions) > 0 && f.Functions[0].Name == "first" && blocked.CompareAndSwap(false, true) {
				<-gate
			}
			return nil, nil
		}}
	}))
	e, err := New(cfg, WithRegistry(reg))
	require.NoError(t, err)
	t.Cleanup(func() {
		close(gate)
		_ = e.StopStreaming()
	})

	ss, err := e.StartStreaming(context.Background(), []string{dir})
	require.NoError(t, err)
	s := ss.(*Session)

	writeFile(t, path, "def first(a, b, c, d, e, f):\n    return a\n")
	s.Notify(path)
	require.Eventually(t, blocked.Load, 2*time.Second, 5*time.Millisecond)

	writeFile(t, path, "def second_version(a, b, c, d, e, f, g, h, i):\n    return a\n")
	s.Notify(path)

	d := nextDelta(t, s)
	assert.Equal(t, uint64(1), d.Seq)
	positional := byCategory(d.Result.Violations, analysis.CategoryPosition)
	require.Len(t, positional, 1)
	assert.True(t, strings.HasPrefix(positional[0].Entity, "second_version"), "got %s", positional[0].Entity)
	assertNoDelta(t, s, 150*time.Millisecond)
}

func TestHybridModeKeepsSessionOpen(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.py"), wideSignature)

	e := newTestEngine(t, nil)
	res, err := e.AnalyzeProject(context.Background(), []string{dir}, analysis.ModeHybrid)
	require.NoError(t, err)
	assert.Equal(t, analysis.ModeHybrid, res.Mode)

	s, ok := e.ActiveSession()
	require.True(t, ok)
	assert.Equal(t, res, s.Result())

	_, err = e.StartStreaming(context.Background(), []string{dir})
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeValidationError), "got %v", err)

	require.NoError(t, e.Close(context.Background()))
	_, ok = e.ActiveSession()
	assert.False(t, ok)
	assert.NoError(t, e.StopStreaming(), "stopping twice is harmless")
}

func TestSessionStopsWithContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.py"), wideSignature)

	e := newTestEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	ss, err := e.StartStreaming(ctx, []string{dir})
	require.NoError(t, err)

	cancel()
	select {
	case _, open := <-ss.Deltas():
		assert.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop with its context")
	}
	require.Eventually(t, func() bool {
		_, active := e.ActiveSession()
		return !active
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStreamingRateLimitStillDelivers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	writeFile(t, path, wideSignature)

	e := newTestEngine(t, func(c *config.Config) {
		c.Watch.MaxEventsPerSecond = 50
		c.Watch.Burst = 1
	})
	ss, err := e.StartStreaming(context.Background(), []string{dir})
	require.NoError(t, err)
	s := ss.(*Session)

	for i := 0; i < 3; i++ {
		s.Notify(path)
		d := nextDelta(t, s)
		assert.Equal(t, uint64(i+1), d.Seq)
		assert.Empty(t, d.Added)
		assert.Empty(t, d.Resolved)
	}
}
