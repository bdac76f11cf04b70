package app

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"connascence/internal/core/analysis"
	"connascence/internal/core/config"
	"connascence/internal/data/history"
	"connascence/internal/engine/parser"

	"github.com/stretchr/testify/require"
)

const wideSignature = "def compute(a, b, c, d, e, f):\n    return a\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig(mutate func(*config.Config)) *config.Config {
	cfg := config.Default()
	cfg.Analysis.Workers = 4
	cfg.Pool.MaxPerCategory = 4
	cfg.Watch.Debounce = time.Hour
	cfg.Watch.MaxEventsPerSecond = 1000
	cfg.Watch.Burst = 100
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*config.Config), opts ...Option) *Engine {
	t.Helper()
	e, err := New(testConfig(mutate), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.StopStreaming() })
	return e
}

func byCategory(vs []analysis.Violation, category analysis.Category) []analysis.Violation {
	var out []analysis.Violation
	for _, v := range vs {
		if v.Category == category {
			out = append(out, v)
		}
	}
	return out
}

// scriptedDetector runs fn in place of real detection.
type scriptedDetector struct {
	category analysis.Category
	fn       func(file *parser.File) ([]analysis.Violation, error)
}

func (d *scriptedDetector) Category() analysis.Category { return d.category }

func (d *scriptedDetector) Reset(string, []string) {}

func (d *scriptedDetector) Detect(file *parser.File, _ []string) ([]analysis.Violation, error) {
	return d.fn(file)
}

type memoryHistory struct {
	mu        sync.Mutex
	snapshots map[string][]history.Snapshot
}

func (m *memoryHistory) SaveSnapshot(projectKey string, s history.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshots == nil {
		m.snapshots = make(map[string][]history.Snapshot)
	}
	m.snapshots[projectKey] = append(m.snapshots[projectKey], s)
	return nil
}

func (m *memoryHistory) LoadSnapshots(projectKey string, since time.Time) ([]history.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []history.Snapshot
	for _, s := range m.snapshots[projectKey] {
		if !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}
