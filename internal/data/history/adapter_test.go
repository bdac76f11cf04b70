package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func TestAdapter_SaveAppliesRetention(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	adapter := NewAdapter(store, 2)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		snap := Snapshot{RunID: fmt.Sprintf("run-%d", i), Timestamp: base.Add(time.Duration(i) * time.Hour), Score: float64(90 + i)}
		if err := adapter.SaveSnapshot("project-a", snap); err != nil {
			t.Fatalf("save snapshot %d: %v", i, err)
		}
	}

	rows, err := adapter.LoadSnapshots("project-a", time.Time{})
	if err != nil {
		t.Fatalf("load snapshots: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 retained snapshots, got %d", len(rows))
	}
	if rows[0].RunID != "run-2" || rows[1].RunID != "run-3" {
		t.Fatalf("expected newest runs to survive, got %s and %s", rows[0].RunID, rows[1].RunID)
	}
}
