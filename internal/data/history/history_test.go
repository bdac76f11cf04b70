package history

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connascence/internal/core/analysis"
)

func TestStore_OpenInitializesSchemaAndSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := Open(path, time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	first := Snapshot{RunID: "a", Timestamp: base, FileCount: 8, Violations: 4, Score: 91}
	rerun := Snapshot{RunID: "a", Timestamp: base, FileCount: 8, Violations: 2, Score: 95.5}
	second := Snapshot{
		RunID:       "b",
		Timestamp:   base.Add(2 * time.Hour),
		Mode:        "hybrid",
		FileCount:   9,
		Violations:  3,
		Critical:    1,
		High:        1,
		Low:         1,
		Diagnostics: 2,
		Score:       88.5,
		Passed:      false,
	}

	for _, snap := range []Snapshot{first, rerun, second} {
		if err := store.SaveSnapshot("project-a", snap); err != nil {
			t.Fatalf("save snapshot %s: %v", snap.RunID, err)
		}
	}

	got, err := store.LoadSnapshots("project-a", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("load snapshots: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 snapshot after since filter, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(second.Timestamp) {
		t.Fatalf("timestamp did not roundtrip: %v", got[0].Timestamp)
	}
	got[0].Timestamp = time.Time{}
	if got[0] != (Snapshot{
		SchemaVersion: SchemaVersion,
		ProjectKey:    "project-a",
		RunID:         "b",
		Mode:          "hybrid",
		FileCount:     9,
		Violations:    3,
		Critical:      1,
		High:          1,
		Low:           1,
		Diagnostics:   2,
		Score:         88.5,
	}) {
		t.Fatalf("snapshot did not roundtrip: %+v", got[0])
	}

	all, err := store.LoadSnapshots("project-a", time.Time{})
	if err != nil {
		t.Fatalf("load all snapshots: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected the rerun to upsert, got %d snapshots", len(all))
	}
	if all[0].Score != 95.5 || all[0].Mode != "batch" {
		t.Fatalf("expected upserted run a, got %+v", all[0])
	}
}

func TestStore_SaveAssignsRunID(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.SaveSnapshot("", Snapshot{Score: 100}); err != nil {
		t.Fatal(err)
	}
	rows, err := store.LoadSnapshots("default", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].RunID == "" {
		t.Fatalf("expected one snapshot with a generated run id, got %+v", rows)
	}
}

func TestStore_RejectsUnknownSchemaVersion(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.SaveSnapshot("p", Snapshot{SchemaVersion: SchemaVersion + 1}); err == nil {
		t.Fatal("expected schema version error")
	}
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir(), 0)
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path, 0)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "not a database") && !strings.Contains(lower, "schema") {
		t.Fatalf("expected schema/open error, got: %v", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	err = EnsureSchema(db)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_ProjectIsolationAndPrune(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	for i, key := range []string{"project-a", "project-a", "project-a", "project-b"} {
		snap := Snapshot{RunID: string(rune('a' + i)), Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if err := store.SaveSnapshot(key, snap); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := store.Prune("project-a", 1)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 pruned rows, got %d", deleted)
	}
	aRows, err := store.LoadSnapshots("project-a", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(aRows) != 1 || aRows[0].RunID != "c" {
		t.Fatalf("unexpected project-a rows: %+v", aRows)
	}
	bRows, err := store.LoadSnapshots("project-b", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(bRows) != 1 {
		t.Fatalf("prune leaked into project-b: %+v", bRows)
	}

	if n, err := store.Prune("project-b", 0); err != nil || n != 0 {
		t.Fatalf("keep=0 must not prune, got %d, %v", n, err)
	}
}

func TestBuildTrendReport(t *testing.T) {
	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	snapshots := []Snapshot{
		{RunID: "1", Timestamp: base, Score: 80, Violations: 10, Critical: 2},
		{RunID: "2", Timestamp: base.Add(2 * time.Hour), Score: 90, Violations: 6, Critical: 1},
		{RunID: "3", Timestamp: base.Add(30 * time.Hour), Score: 85.5, Violations: 7, Critical: 1},
	}

	report, err := BuildTrendReport("project-a", snapshots, 24*time.Hour)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.ScanCount != 3 {
		t.Fatalf("expected scan_count=3, got %d", report.ScanCount)
	}
	if report.Points[1].DeltaScore != 10 || report.Points[1].DeltaViolations != -4 || report.Points[1].DeltaCritical != -1 {
		t.Fatalf("unexpected deltas: %+v", report.Points[1])
	}
	if report.Points[1].AvgScore != 85 {
		t.Fatalf("expected moving average 85, got %v", report.Points[1].AvgScore)
	}
	if report.Points[2].AvgScore != 85.5 {
		t.Fatalf("expected window to drop old runs, got %v", report.Points[2].AvgScore)
	}
	latest, ok := report.Latest()
	if !ok || latest.RunID != "3" || latest.DeltaScore != -4.5 {
		t.Fatalf("unexpected latest point: %+v", latest)
	}

	if _, err := BuildTrendReport("empty", nil, time.Hour); err == nil {
		t.Fatal("expected error for empty history")
	}
}

func TestFromResult(t *testing.T) {
	finished := time.Date(2026, 4, 2, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	r := &analysis.Result{
		RunID:      "run-1",
		Mode:       analysis.ModeBatch,
		FinishedAt: finished,
		Files:      []string{"a.py", "b.py"},
		Summary: analysis.Summary{
			Total:       3,
			BySeverity:  map[string]int{"critical": 1, "low": 2},
			Diagnostics: 1,
		},
		Score: 91.5,
		Gate:  analysis.GateDecision{Passed: false},
	}
	snap := FromResult("proj", r)
	if snap.RunID != "run-1" || snap.FileCount != 2 || snap.Critical != 1 || snap.Low != 2 || snap.Diagnostics != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !snap.Timestamp.Equal(finished) || snap.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", snap.Timestamp)
	}
}

func TestIsCorruptError(t *testing.T) {
	if !IsCorruptError(errors.New("database disk image is malformed")) {
		t.Fatal("expected malformed sqlite message to be treated as corrupt")
	}
	if IsCorruptError(nil) {
		t.Fatal("nil is not corrupt")
	}
}
