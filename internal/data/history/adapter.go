package history

import (
	"log/slog"
	"time"
)

// Adapter bridges Store to the core HistoryStore port and applies the
// retention limit after each save.
type Adapter struct {
	store     *Store
	retention int
}

func NewAdapter(store *Store, retention int) *Adapter {
	return &Adapter{store: store, retention: retention}
}

func (a *Adapter) SaveSnapshot(projectKey string, snapshot Snapshot) error {
	if err := a.store.SaveSnapshot(projectKey, snapshot); err != nil {
		return err
	}
	if deleted, err := a.store.Prune(projectKey, a.retention); err != nil {
		slog.Warn("history prune failed", "project", projectKey, "error", err)
	} else if deleted > 0 {
		slog.Debug("history pruned", "project", projectKey, "deleted", deleted)
	}
	return nil
}

func (a *Adapter) LoadSnapshots(projectKey string, since time.Time) ([]Snapshot, error) {
	return a.store.LoadSnapshots(projectKey, since)
}
