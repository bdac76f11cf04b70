package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	coreerrors "connascence/internal/core/errors"
	"connascence/internal/data/queue"
)

const (
	recorderBatchSize     = 16
	recorderFlushInterval = 100 * time.Millisecond
)

// Sink is the synchronous store a Recorder writes through to.
type Sink interface {
	SaveSnapshot(projectKey string, snapshot Snapshot) error
	LoadSnapshots(projectKey string, since time.Time) ([]Snapshot, error)
}

type pendingSnapshot struct {
	projectKey string
	snapshot   Snapshot
}

// Recorder moves snapshot writes off the analysis path. Saves are queued
// and written by one background worker; Close drains what is queued.
type Recorder struct {
	sink  Sink
	queue *queue.Bounded[pendingSnapshot]
	done  chan struct{}
	once  sync.Once
}

func NewRecorder(sink Sink, capacity int) *Recorder {
	r := &Recorder{
		sink:  sink,
		queue: queue.NewBounded[pendingSnapshot](capacity),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// SaveSnapshot queues the snapshot. A full or closed queue rejects it.
func (r *Recorder) SaveSnapshot(projectKey string, snapshot Snapshot) error {
	if r.queue.Enqueue(pendingSnapshot{projectKey: projectKey, snapshot: snapshot}) == queue.EnqueueDropped {
		return coreerrors.AddContext(
			coreerrors.New(coreerrors.CodeInternal, "history queue full or closed, snapshot dropped"),
			"run_id", snapshot.RunID,
		)
	}
	return nil
}

// LoadSnapshots reads through to the sink. Snapshots still queued are not
// visible yet.
func (r *Recorder) LoadSnapshots(projectKey string, since time.Time) ([]Snapshot, error) {
	return r.sink.LoadSnapshots(projectKey, since)
}

func (r *Recorder) Close() error {
	r.once.Do(func() { _ = r.queue.Close() })
	<-r.done
	return nil
}

func (r *Recorder) run() {
	defer close(r.done)
	for {
		batch, err := r.queue.DequeueBatch(context.Background(), recorderBatchSize, recorderFlushInterval)
		for _, item := range batch {
			if saveErr := r.sink.SaveSnapshot(item.projectKey, item.snapshot); saveErr != nil {
				slog.Warn("failed to write history snapshot", "project", item.projectKey, "run_id", item.snapshot.RunID, "error", saveErr)
			}
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			slog.Warn("history queue dequeue failed", "error", err)
		}
	}
}
