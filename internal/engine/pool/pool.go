// Package pool hands out reusable detector instances, at most
// max_per_category of each category. When every instance of a category is
// busy, Acquire blocks until one is released or the context ends; no
// overflow instances are built.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"connascence/internal/core/analysis"
	coreerrors "connascence/internal/core/errors"
	"connascence/internal/engine/detectors"
	"connascence/internal/shared/observability"

	"golang.org/x/sync/semaphore"
)

type CategoryStats struct {
	Max          int   `json:"max"`
	Created      int   `json:"created"`
	Idle         int   `json:"idle"`
	InUse        int   `json:"in_use"`
	Acquisitions int64 `json:"acquisitions"`
	Waits        int64 `json:"waits"`
	Discarded    int   `json:"discarded"`
}

type categoryPool struct {
	sem   *semaphore.Weighted
	idle  []detectors.Detector
	inUse map[detectors.Detector]struct{}
	stats CategoryStats
}

// Pool is safe for concurrent use. Detector instances must be comparable
// (pointer types), since the pool tracks ownership by identity.
type Pool struct {
	registry *detectors.Registry
	max      int

	mu    sync.Mutex
	slots map[analysis.Category]*categoryPool
}

func New(registry *detectors.Registry, maxPerCategory int) *Pool {
	if maxPerCategory <= 0 {
		maxPerCategory = 1
	}
	return &Pool{
		registry: registry,
		max:      maxPerCategory,
		slots:    make(map[analysis.Category]*categoryPool),
	}
}

func (p *Pool) slot(category analysis.Category) *categoryPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp, ok := p.slots[category]
	if !ok {
		cp = &categoryPool{
			sem:   semaphore.NewWeighted(int64(p.max)),
			inUse: make(map[detectors.Detector]struct{}),
			stats: CategoryStats{Max: p.max},
		}
		p.slots[category] = cp
	}
	return cp
}

// Acquire returns an instance owned exclusively by the caller until Release.
// A wait cut short by ctx fails with TIMEOUT.
func (p *Pool) Acquire(ctx context.Context, category analysis.Category) (detectors.Detector, error) {
	cp := p.slot(category)

	start := time.Now()
	if !cp.sem.TryAcquire(1) {
		p.mu.Lock()
		cp.stats.Waits++
		p.mu.Unlock()
		if err := cp.sem.Acquire(ctx, 1); err != nil {
			timeout := coreerrors.Wrap(err, coreerrors.CodeTimeout, "timed out waiting for a detector instance")
			return nil, coreerrors.AddContext(timeout, coreerrors.CtxCategory, string(category))
		}
	}
	observability.PoolWaitDuration.WithLabelValues(string(category)).Observe(time.Since(start).Seconds())

	p.mu.Lock()
	var d detectors.Detector
	if n := len(cp.idle); n > 0 {
		d = cp.idle[n-1]
		cp.idle = cp.idle[:n-1]
	}
	p.mu.Unlock()

	if d == nil {
		var err error
		d, err = p.registry.New(category)
		if err != nil {
			cp.sem.Release(1)
			return nil, err
		}
		slog.Debug("detector instance created", "category", category)
		p.mu.Lock()
		cp.stats.Created++
		p.mu.Unlock()
	}

	p.mu.Lock()
	cp.inUse[d] = struct{}{}
	cp.stats.Acquisitions++
	p.mu.Unlock()
	observability.PoolInUse.WithLabelValues(string(category)).Inc()
	return d, nil
}

// AcquireAll takes one instance of every registered category, each reset
// for path. Categories are taken in sorted order so concurrent callers cannot
// deadlock; on failure everything already taken is released.
func (p *Pool) AcquireAll(ctx context.Context, path string, lines []string) (map[analysis.Category]detectors.Detector, error) {
	out := make(map[analysis.Category]detectors.Detector)
	for _, category := range p.registry.Categories() {
		d, err := p.Acquire(ctx, category)
		if err != nil {
			_ = p.ReleaseAll(out)
			return nil, err
		}
		out[category] = d
		if err := resetSafely(d, path, lines); err != nil {
			_ = p.ReleaseAll(out)
			return nil, err
		}
	}
	return out, nil
}

// Release resets d and returns it to the idle set. An instance whose reset
// panics is dropped instead of reused.
func (p *Pool) Release(d detectors.Detector) error {
	if d == nil {
		return nil
	}
	category := d.Category()

	p.mu.Lock()
	cp, ok := p.slots[category]
	if ok {
		_, ok = cp.inUse[d]
	}
	if !ok {
		p.mu.Unlock()
		return coreerrors.AddContext(
			coreerrors.New(coreerrors.CodeValidationError, "detector was not acquired from this pool"),
			coreerrors.CtxCategory, string(category),
		)
	}
	delete(cp.inUse, d)
	p.mu.Unlock()

	resetErr := resetSafely(d, "", nil)

	p.mu.Lock()
	if resetErr == nil {
		cp.idle = append(cp.idle, d)
	} else {
		cp.stats.Created--
		cp.stats.Discarded++
	}
	p.mu.Unlock()

	cp.sem.Release(1)
	observability.PoolInUse.WithLabelValues(string(category)).Dec()
	if resetErr != nil {
		slog.Warn("discarded detector instance", "category", category, "error", resetErr)
	}
	return nil
}

func (p *Pool) ReleaseAll(held map[analysis.Category]detectors.Detector) error {
	var errs []error
	for _, d := range held {
		if err := p.Release(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pool) Stats() map[analysis.Category]CategoryStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[analysis.Category]CategoryStats, len(p.slots))
	for category, cp := range p.slots {
		s := cp.stats
		s.Idle = len(cp.idle)
		s.InUse = len(cp.inUse)
		out[category] = s
	}
	return out
}

func resetSafely(d detectors.Detector, path string, lines []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = coreerrors.AddContext(
				coreerrors.New(coreerrors.CodeDetector, fmt.Sprintf("reset panicked: %v", r)),
				coreerrors.CtxCategory, string(d.Category()),
			)
		}
	}()
	d.Reset(path, lines)
	return nil
}
