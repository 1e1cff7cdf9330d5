package taskrunner

import (
	"context"
	"sync/atomic"

	"github.com/ygrebnov/errorc"
	"golang.org/x/sync/semaphore"
)

// Gate is a counting semaphore admitting at most Capacity concurrent holders.
// Waiters are admitted in the order they called Acquire.
// Gate is safe for concurrent use.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64
	holders  atomic.Int64
}

// NewGate creates a Gate with the given capacity (must be > 0).
func NewGate(capacity uint) (*Gate, error) {
	if capacity == 0 {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "gate capacity must be > 0"))
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}, nil
}

// Acquire blocks until a slot is free or ctx is done.
// On success the caller holds one slot and must call Release exactly once.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.holders.Add(1)
	return nil
}

// TryAcquire takes a slot without blocking and reports whether it succeeded.
func (g *Gate) TryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.holders.Add(1)
	return true
}

// Release frees one slot, waking the longest waiting Acquire if any.
// It returns ErrGateNotHeld when there is no holder to release.
func (g *Gate) Release() error {
	for {
		h := g.holders.Load()
		if h <= 0 {
			return ErrGateNotHeld
		}
		if g.holders.CompareAndSwap(h, h-1) {
			break
		}
	}
	g.sem.Release(1)
	return nil
}

// Capacity returns the fixed number of slots.
func (g *Gate) Capacity() int { return int(g.capacity) }

// Holders returns the number of currently held slots.
func (g *Gate) Holders() int { return int(g.holders.Load()) }
