// Package gate bounds how many caption jobs run at once.
//
// Waiters are admitted in arrival order. A waiter whose context ends before
// it is admitted leaves the queue without consuming a slot.
package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate is a FIFO counting semaphore with observable occupancy.
type Gate struct {
	size     int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	waiting  atomic.Int64
}

// Stats is a point-in-time view of the gate.
type Stats struct {
	Size     int   `json:"size"`
	InFlight int64 `json:"in_flight"`
	Waiting  int64 `json:"waiting"`
}

// New returns a gate admitting size concurrent holders. Sizes below 1 are
// treated as 1.
func New(size int) *Gate {
	if size < 1 {
		size = 1
	}
	return &Gate{size: int64(size), sem: semaphore.NewWeighted(int64(size))}
}

// Acquire blocks until a slot is free or ctx ends. The returned release
// function is safe to call more than once; only the first call frees the slot.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	g.waiting.Add(1)
	err := g.sem.Acquire(ctx, 1)
	g.waiting.Add(-1)
	if err != nil {
		return nil, err
	}
	g.inFlight.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.inFlight.Add(-1)
			g.sem.Release(1)
		})
	}, nil
}

// TryAcquire takes a slot only if one is immediately free.
func (g *Gate) TryAcquire() (func(), bool) {
	if !g.sem.TryAcquire(1) {
		return nil, false
	}
	g.inFlight.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			g.inFlight.Add(-1)
			g.sem.Release(1)
		})
	}, true
}

// Size returns the configured capacity.
func (g *Gate) Size() int { return int(g.size) }

// Stats reports capacity, holders and waiters.
func (g *Gate) Stats() Stats {
	return Stats{Size: int(g.size), InFlight: g.inFlight.Load(), Waiting: g.waiting.Load()}
}
