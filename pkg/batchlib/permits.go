package batchlib

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// permits is the global concurrency bound. It tracks how many permits are
// held and the highest simultaneous count observed.
type permits struct {
	sem  *semaphore.Weighted
	size int
	held atomic.Int64
	peak atomic.Int64
}

func newPermits(n int) *permits {
	return &permits{sem: semaphore.NewWeighted(int64(n)), size: n}
}

// Acquire blocks until a permit is free or ctx is done.
func (p *permits) Acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	h := p.held.Add(1)
	for {
		pk := p.peak.Load()
		if h <= pk || p.peak.CompareAndSwap(pk, h) {
			return nil
		}
	}
}

func (p *permits) Release() {
	p.held.Add(-1)
	p.sem.Release(1)
}

func (p *permits) InUse() int { return int(p.held.Load()) }
func (p *permits) Peak() int  { return int(p.peak.Load()) }
