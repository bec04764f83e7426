package batchlib

import (
	"context"
	"testing"
	"time"
)

func TestPermitsPeak(t *testing.T) {
	p := newPermits(2)
	ctx := context.Background()
	p.Acquire(ctx)
	p.Acquire(ctx)
	if p.InUse() != 2 || p.Peak() != 2 {
		t.Fatalf("InUse = %d, Peak = %d", p.InUse(), p.Peak())
	}
	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := p.Acquire(tctx); err == nil {
		t.Fatal("acquired past the limit")
	}
	p.Release()
	p.Release()
	if p.InUse() != 0 || p.Peak() != 2 {
		t.Fatalf("after release InUse = %d, Peak = %d", p.InUse(), p.Peak())
	}
}
