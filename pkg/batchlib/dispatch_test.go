package batchlib

import (
	"context"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/warpdl/batchdl/pkg/logger"
)

func TestDispatcherRecoversPanics(t *testing.T) {
	e := newTestEngine(t, afero.NewMemMapFs(), 0)
	e.src = SourceFunc(func(context.Context, string, int64) (*Stream, error) {
		panic("source exploded")
	})
	var (
		rec      recorder
		wg       sync.WaitGroup
		finished []Status
		mu       sync.Mutex
	)
	l := logger.NewMockLogger()
	d := &dispatcher{engine: e, permits: newPermits(1), emit: rec.handle, l: l, wg: &wg}
	loop := loopSpec{
		name:    "test",
		source:  newSliceSource([]Item{{ID: "p", URL: "http://h/f", Dir: "/d", FileName: "f"}}),
		running: func() bool { return true },
		admit: func(Item) (*Control, context.Context, bool) {
			return NewControl(), context.Background(), true
		},
		finished: func(_ Item, _ *Control, s Status) {
			mu.Lock()
			finished = append(finished, s)
			mu.Unlock()
		},
	}
	d.run(context.Background(), loop)
	wg.Wait()

	if p, ok := rec.last("p"); !ok || p.Status != StatusError {
		t.Fatalf("last event = %+v", p)
	}
	if d.permits.InUse() != 0 {
		t.Fatal("permit leaked after panic")
	}
	if len(finished) != 1 || finished[0] != StatusError {
		t.Fatalf("finished = %v", finished)
	}
	if len(l.ErrorCalls()) == 0 {
		t.Fatal("panic not logged")
	}
}

func TestDispatcherStopsWhenNotRunning(t *testing.T) {
	var wg sync.WaitGroup
	d := &dispatcher{permits: newPermits(1), emit: func(Progress) {}, l: logger.NewNopLogger(), wg: &wg}
	src := newSliceSource([]Item{{ID: "1"}, {ID: "2"}})
	admitted := 0
	d.run(context.Background(), loopSpec{
		source:  src,
		running: func() bool { return true },
		admit: func(Item) (*Control, context.Context, bool) {
			admitted++
			return nil, nil, false
		},
	})
	if admitted != 1 || src.pos != 0 {
		t.Fatalf("admitted = %d, pos = %d", admitted, src.pos)
	}
	if d.permits.InUse() != 0 {
		t.Fatal("permit held after refused admission")
	}
}
