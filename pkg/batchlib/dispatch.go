package batchlib

import (
	"context"
	"fmt"
	"sync"

	"github.com/warpdl/batchdl/pkg/logger"
)

// ItemSource yields the items of one dispatch loop.
type ItemSource interface {
	// Next returns the next item, blocking if the source is live. It returns
	// false when the source is exhausted or ctx is done.
	Next(ctx context.Context) (Item, bool)
	// Unread hands back an item that was taken but not started.
	Unread(Item)
}

// sliceSource yields a fixed list in order.
type sliceSource struct {
	items []Item
	pos   int
}

func newSliceSource(items []Item) *sliceSource {
	return &sliceSource{items: items}
}

func (s *sliceSource) Next(ctx context.Context) (Item, bool) {
	if s.pos >= len(s.items) || ctx.Err() != nil {
		return Item{}, false
	}
	item := s.items[s.pos]
	s.pos++
	return item, true
}

func (s *sliceSource) Unread(Item) {
	if s.pos > 0 {
		s.pos--
	}
}

// loopSpec parameterizes one run of the dispatch loop.
type loopSpec struct {
	name   string
	source ItemSource
	// running is the state check made before taking a permit.
	running func() bool
	// admit is the state check made after taking a permit. On success it
	// records and returns the control token and context of the new task.
	admit func(Item) (*Control, context.Context, bool)
	// finished runs after the task returns, before its permit is released.
	finished func(Item, *Control, Status)
	offsets  OffsetStore
}

// dispatcher starts transfer tasks under the global permit pool.
type dispatcher struct {
	engine  *Engine
	permits *permits
	emit    ProgressHandler
	l       logger.Logger
	wg      *sync.WaitGroup
}

// run drains loop.source until the state check fails, the source ends or ctx
// is done. Returning never cancels tasks it already started.
func (d *dispatcher) run(ctx context.Context, loop loopSpec) {
	for {
		if !loop.running() {
			return
		}
		item, ok := loop.source.Next(ctx)
		if !ok {
			return
		}
		if !loop.running() {
			loop.source.Unread(item)
			return
		}
		if err := d.permits.Acquire(ctx); err != nil {
			// only happens on shutdown or when the loop was superseded
			loop.source.Unread(item)
			return
		}
		ctl, taskCtx, ok := loop.admit(item)
		if !ok {
			d.permits.Release()
			loop.source.Unread(item)
			return
		}
		d.spawn(taskCtx, item, ctl, loop)
	}
}

func (d *dispatcher) spawn(ctx context.Context, item Item, ctl *Control, loop loopSpec) {
	status := StatusError
	onPanic := func(r interface{}) {
		d.emit(Progress{
			ID:      item.ID,
			BatchID: item.BatchID,
			Status:  StatusError,
			Error:   fmt.Sprintf("transfer panicked: %v", r),
		})
	}
	d.wg.Add(1)
	safeGo(d.l, d.wg, loop.name+"/"+item.ID, onPanic, func() {
		defer d.permits.Release()
		defer func() {
			if loop.finished != nil {
				loop.finished(item, ctl, status)
			}
		}()
		status, _ = d.engine.Run(ctx, item, ctl, loop.offsets, d.emit)
	})
}
