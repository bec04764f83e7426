package batchlib

import (
	"context"
	"sync"
)

// itemQueue is the global pending queue. It is FIFO; items returned by a
// dispatch loop that could not start them go back to the front.
type itemQueue struct {
	mu    sync.Mutex
	items []Item
	wake  chan struct{}
}

func newItemQueue() *itemQueue {
	return &itemQueue{wake: make(chan struct{}, 1)}
}

func (q *itemQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Push appends item to the back of the queue.
func (q *itemQueue) Push(item Item) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signal()
}

// PushFront puts item at the head of the queue.
func (q *itemQueue) PushFront(item Item) {
	q.mu.Lock()
	q.items = append([]Item{item}, q.items...)
	q.mu.Unlock()
	q.signal()
}

// Pop removes the head of the queue.
func (q *itemQueue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	return item, true
}

// Next blocks until an item is available or ctx is done.
func (q *itemQueue) Next(ctx context.Context) (Item, bool) {
	for {
		if item, ok := q.Pop(); ok {
			return item, true
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			return Item{}, false
		}
	}
}

// Unread returns an item taken by Next to the head of the queue.
func (q *itemQueue) Unread(item Item) {
	q.PushFront(item)
}

// Clear empties the queue and returns the removed items.
func (q *itemQueue) Clear() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Snapshot returns a copy of the queued items in order.
func (q *itemQueue) Snapshot() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Item(nil), q.items...)
}

// Contains reports whether an item with id is queued.
func (q *itemQueue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.ID == id {
			return true
		}
	}
	return false
}

func (q *itemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
