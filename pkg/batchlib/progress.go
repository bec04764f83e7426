package batchlib

import (
	"sync"
)

// Status is the state reported by a progress event.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusStopped     Status = "stopped"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// Terminal reports whether s ends the item's lifecycle. Paused ends only the
// current transfer attempt and is not terminal.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusStopped, StatusError:
		return true
	}
	return false
}

// Progress is a point-in-time event for one item. TotalBytes is 0 while the
// size is unknown.
type Progress struct {
	ID           string `json:"id"`
	BatchID      string `json:"batchId,omitempty"`
	TotalBytes   int64  `json:"totalBytes"`
	CurrentBytes int64  `json:"currentBytes"`
	Status       Status `json:"status"`
	Error        string `json:"error,omitempty"`
}

// ProgressHandler receives progress events.
type ProgressHandler func(Progress)

// Hub fans progress events out to subscribers. Publish never blocks on a
// subscriber: every subscriber owns an unbounded queue drained by its own
// goroutine, so events are delivered in publish order without loss.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
	wg     sync.WaitGroup
}

type subscriber struct {
	mu     sync.Mutex
	queue  []Progress
	closed bool
	wake   chan struct{}
	fn     ProgressHandler
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscriber)}
}

// Subscribe registers fn and returns a function that unregisters it. Events
// already queued for fn are still delivered after unsubscribing.
func (h *Hub) Subscribe(fn ProgressHandler) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || fn == nil {
		return func() {}
	}
	s := &subscriber{
		wake: make(chan struct{}, 1),
		fn:   fn,
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = s
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		s.run()
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			s.close()
		})
	}
}

// Publish queues p for every subscriber.
func (h *Hub) Publish(p Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		s.push(p)
	}
}

// Close unregisters all subscribers and waits until their queues are drained.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		s.close()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (s *subscriber) push(p Progress) {
	s.mu.Lock()
	s.queue = append(s.queue, p)
	s.mu.Unlock()
	s.signal()
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		closed := s.closed
		s.mu.Unlock()

		for _, p := range batch {
			s.fn(p)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-s.wake
	}
}
