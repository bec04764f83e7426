package batchlib

import (
	"sync/atomic"
)

// Signal is a cooperative instruction delivered to a running transfer.
type Signal int32

const (
	SignalNone Signal = iota
	SignalPause
	SignalStop
)

func (s Signal) String() string {
	switch s {
	case SignalPause:
		return "pause"
	case SignalStop:
		return "stop"
	}
	return "none"
}

// Control is the cancellation token issued to one transfer task at spawn time.
// The first signal sent wins; later signals are ignored. A nil *Control never
// signals.
type Control struct {
	sig  atomic.Int32
	done chan struct{}
}

// NewControl returns a Control with no pending signal.
func NewControl() *Control {
	return &Control{done: make(chan struct{})}
}

// Pause asks the transfer to stop writing and report paused.
func (c *Control) Pause() { c.send(SignalPause) }

// Stop asks the transfer to stop writing and report stopped.
func (c *Control) Stop() { c.send(SignalStop) }

func (c *Control) send(s Signal) {
	if c == nil {
		return
	}
	if c.sig.CompareAndSwap(int32(SignalNone), int32(s)) {
		close(c.done)
	}
}

// Signal returns the pending signal without blocking.
func (c *Control) Signal() Signal {
	if c == nil {
		return SignalNone
	}
	return Signal(c.sig.Load())
}

// Done is closed once a signal has been sent.
func (c *Control) Done() <-chan struct{} {
	if c == nil {
		return nil
	}
	return c.done
}
