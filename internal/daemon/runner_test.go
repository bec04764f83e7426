package daemon

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

// blockingServe serves until the listener is closed.
func blockingServe(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		c.Close()
	}
}

func closingShutdown(r **Runner) func(context.Context) error {
	return func(context.Context) error {
		if ln := (*r).listener; ln != nil {
			return ln.Close()
		}
		return nil
	}
}

func waitRunning(t *testing.T, r *Runner) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !r.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("runner never started")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewDefaults(t *testing.T) {
	r := New(nil, nil)
	if r.Config().ShutdownTimeout != DefaultShutdownTimeout {
		t.Fatalf("shutdown timeout = %v", r.Config().ShutdownTimeout)
	}
	if r.deps.ListenerFactory == nil {
		t.Fatal("listener factory not defaulted")
	}
	if r.IsRunning() || r.Addr() != nil {
		t.Fatal("new runner reports running")
	}
}

func TestListenAddress(t *testing.T) {
	tests := []struct {
		port int
		all  bool
		want string
	}{
		{3849, false, "127.0.0.1:3849"},
		{3849, true, "0.0.0.0:3849"},
		{0, false, "127.0.0.1:0"},
		{-5, false, "127.0.0.1:0"},
	}
	for _, tt := range tests {
		if got := ListenAddress(tt.port, tt.all); got != tt.want {
			t.Errorf("ListenAddress(%d, %v) = %q, want %q", tt.port, tt.all, got, tt.want)
		}
	}
}

func TestStartWithoutServe(t *testing.T) {
	if err := New(nil, nil).Start(context.Background()); !errors.Is(err, ErrNoServe) {
		t.Fatalf("Start = %v, want ErrNoServe", err)
	}
}

func TestStartAndCancel(t *testing.T) {
	var r *Runner
	var shut atomic.Bool
	shutdown := closingShutdown(&r)
	r = New(&Config{}, &Dependencies{
		Serve: blockingServe,
		ShutdownFunc: func(ctx context.Context) error {
			shut.Store(true)
			return shutdown(ctx)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()
	waitRunning(t, r)

	addr := r.Addr()
	if addr == nil {
		t.Fatal("Addr nil while running")
	}
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	conn.Close()

	if err := r.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start = %v", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start returned %v", err)
	}
	if !shut.Load() {
		t.Fatal("shutdown func not called")
	}
	if r.IsRunning() {
		t.Fatal("still running after Start returned")
	}
}

func TestShutdown(t *testing.T) {
	var r *Runner
	r = New(&Config{}, &Dependencies{Serve: blockingServe, ShutdownFunc: closingShutdown(&r)})
	if err := r.Shutdown(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Shutdown before start = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Start(context.Background()) }()
	waitRunning(t, r)
	if err := r.Shutdown(); err != nil {
		t.Fatalf("Shutdown = %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func TestShutdownTimeout(t *testing.T) {
	r := New(&Config{ShutdownTimeout: 20 * time.Millisecond}, &Dependencies{
		Serve: blockingServe,
		ShutdownFunc: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()
	waitRunning(t, r)
	cancel()
	if err := <-done; !errors.Is(err, ErrShutdownTimeout) {
		t.Fatalf("Start = %v, want ErrShutdownTimeout", err)
	}
}

func TestListenError(t *testing.T) {
	boom := errors.New("boom")
	r := New(nil, &Dependencies{
		Serve: blockingServe,
		ListenerFactory: func(string, string) (net.Listener, error) {
			return nil, boom
		},
	})
	if err := r.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Start = %v, want %v", err, boom)
	}
	if r.IsRunning() {
		t.Fatal("running after listen failure")
	}
}

func TestServeError(t *testing.T) {
	boom := errors.New("serve failed")
	r := New(nil, &Dependencies{
		Serve: func(net.Listener) error { return boom },
	})
	if err := r.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Start = %v, want %v", err, boom)
	}
}
