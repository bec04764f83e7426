// Package daemon runs the batchdl RPC endpoint: it binds the listener, serves
// until its context ends and then shuts the service down within a deadline.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

var (
	ErrAlreadyRunning  = errors.New("daemon is already running")
	ErrNotRunning      = errors.New("daemon is not running")
	ErrShutdownTimeout = errors.New("shutdown timed out")
	ErrNoServe         = errors.New("daemon has nothing to serve")
)

// DefaultShutdownTimeout bounds graceful shutdown when Config leaves it zero.
const DefaultShutdownTimeout = 10 * time.Second

type Config struct {
	// Port is the TCP port of the RPC endpoint. 0 picks an ephemeral port.
	Port int
	// ListenAll binds every interface instead of loopback only.
	ListenAll bool
	// ShutdownTimeout bounds ShutdownFunc.
	ShutdownTimeout time.Duration
}

// Dependencies holds what the runner drives, injectable for tests.
type Dependencies struct {
	// ListenerFactory creates the listener. Defaults to net.Listen.
	ListenerFactory func(network, address string) (net.Listener, error)
	// Serve blocks serving ln until ShutdownFunc makes it return.
	Serve func(ln net.Listener) error
	// ShutdownFunc stops Serve and releases resources.
	ShutdownFunc func(ctx context.Context) error
}

type Runner struct {
	config *Config
	deps   *Dependencies

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	listener net.Listener
}

func New(config *Config, deps *Dependencies) *Runner {
	if config == nil {
		config = &Config{}
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}
	if deps == nil {
		deps = &Dependencies{}
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = net.Listen
	}
	return &Runner{config: config, deps: deps}
}

func (r *Runner) Config() *Config {
	return r.config
}

// ListenAddress returns the host:port the runner binds.
func ListenAddress(port int, all bool) string {
	host := "127.0.0.1"
	if all {
		host = "0.0.0.0"
	}
	if port < 0 {
		port = 0
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// Start binds the listener and serves until ctx is canceled, Shutdown is
// called or Serve fails. It then runs ShutdownFunc within ShutdownTimeout.
// A clean stop returns nil.
func (r *Runner) Start(ctx context.Context) error {
	if r.deps.Serve == nil {
		return ErrNoServe
	}
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	ln, err := r.deps.ListenerFactory("tcp", ListenAddress(r.config.Port, r.config.ListenAll))
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("listen: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	r.listener = ln
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	served := make(chan error, 1)
	go func() { served <- r.deps.Serve(ln) }()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-served:
		served = nil
	}
	cancel()

	err = r.shutdown()
	if served != nil {
		if e := <-served; serveErr == nil {
			serveErr = e
		}
	}

	r.mu.Lock()
	r.running = false
	r.listener = nil
	r.mu.Unlock()
	return errors.Join(serveErr, err)
}

func (r *Runner) shutdown() error {
	if r.deps.ShutdownFunc == nil {
		r.closeListener()
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.config.ShutdownTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.deps.ShutdownFunc(ctx) }()
	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// unblock Serve
		r.closeListener()
		return ErrShutdownTimeout
	}
	return err
}

func (r *Runner) closeListener() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener != nil {
		_ = r.listener.Close()
	}
}

// Shutdown asks a running Start to stop. It does not wait for Start to
// return.
func (r *Runner) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return ErrNotRunning
	}
	r.cancel()
	return nil
}

func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Addr returns the bound address while running, nil otherwise.
func (r *Runner) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}
