package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/pkg/logger"
)

// wsReadLimit bounds one incoming WebSocket message. Batch manifests can
// carry thousands of items.
const wsReadLimit = 4 << 20

type WebServer struct {
	l        logger.Logger
	rpc      *RPCServer
	notifier *RPCNotifier

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	server *http.Server
}

func NewWebServer(l logger.Logger, rpc *RPCServer, notifier *RPCNotifier) *WebServer {
	ctx, cancel := context.WithCancel(context.Background())
	if notifier == nil {
		notifier = NewRPCNotifier(l)
	}
	return &WebServer{
		l:        logger.OrNop(l),
		rpc:      rpc,
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Notifier returns the broadcaster of the WebSocket clients.
func (s *WebServer) Notifier() *RPCNotifier {
	return s.notifier
}

// Handler routes POST /jsonrpc to the HTTP bridge and GET /jsonrpc/ws to the
// WebSocket endpoint. Both require the bearer token.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST "+common.RPCPath, requireToken(s.rpc.secret, &s.rpc.bridge))
	mux.Handle("GET "+common.RPCWSPath, requireToken(s.rpc.secret, http.HandlerFunc(s.handleWS)))
	return mux
}

func (s *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		s.l.Warning("websocket accept: %v", err)
		return
	}
	conn.SetReadLimit(wsReadLimit)

	// requests are held back until the client is registered for pushes
	ready := make(chan struct{})
	ch := &wsChannel{conn: conn, ctx: r.Context(), ready: ready}
	srv := jrpc2.NewServer(s.rpc.methods, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(ch)
	s.notifier.Register(srv)
	close(ready)
	s.l.Info("websocket client connected: %s", r.RemoteAddr)

	err = srv.Wait()
	s.notifier.Unregister(srv)
	s.l.Info("websocket client disconnected: %s (%v)", r.RemoteAddr, err)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *WebServer) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return s.ctx
		},
	}
	srv := s.server
	s.mu.Unlock()

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, closes open WebSocket connections and
// waits for in-flight HTTP requests until ctx expires.
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
