package server

import (
	"context"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/pkg/batchlib"
	"github.com/warpdl/batchdl/pkg/logger"
)

// RPCNotifier keeps the jrpc2 servers of every open WebSocket connection and
// pushes notifications to all of them.
type RPCNotifier struct {
	mu      sync.RWMutex
	servers map[*jrpc2.Server]struct{}
	log     logger.Logger
}

func NewRPCNotifier(l logger.Logger) *RPCNotifier {
	return &RPCNotifier{
		servers: make(map[*jrpc2.Server]struct{}),
		log:     logger.OrNop(l),
	}
}

func (n *RPCNotifier) Register(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.servers[srv] = struct{}{}
}

func (n *RPCNotifier) Unregister(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.servers, srv)
}

// Broadcast pushes method to every registered server. Servers whose push
// fails are dropped from the set.
func (n *RPCNotifier) Broadcast(method string, params any) {
	n.mu.RLock()
	servers := make([]*jrpc2.Server, 0, len(n.servers))
	for srv := range n.servers {
		servers = append(servers, srv)
	}
	n.mu.RUnlock()

	for _, srv := range servers {
		if err := srv.Notify(context.Background(), method, params); err != nil {
			n.log.Warning("rpc push %s failed: %v", method, err)
			n.Unregister(srv)
		}
	}
}

// Count returns the number of connected WebSocket clients.
func (n *RPCNotifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.servers)
}

// ForwardProgress returns a progress handler that pushes every event as a
// download.progress notification.
func (n *RPCNotifier) ForwardProgress() batchlib.ProgressHandler {
	return func(p batchlib.Progress) {
		n.Broadcast(common.NOTIFY_PROGRESS, p)
	}
}
