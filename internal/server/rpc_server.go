package server

import (
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
)

// RPCServer serves one method table over plain HTTP POST through a jhttp
// bridge and over WebSocket through a jrpc2 server per connection.
type RPCServer struct {
	methods handler.Map
	bridge  jhttp.Bridge
	secret  string
}

// NewRPCServer wraps methods. Every request must carry "Bearer <secret>";
// an empty secret disables the endpoint.
func NewRPCServer(secret string, methods handler.Map) *RPCServer {
	return &RPCServer{
		methods: methods,
		bridge:  jhttp.NewBridge(methods, nil),
		secret:  secret,
	}
}

// Close shuts down the bridge, releasing internal goroutines.
func (rs *RPCServer) Close() {
	rs.bridge.Close()
}
