package server

import (
	"context"

	cws "github.com/coder/websocket"
)

// wsChannel carries one JSON-RPC message per WebSocket text frame. When
// ready is set, reading waits until it is closed.
type wsChannel struct {
	conn  *cws.Conn
	ctx   context.Context
	ready <-chan struct{}
}

func (c *wsChannel) Send(data []byte) error {
	return c.conn.Write(c.ctx, cws.MessageText, data)
}

func (c *wsChannel) Recv() ([]byte, error) {
	if c.ready != nil {
		select {
		case <-c.ready:
		case <-c.ctx.Done():
			return nil, c.ctx.Err()
		}
	}
	_, data, err := c.conn.Read(c.ctx)
	return data, err
}

func (c *wsChannel) Close() error {
	return c.conn.Close(cws.StatusNormalClosure, "")
}
