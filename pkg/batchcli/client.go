// Package batchcli is the Go client of the batchdl daemon's JSON-RPC API.
package batchcli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/warpdl/batchdl/common"
)

var ErrNoSecret = errors.New("rpc secret is empty")

// DefaultTimeout bounds a single RPC call.
const DefaultTimeout = 30 * time.Second

type Client struct {
	base    string
	secret  string
	http    *http.Client
	rpc     *jrpc2.Client
	timeout time.Duration
}

// bearerDoer adds the Authorization header to every request.
type bearerDoer struct {
	c      *http.Client
	secret string
}

func (d bearerDoer) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+d.secret)
	return d.c.Do(req)
}

// NewClient connects to the daemon at base, e.g. "http://127.0.0.1:3849".
func NewClient(base, secret string) (*Client, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("invalid daemon address %q", base)
	}
	hc := &http.Client{}
	ch := jhttp.NewChannel(base+common.RPCPath, &jhttp.ChannelOptions{
		Client: bearerDoer{c: hc, secret: secret},
	})
	return &Client{
		base:    base,
		secret:  secret,
		http:    hc,
		rpc:     jrpc2.NewClient(ch, nil),
		timeout: DefaultTimeout,
	}, nil
}

// LocalAddr returns the base URL of a daemon on this host.
func LocalAddr(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

func (c *Client) Close() error {
	return c.rpc.Close()
}

func call[T any](c *Client, method string, params any) (*T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	var out T
	if err := c.rpc.CallResult(ctx, method, params, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return &out, nil
}
