package batchcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/warpdl/batchdl/common"
)

// handshakeID is the request id of the call Subscribe makes on the stream.
const handshakeID = 1

// frame is one JSON-RPC message read from the progress stream.
type frame struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Error  *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// decodeFrames parses a single message or a batch.
func decodeFrames(data []byte) ([]frame, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var fs []frame
		err := json.Unmarshal(data, &fs)
		return fs, err
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return []frame{f}, nil
}

func (c *Client) wsURL() string {
	return "ws" + strings.TrimPrefix(c.base, "http") + common.RPCWSPath
}

// Subscription is an open progress stream. A single goroutine reads the
// connection, so fn sees the events in the order the daemon sent them.
type Subscription struct {
	ctx   context.Context
	conn  *cws.Conn
	fn    func(common.Progress)
	reply chan error
	done  chan struct{}
	err   error
}

// Subscribe opens a progress stream and returns once the daemon has answered
// a request on it, so events of work submitted afterwards are delivered. fn
// runs on the stream's reader goroutine.
func (c *Client) Subscribe(ctx context.Context, fn func(common.Progress)) (*Subscription, error) {
	conn, _, err := cws.Dial(ctx, c.wsURL(), &cws.DialOptions{
		HTTPClient: c.http,
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + c.secret}},
	})
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	conn.SetReadLimit(4 << 20)

	s := &Subscription{
		ctx:   ctx,
		conn:  conn,
		fn:    fn,
		reply: make(chan error, 1),
		done:  make(chan struct{}),
	}
	go s.read()

	if err := s.handshake(c.timeout); err != nil {
		s.Close()
		return nil, fmt.Errorf("watch: %w", err)
	}
	return s, nil
}

func (s *Subscription) handshake(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	req, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      handshakeID,
		"method":  common.METHOD_VERSION,
	})
	if err != nil {
		return err
	}
	if err := s.conn.Write(ctx, cws.MessageText, req); err != nil {
		return err
	}
	select {
	case err := <-s.reply:
		return err
	case <-s.done:
		if s.err != nil {
			return s.err
		}
		return errors.New("stream closed before the handshake reply")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Subscription) read() {
	defer close(s.done)
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			s.err = err
			return
		}
		frames, err := decodeFrames(data)
		if err != nil {
			continue
		}
		for _, f := range frames {
			s.dispatch(f)
		}
	}
}

func (s *Subscription) dispatch(f frame) {
	if len(f.ID) == 0 {
		if f.Method != common.NOTIFY_PROGRESS {
			return
		}
		var p common.Progress
		if err := json.Unmarshal(f.Params, &p); err != nil {
			return
		}
		s.fn(p)
		return
	}
	if f.Method != "" {
		return
	}
	var err error
	if f.Error != nil {
		err = &jrpc2.Error{Code: jrpc2.Code(f.Error.Code), Message: f.Error.Message}
	}
	select {
	case s.reply <- err:
	default:
	}
}

// Wait blocks until the subscription context is done or the daemon closes
// the stream. Cancellation and a normal closure return nil.
func (s *Subscription) Wait() error {
	select {
	case <-s.ctx.Done():
		s.Close()
		return nil
	case <-s.done:
		s.conn.CloseNow()
		err := s.err
		if s.ctx.Err() != nil || errors.Is(err, context.Canceled) ||
			cws.CloseStatus(err) == cws.StatusNormalClosure ||
			cws.CloseStatus(err) == cws.StatusGoingAway {
			return nil
		}
		return fmt.Errorf("watch: %w", err)
	}
}

// Close drops the connection and waits for the reader to exit.
func (s *Subscription) Close() error {
	err := s.conn.CloseNow()
	<-s.done
	return err
}

// Watch streams progress events to fn until ctx is done or the daemon
// closes the connection.
func (c *Client) Watch(ctx context.Context, fn func(common.Progress)) error {
	s, err := c.Subscribe(ctx, fn)
	if err != nil {
		return err
	}
	return s.Wait()
}
