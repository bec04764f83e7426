package batchcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/spf13/afero"
	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/internal/api"
	"github.com/warpdl/batchdl/internal/server"
	"github.com/warpdl/batchdl/pkg/batchlib"
)

const secret = "client-test-secret"

var memSource = batchlib.SourceFunc(func(_ context.Context, _ string, offset int64) (*batchlib.Stream, error) {
	const size = 2048
	if offset >= size {
		return &batchlib.Stream{Offset: offset, Total: offset, Complete: true}, nil
	}
	return &batchlib.Stream{
		Body:   io.NopCloser(bytes.NewReader(make([]byte, size-offset))),
		Offset: offset,
		Total:  size,
	}, nil
})

type daemon struct {
	url     string
	web     *server.WebServer
	manager *batchlib.Manager
}

func startDaemon(t *testing.T) *daemon {
	t.Helper()
	m, err := batchlib.NewManager(&batchlib.ManagerOpts{
		Concurrency: 2,
		Engine:      &batchlib.EngineOpts{Source: memSource, Fs: afero.NewMemMapFs()},
	})
	if err != nil {
		t.Fatal(err)
	}
	a := api.NewApi(nil, m, common.VersionResult{Version: "0.9.0"})
	rpc := server.NewRPCServer(secret, a.Methods())
	web := server.NewWebServer(nil, rpc, nil)
	unsub := m.Subscribe(web.Notifier().ForwardProgress())
	srv := httptest.NewServer(web.Handler())
	t.Cleanup(func() {
		srv.Close()
		unsub()
		rpc.Close()
		a.Close()
	})
	return &daemon{url: srv.URL, web: web, manager: m}
}

func newClient(t *testing.T, d *daemon) *Client {
	t.Helper()
	c, err := NewClient(d.url+"/", secret)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("http://127.0.0.1:1", ""); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("empty secret = %v", err)
	}
	if _, err := NewClient("127.0.0.1:1", "s"); err == nil {
		t.Fatal("expected error for address without scheme")
	}
	if got := LocalAddr(3849); got != "http://127.0.0.1:3849" {
		t.Fatalf("LocalAddr = %q", got)
	}
}

func TestClientQueue(t *testing.T) {
	d := startDaemon(t)
	c := newClient(t, d)

	v, err := c.Version()
	if err != nil || v.Version != "0.9.0" {
		t.Fatalf("Version = %+v, %v", v, err)
	}
	info, err := c.SystemInfo()
	if err != nil || info.Concurrency != 2 {
		t.Fatalf("SystemInfo = %+v, %v", info, err)
	}

	item, err := c.Add("http://h/a.iso", "/dl", "")
	if err != nil {
		t.Fatal(err)
	}
	if item.FileName != "a.iso" || item.Dir != "/dl" {
		t.Fatalf("item = %+v", item)
	}
	st, err := c.Status()
	if err != nil || len(st.Waiting) != 1 || st.Waiting[0] != item.ID {
		t.Fatalf("Status = %+v, %v", st, err)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.Pause(); err != nil {
		t.Fatal(err)
	}
	if err := c.Resume(); err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	err = c.Pause()
	var rpcErr *jrpc2.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != common.CodeInvalidState {
		t.Fatalf("Pause after stop = %v", err)
	}
}

func TestClientBatch(t *testing.T) {
	d := startDaemon(t)
	c := newClient(t, d)

	res, err := c.DispatchBatch("", []common.ItemParams{
		{URL: "http://h/1", Dir: "/b"},
		{URL: "http://h/2", Dir: "/b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ID == "" || len(res.Items) != 2 {
		t.Fatalf("dispatch = %+v", res)
	}
	list, err := c.ListBatches()
	if err != nil || len(list) != 1 || list[0].ID != res.ID {
		t.Fatalf("ListBatches = %+v, %v", list, err)
	}
	if err := c.PauseBatch(res.ID); err != nil {
		t.Fatal(err)
	}
	if err := c.ResumeBatch(res.ID); err != nil {
		t.Fatal(err)
	}
	if err := c.StopBatch(res.ID); err != nil {
		t.Fatal(err)
	}
	err = c.StopBatch(res.ID)
	var rpcErr *jrpc2.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != common.CodeNotFound {
		t.Fatalf("StopBatch of unknown batch = %v", err)
	}
}

func TestClientWrongSecret(t *testing.T) {
	d := startDaemon(t)
	c, err := NewClient(d.url, "wrong")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.Version(); err == nil {
		t.Fatal("expected unauthorized error")
	}
	if err := c.Watch(context.Background(), func(common.Progress) {}); err == nil {
		t.Fatal("expected watch to fail with wrong secret")
	}
}

func TestClientWatch(t *testing.T) {
	d := startDaemon(t)
	c := newClient(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var events []common.Progress
	sub, err := c.Subscribe(ctx, func(p common.Progress) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
		if p.Status == batchlib.StatusCompleted {
			cancel()
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.web.Notifier().Count() != 1 {
		t.Fatalf("notifier count = %d after Subscribe", d.web.Notifier().Count())
	}
	if _, err := c.DispatchBatch("w", []common.ItemParams{{URL: "http://h/w.bin", Dir: "/w"}}); err != nil {
		t.Fatal(err)
	}

	if err := sub.Wait(); err != nil {
		t.Fatalf("Wait = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(events) < 3 || events[0].Status != batchlib.StatusPending {
		t.Fatalf("events = %+v", events)
	}
	for i, ev := range events[1 : len(events)-1] {
		if ev.Status != batchlib.StatusDownloading {
			t.Fatalf("event %d = %+v, want downloading", i+1, ev)
		}
	}
	last := events[len(events)-1]
	if last.Status != batchlib.StatusCompleted || last.CurrentBytes != 2048 {
		t.Fatalf("last event = %+v", last)
	}
}

// newStreamServer answers the subscription handshake and then pushes n
// progress notifications with increasing byte counts before closing.
func newStreamServer(t *testing.T, n int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := cws.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		_, msg, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(msg, &req); err != nil {
			return
		}
		reply := fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"result":{"version":"test"}}`, req.ID)
		if err := conn.Write(ctx, cws.MessageText, []byte(reply)); err != nil {
			return
		}
		for i := 1; i <= n; i++ {
			note := fmt.Sprintf(`{"jsonrpc":"2.0","method":%q,"params":{"id":"s","totalBytes":%d,"currentBytes":%d,"status":"downloading"}}`,
				common.NOTIFY_PROGRESS, n, i)
			if err := conn.Write(ctx, cws.MessageText, []byte(note)); err != nil {
				return
			}
		}
		conn.Close(cws.StatusNormalClosure, "")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWatchDeliversInOrder(t *testing.T) {
	const n = 500
	srv := newStreamServer(t, n)
	c, err := NewClient(srv.URL, secret)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got []int64
	if err := c.Watch(ctx, func(p common.Progress) {
		got = append(got, p.CurrentBytes)
	}); err != nil {
		t.Fatalf("Watch = %v", err)
	}
	if len(got) != n {
		t.Fatalf("received %d events, want %d", len(got), n)
	}
	for i, v := range got {
		if v != int64(i+1) {
			t.Fatalf("event %d carries %d; events arrived out of order", i, v)
		}
	}
}

func TestDecodeFrames(t *testing.T) {
	fs, err := decodeFrames([]byte(` [{"jsonrpc":"2.0","id":1,"result":{}},{"jsonrpc":"2.0","method":"m"}]`))
	if err != nil || len(fs) != 2 || string(fs[0].ID) != "1" || fs[1].Method != "m" {
		t.Fatalf("batch = %+v, %v", fs, err)
	}
	fs, err = decodeFrames([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"no"}}`))
	if err != nil || len(fs) != 1 || fs[0].Error == nil || fs[0].Error.Code != -32601 {
		t.Fatalf("single = %+v, %v", fs, err)
	}
	if _, err := decodeFrames([]byte("not json")); err == nil {
		t.Fatal("expected an error for malformed input")
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	d := startDaemon(t)
	c := newClient(t, d)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, func(common.Progress) {}) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestCheckVersionMismatch(t *testing.T) {
	d := startDaemon(t)
	c := newClient(t, d)
	t.Setenv(VersionCheckEnv, "")

	var buf bytes.Buffer
	c.CheckVersionMismatch(&buf, "0.9.0")
	if buf.Len() != 0 {
		t.Fatalf("unexpected warning %q", buf.String())
	}
	c.CheckVersionMismatch(&buf, "1.0.0")
	if !strings.Contains(buf.String(), "differs") {
		t.Fatalf("missing warning, got %q", buf.String())
	}

	buf.Reset()
	t.Setenv(VersionCheckEnv, "1")
	c.CheckVersionMismatch(&buf, "1.0.0")
	if buf.Len() != 0 {
		t.Fatal("warning printed despite suppression")
	}
}
