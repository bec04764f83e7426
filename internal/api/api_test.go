package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/server"
	"github.com/spf13/afero"
	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/pkg/batchlib"
	"github.com/warpdl/batchdl/pkg/logger"
)

// memSource serves 1000 bytes for every URL.
var memSource = batchlib.SourceFunc(func(_ context.Context, _ string, offset int64) (*batchlib.Stream, error) {
	const size = 1000
	if offset >= size {
		return &batchlib.Stream{Offset: offset, Total: offset, Complete: true}, nil
	}
	body := io.NopCloser(bytes.NewReader(make([]byte, size-offset)))
	return &batchlib.Stream{Body: body, Offset: offset, Total: size}, nil
})

func newTestApi(t *testing.T) (*jrpc2.Client, *batchlib.Manager) {
	t.Helper()
	m, err := batchlib.NewManager(&batchlib.ManagerOpts{
		Concurrency: 2,
		Engine:      &batchlib.EngineOpts{Source: memSource, Fs: afero.NewMemMapFs()},
	})
	if err != nil {
		t.Fatal(err)
	}
	a := NewApi(logger.NewNopLogger(), m, common.VersionResult{Version: "1.2.3", Commit: "abc"})
	loc := server.NewLocal(a.Methods(), nil)
	t.Cleanup(func() {
		loc.Close()
		a.Close()
	})
	return loc.Client, m
}

// call runs a method whose result is not needed.
func call(ctx context.Context, cli *jrpc2.Client, method string, params any) error {
	_, err := cli.Call(ctx, method, params)
	return err
}

func rpcCode(t *testing.T, err error) jrpc2.Code {
	t.Helper()
	var e *jrpc2.Error
	if !errors.As(err, &e) {
		t.Fatalf("error %v is not a jrpc2 error", err)
	}
	return e.Code
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestVersionAndInfo(t *testing.T) {
	cli, _ := newTestApi(t)
	ctx := context.Background()

	var v common.VersionResult
	if err := cli.CallResult(ctx, common.METHOD_VERSION, nil, &v); err != nil {
		t.Fatal(err)
	}
	if v.Version != "1.2.3" || v.Commit != "abc" {
		t.Fatalf("version = %+v", v)
	}

	var info common.SystemInfoResult
	if err := cli.CallResult(ctx, common.METHOD_SYSTEM_INFO, nil, &info); err != nil {
		t.Fatal(err)
	}
	if info.CPUCores < 1 || info.MaxConcurrency != 2*info.CPUCores || info.Concurrency != 2 {
		t.Fatalf("info = %+v", info)
	}
}

func TestQueueMethods(t *testing.T) {
	cli, m := newTestApi(t)
	ctx := context.Background()

	var added common.AddResult
	err := cli.CallResult(ctx, common.METHOD_QUEUE_ADD, common.ItemParams{URL: "http://h/files/a.bin", Dir: "/dl"}, &added)
	if err != nil {
		t.Fatal(err)
	}
	if added.Item.ID == "" || added.Item.FileName != "a.bin" {
		t.Fatalf("added = %+v", added.Item)
	}

	var st common.QueueStatusResult
	cli.CallResult(ctx, common.METHOD_QUEUE_STATUS, nil, &st)
	if st.State != "idle" || len(st.Waiting) != 1 {
		t.Fatalf("status = %+v", st)
	}

	if err := call(ctx, cli, common.METHOD_QUEUE_PAUSE, nil); rpcCode(t, err) != common.CodeInvalidState {
		t.Fatalf("pause from idle = %v", err)
	}
	if err := call(ctx, cli, common.METHOD_QUEUE_START, nil); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "queue drained", func() bool {
		st := m.QueueStatus()
		return len(st.Waiting) == 0 && len(st.Active) == 0
	})
	if err := call(ctx, cli, common.METHOD_QUEUE_PAUSE, nil); err != nil {
		t.Fatal(err)
	}
	if err := call(ctx, cli, common.METHOD_QUEUE_RESUME, nil); err != nil {
		t.Fatal(err)
	}
	if err := call(ctx, cli, common.METHOD_QUEUE_STOP, nil); err != nil {
		t.Fatal(err)
	}
	if m.State() != batchlib.StateStopped {
		t.Fatalf("state = %s", m.State())
	}
}

func TestQueueAddInvalid(t *testing.T) {
	cli, _ := newTestApi(t)
	ctx := context.Background()
	for _, p := range []common.ItemParams{{}, {URL: "not a url"}, {URL: "http://h/"}} {
		err := call(ctx, cli, common.METHOD_QUEUE_ADD, p)
		if rpcCode(t, err) != common.CodeInvalidParams {
			t.Errorf("queue.add(%+v) = %v", p, err)
		}
	}
}

func TestBatchMethods(t *testing.T) {
	cli, m := newTestApi(t)
	ctx := context.Background()

	var res common.BatchDispatchResult
	params := common.BatchDispatchParams{
		ID: "b1",
		Items: []common.ItemParams{
			{URL: "http://h/1.bin", Dir: "/dl"},
			{URL: "http://h/2.bin", Dir: "/dl"},
		},
	}
	if err := cli.CallResult(ctx, common.METHOD_BATCH_DISPATCH, params, &res); err != nil {
		t.Fatal(err)
	}
	if res.ID != "b1" || len(res.Items) != 2 || res.Items[0].BatchID != "b1" {
		t.Fatalf("dispatch = %+v", res)
	}
	if err := call(ctx, cli, common.METHOD_BATCH_DISPATCH, params); rpcCode(t, err) != common.CodeInvalidParams {
		t.Fatalf("duplicate dispatch = %v", err)
	}

	var list common.BatchListResult
	cli.CallResult(ctx, common.METHOD_BATCH_LIST, nil, &list)
	if len(list.Batches) != 1 || list.Batches[0].ID != "b1" {
		t.Fatalf("list = %+v", list)
	}

	if err := call(ctx, cli, common.METHOD_BATCH_PAUSE, common.BatchParams{ID: "b1"}); err != nil {
		t.Fatal(err)
	}
	if err := call(ctx, cli, common.METHOD_BATCH_RESUME, common.BatchParams{ID: "b1"}); err != nil {
		t.Fatal(err)
	}
	if err := call(ctx, cli, common.METHOD_BATCH_RESUME, common.BatchParams{ID: "b1"}); rpcCode(t, err) != common.CodeInvalidState {
		t.Fatalf("resume running batch = %v", err)
	}
	if err := call(ctx, cli, common.METHOD_BATCH_STOP, common.BatchParams{ID: "b1"}); err != nil {
		t.Fatal(err)
	}
	if len(m.Batches()) != 0 {
		t.Fatal("batch still listed after stop")
	}
	for _, method := range []string{common.METHOD_BATCH_PAUSE, common.METHOD_BATCH_RESUME, common.METHOD_BATCH_STOP} {
		err := call(ctx, cli, method, common.BatchParams{ID: "b1"})
		if rpcCode(t, err) != common.CodeNotFound {
			t.Errorf("%s on stopped batch = %v", method, err)
		}
		err = call(ctx, cli, method, common.BatchParams{})
		if rpcCode(t, err) != common.CodeInvalidParams {
			t.Errorf("%s without id = %v", method, err)
		}
	}
}

func TestBatchDispatchEmpty(t *testing.T) {
	cli, _ := newTestApi(t)
	err := call(context.Background(), cli, common.METHOD_BATCH_DISPATCH, common.BatchDispatchParams{})
	if rpcCode(t, err) != common.CodeInvalidParams {
		t.Fatalf("empty dispatch = %v", err)
	}
}

func TestDuplicateItemIDs(t *testing.T) {
	cli, m := newTestApi(t)
	ctx := context.Background()

	params := common.BatchDispatchParams{
		ID: "d",
		Items: []common.ItemParams{
			{ID: "same", URL: "http://h/1.bin", Dir: "/dl"},
			{ID: "same", URL: "http://h/2.bin", Dir: "/dl"},
		},
	}
	if err := call(ctx, cli, common.METHOD_BATCH_DISPATCH, params); rpcCode(t, err) != common.CodeInvalidParams {
		t.Fatalf("dispatch with repeated ids = %v", err)
	}
	if len(m.Batches()) != 0 {
		t.Fatal("rejected batch was registered")
	}

	item := common.ItemParams{ID: "q", URL: "http://h/q.bin", Dir: "/dl"}
	if err := call(ctx, cli, common.METHOD_QUEUE_ADD, item); err != nil {
		t.Fatal(err)
	}
	if err := call(ctx, cli, common.METHOD_QUEUE_ADD, item); rpcCode(t, err) != common.CodeInvalidParams {
		t.Fatalf("queue.add of a queued id = %v", err)
	}
}

func TestRPCErrorMapping(t *testing.T) {
	if rpcError(nil) != nil {
		t.Fatal("nil error mapped to non-nil")
	}
	tests := []struct {
		err  error
		code jrpc2.Code
	}{
		{batchlib.ErrBatchNotFound, common.CodeNotFound},
		{batchlib.ErrBatchNotPaused, common.CodeInvalidState},
		{batchlib.ErrInvalidTransition, common.CodeInvalidState},
		{batchlib.ErrEmptyBatch, common.CodeInvalidParams},
		{batchlib.ErrBatchExists, common.CodeInvalidParams},
		{batchlib.ErrDuplicateItemID, common.CodeInvalidParams},
	}
	for _, tt := range tests {
		if got := rpcCode(t, rpcError(tt.err)); got != tt.code {
			t.Errorf("rpcError(%v) code = %d, want %d", tt.err, got, tt.code)
		}
	}
}
