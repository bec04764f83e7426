package batchlib

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
)

var zeroTime time.Time

// payload returns n deterministic bytes.
func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// recorder collects progress events in arrival order.
type recorder struct {
	mu     sync.Mutex
	events []Progress
}

func (r *recorder) handle(p Progress) {
	r.mu.Lock()
	r.events = append(r.events, p)
	r.mu.Unlock()
}

func (r *recorder) all() []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Progress(nil), r.events...)
}

func (r *recorder) forID(id string) []Progress {
	var out []Progress
	for _, p := range r.all() {
		if p.ID == id {
			out = append(out, p)
		}
	}
	return out
}

func (r *recorder) count(status Status) int {
	n := 0
	for _, p := range r.all() {
		if p.Status == status {
			n++
		}
	}
	return n
}

// last returns the most recent event of id.
func (r *recorder) last(id string) (Progress, bool) {
	evs := r.forID(id)
	if len(evs) == 0 {
		return Progress{}, false
	}
	return evs[len(evs)-1], true
}

// waitFor polls cond until it holds or the deadline passes.
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

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:   DEF_MAX_ATTEMPTS,
		BaseDelay:     time.Millisecond,
		MaxDelay:      10 * time.Millisecond,
		BackoffFactor: 2,
	}
}

// newRangeServer serves data at every path with Range support.
func newRangeServer(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "f.bin", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// gatedServer serves data with Range support. Requests without a Range header
// send the first half, then wait until the gate opens before sending the rest.
type gatedServer struct {
	*httptest.Server
	data []byte
	gate chan struct{}
	once sync.Once
}

func newGatedServer(t *testing.T, data []byte) *gatedServer {
	t.Helper()
	g := &gatedServer{data: data, gate: make(chan struct{})}
	g.Server = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(func() {
		g.open()
		g.Server.Close()
	})
	return g
}

func (g *gatedServer) open() { g.once.Do(func() { close(g.gate) }) }

func (g *gatedServer) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Range") != "" {
		http.ServeContent(w, r, "f.bin", time.Time{}, bytes.NewReader(g.data))
		return
	}
	half := len(g.data) / 2
	w.Header().Set("Content-Length", strconv.Itoa(len(g.data)))
	w.WriteHeader(http.StatusOK)
	w.Write(g.data[:half])
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	select {
	case <-g.gate:
	case <-r.Context().Done():
		return
	}
	w.Write(g.data[half:])
}

func newTestEngine(t *testing.T, fs afero.Fs, step int64) *Engine {
	t.Helper()
	e, err := NewEngine(&EngineOpts{
		Fs:           fs,
		Retry:        fastRetry(),
		ChunkSize:    int(32 * KB),
		ProgressStep: step,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func readFile(t *testing.T, fs afero.Fs, path string) []byte {
	t.Helper()
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return b
}
