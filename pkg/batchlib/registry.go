package batchlib

import (
	"sort"
	"sync"
)

// BatchState is the lifecycle of a registered batch. An absent batch has been
// stopped or never existed.
type BatchState int

const (
	BatchRunning BatchState = iota
	BatchPaused
)

func (s BatchState) String() string {
	if s == BatchPaused {
		return "paused"
	}
	return "running"
}

// BatchInfo summarizes one registered batch.
type BatchInfo struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Items  int    `json:"items"`
	Active int    `json:"active"`
}

type batchEntry struct {
	state BatchState
	// gen changes on every pause and resume so a dispatch loop of an older
	// generation can tell it has been superseded.
	gen     uint64
	items   []Item
	handles map[string]*Control
}

// Registry tracks batches, their retained items and the control tokens of
// their in-flight transfers. All access goes through one mutex and no method
// performs I/O while holding it.
type Registry struct {
	mu      sync.Mutex
	batches map[string]*batchEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{batches: make(map[string]*batchEntry)}
}

// Register inserts batchID as running with a copy of items and no handles.
func (r *Registry) Register(batchID string, items []Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[batchID]; ok {
		return ErrBatchExists
	}
	r.batches[batchID] = &batchEntry{
		state:   BatchRunning,
		gen:     1,
		items:   append([]Item(nil), items...),
		handles: make(map[string]*Control),
	}
	return nil
}

// MarkPaused pauses batchID, signals Pause to every in-flight transfer and
// drops their handles.
func (r *Registry) MarkPaused(batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.batches[batchID]
	if !ok {
		return ErrBatchNotFound
	}
	e.state = BatchPaused
	e.gen++
	for _, ctl := range e.handles {
		ctl.Pause()
	}
	e.handles = make(map[string]*Control)
	return nil
}

// MarkStopped signals Stop to every in-flight transfer of batchID and removes
// the batch.
func (r *Registry) MarkStopped(batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.batches[batchID]
	if !ok {
		return ErrBatchNotFound
	}
	for _, ctl := range e.handles {
		ctl.Stop()
	}
	delete(r.batches, batchID)
	return nil
}

// MarkResuming sets a paused batch back to running. It fails with
// ErrBatchNotFound for unknown batches and ErrBatchNotPaused for batches that
// are already running.
func (r *Registry) MarkResuming(batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.batches[batchID]
	if !ok {
		return ErrBatchNotFound
	}
	if e.state != BatchPaused {
		return ErrBatchNotPaused
	}
	e.state = BatchRunning
	e.gen++
	return nil
}

// SnapshotItems returns a copy of the retained item list of batchID.
func (r *Registry) SnapshotItems(batchID string) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.batches[batchID]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return append([]Item(nil), e.items...), nil
}

// State returns the lifecycle of batchID and whether it exists.
func (r *Registry) State(batchID string) (BatchState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.batches[batchID]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// generation returns the current generation of a running batch.
func (r *Registry) generation(batchID string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.batches[batchID]
	if !ok || e.state != BatchRunning {
		return 0, false
	}
	return e.gen, true
}

// current reports whether batchID is running in generation gen.
func (r *Registry) current(batchID string, gen uint64) bool {
	g, ok := r.generation(batchID)
	return ok && g == gen
}

// attach records ctl for itemID if batchID is still running in generation gen.
func (r *Registry) attach(batchID string, gen uint64, itemID string, ctl *Control) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.batches[batchID]
	if !ok || e.state != BatchRunning || e.gen != gen {
		return false
	}
	e.handles[itemID] = ctl
	return true
}

// detach forgets ctl once its transfer has returned.
func (r *Registry) detach(batchID, itemID string, ctl *Control) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.batches[batchID]
	if !ok {
		return
	}
	if e.handles[itemID] == ctl {
		delete(e.handles, itemID)
	}
}

// List returns every registered batch ordered by id.
func (r *Registry) List() []BatchInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]BatchInfo, 0, len(r.batches))
	for id, e := range r.batches {
		out = append(out, BatchInfo{
			ID:     id,
			State:  e.state.String(),
			Items:  len(e.items),
			Active: len(e.handles),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
