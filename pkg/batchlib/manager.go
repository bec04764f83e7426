package batchlib

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/warpdl/batchdl/pkg/logger"
)

// ManagerState is the lifecycle of the global queue.
type ManagerState int

const (
	StateIdle ManagerState = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s ManagerState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	}
	return "idle"
}

// ManagerOpts configures a Manager.
type ManagerOpts struct {
	// Concurrency is the number of permits shared by the global queue and
	// all batches. Values below 1 use RecommendedConcurrency.
	Concurrency int
	Engine      *EngineOpts
	Logger      logger.Logger
}

// DefaultManagerOpts returns options with the recommended concurrency.
func DefaultManagerOpts() *ManagerOpts {
	return &ManagerOpts{Concurrency: RecommendedConcurrency()}
}

// QueueStatus is a snapshot of the global queue.
type QueueStatus struct {
	State       string   `json:"state"`
	Concurrency int      `json:"concurrency"`
	InUse       int      `json:"inUse"`
	Active      []string `json:"active"`
	Waiting     []string `json:"waiting"`
}

type globalTask struct {
	ctl    *Control
	cancel context.CancelFunc
}

// Manager owns the permit pool, the global queue and the batch registry. All
// transfers it starts report through the progress hub.
type Manager struct {
	mu    sync.Mutex
	state ManagerState
	// gen changes on every global transition so a superseded dispatch loop
	// stops at its next state check.
	gen        uint64
	loopCancel context.CancelFunc
	taskCtx    context.Context
	taskCancel context.CancelFunc
	active     map[string]*globalTask
	closed     bool

	queue    *itemQueue
	offsets  *offsetMap
	registry *Registry
	permits  *permits
	hub      *Hub
	d        *dispatcher
	l        logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates an idle Manager.
func NewManager(opts *ManagerOpts) (*Manager, error) {
	if opts == nil {
		opts = DefaultManagerOpts()
	}
	l := logger.OrNop(opts.Logger)
	eopts := EngineOpts{}
	if opts.Engine != nil {
		eopts = *opts.Engine
	}
	if eopts.Logger == nil {
		eopts.Logger = l
	}
	engine, err := NewEngine(&eopts)
	if err != nil {
		return nil, err
	}
	n := opts.Concurrency
	if n < 1 {
		n = RecommendedConcurrency()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		state:    StateIdle,
		active:   make(map[string]*globalTask),
		queue:    newItemQueue(),
		offsets:  &offsetMap{m: NewVMap[string, int64]()},
		registry: NewRegistry(),
		permits:  newPermits(n),
		hub:      NewHub(),
		l:        l,
		ctx:      ctx,
		cancel:   cancel,
	}
	m.d = &dispatcher{
		engine:  engine,
		permits: m.permits,
		emit:    m.hub.Publish,
		l:       l,
		wg:      &m.wg,
	}
	return m, nil
}

// Subscribe registers fn for every progress event. The returned function
// unregisters it.
func (m *Manager) Subscribe(fn ProgressHandler) func() {
	return m.hub.Subscribe(fn)
}

// Registry returns the batch registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Enqueue appends item to the global queue, assigning an id if it has none.
// It is valid in any state; queued items start once the queue is running. An
// id that is still queued or transferring is rejected with ErrDuplicateItemID.
func (m *Manager) Enqueue(item Item) (Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	item.BatchID = ""
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Item{}, ErrManagerClosed
	}
	if _, live := m.active[item.ID]; live || m.queue.Contains(item.ID) {
		m.mu.Unlock()
		return Item{}, fmt.Errorf("%w: %s", ErrDuplicateItemID, item.ID)
	}
	m.queue.Push(item)
	m.mu.Unlock()
	m.hub.Publish(Progress{ID: item.ID, Status: StatusPending})
	return item, nil
}

// Start moves an idle or stopped queue to running and starts dispatching.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if m.state != StateIdle && m.state != StateStopped {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, m.state)
	}
	m.taskCtx, m.taskCancel = context.WithCancel(m.ctx)
	m.state = StateRunning
	m.launchQueueLocked()
	m.l.Info("queue started with %d permits", m.permits.size)
	return nil
}

// Pause stops dispatching from the global queue and asks every in-flight
// global transfer to pause. Paused items return to the head of the queue.
func (m *Manager) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if m.state != StateRunning {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, m.state)
	}
	m.state = StatePaused
	m.gen++
	m.loopCancel()
	for _, t := range m.active {
		t.ctl.Pause()
	}
	m.l.Info("queue paused: %d transfers pausing", len(m.active))
	return nil
}

// Resume moves a paused queue back to running and dispatches what remains.
func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if m.state != StatePaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, m.state)
	}
	m.state = StateRunning
	m.launchQueueLocked()
	m.l.Info("queue resumed: %d waiting", m.queue.Len())
	return nil
}

// Stop cancels every in-flight global transfer without waiting for it to
// reach a poll point and empties the queue. Batches are not affected.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	m.state = StateStopped
	m.gen++
	if m.loopCancel != nil {
		m.loopCancel()
	}
	if m.taskCancel != nil {
		m.taskCancel()
	}
	dropped := m.queue.Clear()
	m.offsets.Clear()
	for _, item := range dropped {
		m.hub.Publish(Progress{ID: item.ID, Status: StatusStopped})
	}
	m.l.Info("queue stopped: %d transfers canceled, %d queued items dropped", len(m.active), len(dropped))
	return nil
}

// State returns the lifecycle of the global queue.
func (m *Manager) State() ManagerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Concurrency returns the size of the permit pool.
func (m *Manager) Concurrency() int {
	return m.permits.size
}

// InUse returns the number of permits currently held.
func (m *Manager) InUse() int {
	return m.permits.InUse()
}

// QueueStatus returns a snapshot of the global queue.
func (m *Manager) QueueStatus() QueueStatus {
	m.mu.Lock()
	st := QueueStatus{
		State:       m.state.String(),
		Concurrency: m.permits.size,
		InUse:       m.permits.InUse(),
		Active:      make([]string, 0, len(m.active)),
	}
	for id := range m.active {
		st.Active = append(st.Active, id)
	}
	m.mu.Unlock()
	waiting := m.queue.Snapshot()
	st.Waiting = make([]string, 0, len(waiting))
	for _, item := range waiting {
		st.Waiting = append(st.Waiting, item.ID)
	}
	return st
}

// launchQueueLocked starts a new generation of the global dispatch loop.
// Caller must hold m.mu.
func (m *Manager) launchQueueLocked() {
	m.gen++
	gen := m.gen
	loopCtx, cancel := context.WithCancel(m.ctx)
	m.loopCancel = cancel
	taskCtx := m.taskCtx

	loop := loopSpec{
		name:   "queue",
		source: queueSource{m},
		running: func() bool {
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.state == StateRunning && m.gen == gen
		},
		admit: func(item Item) (*Control, context.Context, bool) {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.state != StateRunning || m.gen != gen {
				return nil, nil, false
			}
			ctl := NewControl()
			ctx, cancel := context.WithCancel(taskCtx)
			m.active[item.ID] = &globalTask{ctl: ctl, cancel: cancel}
			return ctl, ctx, true
		},
		finished: func(item Item, ctl *Control, status Status) {
			m.mu.Lock()
			defer m.mu.Unlock()
			if t, ok := m.active[item.ID]; ok && t.ctl == ctl {
				t.cancel()
				delete(m.active, item.ID)
			}
			if status == StatusPaused && m.state != StateStopped && !m.closed {
				m.queue.PushFront(item)
			}
		},
		offsets: m.offsets,
	}
	m.wg.Add(1)
	safeGo(m.l, &m.wg, "queue loop", nil, func() {
		m.d.run(loopCtx, loop)
	})
}

// DispatchBatch registers items as batch batchID and starts dispatching them.
// An empty batchID is replaced by a generated one; items without an id get
// one. The batch is registered before DispatchBatch returns, so a pause or
// stop issued right after it is never lost. Two items sharing an id are
// rejected with ErrDuplicateItemID.
func (m *Manager) DispatchBatch(batchID string, items []Item) (string, []Item, error) {
	if len(items) == 0 {
		return "", nil, ErrEmptyBatch
	}
	if batchID == "" {
		batchID = uuid.NewString()
	}
	owned := make([]Item, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if err := item.Validate(); err != nil {
			return "", nil, err
		}
		if seen[item.ID] {
			return "", nil, fmt.Errorf("%w: %s", ErrDuplicateItemID, item.ID)
		}
		seen[item.ID] = true
		owned[i] = item.InBatch(batchID)
	}

	if err := m.registry.Register(batchID, owned); err != nil {
		return "", nil, fmt.Errorf("batch %s: %w", batchID, err)
	}
	if err := m.launchBatch(batchID, owned); err != nil {
		m.registry.MarkStopped(batchID)
		return "", nil, err
	}
	m.l.Info("batch %s dispatched: %d items", batchID, len(owned))
	return batchID, owned, nil
}

// PauseBatch pauses batchID and signals its in-flight transfers to pause.
func (m *Manager) PauseBatch(batchID string) error {
	if err := m.registry.MarkPaused(batchID); err != nil {
		return err
	}
	m.l.Info("batch %s paused", batchID)
	return nil
}

// ResumeBatch re-dispatches every retained item of a paused batch. Items
// already complete on disk finish immediately.
func (m *Manager) ResumeBatch(batchID string) error {
	if err := m.registry.MarkResuming(batchID); err != nil {
		return err
	}
	items, err := m.registry.SnapshotItems(batchID)
	if err != nil {
		return err
	}
	m.l.Info("batch %s resumed: %d items", batchID, len(items))
	return m.launchBatch(batchID, items)
}

// StopBatch signals the in-flight transfers of batchID to stop and forgets
// the batch.
func (m *Manager) StopBatch(batchID string) error {
	if err := m.registry.MarkStopped(batchID); err != nil {
		return err
	}
	m.l.Info("batch %s stopped", batchID)
	return nil
}

// Batches lists the registered batches.
func (m *Manager) Batches() []BatchInfo {
	return m.registry.List()
}

func (m *Manager) launchBatch(batchID string, items []Item) error {
	gen, ok := m.registry.generation(batchID)
	if !ok {
		// paused or stopped before the loop started
		return nil
	}
	for _, item := range items {
		m.hub.Publish(Progress{ID: item.ID, BatchID: batchID, Status: StatusPending})
	}
	loop := loopSpec{
		name:   "batch " + batchID,
		source: newSliceSource(items),
		running: func() bool {
			return m.registry.current(batchID, gen)
		},
		admit: func(item Item) (*Control, context.Context, bool) {
			ctl := NewControl()
			if !m.registry.attach(batchID, gen, item.ID, ctl) {
				return nil, nil, false
			}
			return ctl, m.ctx, true
		},
		finished: func(item Item, ctl *Control, _ Status) {
			m.registry.detach(batchID, item.ID, ctl)
		},
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.wg.Add(1)
	m.mu.Unlock()
	safeGo(m.l, &m.wg, loop.name, nil, func() {
		m.d.run(m.ctx, loop)
	})
	return nil
}

// Close cancels every transfer, waits for all tasks to return and flushes
// pending progress events to subscribers.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	m.hub.Close()
	return nil
}

// queueSource feeds the global dispatch loop. An item handed back after Stop
// cleared the queue is reported stopped instead of being re-queued.
type queueSource struct {
	m *Manager
}

func (s queueSource) Next(ctx context.Context) (Item, bool) {
	return s.m.queue.Next(ctx)
}

func (s queueSource) Unread(item Item) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.state == StateStopped {
		s.m.hub.Publish(Progress{ID: item.ID, Status: StatusStopped})
		return
	}
	s.m.queue.PushFront(item)
}

// offsetMap is the OffsetStore used by the global queue.
type offsetMap struct {
	m *VMap[string, int64]
}

func (o *offsetMap) Offset(id string) (int64, bool) { return o.m.Get(id) }
func (o *offsetMap) SetOffset(id string, n int64)   { o.m.Set(id, n) }
func (o *offsetMap) ClearOffset(id string)          { o.m.Delete(id) }
func (o *offsetMap) Clear()                         { o.m.Clear() }
