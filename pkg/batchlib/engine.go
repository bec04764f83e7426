package batchlib

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/afero"
	"github.com/warpdl/batchdl/pkg/logger"
)

// Engine defaults.
const (
	DEF_CHUNK_SIZE    = 32 * KB
	DEF_PROGRESS_STEP = 1 * MB
	DEF_WRITE_BUFFER  = 8 * MB

	DefaultFileMode os.FileMode = 0644
	DefaultDirMode  os.FileMode = 0755
)

// OffsetStore records how many bytes of an item are already on disk. The
// global queue uses one to resume paused items without trusting a stale
// file size read from disk.
type OffsetStore interface {
	Offset(id string) (int64, bool)
	SetOffset(id string, n int64)
	ClearOffset(id string)
}

// EngineOpts configures an Engine. Zero fields take their defaults.
type EngineOpts struct {
	// Source opens remote files. Defaults to a SchemeRouter over
	// NewHTTPClient(DefaultClientOpts()).
	Source Source
	// Fs is the destination filesystem. Defaults to the OS filesystem.
	Fs     afero.Fs
	Retry  RetryConfig
	Logger logger.Logger
	// ChunkSize is the read size; control signals are polled once per chunk.
	ChunkSize int
	// ProgressStep is the number of bytes between downloading events.
	ProgressStep int64
	// BufferSize is the size of the buffered file writer.
	BufferSize int
	// SkipDiskCheck disables the free space check before writing.
	SkipDiskCheck bool
}

// Engine performs resumable single-stream transfers.
type Engine struct {
	src       Source
	fs        afero.Fs
	retry     RetryConfig
	l         logger.Logger
	chunkSize int
	step      int64
	bufSize   int
	diskCheck bool
	locks     pathLocks
}

// NewEngine creates an Engine from opts (nil means all defaults).
func NewEngine(opts *EngineOpts) (*Engine, error) {
	if opts == nil {
		opts = &EngineOpts{}
	}
	e := &Engine{
		src:       opts.Source,
		fs:        opts.Fs,
		retry:     opts.Retry,
		l:         logger.OrNop(opts.Logger),
		chunkSize: opts.ChunkSize,
		step:      opts.ProgressStep,
		bufSize:   opts.BufferSize,
		locks:     pathLocks{m: make(map[string]chan struct{})},
	}
	if e.src == nil {
		client, err := NewHTTPClient(DefaultClientOpts())
		if err != nil {
			return nil, err
		}
		e.src = NewSchemeRouter(client, nil)
	}
	if e.fs == nil {
		e.fs = afero.NewOsFs()
	}
	if e.retry.MaxAttempts <= 0 {
		e.retry = DefaultRetryConfig()
	}
	if e.chunkSize <= 0 {
		e.chunkSize = DEF_CHUNK_SIZE
	}
	if e.step <= 0 {
		e.step = DEF_PROGRESS_STEP
	}
	if e.bufSize <= 0 {
		e.bufSize = DEF_WRITE_BUFFER
	}
	_, isOs := e.fs.(*afero.OsFs)
	e.diskCheck = isOs && !opts.SkipDiskCheck
	return e, nil
}

// Run downloads item into item.Path(), emitting progress through emit.
//
// Every call ends with exactly one of the completed, paused, stopped or error
// events and returns that status. Pause and Stop signals received on ctl and
// cancellation of ctx are not errors: Run returns a nil error after reporting
// paused or stopped. After the last failed attempt Run reports error and
// returns the last error.
func (e *Engine) Run(ctx context.Context, item Item, ctl *Control, offsets OffsetStore, emit ProgressHandler) (Status, error) {
	if emit == nil {
		emit = func(Progress) {}
	}
	last := Progress{ID: item.ID, BatchID: item.BatchID}

	unlock, sig, err := e.locks.lock(ctx, ctl, item.Path())
	if err != nil || sig != SignalNone {
		last.CurrentBytes = e.sizeOnDisk(item.Path())
		return e.finishInterrupted(item, sig, &last, offsets, emit), nil
	}
	defer unlock()

	var lastErr error
	for attempt := 1; ; attempt++ {
		if sig := ctl.Signal(); sig != SignalNone || ctx.Err() != nil {
			return e.finishInterrupted(item, sig, &last, offsets, emit), nil
		}

		status, err := e.attempt(ctx, item, ctl, offsets, &last, emit)
		if err == nil {
			return status, nil
		}
		if ClassifyError(err) == ErrCategoryCanceled || ctx.Err() != nil {
			return e.finishInterrupted(item, SignalStop, &last, offsets, emit), nil
		}
		lastErr = err
		if !e.retry.ShouldRetry(attempt, err) {
			break
		}
		e.l.Warning("%s: attempt %d/%d failed: %v", item.ID, attempt, e.retry.MaxAttempts, err)

		sig, werr := e.retry.WaitForRetry(ctx, ctl, attempt, err)
		if werr != nil || sig != SignalNone {
			return e.finishInterrupted(item, sig, &last, offsets, emit), nil
		}
	}

	e.l.Error("%s: giving up after %d attempts: %v", item.ID, e.retry.MaxAttempts, lastErr)
	last.Status = StatusError
	last.Error = lastErr.Error()
	emit(last)
	return StatusError, lastErr
}

// finishInterrupted reports paused for a Pause signal and stopped for a Stop
// signal or a canceled context.
func (e *Engine) finishInterrupted(item Item, sig Signal, last *Progress, offsets OffsetStore, emit ProgressHandler) Status {
	if sig == SignalPause {
		if offsets != nil {
			offsets.SetOffset(item.ID, last.CurrentBytes)
		}
		last.Status = StatusPaused
	} else {
		last.Status = StatusStopped
	}
	emit(*last)
	return last.Status
}

// attempt performs one transfer try. A nil error means the returned status has
// been emitted. A failure after the resume point records the bytes on disk in
// offsets so the next attempt continues from there.
func (e *Engine) attempt(ctx context.Context, item Item, ctl *Control, offsets OffsetStore, last *Progress, emit ProgressHandler) (status Status, err error) {
	path := item.Path()
	if err := e.fs.MkdirAll(item.Dir, DefaultDirMode); err != nil {
		return "", fmt.Errorf("create directory %s: %w", item.Dir, err)
	}
	offset, err := e.resumeOffset(item, offsets)
	if err != nil {
		return "", err
	}
	last.CurrentBytes = offset
	if offsets != nil {
		defer func() {
			if err != nil {
				offsets.SetOffset(item.ID, last.CurrentBytes)
			}
		}()
	}

	stream, err := e.src.Open(ctx, item.URL, offset)
	if err != nil {
		return "", err
	}
	if stream.Complete {
		if offset == 0 {
			if err := e.touch(path); err != nil {
				return "", err
			}
		}
		if offsets != nil {
			offsets.ClearOffset(item.ID)
		}
		last.TotalBytes = offset
		last.CurrentBytes = offset
		last.Status = StatusCompleted
		emit(*last)
		return StatusCompleted, nil
	}
	defer stream.Body.Close()

	flags := os.O_APPEND | os.O_CREATE | os.O_WRONLY
	if stream.Offset != offset {
		e.l.Warning("%s: server ignored range request, restarting from 0", item.ID)
		flags = os.O_TRUNC | os.O_CREATE | os.O_WRONLY
		offset = 0
	}
	total := stream.Total
	if e.diskCheck && total > offset {
		if err := checkDiskSpace(item.Dir, total-offset); err != nil {
			return "", err
		}
	}

	last.TotalBytes = total
	last.CurrentBytes = offset
	last.Status = StatusDownloading
	emit(*last)

	f, err := e.fs.OpenFile(path, flags, DefaultFileMode)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	w := bufio.NewWriterSize(f, e.bufSize)
	defer func() {
		w.Flush()
		f.Close()
	}()

	buf := make([]byte, e.chunkSize)
	current, emitted := offset, offset
	for {
		if sig := ctl.Signal(); sig != SignalNone {
			if err := w.Flush(); err != nil {
				return "", fmt.Errorf("flush %s: %w", path, err)
			}
			return e.finishInterrupted(item, sig, last, offsets, emit), nil
		}
		if err := ctx.Err(); err != nil {
			w.Flush()
			return "", err
		}

		n, rerr := stream.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return "", fmt.Errorf("write %s: %w", path, err)
			}
			current += int64(n)
			last.CurrentBytes = current
			if current-emitted >= e.step {
				emitted = current
				emit(*last)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			w.Flush()
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", rerr
		}
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush %s: %w", path, err)
	}
	if total > 0 && current < total {
		return "", fmt.Errorf("%w: got %d of %d bytes", io.ErrUnexpectedEOF, current, total)
	}
	if current > total {
		total = current
	}
	if offsets != nil {
		offsets.ClearOffset(item.ID)
	}
	last.TotalBytes = total
	last.CurrentBytes = current
	last.Status = StatusCompleted
	emit(*last)
	return StatusCompleted, nil
}

// resumeOffset returns the number of bytes already on disk. A recorded offset
// wins when the file holds at least that many bytes; extra bytes past it are
// truncated.
func (e *Engine) resumeOffset(item Item, offsets OffsetStore) (int64, error) {
	path := item.Path()
	var size int64
	info, err := e.fs.Stat(path)
	switch {
	case err == nil:
		if info.IsDir() {
			return 0, fmt.Errorf("destination %s is a directory", path)
		}
		size = info.Size()
	case !errors.Is(err, os.ErrNotExist):
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if offsets == nil {
		return size, nil
	}
	rec, ok := offsets.Offset(item.ID)
	if !ok || rec >= size {
		return size, nil
	}
	f, err := e.fs.OpenFile(path, os.O_WRONLY, DefaultFileMode)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if err := f.Truncate(rec); err != nil {
		return 0, fmt.Errorf("truncate %s: %w", path, err)
	}
	return rec, nil
}

func (e *Engine) sizeOnDisk(path string) int64 {
	info, err := e.fs.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (e *Engine) touch(path string) error {
	f, err := e.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY, DefaultFileMode)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return f.Close()
}

// pathLocks serializes transfers writing to the same destination.
type pathLocks struct {
	mu sync.Mutex
	m  map[string]chan struct{}
}

func (p *pathLocks) lock(ctx context.Context, ctl *Control, key string) (unlock func(), sig Signal, err error) {
	for {
		p.mu.Lock()
		held, busy := p.m[key]
		if !busy {
			ch := make(chan struct{})
			p.m[key] = ch
			p.mu.Unlock()
			return func() {
				p.mu.Lock()
				delete(p.m, key)
				p.mu.Unlock()
				close(ch)
			}, SignalNone, nil
		}
		p.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return nil, SignalNone, ctx.Err()
		case <-ctl.Done():
			return nil, ctl.Signal(), nil
		}
	}
}
