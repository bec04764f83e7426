package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	cmdcommon "github.com/warpdl/batchdl/cmd/common"
	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/pkg/batchlib"
)

// progressView renders one bar per item. With a tracked set it only shows
// those items and reports done once each has ended its transfer.
type progressView struct {
	p *mpb.Progress

	mu       sync.Mutex
	bars     map[string]*mpb.Bar
	names    map[string]string
	tracked  map[string]bool
	ended    map[string]batchlib.Status
	failures []string
	done     chan struct{}
	closed   bool
}

func newProgressView(out io.Writer, names map[string]string, track []string) *progressView {
	v := &progressView{
		p:     mpb.New(mpb.WithOutput(out), mpb.WithWidth(48), mpb.WithRefreshRate(DEF_WATCH_REFRESH)),
		bars:  make(map[string]*mpb.Bar),
		names: names,
		ended: make(map[string]batchlib.Status),
		done:  make(chan struct{}),
	}
	if v.names == nil {
		v.names = make(map[string]string)
	}
	if len(track) > 0 {
		v.tracked = make(map[string]bool, len(track))
		for _, id := range track {
			v.tracked[id] = true
		}
	}
	return v
}

func (v *progressView) label(id string) string {
	if n, ok := v.names[id]; ok {
		return cmdcommon.Truncate(n, 28)
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (v *progressView) handle(ev common.Progress) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || (v.tracked != nil && !v.tracked[ev.ID]) {
		return
	}
	bar, ok := v.bars[ev.ID]
	if !ok {
		if ev.Status == batchlib.StatusPending {
			return
		}
		bar = cmdcommon.NewItemBar(v.p, v.label(ev.ID), ev.TotalBytes, ev.CurrentBytes)
		v.bars[ev.ID] = bar
	}

	switch ev.Status {
	case batchlib.StatusDownloading:
		if ev.TotalBytes > 0 {
			bar.SetTotal(ev.TotalBytes, false)
		}
		bar.SetCurrent(ev.CurrentBytes)
		return
	case batchlib.StatusCompleted:
		bar.SetCurrent(ev.CurrentBytes)
		bar.SetTotal(ev.CurrentBytes, true)
	case batchlib.StatusError:
		bar.Abort(false)
		v.failures = append(v.failures, fmt.Sprintf("%s: %s", v.label(ev.ID), ev.Error))
	case batchlib.StatusPaused, batchlib.StatusStopped:
		bar.Abort(false)
	default:
		return
	}
	delete(v.bars, ev.ID)
	v.ended[ev.ID] = ev.Status
	if v.tracked != nil && len(v.ended) == len(v.tracked) {
		v.closed = true
		close(v.done)
	}
}

// Done is closed once every tracked item has ended its transfer. It never
// closes for an untracked view.
func (v *progressView) Done() <-chan struct{} {
	return v.done
}

// finish aborts leftover bars, waits for the renderer and prints a summary.
func (v *progressView) finish(out io.Writer) {
	v.mu.Lock()
	v.closed = true
	for id, bar := range v.bars {
		bar.Abort(false)
		delete(v.bars, id)
	}
	ended := len(v.ended)
	counts := make(map[batchlib.Status]int)
	for _, s := range v.ended {
		counts[s]++
	}
	failures := append([]string(nil), v.failures...)
	v.mu.Unlock()

	v.p.Wait()
	if ended > 0 {
		fmt.Fprintf(out, "%d completed, %d paused, %d stopped, %d failed\n",
			counts[batchlib.StatusCompleted], counts[batchlib.StatusPaused],
			counts[batchlib.StatusStopped], counts[batchlib.StatusError])
	}
	for _, f := range failures {
		fmt.Fprintln(out, "error:", f)
	}
}

// watchUntil subscribes view to the daemon and blocks until the view is done,
// the user interrupts or the connection drops. submit, if set, runs once the
// subscription is live.
func watchUntil(ctx *cli.Context, name string, view *progressView, submit func() error) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	wctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	client, err := newClient()
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, name, "new_client", err)
		return nil
	}
	defer client.Close()

	sub, err := client.Subscribe(wctx, view.handle)
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, name, "subscribe", err)
		return nil
	}
	if submit != nil {
		if err := submit(); err != nil {
			sub.Close()
			cmdcommon.PrintRuntimeErr(ctx, name, "submit", err)
			return nil
		}
	}
	go func() {
		select {
		case <-view.Done():
			cancel()
		case <-wctx.Done():
		}
	}()
	err = sub.Wait()
	view.finish(os.Stdout)
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, name, "watch", err)
	}
	return nil
}

func watch(ctx *cli.Context) error {
	return watchUntil(ctx, "watch", newProgressView(os.Stdout, nil, nil), nil)
}
