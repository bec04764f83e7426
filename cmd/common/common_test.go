package common

import (
	"errors"
	"flag"
	"io"
	"testing"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
)

func newTestContext() *cli.Context {
	app := cli.NewApp()
	app.Name = "batchdl"
	app.HelpName = "batchdl"
	app.Version = "test"
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	ctx := cli.NewContext(app, set, nil)
	ctx.Command = cli.Command{Name: "cmd"}
	return ctx
}

func stubHelp(t *testing.T) (appCalls, cmdCalls *int) {
	t.Helper()
	origApp, origCmd := showAppHelpAndExit, showCommandHelp
	t.Cleanup(func() {
		showAppHelpAndExit, showCommandHelp = origApp, origCmd
	})
	var a, c int
	showAppHelpAndExit = func(*cli.Context, int) { a++ }
	showCommandHelp = func(*cli.Context, string) error { c++; return nil }
	return &a, &c
}

func TestNewItemBar(t *testing.T) {
	p := mpb.New(mpb.WithOutput(io.Discard))
	bar := NewItemBar(p, "file.iso", 100, 40)
	if bar.Current() != 40 {
		t.Fatalf("current = %d, want 40", bar.Current())
	}
	bar.SetCurrent(100)
	p.Wait()
	if !bar.Completed() {
		t.Fatal("bar not completed at total")
	}
}

func TestBeaut(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"hi", 4, " hi "},
		{"hi", 5, " hi  "},
		{"toolong", 3, "toolong"},
	}
	for _, tt := range tests {
		if got := Beaut(tt.s, tt.n); got != tt.want {
			t.Errorf("Beaut(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdefgh", 5); got != "abc.." {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("abc", 5); got != "abc" {
		t.Fatalf("Truncate = %q", got)
	}
}

func TestUsageErrorCallback(t *testing.T) {
	appCalls, cmdCalls := stubHelp(t)
	ctx := newTestContext()
	if err := UsageErrorCallback(ctx, errors.New("bad flag"), false); err != nil {
		t.Fatal(err)
	}
	if *cmdCalls != 1 || *appCalls != 0 {
		t.Fatalf("cmd help %d, app help %d", *cmdCalls, *appCalls)
	}

	ctx.Command = cli.Command{}
	if err := UsageErrorCallback(ctx, errors.New("bad flag"), false); err != nil {
		t.Fatal(err)
	}
	if *appCalls != 1 {
		t.Fatalf("app help calls = %d", *appCalls)
	}
}

func TestHelp(t *testing.T) {
	appCalls, cmdCalls := stubHelp(t)
	ctx := newTestContext()
	if err := Help(ctx); err != nil {
		t.Fatal(err)
	}
	if *appCalls != 1 || *cmdCalls != 0 {
		t.Fatalf("app help %d, cmd help %d", *appCalls, *cmdCalls)
	}
}

func TestPrintErrNil(t *testing.T) {
	if err := PrintErrWithHelp(newTestContext(), nil); err != nil {
		t.Fatal(err)
	}
	PrintRuntimeErr(nil, "cmd", "action", errors.New("boom"))
	PrintRuntimeErr(newTestContext(), "cmd", "action", nil)
}
