package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/warpdl/batchdl/pkg/batchlib"
)

func TestClampConcurrency(t *testing.T) {
	info := batchlib.SystemInfo{CPUCores: 4, RecommendedConcurrency: 4, MaxConcurrency: 8}
	tests := []struct {
		in, want int
	}{
		{0, 4},
		{-3, 4},
		{1, 1},
		{8, 8},
		{9, 8},
		{100, 8},
	}
	for _, tt := range tests {
		if got := clampConcurrency(tt.in, info); got != tt.want {
			t.Errorf("clampConcurrency(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNewDaemonLogger(t *testing.T) {
	dir := t.TempDir()
	for _, debug := range []bool{false, true} {
		l, err := newDaemonLogger(dir, debug)
		if err != nil {
			t.Fatalf("debug=%v: %v", debug, err)
		}
		l.Info("hello %d", 1)
		l.Close()
	}
	b, err := os.ReadFile(filepath.Join(dir, "daemon.log"))
	if err != nil {
		t.Fatal(err)
	}
	if len(b) == 0 {
		t.Error("daemon.log is empty")
	}
}
