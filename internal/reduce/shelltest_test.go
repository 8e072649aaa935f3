package reduce

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeExecScript writes an executable shell script to its own temp
// dir and returns its path. ShellTest execs the path directly with no
// shell and no arguments, so tests that need shell behavior (exit
// codes, sleeping) supply it via a shebang script instead of a
// "sh -c" string.
func writeExecScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestShellTestExitZeroIsInteresting(t *testing.T) {
	st := NewShellTest(writeExecScript(t, "exit 0"))
	verdict, err := st.TestInteresting(context.Background(), t.TempDir(), make(chan struct{}), "attempt", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != InterestingResult {
		t.Fatalf("expected InterestingResult, got %v", verdict)
	}
}

func TestShellTestExitNonzeroIsNotInteresting(t *testing.T) {
	st := NewShellTest(writeExecScript(t, "exit 1"))
	verdict, err := st.TestInteresting(context.Background(), t.TempDir(), make(chan struct{}), "attempt", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != NotInteresting {
		t.Fatalf("expected NotInteresting, got %v", verdict)
	}
}

func TestShellTestCancelInterrupts(t *testing.T) {
	st := NewShellTest(writeExecScript(t, "sleep 5"))
	cancel := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(cancel)
	}()

	start := time.Now()
	verdict, err := st.TestInteresting(context.Background(), t.TempDir(), cancel, "attempt", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != InterruptedResult {
		t.Fatalf("expected InterruptedResult, got %v", verdict)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("cancel took too long to take effect: %v", elapsed)
	}
}
