package reduce

import (
	"context"
	"os/exec"
	"time"
)

// ShellTest runs a user-supplied executable in a candidate directory
// and maps its exit code to an Interesting verdict: exit 0 means
// interesting (keep the reduction), any nonzero exit means not
// interesting (revert it). Grounded on pkg/cowgit/worktree.go's
// runGitCommand, which spawns exec.Command with cmd.Dir set and
// inspects the error return; per spec.md §6 the test "receives no
// arguments", so the configured path is exec'd directly with no shell
// and no argument vector, matching
// _examples/original_source/tree-sitter-reduce/src/test.rs's
// Command::new(&self.test). A poll loop is added so a cancel signal
// can interrupt a long-running test.
type ShellTest struct {
	Command string
}

func NewShellTest(command string) *ShellTest {
	return &ShellTest{Command: command}
}

// TestInteresting runs the configured executable with dir as its
// working directory. It polls the process every 100ms so a cancel
// signal can kill it promptly instead of blocking until the command
// exits on its own, matching spec.md §4.6's cancellation requirement
// for in-flight tests.
func (t *ShellTest) TestInteresting(ctx context.Context, dir string, cancel <-chan struct{}, attemptName string, attemptID uint64) (Interesting, error) {
	cmd := exec.CommandContext(ctx, t.Command)
	cmd.Dir = dir

	if err := cmd.Start(); err != nil {
		return NotInteresting, err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err == nil {
				return InterestingResult, nil
			}
			return NotInteresting, nil
		case <-cancel:
			_ = cmd.Process.Kill()
			<-done
			return InterruptedResult, nil
		case <-ticker.C:
			// keep polling; exec.CommandContext already ties the
			// process lifetime to ctx, this ticker exists purely to
			// give the cancel case a chance to fire promptly.
		}
	}
}

// CleanupSnapshot is a no-op for ShellTest: nothing about running the
// user's command leaves state behind that a snapshot needs to scrub.
// Callers that need a cleanup hook (e.g. a build-artifact directory
// the command leaves behind) should wrap ShellTest in a type that adds
// one, grounded the same way pkg/cowgit/benchmark_test.go layers
// cleanupDirs on top of its core clone operation.
func (t *ShellTest) CleanupSnapshot(dir string) error { return nil }
