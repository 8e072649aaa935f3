package reduce

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// WorkerProgressLine owns one steady-tick status line for a single
// Worker. Generalized from pkg/cowgit/progress.go's ProgressTracker,
// which drove exactly one spinner for one sequential CLI operation;
// here the Runner owns one per concurrent Worker, indexed by worker
// slot, and closes and recreates them across respawns (see
// Runner.respawnWorkerAt).
type WorkerProgressLine struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	show    bool
	label   string
}

// NewWorkerProgressLine creates a progress line for worker index idx.
// show is normally isTerminal() && !--no-progress-bars.
func NewWorkerProgressLine(idx int, show bool) *WorkerProgressLine {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Color("cyan")
	w := &WorkerProgressLine{
		spinner: s,
		show:    show,
		label:   fmt.Sprintf("worker-%d", idx),
	}
	if show {
		w.spinner.Suffix = fmt.Sprintf(" %s idle", w.label)
		w.spinner.Start()
	}
	return w
}

// SetAttempt updates the line to show the pass name and a short hash of
// the attempt id currently under test, per spec.md §4.4's "Worker-
// internal test wrapping".
func (w *WorkerProgressLine) SetAttempt(passName string, attemptID uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.show {
		return
	}
	w.spinner.Suffix = fmt.Sprintf(" %s testing %s #%04x", w.label, passName, uint16(attemptID))
}

// SetIdle restores the idle message after a test call returns.
func (w *WorkerProgressLine) SetIdle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.show {
		return
	}
	w.spinner.Suffix = fmt.Sprintf(" %s idle", w.label)
}

// Stop halts the spinner animation; Close calls it when a Worker is
// killed, before a respawned Worker in the same slot gets a new line.
func (w *WorkerProgressLine) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.show {
		w.spinner.Stop()
	}
}

// Close stops the spinner for good and clears the line.
func (w *WorkerProgressLine) Close() {
	w.Stop()
}

// RunnerLog prints the one-line-per-event messages spec.md §7
// describes ("one info line per successful reduction", "periodic info
// line per snapshot", "error lines on worker death"), colorized the
// way pkg/cowgit/progress.go colorizes ProgressTracker.FinishStage and
// .Error.
type RunnerLog struct {
	quiet bool
}

func NewRunnerLog(quiet bool) *RunnerLog { return &RunnerLog{quiet: quiet} }

func (l *RunnerLog) Reduced(path, passName, desc string) {
	green := color.New(color.FgGreen).SprintFunc()
	if desc != "" {
		fmt.Printf("%s %s via %s: %s\n", green("reduced"), path, passName, desc)
	} else {
		fmt.Printf("%s %s via %s\n", green("reduced"), path, passName)
	}
}

func (l *RunnerLog) Snapshot(name string) {
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("%s %s\n", cyan("snapshot"), name)
}

func (l *RunnerLog) WorkerDied(idx int, err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Printf("%s worker %d: %v\n", red("error:"), idx, err)
}

func (l *RunnerLog) Interrupted() {
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("%s interrupted, draining workers\n", yellow("warning:"))
}

// isTerminal reports whether stdout is attached to a TTY, using
// golang.org/x/term.IsTerminal in place of the teacher's hand-rolled
// os.ModeCharDevice check in pkg/cowgit/progress.go — the teacher's
// repo carried x/term only transitively (via go-git's ssh agent); here
// it is used directly for the one thing it exists to do.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
