package reduce

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Worker owns a sandboxed tempdir with two children, workdir/ (a full
// copy of the authoritative tree) and tmpdir/ (scratch space for
// per-Job backups), and runs a dedicated goroutine that drains Jobs
// from a capacity-1 channel. Adapted from pkg/cowgit/cow_pool.go's
// CoWPool workers, generalized from "clone once, report done" to "own
// a persistent sandbox and run an unbounded stream of reduce attempts
// against it".
type Worker struct {
	idx  int
	root string // Worker's private tempdir
	jobs chan Job
	res  chan JobResult
	kill chan struct{}
	done chan struct{}

	test     Test
	progress *WorkerProgressLine

	running bool
}

// NewWorker creates a Worker rooted at root (which must already exist)
// and starts its job loop, creating root/workdir and root/tmpdir if
// they are missing. root/workdir is populated by the caller (normally
// the Runner, via CopyDirectoryContentOnly, before calling NewWorker)
// before the first Job is submitted.
func NewWorker(idx int, root string, test Test, progress *WorkerProgressLine) (*Worker, error) {
	workdir := filepath.Join(root, "workdir")
	tmpdir := filepath.Join(root, "tmpdir")
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return nil, fmt.Errorf("worker %d: create workdir: %w", idx, err)
	}
	if err := os.MkdirAll(tmpdir, 0o755); err != nil {
		return nil, fmt.Errorf("worker %d: create tmpdir: %w", idx, err)
	}

	w := &Worker{
		idx:      idx,
		root:     root,
		jobs:     make(chan Job, 1),
		res:      make(chan JobResult, 1),
		kill:     make(chan struct{}),
		done:     make(chan struct{}),
		test:     test,
		progress: progress,
	}
	go w.loop()
	return w, nil
}

func (w *Worker) Index() int { return w.idx }

// Rootdir returns the Worker's private sandbox root, i.e. the
// directory whose workdir/ subtree becomes the new authoritative tree
// on promotion (spec.md §4.5.1).
func (w *Worker) Rootdir() string { return w.root }

func (w *Worker) Workdir() string { return filepath.Join(w.root, "workdir") }

// Submit hands J to the Worker's job channel. Callers must not submit
// a second Job before receiving a result for the first — the Runner
// enforces this via its worker-busy bookkeeping.
func (w *Worker) Submit(j Job) {
	w.running = true
	w.jobs <- j
}

// Results returns the channel the Runner selects on for completed
// Jobs.
func (w *Worker) Results() <-chan JobResult { return w.res }

// Kill requests the Worker's loop goroutine to exit after finishing
// (or abandoning) any in-flight Job. Used during promotion to discard
// workers whose sandbox no longer matches the new authoritative tree.
func (w *Worker) Kill() {
	close(w.kill)
	<-w.done
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		select {
		case j, ok := <-w.jobs:
			if !ok {
				return
			}
			status, err := w.runJob(j)
			w.running = false
			select {
			case w.res <- JobResult{Job: j, Status: status, Err: err}:
			case <-w.kill:
				return
			}
		case <-w.kill:
			return
		}
	}
}

// runJob performs the five steps of spec.md §4.4's per-Job execution:
// back up the target file into tmpdir, run the pass, restore the
// backup unless the pass reports Reduced, then delete the backup.
func (w *Worker) runJob(j Job) (JobStatus, error) {
	workdir := w.Workdir()
	tmpdir := filepath.Join(w.root, "tmpdir")

	srcPath := filepath.Join(workdir, j.Path)
	backupPath := filepath.Join(tmpdir, j.Path)

	if err := os.MkdirAll(filepath.Dir(backupPath), 0o755); err != nil {
		return JobStatus{Kind: PassFailed, Description: "backup mkdir failed"}, err
	}
	info, err := os.Stat(srcPath)
	if err != nil {
		return JobStatus{Kind: PassFailed, Description: "stat target failed"}, err
	}
	if err := copyRegularFile(srcPath, backupPath, info); err != nil {
		return JobStatus{Kind: PassFailed, Description: "backup copy failed"}, err
	}
	defer os.Remove(backupPath)

	testWrapper := &progressTest{inner: w.test, progress: w.progress, passName: j.Pass.Name()}

	status, err := j.Pass.Reduce(context.Background(), workdir, testWrapper, j, w.kill)

	if status.Kind != Reduced {
		if restoreErr := copyRegularFile(backupPath, srcPath, info); restoreErr != nil && err == nil {
			err = restoreErr
		}
	}

	if w.progress != nil {
		w.progress.SetIdle()
	}

	return status, err
}

// progressTest wraps a Test so every TestInteresting call updates the
// owning Worker's status line before delegating, per spec.md §4.4's
// "Worker-internal test wrapping".
type progressTest struct {
	inner    Test
	progress *WorkerProgressLine
	passName string
}

func (p *progressTest) TestInteresting(ctx context.Context, dir string, cancel <-chan struct{}, attemptName string, attemptID uint64) (Interesting, error) {
	if p.progress != nil {
		p.progress.SetAttempt(p.passName, attemptID)
		defer p.progress.SetIdle()
	}
	return p.inner.TestInteresting(ctx, dir, cancel, attemptName, attemptID)
}

func (p *progressTest) CleanupSnapshot(dir string) error {
	return p.inner.CleanupSnapshot(dir)
}
