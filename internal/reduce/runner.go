package reduce

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Runner owns the authoritative working tree, the set of live
// Workers, and the scheduling loop that feeds them Jobs. Adapted from
// pkg/cowgit/cow_pool.go's AtomicClonePool supervisory goroutine:
// same "select over worker channels plus a control channel" shape,
// generalized from a fixed batch of clone operations to an unbounded
// stream of reduce Jobs with mid-run respawns on promotion.
type Runner struct {
	rootDir string // Runner's own authoritative workdir (not a Worker's)
	paths   []string
	files   map[string]*fileInfo

	passes []Pass

	workers []*Worker
	lines   []*WorkerProgressLine

	test Test

	cancel *CancelBroadcast
	rng    *rand.Rand

	log      *RunnerLog
	logger   *slog.Logger
	snapshot *SnapshotManager

	reducedCount int
}

// RunnerConfig collects the knobs spec.md §6 exposes as CLI flags.
type RunnerConfig struct {
	RootPath          string
	Jobs              int
	RandomSeed        int64
	DoNotValidateInput bool
	ShowProgress      bool
	SnapshotDir       string
	SnapshotInterval  time.Duration
	MaxSnapshots      int
	Resume            bool
	FileFilter        func(path string) bool
	Logger            *slog.Logger
}

// NewRunner copies the tree under cfg.RootPath into a fresh working
// directory, discovers every file in it (filtered by cfg.FileFilter,
// spec.md §6's `--file` glob), runs the initial interestingness check
// unless cfg.DoNotValidateInput is set, installs the signal handler,
// and spawns the Workers with their sandboxes.
func NewRunner(cfg RunnerConfig, passes []Pass, test Test) (*Runner, error) {
	if len(passes) == 0 {
		return nil, fmt.Errorf("no passes configured")
	}

	work, err := os.MkdirTemp("", "tsreduce-runner-")
	if err != nil {
		return nil, fmt.Errorf("create runner workdir: %w", err)
	}
	if err := CopyDirectoryContentOnly(cfg.RootPath, work); err != nil {
		return nil, fmt.Errorf("copy root into runner workdir: %w", err)
	}

	var paths []string
	files := make(map[string]*fileInfo)
	err = filepathWalkFiles(work, func(rel string) {
		if cfg.FileFilter != nil && !cfg.FileFilter(rel) {
			return
		}
		paths = append(paths, rel)
		files[rel] = newFileInfo()
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate files: %w", err)
	}
	sort.Strings(paths)

	logger := cfg.Logger
	if logger == nil {
		logger = NewLogger(false, false)
	}

	r := &Runner{
		rootDir: work,
		paths:   paths,
		files:   files,
		passes:  passes,
		test:    test,
		cancel:  NewCancelBroadcast(),
		rng:     rand.New(rand.NewSource(cfg.RandomSeed)),
		log:     NewRunnerLog(!cfg.ShowProgress),
		logger:  logger,
	}

	if cfg.SnapshotDir != "" {
		sm, err := NewSnapshotManager(cfg.SnapshotDir, cfg.SnapshotInterval, cfg.MaxSnapshots, cfg.Resume)
		if err != nil {
			return nil, err
		}
		r.snapshot = sm
	}

	if !cfg.DoNotValidateInput {
		ok, err := r.validateInitiallyInteresting()
		if err != nil {
			return nil, fmt.Errorf("initial interestingness check: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("root_path does not satisfy the interestingness test before any reduction")
		}
	}

	r.cancel.InstallSignalHandler()

	if err := r.spawnWorkers(cfg.Jobs, cfg.ShowProgress); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Runner) validateInitiallyInteresting() (bool, error) {
	verdict, err := r.test.TestInteresting(context.Background(), r.rootDir, r.cancel.C(), "initial-check", 0)
	if err != nil {
		return false, err
	}
	return verdict == InterestingResult, nil
}

// spawnWorkers populates every Worker sandbox concurrently. Grounded
// on pkg/cowgit/cow_pool.go's AtomicClonePool, which fans its initial
// clone batch out across goroutines rather than cloning serially;
// golang.org/x/sync/errgroup replaces the teacher's hand-rolled
// sync.WaitGroup-plus-error-channel for the same fan-out-then-join
// shape.
func (r *Runner) spawnWorkers(n int, showProgress bool) error {
	if n < 1 {
		n = 1
	}
	r.workers = make([]*Worker, n)
	r.lines = make([]*WorkerProgressLine, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		idx := i
		g.Go(func() error {
			return r.respawnWorkerAt(idx, showProgress)
		})
	}
	return g.Wait()
}

func (r *Runner) respawnWorkerAt(idx int, showProgress bool) error {
	root, err := os.MkdirTemp("", fmt.Sprintf("tsreduce-worker-%d-", idx))
	if err != nil {
		return fmt.Errorf("create worker %d sandbox: %w", idx, err)
	}
	if err := CopyDirectoryContentOnly(r.rootDir, filepath.Join(root, "workdir")); err != nil {
		return fmt.Errorf("populate worker %d sandbox: %w", idx, err)
	}

	line := NewWorkerProgressLine(idx, showProgress && isTerminal())
	w, err := NewWorker(idx, root, r.test, line)
	if err != nil {
		return err
	}
	r.workers[idx] = w
	r.lines[idx] = line
	return nil
}

// Run executes the main scheduling loop until a cancel signal is
// observed (it then kills every Worker and returns a nil error) or a
// snapshot, promotion or respawn fails. It returns the number of
// successful reductions applied.
func (r *Runner) Run() (int, error) {
	if len(r.paths) == 0 {
		return 0, fmt.Errorf("no files to reduce")
	}

	busy := make([]bool, len(r.workers))

	assignAll := func() {
		for i, w := range r.workers {
			if busy[i] {
				continue
			}
			job := r.nextJob()
			busy[i] = true
			w.Submit(job)
		}
	}

	assignAll()

	// reductions already covered by a snapshot
	snapshotAt := 0

	for {
		select {
		case <-r.cancel.C():
			r.log.Interrupted()
			r.killAll()
			return r.reducedCount, nil
		default:
		}

		if r.snapshot != nil && r.reducedCount > snapshotAt && r.snapshot.Due(nowStamp()) {
			name, err := r.snapshot.Take(r.rootDir, nowStamp())
			if err != nil {
				return r.reducedCount, err
			}
			snapshotAt = r.reducedCount
			if err := r.test.CleanupSnapshot(r.snapshot.Path(name)); err != nil {
				return r.reducedCount, err
			}
		}

		progressed := false
		for i := range r.workers {
			select {
			case res := <-r.workers[i].Results():
				progressed = true
				busy[i] = false
				if err := r.handleResult(i, res); err != nil {
					return r.reducedCount, err
				}
				if res.Err == nil && res.Status.Kind == Reduced {
					// promote respawned every Worker, so none of
					// them holds a Job any more.
					for j := range busy {
						busy[j] = false
					}
					assignAll()
				}
				// handleResult may have replaced or respawned the
				// worker at i (promote, replaceWorker); re-fetch it
				// before dispatching the next Job.
				if !busy[i] {
					job := r.nextJob()
					busy[i] = true
					r.workers[i].Submit(job)
				}
			default:
			}
		}

		if !progressed {
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// handleResult applies spec.md §4.5's per-status semantics: a fatal
// Worker error replaces that Worker outright; Reduced triggers
// promotion of the reporting Worker's sandbox to authoritative status
// and respawn of every Worker; DidNotReduce lowers the file's
// success-rate EMA; PassFailed and Interrupted leave it untouched.
func (r *Runner) handleResult(workerIdx int, res JobResult) error {
	if res.Err != nil {
		r.log.WorkerDied(workerIdx, res.Err)
		return r.replaceWorker(workerIdx)
	}

	fi := r.files[res.Job.Path]
	if fi == nil {
		fi = newFileInfo()
		r.files[res.Job.Path] = fi
	}

	r.logger.Log(context.Background(), statusLevel(res.Status.Kind), res.Status.String(),
		"path", res.Job.Path, "pass", res.Job.Pass.Name(), "worker", workerIdx)

	switch res.Status.Kind {
	case Reduced:
		fi.recordSuccess()
		r.reducedCount++
		r.log.Reduced(res.Job.Path, res.Job.Pass.Name(), res.Status.Description)
		return r.promote(workerIdx)
	case DidNotReduce:
		fi.recordFail()
	case PassFailed:
		// leave counters untouched: the pass could not apply to this
		// file at all, which says nothing about the file's own
		// reducibility.
	case Interrupted:
		// no EMA update: the attempt was abandoned, not judged.
	}
	return nil
}

// replaceWorker tears down the Worker at idx after a fatal error and
// respawns a fresh one in the same slot. The old progress line is
// closed and the new Worker gets a newly created line with the same
// visibility setting; the old line object is not reused.
func (r *Runner) replaceWorker(idx int) error {
	r.workers[idx].Kill()
	_ = os.RemoveAll(r.workers[idx].Rootdir())
	show := r.lines[idx].show
	r.lines[idx].Close()
	return r.respawnWorkerAt(idx, show)
}

// promote replaces the Runner's authoritative tree with Worker w's
// sandbox contents, then kills and respawns every Worker (the winner
// included) so their sandboxes start fresh from the new tree. Grounded on spec.md
// §4.5.1's promotion algorithm and on pkg/cowgit/cow_pool.go's pattern
// of tearing down and relaunching a batch of pool workers after a
// generation boundary.
func (r *Runner) promote(winner int) error {
	newRoot := r.workers[winner].Workdir()

	old := r.rootDir
	fresh, err := os.MkdirTemp("", "tsreduce-runner-")
	if err != nil {
		return fmt.Errorf("promote: create new runner workdir: %w", err)
	}
	if err := CopyDirectoryContentOnly(newRoot, fresh); err != nil {
		return fmt.Errorf("promote: copy winning tree: %w", err)
	}
	r.rootDir = fresh
	_ = os.RemoveAll(old)
	_ = os.RemoveAll(r.workers[winner].Rootdir())

	for i, w := range r.workers {
		w.Kill()
		r.lines[i].Close()
	}

	var g errgroup.Group
	for i := range r.workers {
		idx := i
		show := r.lines[idx].show
		g.Go(func() error {
			if err := r.respawnWorkerAt(idx, show); err != nil {
				return fmt.Errorf("promote: respawn worker %d: %w", idx, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) killAll() {
	for i, w := range r.workers {
		w.Kill()
		r.lines[i].Close()
		_ = os.RemoveAll(w.Rootdir())
	}
}

// nextJob picks a path uniformly at random and a pass uniformly at
// random, per spec.md §4.5's scheduling policy ("pick a file: uniform
// over the file table ... pick a pass: uniform over the pass list").
// recent_success_rate rides along on the Job only as a hint field; it
// never biases selection itself.
func (r *Runner) nextJob() Job {
	path := r.pickPath()
	pass := r.passes[r.rng.Intn(len(r.passes))]
	return Job{
		Path:            path,
		Pass:            pass,
		Seed:            r.rng.Uint64(),
		SuccessRateHint: r.files[path].recentSuccessRate,
	}
}

// pickPath draws a path uniformly at random from r.paths.
func (r *Runner) pickPath() string {
	return r.paths[r.rng.Intn(len(r.paths))]
}

func filepathWalkFiles(root string, fn func(rel string)) error {
	return walk(root, root, fn)
}

func walk(root, dir string, fn func(rel string)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if err := walk(root, full, fn); err != nil {
				return err
			}
			continue
		}
		rel, err := filepath.Rel(root, full)
		if err != nil {
			return err
		}
		fn(rel)
	}
	return nil
}

// nowStamp exists so Runner.Run's time source is a single call site;
// tests substitute a fixed clock by constructing a SnapshotManager
// directly rather than through Runner.
func nowStamp() time.Time { return time.Now() }
