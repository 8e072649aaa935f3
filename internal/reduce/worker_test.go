package reduce

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// alwaysReduce is a Pass stub that overwrites the file with "reduced"
// and reports every Job as Reduced, used to test Worker plumbing in
// isolation from any real pass algorithm.
type alwaysReduce struct{}

func (alwaysReduce) Name() string { return "alwaysReduce" }
func (alwaysReduce) Hash() uint64 { return 1 }
func (alwaysReduce) Reduce(ctx context.Context, workdir string, test Test, job Job, cancel <-chan struct{}) (JobStatus, error) {
	if err := os.WriteFile(filepath.Join(workdir, job.Path), []byte("reduced"), 0o644); err != nil {
		return JobStatus{}, err
	}
	return JobStatus{Kind: Reduced}, nil
}

type neverReduce struct{}

func (neverReduce) Name() string { return "neverReduce" }
func (neverReduce) Hash() uint64 { return 2 }
func (neverReduce) Reduce(ctx context.Context, workdir string, test Test, job Job, cancel <-chan struct{}) (JobStatus, error) {
	if err := os.WriteFile(filepath.Join(workdir, job.Path), []byte("mutated"), 0o644); err != nil {
		return JobStatus{}, err
	}
	return JobStatus{Kind: DidNotReduce}, nil
}

func newTestWorker(t *testing.T, content string) *Worker {
	t.Helper()
	root := t.TempDir()
	workdir := filepath.Join(root, "workdir")
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		t.Fatalf("mkdir workdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workdir, "a.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("seed a.txt: %v", err)
	}

	w, err := NewWorker(0, root, nopTest{}, nil)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	t.Cleanup(func() { w.Kill() })
	return w
}

func TestWorkerRestoresOnDidNotReduce(t *testing.T) {
	w := newTestWorker(t, "original")

	w.Submit(Job{Path: "a.txt", Pass: neverReduce{}, Seed: 1})
	res := <-w.Results()

	if res.Status.Kind != DidNotReduce {
		t.Fatalf("expected DidNotReduce, got %v (err=%v)", res.Status.Kind, res.Err)
	}

	got, err := os.ReadFile(filepath.Join(w.Workdir(), "a.txt"))
	if err != nil {
		t.Fatalf("read a.txt: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("expected file restored to %q, got %q", "original", got)
	}
}

func TestWorkerKeepsChangeOnReduced(t *testing.T) {
	w := newTestWorker(t, "original")

	w.Submit(Job{Path: "a.txt", Pass: alwaysReduce{}, Seed: 1})
	res := <-w.Results()

	if res.Status.Kind != Reduced {
		t.Fatalf("expected Reduced, got %v (err=%v)", res.Status.Kind, res.Err)
	}

	got, err := os.ReadFile(filepath.Join(w.Workdir(), "a.txt"))
	if err != nil {
		t.Fatalf("read a.txt: %v", err)
	}
	if string(got) != "reduced" {
		t.Fatalf("expected reduced content kept, got %q", got)
	}
}
