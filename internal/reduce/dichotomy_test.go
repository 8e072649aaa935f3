package reduce

import (
	"context"
	"testing"
)

type nopTest struct{}

func (nopTest) TestInteresting(ctx context.Context, dir string, cancel <-chan struct{}, attemptName string, attemptID uint64) (Interesting, error) {
	return NotInteresting, nil
}
func (nopTest) CleanupSnapshot(dir string) error { return nil }

func TestDichotomyPassNoneMeansPassFailed(t *testing.T) {
	p := NewDichotomyPass(DichotomyPassFuncs{
		Name: "none-pass",
		ListAttempts: func(ctx context.Context, workdir string, job Job, cancel <-chan struct{}) (any, []Attempt, bool, error) {
			return nil, nil, false, nil
		},
	})

	status, err := p.Reduce(context.Background(), t.TempDir(), nopTest{}, Job{Path: "x"}, make(chan struct{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Kind != PassFailed {
		t.Fatalf("expected PassFailed, got %v", status.Kind)
	}
}

func TestDichotomyPassStopsAtFirstNonDidNotReduce(t *testing.T) {
	calls := 0
	p := NewDichotomyPass(DichotomyPassFuncs{
		Name: "three-attempts",
		ListAttempts: func(ctx context.Context, workdir string, job Job, cancel <-chan struct{}) (any, []Attempt, bool, error) {
			return nil, []Attempt{1, 2, 3}, true, nil
		},
		AttemptReduce: func(ctx context.Context, workdir string, test Test, attempt Attempt, attemptNumber int, job Job, parsed any, cancel <-chan struct{}) (JobStatus, error) {
			calls++
			if attempt.(int) == 2 {
				return JobStatus{Kind: Reduced}, nil
			}
			return JobStatus{Kind: DidNotReduce}, nil
		},
	})

	status, err := p.Reduce(context.Background(), t.TempDir(), nopTest{}, Job{Path: "x"}, make(chan struct{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Kind != Reduced {
		t.Fatalf("expected Reduced, got %v", status.Kind)
	}
	if calls != 2 {
		t.Fatalf("expected to stop after 2 calls, got %d", calls)
	}
}

func TestDichotomyPassAllDidNotReduce(t *testing.T) {
	p := NewDichotomyPass(DichotomyPassFuncs{
		Name: "all-fail",
		ListAttempts: func(ctx context.Context, workdir string, job Job, cancel <-chan struct{}) (any, []Attempt, bool, error) {
			return nil, []Attempt{1, 2}, true, nil
		},
		AttemptReduce: func(ctx context.Context, workdir string, test Test, attempt Attempt, attemptNumber int, job Job, parsed any, cancel <-chan struct{}) (JobStatus, error) {
			return JobStatus{Kind: DidNotReduce}, nil
		},
	})

	status, err := p.Reduce(context.Background(), t.TempDir(), nopTest{}, Job{Path: "x"}, make(chan struct{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Kind != DidNotReduce {
		t.Fatalf("expected DidNotReduce, got %v", status.Kind)
	}
}

func TestDichotomyPassHashStable(t *testing.T) {
	p1 := NewDichotomyPass(DichotomyPassFuncs{Name: "x", HashSeed: 9})
	p2 := NewDichotomyPass(DichotomyPassFuncs{Name: "x", HashSeed: 9})
	if p1.Hash() != p2.Hash() {
		t.Fatalf("identically-configured passes hashed differently")
	}

	p3 := NewDichotomyPass(DichotomyPassFuncs{Name: "x", HashSeed: 10})
	if p1.Hash() == p3.Hash() {
		t.Fatalf("differently-seeded passes hashed the same")
	}
}
