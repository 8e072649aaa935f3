package reduce

import "context"

// Pass is the contract every reducer implements. A Pass edits only
// workdir/<job.Path>; it may read any other file to inform its attempt
// but must never mutate them. Implementations must be safe for
// concurrent invocation from multiple Workers and must be deterministic
// with respect to job.Seed.
type Pass interface {
	// Reduce attempts to shrink workdir/<job.Path>, calling test zero or
	// more times. cancel fires at most once; a Pass observing it must
	// restore the file to its pre-call contents before returning
	// Interrupted.
	Reduce(ctx context.Context, workdir string, test Test, job Job, cancel <-chan struct{}) (JobStatus, error)

	// Name returns a short, stable, human-readable identifier used in
	// progress output and logs.
	Name() string

	// Hash returns a stable 64-bit fingerprint distinguishing this Pass
	// from any other differently-configured Pass of the same type. It
	// must not depend on non-deterministic or unhashable state such as
	// closures or parser handles.
	Hash() uint64
}

// Interesting is the verdict of an interestingness test.
type Interesting int

const (
	// NotInteresting means the directory no longer exhibits the
	// property under test.
	NotInteresting Interesting = iota
	// InterestingResult means the directory still exhibits it.
	InterestingResult
	// InterruptedResult means a cancel signal arrived before the test
	// produced a verdict.
	InterruptedResult
)

// Test is the external judge a Pass consults to decide whether an edit
// is worth keeping. attemptName and attemptID exist purely for
// observability: the Worker's wrapper uses them to update its progress
// line, and implementations may use them for dedup logs.
type Test interface {
	TestInteresting(ctx context.Context, dir string, cancel <-chan struct{}, attemptName string, attemptID uint64) (Interesting, error)

	// CleanupSnapshot lets the Test strip build artifacts or other
	// non-reproducible state out of a just-written snapshot directory.
	CleanupSnapshot(dir string) error
}
