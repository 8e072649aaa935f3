// Package reduce implements the parallel, tree-sitter-aware test-case
// minimizer: the Job/Pass/Test contracts, the Worker sandbox, and the
// Runner that schedules Jobs onto Workers and promotes successful
// reductions.
package reduce

import (
	"fmt"
	"hash/fnv"
)

// Job is an immutable description of one scheduled reduction attempt.
// It is constructed once by the Runner, handed to exactly one Worker,
// and discarded after the matching JobResult is read.
type Job struct {
	Path             string // relative to the working directory
	Pass             Pass
	Seed             uint64
	SuccessRateHint  uint8 // recent_success_rate of Path at schedule time
}

// Hash returns a deterministic 64-bit fingerprint of the Job, derived
// from its (pass, path, seed, success-rate) tuple. It never observes
// non-deterministic pass state (closures, parser handles) and is used
// to label attempts in progress output and debug logs.
func (j Job) Hash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s|%d|%d", j.Pass.Hash(), j.Path, j.Seed, j.SuccessRateHint)
	return h.Sum64()
}

func (j Job) String() string {
	return fmt.Sprintf("Job{path=%s pass=%s seed=%d rate=%d}", j.Path, j.Pass.Name(), j.Seed, j.SuccessRateHint)
}

// StatusKind enumerates the four possible outcomes of a Job.
type StatusKind int

const (
	// Reduced means the test reported Interesting after some edit; the
	// Worker's sandbox is the authoritative new state.
	Reduced StatusKind = iota
	// DidNotReduce means no attempt was Interesting; the file is
	// restored to its original contents.
	DidNotReduce
	// PassFailed means the pass cannot apply to this input.
	PassFailed
	// Interrupted means the pass observed a cancel signal mid-attempt.
	Interrupted
)

func (k StatusKind) String() string {
	switch k {
	case Reduced:
		return "Reduced"
	case DidNotReduce:
		return "DidNotReduce"
	case PassFailed:
		return "PassFailed"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown"
	}
}

// JobStatus carries the outcome of a Job along with a human-readable
// description (used for Reduced and PassFailed, where the pass has
// something specific to say about what it did or why it gave up).
type JobStatus struct {
	Kind        StatusKind
	Description string
}

func (s JobStatus) String() string {
	if s.Description == "" {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.Description)
}

// JobResult is the envelope a Worker returns for a Job: either a
// JobStatus, or a fatal error meaning the Worker's sandbox is corrupted
// beyond repair and the Worker must be scrapped.
type JobResult struct {
	Job    Job
	Status JobStatus
	Err    error
}

// fileInfo tracks the recent success rate of reductions attempted
// against one file. recent_success_rate is an 8-bit exponential moving
// average seeded at 127 (the spec's "coin flip" prior).
type fileInfo struct {
	recentSuccessRate uint8
}

func newFileInfo() *fileInfo {
	return &fileInfo{recentSuccessRate: 127}
}

// recordSuccess updates the EMA for a reducing Job: r <- (9r + 255) / 10.
func (f *fileInfo) recordSuccess() {
	r := uint32(f.recentSuccessRate)
	f.recentSuccessRate = uint8((9*r + 255) / 10)
}

// recordFail updates the EMA for a non-reducing Job: r <- 9r / 10.
func (f *fileInfo) recordFail() {
	r := uint32(f.recentSuccessRate)
	f.recentSuccessRate = uint8(9 * r / 10)
}
