// Package passes holds the two representative reduction passes:
// RemoveLines, a line-range dichotomy pass, and TreeSitterReplace, a
// structural dichotomy pass driven by a tree-sitter grammar.
package passes

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"unicode/utf8"

	"tsreduce/internal/reduce"
)

// lineRange is a half-open, 0-indexed logical line range: [start, end).
type lineRange struct {
	start, end int
}

func (r lineRange) size() int { return r.end - r.start }

// NewRemoveLines builds the RemoveLines pass described in spec.md
// §4.2: a DichotomyPass whose attempts are line ranges generated by a
// seeded random walk, tried widest-first. Grounded on the shared
// DichotomyPass adapter in internal/reduce/dichotomy.go and on
// pkg/cowgit/pathrewrite.go's isValidText for the text-validity gate.
func NewRemoveLines() reduce.Pass {
	return reduce.NewDichotomyPass(reduce.DichotomyPassFuncs{
		Name:     "RemoveLines",
		HashSeed: 0x52656d4c696e6573, // "RemLines"
		ListAttempts: func(ctx context.Context, workdir string, job reduce.Job, cancel <-chan struct{}) (any, []reduce.Attempt, bool, error) {
			return listLineAttempts(workdir, job)
		},
		AttemptReduce: func(ctx context.Context, workdir string, test reduce.Test, attempt reduce.Attempt, attemptNumber int, job reduce.Job, parsed any, cancel <-chan struct{}) (reduce.JobStatus, error) {
			return attemptRemoveLines(ctx, workdir, test, attempt.(lineRange), attemptNumber, job, parsed.(*parsedLines), cancel)
		},
	})
}

type parsedLines struct {
	lines [][]byte
}

func listLineAttempts(workdir string, job reduce.Job) (any, []reduce.Attempt, bool, error) {
	full := filepath.Join(workdir, job.Path)
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, nil, false, err
	}
	if !isValidText(data) {
		return nil, nil, false, nil
	}

	lines := splitLines(data)
	n := len(lines)
	if n == 0 {
		return nil, nil, false, nil
	}

	rng := rand.New(rand.NewSource(int64(job.Seed)))

	var ranges []lineRange
	start := rng.Intn(n)
	length := 1
	for length < n {
		ranges = append(ranges, lineRange{start: start, end: clampEnd(start+length, n)})
		start = saturatingSub(start, rng.Intn(length+1))
		length += 1 + rng.Intn(2*length)
	}
	// the walk produces ranges of non-decreasing size; reverse them so
	// the widest is tried first.
	for i, j := 0, len(ranges)-1; i < j; i, j = i+1, j-1 {
		ranges[i], ranges[j] = ranges[j], ranges[i]
	}
	ranges = append([]lineRange{{start: 0, end: n}}, ranges...)

	attempts := make([]reduce.Attempt, len(ranges))
	for i, r := range ranges {
		attempts[i] = r
	}

	return &parsedLines{lines: lines}, attempts, true, nil
}

func attemptRemoveLines(ctx context.Context, workdir string, test reduce.Test, r lineRange, attemptNumber int, job reduce.Job, parsed *parsedLines, cancel <-chan struct{}) (reduce.JobStatus, error) {
	lines := parsed.lines
	if r.start < 0 || r.end > len(lines) || r.start >= r.end {
		return reduce.JobStatus{Kind: reduce.DidNotReduce}, nil
	}

	var out bytes.Buffer
	for i, line := range lines {
		if i >= r.start && i < r.end {
			continue
		}
		out.Write(line)
		out.WriteByte('\n')
	}

	full := filepath.Join(workdir, job.Path)
	original, err := os.ReadFile(full)
	if err != nil {
		return reduce.JobStatus{}, err
	}
	if err := os.WriteFile(full, out.Bytes(), 0o644); err != nil {
		return reduce.JobStatus{}, err
	}

	attemptName := fmt.Sprintf("RemoveLines[%d..%d]", r.start, r.end)
	verdict, err := test.TestInteresting(ctx, workdir, cancel, attemptName, job.Hash()+uint64(attemptNumber))
	if err != nil {
		_ = os.WriteFile(full, original, 0o644)
		return reduce.JobStatus{}, err
	}

	switch verdict {
	case reduce.InterestingResult:
		return reduce.JobStatus{Kind: reduce.Reduced, Description: fmt.Sprintf("removed lines %d..%d", r.start, r.end)}, nil
	case reduce.InterruptedResult:
		_ = os.WriteFile(full, original, 0o644)
		return reduce.JobStatus{Kind: reduce.Interrupted}, nil
	default:
		_ = os.WriteFile(full, original, 0o644)
		return reduce.JobStatus{Kind: reduce.DidNotReduce}, nil
	}
}

func splitLines(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}
	trimmed := data
	if trimmed[len(trimmed)-1] == '\n' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if len(trimmed) == 0 {
		return [][]byte{{}}
	}
	return bytes.Split(trimmed, []byte{'\n'})
}

func clampEnd(v, max int) int {
	if v > max {
		return max
	}
	return v
}

func saturatingSub(a, b int) int {
	if b > a {
		return 0
	}
	return a - b
}

// isValidText reports whether data decodes as UTF-8 and contains no
// NUL bytes, the same binary-vs-text heuristic as
// pkg/cowgit/pathrewrite.go's isValidText.
func isValidText(data []byte) bool {
	if bytes.IndexByte(data, 0) != -1 {
		return false
	}
	return utf8.Valid(data)
}
