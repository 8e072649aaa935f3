package reduce

import (
	"context"
	"hash/fnv"
)

// Attempt is one concrete candidate edit inside a DichotomyPass
// invocation. It is an opaque value owned by the DichotomyPass'
// DichotomyPassFuncs hooks; the adapter only orders and counts them.
type Attempt any

// DichotomyPassFuncs is the pair of hooks a caller supplies to get a
// full Pass out of the "largest reduction first" skeleton described in
// spec.md's DichotomyPass adapter. ListAttempts parses the file exactly
// once and returns both the parsed artifact (passed back into
// AttemptReduce so it need not reparse) and an ordered sequence of
// attempts, largest-reducing first. A nil slice (with ok=false) means
// the pass does not apply to this input.
type DichotomyPassFuncs struct {
	Name         string
	HashSeed     uint64
	ListAttempts func(ctx context.Context, workdir string, job Job, cancel <-chan struct{}) (parsed any, attempts []Attempt, ok bool, err error)
	AttemptReduce func(ctx context.Context, workdir string, test Test, attempt Attempt, attemptNumber int, job Job, parsed any, cancel <-chan struct{}) (JobStatus, error)
}

// DichotomyPass adapts a ListAttempts/AttemptReduce pair into a full
// Pass: it calls ListAttempts once, then iterates the returned attempts
// in order, returning the first non-DidNotReduce result. If every
// attempt reports DidNotReduce, the adapter itself reports
// DidNotReduce. If ListAttempts reports ok=false, the adapter reports
// PassFailed.
type DichotomyPass struct {
	funcs DichotomyPassFuncs
}

// NewDichotomyPass builds a Pass from a DichotomyPassFuncs.
func NewDichotomyPass(funcs DichotomyPassFuncs) *DichotomyPass {
	return &DichotomyPass{funcs: funcs}
}

func (d *DichotomyPass) Name() string { return d.funcs.Name }

func (d *DichotomyPass) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(d.funcs.Name))
	var buf [8]byte
	putUint64(buf[:], d.funcs.HashSeed)
	h.Write(buf[:])
	return h.Sum64()
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func (d *DichotomyPass) Reduce(ctx context.Context, workdir string, test Test, job Job, cancel <-chan struct{}) (JobStatus, error) {
	select {
	case <-cancel:
		return JobStatus{Kind: Interrupted}, nil
	default:
	}

	parsed, attempts, ok, err := d.funcs.ListAttempts(ctx, workdir, job, cancel)
	if err != nil {
		return JobStatus{}, err
	}
	if !ok {
		return JobStatus{Kind: PassFailed, Description: "pass does not apply to this input"}, nil
	}

	for i, attempt := range attempts {
		select {
		case <-cancel:
			return JobStatus{Kind: Interrupted}, nil
		default:
		}

		status, err := d.funcs.AttemptReduce(ctx, workdir, test, attempt, i+1, job, parsed, cancel)
		if err != nil {
			return JobStatus{}, err
		}
		if status.Kind != DidNotReduce {
			return status, nil
		}
	}

	return JobStatus{Kind: DidNotReduce}, nil
}
