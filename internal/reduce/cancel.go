package reduce

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// CancelBroadcast is a single bounded channel that a signal handler
// feeds and that the Runner reads from (in its main loop and in the
// initial interestingness check). It is not an ownership relation: the
// sender lives in the signal handler; Workers do not read it, they
// observe cancellation through their own kill channels. Capacity 3 matches spec.md
// §5: one cancel per signal, up to two escalations before the handler
// gives up and panics.
type CancelBroadcast struct {
	ch   chan struct{}
	once sync.Once
}

// NewCancelBroadcast constructs an unarmed broadcast channel.
func NewCancelBroadcast() *CancelBroadcast {
	return &CancelBroadcast{ch: make(chan struct{}, 3)}
}

// C returns the receive end. Each buffered signal is delivered to
// exactly one reader; once drained by one reader a given
// signal is gone, so in practice exactly one long-lived consumer (the
// Runner) drains it and re-broadcasts to Workers via their own kill
// channels.
func (c *CancelBroadcast) C() <-chan struct{} { return c.ch }

// push performs a non-blocking send, dropping the signal rather than
// blocking the handler if the channel is saturated. Grounded on
// joeycumines-go-utilpkg/prompt/signal_common.go's nonBlockingSend.
func (c *CancelBroadcast) push() {
	select {
	case c.ch <- struct{}{}:
	default:
	}
}

// Trigger pushes a synthetic cancel signal, bypassing the OS signal
// handler. Intended for tests.
func (c *CancelBroadcast) Trigger() { c.push() }

// Pending reports how many unconsumed cancel signals are buffered
// (used by tests to check how many signals the buffer holds without
// sending real OS signals).
func (c *CancelBroadcast) Pending() int { return len(c.ch) }

// InstallSignalHandler wires SIGINT/SIGTERM into the broadcast channel.
// The first two signals are pushed into the channel; the third signal
// received panics the process, whether or not the earlier ones were
// consumed — a last-resort escape
// hatch for a core that has deadlocked and stopped draining its own
// cancel channel. Installation happens once per process, mirroring the
// teacher's sync.Once-gated setupSignalHandler in
// pkg/cowgit/benchmark_test.go.
func (c *CancelBroadcast) InstallSignalHandler() {
	c.once.Do(func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			received := 0
			for range sigCh {
				received++
				if received >= 3 {
					panic("reduce: received a third interrupt signal; core appears deadlocked")
				}
				c.push()
			}
		}()
	})
}
