package reduce

import (
	"log/slog"
	"os"
)

// LevelTrace sits one notch below slog.LevelDebug, the standard
// extension point for a level slog doesn't define natively. spec.md
// §7's five-level taxonomy needs a "quieter than debug" tier for
// DidNotReduce results, which are by far the most frequent event in a
// long run and too noisy even for -v.
const LevelTrace = slog.Level(-8)

// NewLogger builds the process-wide structured logger. verbose selects
// slog.LevelDebug; trace additionally selects LevelTrace. Both default
// to slog.LevelInfo, matching the one-line-per-reduction,
// one-line-per-snapshot default verbosity spec.md §7 describes.
func NewLogger(verbose, trace bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case trace:
		level = LevelTrace
	case verbose:
		level = slog.LevelDebug
	}

	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	})
	return slog.New(h)
}

// statusLevel maps a JobStatus.Kind onto the slog level spec.md §7
// assigns it: Reduced and Interrupted are both worth a line at default
// verbosity (Reduced as Info, Interrupted as Warn); PassFailed is
// Debug; DidNotReduce — the overwhelming majority of results in any
// run — is the dedicated Trace level.
func statusLevel(kind StatusKind) slog.Level {
	switch kind {
	case Reduced:
		return slog.LevelInfo
	case Interrupted:
		return slog.LevelWarn
	case PassFailed:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}
