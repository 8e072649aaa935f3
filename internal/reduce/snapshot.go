package reduce

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SnapshotManager periodically materializes a full copy of the
// Runner's authoritative tree under a snapshot directory, and prunes
// old snapshots beyond a retention count. Grounded on
// pkg/cowgit/manager.go's Manager.Create (timestamped directory
// naming, copy-then-register sequence) and pkg/cowgit/worktree.go's
// ListWorktrees (enumerate-and-sort-by-name directory listing),
// generalized from "one worktree per branch" to "one snapshot per
// elapsed interval, oldest pruned first".
type SnapshotManager struct {
	dir      string
	interval time.Duration
	maxKeep  int
	last     time.Time
}

// NewSnapshotManager prepares dir to receive snapshots. If resume is
// false, dir must be empty (or not exist yet) — spec.md §6's
// `--resume` flag is the only sanctioned way to point tsreduce at a
// snapshot directory that already has content.
func NewSnapshotManager(dir string, interval time.Duration, maxKeep int, resume bool) (*SnapshotManager, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read snapshot directory: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot directory: %w", err)
		}
		entries = nil
	}

	if len(entries) > 0 && !resume {
		return nil, fmt.Errorf("snapshot directory %s is not empty; pass --resume to continue from it", dir)
	}

	return &SnapshotManager{dir: dir, interval: interval, maxKeep: maxKeep}, nil
}

// Due reports whether enough time has elapsed since the last snapshot
// to take another; before the first snapshot it is always due. A
// non-positive interval disables coalescing entirely: every reducing
// Job is due for a snapshot.
func (m *SnapshotManager) Due(now time.Time) bool {
	if m.interval <= 0 {
		return true
	}
	return m.last.IsZero() || now.Sub(m.last) >= m.interval
}

// Take copies src (the Runner's authoritative workdir) into a new
// timestamped subdirectory of dir, then prunes snapshots beyond
// maxKeep, oldest first. Returns the new snapshot's directory name.
// Names follow spec.md §6's `YYYY-MM-DD-HH-MM-SS-mmm` layout, e.g.
// "2026-07-30-15-30-45-123".
func (m *SnapshotManager) Take(src string, now time.Time) (string, error) {
	name := snapshotName(now)
	dst := filepath.Join(m.dir, name)

	if err := CopyDirectoryContentOnly(src, dst); err != nil {
		return "", fmt.Errorf("take snapshot: %w", err)
	}
	m.last = now

	if err := m.prune(); err != nil {
		return name, err
	}
	return name, nil
}

func (m *SnapshotManager) prune() error {
	if m.maxKeep <= 0 {
		return nil
	}
	names, err := m.list()
	if err != nil {
		return err
	}
	if len(names) <= m.maxKeep {
		return nil
	}
	for _, old := range names[:len(names)-m.maxKeep] {
		if err := os.RemoveAll(filepath.Join(m.dir, old)); err != nil {
			return fmt.Errorf("prune snapshot %s: %w", old, err)
		}
	}
	return nil
}

// list returns snapshot directory names in ascending (oldest-first)
// order. The timestamped naming scheme sorts lexically the same as
// chronologically, so a plain string sort suffices.
func (m *SnapshotManager) list() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && looksLikeSnapshotName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Latest returns the most recently taken snapshot's directory name,
// used to resolve `--resume` to a concrete starting tree.
func (m *SnapshotManager) Latest() (string, bool, error) {
	names, err := m.list()
	if err != nil {
		return "", false, err
	}
	if len(names) == 0 {
		return "", false, nil
	}
	return names[len(names)-1], true, nil
}

// Path returns the full filesystem path of the named snapshot.
func (m *SnapshotManager) Path(name string) string {
	return filepath.Join(m.dir, name)
}

// snapshotName renders now as spec.md §6's "YYYY-MM-DD-HH-MM-SS-mmm"
// layout: dashes between every component, milliseconds zero-padded to
// three digits.
func snapshotName(now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("%s-%03d", now.Format("2006-01-02-15-04-05"), now.Nanosecond()/1e6)
}

// looksLikeSnapshotName approximates the timestamp format Take
// produces (six dash-separated numeric fields followed by a dash and a
// three-digit millisecond field) by checking only that name has
// exactly six dashes and no dot; the fields themselves are not
// checked. It is used defensively when
// listing so stray non-snapshot entries in the directory (e.g. a
// README a user dropped in) are not mistaken for resumable state.
func looksLikeSnapshotName(name string) bool {
	return strings.Count(name, "-") == 6 && !strings.Contains(name, ".")
}
