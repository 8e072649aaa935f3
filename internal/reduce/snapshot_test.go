package reduce

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSnapshotManagerRefusesNonEmptyWithoutResume(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "stray"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed stray file: %v", err)
	}

	if _, err := NewSnapshotManager(dir, time.Second, 10, false); err == nil {
		t.Fatal("expected error for non-empty snapshot directory without --resume")
	}

	if _, err := NewSnapshotManager(dir, time.Second, 10, true); err != nil {
		t.Fatalf("expected --resume to permit a non-empty directory, got %v", err)
	}
}

func TestSnapshotManagerTakeAndPrune(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("v1"), 0o644); err != nil {
		t.Fatalf("seed source: %v", err)
	}

	dir := t.TempDir()
	sm, err := NewSnapshotManager(dir, 0, 2, false)
	if err != nil {
		t.Fatalf("NewSnapshotManager: %v", err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := sm.Take(src, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Take #%d: %v", i, err)
		}
	}

	names, err := sm.list()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 retained snapshots after pruning, got %d: %v", len(names), names)
	}

	latest, ok, err := sm.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !ok {
		t.Fatal("expected a latest snapshot to exist")
	}
	if latest != names[len(names)-1] {
		t.Fatalf("Latest() = %q, want %q", latest, names[len(names)-1])
	}
}

func TestSnapshotManagerDue(t *testing.T) {
	sm, err := NewSnapshotManager(t.TempDir(), time.Minute, 10, false)
	if err != nil {
		t.Fatalf("NewSnapshotManager: %v", err)
	}

	now := time.Now()
	if !sm.Due(now) {
		t.Fatal("expected Due to be true before any snapshot has been taken")
	}

	sm.last = now
	if sm.Due(now.Add(30 * time.Second)) {
		t.Fatal("expected Due to be false before the interval elapses")
	}
	if !sm.Due(now.Add(90 * time.Second)) {
		t.Fatal("expected Due to be true after the interval elapses")
	}
}

func TestSnapshotManagerDueAlwaysWithZeroInterval(t *testing.T) {
	sm, err := NewSnapshotManager(t.TempDir(), 0, 10, false)
	if err != nil {
		t.Fatalf("NewSnapshotManager: %v", err)
	}

	now := time.Now()
	if !sm.Due(now) {
		t.Fatal("expected a non-positive interval to be due immediately")
	}
	sm.last = now
	if !sm.Due(now.Add(time.Millisecond)) {
		t.Fatal("expected a non-positive interval to stay due regardless of last snapshot time")
	}
}
