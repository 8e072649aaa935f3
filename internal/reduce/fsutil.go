package reduce

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
)

// copyTask is one file or directory entry to materialize from src into
// dst. Grounded on pkg/cowgit/cow_pool.go's CoWTask.
type copyTask struct {
	SrcPath string
	DstPath string
	Info    os.FileInfo
}

// copyPool is a small fixed-size worker pool that clones a directory
// tree file-by-file, trying a copy-on-write reflink per file before
// falling back to a byte copy. Adapted from pkg/cowgit/cow_pool.go's
// CoWPool: same channel/atomic-counter/worker shape, generalized from
// "APFS clonefile or bust" to "try a reflink where the OS exposes one,
// fall back silently everywhere else" since Worker sandboxes must be
// creatable on any platform spec.md targets.
type copyPool struct {
	tasks chan copyTask
	errCh chan error
	wg    sync.WaitGroup

	processed int64
}

func newCopyPool(workers int) *copyPool {
	if workers < 1 {
		workers = 1
	}
	p := &copyPool{
		tasks: make(chan copyTask, 256),
		errCh: make(chan error, 1),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *copyPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		if err := p.process(task); err != nil {
			select {
			case p.errCh <- err:
			default:
			}
			continue
		}
		atomic.AddInt64(&p.processed, 1)
	}
}

func (p *copyPool) process(task copyTask) error {
	if task.Info.IsDir() {
		return os.MkdirAll(task.DstPath, task.Info.Mode())
	}

	if err := os.MkdirAll(filepath.Dir(task.DstPath), 0o755); err != nil {
		return err
	}

	if task.Info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(task.SrcPath)
		if err != nil {
			return err
		}
		_ = os.Remove(task.DstPath)
		return os.Symlink(target, task.DstPath)
	}

	if !task.Info.Mode().IsRegular() {
		return nil // skip device files, sockets, etc.
	}

	if tryReflink(task.SrcPath, task.DstPath) == nil {
		return nil
	}
	return copyRegularFile(task.SrcPath, task.DstPath, task.Info)
}

func (p *copyPool) submit(task copyTask) { p.tasks <- task }

func (p *copyPool) close() error {
	close(p.tasks)
	p.wg.Wait()
	close(p.errCh)
	select {
	case err := <-p.errCh:
		return err
	default:
		return nil
	}
}

func copyRegularFile(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = in.WriteTo(out)
	return err
}

// CopyDirectoryContentOnly materializes a full, content-only copy of
// src at dst using a small parallel copyPool. "Content-only" means no
// extended attributes or git metadata assumptions are made: every
// worker sandbox and every snapshot is just the plain file tree.
// Grounded on pkg/cowgit/cow_pool.go's cloneDirectoryParallelFallback,
// generalized from one-shot worktree creation to "clone this tree as
// many times per second as the Runner needs to respawn Workers".
func CopyDirectoryContentOnly(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create destination %s: %w", dst, err)
	}

	pool := newCopyPool(runtime.NumCPU())

	walkErr := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		pool.submit(copyTask{SrcPath: path, DstPath: filepath.Join(dst, rel), Info: info})
		return nil
	})

	poolErr := pool.close()
	if walkErr != nil {
		return fmt.Errorf("walk %s: %w", src, walkErr)
	}
	return poolErr
}

