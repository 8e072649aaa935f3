//go:build !darwin && !linux

package reduce

import "errors"

// tryReflink always fails on platforms with no known reflink syscall;
// CopyDirectoryContentOnly falls back to a plain byte copy per file.
func tryReflink(src, dst string) error {
	return errors.New("reflink not supported on this platform")
}

// IsReflinkCapable is always false outside darwin/linux.
func IsReflinkCapable(path string) bool { return false }
