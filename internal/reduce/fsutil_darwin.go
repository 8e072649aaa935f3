package reduce

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// tryReflink attempts a copy-on-write clone of a single file via the
// APFS clonefile(2) syscall. Grounded on pkg/cowgit/cow.go's
// cloneDirectoryAPFS, narrowed from whole-directory clone to per-file
// clone since copyPool already walks the tree itself.
func tryReflink(src, dst string) error {
	_ = os.Remove(dst)
	return unix.Clonefile(src, dst, unix.CLONE_NOFOLLOW)
}

// isAPFS reports whether path lives on an APFS filesystem. Grounded
// verbatim on pkg/cowgit/cow.go's isAPFS.
func isAPFS(path string) (bool, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return false, err
	}
	fstype := unix.ByteSliceToString((*[256]byte)(unsafe.Pointer(&stat.Fstypename[0]))[:])
	return fstype == "apfs", nil
}

// IsReflinkCapable reports whether the filesystem backing path is
// known to support cheap copy-on-write clones (on darwin: whether it
// is APFS).
func IsReflinkCapable(path string) bool {
	ok, err := isAPFS(path)
	return err == nil && ok
}
