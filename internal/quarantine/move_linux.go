//go:build linux

package quarantine

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func move(src, dst string) error {
	err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_NOREPLACE)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EEXIST):
		return &CollisionError{Source: src, Dest: dst}
	case errors.Is(err, unix.EXDEV):
		return copyMove(src, dst)
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.ENOSYS):
		// Filesystem without RENAME_NOREPLACE support.
		return linkMove(src, dst)
	default:
		return fmt.Errorf("rename %s: %w", src, err)
	}
}

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
