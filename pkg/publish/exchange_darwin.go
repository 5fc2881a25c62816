//go:build darwin

package publish

import (
	"errors"

	"golang.org/x/sys/unix"
)

// exchange atomically swaps the directory entries a and b.
func exchange(a, b string) error {
	return unix.RenamexNp(a, b, unix.RENAME_SWAP)
}

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
