//go:build !linux && !darwin

package publish

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// exchange swaps a and b with two renames. There is a short window in
// which b does not exist; readers see a miss rather than a mixed tree.
func exchange(a, b string) error {
	tmp := b + ".swap"
	if err := os.Rename(b, tmp); err != nil {
		return err
	}
	if err := os.Rename(a, b); err != nil {
		if rerr := os.Rename(tmp, b); rerr != nil {
			return fmt.Errorf("%w (restore failed: %v)", err, rerr)
		}
		return err
	}
	return os.Rename(tmp, a)
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}
