package publish

import (
	"errors"
	"fmt"
)

// ErrSwapFailed is matched by every *SwapError.
var ErrSwapFailed = errors.New("publish swap failed")

// SwapError reports a publish that did not complete. The previously
// published tree is still in place when it is returned.
type SwapError struct {
	Root string
	Step string
	Err  error
}

func (e *SwapError) Error() string {
	return fmt.Sprintf("failed to publish %s: %s: %v", e.Root, e.Step, e.Err)
}

func (e *SwapError) Unwrap() []error {
	return []error{ErrSwapFailed, e.Err}
}
