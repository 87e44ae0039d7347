package analysis

import (
	"fmt"
	"time"
)

// HardTimeoutError is synthesized locally when the hard timeout fires with
// no content received.
type HardTimeoutError struct {
	Timeout time.Duration
}

func (e *HardTimeoutError) Error() string {
	return fmt.Sprintf("analysis timed out: no content received within %s", e.Timeout)
}
