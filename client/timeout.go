package client

import (
	"sync/atomic"
	"time"
)

// defaultTimeoutSeconds is the process-wide default applied to connect,
// DIMSE, and association-establishment deadlines of clients constructed
// without explicit timeouts. Set once at startup (e.g. from config) and read
// at client construction, not on every operation.
var defaultTimeoutSeconds atomic.Int64

func init() {
	defaultTimeoutSeconds.Store(10)
}

// SetDefaultTimeout changes the process-wide default timeout consulted when
// a Config leaves its timeout fields zero. A zero duration disables
// timeouts for subsequently constructed clients.
func SetDefaultTimeout(d time.Duration) {
	defaultTimeoutSeconds.Store(int64(d / time.Second))
}

// DefaultTimeout returns the current process-wide default timeout.
func DefaultTimeout() time.Duration {
	return time.Duration(defaultTimeoutSeconds.Load()) * time.Second
}
