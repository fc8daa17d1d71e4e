// Package testutil provides shared helpers for tests that wait on workers and
// servers running in other goroutines.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeouts.
const (
	// DefaultTestTimeout bounds waits on goroutines that should finish promptly
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout is for in-process work such as a single analysis pass
	ShortTestTimeout = 1 * time.Second
)

// WaitForChannel waits for ch to be closed or signalled, failing the test
// after timeout.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	Receive(t, ch, timeout, msg)
}

// Receive returns the next value from ch, failing the test after timeout.
func Receive[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v
	case <-timer.C:
		require.FailNow(t, msg)
	}
	var zero T
	return zero
}
