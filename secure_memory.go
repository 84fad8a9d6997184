package deniable

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"runtime"
	"time"
)

// ConstantTimeEqual reports whether a and b are equal without leaking where
// they differ. Slices of different length compare unequal.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// WithMinimumDuration runs fn and then waits until at least d has elapsed
// since the call started, so callers observe the same latency whatever fn
// did. The wait ends early only if ctx is cancelled; fn's results are
// returned either way.
func WithMinimumDuration[T any](ctx context.Context, d time.Duration, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()

	if remaining := d - time.Since(start); remaining > 0 {
		timer := time.NewTimer(remaining)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}
	return result, err
}

// Wipe overwrites buf in several passes: zeros, ones, random bytes and zeros
// again. It is best effort; the Go runtime may have copied buf elsewhere.
func Wipe(buf []byte) {
	if len(buf) == 0 {
		return
	}
	for i := range buf {
		buf[i] = 0x00
	}
	for i := range buf {
		buf[i] = 0xFF
	}
	_, _ = rand.Read(buf)
	for i := range buf {
		buf[i] = 0x00
	}
	runtime.KeepAlive(buf)
}

// randomBytes returns n bytes from crypto/rand
func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
