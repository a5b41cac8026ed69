// Package camera acquires a single frame from a capture device through a
// bounded, state-machine driven session.
package camera

import (
	"context"
	"errors"
)

// Sentinel errors a Device reports so the session can classify failures.
var (
	ErrNoCamera        = errors.New("camera not found")
	ErrBusy            = errors.New("camera busy")
	ErrMemoryExhausted = errors.New("out of memory")
	ErrUnavailable     = errors.New("capture backend unavailable")
)

// Handle is an opened camera. It is owned by exactly one Session.
type Handle interface {
	Index() int
}

// Device is a capture backend. Implementations must honour ctx deadlines
// and must not leave goroutines behind once a call returns.
type Device interface {
	// Name identifies the backend in logs and reports.
	Name() string
	// Open acquires camera index. On failure it may return a partial
	// handle, which the caller still releases.
	Open(ctx context.Context, index int) (Handle, error)
	// Read returns the raw bytes of one frame.
	Read(ctx context.Context, h Handle) ([]byte, error)
	// Release frees the handle. It is idempotent and accepts nil.
	Release(h Handle) error
}
