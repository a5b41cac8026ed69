package camera

import (
	"context"
	"fmt"
)

// StubDevice stands in for a backend whose dependency could not be
// resolved. Every Open fails with ErrUnavailable.
type StubDevice struct {
	Reason string
}

// NewStubDevice creates a stub carrying the resolution failure.
func NewStubDevice(reason string) *StubDevice {
	return &StubDevice{Reason: reason}
}

func (d *StubDevice) Name() string { return "stub" }

func (d *StubDevice) Open(context.Context, int) (Handle, error) {
	if d.Reason == "" {
		return nil, ErrUnavailable
	}
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, d.Reason)
}

func (d *StubDevice) Read(context.Context, Handle) ([]byte, error) {
	return nil, ErrUnavailable
}

func (d *StubDevice) Release(Handle) error { return nil }
