package camera

import (
	"github.com/hugo-lorenzo-mato/camshot/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/camshot/internal/resolver"
)

// Driver names accepted by SelectDevice.
const (
	DriverAuto   = "auto"
	DriverFFmpeg = "ffmpeg"
	DriverV4L2   = "v4l2"
)

// BackendOptions selects and configures a capture backend.
type BackendOptions struct {
	Driver     string
	Resolution resolver.Resolution
	Exec       *diagnostics.SafeExecutor
	Width      int
	Height     int
}

// SelectDevice picks the backend for driver. auto prefers ffmpeg when it
// resolved, then the native backend, then a stub carrying the reason.
func SelectDevice(opts BackendOptions) Device {
	exec := opts.Exec
	if exec == nil {
		exec = diagnostics.NewSafeExecutor(nil)
	}
	ffmpeg := func() Device {
		if opts.Resolution.Resolved() {
			return NewFFmpegDevice(opts.Resolution.Path, exec, opts.Width, opts.Height)
		}
		return NewStubDevice(opts.Resolution.Reason)
	}

	switch opts.Driver {
	case DriverFFmpeg:
		return ffmpeg()
	case DriverV4L2:
		return NewV4L2Device(opts.Width, opts.Height)
	default:
		if opts.Resolution.Resolved() || !V4L2Available {
			return ffmpeg()
		}
		return NewV4L2Device(opts.Width, opts.Height)
	}
}
