//go:build !(linux && cgo)

package camera

// V4L2Available reports whether the native backend is compiled in.
const V4L2Available = false

// NewV4L2Device returns a stub on builds without the native backend.
func NewV4L2Device(int, int) Device {
	return NewStubDevice("v4l2 backend requires linux with cgo")
}
