//go:build linux && cgo

package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
)

// V4L2Available reports whether the native backend is compiled in.
const V4L2Available = true

// Default stream size when none is configured.
const (
	defaultV4L2Width  = 640
	defaultV4L2Height = 480
)

// V4L2Device streams MJPEG frames straight from the kernel driver.
type V4L2Device struct {
	width  uint32
	height uint32
}

// NewV4L2Device creates a native backend.
func NewV4L2Device(width, height int) Device {
	d := &V4L2Device{width: defaultV4L2Width, height: defaultV4L2Height}
	if width > 0 && height > 0 {
		d.width, d.height = uint32(width), uint32(height)
	}
	return d
}

type v4l2Handle struct {
	index  int
	cam    *device.Device
	cancel context.CancelFunc
	once   sync.Once
}

func (h *v4l2Handle) Index() int { return h.index }

func (d *V4L2Device) Name() string { return "v4l2" }

func (d *V4L2Device) Open(ctx context.Context, index int) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/dev/video%d", index)
	cam, err := device.Open(path,
		device.WithBufferSize(1),
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: v4l2.PixelFmtMJPEG,
			Width:       d.width,
			Height:      d.height,
		}),
	)
	if err != nil {
		return nil, classifyErrno(path, err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	h := &v4l2Handle{index: index, cam: cam, cancel: cancel}
	if err := cam.Start(streamCtx); err != nil {
		// The partial handle is released by the session.
		return h, classifyErrno(path, err)
	}
	return h, nil
}

func (d *V4L2Device) Read(ctx context.Context, h Handle) ([]byte, error) {
	vh, ok := h.(*v4l2Handle)
	if !ok || vh == nil {
		return nil, errors.New("v4l2: invalid handle")
	}
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for frame: %w", ctx.Err())
	case frame, ok := <-vh.cam.GetOutput():
		if !ok {
			return nil, errors.New("v4l2: stream closed")
		}
		// The driver buffer is reused for the next frame.
		return append([]byte(nil), frame...), nil
	}
}

func (d *V4L2Device) Release(h Handle) error {
	vh, ok := h.(*v4l2Handle)
	if !ok || vh == nil {
		return nil
	}
	var err error
	vh.once.Do(func() {
		vh.cancel()
		err = vh.cam.Close()
	})
	return err
}

func classifyErrno(path string, err error) error {
	switch {
	case errors.Is(err, syscall.EBUSY), strings.Contains(strings.ToLower(err.Error()), "busy"):
		return fmt.Errorf("%w: %s: %v", ErrBusy, path, err)
	case errors.Is(err, syscall.ENOMEM):
		return fmt.Errorf("%w: %s: %v", ErrMemoryExhausted, path, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrNoCamera, path, err)
}
