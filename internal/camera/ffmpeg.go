package camera

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/hugo-lorenzo-mato/camshot/internal/diagnostics"
)

// maxFrameBytes bounds the stdout captured for one frame.
const maxFrameBytes = 64 << 20

// FFmpegDevice grabs single MJPEG frames by running ffmpeg per read.
type FFmpegDevice struct {
	binary string
	exec   *diagnostics.SafeExecutor
	width  int
	height int
	goos   string
	stat   func(string) (os.FileInfo, error)
}

// NewFFmpegDevice creates an ffmpeg backend. Zero width or height lets the
// device pick its default size.
func NewFFmpegDevice(binary string, executor *diagnostics.SafeExecutor, width, height int) *FFmpegDevice {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegDevice{
		binary: binary,
		exec:   executor.WithOutputLimit(maxFrameBytes, 0),
		width:  width,
		height: height,
		goos:   runtime.GOOS,
		stat:   os.Stat,
	}
}

type ffmpegHandle struct {
	index    int
	format   string
	input    string
	mu       sync.Mutex
	released bool
}

func (h *ffmpegHandle) Index() int { return h.index }

func (d *FFmpegDevice) Name() string { return "ffmpeg" }

// input returns the demuxer and input name for a camera index.
func (d *FFmpegDevice) input(index int) (format, input string, err error) {
	switch d.goos {
	case "linux":
		return "v4l2", "/dev/video" + strconv.Itoa(index), nil
	case "darwin":
		return "avfoundation", strconv.Itoa(index) + ":none", nil
	}
	return "", "", fmt.Errorf("%w: no ffmpeg input mapping for %s", ErrNoCamera, d.goos)
}

// Open checks the device node and asks ffmpeg to list its formats, which
// surfaces busy devices before any frame is requested.
func (d *FFmpegDevice) Open(ctx context.Context, index int) (Handle, error) {
	format, input, err := d.input(index)
	if err != nil {
		return nil, err
	}
	if format == "v4l2" {
		if _, err := d.stat(input); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s does not exist", ErrNoCamera, input)
			}
			return nil, fmt.Errorf("%w: %v", ErrNoCamera, err)
		}

		// -list_formats always exits non-zero; only stderr matters.
		res, err := d.exec.Run(ctx, d.binary, "-hide_banner", "-f", format, "-list_formats", "all", "-i", input)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("probing %s: %w", input, ctxErr)
		}
		if classified := classifyStderr(res.Stderr); classified != nil {
			return nil, fmt.Errorf("%w: %s", classified, lastLine(res.Stderr))
		}
		var cmdErr *diagnostics.CommandError
		if err != nil && !errors.As(err, &cmdErr) {
			return nil, missingBinary(err)
		}
	}
	return &ffmpegHandle{index: index, format: format, input: input}, nil
}

// Read runs ffmpeg for exactly one frame and returns the MJPEG bytes.
func (d *FFmpegDevice) Read(ctx context.Context, h Handle) ([]byte, error) {
	fh, ok := h.(*ffmpegHandle)
	if !ok || fh == nil {
		return nil, errors.New("ffmpeg: invalid handle")
	}
	fh.mu.Lock()
	released := fh.released
	fh.mu.Unlock()
	if released {
		return nil, errors.New("ffmpeg: handle released")
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-f", fh.format}
	if d.width > 0 && d.height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", d.width, d.height))
	}
	args = append(args, "-i", fh.input, "-frames:v", "1", "-f", "image2", "-c:v", "mjpeg", "-")

	res, err := d.exec.Run(ctx, d.binary, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("reading frame: %w", ctxErr)
		}
		if classified := classifyStderr(res.Stderr); classified != nil {
			return nil, fmt.Errorf("%w: %s", classified, lastLine(res.Stderr))
		}
		return nil, missingBinary(err)
	}
	if res.Truncated {
		return nil, errors.New("ffmpeg: frame exceeds capture limit")
	}
	return res.Stdout, nil
}

// Release marks the handle released. ffmpeg holds the device only while a
// command runs, so nothing else needs closing.
func (d *FFmpegDevice) Release(h Handle) error {
	fh, ok := h.(*ffmpegHandle)
	if !ok || fh == nil {
		return nil
	}
	fh.mu.Lock()
	fh.released = true
	fh.mu.Unlock()
	return nil
}

// missingBinary turns a failure to start ffmpeg into ErrUnavailable.
func missingBinary(err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// classifyStderr maps well-known ffmpeg/v4l2 messages onto sentinels.
func classifyStderr(stderr string) error {
	s := strings.ToLower(stderr)
	switch {
	case strings.Contains(s, "device or resource busy"):
		return ErrBusy
	case strings.Contains(s, "cannot allocate memory"), strings.Contains(s, "out of memory"):
		return ErrMemoryExhausted
	case strings.Contains(s, "no such file or directory"), strings.Contains(s, "no such device"),
		strings.Contains(s, "cannot open video device"):
		return ErrNoCamera
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
