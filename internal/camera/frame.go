package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // some backends hand out PNG stills
	"strings"

	"github.com/hugo-lorenzo-mato/camshot/internal/core"
	"github.com/hugo-lorenzo-mato/camshot/internal/diagnostics"
)

// Frame is a validated frame ready to be saved.
type Frame struct {
	Data       []byte
	Descriptor core.FrameDescriptor
}

// MemoryCheck reports an error wrapping diagnostics.ErrInsufficientMemory
// when need bytes cannot be allocated.
type MemoryCheck func(ctx context.Context, need uint64) error

// decodeOverhead covers the decoded RGBA image plus the encode buffer.
const decodeOverhead = 4 * 2

// Materialize decodes raw frame bytes, optionally re-encodes them as JPEG at
// quality (0 keeps the original bytes) and validates the result. Memory
// problems wrap ErrMemoryExhausted; anything else is an invalid_frame
// *core.Error.
func Materialize(ctx context.Context, data []byte, quality int, check MemoryCheck) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, core.ErrInvalidFrame("empty frame", nil)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Frame{}, core.ErrInvalidFrame("undecodable frame", err)
	}
	desc := core.FrameDescriptor{Width: cfg.Width, Height: cfg.Height, Bytes: len(data)}
	if err := desc.Validate(); err != nil {
		return Frame{}, err
	}

	out := data
	if quality > 0 || format != "jpeg" {
		// Only a re-encode allocates the decoded image.
		if check != nil {
			need := uint64(cfg.Width) * uint64(cfg.Height) * decodeOverhead
			if err := check(ctx, need); err != nil && errors.Is(err, diagnostics.ErrInsufficientMemory) {
				return Frame{}, fmt.Errorf("%w: %v", ErrMemoryExhausted, err)
			}
		}
		if quality <= 0 {
			quality = jpeg.DefaultQuality
		}
		out, err = reencode(data, quality)
		if err != nil {
			return Frame{}, err
		}
	}

	desc.Bytes = len(out)
	desc.Empty = len(out) == 0
	if err := desc.Validate(); err != nil {
		return Frame{}, err
	}
	return Frame{Data: out, Descriptor: desc}, nil
}

// reencode decodes and re-encodes data as JPEG. Allocation panics become
// ErrMemoryExhausted.
func reencode(data []byte, quality int) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			if isAllocPanic(r) {
				out, err = nil, fmt.Errorf("%w: %v", ErrMemoryExhausted, r)
				return
			}
			out, err = nil, core.ErrInvalidFrame("frame decoder failed", fmt.Errorf("panic: %v", r))
		}
	}()

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, core.ErrInvalidFrame("undecodable frame", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(data))
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, core.ErrInvalidFrame("jpeg encoding failed", err)
	}
	return buf.Bytes(), nil
}

func isAllocPanic(r any) bool {
	msg := strings.ToLower(fmt.Sprint(r))
	return strings.Contains(msg, "out of memory") || strings.Contains(msg, "makeslice")
}
