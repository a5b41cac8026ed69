package core

import "fmt"

// FrameDescriptor describes a materialized camera frame.
type FrameDescriptor struct {
	Width  int  `json:"width" yaml:"width"`
	Height int  `json:"height" yaml:"height"`
	Bytes  int  `json:"bytes" yaml:"bytes"`
	Empty  bool `json:"empty" yaml:"empty"`
}

// Validate checks the frame invariants.
// A frame is usable only when it has positive dimensions and payload.
func (f FrameDescriptor) Validate() error {
	switch {
	case f.Empty:
		return ErrInvalidFrame("empty frame", nil)
	case f.Width <= 0 || f.Height <= 0:
		return ErrInvalidFrame(fmt.Sprintf("invalid dimensions %dx%d", f.Width, f.Height), nil)
	case f.Bytes <= 0:
		return ErrInvalidFrame("frame has no payload", nil)
	}
	return nil
}

// String renders the descriptor for logs.
func (f FrameDescriptor) String() string {
	return fmt.Sprintf("%dx%d (%d bytes)", f.Width, f.Height, f.Bytes)
}
