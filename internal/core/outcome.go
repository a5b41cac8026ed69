package core

import (
	"errors"
	"fmt"
)

// Exit codes form the contract with calling scripts.
const (
	ExitSuccess            = 0
	ExitUnforeseen         = 1
	ExitDependencyMissing  = 2
	ExitStorageUnavailable = 3
	ExitNoCamera           = 4
	ExitCameraBusy         = 5
	ExitInvalidFrame       = 6
	ExitMemoryExhausted    = 7
	ExitSaveFailed         = 8
	ExitInterrupted        = 9
)

var exitCodes = map[Kind]int{
	KindSuccess:            ExitSuccess,
	KindUnforeseen:         ExitUnforeseen,
	KindDependencyMissing:  ExitDependencyMissing,
	KindStorageUnavailable: ExitStorageUnavailable,
	KindNoCamera:           ExitNoCamera,
	KindCameraBusy:         ExitCameraBusy,
	KindInvalidFrame:       ExitInvalidFrame,
	KindMemoryExhausted:    ExitMemoryExhausted,
	KindSaveFailed:         ExitSaveFailed,
	KindInterrupted:        ExitInterrupted,
}

// ExitCode maps a kind to its process exit code.
func (k Kind) ExitCode() int {
	if code, ok := exitCodes[k]; ok {
		return code
	}
	return ExitUnforeseen
}

// Outcome is the single result of a capture run.
// It is built once by one of the constructors and passed by value.
type Outcome struct {
	Kind      Kind
	Frame     *FrameDescriptor
	SavedPath string
	Reason    string
	Cause     error
}

// Succeeded builds a success outcome.
func Succeeded(frame FrameDescriptor, savedPath string) Outcome {
	return Outcome{Kind: KindSuccess, Frame: &frame, SavedPath: savedPath}
}

// Failed builds a failure outcome.
func Failed(kind Kind, reason string, cause error) Outcome {
	return Outcome{Kind: kind, Reason: reason, Cause: cause}
}

// FromError converts an error into an outcome.
func FromError(err error) Outcome {
	if err == nil {
		return Outcome{Kind: KindUnforeseen, Reason: "run ended without a result"}
	}
	var ce *Error
	if errors.As(err, &ce) {
		return Outcome{Kind: ce.Kind, Reason: ce.Message, Cause: ce.Cause}
	}
	return Outcome{Kind: KindUnforeseen, Reason: err.Error(), Cause: err}
}

// WithFrame returns a copy carrying the frame descriptor.
func (o Outcome) WithFrame(frame FrameDescriptor) Outcome {
	o.Frame = &frame
	return o
}

// OK reports whether the run succeeded.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// ExitCode returns the process exit code for this outcome.
func (o Outcome) ExitCode() int {
	return o.Kind.ExitCode()
}

// Message returns a human-readable sentence naming the cause.
func (o Outcome) Message() string {
	var msg string
	switch o.Kind {
	case KindSuccess:
		msg = "captured frame"
		if o.Frame != nil {
			msg += " " + o.Frame.String()
		}
		if o.SavedPath != "" {
			msg += " saved to " + o.SavedPath
		}
		return msg
	case KindNoCamera:
		msg = "no camera could be opened"
	case KindCameraBusy:
		msg = "camera is busy (used by another application?)"
	case KindInvalidFrame:
		msg = "camera returned no usable frame"
	case KindMemoryExhausted:
		msg = "out of memory while materializing the frame"
	case KindStorageUnavailable:
		msg = "no writable output directory"
	case KindInterrupted:
		msg = "interrupted by user"
	case KindDependencyMissing:
		msg = "frame grabber dependency is missing"
	case KindSaveFailed:
		msg = "frame captured but could not be saved"
	default:
		msg = "unexpected error"
	}
	if o.Reason != "" && o.Reason != msg {
		msg = fmt.Sprintf("%s: %s", msg, o.Reason)
	}
	if o.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, o.Cause)
	}
	return msg
}

// Hint returns a remediation hint for failure outcomes.
func (o Outcome) Hint() string {
	switch o.Kind {
	case KindDependencyMissing:
		return "install ffmpeg or rerun with auto-install enabled"
	case KindNoCamera:
		return "check the camera is connected and CAMSHOT_CAMERA_INDEX points at it"
	case KindCameraBusy:
		return "close other applications using the camera"
	case KindStorageUnavailable:
		return "set CAMSHOT_OUTPUT_DIR to a writable directory"
	case KindMemoryExhausted:
		return "free memory or lower camera.width/camera.height"
	case KindInvalidFrame:
		return "retry; some cameras need a moment after connecting"
	case KindSaveFailed:
		return "check free disk space in the output directory"
	case KindUnforeseen:
		return "rerun with --log-level debug and check for a crash dump"
	}
	return ""
}
