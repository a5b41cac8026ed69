package core

import (
	"errors"
	"fmt"
)

// Kind classifies how a capture run ended.
type Kind string

const (
	KindSuccess            Kind = "success"
	KindNoCamera           Kind = "no_camera"
	KindCameraBusy         Kind = "camera_busy"
	KindInvalidFrame       Kind = "invalid_frame"
	KindMemoryExhausted    Kind = "memory_exhausted"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindInterrupted        Kind = "interrupted"
	KindDependencyMissing  Kind = "dependency_missing"
	KindSaveFailed         Kind = "save_failed"
	KindUnforeseen         Kind = "unforeseen_error"
)

// Kinds lists every outcome kind in exit code order.
func Kinds() []Kind {
	return []Kind{
		KindSuccess,
		KindUnforeseen,
		KindDependencyMissing,
		KindStorageUnavailable,
		KindNoCamera,
		KindCameraBusy,
		KindInvalidFrame,
		KindMemoryExhausted,
		KindSaveFailed,
		KindInterrupted,
	}
}

// Error is the structured error returned across component boundaries.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates a structured error.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates a structured error with an underlying cause.
func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ErrNoCamera creates a no-camera error.
func ErrNoCamera(message string, cause error) *Error {
	return WrapError(KindNoCamera, message, cause)
}

// ErrCameraBusy creates a camera-busy error.
func ErrCameraBusy(message string, cause error) *Error {
	return WrapError(KindCameraBusy, message, cause)
}

// ErrInvalidFrame creates an invalid-frame error.
func ErrInvalidFrame(reason string, cause error) *Error {
	return WrapError(KindInvalidFrame, reason, cause)
}

// ErrMemoryExhausted creates a memory-exhaustion error.
func ErrMemoryExhausted(message string, cause error) *Error {
	return WrapError(KindMemoryExhausted, message, cause)
}

// ErrStorageUnavailable creates a storage error.
func ErrStorageUnavailable(message string, cause error) *Error {
	return WrapError(KindStorageUnavailable, message, cause)
}

// ErrInterrupted creates an interruption error.
func ErrInterrupted(cause error) *Error {
	return WrapError(KindInterrupted, "interrupted by user", cause)
}

// ErrDependencyMissing creates a missing-dependency error.
func ErrDependencyMissing(message string, cause error) *Error {
	return WrapError(KindDependencyMissing, message, cause)
}

// ErrSaveFailed creates a save error.
func ErrSaveFailed(message string, cause error) *Error {
	return WrapError(KindSaveFailed, message, cause)
}

// ErrUnforeseen creates a catch-all error.
func ErrUnforeseen(message string, cause error) *Error {
	return WrapError(KindUnforeseen, message, cause)
}

// KindOf extracts the outcome kind of an error.
// Errors that never went through a component boundary are unforeseen.
func KindOf(err error) Kind {
	if err == nil {
		return KindSuccess
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnforeseen
}

// IsKind checks if an error belongs to a kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
