// Package fallback implements the "first successful candidate" combinator
// shared by the storage locator, the dependency resolver and the
// diagnostics probes.
package fallback

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoCandidates is returned when First is called without candidates.
var ErrNoCandidates = errors.New("no candidates")

// Candidate is one named strategy.
type Candidate[T any] struct {
	Name string
	Try  func(ctx context.Context) (T, error)
}

// Attempt records how a candidate fared.
type Attempt struct {
	Name string
	Err  error
}

// stopError marks a failure that must end the chain.
type stopError struct {
	err error
}

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

// Stop wraps err so that First does not try the remaining candidates.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

// IsStop reports whether err was produced by Stop.
func IsStop(err error) bool {
	var se *stopError
	return errors.As(err, &se)
}

// First runs candidates in order and returns the first success together with
// the winning attempt. Failures are joined into the returned error. A
// candidate returning Stop(err) or a cancelled context ends the chain early.
func First[T any](ctx context.Context, candidates ...Candidate[T]) (T, Attempt, error) {
	var zero T
	if len(candidates) == 0 {
		return zero, Attempt{}, ErrNoCandidates
	}

	var errs []error
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			return zero, Attempt{}, errors.Join(errs...)
		}

		v, err := try(ctx, c)
		if err == nil {
			return v, Attempt{Name: c.Name}, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
		if IsStop(err) {
			break
		}
	}
	return zero, Attempt{}, errors.Join(errs...)
}

// try runs one candidate and turns a panic into an error.
func try[T any](ctx context.Context, c Candidate[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if c.Try == nil {
		return v, errors.New("candidate has no strategy")
	}
	return c.Try(ctx)
}
