package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"syscall"
	"time"

	"github.com/hugo-lorenzo-mato/camshot/internal/core"
	"github.com/hugo-lorenzo-mato/camshot/internal/diagnostics"
)

// State is a capture session state.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpened
	StateReading
	StateValidated
	StateFinal
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpened:
		return "opened"
	case StateReading:
		return "reading"
	case StateValidated:
		return "validated"
	case StateFinal:
		return "final"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session defaults.
const (
	DefaultOpenTimeout  = 10 * time.Second
	DefaultReadTimeout  = 5 * time.Second
	DefaultRetryDelay   = 100 * time.Millisecond
	DefaultReadAttempts = 3
	DefaultJPEGQuality  = 85
)

// SessionConfig bounds one capture session.
type SessionConfig struct {
	Index        int
	OpenTimeout  time.Duration
	ReadTimeout  time.Duration
	RetryDelay   time.Duration
	ReadAttempts int
	// JPEGQuality re-encodes the frame; 0 keeps the device bytes.
	JPEGQuality int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = DefaultOpenTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.ReadAttempts <= 0 {
		c.ReadAttempts = DefaultReadAttempts
	}
	if c.JPEGQuality < 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = DefaultJPEGQuality
	}
	return c
}

// SaveFunc persists a validated frame and returns the saved path.
type SaveFunc func(ctx context.Context, f Frame) (string, error)

// Session drives one device through
// closed → opening → opened → reading → validated → final.
// Every exit path releases the handle exactly once.
type Session struct {
	dev      Device
	cfg      SessionConfig
	save     SaveFunc
	logger   *slog.Logger
	memCheck MemoryCheck
	sleep    func(ctx context.Context, d time.Duration) error

	state       State
	transitions []State
	reads       int
}

// NewSession creates a session over dev.
func NewSession(dev Device, cfg SessionConfig, save SaveFunc, logger *slog.Logger) *Session {
	return &Session{
		dev:      dev,
		cfg:      cfg.withDefaults(),
		save:     save,
		logger:   logger,
		memCheck: diagnostics.CheckMemory,
		sleep:    sleepCtx,
		state:    StateClosed,
	}
}

// WithMemoryCheck replaces the memory preflight. nil disables it.
func (s *Session) WithMemoryCheck(check MemoryCheck) *Session {
	s.memCheck = check
	return s
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Transitions returns every state entered, in order.
func (s *Session) Transitions() []State {
	return append([]State(nil), s.transitions...)
}

// Reads returns the number of Read calls made.
func (s *Session) Reads() int {
	return s.reads
}

func (s *Session) enter(st State) {
	s.state = st
	s.transitions = append(s.transitions, st)
}

func (s *Session) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Run performs the whole acquisition and returns its outcome.
func (s *Session) Run(ctx context.Context) core.Outcome {
	var h Handle
	defer func() {
		if err := s.dev.Release(h); err != nil {
			s.log().Warn("releasing camera failed", "index", s.cfg.Index, "error", err)
		}
		s.enter(StateFinal)
	}()

	s.enter(StateOpening)
	octx, cancel := context.WithTimeout(ctx, s.cfg.OpenTimeout)
	var err error
	h, err = s.dev.Open(octx, s.cfg.Index)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return core.FromError(core.ErrInterrupted(ctx.Err()))
		}
		s.log().Debug("camera open failed", "device", s.dev.Name(), "index", s.cfg.Index, "error", err)
		return core.FromError(classifyOpen(s.cfg.Index, err))
	}
	s.enter(StateOpened)
	s.log().Debug("camera opened", "device", s.dev.Name(), "index", s.cfg.Index)

	s.enter(StateReading)
	frame, err := s.read(ctx, h)
	if err != nil {
		return core.FromError(err)
	}

	s.enter(StateValidated)
	if s.save == nil {
		return core.Succeeded(frame.Descriptor, "")
	}
	path, err := s.save(ctx, frame)
	if err != nil {
		if core.KindOf(err) == core.KindUnforeseen {
			err = core.ErrSaveFailed("writing frame failed", err)
		}
		return core.FromError(err).WithFrame(frame.Descriptor)
	}
	return core.Succeeded(frame.Descriptor, path)
}

// read performs the bounded retry loop. Memory exhaustion ends it at once.
func (s *Session) read(ctx context.Context, h Handle) (Frame, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.ReadAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, s.cfg.RetryDelay); err != nil {
				return Frame{}, core.ErrInterrupted(err)
			}
		}

		rctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		s.reads++
		data, err := s.dev.Read(rctx, h)
		cancel()

		if ctx.Err() != nil {
			return Frame{}, core.ErrInterrupted(ctx.Err())
		}
		if err != nil {
			if errors.Is(err, ErrMemoryExhausted) {
				return Frame{}, core.ErrMemoryExhausted("reading frame", err)
			}
			lastErr = err
			s.log().Debug("frame read failed", "attempt", attempt, "error", err)
			continue
		}

		frame, err := Materialize(ctx, data, s.cfg.JPEGQuality, s.memCheck)
		if err != nil {
			if errors.Is(err, ErrMemoryExhausted) {
				return Frame{}, core.ErrMemoryExhausted("materializing frame", err)
			}
			lastErr = err
			s.log().Debug("frame rejected", "attempt", attempt, "error", err)
			continue
		}
		return frame, nil
	}

	reason := "no frame after retries"
	if lastErr != nil {
		reason += ": " + causeText(lastErr)
	}
	return Frame{}, core.ErrInvalidFrame(reason, nil)
}

// classifyOpen maps an open failure onto an outcome kind.
func classifyOpen(index int, err error) error {
	msg := fmt.Sprintf("camera %d", index)
	switch {
	case errors.Is(err, ErrUnavailable):
		return core.ErrDependencyMissing("no capture backend available", err)
	case errors.Is(err, ErrMemoryExhausted):
		return core.ErrMemoryExhausted("opening "+msg, err)
	case errors.Is(err, ErrBusy), errors.Is(err, syscall.EBUSY),
		strings.Contains(strings.ToLower(err.Error()), "busy"):
		return core.ErrCameraBusy(msg+" is in use", err)
	default:
		return core.ErrNoCamera(msg+" could not be opened", err)
	}
}

func causeText(err error) string {
	var ce *core.Error
	if errors.As(err, &ce) {
		if ce.Cause != nil {
			return ce.Message + ": " + ce.Cause.Error()
		}
		return ce.Message
	}
	return err.Error()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
