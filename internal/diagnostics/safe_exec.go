package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Output limits for captured command streams.
const (
	DefaultMaxStdout = 64 * 1024
	DefaultMaxStderr = 16 * 1024

	// waitDelay bounds how long Wait blocks on pipes after the process is
	// killed by its context.
	waitDelay = 2 * time.Second
)

// ExecResult holds the captured output of a finished command.
type ExecResult struct {
	Stdout    []byte
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	Truncated bool
}

// CommandError describes a command that started but did not succeed.
type CommandError struct {
	Name     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Name, e.ExitCode)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// SafeExecutor runs external commands with a deadline, detached stdin and
// bounded output capture. Output is never streamed to the terminal.
type SafeExecutor struct {
	logger     *slog.Logger
	maxStdout  int
	maxStderr  int
	env        []string
	dumpWriter *CrashDumpWriter
}

// NewSafeExecutor creates a safe executor.
func NewSafeExecutor(logger *slog.Logger) *SafeExecutor {
	return &SafeExecutor{
		logger:    logger,
		maxStdout: DefaultMaxStdout,
		maxStderr: DefaultMaxStderr,
	}
}

// WithOutputLimit returns a copy with different capture limits.
func (e *SafeExecutor) WithOutputLimit(stdout, stderr int) *SafeExecutor {
	c := *e
	if stdout > 0 {
		c.maxStdout = stdout
	}
	if stderr > 0 {
		c.maxStderr = stderr
	}
	return &c
}

// WithEnv returns a copy that appends env to the inherited environment.
func (e *SafeExecutor) WithEnv(env ...string) *SafeExecutor {
	c := *e
	c.env = append(append([]string(nil), e.env...), env...)
	return &c
}

// WithCrashDumps returns a copy whose WrapExecution writes crash dumps.
func (e *SafeExecutor) WithCrashDumps(w *CrashDumpWriter) *SafeExecutor {
	c := *e
	c.dumpWriter = w
	return &c
}

// Run executes name with args and waits for it. The context deadline is the
// only bound on runtime; a cancelled context surfaces as ctx.Err().
func (e *SafeExecutor) Run(ctx context.Context, name string, args ...string) (ExecResult, error) {
	var result ExecResult
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%s: %w", name, err)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil
	cmd.WaitDelay = waitDelay
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}

	stdout := &limitedBuffer{max: e.maxStdout}
	stderr := &limitedBuffer{max: e.maxStderr}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	result.Duration = time.Since(start)
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.String()
	result.Truncated = stdout.truncated || stderr.truncated

	if e.logger != nil {
		e.logger.Debug("command finished",
			"command", name,
			"args", strings.Join(args, " "),
			"duration", result.Duration,
			"truncated", result.Truncated,
			"error", err,
		)
	}

	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("%s: %w", name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, &CommandError{
			Name:     name,
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
			Err:      err,
		}
	}
	result.ExitCode = -1
	return result, fmt.Errorf("starting %s: %w", name, err)
}

// WrapExecution wraps a function with crash dump recovery.
func (e *SafeExecutor) WrapExecution(fn func() error) (err error) {
	if e.dumpWriter != nil {
		defer e.dumpWriter.RecoverAndReturn(&err)
	}
	return fn()
}

// limitedBuffer keeps the first max bytes and discards the rest while still
// reporting full writes so the child never blocks on a full pipe.
type limitedBuffer struct {
	bytes.Buffer
	max       int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.max - b.Len()
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.truncated = true
		b.Buffer.Write(p[:room])
		return len(p), nil
	}
	return b.Buffer.Write(p)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
