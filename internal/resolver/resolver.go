// Package resolver makes sure the external frame grabber is available,
// installing it through a system package manager when allowed.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/hugo-lorenzo-mato/camshot/internal/fallback"
)

// DefaultInstallTimeout bounds one install attempt.
const DefaultInstallTimeout = 120 * time.Second

// MethodPresent is reported when the binary was already on PATH.
const MethodPresent = "present"

// Capability is an external tool the capture backend depends on.
type Capability struct {
	Name   string
	Binary string
	// Packages maps a package manager to the package providing Binary.
	Packages map[string]string
}

// FFmpeg is the frame grabber used by the default capture backend.
var FFmpeg = Capability{
	Name:   "ffmpeg",
	Binary: "ffmpeg",
	Packages: map[string]string{
		"apt-get": "ffmpeg",
		"dnf":     "ffmpeg-free",
		"yum":     "ffmpeg",
		"pacman":  "ffmpeg",
		"apk":     "ffmpeg",
		"zypper":  "ffmpeg",
		"brew":    "ffmpeg",
		"winget":  "Gyan.FFmpeg",
		"choco":   "ffmpeg",
	},
}

// Resolution is the result of Ensure: either a resolved path or a stub.
type Resolution struct {
	Capability string   `json:"capability" yaml:"capability"`
	Path       string   `json:"path,omitempty" yaml:"path,omitempty"`
	Method     string   `json:"method,omitempty" yaml:"method,omitempty"`
	Stub       bool     `json:"stub" yaml:"stub"`
	Reason     string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	Attempts   []string `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

// Resolved reports whether the capability is usable.
func (r Resolution) Resolved() bool {
	return !r.Stub && r.Path != ""
}

// Options configures a Resolver.
type Options struct {
	AutoInstall    bool
	InstallTimeout time.Duration
	// MaxAttempts bounds the number of package managers tried.
	MaxAttempts int
	// LookPath finds binaries; nil means exec.LookPath.
	LookPath func(string) (string, error)
}

// Resolver probes for a capability and installs it on demand.
type Resolver struct {
	installer Installer
	opts      Options
	lookPath  func(string) (string, error)
	logger    *slog.Logger
}

// New creates a resolver.
func New(installer Installer, opts Options, logger *slog.Logger) *Resolver {
	if opts.InstallTimeout <= 0 {
		opts.InstallTimeout = DefaultInstallTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 2
	}
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return &Resolver{
		installer: installer,
		opts:      opts,
		lookPath:  lookPath,
		logger:    logger,
	}
}

// Probe looks the capability up without installing anything.
func (r *Resolver) Probe(capability Capability) Resolution {
	if path, err := r.lookPath(capability.Binary); err == nil {
		return Resolution{Capability: capability.Name, Path: path, Method: MethodPresent}
	}
	return Resolution{Capability: capability.Name, Stub: true, Reason: capability.Binary + " not found on PATH"}
}

// Ensure returns a resolved capability or a stub. It never fails and never
// panics.
func (r *Resolver) Ensure(ctx context.Context, capability Capability) (res Resolution) {
	defer func() {
		if p := recover(); p != nil {
			res = Resolution{Capability: capability.Name, Stub: true, Reason: fmt.Sprintf("resolver panic: %v", p)}
		}
	}()

	if res = r.Probe(capability); res.Resolved() {
		return res
	}
	if !r.opts.AutoInstall {
		res.Reason += "; automatic install disabled"
		return res
	}
	if r.installer == nil {
		res.Reason += "; no installer available"
		return res
	}

	managers := r.installer.Managers()
	var chain []fallback.Candidate[Resolution]
	for _, m := range managers {
		pkg, ok := capability.Packages[m]
		if !ok {
			continue
		}
		chain = append(chain, fallback.Candidate[Resolution]{
			Name: m,
			Try: func(ctx context.Context) (Resolution, error) {
				return r.install(ctx, capability, m, pkg)
			},
		})
		if len(chain) == r.opts.MaxAttempts {
			break
		}
	}
	if len(chain) == 0 {
		res.Reason += "; no supported package manager found"
		return res
	}

	got, _, err := fallback.First(ctx, chain...)
	if err == nil {
		return got
	}
	res.Reason = fmt.Sprintf("%s not found and could not be installed", capability.Binary)
	res.Attempts = attemptLines(err)
	if r.logger != nil {
		r.logger.Warn("dependency unavailable, using stub", "capability", capability.Name, "error", err)
	}
	return res
}

func (r *Resolver) install(ctx context.Context, capability Capability, manager, pkg string) (Resolution, error) {
	ictx, cancel := context.WithTimeout(ctx, r.opts.InstallTimeout)
	defer cancel()

	if r.logger != nil {
		r.logger.Info("installing dependency", "capability", capability.Name, "manager", manager, "package", pkg)
	}
	_, err := r.installer.Install(ictx, manager, pkg)
	if err != nil {
		// A timeout or interrupt is not worth a second manager.
		if ctxErr := ictx.Err(); ctxErr != nil {
			return Resolution{}, fallback.Stop(fmt.Errorf("install timed out or was cancelled: %w", ctxErr))
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Resolution{}, fallback.Stop(err)
		}
		return Resolution{}, err
	}

	path, err := r.lookPath(capability.Binary)
	if err != nil {
		return Resolution{}, fmt.Errorf("install reported success but %s is still missing", capability.Binary)
	}
	return Resolution{Capability: capability.Name, Path: path, Method: "installed:" + manager}, nil
}

// attemptLines splits a joined error into one line per candidate.
func attemptLines(err error) []string {
	var lines []string
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			lines = append(lines, e.Error())
		}
		return lines
	}
	return []string{err.Error()}
}
