// Package capture sequences one camshot run: dependency resolution, output
// directory selection, host diagnostics, frame acquisition and the run log.
package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/camshot/internal/camera"
	"github.com/hugo-lorenzo-mato/camshot/internal/config"
	"github.com/hugo-lorenzo-mato/camshot/internal/core"
	"github.com/hugo-lorenzo-mato/camshot/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/camshot/internal/resolver"
	"github.com/hugo-lorenzo-mato/camshot/internal/storage"
)

// Run phases, recorded in crash dumps and panic messages.
const (
	PhaseResolve     = "resolve"
	PhaseStorage     = "storage"
	PhaseDiagnostics = "diagnostics"
	PhaseCapture     = "capture"
	PhaseMetadata    = "metadata"
)

// Options wires a Runner. Zero values select the production collaborators.
type Options struct {
	Config *config.Config
	Logger *slog.Logger

	// Candidates overrides the output directory list derived from
	// Config.Output.Dir.
	Candidates []string
	Installer  resolver.Installer
	// LookPath overrides binary lookup for the resolver.
	LookPath func(string) (string, error)
	// Device bypasses backend selection.
	Device    camera.Device
	Collector *diagnostics.Collector
	// CrashDumps overrides the writer built from Config.Diagnostics.
	CrashDumps *diagnostics.CrashDumpWriter
	// Fallback receives the run log line when no directory is usable.
	// nil means stderr.
	Fallback io.Writer
	// Signals cancel the run. nil means SIGINT and SIGTERM.
	Signals []os.Signal
	Now     func() time.Time
}

// Result is everything known about a finished run.
type Result struct {
	RunID        string
	Started      time.Time
	Duration     time.Duration
	Outcome      core.Outcome
	OutputDir    string
	MetadataPath string
	RunLogPath   string
	Device       string
	Dependency   resolver.Resolution
	Diagnostics  diagnostics.Report
}

// ExitCode returns the process exit code of the run.
func (r Result) ExitCode() int {
	return r.Outcome.ExitCode()
}

// Runner executes capture runs.
type Runner struct {
	cfg        *config.Config
	logger     *slog.Logger
	exec       *diagnostics.SafeExecutor
	resolver   *resolver.Resolver
	locator    *storage.Locator
	collector  *diagnostics.Collector
	device     camera.Device
	candidates []string
	dumps      *diagnostics.CrashDumpWriter
	fallback   io.Writer
	signals    []os.Signal
	now        func() time.Time
	writeFile  func(path string, data []byte, perm os.FileMode) error

	phase string
}

// NewRunner creates a runner from opts.
func NewRunner(opts Options) *Runner {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dumps := opts.CrashDumps
	if dumps == nil && cfg.Diagnostics.CrashDumps {
		dumps = diagnostics.NewCrashDumpWriter("", 10, true, true, logger)
	}
	exec := diagnostics.NewSafeExecutor(logger)
	if dumps != nil {
		exec = exec.WithCrashDumps(dumps)
	}

	installer := opts.Installer
	if installer == nil {
		installer = resolver.NewExecInstaller(exec)
	}
	candidates := opts.Candidates
	if candidates == nil {
		candidates = storage.DefaultCandidates(cfg.Output.Dir)
	}
	signals := opts.Signals
	if signals == nil {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{
		cfg:    cfg,
		logger: logger,
		exec:   exec,
		resolver: resolver.New(installer, resolver.Options{
			AutoInstall:    cfg.Deps.AutoInstall,
			InstallTimeout: cfg.Deps.InstallTimeoutDuration(),
			LookPath:       opts.LookPath,
		}, logger),
		locator:    storage.NewLocator(logger),
		collector:  opts.Collector,
		device:     opts.Device,
		candidates: candidates,
		dumps:      dumps,
		fallback:   opts.Fallback,
		signals:    signals,
		now:        now,
		writeFile:  storage.WriteFileAtomic,
	}
}

// Execute is the top-level call: it cancels the run on SIGINT or SIGTERM,
// restores default signal handling before returning and never panics.
func Execute(ctx context.Context, opts Options) Result {
	return NewRunner(opts).Execute(ctx)
}

// Execute runs once with the interrupt handler installed.
func (r *Runner) Execute(ctx context.Context) Result {
	ctx, stop := signal.NotifyContext(ctx, r.signals...)
	defer stop()
	return r.runGuarded(ctx)
}

// Run runs once without installing signal handlers and returns the outcome.
func (r *Runner) Run(ctx context.Context) core.Outcome {
	return r.runGuarded(ctx).Outcome
}

func (r *Runner) runGuarded(ctx context.Context) Result {
	res := Result{RunID: uuid.NewString(), Started: r.now()}
	base := r.logger
	r.logger = base.With("run_id", res.RunID)
	defer func() { r.logger = base }()
	if r.dumps != nil {
		r.dumps.SetRunID(res.RunID)
	}

	if err := r.guard(func() { r.run(ctx, &res) }); err != nil {
		r.logger.Error("run aborted", "phase", r.phase, "error", err)
		res.Outcome = core.FromError(err)
	}
	res.Duration = r.now().Sub(res.Started)
	r.appendRunLog(&res)
	return res
}

// guard runs fn and converts a panic into an unforeseen_error.
func (r *Runner) guard(fn func()) (err error) {
	if r.dumps == nil {
		defer func() {
			if p := recover(); p != nil {
				err = core.ErrUnforeseen(fmt.Sprintf("panic during %s: %v", r.phase, p), nil)
			}
		}()
	}
	return r.exec.WrapExecution(func() error {
		fn()
		return nil
	})
}

func (r *Runner) setPhase(phase string) {
	r.phase = phase
	if r.dumps != nil {
		r.dumps.SetPhase(phase)
	}
	r.logger.Debug("phase started", "phase", phase)
}

func (r *Runner) run(ctx context.Context, res *Result) {
	r.setPhase(PhaseResolve)
	res.Dependency = r.resolve(ctx)
	if err := ctx.Err(); err != nil {
		res.Outcome = core.FromError(core.ErrInterrupted(err))
		return
	}

	r.setPhase(PhaseStorage)
	dir, locErr := r.locator.Locate(ctx, r.candidates)
	if locErr == nil {
		res.OutputDir = dir.Path
	}

	// Identity fields name the file, so diagnostics run before capture.
	// They are collected even without a directory.
	r.setPhase(PhaseDiagnostics)
	res.Diagnostics = r.collectorFor(res.OutputDir).Collect(ctx)
	if locErr != nil {
		r.logger.Error("no writable output directory", "error", locErr)
		res.Outcome = core.FromError(locErr)
		return
	}
	if err := ctx.Err(); err != nil {
		res.Outcome = core.FromError(core.ErrInterrupted(err))
		return
	}

	r.setPhase(PhaseCapture)
	dev := r.selectDevice(res.Dependency)
	res.Device = dev.Name()
	res.Outcome = camera.Scan(ctx, dev, r.sessionConfig(), r.cfg.Camera.ProbeCount, r.saver(res), r.logger)

	if res.Outcome.OK() && r.cfg.Output.Metadata {
		r.setPhase(PhaseMetadata)
		res.MetadataPath = r.writeMetadata(res)
	}
}

func (r *Runner) resolve(ctx context.Context) resolver.Resolution {
	if r.cfg.Camera.Driver == camera.DriverV4L2 && camera.V4L2Available {
		return r.resolver.Probe(resolver.FFmpeg)
	}
	return r.resolver.Ensure(ctx, resolver.FFmpeg)
}

func (r *Runner) collectorFor(dir string) *diagnostics.Collector {
	if r.collector != nil {
		return r.collector
	}
	return diagnostics.NewCollector(diagnostics.CollectorOptions{
		FieldTimeout: r.cfg.Diagnostics.FieldTimeoutDuration(),
		DiskPath:     dir,
		Executor:     r.exec,
		Logger:       r.logger,
	})
}

func (r *Runner) selectDevice(res resolver.Resolution) camera.Device {
	if r.device != nil {
		return r.device
	}
	return camera.SelectDevice(camera.BackendOptions{
		Driver:     r.cfg.Camera.Driver,
		Resolution: res,
		Exec:       r.exec,
		Width:      r.cfg.Camera.Width,
		Height:     r.cfg.Camera.Height,
	})
}

func (r *Runner) sessionConfig() camera.SessionConfig {
	return camera.SessionConfig{
		Index:        r.cfg.Camera.Index,
		OpenTimeout:  r.cfg.Camera.OpenTimeoutDuration(),
		ReadTimeout:  r.cfg.Camera.ReadTimeoutDuration(),
		RetryDelay:   r.cfg.Camera.RetryDelayDuration(),
		ReadAttempts: r.cfg.Camera.ReadAttempts,
		JPEGQuality:  r.cfg.Output.JPEGQuality,
	}
}
