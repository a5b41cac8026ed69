package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/camshot/internal/camera"
	"github.com/hugo-lorenzo-mato/camshot/internal/core"
	"github.com/hugo-lorenzo-mato/camshot/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/camshot/internal/report"
	"github.com/hugo-lorenzo-mato/camshot/internal/resolver"
	"github.com/hugo-lorenzo-mato/camshot/internal/storage"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the frame grabber, output directories and host diagnostics",
	Long: `Probe everything a capture run depends on without opening the camera or
installing anything: the ffmpeg frame grabber, the native V4L2 backend, the
output directory candidates and every host diagnostic field.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// lookPath finds the frame grabber. Tests replace it.
var lookPath = exec.LookPath

type crashSummary struct {
	Path      string    `json:"path" yaml:"path"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	RunID     string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Phase     string    `json:"phase,omitempty" yaml:"phase,omitempty"`
	Panic     string    `json:"panic" yaml:"panic"`
}

type doctorReport struct {
	Version       string              `json:"version" yaml:"version"`
	FrameGrabber  resolver.Resolution `json:"frame_grabber" yaml:"frame_grabber"`
	NativeBackend bool                `json:"native_backend" yaml:"native_backend"`
	Candidates    []string            `json:"candidates" yaml:"candidates"`
	OutputDir     string              `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	StorageError  string              `json:"storage_error,omitempty" yaml:"storage_error,omitempty"`
	Warnings      []string            `json:"config_warnings,omitempty" yaml:"config_warnings,omitempty"`
	Diagnostics   []diagnostics.Field `json:"diagnostics" yaml:"diagnostics"`
	LastCrash     *crashSummary       `json:"last_crash,omitempty" yaml:"last_crash,omitempty"`
}

// exitCode maps the findings onto the capture exit codes.
func (r doctorReport) exitCode() int {
	switch {
	case r.OutputDir == "":
		return core.ExitStorageUnavailable
	case !r.FrameGrabber.Resolved() && !r.NativeBackend:
		return core.ExitDependencyMissing
	}
	return core.ExitSuccess
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger := appLogger.WithComponent("doctor").Logger

	rep := doctorReport{
		Version:       appVersion,
		NativeBackend: camera.V4L2Available,
		Warnings:      appConfig.Warnings,
	}
	rep.FrameGrabber = resolver.New(nil, resolver.Options{LookPath: lookPath}, logger).Probe(resolver.FFmpeg)

	rep.Candidates = storage.Normalize(storage.DefaultCandidates(appConfig.Output.Dir))
	if dir, err := storage.NewLocator(logger).Locate(ctx, rep.Candidates); err != nil {
		rep.StorageError = core.FromError(err).Message()
	} else {
		rep.OutputDir = dir.Path
	}

	rep.Diagnostics = diagnostics.NewCollector(diagnostics.CollectorOptions{
		FieldTimeout: appConfig.Diagnostics.FieldTimeoutDuration(),
		DiskPath:     rep.OutputDir,
		Logger:       logger,
	}).Collect(ctx).Fields

	if dump, path, err := diagnostics.LoadLatestCrashDump(diagnostics.DefaultCrashDumpDir()); err == nil {
		rep.LastCrash = &crashSummary{
			Path:      path,
			Timestamp: dump.Timestamp,
			RunID:     dump.RunID,
			Phase:     dump.CurrentPhase,
			Panic:     dump.PanicValue,
		}
	}

	out := cmd.OutOrStdout()
	switch format {
	case report.FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(rep)
	case report.FormatYAML:
		err = yaml.NewEncoder(out).Encode(rep)
	default:
		printDoctor(out, rep)
	}
	if err != nil {
		return fmt.Errorf("writing doctor report: %w", err)
	}

	if code := rep.exitCode(); code != core.ExitSuccess {
		return &exitError{code: code}
	}
	return nil
}

func printDoctor(w io.Writer, rep doctorReport) {
	fmt.Fprintln(w, "Checking capture backends...")
	fmt.Fprintln(w)
	if rep.FrameGrabber.Resolved() {
		fmt.Fprintf(w, "  ✓ ffmpeg %s\n", rep.FrameGrabber.Path)
	} else {
		fmt.Fprintf(w, "  ✗ ffmpeg (%s)\n", rep.FrameGrabber.Reason)
	}
	if rep.NativeBackend {
		fmt.Fprintln(w, "  ✓ v4l2 (native)")
	} else {
		fmt.Fprintln(w, "  ○ v4l2 (not compiled in)")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Checking output directories...")
	fmt.Fprintln(w)
	for _, c := range rep.Candidates {
		icon := "○"
		if c == rep.OutputDir {
			icon = "✓"
		}
		fmt.Fprintf(w, "  %s %s\n", icon, c)
	}
	if rep.StorageError != "" {
		fmt.Fprintf(w, "  ✗ %s\n", rep.StorageError)
	}
	fmt.Fprintln(w)

	if len(rep.Warnings) > 0 {
		fmt.Fprintln(w, "Configuration warnings...")
		fmt.Fprintln(w)
		for _, warn := range rep.Warnings {
			fmt.Fprintf(w, "  ⚠ %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Collecting diagnostics...")
	fmt.Fprintln(w)
	for _, f := range rep.Diagnostics {
		icon := "✓"
		if f.Fallback {
			icon = "○"
		}
		fmt.Fprintf(w, "  %s %-14s %s\n", icon, f.Key, f.Value)
	}
	fmt.Fprintln(w)

	if rep.LastCrash != nil {
		fmt.Fprintf(w, "Last crash: %s during %s (%s)\n\n",
			rep.LastCrash.Timestamp.Format(time.RFC3339), rep.LastCrash.Phase, rep.LastCrash.Path)
	}

	switch rep.exitCode() {
	case core.ExitStorageUnavailable:
		fmt.Fprintln(w, "No writable output directory; captures would fail")
	case core.ExitDependencyMissing:
		fmt.Fprintln(w, "No capture backend available; install ffmpeg")
	default:
		fmt.Fprintln(w, "Ready to capture")
	}
}
