package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/camshot/internal/camera"
	"github.com/hugo-lorenzo-mato/camshot/internal/core"
	"github.com/hugo-lorenzo-mato/camshot/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/camshot/internal/fallback"
	"github.com/hugo-lorenzo-mato/camshot/internal/fsutil"
	"github.com/hugo-lorenzo-mato/camshot/internal/logging"
	"github.com/hugo-lorenzo-mato/camshot/internal/resolver"
	"github.com/hugo-lorenzo-mato/camshot/internal/storage"
)

// saver writes the frame into the chosen directory and, when that fails,
// into each remaining candidate that passes the write test.
func (r *Runner) saver(res *Result) camera.SaveFunc {
	return func(ctx context.Context, f camera.Frame) (string, error) {
		name := r.captureName(res.Diagnostics)
		dirs := append([]string{res.OutputDir}, storage.Remaining(r.candidates, res.OutputDir)...)

		chain := make([]fallback.Candidate[string], len(dirs))
		for i, dir := range dirs {
			chain[i] = fallback.Candidate[string]{
				Name: dir,
				Try: func(context.Context) (string, error) {
					if i > 0 {
						if err := r.locator.Check(dir); err != nil {
							return "", err
						}
					}
					path := filepath.Join(dir, name)
					if err := r.writeFile(path, f.Data, 0o644); err != nil {
						return "", err
					}
					return path, nil
				},
			}
		}

		path, attempt, err := fallback.First(ctx, chain...)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", core.ErrInterrupted(ctxErr)
			}
			return "", core.ErrSaveFailed(fmt.Sprintf("frame could not be written to any of %d directories", len(dirs)), err)
		}
		if attempt.Name != res.OutputDir {
			r.logger.Warn("frame saved to fallback directory", "dir", attempt.Name, "preferred", res.OutputDir)
			res.OutputDir = attempt.Name
		}
		r.logger.Info("frame saved", "path", path, "frame", f.Descriptor.String())
		return path, nil
	}
}

func (r *Runner) captureName(report diagnostics.Report) string {
	t := r.now()
	if len(report.Fields) == 0 {
		return fsutil.FallbackCaptureName(t)
	}
	return fsutil.BuildCaptureName(report.Identity(), t)
}

// Metadata is the YAML sidecar written next to a saved frame.
type Metadata struct {
	RunID       string                `yaml:"run_id"`
	CapturedAt  time.Time             `yaml:"captured_at"`
	Image       string                `yaml:"image"`
	Frame       *core.FrameDescriptor `yaml:"frame,omitempty"`
	Camera      CameraMetadata        `yaml:"camera"`
	Dependency  resolver.Resolution   `yaml:"dependency"`
	Diagnostics map[string]string     `yaml:"diagnostics"`
}

// CameraMetadata names the device a frame came from.
type CameraMetadata struct {
	Index  int    `yaml:"index"`
	Driver string `yaml:"driver"`
	Device string `yaml:"device"`
}

// MetadataPath returns the sidecar path for an image path.
func MetadataPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".yaml"
}

// writeMetadata writes the sidecar. Failures are logged and never change
// the outcome.
func (r *Runner) writeMetadata(res *Result) string {
	image := res.Outcome.SavedPath
	meta := Metadata{
		RunID:      res.RunID,
		CapturedAt: r.now().UTC(),
		Image:      filepath.Base(image),
		Frame:      res.Outcome.Frame,
		Camera: CameraMetadata{
			Index:  r.cfg.Camera.Index,
			Driver: r.cfg.Camera.Driver,
			Device: res.Device,
		},
		Dependency:  res.Dependency,
		Diagnostics: res.Diagnostics.Map(),
	}
	data, err := yaml.Marshal(meta)
	if err != nil {
		r.logger.Warn("encoding metadata failed", "error", err)
		return ""
	}
	path := MetadataPath(image)
	if err := r.writeFile(path, data, 0o644); err != nil {
		r.logger.Warn("writing metadata failed", "path", path, "error", err)
		return ""
	}
	return path
}

// appendRunLog writes the single run log line, into the output directory
// when one was found and to the fallback sink otherwise.
func (r *Runner) appendRunLog(res *Result) {
	out := res.Outcome
	fields := map[string]string{
		"exit_code": strconv.Itoa(out.ExitCode()),
		"camera":    strconv.Itoa(r.cfg.Camera.Index),
		"duration":  res.Duration.Round(time.Millisecond).String(),
	}
	if res.Device != "" {
		fields["device"] = res.Device
	}
	if host := res.Diagnostics.Value(diagnostics.FieldHostname); host != "" {
		fields["host"] = host
	}
	if out.SavedPath != "" {
		fields["path"] = out.SavedPath
	}
	if !out.OK() {
		fields["reason"] = out.Message()
	}

	level := "info"
	switch out.Kind {
	case core.KindSuccess:
	case core.KindInterrupted:
		level = "warn"
	default:
		level = "error"
	}

	log := logging.NewRunLog(res.OutputDir, r.cfg.Output.LogFile, r.fallback)
	msg := fmt.Sprintf("run=%s outcome=%s", res.RunID, out.Kind)
	if log.Append(level, msg, fields) {
		res.RunLogPath = log.Path()
		return
	}
	r.logger.Warn("run log written to fallback sink", "path", log.Path())
}
