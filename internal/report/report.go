// Package report renders the result of a capture run for humans and
// scripts.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/camshot/internal/capture"
	"github.com/hugo-lorenzo-mato/camshot/internal/core"
	"github.com/hugo-lorenzo-mato/camshot/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/camshot/internal/resolver"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists the accepted --format values.
var Formats = []string{FormatText, FormatJSON, FormatYAML}

// Report is the rendered view of one run.
type Report struct {
	RunID        string                `json:"run_id" yaml:"run_id"`
	Started      time.Time             `json:"started" yaml:"started"`
	Duration     string                `json:"duration" yaml:"duration"`
	Outcome      core.Kind             `json:"outcome" yaml:"outcome"`
	ExitCode     int                   `json:"exit_code" yaml:"exit_code"`
	Message      string                `json:"message" yaml:"message"`
	Hint         string                `json:"hint,omitempty" yaml:"hint,omitempty"`
	Frame        *core.FrameDescriptor `json:"frame,omitempty" yaml:"frame,omitempty"`
	SavedPath    string                `json:"saved_path,omitempty" yaml:"saved_path,omitempty"`
	MetadataPath string                `json:"metadata_path,omitempty" yaml:"metadata_path,omitempty"`
	RunLogPath   string                `json:"run_log,omitempty" yaml:"run_log,omitempty"`
	OutputDir    string                `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	Device       string                `json:"device,omitempty" yaml:"device,omitempty"`
	Dependency   resolver.Resolution   `json:"dependency" yaml:"dependency"`
	Diagnostics  []diagnostics.Field   `json:"diagnostics" yaml:"diagnostics"`
}

// FromResult builds the report of a finished run.
func FromResult(res capture.Result) Report {
	out := res.Outcome
	return Report{
		RunID:        res.RunID,
		Started:      res.Started,
		Duration:     res.Duration.Round(time.Millisecond).String(),
		Outcome:      out.Kind,
		ExitCode:     out.ExitCode(),
		Message:      out.Message(),
		Hint:         out.Hint(),
		Frame:        out.Frame,
		SavedPath:    out.SavedPath,
		MetadataPath: res.MetadataPath,
		RunLogPath:   res.RunLogPath,
		OutputDir:    res.OutputDir,
		Device:       res.Device,
		Dependency:   res.Dependency,
		Diagnostics:  res.Diagnostics.Fields,
	}
}

// OK reports whether the run succeeded.
func (r Report) OK() bool {
	return r.Outcome == core.KindSuccess
}

// ParseFormat validates a --format value. Empty means text.
func ParseFormat(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FormatText, nil
	}
	for _, f := range Formats {
		if s == f {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (want one of %s)", s, strings.Join(Formats, ", "))
}

// Render writes r to w in format.
func Render(w io.Writer, r Report, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		_, err := io.WriteString(w, NewTextRenderer(w).Render(r))
		return err
	}
	return fmt.Errorf("unknown format %q", format)
}
