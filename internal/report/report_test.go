package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/camshot/internal/capture"
	"github.com/hugo-lorenzo-mato/camshot/internal/core"
	"github.com/hugo-lorenzo-mato/camshot/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/camshot/internal/resolver"
	"github.com/hugo-lorenzo-mato/camshot/internal/testutil"
)

func successResult() capture.Result {
	return capture.Result{
		RunID:        "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		Started:      time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC),
		Duration:     1234 * time.Millisecond,
		Outcome:      core.Succeeded(core.FrameDescriptor{Width: 640, Height: 480, Bytes: 51234}, "/data/camshots/lab_20261016_093000_000.jpg"),
		OutputDir:    "/data/camshots",
		MetadataPath: "/data/camshots/lab_20261016_093000_000.yaml",
		RunLogPath:   "/data/camshots/capture_log.txt",
		Device:       "ffmpeg",
		Dependency:   resolver.Resolution{Capability: "ffmpeg", Path: "/usr/bin/ffmpeg", Method: resolver.MethodPresent},
		Diagnostics: diagnostics.Report{Fields: []diagnostics.Field{
			{Key: diagnostics.FieldHostname, Value: "lab", Source: "os"},
			{Key: diagnostics.FieldMAC, Value: diagnostics.MarkerUnknownMAC, Fallback: true, Error: "no usable hardware address"},
		}},
	}
}

func failedResult() capture.Result {
	return capture.Result{
		RunID:   "run-2",
		Started: time.Date(2026, 10, 16, 9, 31, 0, 0, time.UTC),
		Outcome: core.FromError(core.ErrDependencyMissing("no capture backend available", errors.New("ffmpeg not found"))),
		Device:  "stub",
		Dependency: resolver.Resolution{
			Capability: "ffmpeg",
			Stub:       true,
			Reason:     "ffmpeg not found and could not be installed",
			Attempts:   []string{"apt-get: exit status 100"},
		},
	}
}

func TestFromResult(t *testing.T) {
	rep := FromResult(successResult())

	assert.True(t, rep.OK())
	assert.Equal(t, core.KindSuccess, rep.Outcome)
	assert.Equal(t, 0, rep.ExitCode)
	assert.Equal(t, "1.234s", rep.Duration)
	assert.Equal(t, "/data/camshots/lab_20261016_093000_000.jpg", rep.SavedPath)
	assert.Empty(t, rep.Hint)
	assert.Len(t, rep.Diagnostics, 2)

	failed := FromResult(failedResult())
	assert.False(t, failed.OK())
	assert.Equal(t, core.ExitDependencyMissing, failed.ExitCode)
	assert.NotEmpty(t, failed.Hint)
}

func TestRender_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FromResult(successResult()), FormatText))

	out := testutil.ScrubAll(buf.String(), "/data/camshots")
	assert.True(t, strings.HasPrefix(out, "✓ success (exit 0)"), out)
	assert.Contains(t, out, "captured frame 640x480 (51234 bytes)")
	assert.Contains(t, out, "run id")
	assert.Contains(t, out, "[UUID]")
	assert.Contains(t, out, "/usr/bin/ffmpeg (present)")
	assert.Contains(t, out, "[WORKDIR]/capture_log.txt")
	assert.Contains(t, out, "unknown-mac (fallback)")
	assert.NotContains(t, out, "hint:")
	assert.NotContains(t, buf.String(), "\x1b[", "no escape codes for a non-terminal writer")
}

func TestRender_TextFailure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FromResult(failedResult()), ""))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "✗ dependency_missing (exit 2)"), out)
	assert.Contains(t, out, "missing: ffmpeg not found and could not be installed")
	assert.Contains(t, out, "install: apt-get: exit status 100")
	assert.Contains(t, out, "hint: install ffmpeg")
	assert.NotContains(t, out, "Diagnostics")
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FromResult(successResult()), FormatJSON))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "success", got["outcome"])
	assert.EqualValues(t, 0, got["exit_code"])
	assert.Equal(t, "/data/camshots/lab_20261016_093000_000.jpg", got["saved_path"])
	frame, ok := got["frame"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 640, frame["width"])
}

func TestRender_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FromResult(failedResult()), FormatYAML))

	var got struct {
		Outcome    string `yaml:"outcome"`
		ExitCode   int    `yaml:"exit_code"`
		Dependency struct {
			Stub     bool     `yaml:"stub"`
			Attempts []string `yaml:"attempts"`
		} `yaml:"dependency"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "dependency_missing", got.Outcome)
	assert.Equal(t, 2, got.ExitCode)
	assert.True(t, got.Dependency.Stub)
	assert.Equal(t, []string{"apt-get: exit status 100"}, got.Dependency.Attempts)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{" JSON ", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	assert.Error(t, Render(&bytes.Buffer{}, Report{}, "xml"))
}
