package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/camshot/internal/core"
	"github.com/hugo-lorenzo-mato/camshot/internal/testutil"
)

func TestExecute_Help(t *testing.T) {
	run := runCLI(t, "--help")
	assert.Equal(t, core.ExitSuccess, run.code)
	assert.Contains(t, run.stdout, "camshot")
	assert.Contains(t, run.stdout, "--no-install")
}

func TestGetVersionFunction(t *testing.T) {
	SetVersion("test-version-func", "test-commit", "test-date")
	assert.Equal(t, "test-version-func", GetVersion())
}

func TestVersionCommand(t *testing.T) {
	SetVersion("v1.2.3", "abc123def", "2026-10-16")

	run := runCLI(t, "version")

	assert.Equal(t, core.ExitSuccess, run.code)
	assert.Contains(t, run.stdout, "camshot v1.2.3")
	assert.Contains(t, run.stdout, "commit: abc123def")
	assert.Contains(t, run.stdout, "built:  2026-10-16")
}

func TestCapture_DefaultCommandSucceeds(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	dev := testutil.NewMockDevice(testutil.JPEG(t, 32, 24))
	fakeCapture(t, dev)

	run := runCLI(t, "--config", writeConfig(t, ""), "--output", dir, "--format", "json")

	require.Equal(t, core.ExitSuccess, run.code, run.stderr)
	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(run.stdout), &rep))
	assert.Equal(t, "success", rep["outcome"])
	saved, _ := rep["saved_path"].(string)
	assert.Equal(t, dir, filepath.Dir(saved))
	assert.True(t, strings.HasPrefix(filepath.Base(saved), "lab-pc_00-1a-2b-3c-4d-5e_alice_"), saved)
	assert.FileExists(t, saved)
	assert.FileExists(t, filepath.Join(dir, "capture_log.txt"))
}

func TestCapture_ExplicitSubcommand(t *testing.T) {
	dev := testutil.NewMockDevice(testutil.JPEG(t, 8, 8))
	fakeCapture(t, dev)

	run := runCLI(t, "capture", "--config", writeConfig(t, ""), "-o", t.TempDir())

	assert.Equal(t, core.ExitSuccess, run.code, run.stderr)
	assert.True(t, strings.HasPrefix(run.stdout, "✓ success (exit 0)"), run.stdout)
}

func TestCapture_CameraFlagAndEnv(t *testing.T) {
	t.Run("flag", func(t *testing.T) {
		dev := testutil.NewMockDevice(testutil.JPEG(t, 8, 8))
		seen := fakeCapture(t, dev)

		run := runCLI(t, "--config", writeConfig(t, ""), "-o", t.TempDir(), "-c", "2")

		require.Equal(t, core.ExitSuccess, run.code, run.stderr)
		assert.Equal(t, 2, seen.Camera.Index)
		assert.Equal(t, 2, dev.Calls()[0].Args)
	})

	t.Run("invalid env falls back to 0", func(t *testing.T) {
		t.Setenv("CAMSHOT_CAMERA_INDEX", "front")
		t.Setenv("CAMSHOT_OUTPUT_DIR", t.TempDir())
		dev := testutil.NewMockDevice(testutil.JPEG(t, 8, 8))
		seen := fakeCapture(t, dev)

		run := runCLI(t, "--config", writeConfig(t, ""))

		require.Equal(t, core.ExitSuccess, run.code, run.stderr)
		assert.Equal(t, 0, seen.Camera.Index)
		assert.Equal(t, os.Getenv("CAMSHOT_OUTPUT_DIR"), seen.Output.Dir)
		assert.Contains(t, run.stderr, "configuration value replaced")
		assert.Contains(t, run.stderr, "camera.index")
	})
}

func TestCapture_NoInstallFlag(t *testing.T) {
	seen := fakeCapture(t, testutil.NewMockDevice(testutil.JPEG(t, 8, 8)))

	run := runCLI(t, "--config", writeConfig(t, "deps:\n  auto_install: true\n"), "-o", t.TempDir(), "--no-install")

	require.Equal(t, core.ExitSuccess, run.code, run.stderr)
	assert.False(t, seen.Deps.AutoInstall)
}

func TestCapture_FailureExitCodes(t *testing.T) {
	t.Run("no camera", func(t *testing.T) {
		dev := testutil.NewMockDevice(nil).WithOpenTimeout()
		fakeCapture(t, dev)

		run := runCLI(t, "--config", writeConfig(t, ""), "-o", t.TempDir())

		assert.Equal(t, core.ExitNoCamera, run.code)
		assert.Contains(t, run.stdout, "✗ no_camera (exit 4)")
		assert.Contains(t, run.stdout, "hint:")
	})

	t.Run("storage unavailable", func(t *testing.T) {
		fakeCapture(t, testutil.NewMockDevice(testutil.JPEG(t, 8, 8)))

		run := runCLI(t, "--config", writeConfig(t, ""), "-o", testutil.BlockedDir(t), "--format", "yaml")

		assert.Equal(t, core.ExitStorageUnavailable, run.code)
		assert.Contains(t, run.stdout, "outcome: storage_unavailable")
		assert.Contains(t, run.stderr, "outcome=storage_unavailable", "run log goes to stderr")
	})
}

func TestExecute_UsageErrors(t *testing.T) {
	t.Run("unknown format", func(t *testing.T) {
		fakeCapture(t, testutil.NewMockDevice(nil))
		run := runCLI(t, "--config", writeConfig(t, ""), "--format", "xml")
		assert.Equal(t, core.ExitUnforeseen, run.code)
		assert.Contains(t, run.stderr, `unknown format "xml"`)
	})

	t.Run("broken config file", func(t *testing.T) {
		path := testutil.TempFile(t, t.TempDir(), "bad.yaml", "camera: [unterminated\n")
		run := runCLI(t, "--config", path)
		assert.Equal(t, core.ExitUnforeseen, run.code)
		assert.Contains(t, run.stderr, "reading config")
	})
}
