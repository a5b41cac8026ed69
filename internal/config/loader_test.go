package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp isolates a test from any .camshot.yaml in the working directory.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestLoader_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
	assert.Equal(t, DefaultOutputDir, cfg.Output.Dir)
	assert.True(t, cfg.Output.Metadata)
	assert.Equal(t, DefaultJPEGQuality, cfg.Output.JPEGQuality)
	assert.Equal(t, DefaultLogFile, cfg.Output.LogFile)
	assert.Equal(t, 0, cfg.Camera.Index)
	assert.Equal(t, "auto", cfg.Camera.Driver)
	assert.Equal(t, 1, cfg.Camera.ProbeCount)
	assert.Equal(t, 3, cfg.Camera.ReadAttempts)
	assert.Equal(t, 10*time.Second, cfg.Camera.OpenTimeoutDuration())
	assert.Equal(t, 5*time.Second, cfg.Camera.ReadTimeoutDuration())
	assert.Equal(t, 100*time.Millisecond, cfg.Camera.RetryDelayDuration())
	assert.True(t, cfg.Deps.AutoInstall)
	assert.Equal(t, 2*time.Minute, cfg.Deps.InstallTimeoutDuration())
	assert.Equal(t, 2*time.Second, cfg.Diagnostics.FieldTimeoutDuration())
	assert.Empty(t, cfg.Warnings)
}

func TestLoader_EnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CAMSHOT_OUTPUT_DIR", "/srv/shots")
	t.Setenv("CAMSHOT_CAMERA_INDEX", "2")
	t.Setenv("CAMSHOT_LOG_LEVEL", "debug")
	t.Setenv("CAMSHOT_CAMERA_READ_ATTEMPTS", "5")
	t.Setenv("CAMSHOT_DEPS_AUTO_INSTALL", "false")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/shots", cfg.Output.Dir)
	assert.Equal(t, 2, cfg.Camera.Index)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Camera.ReadAttempts)
	assert.False(t, cfg.Deps.AutoInstall)
	assert.Empty(t, cfg.Warnings)
}

func TestLoader_InvalidCameraIndexFallsBack(t *testing.T) {
	for _, raw := range []string{"abc", "-1", "1.5"} {
		t.Run(raw, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv("CAMSHOT_CAMERA_INDEX", raw)

			cfg, err := NewLoader().Load()
			require.NoError(t, err)

			assert.Equal(t, DefaultCameraIndex, cfg.Camera.Index)
			require.Len(t, cfg.Warnings, 1)
			assert.Contains(t, cfg.Warnings[0], "camera.index")
		})
	}
}

func TestLoader_InvalidTypedValuesFallBack(t *testing.T) {
	tests := []struct {
		env   string
		value string
		key   string
		check func(t *testing.T, cfg *Config)
	}{
		{"CAMSHOT_CAMERA_PROBE_COUNT", "abc", "camera.probe_count", func(t *testing.T, cfg *Config) {
			assert.Equal(t, 1, cfg.Camera.ProbeCount)
		}},
		{"CAMSHOT_OUTPUT_JPEG_QUALITY", "high", "output.jpeg_quality", func(t *testing.T, cfg *Config) {
			assert.Equal(t, DefaultJPEGQuality, cfg.Output.JPEGQuality)
		}},
		{"CAMSHOT_OUTPUT_METADATA", "maybe", "output.metadata", func(t *testing.T, cfg *Config) {
			assert.True(t, cfg.Output.Metadata)
		}},
		{"CAMSHOT_DEPS_AUTO_INSTALL", "sometimes", "deps.auto_install", func(t *testing.T, cfg *Config) {
			assert.True(t, cfg.Deps.AutoInstall)
		}},
		{"CAMSHOT_CAMERA_WIDTH", "wide", "camera.width", func(t *testing.T, cfg *Config) {
			assert.Equal(t, DefaultConfig().Camera.Width, cfg.Camera.Width)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv(tt.env, tt.value)

			cfg, err := NewLoader().Load()
			require.NoError(t, err)

			tt.check(t, cfg)
			require.Len(t, cfg.Warnings, 1)
			assert.Contains(t, cfg.Warnings[0], tt.key)
			assert.Contains(t, cfg.Warnings[0], tt.value)
		})
	}
}

func TestLoader_InvalidTypedValuesInFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "camshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("camera:\n  read_attempts: lots\n  probe_count: 4\n"), 0o600))

	cfg, err := NewLoader().WithConfigFile(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Camera.ReadAttempts)
	assert.Equal(t, 4, cfg.Camera.ProbeCount)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "camera.read_attempts")
}

func TestLoader_BlankOutputDirFallsBack(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CAMSHOT_OUTPUT_DIR", "   ")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultOutputDir, cfg.Output.Dir)
	assert.NotEmpty(t, cfg.Warnings)
}

func TestLoader_ConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	content := `
output:
  dir: /data/cam
  jpeg_quality: 70
camera:
  index: 1
  driver: ffmpeg
  read_timeout: 2s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".camshot.yaml"), []byte(content), 0o600))

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/cam", cfg.Output.Dir)
	assert.Equal(t, 70, cfg.Output.JPEGQuality)
	assert.Equal(t, 1, cfg.Camera.Index)
	assert.Equal(t, "ffmpeg", cfg.Camera.Driver)
	assert.Equal(t, 2*time.Second, cfg.Camera.ReadTimeoutDuration())
}

func TestLoader_EnvBeatsConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".camshot.yaml"),
		[]byte("output:\n  dir: /from/file\n"), 0o600))
	t.Setenv("CAMSHOT_OUTPUT_DIR", "/from/env")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Output.Dir)
}

func TestLoader_ExplicitConfigFileMissing(t *testing.T) {
	dir := chdirTemp(t)

	_, err := NewLoader().WithConfigFile(filepath.Join(dir, "missing.yaml")).Load()
	assert.Error(t, err)
}

func TestLoader_MalformedConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: [unclosed"), 0o600))

	_, err := NewLoader().WithConfigFile(path).Load()
	assert.Error(t, err)
}
