package config

import "time"

// Default values. Environment overrides fall back to these when absent or
// invalid.
const (
	DefaultOutputDir      = "camshots"
	DefaultLogFile        = "capture_log.txt"
	DefaultJPEGQuality    = 85
	DefaultCameraIndex    = 0
	DefaultDriver         = "auto"
	DefaultProbeCount     = 1
	DefaultReadAttempts   = 3
	DefaultOpenTimeout    = 10 * time.Second
	DefaultReadTimeout    = 5 * time.Second
	DefaultRetryDelay     = 100 * time.Millisecond
	DefaultInstallTimeout = 120 * time.Second
	DefaultFieldTimeout   = 2 * time.Second

	// MaxProbeCount bounds camera index scanning.
	MaxProbeCount = 10
	// MaxReadAttempts bounds the read retry budget.
	MaxReadAttempts = 10
)

// Drivers lists the accepted camera.driver values.
var Drivers = []string{"auto", "ffmpeg", "v4l2"}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Output: OutputConfig{
			Dir:         DefaultOutputDir,
			Metadata:    true,
			JPEGQuality: DefaultJPEGQuality,
			LogFile:     DefaultLogFile,
		},
		Camera: CameraConfig{
			Index:        DefaultCameraIndex,
			Driver:       DefaultDriver,
			ProbeCount:   DefaultProbeCount,
			OpenTimeout:  DefaultOpenTimeout.String(),
			ReadTimeout:  DefaultReadTimeout.String(),
			ReadAttempts: DefaultReadAttempts,
			RetryDelay:   DefaultRetryDelay.String(),
		},
		Deps: DepsConfig{
			AutoInstall:    true,
			InstallTimeout: DefaultInstallTimeout.String(),
		},
		Diagnostics: DiagnosticsConfig{
			FieldTimeout: DefaultFieldTimeout.String(),
			CrashDumps:   true,
		},
	}
}
