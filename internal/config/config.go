package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output"`
	Camera      CameraConfig      `mapstructure:"camera" yaml:"camera"`
	Deps        DepsConfig        `mapstructure:"deps" yaml:"deps"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`

	// Warnings collects values that were replaced by their fallback.
	Warnings []string `mapstructure:"-" yaml:"-"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// OutputConfig configures where and how frames are saved.
type OutputConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	Metadata    bool   `mapstructure:"metadata" yaml:"metadata"`
	JPEGQuality int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
}

// CameraConfig configures the capture session.
type CameraConfig struct {
	// Index is parsed separately so an invalid override falls back to 0.
	Index        int    `mapstructure:"-" yaml:"index"`
	Driver       string `mapstructure:"driver" yaml:"driver"`
	ProbeCount   int    `mapstructure:"probe_count" yaml:"probe_count"`
	OpenTimeout  string `mapstructure:"open_timeout" yaml:"open_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout" yaml:"read_timeout"`
	ReadAttempts int    `mapstructure:"read_attempts" yaml:"read_attempts"`
	RetryDelay   string `mapstructure:"retry_delay" yaml:"retry_delay"`
	Width        int    `mapstructure:"width" yaml:"width"`
	Height       int    `mapstructure:"height" yaml:"height"`
}

// DepsConfig configures on-demand dependency installation.
type DepsConfig struct {
	AutoInstall    bool   `mapstructure:"auto_install" yaml:"auto_install"`
	InstallTimeout string `mapstructure:"install_timeout" yaml:"install_timeout"`
}

// DiagnosticsConfig configures host metadata collection.
type DiagnosticsConfig struct {
	FieldTimeout string `mapstructure:"field_timeout" yaml:"field_timeout"`
	CrashDumps   bool   `mapstructure:"crash_dumps" yaml:"crash_dumps"`
}

// OpenTimeoutDuration returns the parsed camera open timeout.
func (c CameraConfig) OpenTimeoutDuration() time.Duration {
	return parseDuration(c.OpenTimeout, DefaultOpenTimeout)
}

// ReadTimeoutDuration returns the parsed per-read timeout.
func (c CameraConfig) ReadTimeoutDuration() time.Duration {
	return parseDuration(c.ReadTimeout, DefaultReadTimeout)
}

// RetryDelayDuration returns the parsed pause between reads.
func (c CameraConfig) RetryDelayDuration() time.Duration {
	d, err := time.ParseDuration(c.RetryDelay)
	if err != nil || d < 0 {
		return DefaultRetryDelay
	}
	return d
}

// InstallTimeoutDuration returns the parsed install budget.
func (c DepsConfig) InstallTimeoutDuration() time.Duration {
	return parseDuration(c.InstallTimeout, DefaultInstallTimeout)
}

// FieldTimeoutDuration returns the parsed per-field probe budget.
func (c DiagnosticsConfig) FieldTimeoutDuration() time.Duration {
	return parseDuration(c.FieldTimeout, DefaultFieldTimeout)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
