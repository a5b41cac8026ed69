package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Normalize replaces invalid or out-of-range values with their defaults and
// records a warning for each replacement. It never fails: a capture run
// always proceeds with a usable configuration.
func Normalize(cfg *Config) {
	n := &normalizer{cfg: cfg}

	n.normalizeLog(&cfg.Log)
	n.normalizeOutput(&cfg.Output)
	n.normalizeCamera(&cfg.Camera)
	n.normalizeDeps(&cfg.Deps)
	n.normalizeDiagnostics(&cfg.Diagnostics)
}

type normalizer struct {
	cfg *Config
}

func (n *normalizer) warn(field string, value interface{}, fallback interface{}) {
	n.cfg.Warnings = append(n.cfg.Warnings,
		fmt.Sprintf("%s: invalid value %v, using %v", field, value, fallback))
}

func (n *normalizer) normalizeLog(c *LogConfig) {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Level) {
		n.warn("log.level", c.Level, "info")
		c.Level = "info"
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if !slices.Contains([]string{"auto", "text", "json"}, c.Format) {
		n.warn("log.format", c.Format, "auto")
		c.Format = "auto"
	}
}

func (n *normalizer) normalizeOutput(c *OutputConfig) {
	c.Dir = strings.TrimSpace(c.Dir)
	if c.Dir == "" {
		n.warn("output.dir", `""`, DefaultOutputDir)
		c.Dir = DefaultOutputDir
	}
	if c.JPEGQuality < 0 || c.JPEGQuality > 100 {
		n.warn("output.jpeg_quality", c.JPEGQuality, DefaultJPEGQuality)
		c.JPEGQuality = DefaultJPEGQuality
	}
	c.LogFile = strings.TrimSpace(c.LogFile)
	if c.LogFile == "" || strings.ContainsAny(c.LogFile, `/\`) {
		n.warn("output.log_file", c.LogFile, DefaultLogFile)
		c.LogFile = DefaultLogFile
	}
}

func (n *normalizer) normalizeCamera(c *CameraConfig) {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if !slices.Contains(Drivers, c.Driver) {
		n.warn("camera.driver", c.Driver, DefaultDriver)
		c.Driver = DefaultDriver
	}
	if c.ProbeCount < 1 || c.ProbeCount > MaxProbeCount {
		n.warn("camera.probe_count", c.ProbeCount, DefaultProbeCount)
		c.ProbeCount = DefaultProbeCount
	}
	if c.ReadAttempts < 1 || c.ReadAttempts > MaxReadAttempts {
		n.warn("camera.read_attempts", c.ReadAttempts, DefaultReadAttempts)
		c.ReadAttempts = DefaultReadAttempts
	}
	n.normalizeDuration("camera.open_timeout", &c.OpenTimeout, DefaultOpenTimeout, false)
	n.normalizeDuration("camera.read_timeout", &c.ReadTimeout, DefaultReadTimeout, false)
	n.normalizeDuration("camera.retry_delay", &c.RetryDelay, DefaultRetryDelay, true)
	if c.Width < 0 || c.Height < 0 {
		n.warn("camera.width/height", fmt.Sprintf("%dx%d", c.Width, c.Height), "driver default")
		c.Width, c.Height = 0, 0
	}
}

func (n *normalizer) normalizeDeps(c *DepsConfig) {
	n.normalizeDuration("deps.install_timeout", &c.InstallTimeout, DefaultInstallTimeout, false)
}

func (n *normalizer) normalizeDiagnostics(c *DiagnosticsConfig) {
	n.normalizeDuration("diagnostics.field_timeout", &c.FieldTimeout, DefaultFieldTimeout, false)
}

func (n *normalizer) normalizeDuration(field string, value *string, def time.Duration, allowZero bool) {
	d, err := time.ParseDuration(strings.TrimSpace(*value))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		n.warn(field, *value, def)
		*value = def.String()
		return
	}
	*value = d.String()
}
