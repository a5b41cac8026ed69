package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "CAMSHOT"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: EnvPrefix,
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: EnvPrefix,
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (CAMSHOT_*)
// 3. Project config (.camshot.yaml in current directory)
// 4. User config (~/.config/camshot/.camshot.yaml)
// 5. Defaults
//
// Only an unreadable config file is an error; invalid values fall back to
// their defaults and are recorded in Config.Warnings.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".camshot")
		l.v.SetConfigType("yaml")

		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "camshot"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	l.coerceTyped(&cfg)
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Camera.Index = l.cameraIndex(&cfg)
	Normalize(&cfg)

	return &cfg, nil
}

// cameraIndex parses camera.index leniently.
func (l *Loader) cameraIndex(cfg *Config) int {
	raw := strings.TrimSpace(l.v.GetString("camera.index"))
	if raw == "" {
		return DefaultCameraIndex
	}
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 {
		cfg.Warnings = append(cfg.Warnings,
			fmt.Sprintf("camera.index %q is not a non-negative integer, using %d", raw, DefaultCameraIndex))
		return DefaultCameraIndex
	}
	return idx
}

// coerceTyped replaces numeric and boolean values that do not parse with
// their defaults so Unmarshal cannot fail on them.
func (l *Loader) coerceTyped(cfg *Config) {
	d := DefaultConfig()
	ints := map[string]int{
		"output.jpeg_quality":  d.Output.JPEGQuality,
		"camera.probe_count":   d.Camera.ProbeCount,
		"camera.read_attempts": d.Camera.ReadAttempts,
		"camera.width":         d.Camera.Width,
		"camera.height":        d.Camera.Height,
	}
	bools := map[string]bool{
		"output.metadata":         d.Output.Metadata,
		"deps.auto_install":       d.Deps.AutoInstall,
		"diagnostics.crash_dumps": d.Diagnostics.CrashDumps,
	}

	for _, key := range sortedKeys(ints) {
		raw := l.v.Get(key)
		if _, err := cast.ToIntE(raw); err != nil {
			l.v.Set(key, ints[key])
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("%s %q is not an integer, using %d", key, fmt.Sprint(raw), ints[key]))
		}
	}
	for _, key := range sortedKeys(bools) {
		raw := l.v.Get(key)
		if _, err := cast.ToBoolE(raw); err != nil {
			l.v.Set(key, bools[key])
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("%s %q is not a boolean, using %t", key, fmt.Sprint(raw), bools[key]))
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("log.format", d.Log.Format)

	l.v.SetDefault("output.dir", d.Output.Dir)
	l.v.SetDefault("output.metadata", d.Output.Metadata)
	l.v.SetDefault("output.jpeg_quality", d.Output.JPEGQuality)
	l.v.SetDefault("output.log_file", d.Output.LogFile)

	l.v.SetDefault("camera.index", d.Camera.Index)
	l.v.SetDefault("camera.driver", d.Camera.Driver)
	l.v.SetDefault("camera.probe_count", d.Camera.ProbeCount)
	l.v.SetDefault("camera.open_timeout", d.Camera.OpenTimeout)
	l.v.SetDefault("camera.read_timeout", d.Camera.ReadTimeout)
	l.v.SetDefault("camera.read_attempts", d.Camera.ReadAttempts)
	l.v.SetDefault("camera.retry_delay", d.Camera.RetryDelay)
	l.v.SetDefault("camera.width", d.Camera.Width)
	l.v.SetDefault("camera.height", d.Camera.Height)

	l.v.SetDefault("deps.auto_install", d.Deps.AutoInstall)
	l.v.SetDefault("deps.install_timeout", d.Deps.InstallTimeout)

	l.v.SetDefault("diagnostics.field_timeout", d.Diagnostics.FieldTimeout)
	l.v.SetDefault("diagnostics.crash_dumps", d.Diagnostics.CrashDumps)
}
