package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hugo-lorenzo-mato/camshot/internal/fallback"
	"github.com/hugo-lorenzo-mato/camshot/internal/fsutil"
)

// Field keys reported by the default collector.
const (
	FieldHostname     = "hostname"
	FieldMAC          = "mac"
	FieldUsername     = "username"
	FieldPlatform     = "platform"
	FieldKernel       = "kernel"
	FieldHardwareID   = "hardware_id"
	FieldCPUModel     = "cpu_model"
	FieldMemory       = "memory"
	FieldDiskFree     = "disk_free"
	FieldVideoDevices = "video_devices"
	FieldGoVersion    = "go_version"
	FieldPID          = "pid"
)

// Fallback markers reported when every source of a field fails.
const (
	MarkerUnknownHost = "unknown_host"
	MarkerUnknownMAC  = "unknown-mac"
	MarkerUnknownUser = "unknown_user"
	MarkerUnknown     = "unknown"
	MarkerNone        = "none"
)

// DefaultFieldTimeout bounds each field probe.
const DefaultFieldTimeout = 2 * time.Second

// Field is one collected diagnostic datum.
type Field struct {
	Key      string `json:"key" yaml:"key"`
	Value    string `json:"value" yaml:"value"`
	Source   string `json:"source,omitempty" yaml:"source,omitempty"`
	Fallback bool   `json:"fallback" yaml:"fallback"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the ordered result of one collection.
type Report struct {
	Fields      []Field       `json:"fields" yaml:"fields"`
	CollectedAt time.Time     `json:"collected_at" yaml:"collected_at"`
	Duration    time.Duration `json:"duration_ns" yaml:"duration"`
}

// Lookup returns the field with the given key.
func (r Report) Lookup(key string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Value returns the value of key, or an empty string if absent.
func (r Report) Value(key string) string {
	f, _ := r.Lookup(key)
	return f.Value
}

// Map flattens the report into key/value pairs.
func (r Report) Map() map[string]string {
	m := make(map[string]string, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Key] = f.Value
	}
	return m
}

// Identity returns the fields that name a capture file.
func (r Report) Identity() fsutil.Identity {
	return fsutil.Identity{
		Hostname: r.Value(FieldHostname),
		MAC:      r.Value(FieldMAC),
		Username: r.Value(FieldUsername),
		Markers:  []string{MarkerUnknownHost, MarkerUnknownMAC, MarkerUnknownUser},
	}
}

// FieldSpec describes how one field is probed.
type FieldSpec struct {
	Key       string
	Marker    string
	Sources   []fallback.Candidate[string]
	Normalize func(string) string
}

// Collector probes every field independently. It never fails.
type Collector struct {
	timeout time.Duration
	specs   []FieldSpec
	logger  *slog.Logger
}

// CollectorOptions configures the default field set.
type CollectorOptions struct {
	FieldTimeout time.Duration
	// DiskPath is measured for disk_free; empty means the working directory.
	DiskPath string
	Executor *SafeExecutor
	Logger   *slog.Logger
}

// NewCollector creates a collector with the default field set.
func NewCollector(opts CollectorOptions) *Collector {
	if opts.FieldTimeout <= 0 {
		opts.FieldTimeout = DefaultFieldTimeout
	}
	if opts.Executor == nil {
		opts.Executor = NewSafeExecutor(opts.Logger)
	}
	p := newHostProbes(opts.Executor, opts.DiskPath)
	return &Collector{
		timeout: opts.FieldTimeout,
		specs:   p.specs(),
		logger:  opts.Logger,
	}
}

// NewCollectorWithFields creates a collector over an explicit field set.
func NewCollectorWithFields(timeout time.Duration, logger *slog.Logger, specs ...FieldSpec) *Collector {
	if timeout <= 0 {
		timeout = DefaultFieldTimeout
	}
	return &Collector{timeout: timeout, specs: specs, logger: logger}
}

// Override replaces the spec with the same key, or appends it.
func (c *Collector) Override(spec FieldSpec) {
	for i := range c.specs {
		if c.specs[i].Key == spec.Key {
			c.specs[i] = spec
			return
		}
	}
	c.specs = append(c.specs, spec)
}

// Keys lists the field keys in collection order.
func (c *Collector) Keys() []string {
	keys := make([]string, len(c.specs))
	for i, s := range c.specs {
		keys[i] = s.Key
	}
	return keys
}

// Collect probes every field in order.
func (c *Collector) Collect(ctx context.Context) Report {
	start := time.Now()
	report := Report{
		Fields:      make([]Field, 0, len(c.specs)),
		CollectedAt: start,
	}
	for _, spec := range c.specs {
		f := c.probe(ctx, spec)
		if f.Fallback && c.logger != nil {
			c.logger.Debug("diagnostic field fell back", "field", f.Key, "marker", f.Value, "error", f.Error)
		}
		report.Fields = append(report.Fields, f)
	}
	report.Duration = time.Since(start)
	return report
}

func (c *Collector) probe(ctx context.Context, spec FieldSpec) (f Field) {
	f = Field{Key: spec.Key, Value: spec.Marker, Fallback: true}
	defer func() {
		if r := recover(); r != nil {
			f = Field{Key: spec.Key, Value: spec.Marker, Fallback: true, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	v, attempt, err := fallback.First(fctx, spec.Sources...)
	if err != nil {
		f.Error = err.Error()
		return f
	}
	if spec.Normalize != nil {
		v = spec.Normalize(v)
	}
	if v == "" {
		f.Error = "empty value"
		return f
	}
	f.Value = v
	f.Source = attempt.Name
	f.Fallback = false
	return f
}
