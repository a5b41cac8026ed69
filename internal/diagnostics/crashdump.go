package diagnostics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugo-lorenzo-mato/camshot/internal/core"
)

// CrashDump contains all information captured during a crash.
type CrashDump struct {
	Timestamp time.Time `json:"timestamp"`
	ProcessID int       `json:"process_id"`
	GoVersion string    `json:"go_version"`
	GOOS      string    `json:"goos"`
	GOARCH    string    `json:"goarch"`

	PanicValue string `json:"panic_value"`
	StackTrace string `json:"stack_trace,omitempty"`

	ResourceState ResourceSnapshot `json:"resource_state"`

	RunID        string   `json:"run_id,omitempty"`
	CurrentPhase string   `json:"current_phase,omitempty"`
	CommandArgs  []string `json:"command_args,omitempty"`

	RedactedEnv map[string]string `json:"redacted_env,omitempty"`
}

// CrashDumpWriter handles crash dump generation and persistence.
type CrashDumpWriter struct {
	dir          string
	maxFiles     int
	includeStack bool
	includeEnv   bool
	logger       *slog.Logger

	runID        atomic.Value // string
	currentPhase atomic.Value // string

	mu sync.Mutex
}

// DefaultCrashDumpDir is where dumps go unless told otherwise.
func DefaultCrashDumpDir() string {
	return filepath.Join(os.TempDir(), "camshot-crashdumps")
}

// NewCrashDumpWriter creates a crash dump writer. An empty dir means
// DefaultCrashDumpDir.
func NewCrashDumpWriter(dir string, maxFiles int, includeStack, includeEnv bool, logger *slog.Logger) *CrashDumpWriter {
	if maxFiles <= 0 {
		maxFiles = 10
	}
	if dir == "" {
		dir = DefaultCrashDumpDir()
	}

	w := &CrashDumpWriter{
		dir:          dir,
		maxFiles:     maxFiles,
		includeStack: includeStack,
		includeEnv:   includeEnv,
		logger:       logger,
	}
	w.runID.Store("")
	w.currentPhase.Store("")
	return w
}

// Dir returns the directory dumps are written to.
func (w *CrashDumpWriter) Dir() string {
	return w.dir
}

// SetRunID tags future dumps with the run id.
func (w *CrashDumpWriter) SetRunID(id string) {
	w.runID.Store(id)
}

// SetPhase records the pipeline phase in progress.
func (w *CrashDumpWriter) SetPhase(phase string) {
	w.currentPhase.Store(phase)
}

// Phase returns the phase in progress.
func (w *CrashDumpWriter) Phase() string {
	p, _ := w.currentPhase.Load().(string)
	return p
}

// WriteCrashDump generates and writes a crash dump.
func (w *CrashDumpWriter) WriteCrashDump(panicValue any) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	dump := CrashDump{
		Timestamp:     time.Now().UTC(),
		ProcessID:     os.Getpid(),
		GoVersion:     runtime.Version(),
		GOOS:          runtime.GOOS,
		GOARCH:        runtime.GOARCH,
		PanicValue:    fmt.Sprintf("%v", panicValue),
		ResourceState: TakeSnapshot(),
		CommandArgs:   os.Args,
	}
	if w.includeStack {
		dump.StackTrace = string(debug.Stack())
	}
	dump.RunID, _ = w.runID.Load().(string)
	dump.CurrentPhase, _ = w.currentPhase.Load().(string)
	if w.includeEnv {
		dump.RedactedEnv = redactEnvironment()
	}

	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return "", fmt.Errorf("creating crash dump dir: %w", err)
	}

	filename := fmt.Sprintf("crash-%s.json", dump.Timestamp.Format("2006-01-02T15-04-05.000"))
	path := filepath.Join(w.dir, filename)

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling crash dump: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing crash dump: %w", err)
	}

	_ = w.cleanupOldDumps()
	return path, nil
}

// RecoverAndReturn recovers from panic, writes a dump, and stores an
// unforeseen_error in errPtr instead of re-panicking.
// Usage: defer writer.RecoverAndReturn(&err)
//
//nolint:gocritic // ptrToRefParam: errPtr must be a pointer to modify the caller's error variable
func (w *CrashDumpWriter) RecoverAndReturn(errPtr *error) {
	r := recover()
	if r == nil {
		return
	}
	path, dumpErr := w.WriteCrashDump(r)
	msg := fmt.Sprintf("panic during %s: %v", phaseOr(w.Phase(), "run"), r)
	if dumpErr != nil {
		if w.logger != nil {
			w.logger.Error("failed to write crash dump", "error", dumpErr, "panic", r)
		}
		*errPtr = core.ErrUnforeseen(msg, dumpErr)
		return
	}
	if w.logger != nil {
		w.logger.Error("crash dump written after panic", "path", path, "panic", r)
	}
	*errPtr = core.ErrUnforeseen(msg+" (dump: "+path+")", nil)
}

func phaseOr(phase, def string) string {
	if phase == "" {
		return def
	}
	return phase
}

// cleanupOldDumps removes crash dumps exceeding maxFiles.
func (w *CrashDumpWriter) cleanupOldDumps() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}

	var dumps []os.DirEntry
	for _, e := range entries {
		if isDumpFile(e) {
			dumps = append(dumps, e)
		}
	}
	// Names embed the timestamp, so lexical order is chronological.
	sort.Slice(dumps, func(i, j int) bool { return dumps[i].Name() < dumps[j].Name() })

	for len(dumps) > w.maxFiles {
		path := filepath.Join(w.dir, dumps[0].Name())
		if err := os.Remove(path); err != nil && w.logger != nil {
			w.logger.Warn("failed to remove old crash dump", "path", path, "error", err)
		}
		dumps = dumps[1:]
	}
	return nil
}

func isDumpFile(e os.DirEntry) bool {
	return !e.IsDir() && strings.HasPrefix(e.Name(), "crash-") && strings.HasSuffix(e.Name(), ".json")
}

func redactEnvironment() map[string]string {
	result := make(map[string]string)
	sensitive := []string{
		"TOKEN", "KEY", "SECRET", "PASSWORD", "CREDENTIAL",
		"AUTH", "PRIVATE", "PROXY",
	}

	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		upper := strings.ToUpper(key)
		redact := false
		for _, s := range sensitive {
			if strings.Contains(upper, s) {
				redact = true
				break
			}
		}
		if redact {
			value = "[REDACTED]"
		}
		result[key] = value
	}
	return result
}

// LoadLatestCrashDump loads the most recent crash dump from the directory.
func LoadLatestCrashDump(dir string) (*CrashDump, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", fmt.Errorf("reading crash dump dir: %w", err)
	}

	newest := ""
	for _, e := range entries {
		if isDumpFile(e) && e.Name() > newest {
			newest = e.Name()
		}
	}
	if newest == "" {
		return nil, "", fmt.Errorf("no crash dumps found")
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, "", fmt.Errorf("opening crash dump dir: %w", err)
	}
	defer func() { _ = root.Close() }()

	data, err := root.ReadFile(newest)
	if err != nil {
		return nil, "", fmt.Errorf("reading crash dump: %w", err)
	}

	var dump CrashDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, "", fmt.Errorf("parsing crash dump: %w", err)
	}
	return &dump, filepath.Join(dir, newest), nil
}
