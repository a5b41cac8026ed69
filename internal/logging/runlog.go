package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RunLogTimeLayout is the timestamp layout of every run log line.
const RunLogTimeLayout = "2006-01-02 15:04:05"

// RunLog appends one line per run to a plain-text file. When the file
// cannot be opened or written the line goes to the fallback writer instead.
type RunLog struct {
	mu        sync.Mutex
	path      string
	fallback  io.Writer
	sanitizer *Sanitizer
	now       func() time.Time
}

// NewRunLog creates a run log at dir/name. A nil fallback means stderr.
func NewRunLog(dir, name string, fallback io.Writer) *RunLog {
	if fallback == nil {
		fallback = os.Stderr
	}
	path := ""
	if dir != "" && name != "" {
		path = filepath.Join(dir, name)
	}
	return &RunLog{path: path, fallback: fallback, sanitizer: NewSanitizer(), now: time.Now}
}

// WithSanitizer replaces the default credential redaction, typically with
// the logger's own sanitizer.
func (r *RunLog) WithSanitizer(s *Sanitizer) *RunLog {
	if s != nil {
		r.sanitizer = s
	}
	return r
}

// Path returns the log file path, empty when only the fallback is used.
func (r *RunLog) Path() string {
	return r.path
}

// Append writes a single line. Fields are rendered as sorted key=value
// pairs after the message. It reports whether the file received the line.
func (r *RunLog) Append(level, msg string, fields map[string]string) bool {
	line := r.sanitizer.Sanitize(r.format(level, msg, fields))

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path != "" {
		if err := appendLine(r.path, line); err == nil {
			return true
		}
	}
	_, _ = io.WriteString(r.fallback, line)
	return false
}

func (r *RunLog) format(level, msg string, fields map[string]string) string {
	var b strings.Builder
	b.WriteString(r.now().Format(RunLogTimeLayout))
	b.WriteString(" [")
	b.WriteString(strings.ToUpper(level))
	b.WriteString("] ")
	b.WriteString(oneLine(msg))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := oneLine(fields[k])
		if strings.ContainsAny(v, " \"") {
			v = fmt.Sprintf("%q", v)
		}
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	b.WriteByte('\n')
	return b.String()
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func oneLine(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, s)
}
