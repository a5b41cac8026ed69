package fsutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxFilenameLength is the byte limit accepted by every target filesystem
	// with room to spare for temp-file suffixes.
	MaxFilenameLength = 200

	// DefaultStem replaces names that sanitize to nothing.
	DefaultStem = "capture"

	// maxExtLength bounds what counts as an extension.
	maxExtLength = 16
)

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Sanitize turns arbitrary input into a filename that is valid on Linux,
// macOS and Windows. The result is never empty, never longer than
// MaxFilenameLength bytes, and keeps the extension of the input.
func Sanitize(raw string) string {
	name := replaceInvalid(raw)
	name = strings.Trim(name, " ")
	name = strings.TrimRight(name, ". ")

	stem, ext := splitExt(name)
	stem = strings.Trim(stem, " ")
	prefix := ""
	if isReserved(stem) {
		prefix = "_"
	}

	stem = truncateBytes(stem, MaxFilenameLength-len(ext)-len(prefix))
	stem = strings.TrimRight(stem, ". ")
	if strings.Trim(stem, "._") == "" {
		stem, prefix = DefaultStem, ""
	}
	return prefix + stem + ext
}

// isReserved reports whether Windows treats the name as a device. Only the
// part before the first dot counts, so CON.tar is reserved too.
func isReserved(stem string) bool {
	first, _, _ := strings.Cut(stem, ".")
	return reservedNames[strings.ToUpper(strings.TrimRight(first, " "))]
}

func replaceInvalid(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i, w := 0, 0; i < len(raw); i += w {
		r, size := utf8.DecodeRuneInString(raw[i:])
		w = size
		if r == utf8.RuneError && size == 1 {
			b.WriteByte('_')
			continue
		}
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitExt separates a short, non-empty extension from the stem.
func splitExt(name string) (string, string) {
	ext := filepath.Ext(name)
	if ext == "." || len(ext) > maxExtLength || ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Identity holds the host fields that make up a capture filename.
// Empty fields and fallback markers are skipped.
type Identity struct {
	Hostname string
	MAC      string
	Username string
	Markers  []string
}

// BuildCaptureName composes host_mac_user_YYYYmmdd_HHMMSS_mmm.jpg and
// sanitizes it.
func BuildCaptureName(id Identity, t time.Time) string {
	skip := make(map[string]bool, len(id.Markers))
	for _, m := range id.Markers {
		skip[m] = true
	}

	var parts []string
	add := func(v string, limit int) {
		v = strings.TrimSpace(v)
		if v == "" || skip[v] {
			return
		}
		parts = append(parts, truncateBytes(v, limit))
	}
	add(id.Hostname, 30)
	add(id.MAC, 20)
	add(id.Username, 20)

	stamp := fmt.Sprintf("%s_%03d", t.Format("20060102_150405"), t.Nanosecond()/int(time.Millisecond))
	parts = append(parts, stamp)

	return Sanitize(strings.Join(parts, "_") + ".jpg")
}

// FallbackCaptureName is used when no identity is available at all.
func FallbackCaptureName(t time.Time) string {
	return fmt.Sprintf("%s_%d.jpg", DefaultStem, t.Unix())
}
