// Package storage selects a writable output directory and writes files into
// it atomically.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/camshot/internal/core"
	"github.com/hugo-lorenzo-mato/camshot/internal/fallback"
)

// ProbePattern names the hidden write-test file created in each candidate.
const ProbePattern = ".camshot-write-test-*"

// TempSubdir is the folder created under the system temp dir.
const TempSubdir = "camshots"

// Directory is the selected output directory.
type Directory struct {
	Path string
	// Index is the position of Path in the normalized candidate list.
	Index int
}

// Locator picks the first candidate directory that can be created and
// written to.
type Locator struct {
	mkdirAll func(path string, perm os.FileMode) error
	probe    func(dir string) error
	logger   *slog.Logger
}

// NewLocator creates a locator backed by the real filesystem.
func NewLocator(logger *slog.Logger) *Locator {
	return &Locator{
		mkdirAll: os.MkdirAll,
		probe:    writeProbe,
		logger:   logger,
	}
}

// DefaultCandidates returns the ordered candidate list: the user directory,
// the camshots folder under the system temp dir, then the working directory.
func DefaultCandidates(userDir string) []string {
	candidates := []string{userDir, filepath.Join(os.TempDir(), TempSubdir)}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, wd)
	} else {
		candidates = append(candidates, ".")
	}
	return candidates
}

// Normalize cleans, absolutizes and de-duplicates candidates, dropping
// blank entries. Order is preserved.
func Normalize(candidates []string) []string {
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		abs, err := filepath.Abs(filepath.Clean(c))
		if err != nil {
			abs = filepath.Clean(c)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out
}

// Remaining returns the normalized candidates that come after chosen.
func Remaining(candidates []string, chosen string) []string {
	norm := Normalize(candidates)
	target := Normalize([]string{chosen})
	if len(target) == 0 {
		return norm
	}
	for i, c := range norm {
		if c == target[0] {
			return norm[i+1:]
		}
	}
	return norm
}

// Locate returns the first candidate that passes Check. When none does the
// error is a storage_unavailable *core.Error naming every candidate's
// failure; a cancelled context yields interrupted.
func (l *Locator) Locate(ctx context.Context, candidates []string) (Directory, error) {
	norm := Normalize(candidates)
	if len(norm) == 0 {
		return Directory{}, core.ErrStorageUnavailable("no candidate directories", nil)
	}

	chain := make([]fallback.Candidate[Directory], len(norm))
	for i, dir := range norm {
		chain[i] = fallback.Candidate[Directory]{
			Name: dir,
			Try: func(context.Context) (Directory, error) {
				if err := l.Check(dir); err != nil {
					return Directory{}, err
				}
				return Directory{Path: dir, Index: i}, nil
			},
		}
	}

	d, _, err := fallback.First(ctx, chain...)
	if err == nil {
		if l.logger != nil {
			l.logger.Debug("output directory selected", "dir", d.Path, "candidate", d.Index)
		}
		return d, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Directory{}, core.ErrInterrupted(ctxErr)
	}
	return Directory{}, core.ErrStorageUnavailable(
		fmt.Sprintf("none of %d candidate directories is writable", len(norm)), err)
}

// Check creates dir if needed and verifies a file can be written in it.
func (l *Locator) Check(dir string) error {
	if err := l.mkdirAll(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := l.probe(dir); err != nil {
		return fmt.Errorf("write test: %w", err)
	}
	return nil
}

// writeProbe creates, writes, syncs and removes a hidden file in dir. The
// file is removed on every path.
func writeProbe(dir string) (err error) {
	f, err := os.CreateTemp(dir, ProbePattern)
	if err != nil {
		return err
	}
	name := f.Name()
	defer func() {
		if rmErr := os.Remove(name); rmErr != nil && err == nil {
			err = rmErr
		}
	}()

	if _, err = f.WriteString("camshot"); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
