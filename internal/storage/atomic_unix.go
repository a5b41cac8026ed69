//go:build !windows

package storage

import (
	"os"

	"github.com/google/renameio/v2"
)

// WriteFileAtomic writes data so that readers see either the old file or
// the complete new one. On Unix this uses renameio.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
