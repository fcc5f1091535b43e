package metastore

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/semcode-mcp/pkg/types"
)

// mtimeTolerance absorbs filesystem timestamp granularity when only mtimes
// are comparable.
const mtimeTolerance = 0.1

// Fingerprint captures the current identity of a file: SHA-256 of its content
// plus its modification time in float seconds.
func Fingerprint(path string) (types.Fingerprint, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return types.Fingerprint{}, fmt.Errorf("failed to fingerprint %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return types.Fingerprint{}, fmt.Errorf("failed to fingerprint %s: %w", path, err)
	}

	sum := sha256.Sum256(content)
	return types.Fingerprint{
		Hash:  sum[:],
		MTime: float64(info.ModTime().UnixNano()) / 1e9,
	}, nil
}

// Unchanged reports whether path still matches the stored fingerprint.
//
// Content hash is authoritative: a hash match means unchanged even if the
// mtime drifted (touch without edit), a mismatch means changed. Only when
// hashes cannot be compared does the mtime decide, within tolerance. When
// nothing can be compared the file counts as changed, so doubt resolves
// toward re-indexing.
func Unchanged(path string, stored types.Fingerprint) bool {
	if len(stored.Hash) > 0 {
		if content, err := os.ReadFile(path); err == nil {
			sum := sha256.Sum256(content)
			return bytes.Equal(sum[:], stored.Hash)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	mtime := float64(info.ModTime().UnixNano()) / 1e9
	diff := mtime - stored.MTime
	if diff < 0 {
		diff = -diff
	}
	return diff <= mtimeTolerance
}

// NormalizePath converts path to its canonical store key: absolute with "."
// and ".." segments resolved. Symlinks are preserved, not resolved, so two
// views of the same file through different links stay distinct keys.
func NormalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to normalize %s: %w", path, err)
	}
	return abs, nil
}
