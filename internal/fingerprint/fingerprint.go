// Package fingerprint builds cheap change-detection signatures for vault files.
package fingerprint

import (
	"fmt"
	"io/fs"
)

// New returns a fingerprint from a file's size and modification time.
// Files whose fingerprints match the cached value skip re-parsing; no
// content read is needed to compute it.
func New(size int64, modTimeUnixNano int64) string {
	return fmt.Sprintf("%d-%d", size, modTimeUnixNano)
}

// FromInfo builds a fingerprint from fs.FileInfo.
func FromInfo(info fs.FileInfo) string {
	return New(info.Size(), info.ModTime().UnixNano())
}
