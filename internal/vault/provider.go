// Package vault defines the read-only vault file-system abstraction.
package vault

import "github.com/starford/ansuz/internal/models"

// Provider is the interface for vault file access.
type Provider interface {
	// List returns metadata for every indexable file under the vault root.
	List() ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Stat returns current metadata for a single file, or apperr.ErrNotFound.
	Stat(path string) (models.FileMeta, error)
}
