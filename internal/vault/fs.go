package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/fingerprint"
	"github.com/starford/ansuz/internal/models"
)

var attachmentExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {},
	".webp": {}, ".svg": {}, ".pdf": {},
}

// KindOf classifies a vault file by its extension.
func KindOf(path string) models.Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md":
		return models.KindMarkdown
	case ".canvas":
		return models.KindCanvas
	}
	if _, ok := attachmentExts[ext]; ok {
		return models.KindAttachment
	}
	return models.KindOther
}

// FS implements Provider backed by the local file system.
type FS struct {
	root   string // absolute path to vault directory
	ignore map[string]struct{}
}

// NewFS creates a new FS provider rooted at the given directory, skipping
// any directory whose name appears in ignoreDirs. The root must exist.
func NewFS(root string, ignoreDirs []string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("vault: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault: root is not a directory: %s", abs)
	}
	ignore := make(map[string]struct{}, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ignore[d] = struct{}{}
	}
	return &FS{root: abs, ignore: ignore}, nil
}

// Root returns the absolute vault root path.
func (f *FS) Root() string { return f.root }

// Indexable reports whether a vault-relative path should be indexed:
// not under an ignored directory and not a dotfile.
func (f *FS) Indexable(rel string) bool {
	rel = filepath.ToSlash(rel)
	if rel == "" || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if _, ignored := f.ignore[part]; ignored {
			return false
		}
		if strings.HasPrefix(part, ".") {
			return false
		}
	}
	return true
}

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("vault: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("vault: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("vault: path escapes vault root: %s", rel)
	}
	return abs, nil
}

// List walks the vault and returns metadata for every indexable file.
func (f *FS) List() ([]models.FileMeta, error) {
	var out []models.FileMeta
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		name := d.Name()
		if d.IsDir() {
			if p == f.root {
				return nil
			}
			if _, ignored := f.ignore[name]; ignored || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		out = append(out, models.FileMeta{
			Path:        rel,
			Size:        info.Size(),
			Kind:        KindOf(rel),
			Fingerprint: fingerprint.FromInfo(info),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("vault: read %s: %w", path, err)
	}
	return data, nil
}

// Stat returns current metadata for a single vault file.
func (f *FS) Stat(path string) (models.FileMeta, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return models.FileMeta{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.FileMeta{}, apperr.ErrNotFound
		}
		return models.FileMeta{}, fmt.Errorf("vault: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return models.FileMeta{}, apperr.ErrNotFound
	}
	rel := filepath.ToSlash(path)
	return models.FileMeta{
		Path:        rel,
		Size:        info.Size(),
		Kind:        KindOf(rel),
		Fingerprint: fingerprint.FromInfo(info),
	}, nil
}
