package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/skilltally/internal/models"
)

// TempPrefix prefixes the temporary files created by atomic writes.
const TempPrefix = ".skilltally-tmp-"

// FS implements Provider backed by the local file system.
type FS struct {
	root      string // absolute path to notes directory
	ext       string
	recursive bool
	exclude   []string
}

// FSOption configures an FS provider.
type FSOption func(*FS)

// WithExtension sets the note file extension (default ".md").
func WithExtension(ext string) FSOption {
	return func(f *FS) {
		if ext != "" {
			f.ext = ext
		}
	}
}

// WithExclude skips notes and directories whose slash-separated path
// relative to the root matches any of the glob patterns ("**" allowed).
func WithExclude(patterns ...string) FSOption {
	return func(f *FS) {
		f.exclude = append(f.exclude, patterns...)
	}
}

// WithRecursive makes List descend into subdirectories.
func WithRecursive(recursive bool) FSOption {
	return func(f *FS) {
		f.recursive = recursive
	}
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string, opts ...FSOption) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	f := &FS{root: abs, ext: ".md"}
	for _, opt := range opts {
		opt(f)
	}
	for _, p := range f.exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("storage: invalid exclude pattern %q", p)
		}
	}
	return f, nil
}

// Root returns the absolute notes directory.
func (f *FS) Root() string { return f.root }

// Extension returns the note file extension.
func (f *FS) Extension() string { return f.ext }

// Recursive reports whether List descends into subdirectories.
func (f *FS) Recursive() bool { return f.recursive }

// IsNote reports whether name looks like a note file (right extension, not a temp file).
func (f *FS) IsNote(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, f.ext) && !strings.HasPrefix(base, TempPrefix)
}

// Excluded reports whether rel (slash-separated, relative to the root)
// matches an exclude pattern.
func (f *FS) Excluded(rel string) bool {
	for _, p := range f.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// safePath resolves a relative path against the notes root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes notes root: %s", rel)
	}
	return abs, nil
}

// List walks dir (relative to root) and returns metadata for every note file.
func (f *FS) List(dir string) ([]models.NoteMetadata, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.NoteMetadata
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, _ := filepath.Rel(f.root, p)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if p != base && (!f.recursive || f.Excluded(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !f.IsNote(d.Name()) || f.Excluded(rel) {
			return nil
		}
		// Symlinked notes are followed; dangling links and links to
		// directories are skipped.
		info, err := os.Stat(p)
		if err != nil {
			if d.Type()&fs.ModeSymlink != 0 && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		out = append(out, models.NoteMetadata{
			Path:      rel,
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a note file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically replaces the content of a note file.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	// Write through symlinks so the link itself survives.
	if target, err := filepath.EvalSymlinks(abs); err == nil {
		abs = target
	}
	return WriteFileAtomic(abs, content)
}

// WriteFileAtomic writes content to path: tmp file → fsync → rename.
// Either the full new content is visible at path or the old content remains.
// An existing file keeps its permission bits.
func WriteFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
