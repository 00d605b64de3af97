// Package workspace is the filesystem boundary of a run: reading the
// initial file content and writing the final merged tree back. All
// operations resolve against a fixed root and refuse to escape it.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cczona/pants/internal/snapshot"
)

var (
	ErrEmptyRoot    = errors.New("workspace: empty root")
	ErrNotDirectory = errors.New("workspace: root is not a directory")
	ErrOutsideRoot  = errors.New("workspace: path escapes root")
)

// Root locks all file operations to one directory, resolved to an
// absolute, symlink-free path at open time.
type Root struct {
	abs string
}

// Open resolves and validates the workspace root.
func Open(dir string) (*Root, error) {
	if dir == "" {
		return nil, ErrEmptyRoot
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	return &Root{abs: abs}, nil
}

// Dir returns the absolute root directory.
func (r *Root) Dir() string {
	return r.abs
}

func (r *Root) resolve(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
	}
	return filepath.Join(r.abs, clean), nil
}

// ReadFile reads one file relative to the root.
func (r *Root) ReadFile(rel string) ([]byte, error) {
	abs, err := r.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

// WriteFile writes one file relative to the root, creating parent
// directories as needed.
func (r *Root) WriteFile(rel string, content []byte) error {
	abs, err := r.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, content, 0o644)
}

// Walk lists every regular file under the root as sorted, slash
// separated relative paths. Dot-directories are skipped.
func (r *Root) Walk() ([]string, error) {
	var files []string
	err := filepath.WalkDir(r.abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != r.abs && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(name, ".") {
			return nil
		}
		rel, err := filepath.Rel(r.abs, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Snapshot reads the given relative paths into a content-addressed tree.
func (r *Root) Snapshot(paths []string) (*snapshot.Tree, error) {
	files := make([]snapshot.File, 0, len(paths))
	for _, p := range paths {
		content, err := r.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, snapshot.File{Path: p, Content: content})
	}
	return snapshot.New(files...), nil
}

// WriteTree persists every file in the tree back under the root.
func (r *Root) WriteTree(t *snapshot.Tree) error {
	for _, f := range t.Files() {
		if err := r.WriteFile(f.Path, f.Content); err != nil {
			return err
		}
	}
	return nil
}
