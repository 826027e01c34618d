package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Sandbox opens absolute paths, but only inside a fixed set of directories.
// Each directory is held as an os.Root, so symlinks cannot escape it either.
type Sandbox struct {
	roots []sandboxRoot
}

type sandboxRoot struct {
	dir  string
	root *os.Root
}

// NewSandbox opens every non-empty directory in dirs. Duplicates are
// ignored. When a path lies in nested roots, the innermost one is used.
func NewSandbox(dirs ...string) (*Sandbox, error) {
	s := &Sandbox{}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}

		abs, err := filepath.Abs(dir)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("new sandbox: %w", err)
		}

		if slices.ContainsFunc(s.roots, func(r sandboxRoot) bool { return r.dir == abs }) {
			continue
		}

		root, err := os.OpenRoot(abs)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("new sandbox: %w", err)
		}

		s.roots = append(s.roots, sandboxRoot{dir: abs, root: root})
	}

	// longest first so the innermost root matches
	slices.SortFunc(s.roots, func(a, b sandboxRoot) int {
		return len(b.dir) - len(a.dir)
	})

	return s, nil
}

// Open opens the file at the absolute path name. Paths outside every root
// fail with fs.ErrPermission.
func (s *Sandbox) Open(name string) (*os.File, error) {
	if !filepath.IsAbs(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	name = filepath.Clean(name)

	for _, r := range s.roots {
		rel, ok := within(r.dir, name)
		if !ok {
			continue
		}
		return r.root.Open(rel)
	}

	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
}

// Dirs returns the sandboxed directories.
func (s *Sandbox) Dirs() []string {
	dirs := make([]string, 0, len(s.roots))
	for _, r := range s.roots {
		dirs = append(dirs, r.dir)
	}
	return dirs
}

func (s *Sandbox) Close() error {
	var errs []error
	for _, r := range s.roots {
		if err := r.root.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.roots = nil
	return errors.Join(errs...)
}

func within(dir, name string) (string, bool) {
	rel, err := filepath.Rel(dir, name)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
