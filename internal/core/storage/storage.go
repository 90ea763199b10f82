// Package storage resolves downloaded artifacts inside the storage root.
package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/guiyumin/mediagrab/internal/core/fault"
)

const opResolve = "resolve file"

// Store is the directory all downloads are written to and served from
type Store struct {
	root string
}

// New creates a store rooted at dir. The path is made absolute.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fault.Wrap(opResolve, err)
	}
	return &Store{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute storage directory
func (s *Store) Root() string { return s.root }

// Ensure creates the storage directory if it is missing
func (s *Store) Ensure() error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fault.Wrap(opResolve, err)
	}
	return nil
}

// Locate maps a client-supplied file name to an absolute path inside the
// root. The name is used as given; transport decoding is the caller's job.
func (s *Store) Locate(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", &fault.Error{Op: opResolve, Kind: fault.KindInvalidInput, Message: "file name is required"}
	}
	if strings.ContainsRune(name, 0) {
		return "", &fault.Error{Op: opResolve, Kind: fault.KindInvalidInput, Message: "invalid file name"}
	}

	path := filepath.Join(s.root, filepath.FromSlash(name))
	if !s.contains(path) {
		return "", &fault.Error{Op: opResolve, Kind: fault.KindAccessDenied, Message: "access denied"}
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &fault.Error{Op: opResolve, Kind: fault.KindNotFound, Message: "file not found", Err: err}
		}
		return "", fault.Wrap(opResolve, err)
	}
	if info.IsDir() {
		return "", &fault.Error{Op: opResolve, Kind: fault.KindNotFound, Message: "file not found"}
	}

	// a symlink inside the root may still point outside it
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fault.Wrap(opResolve, err)
	}
	realRoot, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return "", fault.Wrap(opResolve, err)
	}
	if !within(realRoot, real) {
		return "", &fault.Error{Op: opResolve, Kind: fault.KindAccessDenied, Message: "access denied"}
	}

	return path, nil
}

// Open locates name and opens it for reading. The file is opened through an
// os.Root so the lookup cannot leave the storage directory.
func (s *Store) Open(name string) (*os.File, os.FileInfo, error) {
	path, err := s.Locate(name)
	if err != nil {
		return nil, nil, err
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return nil, nil, fault.Wrap(opResolve, err)
	}

	root, err := os.OpenRoot(s.root)
	if err != nil {
		return nil, nil, fault.Wrap(opResolve, err)
	}
	defer root.Close()

	f, err := root.Open(rel)
	if err != nil {
		return nil, nil, &fault.Error{Op: opResolve, Kind: fault.KindFileResolution, Message: "cannot open file", Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fault.Wrap(opResolve, err)
	}
	return f, info, nil
}

func (s *Store) contains(path string) bool {
	return within(s.root, path)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
