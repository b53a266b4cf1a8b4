// Package workdir manages the bootstrap work directory: the place the
// bundle archive is downloaded and extracted, and the mutual-exclusion
// guard that keeps two runs from racing on the same fixed archive name.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirPerm  = 0o755
	lockName = ".stackboot.lock"
)

// LockedError reports that another run holds the work directory lock.
type LockedError struct {
	Path string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("work directory is locked by another run (remove %s if stale)", e.Path)
}

// Dir is a handle on the work directory. Paths are addressed by segments
// joined under the root.
type Dir struct {
	root string
}

func New(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the work directory root path.
func (d *Dir) Root() string {
	return d.root
}

// Path returns the filesystem path for the given segments joined under
// the root. Does not create or verify the path.
func (d *Dir) Path(segments ...string) string {
	return filepath.Join(append([]string{d.root}, segments...)...)
}

// Exists reports whether the path at the given segments exists.
func (d *Dir) Exists(segments ...string) (bool, error) {
	_, err := os.Stat(d.Path(segments...))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// EnsureDir creates the directory at segments, including parents.
func (d *Dir) EnsureDir(segments ...string) error {
	return os.MkdirAll(d.Path(segments...), dirPerm)
}

// Remove deletes the entire tree at segments.
func (d *Dir) Remove(segments ...string) {
	os.RemoveAll(d.Path(segments...))
}

// Acquire takes the work directory lock, creating the root if needed.
// It returns a release function that removes the lock file. A second
// Acquire before release fails with *LockedError.
func (d *Dir) Acquire() (func(), error) {
	if err := os.MkdirAll(d.root, dirPerm); err != nil {
		return nil, fmt.Errorf("creating work directory %s: %w", d.root, err)
	}

	path := d.Path(lockName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, &LockedError{Path: path}
		}
		return nil, fmt.Errorf("creating lock file %s: %w", path, err)
	}

	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	return func() { os.Remove(path) }, nil
}
