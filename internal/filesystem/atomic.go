package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// WriteAtomic streams content produced by write into a temporary file in the
// destination directory and renames it over path. Readers never observe a
// partially written file.
func WriteAtomic(path string, perm os.FileMode, write func(w io.Writer) error) (err error) {
	start := time.Now()
	defer func() {
		if obs, volume := observer(path); obs != nil {
			obs.Operation(volume, "write", time.Since(start), err)
		}
	}()

	st, err := stage(path, perm, write)
	if err != nil {
		return err
	}
	if err = os.Rename(st.tmp, path); err != nil {
		st.Discard()
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Staged is a complete temporary file waiting to replace its target. Staging
// several files and committing them only once all were written keeps a set
// of related files from being replaced partially.
type Staged struct {
	tmp  string
	path string
}

// Stage writes content beside path without touching path itself.
func Stage(path string, perm os.FileMode, write func(w io.Writer) error) (st *Staged, err error) {
	start := time.Now()
	defer func() {
		if obs, volume := observer(path); obs != nil {
			obs.Operation(volume, "write", time.Since(start), err)
		}
	}()
	return stage(path, perm, write)
}

func stage(path string, perm os.FileMode, write func(w io.Writer) error) (_ *Staged, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if err = write(tmp); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return nil, fmt.Errorf("chmod temp file: %w", err)
	}
	return &Staged{tmp: tmpName, path: path}, nil
}

// Commit renames the staged file over its target.
func (s *Staged) Commit() error {
	start := time.Now()
	err := os.Rename(s.tmp, s.path)
	if obs, volume := observer(s.path); obs != nil {
		obs.Operation(volume, "rename", time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Discard removes the staged file. It does nothing after a successful Commit.
func (s *Staged) Discard() {
	_ = RemoveIfExists(s.tmp)
}

// WriteFileAtomic is WriteAtomic for an in-memory payload.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return WriteAtomic(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// MoveFile renames src to dst, falling back to copy and remove when the two
// paths are on different devices.
func MoveFile(src, dst string) error {
	start := time.Now()
	err := os.Rename(src, dst)
	if obs, volume := observer(dst); obs != nil {
		obs.Operation(volume, "rename", time.Since(start), err)
	}
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := WriteAtomic(dst, info.Mode().Perm(), func(w io.Writer) error {
		_, copyErr := io.Copy(w, in)
		return copyErr
	}); err != nil {
		return err
	}
	return os.Remove(src)
}

// RemoveIfExists deletes path, treating a missing file as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
