// Package fsutil holds small afero helpers shared by the writers.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// WriteFileAtomic writes data to a temporary sibling of path and renames it
// into place, so readers never observe a truncated file.
func WriteFileAtomic(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("write temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("close temporary file: %w", err)
	}
	if err := fs.Chmod(tmpPath, perm); err != nil {
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("chmod temporary file: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// TempSibling returns an unused path next to path carrying the same
// extension, for tools that insist on writing their own output file.
func TempSibling(fs afero.Fs, path string) (string, error) {
	ext := filepath.Ext(path)
	tmp, err := afero.TempFile(fs, filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("reserve temporary path: %w", err)
	}
	name := tmp.Name()
	_ = tmp.Close()
	if err := fs.Remove(name); err != nil {
		return "", fmt.Errorf("reserve temporary path: %w", err)
	}
	return name + ext, nil
}
