// Package fsext provides extended file system functions
package fsext

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// Abs returns an absolute representation of path. If the path is not
// absolute it will be joined with root, which is assumed to be a directory
// (usually the working directory of the process).
func Abs(root, path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return filepath.Clean(path)
}

// WriteFileAtomic writes data to a temporary file next to filename and
// renames it over filename, so readers never observe a partially written
// file. The parent directory must already exist.
func WriteFileAtomic(fs Fs, filename string, data []byte, perm fs.FileMode) (err error) {
	dir, base := filepath.Split(filename)
	if dir == "" {
		dir = "."
	}
	tmp, err := afero.TempFile(fs, dir, "."+base+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = fs.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = fs.Chmod(tmpName, perm); err != nil {
		return err
	}
	return fs.Rename(tmpName, filename)
}
