// Package walker expands path arguments into the ordered list of files a run compiles.
package walker

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"go.k6.io/jscat/lib/fsext"
)

// DefaultExtensions are the file extensions compiled when walking directories.
var DefaultExtensions = []string{".js", ".jsx", ".es6", ".mjs", ".cjs"} //nolint:gochecknoglobals

// Options configure which files inside directory arguments are picked up.
type Options struct {
	Extensions      []string
	IncludeDotfiles bool
	// Exclude are files never picked up from directories, like the artifact
	// a build writes into a directory it also reads.
	Exclude []string
	// Cwd resolves relative paths when comparing against Exclude.
	Cwd string
}

// Walker expands path arguments against a filesystem.
type Walker struct {
	fs      fsext.Fs
	opts    Options
	exclude map[string]struct{}
}

// New returns a Walker. Without extensions the DefaultExtensions are used.
func New(fs fsext.Fs, opts Options) *Walker {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, e := range opts.Exclude {
		exclude[fsext.Abs(opts.Cwd, e)] = struct{}{}
	}
	return &Walker{fs: fs, opts: opts, exclude: exclude}
}

// Excluded reports whether path is one of the excluded files.
func (w *Walker) Excluded(path string) bool {
	_, ok := w.exclude[fsext.Abs(w.opts.Cwd, path)]
	return ok
}

// IsCompilable reports whether filename has one of the given extensions.
func IsCompilable(filename string, extensions []string) bool {
	ext := filepath.Ext(filename)
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Walk returns the files to compile for paths, in order. Missing paths are
// skipped, files are passed through as given, and directories are replaced by
// the compilable, not excluded files beneath them in traversal order.
func (w *Walker) Walk(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := w.fs.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = fsext.Walk(w.fs, path, func(name string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || !w.compilable(info.Name()) || w.Excluded(name) {
				return nil
			}
			files = append(files, name)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// Dirs returns every directory at or below the directory arguments in paths.
func (w *Walker) Dirs(paths []string) ([]string, error) {
	var dirs []string
	for _, path := range paths {
		info, err := w.fs.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			continue
		}
		err = fsext.Walk(w.fs, path, func(name string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				dirs = append(dirs, name)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return dirs, nil
}

func (w *Walker) compilable(name string) bool {
	if !w.opts.IncludeDotfiles && strings.HasPrefix(name, ".") {
		return false
	}
	return IsCompilable(name, w.opts.Extensions)
}
