package compiler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"go.k6.io/jscat/internal/concat"
	"go.k6.io/jscat/internal/sourcemap"
	"go.k6.io/jscat/lib/fsext"
)

// InvokerOptions are the run settings the Invoker needs.
type InvokerOptions struct {
	// OutFile is the artifact path, empty for standard output.
	OutFile string
	// SourceMaps is the run's source map mode.
	SourceMaps sourcemap.Mode
	// Cwd resolves relative paths when computing source file names.
	Cwd string
}

// Invoker compiles single files through a Transformer.
type Invoker struct {
	fs          fsext.Fs
	transformer Transformer
	logger      logrus.FieldLogger
	opts        InvokerOptions
}

// NewInvoker returns a new Invoker.
func NewInvoker(fs fsext.Fs, transformer Transformer, logger logrus.FieldLogger, opts InvokerOptions) *Invoker {
	return &Invoker{
		fs:          fs,
		transformer: transformer,
		logger:      logger.WithField("component", "compiler"),
		opts:        opts,
	}
}

// SourceFileName returns the name a file is attributed to in source maps:
// the path relative to the artifact's directory, or the path itself when the
// artifact goes to standard output. Separators are always forward slashes, so
// the maps stay valid when the artifact is moved to another host.
func (inv *Invoker) SourceFileName(filename string) string {
	name := filename
	if inv.opts.OutFile != "" {
		outDir := fsext.Abs(inv.opts.Cwd, filepath.Dir(inv.opts.OutFile))
		if rel, err := filepath.Rel(outDir, fsext.Abs(inv.opts.Cwd, filename)); err == nil {
			name = rel
		}
	}
	return strings.ReplaceAll(filepath.ToSlash(name), `\`, "/")
}

// Compile reads and compiles filename.
func (inv *Invoker) Compile(filename string) (*concat.Unit, error) {
	src, err := fsext.ReadFile(inv.fs, filename)
	if err != nil {
		return nil, fmt.Errorf("couldn't read %s: %w", filename, err)
	}
	return inv.CompileSource(src, filename)
}

// CompileSource compiles src as if it was read from filename.
func (inv *Invoker) CompileSource(src []byte, filename string) (*concat.Unit, error) {
	code, rawMap, err := inv.transformer.Transform(src, TransformOptions{
		Filename:       filename,
		SourceFileName: inv.SourceFileName(filename),
		SourceMaps:     inv.opts.SourceMaps.Enabled(),
	})
	if err != nil {
		return nil, err
	}

	unit := &concat.Unit{Code: code}
	if !inv.opts.SourceMaps.Enabled() || len(rawMap) == 0 {
		return unit, nil
	}
	m, err := sourcemap.Parse(rawMap)
	if err != nil {
		inv.logger.WithError(err).WithField("file", filename).
			Warn("Couldn't use the source map of the file, its lines won't be mapped")
		return unit, nil
	}
	unit.Map = m
	return unit, nil
}
