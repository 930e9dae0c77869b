// Package pipeline wires the walker, the compiler, the merger and the writer
// into one repeatable build.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.k6.io/jscat/internal/compiler"
	"go.k6.io/jscat/internal/concat"
	"go.k6.io/jscat/internal/output"
	"go.k6.io/jscat/internal/sourcemap"
	"go.k6.io/jscat/internal/walker"
	"go.k6.io/jscat/lib/fsext"
)

// FailureMode decides what a compile failure does to a run.
type FailureMode uint8

const (
	// FailFast aborts the run on the first compile failure.
	FailFast FailureMode = iota
	// Tolerant logs compile failures and leaves the failed files out.
	Tolerant
)

func (m FailureMode) String() string {
	if m == Tolerant {
		return "tolerant"
	}
	return "fail-fast"
}

// Config is the immutable configuration of a pipeline.
type Config struct {
	OutFile         string
	SourceMaps      sourcemap.Mode
	SourceMapTarget string
	SourceRoot      string
	Extensions      []string
	IncludeDotfiles bool
	// Concurrency bounds parallel compiles, GOMAXPROCS when not positive.
	Concurrency int
	// StdinFilename attributes source read from standard input.
	StdinFilename string
	// Cwd resolves relative paths for source map attribution.
	Cwd string
}

// Outputs returns the files a run writes: the output file and, in file mode,
// its sidecar map. Nothing is written to disk without an output file.
func (c Config) Outputs() []string {
	if c.OutFile == "" {
		return nil
	}
	outputs := []string{c.OutFile}
	if c.SourceMaps == sourcemap.ModeFile {
		outputs = append(outputs, output.MapFile(c.OutFile))
	}
	return outputs
}

func (c Config) mergeOptions() concat.Options {
	return concat.Options{
		SourceMaps:      c.SourceMaps,
		OutFile:         c.OutFile,
		SourceMapTarget: c.SourceMapTarget,
		SourceRoot:      c.SourceRoot,
	}
}

// Report summarizes a finished run.
type Report struct {
	// Files are the files the run tried to compile, in output order.
	Files []string
	// Failed are the files left out of the artifact in tolerant mode.
	Failed []string
}

// Compiled returns how many files made it into the artifact.
func (r *Report) Compiled() int {
	return len(r.Files) - len(r.Failed)
}

// Pipeline runs builds.
type Pipeline struct {
	logger  logrus.FieldLogger
	config  Config
	walker  *walker.Walker
	invoker *compiler.Invoker
	writer  *output.Writer
}

// New returns a Pipeline compiling with transformer and writing files through
// fs and everything else to stdout.
func New(
	logger logrus.FieldLogger, fs fsext.Fs, stdout io.Writer, transformer compiler.Transformer, config Config,
) *Pipeline {
	if config.Concurrency <= 0 {
		config.Concurrency = runtime.GOMAXPROCS(0)
	}
	logger = logger.WithField("component", "pipeline")
	return &Pipeline{
		logger: logger,
		config: config,
		walker: walker.New(fs, walker.Options{
			Extensions:      config.Extensions,
			IncludeDotfiles: config.IncludeDotfiles,
			Exclude:         config.Outputs(),
			Cwd:             config.Cwd,
		}),
		invoker: compiler.NewInvoker(fs, transformer, logger, compiler.InvokerOptions{
			OutFile:    config.OutFile,
			SourceMaps: config.SourceMaps,
			Cwd:        config.Cwd,
		}),
		writer: output.NewWriter(fs, stdout),
	}
}

// Run builds one artifact out of filenames. All files are compiled in
// parallel, the artifact keeps the order of the walked files.
func (p *Pipeline) Run(ctx context.Context, filenames []string, mode FailureMode) (*Report, error) {
	files, err := p.walker.Walk(filenames)
	if err != nil {
		return nil, err
	}
	report := &Report{Files: files}

	units := make([]*concat.Unit, len(files))
	failed := make([]bool, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			unit, err := p.invoker.Compile(file)
			if err == nil {
				units[i] = unit
				return nil
			}
			if mode == FailFast {
				return &CompileError{File: file, Err: err}
			}
			failed[i] = true
			p.logger.WithError(err).WithField("file", file).Error("Compilation failed, leaving the file out")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	for i, f := range failed {
		if f {
			report.Failed = append(report.Failed, files[i])
		}
	}

	if err := p.emit(units); err != nil {
		return report, err
	}
	p.logger.WithField("files", len(files)).Debugf("Built the artifact (%s)", mode)
	return report, nil
}

// RunStdin compiles the whole of r as a single file and emits it. Compile
// failures are always fatal.
func (p *Pipeline) RunStdin(r io.Reader) error {
	src, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("couldn't read standard input: %w", err)
	}
	unit, err := p.invoker.CompileSource(src, p.config.StdinFilename)
	if err != nil {
		return &CompileError{File: p.config.StdinFilename, Err: err}
	}
	return p.emit([]*concat.Unit{unit})
}

// WatchTargets returns the paths a watcher has to observe for filenames:
// the arguments themselves and every directory below directory arguments.
func (p *Pipeline) WatchTargets(filenames []string) ([]string, error) {
	dirs, err := p.walker.Dirs(filenames)
	if err != nil {
		return nil, err
	}
	targets := make([]string, 0, len(filenames)+len(dirs))
	seen := make(map[string]struct{}, len(filenames)+len(dirs))
	for _, t := range append(append([]string{}, filenames...), dirs...) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		targets = append(targets, t)
	}
	return targets, nil
}

func (p *Pipeline) emit(units []*concat.Unit) error {
	opts := p.config.mergeOptions()
	art, err := concat.Merge(units, opts)
	if err != nil {
		return err
	}
	if err := p.writer.Write(art, opts); err != nil {
		return &OutputError{Err: err}
	}
	return nil
}
