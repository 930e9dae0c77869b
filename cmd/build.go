package cmd

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go.k6.io/jscat/cmd/state"
	"go.k6.io/jscat/errext"
	"go.k6.io/jscat/errext/exitcodes"
	"go.k6.io/jscat/internal/compiler"
	"go.k6.io/jscat/internal/pipeline"
	"go.k6.io/jscat/internal/watch"
)

// cmdBuild handles the `jscat build` sub-command
type cmdBuild struct {
	gs *state.GlobalState
}

func (c *cmdBuild) run(cmd *cobra.Command, args []string) error {
	cliConf, err := getConfig(cmd.Flags())
	if err != nil {
		return err
	}
	conf, err := getConsolidatedConfig(c.gs, cliConf)
	if err != nil {
		return err
	}

	fromStdin := len(args) == 0 || (len(args) == 1 && args[0] == "-")
	if err := conf.validate(fromStdin); err != nil {
		return err
	}

	transformer, err := compiler.NewEsbuild(compiler.EsbuildOptions{
		Target: conf.Target.String,
		Format: conf.Format.String,
	})
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	cwd, err := c.gs.Getwd()
	if err != nil {
		return err
	}
	pconf := conf.pipelineConfig(cwd)
	pl := pipeline.New(c.gs.Logger, c.gs.FS, c.gs.Stdout, transformer, pconf)

	if fromStdin {
		return withBuildExitCode(pl.RunStdin(c.gs.Stdin))
	}
	if conf.Watch.Bool {
		return c.watch(pl, conf, pconf, args)
	}

	start := time.Now()
	report, err := pl.Run(c.gs.Ctx, args, pipeline.FailFast)
	if err != nil {
		return withBuildExitCode(err)
	}
	c.gs.Logger.WithFields(logrus.Fields{
		"files": report.Compiled(),
		"took":  time.Since(start),
	}).Debug("Build finished")
	return nil
}

func (c *cmdBuild) watch(pl *pipeline.Pipeline, conf Config, pconf pipeline.Config, filenames []string) error {
	backend, err := watch.NewFSNotify(c.gs.Logger, c.gs.FS, conf.WatchDelay.TimeDuration())
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.WatchFailed)
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			c.gs.Logger.WithError(cerr).Debug("Couldn't close the file watcher")
		}
	}()

	ctx, cancel := context.WithCancel(c.gs.Ctx)
	defer cancel()
	sigC := make(chan os.Signal, 2)
	c.gs.SignalNotify(sigC, os.Interrupt, syscall.SIGTERM)
	defer c.gs.SignalStop(sigC)
	go func() {
		select {
		case sig := <-sigC:
			c.gs.Logger.WithField("sig", sig).Debug("Stopping jscat in response to signal...")
			cancel()
		case <-ctx.Done():
		}
	}()

	ctrl := watch.New(c.gs.Logger, backend, watch.Options{
		SkipInitialBuild: conf.SkipInitialBuild.Bool,
		Build: func(ctx context.Context, mode pipeline.FailureMode) error {
			start := time.Now()
			report, err := pl.Run(ctx, filenames, mode)
			if err != nil {
				return err
			}
			c.printSummary(report, time.Since(start))
			return nil
		},
		Targets: func() ([]string, error) { return pl.WatchTargets(filenames) },
		Matcher: watch.NewMatcher(watch.MatcherOptions{
			Extensions:      conf.Extensions,
			Filenames:       filenames,
			Exclude:         pconf.Outputs(),
			IncludeDotfiles: conf.IncludeDotfiles.Bool,
			Cwd:             pconf.Cwd,
		}),
	})
	if err := ctrl.Run(ctx); err != nil {
		return errext.WithExitCodeIfNone(withBuildExitCode(err), exitcodes.WatchFailed)
	}
	return nil
}

func (c *cmdBuild) printSummary(report *pipeline.Report, took time.Duration) {
	if c.gs.Flags.Quiet {
		return
	}
	noColor := c.gs.Flags.NoColor || !c.gs.Stderr.IsTTY
	msg := getColor(noColor, color.FgGreen).Sprintf("Built %d file(s)", report.Compiled())
	if len(report.Failed) > 0 {
		msg += getColor(noColor, color.FgYellow).Sprintf(", %d left out", len(report.Failed))
	}
	fprintf(c.gs.Stderr, "%s in %s\n", msg, took.Round(time.Millisecond))
}

// withBuildExitCode attaches the exit code matching the kind of a build error.
func withBuildExitCode(err error) error {
	var (
		cerr *pipeline.CompileError
		oerr *pipeline.OutputError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &cerr):
		return errext.WithExitCodeIfNone(err, exitcodes.CompileFailed)
	case errors.As(err, &oerr):
		return errext.WithExitCodeIfNone(err, exitcodes.OutputFailed)
	default:
		return err
	}
}

func getCmdBuild(gs *state.GlobalState) *cobra.Command {
	c := &cmdBuild{gs: gs}

	exampleText := getExampleText(gs, `
  # Compile a single file to standard output
  {{.}} build app.js

  # Compile a directory into one file with a source map next to it
  {{.}} build src -o dist/bundle.js --source-maps=file

  # Embed the source map in the output
  {{.}} build src lib/extra.js -o dist/bundle.js -s inline

  # Rebuild whenever something in src changes
  {{.}} build src -o dist/bundle.js -s -w

  # Read the source from standard input
  cat app.js | {{.}} build --filename app.js`[1:])

	buildCmd := &cobra.Command{
		Use:   "build [file or directory...]",
		Short: "Compile files into a single artifact",
		Long: `Compile files into a single artifact.

Every file is compiled on its own, the results are concatenated in input order.
Directories are replaced by the files with a compilable extension below them.
Without arguments or with "-" the source is read from standard input.`,
		Example: exampleText,
		RunE:    c.run,
	}
	buildCmd.Flags().SortFlags = false
	buildCmd.Flags().AddFlagSet(configFlagSet())
	return buildCmd
}
