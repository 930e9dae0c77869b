// Package cmd implements the jscat command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"runtime/debug"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"go.k6.io/jscat/cmd/state"
	"go.k6.io/jscat/errext"
	"go.k6.io/jscat/errext/exitcodes"
	"go.k6.io/jscat/version"
)

// This is to keep all fields needed for the main/root jscat command
type rootCommand struct {
	globalState *state.GlobalState

	cmd            *cobra.Command
	loggersWg      sync.WaitGroup
	loggerIsRemote bool
	stopLoggersFn  context.CancelFunc
}

func newRootCommand(gs *state.GlobalState) *rootCommand {
	c := &rootCommand{globalState: gs}
	// the base command when called without any subcommands.
	rootCmd := &cobra.Command{
		Use:   gs.BinaryName,
		Short: "Compile JavaScript files into one bundle with a composite source map",
		Long: `jscat compiles every input file on its own and concatenates the results,
in input order, into a single artifact. The source maps of the files are merged
into one sectioned source map pointing back into every original file.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
		Version:           version.String(),
	}
	rootCmd.SetVersionTemplate(
		`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "%s\n" .Version}}`,
	)

	rootCmd.PersistentFlags().AddFlagSet(rootCmdPersistentFlagSet(gs))
	rootCmd.SetArgs(gs.CmdArgs[1:])
	rootCmd.SetOut(gs.Stdout)
	rootCmd.SetErr(gs.Stderr) // TODO: use gs.logger instead?
	rootCmd.SetIn(gs.Stdin)

	subCommands := []func(*state.GlobalState) *cobra.Command{
		getCmdBuild, getCmdVersion,
	}
	for _, sc := range subCommands {
		rootCmd.AddCommand(sc(gs))
	}

	c.cmd = rootCmd
	return c
}

func (c *rootCommand) persistentPreRunE(_ *cobra.Command, _ []string) error {
	if err := c.setupLoggers(); err != nil {
		return err
	}

	if c.globalState.Flags.NoColor {
		c.globalState.Stdout.Writer = colorable.NewNonColorable(c.globalState.Stdout.RawOut)
		c.globalState.Stderr.Writer = colorable.NewNonColorable(c.globalState.Stderr.RawOut)
	}
	stdlog.SetOutput(c.globalState.Logger.Writer())
	c.globalState.Logger.Debugf("jscat version: %s", version.String())
	return nil
}

func (c *rootCommand) execute() {
	ctx, cancel := context.WithCancel(c.globalState.Ctx)
	c.globalState.Ctx = ctx

	err := c.executeRecovered()
	if err == nil {
		cancel()
		c.stopLoggers()
		return
	}

	exitCode := -1
	var ecerr errext.HasExitCode
	if errors.As(err, &ecerr) {
		exitCode = int(ecerr.ExitCode())
	}

	errText, fields := errext.Format(err)
	c.globalState.Logger.WithFields(fields).Error(errText)
	if c.loggerIsRemote {
		c.globalState.FallbackLogger.WithFields(fields).Error(errText)
	}
	cancel()
	c.stopLoggers()

	c.globalState.OSExit(exitCode)
}

// executeRecovered runs the command and turns a panic into an error.
func (c *rootCommand) executeRecovered() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errext.WithExitCodeIfNone(
				fmt.Errorf("unexpected panic: %v\n%s", r, debug.Stack()), exitcodes.GoPanic,
			)
		}
	}()
	return c.cmd.Execute()
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	gs := state.NewGlobalState(context.Background())

	newRootCommand(gs).execute()
}

// ExecuteWithGlobalState runs the root command with an existing GlobalState.
// This is needed by integration tests, and we don't want to modify the
// Execute() signature to avoid breaking external callers.
func ExecuteWithGlobalState(gs *state.GlobalState) {
	newRootCommand(gs).execute()
}

func rootCmdPersistentFlagSet(gs *state.GlobalState) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	// TODO: refactor this config, the default value management with pflag is
	// simply terrible... :/
	//
	// We need to use `gs.Flags.<value>` both as the destination and as
	// the value here, since the config values could have already been set by
	// their respective environment variables. However, we then also have to
	// explicitly set the DefValue to the respective default value from
	// `gs.DefaultFlags.<value>`, so that the `jscat --help` message is
	// not messed up...

	flags.StringVar(&gs.Flags.LogOutput, "log-output", gs.Flags.LogOutput,
		"change the output for jscat logs, possible values are stderr,stdout,none,file[=./path.fileformat]")
	flags.Lookup("log-output").DefValue = gs.DefaultFlags.LogOutput

	flags.StringVar(&gs.Flags.LogFormat, "log-format", gs.Flags.LogFormat, "log output format, one of text, json or raw")
	flags.Lookup("log-format").DefValue = gs.DefaultFlags.LogFormat

	flags.StringVarP(&gs.Flags.ConfigFilePath, "config", "c", gs.Flags.ConfigFilePath, "JSON config file")
	// And we also need to explicitly set the default value for the usage message here, so things
	// like `JSCAT_CONFIG="blah" jscat build -h` don't produce a weird usage message
	flags.Lookup("config").DefValue = gs.DefaultFlags.ConfigFilePath
	must(cobra.MarkFlagFilename(flags, "config"))

	flags.BoolVar(&gs.Flags.NoColor, "no-color", gs.Flags.NoColor, "disable colored output")
	flags.Lookup("no-color").DefValue = "false"

	flags.BoolVarP(&gs.Flags.Verbose, "verbose", "v", gs.Flags.Verbose, "enable verbose logging")
	flags.BoolVarP(&gs.Flags.Quiet, "quiet", "q", gs.Flags.Quiet, "disable build summaries")

	return flags
}
