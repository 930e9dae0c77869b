package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"go.k6.io/jscat/errext"
	"go.k6.io/jscat/errext/exitcodes"
	"go.k6.io/jscat/internal/log"
)

// RawFormatter it does nothing with the message just prints it
type RawFormatter struct{}

// Format renders a single log entry
func (f RawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

// setupLoggers configures the global logger according to the global flags.
// Asynchronous hooks keep running until stopLoggers is called.
func (c *rootCommand) setupLoggers() error {
	gs := c.globalState
	if gs.Flags.Verbose {
		gs.Logger.SetLevel(logrus.DebugLevel)
	}

	var hook log.AsyncHook
	line := gs.Flags.LogOutput
	switch {
	case line == "stderr":
		gs.Logger.SetOutput(gs.Stderr)
	case line == "stdout":
		gs.Logger.SetOutput(gs.Stdout)
	case line == "none":
		gs.Logger.SetOutput(io.Discard)
	case strings.HasPrefix(line, "file"):
		var err error
		hook, err = log.FileHookFromConfigLine(gs.FS, gs.Getwd, gs.FallbackLogger, line)
		if err != nil {
			return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
		}
		gs.Logger.AddHook(hook)
		gs.Logger.SetOutput(io.Discard)
	default:
		return errext.WithExitCodeIfNone(errext.WithHint(
			fmt.Errorf("unsupported log output '%s'", line),
			"use one of stderr, stdout, none or file=path[,level=lvl]",
		), exitcodes.InvalidConfig)
	}

	if hook != nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.stopLoggersFn = cancel
		c.loggersWg.Add(1)
		go func() {
			hook.Listen(ctx)
			c.loggersWg.Done()
		}()
		c.loggerIsRemote = true
	}

	switch gs.Flags.LogFormat {
	case "raw":
		gs.Logger.SetFormatter(&RawFormatter{})
		gs.Logger.Debug("Logger format: RAW")
	case "json":
		gs.Logger.SetFormatter(&logrus.JSONFormatter{})
		gs.Logger.Debug("Logger format: JSON")
	case "", "text":
		gs.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   gs.Stderr.IsTTY && !gs.Flags.NoColor,
			DisableColors: gs.Flags.NoColor,
		})
		gs.Logger.Debug("Logger format: TEXT")
	default:
		return errext.WithExitCodeIfNone(errext.WithHint(
			fmt.Errorf("unsupported log format '%s'", gs.Flags.LogFormat),
			"use one of text, json or raw",
		), exitcodes.InvalidConfig)
	}
	return nil
}

func (c *rootCommand) stopLoggers() {
	if c.stopLoggersFn == nil {
		return
	}
	c.stopLoggersFn()
	c.loggersWg.Wait()
}
