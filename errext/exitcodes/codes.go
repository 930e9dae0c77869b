// Package exitcodes contains the constants representing possible jscat exit error codes.
package exitcodes

// ExitCode is just a type representing a process exit code for jscat
type ExitCode uint8

// list of exit codes used by jscat
const (
	InvalidConfig ExitCode = 104
	CompileFailed ExitCode = 107
	OutputFailed  ExitCode = 108
	WatchFailed   ExitCode = 109
	GoPanic       ExitCode = 110
)
