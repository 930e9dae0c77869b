package tests

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.k6.io/jscat/cmd/state"
	"go.k6.io/jscat/lib/fsext"
	"go.k6.io/jscat/lib/testutils"
)

// GlobalTestState is a wrapper around GlobalState for use in tests.
type GlobalTestState struct {
	*state.GlobalState
	Cancel func()

	Stdout, Stderr *bytes.Buffer
	LoggerHook     *testutils.SimpleLogrusHook

	Cwd string

	ExpectedExitCode int
}

// NewGlobalTestState returns an initialized GlobalTestState, mocking all
// GlobalState fields for use in tests. The file system is in memory and the
// working directory is /test/ (c:\test\ on Windows).
func NewGlobalTestState(tb testing.TB) *GlobalTestState {
	tb.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	tb.Cleanup(cancel)

	fs := fsext.NewMemMapFs()
	cwd := string(filepath.Separator) + "test" + string(filepath.Separator)
	if runtime.GOOS == "windows" {
		cwd = "c:\\test\\"
	}
	require.NoError(tb, fs.MkdirAll(cwd, 0o755))

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.Out = testutils.NewTestOutput(tb)
	hook := testutils.NewLogHook()
	logger.AddHook(hook)

	ts := &GlobalTestState{
		Cwd:        cwd,
		Cancel:     cancel,
		LoggerHook: hook,
		Stdout:     new(bytes.Buffer),
		Stderr:     new(bytes.Buffer),
	}

	osExitCalled := new(atomic.Bool)
	tb.Cleanup(func() {
		if ts.ExpectedExitCode > 0 {
			// Ensure that, if we expected to receive an error, our `os.Exit()` mock
			// function was actually called.
			assert.Truef(tb, osExitCalled.Load(),
				"expected exit code %d, but the os.Exit() mock was not called", ts.ExpectedExitCode)
		}
	})

	outMutex := &sync.Mutex{}
	defaultFlags := state.GetDefaultGlobalOptions()
	defaultFlags.LogFormat = "raw" // keep the test output readable

	ts.GlobalState = &state.GlobalState{
		Ctx:          ctx,
		FS:           fs,
		Getwd:        func() (string, error) { return ts.Cwd, nil },
		BinaryName:   "jscat",
		CmdArgs:      []string{},
		Env:          map[string]string{},
		DefaultFlags: defaultFlags,
		Flags:        defaultFlags,
		OutMutex:     outMutex,
		Stdout: &state.ConsoleWriter{
			RawOut: ts.Stdout, Writer: ts.Stdout, IsTTY: false, Mutex: outMutex,
		},
		Stderr: &state.ConsoleWriter{
			RawOut: ts.Stderr, Writer: ts.Stderr, IsTTY: false, Mutex: outMutex,
		},
		Stdin: new(bytes.Buffer),
		OSExit: func(code int) {
			osExitCalled.Store(true)
			assert.Equal(tb, ts.ExpectedExitCode, code)
			cancel()
		},
		SignalNotify:   signalNotify,
		SignalStop:     func(chan<- os.Signal) {},
		Logger:         logger,
		FallbackLogger: testutils.NewLogger(tb),
	}

	return ts
}

// signalNotify ignores the requested signals, tests stop through the context.
func signalNotify(chan<- os.Signal, ...os.Signal) {}

// WriteFiles creates the given files, with paths relative to the working
// directory of the test state.
func (ts *GlobalTestState) WriteFiles(tb testing.TB, files map[string]string) {
	tb.Helper()
	for name, data := range files {
		path := filepath.Join(ts.Cwd, filepath.FromSlash(name))
		require.NoError(tb, ts.FS.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(tb, fsext.WriteFile(ts.FS, path, []byte(data), 0o644))
	}
}

// ReadFile returns the content of a file relative to the working directory.
func (ts *GlobalTestState) ReadFile(tb testing.TB, name string) string {
	tb.Helper()
	data, err := fsext.ReadFile(ts.FS, filepath.Join(ts.Cwd, filepath.FromSlash(name)))
	require.NoError(tb, err)
	return string(data)
}
