package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.k6.io/jscat/internal/compiler"
	"go.k6.io/jscat/internal/sourcemap"
	"go.k6.io/jscat/lib/fsext"
	"go.k6.io/jscat/lib/testutils"
)

// fakeTransformer returns sources unchanged. Sources starting with "sleep:N "
// take N milliseconds and sources containing "FAIL" fail.
type fakeTransformer struct {
	withMaps bool
}

func (f fakeTransformer) Transform(src []byte, opts compiler.TransformOptions) (string, []byte, error) {
	code := string(src)
	var ms int
	if _, err := fmt.Sscanf(code, "sleep:%d ", &ms); err == nil {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
	if strings.Contains(code, "FAIL") {
		return "", nil, &compiler.Error{Filename: opts.Filename, Line: 1, Message: "Unexpected FAIL"}
	}
	if !f.withMaps || !opts.SourceMaps {
		return code, nil, nil
	}
	srcMap := `{"version":3,"sources":["` + opts.SourceFileName + `"],"names":[],"mappings":"AAAA"}`
	return code, []byte(srcMap), nil
}

func p(path string) string { return filepath.FromSlash(path) }

func newTestPipeline(
	t *testing.T, files map[string]string, config Config,
) (*Pipeline, fsext.Fs, *bytes.Buffer, *testutils.SimpleLogrusHook) {
	t.Helper()
	fs := testutils.MakeMemMapFs(t, files)
	stdout := &bytes.Buffer{}
	logger, hook := testutils.NewLoggerWithHook(t)
	return New(logger, fs, stdout, fakeTransformer{withMaps: true}, config), fs, stdout, hook
}

func TestRunScenario(t *testing.T) {
	t.Parallel()

	pl, _, stdout, _ := newTestPipeline(t, map[string]string{
		"a.js": "const a=1;",
		"b.js": "const b=2;",
	}, Config{})

	report, err := pl.Run(context.Background(), []string{"a.js", "b.js"}, FailFast)
	require.NoError(t, err)
	assert.Equal(t, "const a=1;\nconst b=2;\n\n", stdout.String())
	assert.Equal(t, 2, report.Compiled())
}

func TestRunKeepsInputOrder(t *testing.T) {
	t.Parallel()

	files := map[string]string{}
	names := make([]string, 8)
	var expected strings.Builder
	for i := range names {
		names[i] = fmt.Sprintf("f%d.js", i)
		// earlier files finish later
		files[names[i]] = fmt.Sprintf("sleep:%d f%d()", (len(names)-i)*5, i)
		expected.WriteString(files[names[i]] + "\n")
	}
	expected.WriteString("\n")

	pl, _, stdout, _ := newTestPipeline(t, files, Config{Concurrency: len(names)})
	_, err := pl.Run(context.Background(), names, FailFast)
	require.NoError(t, err)
	assert.Equal(t, expected.String(), stdout.String())
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	pl, _, stdout, _ := newTestPipeline(t, map[string]string{
		p("/src/a.js"):     "a()\nmore()",
		p("/src/lib/b.js"): "b()",
	}, Config{SourceMaps: sourcemap.ModeInline})

	_, err := pl.Run(context.Background(), []string{p("/src")}, FailFast)
	require.NoError(t, err)
	first := stdout.String()
	stdout.Reset()
	_, err = pl.Run(context.Background(), []string{p("/src")}, FailFast)
	require.NoError(t, err)
	assert.Equal(t, first, stdout.String())
	assert.Contains(t, first, "sourceMappingURL=data:")
}

func TestRunFailFast(t *testing.T) {
	t.Parallel()

	pl, fs, _, _ := newTestPipeline(t, map[string]string{
		"a.js": "a()",
		"b.js": "FAIL",
		"c.js": "c()",
	}, Config{OutFile: p("dist/bundle.js")})

	_, err := pl.Run(context.Background(), []string{"a.js", "b.js", "c.js"}, FailFast)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "b.js", cerr.File)
	assert.Equal(t, "b.js:1:0: Unexpected FAIL", err.Error())

	exists, err := fsext.Exists(fs, p("dist/bundle.js"))
	require.NoError(t, err)
	assert.False(t, exists, "nothing should be written when the build aborts")
}

func TestRunTolerant(t *testing.T) {
	t.Parallel()

	outFile := p("/work/dist/bundle.js")
	pl, fs, _, hook := newTestPipeline(t, map[string]string{
		p("/work/a.js"): "a1()\na2()",
		p("/work/b.js"): "FAIL",
		p("/work/c.js"): "c()",
	}, Config{OutFile: outFile, SourceMaps: sourcemap.ModeFile, Cwd: "/work"})

	report, err := pl.Run(context.Background(),
		[]string{p("/work/a.js"), p("/work/b.js"), p("/work/c.js")}, Tolerant)
	require.NoError(t, err)
	assert.Equal(t, []string{p("/work/b.js")}, report.Failed)
	assert.Equal(t, 2, report.Compiled())

	code, err := fsext.ReadFile(fs, outFile)
	require.NoError(t, err)
	assert.Equal(t, "a1()\na2()\nc()\n\n//# sourceMappingURL=bundle.js.map", string(code))

	rawMap, err := fsext.ReadFile(fs, outFile+".map")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"version": 3,
		"file": "bundle.js",
		"sections": [
			{"offset": {"line": 0, "column": 0}, "map": {"version":3,"sources":["../a.js"],"names":[],"mappings":"AAAA"}},
			{"offset": {"line": 2, "column": 0}, "map": {"version":3,"sources":["../c.js"],"names":[],"mappings":"AAAA"}}
		]
	}`, string(rawMap))

	assert.True(t, testutils.LogContains(hook.Drain(), logrus.ErrorLevel, "Compilation failed"))
}

func TestRunSkipsItsOwnOutput(t *testing.T) {
	t.Parallel()

	pl, fs, _, _ := newTestPipeline(t, map[string]string{
		p("/work/a.js"): "a()",
	}, Config{
		OutFile: p("/work/dist/out.js"), SourceMaps: sourcemap.ModeFile, Cwd: p("/work"),
		Extensions: []string{".js", ".map"},
	})

	for i := 0; i < 2; i++ {
		report, err := pl.Run(context.Background(), []string{p("/work")}, FailFast)
		require.NoError(t, err)
		assert.Equal(t, []string{p("/work/a.js")}, report.Files, "run %d", i)
	}
	exists, err := fsext.Exists(fs, p("/work/dist/out.js.map"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestConfigOutputs(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Config{SourceMaps: sourcemap.ModeFile}.Outputs())
	assert.Equal(t, []string{"out.js"}, Config{OutFile: "out.js", SourceMaps: sourcemap.ModeInline}.Outputs())
	assert.Equal(t, []string{"out.js", "out.js.map"}, Config{OutFile: "out.js", SourceMaps: sourcemap.ModeFile}.Outputs())
}

func TestRunOutputError(t *testing.T) {
	t.Parallel()

	logger := testutils.NewLogger(t)
	fs := fsext.NewReadOnlyFs(testutils.MakeMemMapFs(t, map[string]string{"a.js": "a()"}))
	pl := New(logger, fs, nil, fakeTransformer{}, Config{OutFile: p("/dist/out.js")})

	_, err := pl.Run(context.Background(), []string{"a.js"}, Tolerant)
	var oerr *OutputError
	require.ErrorAs(t, err, &oerr)
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	pl, _, stdout, _ := newTestPipeline(t, map[string]string{"a.js": "a()"}, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pl.Run(ctx, []string{"a.js"}, FailFast)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, stdout.String())
}

func TestRunAllMissing(t *testing.T) {
	t.Parallel()

	pl, _, stdout, _ := newTestPipeline(t, nil, Config{})
	report, err := pl.Run(context.Background(), []string{"nope.js"}, FailFast)
	require.NoError(t, err)
	assert.Empty(t, report.Files)
	assert.Equal(t, "\n", stdout.String())
}

func TestRunStdin(t *testing.T) {
	t.Parallel()

	pl, _, stdout, _ := newTestPipeline(t, nil, Config{StdinFilename: "stdin", SourceMaps: sourcemap.ModeInline})
	require.NoError(t, pl.RunStdin(strings.NewReader("x()")))
	out := stdout.String()
	require.True(t, strings.HasPrefix(out, "x()\n\n//# sourceMappingURL=data:"), out)

	stdout.Reset()
	err := pl.RunStdin(strings.NewReader("FAIL"))
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "stdin", cerr.File)
	assert.Empty(t, stdout.String())
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("broken stdin") }

func TestRunStdinReadError(t *testing.T) {
	t.Parallel()

	pl, _, _, _ := newTestPipeline(t, nil, Config{})
	assert.ErrorContains(t, pl.RunStdin(errReader{}), "broken stdin")
}

func TestWatchTargets(t *testing.T) {
	t.Parallel()

	pl, _, _, _ := newTestPipeline(t, map[string]string{
		p("/src/a.js"):     "a()",
		p("/src/lib/b.js"): "b()",
		p("/single.js"):    "s()",
	}, Config{})

	targets, err := pl.WatchTargets([]string{p("/single.js"), p("/src"), p("/src/lib")})
	require.NoError(t, err)
	assert.Equal(t, []string{p("/single.js"), p("/src"), p("/src/lib")}, targets)
}
