package output

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.k6.io/jscat/internal/concat"
	"go.k6.io/jscat/internal/sourcemap"
	"go.k6.io/jscat/lib/fsext"
)

func merge(t *testing.T, opts concat.Options, codes ...string) *concat.Artifact {
	t.Helper()
	units := make([]*concat.Unit, len(codes))
	for i, c := range codes {
		units[i] = &concat.Unit{Code: c}
	}
	art, err := concat.Merge(units, opts)
	require.NoError(t, err)
	return art
}

func TestWriteStdout(t *testing.T) {
	t.Parallel()

	opts := concat.Options{}
	buf := &bytes.Buffer{}
	require.NoError(t, NewWriter(fsext.NewMemMapFs(), buf).Write(merge(t, opts, "const a=1;", "const b=2;"), opts))
	assert.Equal(t, "const a=1;\nconst b=2;\n\n", buf.String())
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	outFile := filepath.FromSlash("/work/dist/js/bundle.js")

	t.Run("file map", func(t *testing.T) {
		t.Parallel()
		fs := fsext.NewMemMapFs()
		opts := concat.Options{OutFile: outFile, SourceMaps: sourcemap.ModeFile}
		art := merge(t, opts, "a()", "b()")
		require.NoError(t, NewWriter(fs, nil).Write(art, opts))

		code, err := fsext.ReadFile(fs, outFile)
		require.NoError(t, err)
		assert.Equal(t, "a()\nb()\n\n//# sourceMappingURL=bundle.js.map", string(code))

		mapData, err := fsext.ReadFile(fs, outFile+".map")
		require.NoError(t, err)
		expected, err := art.Map.Encode()
		require.NoError(t, err)
		assert.JSONEq(t, string(expected), string(mapData))
	})

	t.Run("inline map", func(t *testing.T) {
		t.Parallel()
		fs := fsext.NewMemMapFs()
		opts := concat.Options{OutFile: outFile, SourceMaps: sourcemap.ModeInline}
		art := merge(t, opts, "a()")
		require.NoError(t, NewWriter(fs, nil).Write(art, opts))

		code, err := fsext.ReadFile(fs, outFile)
		require.NoError(t, err)
		assert.Equal(t, art.Code, string(code))
		assert.Contains(t, string(code), "sourceMappingURL=data:application/json")

		exists, err := fsext.Exists(fs, outFile+".map")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("no map", func(t *testing.T) {
		t.Parallel()
		fs := fsext.NewMemMapFs()
		opts := concat.Options{OutFile: outFile}
		require.NoError(t, NewWriter(fs, nil).Write(merge(t, opts, "a()"), opts))

		code, err := fsext.ReadFile(fs, outFile)
		require.NoError(t, err)
		assert.Equal(t, "a()\n", string(code))
	})

	t.Run("overwrites the previous artifact", func(t *testing.T) {
		t.Parallel()
		fs := fsext.NewMemMapFs()
		opts := concat.Options{OutFile: outFile}
		w := NewWriter(fs, nil)
		require.NoError(t, w.Write(merge(t, opts, "old()"), opts))
		require.NoError(t, w.Write(merge(t, opts, "new()"), opts))

		code, err := fsext.ReadFile(fs, outFile)
		require.NoError(t, err)
		assert.Equal(t, "new()\n", string(code))
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestWriteErrors(t *testing.T) {
	t.Parallel()

	opts := concat.Options{}
	err := NewWriter(nil, failingWriter{}).Write(merge(t, opts, "a()"), opts)
	assert.ErrorContains(t, err, "closed pipe")

	opts = concat.Options{OutFile: filepath.FromSlash("/dist/bundle.js")}
	err = NewWriter(fsext.NewReadOnlyFs(fsext.NewMemMapFs()), nil).Write(merge(t, opts, "a()"), opts)
	assert.Error(t, err)
}
