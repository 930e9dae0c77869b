package testutils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go.k6.io/jscat/lib/fsext"
)

// MakeMemMapFs creates a new in-memory filesystem with the given files.
//
// The keys of the withFiles map are the paths of the files to create, and the
// values are the contents of the files. Parent directories are created as
// needed and files are created with 644 mode.
func MakeMemMapFs(t testing.TB, withFiles map[string]string) fsext.Fs {
	t.Helper()
	fs := fsext.NewMemMapFs()

	for path, data := range withFiles {
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, fsext.WriteFile(fs, path, []byte(data), 0o644))
	}

	return fs
}
