// Package output delivers a merged artifact to its destination.
package output

import (
	"fmt"
	"io"
	"path/filepath"

	"go.k6.io/jscat/internal/concat"
	"go.k6.io/jscat/internal/sourcemap"
	"go.k6.io/jscat/lib/fsext"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Writer writes artifacts either to files or to a stream.
type Writer struct {
	fs     fsext.Fs
	stdout io.Writer
}

// NewWriter returns a Writer that writes files through fs and everything
// without an output file to stdout.
func NewWriter(fs fsext.Fs, stdout io.Writer) *Writer {
	return &Writer{fs: fs, stdout: stdout}
}

// MapFile returns the path of the sidecar map for outFile.
func MapFile(outFile string) string {
	return outFile + ".map"
}

// Write delivers art according to opts. With an output file, its directory is
// created as needed and in file mode the composite map goes to a sidecar
// referenced from the end of the code. Without one, the code and a trailing
// newline go to the stream.
func (w *Writer) Write(art *concat.Artifact, opts concat.Options) error {
	if opts.OutFile == "" {
		if _, err := io.WriteString(w.stdout, art.Code+"\n"); err != nil {
			return fmt.Errorf("couldn't write to standard output: %w", err)
		}
		return nil
	}

	if err := w.fs.MkdirAll(filepath.Dir(opts.OutFile), dirPerm); err != nil {
		return fmt.Errorf("couldn't create the output directory: %w", err)
	}

	code := art.Code
	if opts.SourceMaps == sourcemap.ModeFile {
		mapLoc := MapFile(opts.OutFile)
		data, err := art.Map.Encode()
		if err != nil {
			return err
		}
		if err := fsext.WriteFileAtomic(w.fs, mapLoc, data, filePerm); err != nil {
			return fmt.Errorf("couldn't write the source map %s: %w", mapLoc, err)
		}
		code += "\n" + sourcemap.URLComment(filepath.Base(mapLoc))
	}

	if err := fsext.WriteFileAtomic(w.fs, opts.OutFile, []byte(code), filePerm); err != nil {
		return fmt.Errorf("couldn't write %s: %w", opts.OutFile, err)
	}
	return nil
}
