// Package compiler runs the per-file transform of a build and normalizes its
// result into a unit that can be concatenated.
package compiler

import (
	"fmt"

	"go.k6.io/jscat/errext"
)

// TransformOptions are passed to the transform engine for a single file.
type TransformOptions struct {
	// Filename is the path the source was read from. It selects the loader and
	// is used in diagnostics.
	Filename string
	// SourceFileName is the name recorded in the source map's sources.
	SourceFileName string
	// SourceMaps requests a separate source map next to the code. Engines never
	// inline maps, inlining happens once for the whole artifact.
	SourceMaps bool
}

// Transformer is the per-file transform engine.
type Transformer interface {
	Transform(src []byte, opts TransformOptions) (code string, srcMap []byte, err error)
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(src []byte, opts TransformOptions) (string, []byte, error)

// Transform calls f.
func (f TransformerFunc) Transform(src []byte, opts TransformOptions) (string, []byte, error) {
	return f(src, opts)
}

// Error is a transform failure at a position of a source file. Line is 1-based
// and zero when the position is unknown, Column is 0-based.
type Error struct {
	Filename string
	Line     int
	Column   int
	Message  string
}

var _ errext.HasPosition = &Error{}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Filename, e.Line, e.Column, e.Message)
	}
	return e.Filename + ": " + e.Message
}

// Position returns where the error happened.
func (e *Error) Position() (string, int, int) {
	return e.Filename, e.Line, e.Column
}
