// Package concat merges the compiled units of a run into a single artifact
// with one sectioned source map pointing back into every original file.
package concat

import (
	"path/filepath"
	"strings"

	"go.k6.io/jscat/internal/sourcemap"
)

// StdoutTarget is the map's file name when the artifact goes to standard output.
const StdoutTarget = "stdout"

// Unit is the compiled output of a single input file.
type Unit struct {
	Code string
	Map  *sourcemap.Map
}

// Artifact is the merged output of a run.
type Artifact struct {
	Code string
	Map  *sourcemap.Index
}

// Options are the parts of the run configuration that affect merging.
type Options struct {
	SourceMaps      sourcemap.Mode
	OutFile         string
	SourceMapTarget string
	SourceRoot      string
}

// MapFile returns the name recorded in the composite map's file field.
func (o Options) MapFile() string {
	switch {
	case o.SourceMapTarget != "":
		return o.SourceMapTarget
	case o.OutFile != "":
		return filepath.Base(o.OutFile)
	default:
		return StdoutTarget
	}
}

// InlineMap reports whether the map ends up as a comment in the code. That is
// the case for the inline mode and for any map when there is no file to put
// a sidecar next to.
func (o Options) InlineMap() bool {
	return o.SourceMaps == sourcemap.ModeInline || (o.SourceMaps.Enabled() && o.OutFile == "")
}

// Merge concatenates units in order. Nil units are failed compiles and are
// skipped without leaving a gap. Every unit's code is followed by a newline
// and its map is anchored at the line the code starts on.
func Merge(units []*Unit, opts Options) (*Artifact, error) {
	var (
		code     strings.Builder
		sections = make([]sourcemap.Section, 0, len(units))
		offset   int
	)
	for _, unit := range units {
		if unit == nil {
			continue
		}
		m := unit.Map
		if m == nil {
			m = sourcemap.Empty()
		}
		sections = append(sections, sourcemap.Section{
			Offset: sourcemap.Offset{Line: offset, Column: 0},
			Map:    m,
		})
		code.WriteString(unit.Code)
		code.WriteByte('\n')
		offset += strings.Count(unit.Code, "\n") + 1
	}

	idx, err := sourcemap.NewIndex(opts.MapFile(), sections)
	if err != nil {
		return nil, err
	}
	idx.SourceRoot = opts.SourceRoot

	if opts.InlineMap() {
		comment, err := idx.InlineComment()
		if err != nil {
			return nil, err
		}
		code.WriteString("\n")
		code.WriteString(comment)
	}

	return &Artifact{Code: code.String(), Map: idx}, nil
}
