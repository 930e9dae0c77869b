package compiler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// EsbuildOptions configure the esbuild transform engine.
type EsbuildOptions struct {
	// Target is the language level of the output, e.g. es2015 or esnext.
	Target string
	// Format is the module format of the output: preserve, cjs, esm or iife.
	Format string
}

// Esbuild is the default Transformer, it runs esbuild's transform API on each file.
type Esbuild struct {
	target api.Target
	format api.Format
}

var esbuildTargets = map[string]api.Target{ //nolint:gochecknoglobals
	"esnext": api.ESNext,
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
}

var esbuildFormats = map[string]api.Format{ //nolint:gochecknoglobals
	"":         api.FormatDefault,
	"preserve": api.FormatDefault,
	"cjs":      api.FormatCommonJS,
	"esm":      api.FormatESModule,
	"iife":     api.FormatIIFE,
}

// NewEsbuild returns an esbuild backed Transformer.
func NewEsbuild(opts EsbuildOptions) (*Esbuild, error) {
	targetName := strings.ToLower(opts.Target)
	if targetName == "" {
		targetName = "esnext"
	}
	target, ok := esbuildTargets[targetName]
	if !ok {
		return nil, fmt.Errorf("unsupported target %q", opts.Target)
	}
	format, ok := esbuildFormats[strings.ToLower(opts.Format)]
	if !ok {
		return nil, fmt.Errorf("unsupported module format %q", opts.Format)
	}
	return &Esbuild{target: target, format: format}, nil
}

// Transform implements Transformer.
func (e *Esbuild) Transform(src []byte, opts TransformOptions) (string, []byte, error) {
	tOpts := api.TransformOptions{
		Sourcefile:     opts.SourceFileName,
		Loader:         loaderFor(opts.Filename),
		Target:         e.target,
		Format:         e.format,
		Sourcemap:      api.SourceMapNone,
		LegalComments:  api.LegalCommentsInline,
		Platform:       api.PlatformNeutral,
		LogLevel:       api.LogLevelSilent,
		Charset:        api.CharsetUTF8,
		SourcesContent: api.SourcesContentInclude,
	}
	if opts.SourceMaps {
		tOpts.Sourcemap = api.SourceMapExternal
	}

	result := api.Transform(string(src), tOpts)
	if err := esbuildError(opts.Filename, &result); err != nil {
		return "", nil, err
	}

	return string(result.Code), result.Map, nil
}

func loaderFor(filename string) api.Loader {
	switch filepath.Ext(filename) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	default:
		return api.LoaderJS
	}
}

func esbuildError(filename string, result *api.TransformResult) error {
	if len(result.Errors) == 0 {
		return nil
	}

	msg := result.Errors[0]
	err := &Error{Filename: filename, Message: msg.Text}
	if msg.Location != nil {
		err.Line = msg.Location.Line
		err.Column = msg.Location.Column
	}
	return err
}
