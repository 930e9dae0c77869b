package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"go.k6.io/jscat/cmd/state"
	"go.k6.io/jscat/errext"
	"go.k6.io/jscat/errext/exitcodes"
	"go.k6.io/jscat/internal/pipeline"
	"go.k6.io/jscat/internal/sourcemap"
	"go.k6.io/jscat/lib/fsext"
	"go.k6.io/jscat/lib/types"
)

// Config is the build configuration. Every value can come from the JSON
// config file, the environment or the command line, in increasing order of
// precedence.
type Config struct {
	OutFile          null.String        `json:"outFile" envconfig:"JSCAT_OUT_FILE"`
	SourceMaps       sourcemap.NullMode `json:"sourceMaps" envconfig:"JSCAT_SOURCE_MAPS"`
	SourceMapTarget  null.String        `json:"sourceMapTarget" envconfig:"JSCAT_SOURCE_MAP_TARGET"`
	SourceRoot       null.String        `json:"sourceRoot" envconfig:"JSCAT_SOURCE_ROOT"`
	Extensions       []string           `json:"extensions" envconfig:"JSCAT_EXTENSIONS"`
	IncludeDotfiles  null.Bool          `json:"includeDotfiles" envconfig:"JSCAT_INCLUDE_DOTFILES"`
	Watch            null.Bool          `json:"watch" envconfig:"JSCAT_WATCH"`
	SkipInitialBuild null.Bool          `json:"skipInitialBuild" envconfig:"JSCAT_SKIP_INITIAL_BUILD"`
	Filename         null.String        `json:"filename" envconfig:"JSCAT_FILENAME"`
	Target           null.String        `json:"target" envconfig:"JSCAT_TARGET"`
	Format           null.String        `json:"format" envconfig:"JSCAT_FORMAT"`
	Concurrency      null.Int           `json:"concurrency" envconfig:"JSCAT_CONCURRENCY"`
	WatchDelay       types.NullDuration `json:"watchDelay" envconfig:"JSCAT_WATCH_DELAY"`
}

// NewConfig returns the default configuration.
func NewConfig() Config {
	return Config{
		SourceMaps: sourcemap.NewNullMode(sourcemap.ModeNone, false),
		Filename:   null.NewString("stdin", false),
		Target:     null.NewString("esnext", false),
		Format:     null.NewString("preserve", false),
		WatchDelay: types.NewNullDuration(50*time.Millisecond, false),
	}
}

// Apply the provided config on top of the current one, returning a new one.
// The provided config has priority over the current one.
func (c Config) Apply(cfg Config) Config {
	if cfg.OutFile.Valid {
		c.OutFile = cfg.OutFile
	}
	if cfg.SourceMaps.Valid {
		c.SourceMaps = cfg.SourceMaps
	}
	if cfg.SourceMapTarget.Valid {
		c.SourceMapTarget = cfg.SourceMapTarget
	}
	if cfg.SourceRoot.Valid {
		c.SourceRoot = cfg.SourceRoot
	}
	if len(cfg.Extensions) > 0 {
		c.Extensions = cfg.Extensions
	}
	if cfg.IncludeDotfiles.Valid {
		c.IncludeDotfiles = cfg.IncludeDotfiles
	}
	if cfg.Watch.Valid {
		c.Watch = cfg.Watch
	}
	if cfg.SkipInitialBuild.Valid {
		c.SkipInitialBuild = cfg.SkipInitialBuild
	}
	if cfg.Filename.Valid {
		c.Filename = cfg.Filename
	}
	if cfg.Target.Valid {
		c.Target = cfg.Target
	}
	if cfg.Format.Valid {
		c.Format = cfg.Format
	}
	if cfg.Concurrency.Valid {
		c.Concurrency = cfg.Concurrency
	}
	if cfg.WatchDelay.Valid {
		c.WatchDelay = cfg.WatchDelay
	}
	return c
}

func configFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringP("out-file", "o", "", "write the artifact to this file instead of standard output")
	flags.StringP("source-maps", "s", "none", "source map mode: none, inline or file")
	flags.Lookup("source-maps").NoOptDefVal = "file"
	flags.String("source-map-target", "", "file name recorded in the source map, defaults to the name of the out file")
	flags.String("source-root", "", "root prepended to the sources of the source map")
	flags.StringSliceP("extensions", "x", nil, "extensions compiled when walking directories (default .js,.jsx,.es6,.mjs,.cjs)")
	flags.Bool("include-dotfiles", false, "also compile files whose names start with a dot")
	flags.BoolP("watch", "w", false, "rebuild whenever an input changes")
	flags.Bool("skip-initial-build", false, "don't build before watching for changes")
	flags.StringP("filename", "f", "stdin", "file name standard input is attributed to")
	flags.String("target", "esnext", "language level of the output, esnext or es5 to es2022")
	flags.String("format", "preserve", "module format of the output: preserve, cjs, esm or iife")
	flags.Int64("concurrency", 0, "number of files compiled in parallel (default GOMAXPROCS)")
	flags.Duration("watch-delay", 50*time.Millisecond, "how long to wait for more changes before rebuilding")
	return flags
}

func getConfig(flags *pflag.FlagSet) (Config, error) {
	conf := Config{
		OutFile:          getNullString(flags, "out-file"),
		SourceMapTarget:  getNullString(flags, "source-map-target"),
		SourceRoot:       getNullString(flags, "source-root"),
		IncludeDotfiles:  getNullBool(flags, "include-dotfiles"),
		Watch:            getNullBool(flags, "watch"),
		SkipInitialBuild: getNullBool(flags, "skip-initial-build"),
		Filename:         getNullString(flags, "filename"),
		Target:           getNullString(flags, "target"),
		Format:           getNullString(flags, "format"),
		Concurrency:      getNullInt64(flags, "concurrency"),
		WatchDelay:       getNullDuration(flags, "watch-delay"),
	}
	if flags.Changed("source-maps") {
		mode, err := flags.GetString("source-maps")
		if err != nil {
			return conf, err
		}
		if err := conf.SourceMaps.UnmarshalText([]byte(mode)); err != nil {
			return conf, errext.WithExitCodeIfNone(
				errext.WithHint(err, "use one of none, inline or file"), exitcodes.InvalidConfig)
		}
	}
	if flags.Changed("extensions") {
		exts, err := flags.GetStringSlice("extensions")
		if err != nil {
			return conf, err
		}
		conf.Extensions = exts
	}
	return conf, nil
}

// readDiskConfig reads the config file, JSON or YAML depending on its
// extension. A missing file is only an error when its path was set explicitly.
func readDiskConfig(gs *state.GlobalState) (Config, error) {
	path := gs.Flags.ConfigFilePath
	data, err := fsext.ReadFile(gs.FS, path)
	if errors.Is(err, fs.ErrNotExist) && path == gs.DefaultFlags.ConfigFilePath {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, errext.WithExitCodeIfNone(
			fmt.Errorf("couldn't read the config file %s: %w", path, err), exitcodes.InvalidConfig)
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		data, err = yamlToJSON(data)
	}
	var conf Config
	if err == nil {
		err = json.Unmarshal(data, &conf)
	}
	if err != nil {
		return Config{}, errext.WithExitCodeIfNone(errext.WithHint(
			fmt.Errorf("couldn't parse the config file %s: %w", path, err),
			"the config file must hold a single object",
		), exitcodes.InvalidConfig)
	}
	return conf, nil
}

// yamlToJSON converts a YAML document so that it can be decoded with the
// JSON unmarshalers of the config types.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(doc)
}

// readEnvConfig reads the configuration from the JSCAT_ environment variables.
func readEnvConfig(env map[string]string) (Config, error) {
	var conf Config
	err := envconfig.Process("", &conf, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	if err != nil {
		err = errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	return conf, err
}

// getConsolidatedConfig assembles the final configuration. The layers are,
// from lowest to highest priority: defaults, config file, environment and
// command line flags.
func getConsolidatedConfig(gs *state.GlobalState, cliConf Config) (Config, error) {
	fileConf, err := readDiskConfig(gs)
	if err != nil {
		return Config{}, err
	}
	envConf, err := readEnvConfig(gs.Env)
	if err != nil {
		return Config{}, err
	}
	return NewConfig().Apply(fileConf).Apply(envConf).Apply(cliConf), nil
}

// validate checks the configuration for a build with the given inputs.
func (c Config) validate(fromStdin bool) error {
	invalid := func(hint, format string, args ...interface{}) error {
		return errext.WithExitCodeIfNone(errext.WithHint(fmt.Errorf(format, args...), hint), exitcodes.InvalidConfig)
	}
	switch {
	case c.Watch.Bool && fromStdin:
		return invalid("pass the files or directories to watch as arguments", "standard input can't be watched")
	case c.SkipInitialBuild.Bool && !c.Watch.Bool:
		return invalid("add --watch", "skipping the initial build only makes sense in watch mode")
	case c.Concurrency.Int64 < 0:
		return invalid("use 0 for the default", "concurrency must not be negative, got %d", c.Concurrency.Int64)
	case c.WatchDelay.Valid && c.WatchDelay.TimeDuration() < 0:
		return invalid("use a positive duration", "the watch delay must not be negative, got %s", c.WatchDelay.Duration)
	}
	for _, ext := range c.Extensions {
		if len(ext) < 2 || ext[0] != '.' {
			return invalid("extensions include the leading dot, like .js", "invalid extension %q", ext)
		}
	}
	return nil
}

// pipelineConfig converts the configuration for a pipeline working in cwd.
func (c Config) pipelineConfig(cwd string) pipeline.Config {
	return pipeline.Config{
		OutFile:         c.OutFile.String,
		SourceMaps:      c.SourceMaps.Mode,
		SourceMapTarget: c.SourceMapTarget.String,
		SourceRoot:      c.SourceRoot.String,
		Extensions:      c.Extensions,
		IncludeDotfiles: c.IncludeDotfiles.Bool,
		Concurrency:     int(c.Concurrency.Int64),
		StdinFilename:   c.Filename.String,
		Cwd:             cwd,
	}
}
