package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"go.k6.io/jscat/errext"
	"go.k6.io/jscat/errext/exitcodes"
	"go.k6.io/jscat/internal/sourcemap"
	"go.k6.io/jscat/lib/types"
)

func TestConfigApply(t *testing.T) {
	t.Parallel()

	base := NewConfig()
	assert.Equal(t, base, base.Apply(Config{}))

	full := Config{
		OutFile:          null.StringFrom("out.js"),
		SourceMaps:       sourcemap.NewNullMode(sourcemap.ModeInline, true),
		SourceMapTarget:  null.StringFrom("bundle.js"),
		SourceRoot:       null.StringFrom("/src"),
		Extensions:       []string{".ts"},
		IncludeDotfiles:  null.BoolFrom(true),
		Watch:            null.BoolFrom(true),
		SkipInitialBuild: null.BoolFrom(true),
		Filename:         null.StringFrom("app.js"),
		Target:           null.StringFrom("es2017"),
		Format:           null.StringFrom("cjs"),
		Concurrency:      null.IntFrom(3),
		WatchDelay:       types.NullDurationFrom(time.Second),
	}
	assert.Equal(t, full, base.Apply(full))

	// only the valid values of the argument are applied
	partial := full.Apply(Config{OutFile: null.NewString("other.js", false), Concurrency: null.IntFrom(1)})
	assert.Equal(t, "out.js", partial.OutFile.String)
	assert.Equal(t, int64(1), partial.Concurrency.Int64)
}

func TestGetConfigFromFlags(t *testing.T) {
	t.Parallel()

	flags := configFlagSet()
	require.NoError(t, flags.Parse([]string{"-o", "dist/out.js", "-s", "-x", ".js,.ts", "--watch-delay", "2s"}))
	conf, err := getConfig(flags)
	require.NoError(t, err)

	assert.Equal(t, null.StringFrom("dist/out.js"), conf.OutFile)
	assert.Equal(t, sourcemap.NewNullMode(sourcemap.ModeFile, true), conf.SourceMaps)
	assert.Equal(t, []string{".js", ".ts"}, conf.Extensions)
	assert.Equal(t, types.NullDurationFrom(2*time.Second), conf.WatchDelay)
	assert.False(t, conf.Watch.Valid)
	assert.False(t, conf.Target.Valid)
	assert.Equal(t, "esnext", conf.Target.String)
}

func TestGetConfigInvalidSourceMaps(t *testing.T) {
	t.Parallel()

	flags := configFlagSet()
	require.NoError(t, flags.Parse([]string{"--source-maps", "both"}))
	_, err := getConfig(flags)
	require.Error(t, err)

	var ecerr errext.HasExitCode
	require.ErrorAs(t, err, &ecerr)
	assert.Equal(t, exitcodes.InvalidConfig, ecerr.ExitCode())
}

func TestReadEnvConfig(t *testing.T) {
	t.Parallel()

	conf, err := readEnvConfig(map[string]string{
		"JSCAT_OUT_FILE":         "out.js",
		"JSCAT_SOURCE_MAPS":      "true",
		"JSCAT_EXTENSIONS":       ".js,.mjs",
		"JSCAT_INCLUDE_DOTFILES": "true",
		"JSCAT_CONCURRENCY":      "4",
		"JSCAT_WATCH_DELAY":      "200",
		"UNRELATED":              "x",
	})
	require.NoError(t, err)
	assert.Equal(t, null.StringFrom("out.js"), conf.OutFile)
	assert.Equal(t, sourcemap.NewNullMode(sourcemap.ModeFile, true), conf.SourceMaps)
	assert.Equal(t, []string{".js", ".mjs"}, conf.Extensions)
	assert.Equal(t, null.BoolFrom(true), conf.IncludeDotfiles)
	assert.Equal(t, null.IntFrom(4), conf.Concurrency)
	assert.Equal(t, types.NullDurationFrom(200*time.Millisecond), conf.WatchDelay)
	assert.False(t, conf.Watch.Valid)

	_, err = readEnvConfig(map[string]string{"JSCAT_CONCURRENCY": "many"})
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewConfig().validate(true))
	assert.NoError(t, NewConfig().Apply(Config{Watch: null.BoolFrom(true)}).validate(false))
	assert.Error(t, NewConfig().Apply(Config{Watch: null.BoolFrom(true)}).validate(true))
	assert.Error(t, NewConfig().Apply(Config{SkipInitialBuild: null.BoolFrom(true)}).validate(false))
	assert.Error(t, NewConfig().Apply(Config{Concurrency: null.IntFrom(-1)}).validate(false))
	assert.Error(t, NewConfig().Apply(Config{Extensions: []string{"."}}).validate(false))
}

func TestPipelineConfig(t *testing.T) {
	t.Parallel()

	conf := NewConfig().Apply(Config{
		OutFile:    null.StringFrom("out.js"),
		SourceMaps: sourcemap.NewNullMode(sourcemap.ModeFile, true),
	}).pipelineConfig("/work")
	assert.Equal(t, "out.js", conf.OutFile)
	assert.Equal(t, sourcemap.ModeFile, conf.SourceMaps)
	assert.Equal(t, "stdin", conf.StdinFilename)
	assert.Equal(t, "/work", conf.Cwd)
}
