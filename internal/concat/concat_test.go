package concat

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.k6.io/jscat/internal/sourcemap"
)

func unitMap(t *testing.T, source string) *sourcemap.Map {
	t.Helper()
	m, err := sourcemap.Parse([]byte(`{"version":3,"sources":["` + source + `"],"names":[],"mappings":"AAAA"}`))
	require.NoError(t, err)
	return m
}

func TestMergeScenario(t *testing.T) {
	t.Parallel()

	art, err := Merge([]*Unit{{Code: "const a=1;"}, {Code: "const b=2;"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "const a=1;\nconst b=2;\n", art.Code)
	assert.Equal(t, StdoutTarget, art.Map.File)
	require.Len(t, art.Map.Sections, 2)
	assert.Equal(t, 0, art.Map.Sections[0].Offset.Line)
	assert.Equal(t, 1, art.Map.Sections[1].Offset.Line)
}

func TestMergeOffsets(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(42)) //nolint:gosec
	units := make([]*Unit, 20)
	for i := range units {
		lines := make([]string, r.Intn(5)+1)
		for j := range lines {
			lines[j] = strings.Repeat("x", r.Intn(10))
		}
		units[i] = &Unit{Code: strings.Join(lines, "\n")}
	}

	art, err := Merge(units, Options{})
	require.NoError(t, err)
	require.Len(t, art.Map.Sections, len(units))

	newlines := 0
	for i, section := range art.Map.Sections {
		assert.Equal(t, newlines+i, section.Offset.Line, "section %d", i)
		assert.Equal(t, 0, section.Offset.Column)
		newlines += strings.Count(units[i].Code, "\n")
	}

	codes := make([]string, len(units))
	for i, u := range units {
		codes[i] = u.Code
	}
	assert.Equal(t, strings.Join(codes, "\n")+"\n", art.Code)
}

func TestMergeSingleUnitWithoutMap(t *testing.T) {
	t.Parallel()

	art, err := Merge([]*Unit{{Code: "x()"}}, Options{OutFile: "dist/out/bundle.js"})
	require.NoError(t, err)
	assert.Equal(t, "x()\n", art.Code)
	assert.Equal(t, "bundle.js", art.Map.File)
	require.Len(t, art.Map.Sections, 1)
	assert.Equal(t, sourcemap.Empty(), art.Map.Sections[0].Map)

	art, err = Merge([]*Unit{{Code: "x()"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, StdoutTarget, art.Map.File)
}

func TestMergeResolvesThroughUnmappedUnits(t *testing.T) {
	t.Parallel()

	twoLines, err := sourcemap.Parse([]byte(`{"version":3,"sources":["a.js"],"names":[],"mappings":"AAAA;AACA"}`))
	require.NoError(t, err)
	art, err := Merge([]*Unit{
		{Code: "a1\na2", Map: twoLines},
		{Code: "x()"},
		{Code: "b()", Map: unitMap(t, "b.js")},
	}, Options{SourceMaps: sourcemap.ModeFile, OutFile: "out.js"})
	require.NoError(t, err)
	data, err := art.Map.Encode()
	require.NoError(t, err)

	consumer, err := sourcemap.NewConsumer(data)
	require.NoError(t, err)

	expected := []struct {
		line   int
		source string
		orig   int
	}{
		{1, "a.js", 1},
		{2, "a.js", 2},
		{3, "", 0},
		{4, "b.js", 1},
	}
	for _, e := range expected {
		source, _, line, _, ok := consumer.Source(e.line, 0)
		if e.source == "" {
			assert.False(t, ok, "line %d", e.line)
			continue
		}
		require.True(t, ok, "line %d", e.line)
		assert.Equal(t, e.source, source, "line %d", e.line)
		assert.Equal(t, e.orig, line, "line %d", e.line)
	}
}

func TestMergeSkipsFailedUnits(t *testing.T) {
	t.Parallel()

	a := &Unit{Code: "a1\na2", Map: unitMap(t, "a.js")}
	c := &Unit{Code: "c1", Map: unitMap(t, "c.js")}

	art, err := Merge([]*Unit{a, nil, c}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "a1\na2\nc1\n", art.Code)
	require.Len(t, art.Map.Sections, 2)
	assert.Equal(t, 0, art.Map.Sections[0].Offset.Line)
	assert.Equal(t, 2, art.Map.Sections[1].Offset.Line)
	assert.Equal(t, []string{"c.js"}, art.Map.Sections[1].Map.Sources)
}

func TestMergeAllFailed(t *testing.T) {
	t.Parallel()

	art, err := Merge([]*Unit{nil, nil}, Options{})
	require.NoError(t, err)
	assert.Empty(t, art.Code)
	assert.Empty(t, art.Map.Sections)

	art, err = Merge(nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, art.Code)
}

func TestMergeMapFile(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		opts     Options
		expected string
	}{
		{Options{SourceMapTarget: "custom.js", OutFile: "dist/bundle.js"}, "custom.js"},
		{Options{OutFile: "dist/bundle.js"}, "bundle.js"},
		{Options{}, "stdout"},
	}
	for _, tc := range testCases {
		art, err := Merge([]*Unit{{Code: "1"}}, tc.opts)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, art.Map.File)
	}
}

func TestMergeSourceRoot(t *testing.T) {
	t.Parallel()

	art, err := Merge([]*Unit{{Code: "1"}}, Options{SourceRoot: "/project/src"})
	require.NoError(t, err)
	assert.Equal(t, "/project/src", art.Map.SourceRoot)
}

func TestMergeInlineComment(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		opts   Options
		inline bool
	}{
		{"none to stdout", Options{SourceMaps: sourcemap.ModeNone}, false},
		{"none to file", Options{SourceMaps: sourcemap.ModeNone, OutFile: "out.js"}, false},
		{"inline to stdout", Options{SourceMaps: sourcemap.ModeInline}, true},
		{"inline to file", Options{SourceMaps: sourcemap.ModeInline, OutFile: "out.js"}, true},
		{"file to stdout", Options{SourceMaps: sourcemap.ModeFile}, true},
		{"file to file", Options{SourceMaps: sourcemap.ModeFile, OutFile: "out.js"}, false},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			art, err := Merge([]*Unit{{Code: "a()", Map: unitMap(t, "a.js")}}, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.inline, tc.opts.InlineMap())
			if !tc.inline {
				assert.Equal(t, "a()\n", art.Code)
				return
			}
			prefix := "a()\n\n"
			require.True(t, strings.HasPrefix(art.Code, prefix), art.Code)
			raw, err := sourcemap.DecodeInlineComment(art.Code[len(prefix):])
			require.NoError(t, err)
			encoded, err := art.Map.Encode()
			require.NoError(t, err)
			assert.JSONEq(t, string(encoded), string(raw))
		})
	}
}
