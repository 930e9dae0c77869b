package watch

import (
	"path/filepath"
	"strings"

	"go.k6.io/jscat/internal/walker"
	"go.k6.io/jscat/lib/fsext"
)

// Op is the kind of a filesystem change. Several kinds may be combined.
type Op uint8

const (
	Create Op = 1 << iota
	Write
	Remove
	Rename
	Chmod
)

// actionable are the kinds that can change what a build produces.
const actionable = Create | Write | Remove | Rename

// Has reports whether op contains all of other.
func (op Op) Has(other Op) bool { return op&other == other }

func (op Op) String() string {
	var parts []string
	for _, o := range []struct {
		op   Op
		name string
	}{{Create, "CREATE"}, {Write, "WRITE"}, {Remove, "REMOVE"}, {Rename, "RENAME"}, {Chmod, "CHMOD"}} {
		if op.Has(o.op) {
			parts = append(parts, o.name)
		}
	}
	if len(parts) == 0 {
		return "[no events]"
	}
	return strings.Join(parts, "|")
}

// Event is a single change reported by a Backend.
type Event struct {
	Path string
	Op   Op
}

// Backend delivers batches of change events for the paths added to it.
type Backend interface {
	Add(path string) error
	Batches() <-chan []Event
	Close() error
}

// MatcherOptions configure a Matcher.
type MatcherOptions struct {
	// Extensions of compilable files, walker.DefaultExtensions when empty.
	Extensions []string
	// Filenames are the build's arguments, relevant whatever their extension.
	Filenames []string
	// Exclude are files whose changes never matter, like the build's outputs.
	Exclude         []string
	IncludeDotfiles bool
	// Cwd resolves relative paths of events and options.
	Cwd string
}

// Matcher decides which events should trigger a rebuild.
type Matcher struct {
	extensions      []string
	includeDotfiles bool
	cwd             string
	filenames       map[string]struct{}
	exclude         map[string]struct{}
}

// NewMatcher returns a Matcher for opts.
func NewMatcher(opts MatcherOptions) Matcher {
	if len(opts.Extensions) == 0 {
		opts.Extensions = walker.DefaultExtensions
	}
	m := Matcher{
		extensions:      opts.Extensions,
		includeDotfiles: opts.IncludeDotfiles,
		cwd:             opts.Cwd,
		filenames:       make(map[string]struct{}, len(opts.Filenames)),
		exclude:         make(map[string]struct{}, len(opts.Exclude)),
	}
	for _, f := range opts.Filenames {
		m.filenames[fsext.Abs(m.cwd, f)] = struct{}{}
	}
	for _, f := range opts.Exclude {
		m.exclude[fsext.Abs(m.cwd, f)] = struct{}{}
	}
	return m
}

// Relevant reports whether ev should trigger a rebuild. Excluded files never
// do. Arguments always do. Other files do when a directory walk would pick
// them up.
func (m Matcher) Relevant(ev Event) bool {
	if ev.Op&actionable == 0 {
		return false
	}
	path := fsext.Abs(m.cwd, ev.Path)
	if _, ok := m.exclude[path]; ok {
		return false
	}
	if _, ok := m.filenames[path]; ok {
		return true
	}
	if !m.includeDotfiles && strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return walker.IsCompilable(path, m.extensions)
}

// Filter returns the relevant events of batch.
func (m Matcher) Filter(batch []Event) []Event {
	var relevant []Event
	for _, ev := range batch {
		if m.Relevant(ev) {
			relevant = append(relevant, ev)
		}
	}
	return relevant
}
