// Package sourcemap models the parts of the source map v3 format jscat needs:
// regular per-file maps as produced by the transform engine, and the
// sectioned (index) map that stitches them together for a concatenated
// artifact.
package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	gosourcemap "github.com/go-sourcemap/sourcemap"
)

// Version is the only source map version jscat reads or writes.
const Version = 3

// Map is a regular (non-sectioned) source map. jscat treats its contents as
// opaque and only passes it along.
type Map struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
}

// Empty returns the map used for units that came without one: it has no
// sources and no mappings, so it only reserves the unit's lines.
func Empty() *Map {
	return &Map{
		Version:  Version,
		Sources:  []string{},
		Names:    []string{},
		Mappings: "",
	}
}

// IsEmpty reports whether m maps nothing.
func (m *Map) IsEmpty() bool {
	return m == nil || (len(m.Sources) == 0 && m.Mappings == "")
}

// Parse decodes a regular source map. The data is additionally run through a
// real consumer, so a map that parses here can also be resolved by tools.
// A map without mappings is returned as Empty().
func Parse(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("couldn't decode source map: %w", err)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("unsupported source map version %d", m.Version)
	}
	if m.Mappings == "" {
		return Empty(), nil
	}
	if _, err := NewConsumer(data); err != nil {
		return nil, fmt.Errorf("invalid source map: %w", err)
	}
	if m.Sources == nil {
		m.Sources = []string{}
	}
	if m.Names == nil {
		m.Names = []string{}
	}
	return &m, nil
}

// noMappings is what an empty map's mappings are replaced with before it is
// handed to the consumer, which refuses "". It decodes to zero segments.
const noMappings = ";"

// NewConsumer returns a consumer resolving generated positions of a regular or
// sectioned map. Maps and sections without mappings are accepted and resolve
// nothing.
func NewConsumer(data []byte) (*gosourcemap.Consumer, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("couldn't decode source map: %w", err)
	}
	patched := fillMappings(raw)
	if sections, ok := raw["sections"].([]interface{}); ok {
		for _, s := range sections {
			section, ok := s.(map[string]interface{})
			if !ok {
				continue
			}
			if m, ok := section["map"].(map[string]interface{}); ok && fillMappings(m) {
				patched = true
			}
		}
	}
	if patched {
		var err error
		if data, err = json.Marshal(raw); err != nil {
			return nil, err
		}
	}
	return gosourcemap.Parse("", data)
}

func fillMappings(m map[string]interface{}) bool {
	if _, sectioned := m["sections"]; sectioned {
		return false
	}
	if mappings, _ := m["mappings"].(string); mappings != "" {
		return false
	}
	m["mappings"] = noMappings
	return true
}

// Offset is the generated position at which a section starts.
type Offset struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Section anchors a regular map at an offset in the generated output.
type Section struct {
	Offset Offset `json:"offset"`
	Map    *Map   `json:"map"`
}

// Index is a sectioned source map, the composite map of an artifact.
type Index struct {
	Version    int       `json:"version"`
	File       string    `json:"file"`
	SourceRoot string    `json:"sourceRoot,omitempty"`
	Sections   []Section `json:"sections"`
}

// NewIndex builds a sectioned map from sections that must already be ordered
// by offset. SourceRoot is not part of the construction and has to be set on
// the result afterwards.
func NewIndex(file string, sections []Section) (*Index, error) {
	if sections == nil {
		sections = []Section{}
	}
	for i := range sections {
		if sections[i].Map == nil {
			return nil, fmt.Errorf("section %d has no map", i)
		}
		if sections[i].Offset.Column != 0 {
			return nil, fmt.Errorf("section %d starts at column %d, sections have to start a line",
				i, sections[i].Offset.Column)
		}
		if i > 0 && sections[i].Offset.Line < sections[i-1].Offset.Line {
			return nil, fmt.Errorf("section %d at line %d overlaps the previous one at line %d",
				i, sections[i].Offset.Line, sections[i-1].Offset.Line)
		}
	}
	return &Index{Version: Version, File: file, Sections: sections}, nil
}

// Encode returns the JSON encoding of the map.
func (idx *Index) Encode() ([]byte, error) {
	if idx == nil {
		return nil, errors.New("no source map to encode")
	}
	return json.Marshal(idx)
}

const (
	urlCommentPrefix = "//# sourceMappingURL="
	inlineDataPrefix = "data:application/json;charset=utf-8;base64,"
)

// URLComment returns the comment pointing consumers at an external map.
func URLComment(location string) string {
	return urlCommentPrefix + location
}

// InlineComment returns a single-line comment carrying the whole map encoded
// as a base64 data URL.
func (idx *Index) InlineComment() (string, error) {
	data, err := idx.Encode()
	if err != nil {
		return "", err
	}
	return urlCommentPrefix + inlineDataPrefix + base64.StdEncoding.EncodeToString(data), nil
}

// DecodeInlineComment is the inverse of InlineComment; it returns the raw JSON
// of the map embedded in comment.
func DecodeInlineComment(comment string) ([]byte, error) {
	const prefix = urlCommentPrefix + inlineDataPrefix
	if len(comment) < len(prefix) || comment[:len(prefix)] != prefix {
		return nil, errors.New("not an inline source map comment")
	}
	return base64.StdEncoding.DecodeString(comment[len(prefix):])
}
