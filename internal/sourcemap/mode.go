package sourcemap

import (
	"fmt"
	"strings"
)

// Mode selects how the composite source map of a run is emitted.
type Mode uint8

// Source map modes. The zero value emits no map.
const (
	ModeNone Mode = iota
	ModeInline
	ModeFile
)

// ParseMode parses the user-facing mode names. `true` and `external` are
// accepted as aliases of `file`, and `false` and the empty string of `none`.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "false":
		return ModeNone, nil
	case "inline":
		return ModeInline, nil
	case "file", "external", "true":
		return ModeFile, nil
	default:
		return ModeNone, fmt.Errorf("unknown source map mode %q", s)
	}
}

// Enabled reports whether any map should be produced.
func (m Mode) Enabled() bool {
	return m != ModeNone
}

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeInline:
		return "inline"
	case ModeFile:
		return "file"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(data []byte) error {
	v, err := ParseMode(string(data))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// NullMode is a nullable Mode for layered configuration. In JSON it also
// accepts booleans, true meaning ModeFile and false ModeNone.
type NullMode struct {
	Mode  Mode
	Valid bool
}

// NewNullMode returns a NullMode.
func NewNullMode(m Mode, valid bool) NullMode {
	return NullMode{Mode: m, Valid: valid}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *NullMode) UnmarshalText(data []byte) error {
	if err := m.Mode.UnmarshalText(data); err != nil {
		return err
	}
	m.Valid = true
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *NullMode) UnmarshalJSON(data []byte) error {
	switch s := string(data); {
	case s == "null":
		*m = NullMode{}
		return nil
	case s == "true" || s == "false":
		return m.UnmarshalText(data)
	case len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"':
		return m.UnmarshalText(data[1 : len(data)-1])
	default:
		return fmt.Errorf("source map mode must be a string or a boolean, got %s", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (m NullMode) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return []byte(`"` + m.Mode.String() + `"`), nil
}
