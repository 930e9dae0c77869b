package errext

import (
	"errors"
)

// HasPosition is implemented by errors that point at a location in a source file.
type HasPosition interface {
	error
	Position() (filename string, line, column int)
}

// Format formats the given error as a message (string) and a map of fields.
// In case of [HasHint], it adds the hint as a field. In case of [HasPosition],
// the location is added as the file, line and column fields.
func Format(err error) (string, map[string]interface{}) {
	if err == nil {
		return "", nil
	}

	errText := err.Error()

	fields := make(map[string]interface{})
	var herr HasHint
	if errors.As(err, &herr) {
		fields["hint"] = herr.Hint()
	}

	var perr HasPosition
	if errors.As(err, &perr) {
		filename, line, column := perr.Position()
		fields["file"] = filename
		if line > 0 {
			fields["line"] = line
			fields["column"] = column
		}
	}

	return errText, fields
}
