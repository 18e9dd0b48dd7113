package transform

import (
	"errors"
	"fmt"
	"strings"
)

// TransformError describes one file failing its adapter chain.
type TransformError struct {
	Task    string
	Adapter string
	File    string
	Line    int
	Column  int
	Err     error
}

func (e *TransformError) Error() string {
	var b strings.Builder
	if e.Task != "" {
		b.WriteString(e.Task)
		b.WriteString(": ")
	}
	b.WriteString(e.Location())
	if e.Adapter != "" {
		fmt.Fprintf(&b, " (%s)", e.Adapter)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransformError) Unwrap() error { return e.Err }

// Location renders file[:line[:column]].
func (e *TransformError) Location() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Column)
	case e.Line > 0:
		return fmt.Sprintf("%s:%d", e.File, e.Line)
	default:
		return e.File
	}
}

// AsTransformError extracts a *TransformError from err.
func AsTransformError(err error) (*TransformError, bool) {
	var te *TransformError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// lineAt returns the 1-based line and column of byte offset off in data.
func lineAt(data []byte, off int) (int, int) {
	if off < 0 {
		return 0, 0
	}
	if off > len(data) {
		off = len(data)
	}
	line, col := 1, 1
	for _, c := range data[:off] {
		if c == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
