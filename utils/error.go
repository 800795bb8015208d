package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// The error is a wrapper for a problem found in one of the project's config
// sources.
type (
	SourceError struct {
		SourceType               string   // The kind of source that failed, e.g. "JSON config".
		Title, Path, Description string   // Description of the error, as presented to the user.
		Line, Column             int      // Where the error was encountered.
		SourceLines              []string // The entire source file, split into lines.
		MetaError                string   // Error that occurred producing the error itself.
	}
	SourceLine struct {
		Source  string
		Line    int
		IsError bool
	}
)

// Return a new error object.
func NewError(source, title, path, description string) *SourceError {
	return &SourceError{
		SourceType:  source,
		Title:       title,
		Path:        path,
		Description: description,
	}
}

// NewJSONError describes a failure to decode the JSON in data, read from
// path. Syntax and type errors are located by line and column.
func NewJSONError(path string, data []byte, err error) *SourceError {
	e := &SourceError{
		SourceType:  "JSON config",
		Title:       "Config Parse Error",
		Path:        path,
		Description: err.Error(),
		SourceLines: strings.Split(string(data), "\n"),
	}

	var offset int64 = -1
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	if offset >= 0 {
		e.Line, e.Column = lineColumn(data, offset)
	}
	return e
}

// lineColumn converts a decoder offset, which counts the offending byte,
// into a 1-based line and column.
func lineColumn(data []byte, offset int64) (line, column int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	head := data[:offset]
	line = bytes.Count(head, []byte("\n")) + 1
	column = int(offset) - 1 - bytes.LastIndexByte(head, '\n')
	if column < 1 {
		column = 1
	}
	return
}

// Error method constructs a plaintext version of the error, taking
// account that fields are optionally set. Returns e.g. Config Parse Error
// (in pp-dev.config.json:3): invalid character '}' looking for beginning of value.
func (e *SourceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	loc := ""
	if e.Path != "" {
		line := ""
		if e.Line != 0 {
			line = fmt.Sprintf(":%d", e.Line)
		}
		loc = fmt.Sprintf("(in %s%s)", e.Path, line)
	}
	header := loc
	if e.Title != "" {
		if loc != "" {
			header = fmt.Sprintf("%s %s: ", e.Title, loc)
		} else {
			header = fmt.Sprintf("%s: ", e.Title)
		}
	}
	return fmt.Sprintf("%s%s", header, e.Description)
}

// ContextSource method returns a snippet of the source around
// where the error occurred.
func (e *SourceError) ContextSource() []SourceLine {
	if e.SourceLines == nil || e.Line == 0 {
		return nil
	}
	start := (e.Line - 1) - 5
	if start < 0 {
		start = 0
	}
	end := (e.Line - 1) + 5
	if end > len(e.SourceLines) {
		end = len(e.SourceLines)
	}

	lines := make([]SourceLine, end-start)
	for i, src := range e.SourceLines[start:end] {
		fileLine := start + i + 1
		lines[i] = SourceLine{src, fileLine, fileLine == e.Line}
	}
	return lines
}
