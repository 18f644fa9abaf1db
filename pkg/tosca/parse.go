package tosca

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ParseError is a document that could not be decoded.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	loc := e.File
	if loc == "" {
		loc = "<input>"
	}
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
	}
	return fmt.Sprintf("%s: %v", loc, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

// Parse decodes a single TOSCA YAML document.
func Parse(data []byte) (*ServiceTemplate, error) {
	return parseNamed("", data)
}

func parseNamed(name string, data []byte) (*ServiceTemplate, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{File: name, Err: errors.New("empty document")}
		}
		return nil, newParseError(name, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		line := 0
		if len(doc.Content) > 0 {
			line = doc.Content[0].Line
		}
		return nil, &ParseError{File: name, Line: line, Err: errors.New("top level must be a mapping")}
	}

	st := &ServiceTemplate{}
	if err := doc.Content[0].Decode(st); err != nil {
		return nil, newParseError(name, err)
	}
	st.Path = name
	return st, nil
}

// newParseError extracts the first line number yaml.v3 mentions in its message.
func newParseError(name string, err error) *ParseError {
	pe := &ParseError{File: name, Err: err}
	if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
		pe.Line, _ = strconv.Atoi(m[1])
	}
	return pe
}
