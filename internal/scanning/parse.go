package scanning

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// LocateAndParse finds the receipt JSON object inside free-form model text and decodes it.
//
// Top-level brace-balanced spans (quotes and escapes respected) are tried in order and the
// first one that decodes to an object wins. If none does, the greedy span from the first
// '{' to the last '}' is tried as a fallback. Markdown fences and surrounding prose are
// skipped by brace location rather than stripped. Numbers decode as
// json.Number so amounts keep their exact textual value.
func LocateAndParse(raw string) (map[string]any, error) {
	first := strings.IndexByte(raw, '{')
	last := strings.LastIndexByte(raw, '}')
	if first == -1 || last < first {
		return nil, &ParseError{Kind: ErrNoJSONFound, Raw: raw}
	}

	for start := first; start != -1; {
		end := balancedEnd(raw, start)
		if end == -1 {
			// everything after an unclosed brace is nested inside it
			break
		}
		if obj, err := decodeObject(raw[start : end+1]); err == nil {
			return obj, nil
		}
		start = nextBrace(raw, end)
	}

	obj, err := decodeObject(raw[first : last+1])
	if err != nil {
		return nil, &ParseError{Kind: ErrMalformedJSON, Raw: raw, Err: err}
	}
	return obj, nil
}

func nextBrace(text string, after int) int {
	idx := strings.IndexByte(text[after+1:], '{')
	if idx == -1 {
		return -1
	}
	return after + 1 + idx
}

// balancedEnd returns the index of the '}' closing the object opened at start, or -1
func balancedEnd(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func decodeObject(span string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(span)))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON object")
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level JSON value is not an object")
	}
	return obj, nil
}
