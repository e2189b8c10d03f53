package scanning

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthentication means the remote service rejected the credential.
	ErrAuthentication = errors.New("authentication failed")
	// ErrService covers every other transport or remote failure.
	ErrService = errors.New("extraction service error")
	// ErrNoJSONFound means the model response contained no '{'.
	ErrNoJSONFound = errors.New("no JSON object found in response")
	// ErrMalformedJSON means a brace span was found but did not decode to an object.
	ErrMalformedJSON = errors.New("malformed JSON object in response")
	// ErrInvalidImage means the upload could not be decoded as a supported image.
	ErrInvalidImage = errors.New("invalid image")
)

// APIError is a failed call to an extraction provider
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Auth       bool
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, msg)
}

func (e *APIError) Unwrap() []error {
	kind := ErrService
	if e.Auth {
		kind = ErrAuthentication
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}

// newStatusError classifies a non-2xx HTTP response
func newStatusError(provider string, statusCode int, body string) *APIError {
	return &APIError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    body,
		Auth:       statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden,
	}
}

// ParseError reports a model response that could not be turned into a JSON object.
// Raw holds the offending text so it can be shown to the user.
type ParseError struct {
	Kind error
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
