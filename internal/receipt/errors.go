package receipt

import (
	"errors"
	"fmt"

	"github.com/zombor/receipt-extractor/internal/scanning"
)

var (
	// ErrMissingRequiredField means the model output cannot form a valid Receipt
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrInvalidRequest means the submission itself was unusable
	ErrInvalidRequest = errors.New("invalid request")
	// ErrPartialData marks a derived figure that could not be computed
	ErrPartialData = errors.New("partial data")
)

// FieldError names the field that made a record invalid
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrMissingRequiredField, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrMissingRequiredField
}

// UserMessage converts a pipeline failure into a message suitable for the person who submitted the receipt
func UserMessage(err error) string {
	var fieldErr *FieldError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, scanning.ErrInvalidImage):
		return "The uploaded file could not be read as an image. Please upload a JPEG or PNG photo of the receipt."
	case errors.Is(err, ErrInvalidRequest):
		return fmt.Sprintf("The request was invalid: %v", err)
	case errors.Is(err, scanning.ErrAuthentication):
		return "The API key was rejected by the extraction service. Please check it and enter a new one."
	case errors.Is(err, scanning.ErrService):
		return "The extraction service could not be reached or returned an error. Please try again later."
	case errors.Is(err, scanning.ErrNoJSONFound):
		return "No JSON data was found in the model response. The raw response is shown below."
	case errors.Is(err, scanning.ErrMalformedJSON):
		return "The model response contained invalid JSON. The raw response is shown below."
	case errors.As(err, &fieldErr):
		return fmt.Sprintf("The receipt could not be read completely (%s %s). Please retry with a clearer image.", fieldErr.Field, fieldErr.Reason)
	case errors.Is(err, ErrMissingRequiredField):
		return "The receipt could not be read completely. Please retry with a clearer image."
	default:
		return "An unexpected error occurred while processing the receipt."
	}
}

// RawResponse returns the model text attached to a parse failure
func RawResponse(err error) (string, bool) {
	var parseErr *scanning.ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Raw, true
	}
	return "", false
}
