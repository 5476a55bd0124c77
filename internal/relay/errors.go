package relay

import (
	"errors"
	"fmt"
)

// NoImageMessage is reported when the provider answered without an image.
const NoImageMessage = "No image returned"

// fallbackMessage is used when an upstream failure carries no message.
const fallbackMessage = "Compose failed"

// Kind classifies relay failures. Callers map kinds to transport status
// codes; the relay itself knows nothing about HTTP.
type Kind int

const (
	// KindUnexpected is any failure the relay did not anticipate.
	KindUnexpected Kind = iota
	// KindValidation means a required input was missing or malformed.
	KindValidation
	// KindDecode means uploaded bytes were not an image.
	KindDecode
	// KindUpstream means the provider call failed.
	KindUpstream
	// KindNoImage means the provider succeeded but returned no image.
	KindNoImage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDecode:
		return "decode"
	case KindUpstream:
		return "upstream"
	case KindNoImage:
		return "no_image"
	default:
		return "unexpected"
	}
}

// Error is the relay's error type.
type Error struct {
	Kind Kind
	// Message is safe to show to the caller.
	Message string
	// StatusCode is the provider's HTTP status for KindUpstream, when known.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnexpected when err is not an
// *Error.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnexpected
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func decodeError(field string, err error) *Error {
	return &Error{Kind: KindDecode, Message: fmt.Sprintf("Invalid %s file", field), Err: err}
}

// UpstreamError builds a KindUpstream error from whatever the provider
// exposed. An empty message falls back to the wrapped error's text, then
// to a generic one.
func UpstreamError(status int, message string, err error) *Error {
	if message == "" && err != nil {
		message = err.Error()
	}
	if message == "" {
		message = fallbackMessage
	}
	return &Error{Kind: KindUpstream, Message: message, StatusCode: status, Err: err}
}
