package models

import "fmt"

// ErrorKind classifies a failed forecast lookup. Used as a metric label.
type ErrorKind string

const (
	ErrorKindNotFound          ErrorKind = "not_found"
	ErrorKindUnauthorized      ErrorKind = "unauthorized"
	ErrorKindLocationNotFound  ErrorKind = "location_not_found"
	ErrorKindUpstreamFailure   ErrorKind = "upstream_failure"
	ErrorKindProcessingFailure ErrorKind = "processing_failure"
)

// User-facing messages, one per kind. NotFound is formatted with the caller's address.
const (
	MsgNotFound          = "Could not find location: %s. Please check the address and try again."
	MsgUnauthorized      = "Invalid API key. Please check your configuration."
	MsgLocationNotFound  = "Location not found. Please try a different location."
	MsgUpstreamFailure   = "Error fetching weather data. Please try again later."
	MsgProcessingFailure = "Error processing weather data. Please try again later."
)

// ErrorResult is the failure side of a forecast lookup. Message is safe to show
// to the caller; Cause is for logs only.
type ErrorResult struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// NewErrorResult builds an ErrorResult with the canonical message for kind.
// address is only used by ErrorKindNotFound.
func NewErrorResult(kind ErrorKind, address string, cause error) *ErrorResult {
	var msg string
	switch kind {
	case ErrorKindNotFound:
		msg = fmt.Sprintf(MsgNotFound, address)
	case ErrorKindUnauthorized:
		msg = MsgUnauthorized
	case ErrorKindLocationNotFound:
		msg = MsgLocationNotFound
	case ErrorKindProcessingFailure:
		msg = MsgProcessingFailure
	default:
		kind = ErrorKindUpstreamFailure
		msg = MsgUpstreamFailure
	}
	return &ErrorResult{Kind: kind, Message: msg, Cause: cause}
}

func (e *ErrorResult) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ErrorResult) Unwrap() error {
	return e.Cause
}
