// Package apierror implements the Anthropic-shaped error taxonomy and wire
// envelope used to surface failures to HTTP clients, grounded on the
// teacher's proxy/json.go ErrorResponse/writeJSONError pair and extended to
// the kind taxonomy named by the gateway's error handling design.
package apierror

import "fmt"

// Kind is one of the Anthropic error envelope's kind values.
type Kind string

const (
	KindInvalidRequest Kind = "invalid_request_error"
	KindAuthentication Kind = "authentication_error"
	KindPermission     Kind = "permission_error"
	KindNotFound       Kind = "not_found_error"
	KindRateLimit      Kind = "rate_limit_error"
	KindAPIError       Kind = "api_error"
	KindOverloaded     Kind = "overloaded_error"
)

// Error is a client-facing error: a kind, message, optional offending
// parameter path, and the HTTP status it maps to.
type Error struct {
	Kind       Kind
	Message    string
	Param      string
	HTTPStatus int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Envelope is the JSON shape surfaced to HTTP clients.
type Envelope struct {
	Type  string        `json:"type"`
	Error EnvelopeError `json:"error"`
}

// EnvelopeError is the nested error object of Envelope.
type EnvelopeError struct {
	Type    Kind   `json:"type"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

// ToEnvelope builds the wire envelope for this error.
func (e *Error) ToEnvelope() Envelope {
	return Envelope{
		Type: "error",
		Error: EnvelopeError{
			Type:    e.Kind,
			Message: e.Message,
			Param:   e.Param,
		},
	}
}

// InvalidRequest builds a validation failure naming the first offending path.
func InvalidRequest(message, param string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: message, Param: param, HTTPStatus: 400}
}

// UpstreamUnavailable wraps an upstream connection failure or 5xx status.
func UpstreamUnavailable(cause error) *Error {
	return &Error{Kind: KindAPIError, Message: "upstream unavailable", HTTPStatus: 502, Cause: cause}
}

// MalformedUpstream wraps a non-JSON or shape-mismatched non-streaming upstream reply.
func MalformedUpstream(cause error) *Error {
	return &Error{Kind: KindAPIError, Message: "malformed upstream response", HTTPStatus: 502, Cause: cause}
}

// MalformedToolArguments wraps a tool-call argument string that failed JSON parsing.
func MalformedToolArguments(cause error) *Error {
	return &Error{Kind: KindAPIError, Message: "malformed tool call arguments in upstream response", HTTPStatus: 502, Cause: cause}
}

// InvalidImageSource reports an image block whose source is not base64 —
// not a defined Anthropic ingress shape.
func InvalidImageSource() *Error {
	return &Error{Kind: KindInvalidRequest, Message: "remote image URLs are not a supported image source", HTTPStatus: 400}
}

// Internal wraps an unexpected internal failure as api_error/500.
func Internal(cause error) *Error {
	return &Error{Kind: KindAPIError, Message: "internal error", HTTPStatus: 500, Cause: cause}
}
