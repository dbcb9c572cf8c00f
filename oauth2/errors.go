package oauth2

import "errors"

// ErrorCode is one of the fixed protocol error codes from RFC 6749 §5.2.
// Every failure inside the token-issuance core maps to exactly one of
// these; nothing else ever reaches the wire.
type ErrorCode string

const (
	ErrCodeInvalidRequest       ErrorCode = "invalid_request"
	ErrCodeInvalidClient        ErrorCode = "invalid_client"
	ErrCodeInvalidGrant         ErrorCode = "invalid_grant"
	ErrCodeUnauthorizedClient   ErrorCode = "unauthorized_client"
	ErrCodeUnsupportedGrantType ErrorCode = "unsupported_grant_type"
	ErrCodeInvalidScope         ErrorCode = "invalid_scope"
)

// Error is a protocol-conformant token endpoint error.
// Code and Description are exactly what gets serialized in the error
// response body; internal failure detail never leaks through here.
type Error struct {
	Code        ErrorCode `json:"error"`
	Description string    `json:"error_description,omitempty"`
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Description
}

// NewError creates a protocol error with the given code and description.
func NewError(code ErrorCode, description string) *Error {
	return &Error{Code: code, Description: description}
}

// InvalidRequestError is the deliberately coarse transport-check failure.
// The description never says what was malformed.
func InvalidRequestError() *Error {
	return NewError(ErrCodeInvalidRequest, "the request is malformed")
}

// InvalidClientError is the single construction point for every client
// authentication failure. All paths (unknown id, wrong secret, bad
// assertion, missing credential) produce this identical value so the
// endpoint cannot be used as a client-enumeration or credential oracle.
func InvalidClientError() *Error {
	return NewError(ErrCodeInvalidClient, "client authentication failed")
}

// InvalidGrantError covers bad, expired, consumed, or mismatched grant
// material (codes, refresh tokens, user credentials).
func InvalidGrantError() *Error {
	return NewError(ErrCodeInvalidGrant, "the provided grant is invalid, expired, or revoked")
}

// UnsupportedGrantTypeError covers unknown grant types and grant types
// not allowed for the authenticated client.
func UnsupportedGrantTypeError() *Error {
	return NewError(ErrCodeUnsupportedGrantType, "grant type not supported")
}

// UnauthorizedClientError is returned when the client may not use the
// requested grant at all, e.g. a public client attempting client_credentials.
func UnauthorizedClientError() *Error {
	return NewError(ErrCodeUnauthorizedClient, "client is not authorized for this grant type")
}

// InvalidScopeError is returned when the requested scope exceeds what the
// client, or the original grant, allows.
func InvalidScopeError() *Error {
	return NewError(ErrCodeInvalidScope, "the requested scope is invalid or exceeds the granted scope")
}

// AsError extracts a protocol *Error from err's chain, if present.
// Anything that isn't a protocol error is a store or internal failure and
// must surface as a transport-level failure instead.
func AsError(err error) (*Error, bool) {
	var protoErr *Error
	if errors.As(err, &protoErr) {
		return protoErr, true
	}
	return nil, false
}
