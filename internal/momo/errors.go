package momo

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable classification of a gateway error.
type Kind string

const (
	KindDetectionFailed      Kind = "detection_failed"
	KindInvalidPhone         Kind = "invalid_phone"
	KindNetworkNotConfigured Kind = "network_not_configured"
	KindAuthenticationFailed Kind = "authentication_failed"
	KindUpstreamValidation   Kind = "upstream_validation"
	KindUpstreamNotFound     Kind = "upstream_not_found"
	KindUpstreamServerError  Kind = "upstream_server_error"
	KindUnknownNetwork       Kind = "unknown_network"
	KindInternal             Kind = "internal"
)

// Error is the typed error every gateway and adapter failure is surfaced as.
// It carries the originating network where applicable and, for upstream
// failures, the raw response body for diagnostics.
type Error struct {
	Kind    Kind
	Network Network
	Message string
	Body    []byte
	Cause   error
}

// NewError builds a gateway error.
func NewError(kind Kind, network Network, message string, cause error) *Error {
	return &Error{Kind: kind, Network: network, Message: message, Cause: cause}
}

// WithBody attaches the raw upstream response body.
func (e *Error) WithBody(body []byte) *Error {
	e.Body = body
	return e
}

func (e *Error) Error() string {
	if e.Network != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %s: %v", e.Network, e.Kind, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %s: %s", e.Network, e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the original cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// KindOf extracts the kind of an error, defaulting to internal for errors
// that did not originate in the gateway.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}

// ClassifyHTTPStatus translates an upstream HTTP failure status into the
// error taxonomy. Adapters attach the raw body themselves.
func ClassifyHTTPStatus(network Network, status int, body []byte) *Error {
	msg := fmt.Sprintf("upstream returned status %d", status)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(KindAuthenticationFailed, network, msg, nil).WithBody(body)
	case status == http.StatusNotFound:
		return NewError(KindUpstreamNotFound, network, msg, nil).WithBody(body)
	case status >= 400 && status < 500:
		return NewError(KindUpstreamValidation, network, msg, nil).WithBody(body)
	default:
		return NewError(KindUpstreamServerError, network, msg, nil).WithBody(body)
	}
}
