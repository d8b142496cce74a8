package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies gateway failures
type ErrorKind string

const (
	// KindTransport is a network failure reaching the provider
	KindTransport ErrorKind = "transport_error"
	// KindUpstreamProtocol is a non-JSON or contract-violating provider response
	KindUpstreamProtocol ErrorKind = "upstream_protocol_error"
	// KindUpstreamBusiness is a provider rejection with its own message
	KindUpstreamBusiness ErrorKind = "upstream_business_error"
	// KindGenerationFailed is a task that reached the failed state
	KindGenerationFailed ErrorKind = "generation_failed"
	// KindGenerationTimedOut is a task that did not finish before the deadline
	KindGenerationTimedOut ErrorKind = "generation_timed_out"
	// KindInvalidRequest is a malformed inbound request
	KindInvalidRequest ErrorKind = "invalid_request_error"
	// KindAuthentication is a rejected caller credential
	KindAuthentication ErrorKind = "authentication_error"
)

// BusyMessage replaces the provider's capacity-exhaustion remark
const BusyMessage = "此功能使用人数过多，请稍后再试。"

const capacityPhrase = "人数过多"

// bodyPrefixLen bounds the raw body kept for diagnostics
const bodyPrefixLen = 100

// GatewayError is the error type surfaced by every generation component
type GatewayError struct {
	Kind       ErrorKind `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	// Body holds a prefix of the raw upstream body for protocol errors
	Body string `json:"-"`
	// Code is the provider envelope code for business errors
	Code int   `json:"-"`
	Err  error `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Body)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the status used when the error reaches a blocking caller
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindTransport, KindUpstreamProtocol, KindUpstreamBusiness:
		return http.StatusBadGateway
	case KindGenerationTimedOut:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage is the text shown to callers
func (e *GatewayError) UserMessage() string {
	if e.Body != "" {
		return e.Message + ": " + e.Body
	}
	return e.Message
}

// ToJSON converts the error to the caller-facing error object
func (e *GatewayError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"message": e.UserMessage(),
			"type":    e.Kind,
			"code":    e.Kind,
		},
	}
}

// NewTransportError wraps a network failure for the named upstream operation
func NewTransportError(op string, err error) *GatewayError {
	return &GatewayError{
		Kind:    KindTransport,
		Message: fmt.Sprintf("%s: %v", op, err),
		Err:     err,
	}
}

// NewProtocolError records a response the provider should never have sent
func NewProtocolError(message string, body []byte) *GatewayError {
	return &GatewayError{
		Kind:    KindUpstreamProtocol,
		Message: message,
		Body:    BodyPrefix(body),
	}
}

// NewBusinessError keeps the provider's message verbatim
func NewBusinessError(code int, message string) *GatewayError {
	return &GatewayError{
		Kind:    KindUpstreamBusiness,
		Message: message,
		Code:    code,
	}
}

// NewGenerationFailed reports a task in the failed state
func NewGenerationFailed(message string) *GatewayError {
	return &GatewayError{
		Kind:    KindGenerationFailed,
		Message: message,
	}
}

// NewGenerationTimedOut reports a task that outlived its deadline
func NewGenerationTimedOut(taskID string, elapsed string) *GatewayError {
	return &GatewayError{
		Kind:    KindGenerationTimedOut,
		Message: fmt.Sprintf("task %s did not finish within %s", taskID, elapsed),
	}
}

// NewInvalidRequestError reports a malformed inbound request
func NewInvalidRequestError(message string, err error) *GatewayError {
	return &GatewayError{
		Kind:    KindInvalidRequest,
		Message: message,
		Err:     err,
	}
}

// NewAuthenticationError reports a rejected caller
func NewAuthenticationError(message string) *GatewayError {
	return &GatewayError{
		Kind:    KindAuthentication,
		Message: message,
	}
}

// AsGatewayError converts any error into a GatewayError
func AsGatewayError(err error) *GatewayError {
	if err == nil {
		return nil
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return &GatewayError{Kind: KindTransport, Message: err.Error(), Err: err}
}

// KindOf returns the kind of err, or "" for nil
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsGatewayError(err).Kind
}

// NormalizeProviderMessage rewrites the capacity-exhaustion remark, other messages pass through
func NormalizeProviderMessage(msg string) string {
	if strings.Contains(msg, capacityPhrase) {
		return BusyMessage
	}
	return msg
}

// BodyPrefix keeps the first bodyPrefixLen runes of a raw body
func BodyPrefix(body []byte) string {
	s := strings.TrimSpace(string(body))
	r := []rune(s)
	if len(r) > bodyPrefixLen {
		return string(r[:bodyPrefixLen])
	}
	return s
}
