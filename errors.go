package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies failures the way callers react to them.
type ErrorKind string

const (
	// KindNetwork covers transport, DNS and timeout failures.
	KindNetwork ErrorKind = "network"
	// KindAuth is a missing, invalid or expired credential (HTTP 401).
	KindAuth ErrorKind = "auth"
	// KindForbidden is a valid identity without the required tier or permission (HTTP 403).
	KindForbidden ErrorKind = "forbidden"
	// KindValidation is a rejected input (other 4xx, or local validation).
	KindValidation ErrorKind = "validation"
	// KindPrecondition is local misuse, such as updating an identity when none is present.
	KindPrecondition ErrorKind = "precondition"
	// KindServer is a 5xx response.
	KindServer ErrorKind = "server"
	// KindUnknown is anything else (malformed responses, encoding failures).
	KindUnknown ErrorKind = "unknown"
)

// APIError captures structured backend error metadata. Message is empty when
// the backend sent no error text.
type APIError struct {
	Status          int
	Code            string
	Message         string
	RequestID       string
	Fields          []FieldError
	UpgradeRequired bool
}

// FieldError represents a validation failure for a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e APIError) Error() string {
	if e.Code == "" {
		e.Code = http.StatusText(e.Status)
		if e.Code == "" {
			e.Code = "UNKNOWN"
		}
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("%s (%d)", e.Code, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Kind maps the HTTP status onto an ErrorKind.
func (e APIError) Kind() ErrorKind {
	switch {
	case e.Status == http.StatusUnauthorized:
		return KindAuth
	case e.Status == http.StatusForbidden:
		return KindForbidden
	case e.Status >= 400 && e.Status < 500:
		return KindValidation
	case e.Status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// TransportErrorKind narrows a network failure.
type TransportErrorKind string

const (
	TransportErrorConnect TransportErrorKind = "connect"
	TransportErrorTimeout TransportErrorKind = "timeout"
	TransportErrorDNS     TransportErrorKind = "dns"
	TransportErrorOther   TransportErrorKind = "other"
)

// TransportError is returned when the request never produced an HTTP response.
type TransportError struct {
	Kind    TransportErrorKind
	Message string
	Cause   error
}

func (e TransportError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.Cause != nil {
		return fmt.Sprintf("transport %s: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("transport %s: %s", e.Kind, msg)
}

func (e TransportError) Unwrap() error { return e.Cause }

// ValidationError reports input rejected before any request was sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "sdk: invalid input: " + e.Message
	}
	return fmt.Sprintf("sdk: invalid %s: %s", e.Field, e.Message)
}

// PreconditionError reports an operation invoked in a state that does not allow it.
type PreconditionError struct {
	Reason string
}

func (e PreconditionError) Error() string { return "precondition failed: " + e.Reason }

// ConfigError reports an invalid client configuration.
type ConfigError struct {
	Reason string
}

func (e ConfigError) Error() string { return "sdk: invalid config: " + e.Reason }

// ErrorKindOf classifies err. A nil error has no kind and returns "".
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if asAPIError(err, &apiErr) {
		return apiErr.Kind()
	}
	var transportErr TransportError
	if errors.As(err, &transportErr) {
		return KindNetwork
	}
	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		return KindValidation
	}
	var preconditionErr PreconditionError
	if errors.As(err, &preconditionErr) {
		return KindPrecondition
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindUnknown
}

// IsNetworkError reports whether err is a transport-level failure.
func IsNetworkError(err error) bool { return ErrorKindOf(err) == KindNetwork }

// IsAuthError reports whether err is an HTTP 401.
func IsAuthError(err error) bool { return ErrorKindOf(err) == KindAuth }

// IsForbidden reports whether err is an HTTP 403.
func IsForbidden(err error) bool { return ErrorKindOf(err) == KindForbidden }

// IsValidationError reports whether err is a rejected input.
func IsValidationError(err error) bool { return ErrorKindOf(err) == KindValidation }

// IsPreconditionError reports whether err is local misuse.
func IsPreconditionError(err error) bool { return ErrorKindOf(err) == KindPrecondition }

// IsUpgradeRequired reports whether the backend asked the caller to upgrade its plan.
func IsUpgradeRequired(err error) bool {
	var apiErr *APIError
	if !asAPIError(err, &apiErr) {
		return false
	}
	return apiErr.UpgradeRequired
}

// asAPIError checks if the error is an APIError and extracts it.
func asAPIError(err error, target **APIError) bool {
	if err == nil {
		return false
	}
	var ptr *APIError
	if errors.As(err, &ptr) && ptr != nil {
		*target = ptr
		return true
	}
	var val APIError
	if errors.As(err, &val) {
		*target = &val
		return true
	}
	return false
}

// AsAPIError extracts the APIError from err, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := asAPIError(err, &apiErr)
	return apiErr, ok
}

// decodeAPIError reads the response body. The backend answers either
// {"error": "text"} or {"error": {"code", "message", "fields"}}.
func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	apiErr := APIError{Status: resp.StatusCode, RequestID: resp.Header.Get("X-Request-Id")}
	if len(data) == 0 {
		return apiErr
	}
	var payload struct {
		Error           json.RawMessage `json:"error"`
		Message         string          `json:"message"`
		UpgradeRequired bool            `json:"upgrade_required"`
		RequestID       string          `json:"request_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.UpgradeRequired = payload.UpgradeRequired
	if payload.RequestID != "" {
		apiErr.RequestID = payload.RequestID
	}
	var text string
	if err := json.Unmarshal(payload.Error, &text); err == nil {
		apiErr.Message = text
	} else {
		var structured struct {
			Code    string       `json:"code"`
			Message string       `json:"message"`
			Status  int          `json:"status"`
			Fields  []FieldError `json:"fields"`
		}
		if err := json.Unmarshal(payload.Error, &structured); err == nil {
			apiErr.Code = structured.Code
			apiErr.Message = structured.Message
			apiErr.Fields = structured.Fields
			if structured.Status != 0 {
				apiErr.Status = structured.Status
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = payload.Message
	}
	return apiErr
}

func classifyTransportErrorKind(err error) TransportErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return TransportErrorTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TransportErrorDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportErrorTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return TransportErrorConnect
	}
	return TransportErrorOther
}
