// Package headers defines HTTP header constants used by the SDK.
// This is the single source of truth for header names used in API requests.
package headers

const (
	// Authorization carries the bearer access token.
	Authorization = "Authorization"

	// RequestID is the header for request correlation.
	RequestID = "X-Request-Id"

	// Client identifies the calling client build (e.g. "globalassist-cli/0.1.0").
	Client = "X-GlobalAssist-Client"

	// Traceparent is the W3C trace context header.
	Traceparent = "Traceparent"
)
