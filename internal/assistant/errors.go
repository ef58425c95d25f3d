package assistant

import "errors"

// Closed set of failure kinds for the chat pipeline. Upstream clients wrap
// these so callers can classify with errors.Is instead of sniffing
// provider-specific fields.
var (
	// ErrConfiguration means a required setting is missing or malformed.
	// Detected before any upstream call.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidRequest means the request body is malformed or has no
	// user message to answer.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUpstreamUnavailable means a provider or the vector store could
	// not be reached or failed.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamQuota means a provider rejected the call due to rate or
	// billing limits. Mapped to a distinct HTTP status so clients can
	// tell transient capacity issues from real errors.
	ErrUpstreamQuota = errors.New("upstream quota exceeded")

	// ErrUpstreamProtocol means a provider sent a malformed event.
	ErrUpstreamProtocol = errors.New("upstream protocol error")
)
