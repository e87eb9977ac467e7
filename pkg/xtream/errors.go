package xtream

import "errors"

// Error taxonomy for provider interactions.
//
// Authentication failures and malformed payloads are never retried: both
// indicate a provider-side or credential problem that more attempts cannot
// fix. Transport failures are retried by the underlying HTTP client and
// surface here only once the retry budget is exhausted.
var (
	// ErrAuthenticationFailed indicates the provider rejected the
	// configured credentials. Fatal, never retried.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrProviderUnreachable indicates the provider could not be reached
	// or kept returning non-success statuses after the retry budget.
	ErrProviderUnreachable = errors.New("provider unreachable")

	// ErrInvalidResponse indicates the provider returned a payload that is
	// not well-formed for the requested listing. Not retried.
	ErrInvalidResponse = errors.New("invalid provider response")
)
