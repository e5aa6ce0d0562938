package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, so
// they never change once published.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"

	// provider returned an error or garbage
	ErrCodeUpstream = "upstream_error"
	// catalog, availability or appointment call failed locally
	ErrCodeLookupFailed = "lookup_failed"
	// backing service not configured
	ErrCodeUnavailable = "service_unavailable"
)
