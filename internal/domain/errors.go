package domain

import "errors"

// ErrorKind classifies provider and resolver failures for display.
type ErrorKind string

const (
	KindLocationUnavailable ErrorKind = "location_unavailable"
	KindPermissionDenied    ErrorKind = "permission_denied"
	KindServiceDisabled     ErrorKind = "service_disabled"
	KindTimeout             ErrorKind = "timeout"
	KindRateLimited         ErrorKind = "rate_limited"
	KindResolveFailed       ErrorKind = "resolve_failed"
	KindUnknown             ErrorKind = "unknown"
)

var (
	// ErrLocationUnknown is reported while the receiver has no fix yet.
	ErrLocationUnknown = errors.New("location currently unknown")
	// ErrPermissionDenied is reported when access to the device is refused.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrServiceDisabled is reported when no location service is available.
	ErrServiceDisabled = errors.New("location service disabled")
	// ErrRateLimited is reported when the resolver throttles requests.
	ErrRateLimited = errors.New("address resolver rate limited")
)

// Transient reports whether a provider error kind may recover on its own.
func (k ErrorKind) Transient() bool {
	return k == KindLocationUnavailable
}

// KindOf classifies a location provider error.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLocationUnknown):
		return KindLocationUnavailable
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrServiceDisabled):
		return KindServiceDisabled
	default:
		return KindUnknown
	}
}

// ResolveKindOf classifies an address resolver error.
func ResolveKindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	default:
		return KindResolveFailed
	}
}

// KindPtr returns a pointer to k, or nil when k is empty.
func KindPtr(k ErrorKind) *ErrorKind {
	if k == "" {
		return nil
	}
	return &k
}
