package domain

import "context"

// AddressResolver maps coordinates to postal addresses.
type AddressResolver interface {
	// ReverseGeocode returns candidate addresses for the coordinate, ordered by
	// provider relevance. An empty slice with a nil error means no match.
	ReverseGeocode(ctx context.Context, c Coordinate) ([]Address, error)
}

// LocationProvider is an authorization-gated source of position readings.
//
// Callbacks passed to RequestAuthorization and Subscribe may be invoked from
// any goroutine; consumers serialize them themselves.
type LocationProvider interface {
	Name() string

	// RequestAuthorization asks for access and reports the outcome through
	// onChange, possibly asynchronously.
	RequestAuthorization(onChange func(AuthorizationStatus))

	// AuthorizationStatus returns the current permission state.
	AuthorizationStatus() AuthorizationStatus

	// ServiceEnabled reports whether the location service is available at all.
	ServiceEnabled() bool

	// Subscribe starts pushing readings and asynchronous errors. Only one
	// subscription may be active at a time.
	Subscribe(desiredAccuracy float64, onReading func(Reading), onError func(error)) error

	// Unsubscribe stops the active subscription. It is a no-op when idle.
	Unsubscribe()
}
