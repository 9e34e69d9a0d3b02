package acquisition

import "github.com/couchcryptid/location-fix-service/internal/domain"

// event is anything the machine's loop consumes. Events raised by the
// provider, the timer, or the resolver carry the cycle generation they belong
// to so late arrivals from an earlier cycle can be recognized.
type event any

type startCommand struct{}

type stopCommand struct{}

type toggleCommand struct{}

type readingEvent struct {
	gen     uint64
	reading domain.Reading
}

type providerErrorEvent struct {
	gen uint64
	err error
}

type timerFiredEvent struct {
	gen uint64
}

type authorizationEvent struct {
	status domain.AuthorizationStatus
}

type resolveDoneEvent struct {
	gen       uint64
	addresses []domain.Address
	err       error
}
