package domain

import "github.com/jonboulle/clockwork"

// clock is the process-wide time source. Components that accept an injected
// clockwork.Clock fall back to it when none is given.
var clock = clockwork.NewRealClock()

// Clock returns the process-wide time source.
func Clock() clockwork.Clock {
	return clock
}
