package acquisition

import (
	"context"

	"github.com/couchcryptid/location-fix-service/internal/domain"
)

// maybeResolve issues one reverse geocoding request for r unless a request is
// already in flight. The completion arrives later as a resolveDoneEvent.
func (m *Machine) maybeResolve(r domain.Reading) {
	if m.resolver == nil || m.state.IsResolvingAddress {
		return
	}
	m.state.IsResolvingAddress = true

	gen := m.gen
	ctx := m.ctx
	go func() {
		ctx, cancel := context.WithTimeout(ctx, m.settings.ResolveTimeout)
		defer cancel()
		addresses, err := m.resolver.ReverseGeocode(ctx, r.Coordinate)
		m.post(resolveDoneEvent{gen: gen, addresses: addresses, err: err})
	}()
}

// onResolveDone applies a resolver result. Results for the current cycle are
// applied even after it stopped, and the latest completion wins. Results that
// belong to an earlier cycle are dropped.
func (m *Machine) onResolveDone(ev resolveDoneEvent) {
	if ev.gen != m.gen {
		m.metrics.GeocodeRequests.WithLabelValues("reverse", "stale").Inc()
		m.logger.Debug("dropping address from an earlier cycle")
		return
	}
	m.state.IsResolvingAddress = false

	if ev.err != nil {
		kind := domain.ResolveKindOf(ev.err)
		if kind == domain.KindRateLimited {
			m.logger.Warn("address lookup rate limited", "cycle_id", m.state.CycleID, "error", ev.err)
		} else {
			m.logger.Warn("address lookup failed", "cycle_id", m.state.CycleID, "error", ev.err)
		}
		m.state.ResolvedAddress = nil
		m.state.LastResolveError = domain.KindPtr(kind)
		return
	}

	m.state.LastResolveError = nil
	if len(ev.addresses) == 0 {
		m.state.ResolvedAddress = nil
		return
	}
	last := ev.addresses[len(ev.addresses)-1]
	m.state.ResolvedAddress = &last
}
