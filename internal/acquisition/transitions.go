package acquisition

import (
	"github.com/google/uuid"

	"github.com/couchcryptid/location-fix-service/internal/domain"
)

// Reading filter outcomes reported to metrics.
const (
	outcomeAccepted = "accepted"
	outcomeStale    = "stale"
	outcomeInvalid  = "invalid"
	outcomeRejected = "rejected"
)

// start checks authorization and begins a cycle when allowed. Without a
// decision yet it requests authorization and defers the cycle until the
// answer arrives.
func (m *Machine) start() {
	if m.state.IsActive {
		return
	}

	status := m.provider.AuthorizationStatus()
	switch {
	case status == domain.AuthNotDetermined:
		m.pendingStart = true
		m.logger.Info("requesting location authorization", "provider", m.provider.Name())
		m.provider.RequestAuthorization(func(s domain.AuthorizationStatus) {
			m.post(authorizationEvent{status: s})
		})
	case status.Refused():
		m.recordLocationError(domain.KindPermissionDenied)
	default:
		m.beginCycle()
	}
}

// beginCycle verifies the service, clears the cycle-scoped fields, subscribes
// to the provider, and arms the deadline timer.
func (m *Machine) beginCycle() {
	m.pendingStart = false

	m.state.ServiceEnabled = m.provider.ServiceEnabled()
	if !m.state.ServiceEnabled {
		m.recordLocationError(domain.KindServiceDisabled)
		return
	}

	m.gen++
	gen := m.gen
	m.state = domain.AcquisitionState{
		CycleID:        uuid.NewString(),
		Phase:          domain.PhaseAcquiring,
		IsActive:       true,
		ServiceEnabled: true,
		UpdatedAt:      m.state.UpdatedAt,
	}
	m.cycleStart = m.clock.Now()
	m.metrics.CyclesStarted.Inc()
	m.metrics.Acquiring.Set(1)

	err := m.provider.Subscribe(m.settings.DesiredAccuracy,
		func(r domain.Reading) { m.post(readingEvent{gen: gen, reading: r}) },
		func(err error) { m.post(providerErrorEvent{gen: gen, err: err}) },
	)
	if err != nil {
		kind := domain.KindOf(err)
		if kind.Transient() {
			kind = domain.KindUnknown
		}
		m.logger.Error("location subscription failed", "error", err, "cycle_id", m.state.CycleID)
		m.state.LastLocationError = domain.KindPtr(kind)
		m.stop(domain.StopError)
		return
	}
	m.subscribed = true
	m.timer = m.clock.AfterFunc(m.settings.Timeout, func() {
		m.post(timerFiredEvent{gen: gen})
	})

	m.logger.Info("acquisition started",
		"cycle_id", m.state.CycleID,
		"provider", m.provider.Name(),
	)
}

// stop ends the active cycle. Calling it while inactive is a no-op.
func (m *Machine) stop(reason domain.StopReason) {
	if !m.state.IsActive {
		return
	}
	m.release()

	m.state.IsActive = false
	m.state.Phase = domain.PhaseStopped
	m.state.StopReason = reason
	m.metrics.CyclesStopped.WithLabelValues(string(reason)).Inc()
	m.metrics.Acquiring.Set(0)

	attrs := []any{"cycle_id", m.state.CycleID, "reason", reason}
	if r := m.state.BestReading; r != nil {
		attrs = append(attrs, "accuracy", r.HorizontalAccuracy)
	}
	m.logger.Info("acquisition stopped", attrs...)
}

// release cancels the deadline timer and drops the provider subscription.
func (m *Machine) release() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.subscribed {
		m.provider.Unsubscribe()
		m.subscribed = false
	}
}

func (m *Machine) onReadingReceived(r domain.Reading) {
	if age := r.Age(m.clock.Now()); age > m.settings.StalenessThreshold {
		m.metrics.Readings.WithLabelValues(outcomeStale).Inc()
		m.logger.Debug("discarding stale reading", "age", age)
		return
	}
	if !r.Valid() {
		m.metrics.Readings.WithLabelValues(outcomeInvalid).Inc()
		return
	}

	best := m.state.BestReading
	distance := domain.NoDistance
	if best != nil {
		distance = domain.Distance(r.Coordinate, best.Coordinate)
	}

	if best == nil || r.HorizontalAccuracy < best.HorizontalAccuracy {
		m.accept(r, distance)
		return
	}

	m.metrics.Readings.WithLabelValues(outcomeRejected).Inc()
	if distance < m.settings.StuckDistance {
		if elapsed := r.Timestamp.Sub(best.Timestamp); elapsed > m.settings.StuckTimeout {
			m.logger.Info("accuracy stopped improving, giving up",
				"cycle_id", m.state.CycleID,
				"elapsed", elapsed,
				"accuracy", best.HorizontalAccuracy,
			)
			m.stop(domain.StopStuck)
		}
	}
}

func (m *Machine) accept(r domain.Reading, distance float64) {
	m.state.BestReading = &r
	m.state.LastLocationError = nil
	m.metrics.Readings.WithLabelValues(outcomeAccepted).Inc()
	m.metrics.FixAccuracy.Observe(r.HorizontalAccuracy)
	m.logger.Debug("reading accepted",
		"cycle_id", m.state.CycleID,
		"accuracy", r.HorizontalAccuracy,
		"lat", r.Coordinate.Lat,
		"lon", r.Coordinate.Lon,
	)

	if r.HorizontalAccuracy <= m.settings.DesiredAccuracy {
		m.metrics.TimeToFix.Observe(m.clock.Since(m.cycleStart).Seconds())
		m.stop(domain.StopAccuracy)
		// A fix that moved lets a fresh lookup replace the one in flight.
		if distance > 0 {
			m.state.IsResolvingAddress = false
		}
	}
	m.maybeResolve(r)
}

func (m *Machine) onProviderError(err error) {
	kind := domain.KindOf(err)
	m.metrics.ProviderErrors.WithLabelValues(string(kind)).Inc()
	if kind.Transient() {
		m.logger.Debug("location not available yet", "error", err)
		return
	}
	m.logger.Warn("location provider failed", "error", err, "kind", kind, "cycle_id", m.state.CycleID)
	m.state.LastLocationError = domain.KindPtr(kind)
	m.stop(domain.StopError)
}

func (m *Machine) onTimerFired() {
	m.timer = nil
	m.state.LastLocationError = domain.KindPtr(domain.KindTimeout)
	m.stop(domain.StopTimeout)
}

func (m *Machine) onAuthorizationChanged(status domain.AuthorizationStatus) {
	m.logger.Info("location authorization changed", "status", status)
	switch {
	case status.Refused():
		m.pendingStart = false
		m.recordLocationError(domain.KindPermissionDenied)
	case status.Authorized():
		if m.pendingStart {
			m.beginCycle()
		}
	}
}

// recordLocationError surfaces kind for display and ends an active cycle.
func (m *Machine) recordLocationError(kind domain.ErrorKind) {
	m.logger.Warn("location unavailable", "kind", kind)
	m.state.LastLocationError = domain.KindPtr(kind)
	m.stop(domain.StopError)
}
