// Package acquisition runs the fix acquisition state machine.
//
// A Machine owns one location provider subscription and one deadline timer at
// a time. Every input (user commands, provider readings and errors, timer
// expiry, authorization changes, resolver completions) is funneled through a
// single event channel and handled by the goroutine running Run, so the state
// needs no locking.
package acquisition

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/location-fix-service/internal/domain"
	"github.com/couchcryptid/location-fix-service/internal/observability"
)

const eventBuffer = 64

// Option customizes a Machine.
type Option func(*Machine)

// WithClock sets the time source used for staleness checks and the deadline timer.
func WithClock(c clockwork.Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// Machine is the fix acquisition state machine.
type Machine struct {
	provider domain.LocationProvider
	resolver domain.AddressResolver
	settings Settings
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	events  chan event
	done    chan struct{}
	running atomic.Bool

	// Owned by the event loop.
	ctx          context.Context
	state        domain.AcquisitionState
	gen          uint64
	timer        clockwork.Timer
	subscribed   bool
	pendingStart bool
	cycleStart   time.Time

	mu       sync.Mutex
	snapshot domain.AcquisitionState
	subs     map[int]chan domain.AcquisitionState
	nextSub  int
}

// New creates a Machine. A nil resolver disables address resolution.
func New(provider domain.LocationProvider, resolver domain.AddressResolver, settings Settings, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Machine {
	m := &Machine{
		provider: provider,
		resolver: resolver,
		settings: settings,
		clock:    domain.Clock(),
		logger:   logger,
		metrics:  metrics,
		events:   make(chan event, eventBuffer),
		done:     make(chan struct{}),
		ctx:      context.Background(),
		subs:     make(map[int]chan domain.AcquisitionState),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.state = domain.AcquisitionState{
		Phase:          domain.PhaseIdle,
		ServiceEnabled: provider.ServiceEnabled(),
		UpdatedAt:      m.clock.Now(),
	}
	m.snapshot = m.state.Clone()
	return m
}

// Run handles events until ctx is cancelled. It may be called once.
func (m *Machine) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.New("acquisition: machine already running")
	}
	defer close(m.done)

	m.ctx = ctx
	m.logger.Info("acquisition machine started",
		"provider", m.provider.Name(),
		"desired_accuracy", m.settings.DesiredAccuracy,
		"timeout", m.settings.Timeout,
	)

	for {
		select {
		case <-ctx.Done():
			m.stop(domain.StopUser)
			m.publish()
			m.logger.Info("acquisition machine stopping", "reason", ctx.Err())
			return nil
		case ev := <-m.events:
			m.handle(ev)
		}
	}
}

// CheckReadiness returns nil once the event loop is running.
func (m *Machine) CheckReadiness(_ context.Context) error {
	if !m.running.Load() {
		return errors.New("acquisition loop is not running")
	}
	select {
	case <-m.done:
		return errors.New("acquisition loop has exited")
	default:
		return nil
	}
}

// Start begins a new acquisition cycle unless one is already active.
func (m *Machine) Start() { m.post(startCommand{}) }

// Stop ends the active acquisition cycle, if any.
func (m *Machine) Stop() { m.post(stopCommand{}) }

// Toggle stops an active cycle or starts a new one.
func (m *Machine) Toggle() { m.post(toggleCommand{}) }

// Snapshot returns the most recently published state.
func (m *Machine) Snapshot() domain.AcquisitionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.Clone()
}

// Subscribe returns a channel that always holds the latest state snapshot.
// Slow readers skip intermediate snapshots. Call cancel to unsubscribe.
func (m *Machine) Subscribe() (<-chan domain.AcquisitionState, func()) {
	ch := make(chan domain.AcquisitionState, 1)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.snapshot.Clone()
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// post enqueues an event for the loop. It gives up once the loop has exited.
func (m *Machine) post(ev event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *Machine) handle(ev event) {
	switch ev := ev.(type) {
	case startCommand:
		m.start()
	case stopCommand:
		m.stop(domain.StopUser)
	case toggleCommand:
		if m.state.IsActive {
			m.stop(domain.StopUser)
		} else {
			m.start()
		}
	case readingEvent:
		if m.current(ev.gen) {
			m.onReadingReceived(ev.reading)
		}
	case providerErrorEvent:
		if m.current(ev.gen) {
			m.onProviderError(ev.err)
		}
	case timerFiredEvent:
		if m.current(ev.gen) {
			m.onTimerFired()
		}
	case authorizationEvent:
		m.onAuthorizationChanged(ev.status)
	case resolveDoneEvent:
		m.onResolveDone(ev)
	default:
		m.logger.Warn("ignoring unknown event", "type", reflect.TypeOf(ev))
		return
	}
	m.publish()
}

// current reports whether an event raised for cycle gen should be processed.
func (m *Machine) current(gen uint64) bool {
	return m.state.IsActive && gen == m.gen
}

// publish hands the state to subscribers when it changed since the last call.
func (m *Machine) publish() {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.snapshot
	prev.UpdatedAt = m.state.UpdatedAt
	if reflect.DeepEqual(prev, m.state) {
		return
	}

	m.state.UpdatedAt = m.clock.Now()
	m.snapshot = m.state.Clone()
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- m.snapshot.Clone()
	}
}
