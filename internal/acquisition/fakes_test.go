package acquisition

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/location-fix-service/internal/domain"
	"github.com/couchcryptid/location-fix-service/internal/observability"
)

var (
	testOrigin = domain.Coordinate{Lat: 30.2672, Lon: -97.7431}
	testMoved  = domain.Coordinate{Lat: 30.2682, Lon: -97.7431}
	testEpoch  = time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)
)

// --- fake provider ---

type fakeProvider struct {
	mu             sync.Mutex
	auth           domain.AuthorizationStatus
	serviceEnabled bool
	subscribeErr   error
	subscribed     bool
	subscribes     int
	unsubscribes   int
	authRequests   int
	onReading      func(domain.Reading)
	onError        func(error)
	onAuth         func(domain.AuthorizationStatus)
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{auth: domain.AuthAuthorizedWhenInUse, serviceEnabled: true}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) RequestAuthorization(onChange func(domain.AuthorizationStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authRequests++
	p.onAuth = onChange
}

func (p *fakeProvider) AuthorizationStatus() domain.AuthorizationStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.auth
}

func (p *fakeProvider) ServiceEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.serviceEnabled
}

func (p *fakeProvider) Subscribe(_ float64, onReading func(domain.Reading), onError func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribes++
	if p.subscribeErr != nil {
		return p.subscribeErr
	}
	p.subscribed = true
	p.onReading = onReading
	p.onError = onError
	return nil
}

func (p *fakeProvider) Unsubscribe() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unsubscribes++
	p.subscribed = false
}

// grant changes the authorization and reports it like a platform prompt would.
func (p *fakeProvider) grant(s domain.AuthorizationStatus) {
	p.mu.Lock()
	p.auth = s
	cb := p.onAuth
	p.mu.Unlock()
	cb(s)
}

func (p *fakeProvider) push(r domain.Reading) {
	p.mu.Lock()
	cb := p.onReading
	p.mu.Unlock()
	cb(r)
}

func (p *fakeProvider) fail(err error) {
	p.mu.Lock()
	cb := p.onError
	p.mu.Unlock()
	cb(err)
}

func (p *fakeProvider) counts() (subscribes, unsubscribes int, subscribed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribes, p.unsubscribes, p.subscribed
}

// --- fake resolver ---

type fakeResolver struct {
	mu        sync.Mutex
	calls     []domain.Coordinate
	addresses []domain.Address
	err       error
	gate      chan struct{} // when set, each call waits for a token
}

func (r *fakeResolver) ReverseGeocode(ctx context.Context, c domain.Coordinate) ([]domain.Address, error) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	gate := r.gate
	addresses, err := r.addresses, r.err
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return addresses, err
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// --- machine helpers ---

type harness struct {
	m        *Machine
	provider *fakeProvider
	resolver *fakeResolver
	clock    *clockwork.FakeClock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()
	h := &harness{
		provider: newFakeProvider(),
		resolver: &fakeResolver{},
		clock:    clockwork.NewFakeClockAt(testEpoch),
	}
	h.m = New(h.provider, h.resolver, settings, discardLogger(), observability.NewMetricsForTesting(), WithClock(h.clock))
	return h
}

func testSettings() Settings {
	s := DefaultSettings()
	s.DesiredAccuracy = 65
	return s
}

// reading builds a reading taken now at c.
func (h *harness) reading(c domain.Coordinate, accuracy float64) domain.Reading {
	return domain.Reading{Coordinate: c, HorizontalAccuracy: accuracy, Timestamp: h.clock.Now()}
}

// start runs the start command synchronously.
func (h *harness) start(t *testing.T) {
	t.Helper()
	h.m.handle(startCommand{})
	require.True(t, h.m.state.IsActive, "cycle should be active after start")
}

// feed delivers a reading through the provider callback and handles it.
func (h *harness) feed(t *testing.T, r domain.Reading) {
	t.Helper()
	h.provider.push(r)
	h.next(t, func(ev event) bool { _, ok := ev.(readingEvent); return ok })
}

// next handles queued events until one matching want has been handled.
// Resolver completions that arrive first are handled along the way.
func (h *harness) next(t *testing.T, want func(event) bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.m.events:
			h.m.handle(ev)
			if want(ev) {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

// awaitResolve handles events until a resolver completion has been applied.
func (h *harness) awaitResolve(t *testing.T) {
	t.Helper()
	h.next(t, func(ev event) bool { _, ok := ev.(resolveDoneEvent); return ok })
}

// assertQuiet fails if any event is queued within a short grace period.
func (h *harness) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case ev := <-h.m.events:
		t.Fatalf("unexpected event %T", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
