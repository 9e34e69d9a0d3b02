package nmea

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/location-fix-service/internal/domain"
)

// Demo simulates a receiver warming up: a couple of epochs without a fix,
// then readings around a fixed point whose accuracy converges toward a floor.
type Demo struct {
	center   domain.Coordinate
	interval time.Duration
	clock    clockwork.Clock

	mu     sync.Mutex
	ticker clockwork.Ticker
	stop   chan struct{}
	rng    *rand.Rand
}

const (
	demoWarmup       = 2
	demoStartAcc     = 120.0
	demoFloorAcc     = 4.0
	demoDecay        = 0.6
	metersPerDegree  = 111_320.0
	demoJitterFactor = 0.5
)

// NewDemo creates a simulated receiver centered on center emitting one epoch
// per interval. A nil clock uses domain.Clock.
func NewDemo(center domain.Coordinate, interval time.Duration, clock clockwork.Clock) *Demo {
	if interval <= 0 {
		interval = time.Second
	}
	if clock == nil {
		clock = domain.Clock()
	}
	return &Demo{
		center:   center,
		interval: interval,
		clock:    clock,
		rng:      rand.New(rand.NewPCG(1, 2)),
	}
}

func (d *Demo) Name() string { return "demo" }

func (d *Demo) RequestAuthorization(onChange func(domain.AuthorizationStatus)) {
	onChange(domain.AuthAuthorizedWhenInUse)
}

func (d *Demo) AuthorizationStatus() domain.AuthorizationStatus {
	return domain.AuthAuthorizedWhenInUse
}

func (d *Demo) ServiceEnabled() bool { return true }

func (d *Demo) Subscribe(_ float64, onReading func(domain.Reading), onError func(error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return fmt.Errorf("demo: already subscribed")
	}
	d.ticker = d.clock.NewTicker(d.interval)
	d.stop = make(chan struct{})

	go d.run(d.ticker, d.stop, onReading, onError)
	return nil
}

func (d *Demo) Unsubscribe() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop == nil {
		return
	}
	d.ticker.Stop()
	close(d.stop)
	d.ticker, d.stop = nil, nil
}

func (d *Demo) run(ticker clockwork.Ticker, stop <-chan struct{}, onReading func(domain.Reading), onError func(error)) {
	for epoch := 0; ; epoch++ {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
		}
		if epoch < demoWarmup {
			onError(fmt.Errorf("demo: warming up: %w", domain.ErrLocationUnknown))
			continue
		}
		onReading(d.sample(epoch - demoWarmup))
	}
}

// sample returns the reading for the nth epoch with a fix.
func (d *Demo) sample(n int) domain.Reading {
	d.mu.Lock()
	jitterLat, jitterLon := d.rng.NormFloat64(), d.rng.NormFloat64()
	d.mu.Unlock()

	acc := math.Max(demoFloorAcc, demoStartAcc*math.Pow(demoDecay, float64(n)))
	offset := acc * demoJitterFactor / metersPerDegree
	return domain.Reading{
		Coordinate: domain.Coordinate{
			Lat: d.center.Lat + jitterLat*offset,
			Lon: d.center.Lon + jitterLon*offset/math.Cos(d.center.Lat*math.Pi/180),
		},
		HorizontalAccuracy: acc,
		Timestamp:          d.clock.Now(),
	}
}
