package nmea

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/location-fix-service/internal/domain"
)

// Replay plays back a recorded NMEA log. Readings are restamped with the
// current time so the acquisition machine treats them as fresh, and are
// spaced by interval.
type Replay struct {
	name     string
	src      io.Reader
	uere     float64
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger

	mu       sync.Mutex
	consumed bool
	stop     chan struct{}
}

// NewReplay creates a replay provider reading src once. A nil clock uses
// domain.Clock.
func NewReplay(name string, src io.Reader, uere float64, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Replay {
	if clock == nil {
		clock = domain.Clock()
	}
	return &Replay{
		name:     name,
		src:      src,
		uere:     uere,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

func (r *Replay) Name() string { return "replay:" + r.name }

func (r *Replay) RequestAuthorization(onChange func(domain.AuthorizationStatus)) {
	onChange(domain.AuthAuthorizedWhenInUse)
}

func (r *Replay) AuthorizationStatus() domain.AuthorizationStatus {
	return domain.AuthAuthorizedWhenInUse
}

func (r *Replay) ServiceEnabled() bool { return true }

// Subscribe starts playback. A log can be played back once.
func (r *Replay) Subscribe(_ float64, onReading func(domain.Reading), onError func(error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed {
		return errors.New("replay: log already consumed")
	}
	r.consumed = true
	r.stop = make(chan struct{})

	go r.play(r.stop, onReading, onError)
	return nil
}

func (r *Replay) Unsubscribe() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
}

func (r *Replay) play(stop <-chan struct{}, onReading func(domain.Reading), onError func(error)) {
	count := 0
	err := decodeStream(r.src, NewDecoder(r.uere), func(reading domain.Reading, err error) bool {
		select {
		case <-stop:
			return false
		default:
		}
		if err != nil {
			onError(err)
		} else {
			reading.Timestamp = r.clock.Now()
			onReading(reading)
			count++
		}
		if r.interval <= 0 {
			return true
		}
		select {
		case <-stop:
			return false
		case <-r.clock.After(r.interval):
			return true
		}
	})
	if err != nil {
		onError(fmt.Errorf("replay %s: %w", r.name, err))
		return
	}
	r.logger.Info("replay finished", "log", r.name, "readings", count)
}
