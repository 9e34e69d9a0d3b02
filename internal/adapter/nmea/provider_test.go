package nmea

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/location-fix-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	readings chan domain.Reading
	errs     chan error
}

func newRecorder() *recorder {
	return &recorder{readings: make(chan domain.Reading, 16), errs: make(chan error, 16)}
}

func (r *recorder) onReading(x domain.Reading) { r.readings <- x }
func (r *recorder) onError(err error)          { r.errs <- err }

func (r *recorder) reading(t *testing.T) domain.Reading {
	t.Helper()
	select {
	case x := <-r.readings:
		return x
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reading")
		return domain.Reading{}
	}
}

func (r *recorder) err(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.errs:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error")
		return nil
	}
}

type pipePort struct {
	*io.PipeReader
	once   sync.Once
	closed chan struct{}
}

func (p *pipePort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return p.PipeReader.Close()
}

func testProvider(open opener) *Provider {
	p := NewProvider(Config{Port: "/dev/ttyTEST", UERE: 5}, discardLogger())
	p.open = open
	return p
}

func TestProvider_StreamsReadings(t *testing.T) {
	pr, pw := io.Pipe()
	port := &pipePort{PipeReader: pr, closed: make(chan struct{})}
	p := testProvider(func(string, int) (io.ReadCloser, error) { return port, nil })
	rec := newRecorder()

	require.NoError(t, p.Subscribe(10, rec.onReading, rec.onError))
	assert.Error(t, p.Subscribe(10, rec.onReading, rec.onError))

	go func() {
		for _, l := range []string{rmcVoid, rmcVoid, ggaFix, rmcActive} {
			fmt.Fprintln(pw, sentence(l))
		}
	}()

	require.ErrorIs(t, rec.err(t), domain.ErrLocationUnknown)
	r := rec.reading(t)
	assert.InDelta(t, 4.5, r.HorizontalAccuracy, 1e-9)
	assert.Empty(t, rec.errs, "second void epoch is not reported")

	p.Unsubscribe()
	p.Unsubscribe()
	<-port.closed
	assert.Empty(t, rec.errs, "closing on unsubscribe is not an error")
}

func TestProvider_ReadFailureIsTerminal(t *testing.T) {
	pr, pw := io.Pipe()
	port := &pipePort{PipeReader: pr, closed: make(chan struct{})}
	p := testProvider(func(string, int) (io.ReadCloser, error) { return port, nil })
	rec := newRecorder()

	require.NoError(t, p.Subscribe(10, rec.onReading, rec.onError))
	pw.CloseWithError(errors.New("device unplugged"))

	err := rec.err(t)
	assert.ErrorContains(t, err, "device unplugged")
	assert.Equal(t, domain.KindUnknown, domain.KindOf(err))
	p.Unsubscribe()
}

func TestProvider_SubscribeErrors(t *testing.T) {
	tests := []struct {
		name    string
		openErr error
		want    domain.ErrorKind
	}{
		{"permission", fmt.Errorf("open: %w", fs.ErrPermission), domain.KindPermissionDenied},
		{"missing device", fmt.Errorf("open: %w", fs.ErrNotExist), domain.KindServiceDisabled},
		{"other", errors.New("port busy"), domain.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProvider(func(string, int) (io.ReadCloser, error) { return nil, tt.openErr })
			err := p.Subscribe(10, func(domain.Reading) {}, func(error) {})
			require.Error(t, err)
			assert.Equal(t, tt.want, domain.KindOf(err))
		})
	}
}

func TestProvider_RequestAuthorization(t *testing.T) {
	tests := []struct {
		name    string
		openErr error
		want    domain.AuthorizationStatus
	}{
		{"granted", nil, domain.AuthAuthorizedWhenInUse},
		{"denied", fs.ErrPermission, domain.AuthDenied},
		{"missing device is not a refusal", fs.ErrNotExist, domain.AuthAuthorizedWhenInUse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProvider(func(string, int) (io.ReadCloser, error) {
				if tt.openErr != nil {
					return nil, tt.openErr
				}
				return io.NopCloser(strings.NewReader("")), nil
			})
			assert.Equal(t, domain.AuthNotDetermined, p.AuthorizationStatus())

			got := make(chan domain.AuthorizationStatus, 1)
			p.RequestAuthorization(func(s domain.AuthorizationStatus) { got <- s })

			select {
			case s := <-got:
				assert.Equal(t, tt.want, s)
			case <-time.After(2 * time.Second):
				t.Fatal("no authorization callback")
			}
			assert.Equal(t, tt.want, p.AuthorizationStatus())
		})
	}
}

func TestProvider_ServiceEnabledMissingDevice(t *testing.T) {
	p := NewProvider(Config{Port: "/nonexistent/gps0"}, discardLogger())
	assert.False(t, p.ServiceEnabled())
}

func TestReplay_PlaysLogOnce(t *testing.T) {
	log := strings.Join([]string{
		sentence(rmcVoid),
		sentence(ggaFix),
		sentence(rmcActive),
		sentence(gst),
		sentence(rmcActive),
	}, "\r\n")
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC))
	replay := NewReplay("drive.nmea", strings.NewReader(log), 0, 0, clock, discardLogger())
	rec := newRecorder()

	require.NoError(t, replay.Subscribe(10, rec.onReading, rec.onError))
	require.ErrorIs(t, rec.err(t), domain.ErrLocationUnknown)

	first := rec.reading(t)
	assert.InDelta(t, 4.5, first.HorizontalAccuracy, 1e-9)
	assert.Equal(t, clock.Now(), first.Timestamp)

	second := rec.reading(t)
	assert.InDelta(t, 5.0, second.HorizontalAccuracy, 1e-9)

	replay.Unsubscribe()
	assert.Error(t, replay.Subscribe(10, rec.onReading, rec.onError))
}

func TestReplay_PacesReadings(t *testing.T) {
	log := sentence(ggaFix) + "\n" + sentence(rmcActive) + "\n" + sentence(rmcActive) + "\n"
	clock := clockwork.NewFakeClock()
	replay := NewReplay("paced", strings.NewReader(log), 0, time.Second, clock, discardLogger())
	rec := newRecorder()

	require.NoError(t, replay.Subscribe(10, rec.onReading, rec.onError))
	rec.reading(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Empty(t, rec.readings)

	clock.Advance(time.Second)
	rec.reading(t)
	replay.Unsubscribe()
}

func TestDemo_ConvergesAfterWarmup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	center := domain.Coordinate{Lat: 43.6532, Lon: -79.3832}
	demo := NewDemo(center, time.Second, clock)
	rec := newRecorder()

	require.NoError(t, demo.Subscribe(10, rec.onReading, rec.onError))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	for i := 0; i < demoWarmup; i++ {
		clock.Advance(time.Second)
		require.ErrorIs(t, rec.err(t), domain.ErrLocationUnknown)
	}

	prev := demoStartAcc + 1
	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
		r := rec.reading(t)
		assert.True(t, r.Valid())
		assert.LessOrEqual(t, r.HorizontalAccuracy, prev)
		assert.GreaterOrEqual(t, r.HorizontalAccuracy, demoFloorAcc)
		assert.Less(t, domain.Distance(center, r.Coordinate), 10*r.HorizontalAccuracy)
		assert.Equal(t, clock.Now(), r.Timestamp)
		prev = r.HorizontalAccuracy
	}
	assert.Equal(t, demoFloorAcc, prev)

	demo.Unsubscribe()
	demo.Unsubscribe()
}

func TestProviders_DefaultToProcessClock(t *testing.T) {
	replay := NewReplay("default", strings.NewReader(""), 0, 0, nil, discardLogger())
	assert.Equal(t, domain.Clock(), replay.clock)

	demo := NewDemo(domain.Coordinate{}, time.Second, nil)
	assert.Equal(t, domain.Clock(), demo.clock)
}

func TestReplay_DriveLog(t *testing.T) {
	f, err := os.Open(filepath.Join("..", "..", "..", "testdata", "drive.nmea"))
	require.NoError(t, err)
	defer f.Close()

	replay := NewReplay("drive.nmea", f, 0, 0, clockwork.NewFakeClock(), discardLogger())
	rec := newRecorder()
	require.NoError(t, replay.Subscribe(10, rec.onReading, rec.onError))

	// Three warm-up epochs without a fix, then one reading per epoch.
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, rec.err(t), domain.ErrLocationUnknown)
	}
	var readings []domain.Reading
	for i := 0; i < 8; i++ {
		readings = append(readings, rec.reading(t))
	}
	replay.Unsubscribe()

	assert.False(t, readings[0].Valid(), "first fix precedes any HDOP")
	assert.InDelta(t, 60.0, readings[1].HorizontalAccuracy, 1e-9)
	assert.InDelta(t, 4.0, readings[7].HorizontalAccuracy, 1e-9)
	assert.InDelta(t, 30.2747, readings[7].Coordinate.Lat, 1e-3)
	assert.InDelta(t, -97.7404, readings[7].Coordinate.Lon, 1e-3)
}
