package nmea

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/couchcryptid/location-fix-service/internal/domain"
)

const readTimeout = 200 * time.Millisecond

// Config holds the serial receiver settings.
type Config struct {
	Port string
	Baud int
	UERE float64
}

// opener opens the receiver device for reading.
type opener func(path string, baud int) (io.ReadCloser, error)

// Provider reads a NMEA 0183 receiver on a serial port. Compatible with u-blox
// receivers and any standard NMEA GPS.
type Provider struct {
	cfg    Config
	logger *slog.Logger
	open   opener

	mu   sync.Mutex
	auth domain.AuthorizationStatus
	port io.ReadCloser
	stop chan struct{}
}

// NewProvider creates a serial NMEA provider. The device is not opened until
// authorization is requested or a subscription starts.
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	return &Provider{
		cfg:    cfg,
		logger: logger,
		open:   openSerial,
		auth:   domain.AuthNotDetermined,
	}
}

func (p *Provider) Name() string { return "nmea:" + p.cfg.Port }

// RequestAuthorization probes the device and reports whether this process may
// open it.
func (p *Provider) RequestAuthorization(onChange func(domain.AuthorizationStatus)) {
	go func() {
		status := domain.AuthAuthorizedWhenInUse
		port, err := p.open(p.cfg.Port, p.cfg.Baud)
		switch {
		case err == nil:
			_ = port.Close()
		case isPermission(err):
			status = domain.AuthDenied
		default:
			p.logger.Warn("gps probe failed", "port", p.cfg.Port, "error", err)
		}

		p.mu.Lock()
		p.auth = status
		p.mu.Unlock()
		onChange(status)
	}()
}

func (p *Provider) AuthorizationStatus() domain.AuthorizationStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.auth
}

// ServiceEnabled reports whether the configured device is present.
func (p *Provider) ServiceEnabled() bool {
	if _, err := os.Stat(p.cfg.Port); err == nil {
		return true
	}
	ports, err := serial.GetPortsList()
	if err != nil {
		return false
	}
	return slices.Contains(ports, p.cfg.Port)
}

// Subscribe opens the device and streams readings until Unsubscribe.
func (p *Provider) Subscribe(_ float64, onReading func(domain.Reading), onError func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port != nil {
		return errors.New("nmea: already subscribed")
	}

	port, err := p.open(p.cfg.Port, p.cfg.Baud)
	if err != nil {
		switch {
		case isPermission(err):
			return fmt.Errorf("nmea: open %s: %w", p.cfg.Port, domain.ErrPermissionDenied)
		case isNotFound(err):
			return fmt.Errorf("nmea: open %s: %w", p.cfg.Port, domain.ErrServiceDisabled)
		}
		return fmt.Errorf("nmea: open %s: %w", p.cfg.Port, err)
	}
	stop := make(chan struct{})
	p.port, p.stop = port, stop
	p.logger.Info("gps connected", "port", p.cfg.Port, "baud", p.cfg.Baud)

	go p.readLoop(port, stop, onReading, onError)
	return nil
}

// Unsubscribe closes the device. Pending callbacks may still fire once.
func (p *Provider) Unsubscribe() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port == nil {
		return
	}
	close(p.stop)
	if err := p.port.Close(); err != nil {
		p.logger.Warn("gps close failed", "port", p.cfg.Port, "error", err)
	}
	p.port, p.stop = nil, nil
}

func (p *Provider) readLoop(port io.Reader, stop <-chan struct{}, onReading func(domain.Reading), onError func(error)) {
	dec := NewDecoder(p.cfg.UERE)
	void := false
	err := decodeStream(&stoppableReader{r: port, stop: stop}, dec, func(r domain.Reading, err error) bool {
		select {
		case <-stop:
			return false
		default:
		}
		if err != nil {
			// Report the first void epoch of each outage only.
			if !void {
				onError(err)
			}
			void = true
			return true
		}
		void = false
		onReading(r)
		return true
	})

	select {
	case <-stop:
		return
	default:
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	onError(fmt.Errorf("nmea: read %s: %w", p.cfg.Port, err))
}

// stoppableReader retries empty reads caused by the port read timeout and
// reports EOF once stop is closed.
type stoppableReader struct {
	r    io.Reader
	stop <-chan struct{}
}

func (s *stoppableReader) Read(b []byte) (int, error) {
	for {
		select {
		case <-s.stop:
			return 0, io.EOF
		default:
		}
		n, err := s.r.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func openSerial(path string, baud int) (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, err
	}
	return port, nil
}

func isPermission(err error) bool {
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PermissionDenied {
		return true
	}
	return errors.Is(err, fs.ErrPermission)
}

func isNotFound(err error) bool {
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortNotFound {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}
