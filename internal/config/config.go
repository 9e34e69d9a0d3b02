package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Location provider types.
const (
	GPSTypeNMEA = "nmea"
	GPSTypeDemo = "demo"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr string
	// WSAllowedOrigins lists cross-origin pages allowed to open /ws.
	WSAllowedOrigins []string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	// Location provider.
	GPSType string
	GPSPort string
	GPSBaud int
	GPSUERE float64

	// Acquisition thresholds.
	DesiredAccuracy    float64
	AcquisitionTimeout time.Duration
	StalenessThreshold time.Duration
	StuckTimeout       time.Duration

	// Mapbox geocoding configuration.
	MapboxToken      string
	MapboxEnabled    bool
	MapboxTimeout    time.Duration
	MapboxCacheSize  int
	MapboxCacheTTL   time.Duration
	MapboxRatePerMin int

	// State feed. Disabled when no brokers are configured.
	KafkaBrokers    []string
	KafkaStateTopic string

	CategoriesFile string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("MAPBOX_CACHE_TTL", "24h")
	if err != nil {
		return nil, err
	}
	acquisitionTimeout, err := parseDuration("ACQUISITION_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	staleness, err := parseDuration("STALENESS_THRESHOLD", "5s")
	if err != nil {
		return nil, err
	}
	stuckTimeout, err := parseDuration("STUCK_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	desiredAccuracy, err := parsePositiveFloat("DESIRED_ACCURACY", "10")
	if err != nil {
		return nil, err
	}
	uere, err := parsePositiveFloat("GPS_UERE", "5")
	if err != nil {
		return nil, err
	}

	baud, err := strconv.Atoi(sharedcfg.EnvOrDefault("GPS_BAUD", "9600"))
	if err != nil || baud <= 0 {
		return nil, errors.New("invalid GPS_BAUD")
	}
	ratePerMin, err := strconv.Atoi(sharedcfg.EnvOrDefault("MAPBOX_RATE_PER_MIN", "600"))
	if err != nil || ratePerMin < 0 {
		return nil, errors.New("invalid MAPBOX_RATE_PER_MIN")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		WSAllowedOrigins: parseList(os.Getenv("WS_ALLOWED_ORIGINS")),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,

		GPSType: sharedcfg.EnvOrDefault("GPS_TYPE", GPSTypeNMEA),
		GPSPort: sharedcfg.EnvOrDefault("GPS_PORT", "/dev/ttyUSB0"),
		GPSBaud: baud,
		GPSUERE: uere,

		DesiredAccuracy:    desiredAccuracy,
		AcquisitionTimeout: acquisitionTimeout,
		StalenessThreshold: staleness,
		StuckTimeout:       stuckTimeout,

		MapboxToken:      mapboxToken,
		MapboxEnabled:    mapboxEnabled,
		MapboxTimeout:    mapboxTimeout,
		MapboxCacheSize:  parseMapboxCacheSize(),
		MapboxCacheTTL:   cacheTTL,
		MapboxRatePerMin: ratePerMin,

		KafkaBrokers:    brokers,
		KafkaStateTopic: sharedcfg.EnvOrDefault("KAFKA_STATE_TOPIC", "location-fix-state"),

		CategoriesFile: os.Getenv("CATEGORIES_FILE"),
	}

	if cfg.GPSType != GPSTypeNMEA && cfg.GPSType != GPSTypeDemo {
		return nil, errors.New("GPS_TYPE must be nmea or demo")
	}
	if cfg.GPSType == GPSTypeNMEA && cfg.GPSPort == "" {
		return nil, errors.New("GPS_PORT is required for the nmea provider")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaStateTopic == "" {
		return nil, errors.New("KAFKA_STATE_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parsePositiveFloat(key, def string) (float64, error) {
	f, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil || f <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return f, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

// parseList splits a comma-separated value, dropping blank entries.
func parseList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
