package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/location-fix-service/internal/domain"
	"github.com/couchcryptid/location-fix-service/internal/observability"
)

const (
	defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"
	methodReverse  = "reverse"
	maxCandidates  = 5
)

// Client implements domain.AddressResolver using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client. ratePerMin caps outgoing
// requests; zero or less disables the limiter.
func NewClient(token string, timeout time.Duration, ratePerMin int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	var limiter *rate.Limiter
	if ratePerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerMin)/60.0, 1)
	}
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
	}
}

// ReverseGeocode returns up to five street addresses near c, most relevant
// first.
func (c *Client) ReverseGeocode(ctx context.Context, coord domain.Coordinate) ([]domain.Address, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.metrics.GeocodeRequests.WithLabelValues(methodReverse, "rate_limited").Inc()
			return nil, fmt.Errorf("mapbox: local limiter: %v: %w", err, domain.ErrRateLimited)
		}
	}

	// Mapbox uses lon,lat order.
	u := fmt.Sprintf("%s/%.6f,%.6f.json", c.baseURL, coord.Lon, coord.Lat)
	params := url.Values{
		"access_token": {c.token},
		"types":        {"address"},
		"limit":        {fmt.Sprint(maxCandidates)},
	}

	start := time.Now()
	addresses, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.WithLabelValues(methodReverse).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, domain.ErrRateLimited):
		c.metrics.GeocodeRequests.WithLabelValues(methodReverse, "rate_limited").Inc()
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues(methodReverse, "error").Inc()
	case len(addresses) == 0:
		c.metrics.GeocodeRequests.WithLabelValues(methodReverse, "empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues(methodReverse, "success").Inc()
	}
	if err != nil {
		c.logger.Debug("reverse geocode failed", "lat", coord.Lat, "lon", coord.Lon, "error", err)
	}
	return addresses, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.Address, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("mapbox API: status %d: %w", resp.StatusCode, domain.ErrRateLimited)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	addresses := make([]domain.Address, 0, len(mapboxResp.Features))
	for _, f := range mapboxResp.Features {
		if a := f.address(); !a.IsEmpty() {
			addresses = append(addresses, a)
		}
	}
	return addresses, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID      string        `json:"id"`
	Text    string        `json:"text"`
	Address string        `json:"address"`
	Context []contextItem `json:"context"`
}

type contextItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ShortCode string `json:"short_code"`
}

// address maps a feature and its context hierarchy onto an Address.
func (f feature) address() domain.Address {
	a := domain.Address{
		SubThoroughfare: f.Address,
		Thoroughfare:    f.Text,
	}
	for _, item := range f.Context {
		switch layer(item.ID) {
		case "place":
			a.Locality = item.Text
		case "region":
			a.AdministrativeArea = regionCode(item)
		case "postcode":
			a.PostalCode = item.Text
		case "country":
			a.Country = item.Text
		}
	}
	return a
}

// layer returns the type prefix of a Mapbox feature id such as "place.123".
func layer(id string) string {
	kind, _, _ := strings.Cut(id, ".")
	return kind
}

// regionCode prefers the subdivision code ("US-TX" → "TX") over the full name.
func regionCode(item contextItem) string {
	if _, code, ok := strings.Cut(item.ShortCode, "-"); ok && code != "" {
		return code
	}
	return item.Text
}
