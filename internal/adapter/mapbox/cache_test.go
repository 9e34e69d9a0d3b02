package mapbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/location-fix-service/internal/domain"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	calls  int
	result []domain.Address
	err    error
}

func (m *countingGeocoder) ReverseGeocode(_ context.Context, _ domain.Coordinate) ([]domain.Address, error) {
	m.calls++
	return m.result, m.err
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{result: []domain.Address{{Locality: "Austin"}}}
	metrics := testMetrics()
	cached := NewCachedGeocoder(inner, 10, 0, nil, metrics)

	r1, err := cached.ReverseGeocode(context.Background(), austin)
	require.NoError(t, err)
	assert.Equal(t, "Austin", r1[0].Locality)

	r2, err := cached.ReverseGeocode(context.Background(), austin)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues(methodReverse, "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues(methodReverse, "miss")))
}

func TestCachedGeocoder_SameCellShared(t *testing.T) {
	inner := &countingGeocoder{result: []domain.Address{{Locality: "Austin"}}}
	cached := NewCachedGeocoder(inner, 10, 0, nil, testMetrics())

	_, _ = cached.ReverseGeocode(context.Background(), austin)
	_, _ = cached.ReverseGeocode(context.Background(), domain.Coordinate{Lat: austin.Lat + 2e-7, Lon: austin.Lon - 2e-7})
	assert.Equal(t, 1, inner.calls)

	_, _ = cached.ReverseGeocode(context.Background(), domain.Coordinate{Lat: 32.7767, Lon: -96.797})
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_EmptyAndErrorsNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, 0, nil, testMetrics())

	_, _ = cached.ReverseGeocode(context.Background(), austin)
	inner.err = errors.New("boom")
	_, err := cached.ReverseGeocode(context.Background(), austin)
	require.Error(t, err)
	inner.err = nil
	_, _ = cached.ReverseGeocode(context.Background(), austin)

	assert.Equal(t, 3, inner.calls)
}

func TestCachedGeocoder_EntriesExpire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := &countingGeocoder{result: []domain.Address{{Locality: "Austin"}}}
	cached := NewCachedGeocoder(inner, 10, time.Hour, clock, testMetrics())

	_, _ = cached.ReverseGeocode(context.Background(), austin)
	clock.Advance(59 * time.Minute)
	_, _ = cached.ReverseGeocode(context.Background(), austin)
	assert.Equal(t, 1, inner.calls)

	clock.Advance(time.Minute)
	_, _ = cached.ReverseGeocode(context.Background(), austin)
	assert.Equal(t, 2, inner.calls, "expired entry should be looked up again")
}

func TestCachedGeocoder_ResultsAreCopies(t *testing.T) {
	inner := &countingGeocoder{result: []domain.Address{{Locality: "Austin"}}}
	cached := NewCachedGeocoder(inner, 10, 0, nil, testMetrics())

	first, err := cached.ReverseGeocode(context.Background(), austin)
	require.NoError(t, err)
	inner.result[0].Locality = "changed upstream"

	hit, err := cached.ReverseGeocode(context.Background(), austin)
	require.NoError(t, err)
	hit[0].Locality = "changed by caller"

	again, err := cached.ReverseGeocode(context.Background(), austin)
	require.NoError(t, err)
	assert.Equal(t, "Austin", again[0].Locality)
	assert.Equal(t, "changed upstream", first[0].Locality)
}

// --- address cache unit tests ---

func addr(name string) []domain.Address {
	return []domain.Address{{Thoroughfare: name}}
}

func key(n int64) cell { return cell{lat: n} }

func TestAddressCache_Eviction(t *testing.T) {
	c := newAddressCache(2, 0, clockwork.NewFakeClock())

	c.put(key(1), addr("A"))
	c.put(key(2), addr("B"))
	c.put(key(3), addr("C")) // evicts 1

	_, ok := c.get(key(1))
	assert.False(t, ok, "oldest entry should have been evicted")
	assert.Equal(t, 2, c.size())

	result, ok := c.get(key(3))
	assert.True(t, ok)
	assert.Equal(t, "C", result[0].Thoroughfare)
}

func TestAddressCache_AccessPromotesEntry(t *testing.T) {
	c := newAddressCache(2, 0, clockwork.NewFakeClock())

	c.put(key(1), addr("A"))
	c.put(key(2), addr("B"))
	c.get(key(1))
	c.put(key(3), addr("C"))

	_, ok := c.get(key(1))
	assert.True(t, ok, "recently read entry should survive")
	_, ok = c.get(key(2))
	assert.False(t, ok)
}

func TestAddressCache_UpdateRefreshesExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newAddressCache(2, time.Minute, clock)

	c.put(key(1), addr("A1"))
	clock.Advance(50 * time.Second)
	c.put(key(1), addr("A2"))
	clock.Advance(50 * time.Second)

	result, ok := c.get(key(1))
	require.True(t, ok)
	assert.Equal(t, "A2", result[0].Thoroughfare)
	assert.Equal(t, 1, c.size())

	clock.Advance(10 * time.Second)
	_, ok = c.get(key(1))
	assert.False(t, ok)
	assert.Equal(t, 0, c.size(), "expired entries are dropped on read")
}
