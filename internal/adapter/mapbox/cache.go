package mapbox

import (
	"container/list"
	"context"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/location-fix-service/internal/domain"
	"github.com/couchcryptid/location-fix-service/internal/observability"
)

// cellScale rounds coordinates to 1e-6 degrees, about ten centimeters.
const cellScale = 1e6

// CachedGeocoder wraps an AddressResolver with an in-memory LRU cache of
// address lists. Nearby fixes within one cell share an entry, and entries
// older than the TTL are looked up again.
type CachedGeocoder struct {
	inner   domain.AddressResolver
	cache   *addressCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a resolver. A ttl of zero
// keeps entries until they are evicted. A nil clock uses domain.Clock.
func NewCachedGeocoder(inner domain.AddressResolver, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedGeocoder {
	if clock == nil {
		clock = domain.Clock()
	}
	return &CachedGeocoder{
		inner:   inner,
		cache:   newAddressCache(maxEntries, ttl, clock),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, coord domain.Coordinate) ([]domain.Address, error) {
	key := cellOf(coord)
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues(methodReverse, "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues(methodReverse, "miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, coord)
	if err != nil {
		return result, err
	}
	// Empty results are not cached so a later fix can retry.
	if len(result) > 0 {
		c.cache.put(key, result)
	}
	return result, nil
}

type cell struct {
	lat, lon int64
}

func cellOf(c domain.Coordinate) cell {
	return cell{
		lat: int64(math.Round(c.Lat * cellScale)),
		lon: int64(math.Round(c.Lon * cellScale)),
	}
}

// addressCache is a thread-safe LRU of address lists with optional expiry.
// Values are copied on the way in and out.
type addressCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock

	mu      sync.Mutex
	order   *list.List // front is most recently used
	entries map[cell]*list.Element
}

type cached struct {
	key       cell
	addresses []domain.Address
	storedAt  time.Time
}

func newAddressCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *addressCache {
	return &addressCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		order:      list.New(),
		entries:    make(map[cell]*list.Element),
	}
}

func (c *addressCache) get(key cell) ([]domain.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	v := el.Value.(*cached)
	if c.expired(v) {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return append([]domain.Address(nil), v.addresses...), true
}

func (c *addressCache) put(key cell, addresses []domain.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := &cached{
		key:       key,
		addresses: append([]domain.Address(nil), addresses...),
		storedAt:  c.clock.Now(),
	}
	if el, ok := c.entries[key]; ok {
		el.Value = v
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(v)

	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cached).key)
	}
}

func (c *addressCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *addressCache) expired(v *cached) bool {
	return c.ttl > 0 && c.clock.Since(v.storedAt) >= c.ttl
}
