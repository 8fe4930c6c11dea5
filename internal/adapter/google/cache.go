package google

import (
	"context"
	"fmt"

	"github.com/couchcryptid/incident-ingest-service/internal/domain"
	"github.com/couchcryptid/incident-ingest-service/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lru.Cache[string, domain.Coordinates]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) (*CachedGeocoder, error) {
	cache, err := lru.New[string, domain.Coordinates](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create geocode cache: %w", err)
	}
	return &CachedGeocoder{inner: inner, cache: cache, metrics: metrics}, nil
}

func (c *CachedGeocoder) Geocode(ctx context.Context, address string) (*domain.Coordinates, error) {
	if coords, ok := c.cache.Get(address); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return &coords, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	coords, err := c.inner.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}
	// Only cache resolved addresses so transient "not found" responses can be retried.
	if coords != nil {
		c.cache.Add(address, *coords)
	}
	return coords, nil
}
