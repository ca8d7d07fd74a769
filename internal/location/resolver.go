package location

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-acquisition/internal/weather"
)

// StaticResolver returns fixed, configured coordinates.
type StaticResolver struct {
	coords *weather.Coordinates
}

// NewStaticResolver creates a resolver for the given coordinates. A nil value
// makes every Resolve fail with weather.ErrLocationUnavailable.
func NewStaticResolver(coords *weather.Coordinates) *StaticResolver {
	return &StaticResolver{coords: coords}
}

func (r *StaticResolver) Resolve(ctx context.Context) (weather.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return weather.Coordinates{}, err
	}
	if r.coords == nil {
		return weather.Coordinates{}, fmt.Errorf("%w: no home coordinates configured", weather.ErrLocationUnavailable)
	}
	return *r.coords, nil
}

// geocoderMu guards geocoder.ApiKey for the duration of a lookup.
var geocoderMu sync.Mutex

// GeocodeFunc matches geocoder.Geocoding.
type GeocodeFunc func(geocoder.Address) (geocoder.Location, error)

// GeocodingResolver resolves a configured home address with the Google
// geocoding API. Successful lookups are memoized.
type GeocodingResolver struct {
	address geocoder.Address
	apiKey  string
	geocode GeocodeFunc

	mu     sync.Mutex
	cached *weather.Coordinates
}

// NewGeocodingResolver creates a resolver for address.
func NewGeocodingResolver(apiKey string, address geocoder.Address) *GeocodingResolver {
	return &GeocodingResolver{
		address: address,
		apiKey:  apiKey,
		geocode: geocoder.Geocoding,
	}
}

// WithGeocoder replaces the lookup function.
func (r *GeocodingResolver) WithGeocoder(fn GeocodeFunc) *GeocodingResolver {
	r.geocode = fn
	return r
}

func (r *GeocodingResolver) Resolve(ctx context.Context) (weather.Coordinates, error) {
	if r.apiKey == "" {
		return weather.Coordinates{}, fmt.Errorf("%w: geocoder api key is not configured", weather.ErrLocationDenied)
	}

	r.mu.Lock()
	if r.cached != nil {
		c := *r.cached
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		// The geocoder package reads its key from a package variable.
		geocoderMu.Lock()
		geocoder.ApiKey = r.apiKey
		loc, err := r.geocode(r.address)
		geocoderMu.Unlock()
		done <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return weather.Coordinates{}, fmt.Errorf("%w: %w", weather.ErrLocationUnavailable, ctx.Err())
	case res := <-done:
		if res.err != nil {
			log.Printf("WARN: location: geocoding %q failed: %v", r.address.City, res.err)
			return weather.Coordinates{}, fmt.Errorf("%w: %w", weather.ErrLocationUnavailable, res.err)
		}
		c := weather.Coordinates{Latitude: res.loc.Latitude, Longitude: res.loc.Longitude}

		r.mu.Lock()
		r.cached = &c
		r.mu.Unlock()
		return c, nil
	}
}

// Chain tries each resolver in order and returns the first success.
type Chain []weather.LocationResolver

func (c Chain) Resolve(ctx context.Context) (weather.Coordinates, error) {
	lastErr := fmt.Errorf("%w: no resolvers configured", weather.ErrLocationUnavailable)
	for _, r := range c {
		coords, err := r.Resolve(ctx)
		if err == nil {
			return coords, nil
		}
		lastErr = err
	}
	return weather.Coordinates{}, lastErr
}
