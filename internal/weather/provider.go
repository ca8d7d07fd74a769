package weather

import (
	"context"

	"github.com/i474232898/weather-acquisition/internal/units"
)

// Client abstracts the remote weather API.
type Client interface {
	// FetchCurrent looks up current conditions by coordinates or, when q.City
	// is set, by city name. Unknown cities fail with ErrCityNotFound.
	FetchCurrent(ctx context.Context, q Query, unit units.TemperatureUnit) (CurrentWeather, error)
	// FetchForecast returns the provider's 3-hourly points ordered by time.
	FetchForecast(ctx context.Context, c Coordinates, unit units.TemperatureUnit) ([]ForecastPoint, error)
}

// LocationResolver resolves the device (home) location.
type LocationResolver interface {
	Resolve(ctx context.Context) (Coordinates, error)
}
