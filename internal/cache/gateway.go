package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/i474232898/weather-acquisition/internal/store"
	"github.com/i474232898/weather-acquisition/internal/weather"
)

// Keys under which snapshots are persisted.
const (
	KeyCurrentWeather = "currentWeather"
	KeyForecast       = "forecastData"
	KeySettings       = "settings"
)

// Gateway gives typed access to persisted snapshots. Read failures are logged
// and reported as a miss; write failures are logged and otherwise ignored.
type Gateway struct {
	kv store.KV
}

func NewGateway(kv store.KV) *Gateway {
	return &Gateway{kv: kv}
}

// Get returns the raw value for key, or false on a miss or read failure.
func (g *Gateway) Get(ctx context.Context, key string) (string, bool) {
	v, err := g.kv.Get(ctx, key)
	switch {
	case err == nil:
		return v, true
	case errors.Is(err, store.ErrNotFound):
		return "", false
	default:
		log.Printf("WARN: cache: %v: %s: %v", weather.ErrCacheRead, key, err)
		return "", false
	}
}

// Set stores value under key, best effort.
func (g *Gateway) Set(ctx context.Context, key, value string) {
	if err := g.kv.Set(ctx, key, value); err != nil {
		log.Printf("WARN: cache: write %s failed: %v", key, err)
		return
	}
	log.Printf("DEBUG: cache: stored %s (%d bytes)", key, len(value))
}

// Clear removes the given keys, best effort.
func (g *Gateway) Clear(ctx context.Context, keys ...string) {
	if err := g.kv.Remove(ctx, keys...); err != nil {
		log.Printf("WARN: cache: clear %v failed: %v", keys, err)
	}
}

// ClearSnapshots removes the cached current weather and forecast.
func (g *Gateway) ClearSnapshots(ctx context.Context) {
	g.Clear(ctx, KeyCurrentWeather, KeyForecast)
}

func (g *Gateway) LoadCurrent(ctx context.Context) (*weather.CurrentWeather, bool) {
	var cw weather.CurrentWeather
	if !g.load(ctx, KeyCurrentWeather, &cw) {
		return nil, false
	}
	return &cw, true
}

func (g *Gateway) SaveCurrent(ctx context.Context, cw weather.CurrentWeather) {
	g.save(ctx, KeyCurrentWeather, cw)
}

func (g *Gateway) LoadForecast(ctx context.Context) (*weather.ForecastResult, bool) {
	var fr weather.ForecastResult
	if !g.load(ctx, KeyForecast, &fr) {
		return nil, false
	}
	return &fr, true
}

func (g *Gateway) SaveForecast(ctx context.Context, fr weather.ForecastResult) {
	g.save(ctx, KeyForecast, fr)
}

// LoadSettings returns the persisted settings, ignoring invalid ones.
func (g *Gateway) LoadSettings(ctx context.Context) (weather.Settings, bool) {
	var s weather.Settings
	if !g.load(ctx, KeySettings, &s) {
		return weather.Settings{}, false
	}
	if !s.Temperature.Valid() || !s.Wind.Valid() {
		log.Printf("WARN: cache: ignoring invalid stored settings %+v", s)
		return weather.Settings{}, false
	}
	return s, true
}

func (g *Gateway) SaveSettings(ctx context.Context, s weather.Settings) {
	g.save(ctx, KeySettings, s)
}

func (g *Gateway) load(ctx context.Context, key string, out any) bool {
	raw, ok := g.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		log.Printf("WARN: cache: %v: decode %s: %v", weather.ErrCacheRead, key, err)
		return false
	}
	return true
}

func (g *Gateway) save(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: cache: encode %s: %v", key, err)
		return
	}
	g.Set(ctx, key, string(data))
}
