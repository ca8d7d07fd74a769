package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-acquisition/internal/units"
	"github.com/i474232898/weather-acquisition/internal/weather"
)

const defaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherClient implements weather.Client for OpenWeatherMap's current
// weather and 5 day / 3 hour forecast endpoints.
type OpenWeatherClient struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

var _ weather.Client = (*OpenWeatherClient)(nil)

// Option customizes an OpenWeatherClient.
type Option func(*OpenWeatherClient)

// WithBaseURL points the client at a different API root (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *OpenWeatherClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithLimiter throttles outbound requests.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *OpenWeatherClient) {
		c.httpCfg.Limiter = l
	}
}

// WithBackoff overrides the retry policy.
func WithBackoff(b BackoffConfig) Option {
	return func(c *OpenWeatherClient) {
		c.httpCfg.Backoff = b
	}
}

func NewOpenWeatherClient(client *http.Client, apiKey string, opts ...Option) *OpenWeatherClient {
	c := &OpenWeatherClient{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: defaultOpenWeatherURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: newBreaker("openweather"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OpenWeatherClient) Name() string {
	return c.name
}

// BaseURL returns the API root the client talks to.
func (c *OpenWeatherClient) BaseURL() string {
	return c.baseURL
}

func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, q weather.Query, unit units.TemperatureUnit) (weather.CurrentWeather, error) {
	if c.apiKey == "" {
		return weather.CurrentWeather{}, fmt.Errorf("%w: openweather api key is not configured", weather.ErrUnauthorized)
	}

	values := c.baseValues(unit)
	if q.ByCity() {
		values.Set("q", q.City)
	} else {
		setCoordinates(values, q.Coordinates)
	}

	var payload struct {
		Coord struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
		Name     string `json:"name"`
		Dt       int64  `json:"dt"`
		Timezone int    `json:"timezone"`
		Sys      struct {
			Country string `json:"country"`
		} `json:"sys"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Weather []condition `json:"weather"`
	}

	if err := c.get(ctx, "/weather", values, &payload); err != nil {
		return weather.CurrentWeather{}, c.classify(err, q)
	}

	main, desc := firstCondition(payload.Weather)
	return weather.CurrentWeather{
		Coordinates:    weather.Coordinates{Latitude: payload.Coord.Lat, Longitude: payload.Coord.Lon},
		CityName:       payload.Name,
		Country:        payload.Sys.Country,
		TimestampUnix:  payload.Dt,
		TimezoneOffset: payload.Timezone,
		Temperature:    payload.Main.Temp,
		FeelsLike:      payload.Main.FeelsLike,
		WindSpeedMPS:   windToMPS(payload.Wind.Speed, unit),
		HumidityPct:    payload.Main.Humidity,
		ConditionMain:  main,
		ConditionDesc:  desc,
		Unit:           unit,
	}, nil
}

func (c *OpenWeatherClient) FetchForecast(ctx context.Context, coords weather.Coordinates, unit units.TemperatureUnit) ([]weather.ForecastPoint, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: openweather api key is not configured", weather.ErrUnauthorized)
	}

	values := c.baseValues(unit)
	setCoordinates(values, coords)

	var payload struct {
		List []struct {
			Dt    *int64 `json:"dt"`
			DtTxt string `json:"dt_txt"`
			Main  struct {
				Temp     *float64 `json:"temp"`
				Humidity *int     `json:"humidity"`
			} `json:"main"`
			Wind struct {
				Speed *float64 `json:"speed"`
			} `json:"wind"`
			Weather []condition `json:"weather"`
		} `json:"list"`
	}

	if err := c.get(ctx, "/forecast", values, &payload); err != nil {
		return nil, c.classify(err, weather.Query{Coordinates: coords})
	}

	points := make([]weather.ForecastPoint, 0, len(payload.List))
	for _, item := range payload.List {
		main, desc := firstCondition(item.Weather)
		p := weather.ForecastPoint{
			TimestampUnix:        item.Dt,
			TimestampText:        item.DtTxt,
			Temperature:          item.Main.Temp,
			HumidityPct:          item.Main.Humidity,
			ConditionMain:        main,
			ConditionDescription: desc,
		}
		if item.Wind.Speed != nil {
			mps := windToMPS(*item.Wind.Speed, unit)
			p.WindSpeedMPS = &mps
		}
		points = append(points, p)
	}
	return points, nil
}

type condition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

func firstCondition(items []condition) (string, string) {
	if len(items) == 0 {
		return "", ""
	}
	return items[0].Main, items[0].Description
}

// windToMPS undoes the provider's imperial wind unit so samples are always in m/s.
func windToMPS(speed float64, unit units.TemperatureUnit) float64 {
	if unit == units.Imperial {
		return units.MPSFromMPH(speed)
	}
	return speed
}

func (c *OpenWeatherClient) baseValues(unit units.TemperatureUnit) url.Values {
	if !unit.Valid() {
		unit = units.Metric
	}
	values := url.Values{}
	values.Set("appid", c.apiKey)
	values.Set("units", string(unit))
	return values
}

func setCoordinates(values url.Values, coords weather.Coordinates) {
	values.Set("lat", fmt.Sprintf("%f", coords.Latitude))
	values.Set("lon", fmt.Sprintf("%f", coords.Longitude))
}

func (c *OpenWeatherClient) get(ctx context.Context, path string, values url.Values, out any) error {
	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s%s?%s", c.baseURL, path, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// classify maps transport and status failures onto the weather error taxonomy.
func (c *OpenWeatherClient) classify(err error, q weather.Query) error {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusNotFound && q.ByCity():
			return fmt.Errorf("%w: %q", weather.ErrCityNotFound, q.City)
		case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
			return fmt.Errorf("%w: %s", weather.ErrUnauthorized, se.Body)
		}
	}
	return fmt.Errorf("%s: %w: %w", c.name, weather.ErrNetwork, err)
}

// readErrorMessage extracts OpenWeatherMap's {"cod":..,"message":..} body.
func readErrorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}
