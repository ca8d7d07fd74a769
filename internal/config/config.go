package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-acquisition/internal/units"
	"github.com/i474232898/weather-acquisition/internal/weather"
)

// HomeAddress is geocoded to find the device location when no fixed
// coordinates are configured.
type HomeAddress struct {
	City    string
	State   string
	Country string
}

// Empty reports whether no part of the address is set.
func (a HomeAddress) Empty() bool {
	return a.City == "" && a.State == "" && a.Country == ""
}

type AppConfig struct {
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	GeocoderAPIKey     string

	Home HomeAddress
	// HomeCoordinates is nil unless both HOME_LATITUDE and HOME_LONGITUDE are set.
	HomeCoordinates *weather.Coordinates

	// DefaultCity, if set, is searched on startup instead of using the device location.
	DefaultCity string

	// Settings are the initial units; persisted settings take precedence.
	Settings          weather.Settings
	HourlyInterpolate bool

	HTTPTimeout time.Duration
	ProviderRPS float64

	// FetchInterval controls the periodic refresh (0 = disabled).
	FetchInterval time.Duration

	ConnectivityPollInterval time.Duration
	ConnectivityProbeURL     string

	// StorePath selects the SQLite store; empty means in-memory.
	StorePath   string
	StoreMaxAge time.Duration

	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	Port string
}

// fileConfig is the optional YAML overlay named by WEATHER_CONFIG_FILE.
// Environment variables take precedence over it.
type fileConfig struct {
	OpenWeatherBaseURL string `yaml:"openWeatherBaseURL"`
	Home               struct {
		City      string   `yaml:"city"`
		State     string   `yaml:"state"`
		Country   string   `yaml:"country"`
		Latitude  *float64 `yaml:"latitude"`
		Longitude *float64 `yaml:"longitude"`
	} `yaml:"home"`
	DefaultCity       string `yaml:"defaultCity"`
	TemperatureUnit   string `yaml:"temperatureUnit"`
	WindSpeedUnit     string `yaml:"windSpeedUnit"`
	HourlyInterpolate *bool  `yaml:"hourlyInterpolate"`
	HTTPTimeout       string `yaml:"httpTimeout"`
	FetchInterval     string `yaml:"fetchInterval"`
	Connectivity      struct {
		PollInterval string `yaml:"pollInterval"`
		ProbeURL     string `yaml:"probeURL"`
	} `yaml:"connectivity"`
	Store struct {
		Path   string `yaml:"path"`
		MaxAge string `yaml:"maxAge"`
	} `yaml:"store"`
	ProviderRPS *float64 `yaml:"providerRPS"`
	MQTT        struct {
		Broker   string `yaml:"broker"`
		ClientID string `yaml:"clientID"`
		Topic    string `yaml:"topic"`
	} `yaml:"mqtt"`
	Port string `yaml:"port"`
}

// values flattens the file into the environment keys it stands in for.
func (f fileConfig) values() map[string]string {
	v := map[string]string{
		"OPENWEATHER_BASE_URL":       f.OpenWeatherBaseURL,
		"HOME_ADDRESS_CITY":          f.Home.City,
		"HOME_ADDRESS_STATE":         f.Home.State,
		"HOME_ADDRESS_COUNTRY":       f.Home.Country,
		"DEFAULT_CITY":               f.DefaultCity,
		"TEMPERATURE_UNIT":           f.TemperatureUnit,
		"WIND_SPEED_UNIT":            f.WindSpeedUnit,
		"HTTP_TIMEOUT":               f.HTTPTimeout,
		"FETCH_INTERVAL":             f.FetchInterval,
		"CONNECTIVITY_POLL_INTERVAL": f.Connectivity.PollInterval,
		"CONNECTIVITY_PROBE_URL":     f.Connectivity.ProbeURL,
		"STORE_PATH":                 f.Store.Path,
		"STORE_MAX_AGE":              f.Store.MaxAge,
		"MQTT_BROKER":                f.MQTT.Broker,
		"MQTT_CLIENT_ID":             f.MQTT.ClientID,
		"MQTT_TOPIC":                 f.MQTT.Topic,
		"PORT":                       f.Port,
	}
	if f.Home.Latitude != nil {
		v["HOME_LATITUDE"] = strconv.FormatFloat(*f.Home.Latitude, 'f', -1, 64)
	}
	if f.Home.Longitude != nil {
		v["HOME_LONGITUDE"] = strconv.FormatFloat(*f.Home.Longitude, 'f', -1, 64)
	}
	if f.HourlyInterpolate != nil {
		v["HOURLY_INTERPOLATE"] = strconv.FormatBool(*f.HourlyInterpolate)
	}
	if f.ProviderRPS != nil {
		v["PROVIDER_RPS"] = strconv.FormatFloat(*f.ProviderRPS, 'f', -1, 64)
	}
	return v
}

// source resolves a key from the environment, then the YAML overlay.
type source map[string]string

func (s source) getDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if v := strings.TrimSpace(s[key]); v != "" {
		return v
	}
	return def
}

func (s source) getDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(s.getDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func (s source) getFloat(key, def string) (float64, error) {
	f, err := strconv.ParseFloat(s.getDefault(key, def), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func (s source) getBool(key string, def bool) (bool, error) {
	b, err := strconv.ParseBool(s.getDefault(key, strconv.FormatBool(def)))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// Load reads configuration from .env, the optional YAML file and the
// environment, with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	src, err := loadFile(os.Getenv("WEATHER_CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &AppConfig{}

	// Secrets come from the environment only.
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.OpenWeatherBaseURL = src.getDefault("OPENWEATHER_BASE_URL", "")

	cfg.Home = HomeAddress{
		City:    src.getDefault("HOME_ADDRESS_CITY", ""),
		State:   src.getDefault("HOME_ADDRESS_STATE", ""),
		Country: src.getDefault("HOME_ADDRESS_COUNTRY", ""),
	}
	coords, err := loadHomeCoordinates(src)
	if err != nil {
		return nil, err
	}
	cfg.HomeCoordinates = coords
	cfg.DefaultCity = src.getDefault("DEFAULT_CITY", "")

	temp, err := units.ParseTemperatureUnit(src.getDefault("TEMPERATURE_UNIT", string(units.Metric)))
	if err != nil {
		return nil, fmt.Errorf("invalid TEMPERATURE_UNIT: %w", err)
	}
	wind, err := units.ParseWindUnit(src.getDefault("WIND_SPEED_UNIT", string(units.KilometersPerHour)))
	if err != nil {
		return nil, fmt.Errorf("invalid WIND_SPEED_UNIT: %w", err)
	}
	cfg.Settings = weather.Settings{Temperature: temp, Wind: wind}

	if cfg.HourlyInterpolate, err = src.getBool("HOURLY_INTERPOLATE", false); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = src.getDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = src.getDuration("FETCH_INTERVAL", "30m"); err != nil {
		return nil, err
	}
	if cfg.ConnectivityPollInterval, err = src.getDuration("CONNECTIVITY_POLL_INTERVAL", "30s"); err != nil {
		return nil, err
	}
	cfg.ConnectivityProbeURL = src.getDefault("CONNECTIVITY_PROBE_URL", "")

	cfg.StorePath = src.getDefault("STORE_PATH", "")
	if cfg.StoreMaxAge, err = src.getDuration("STORE_MAX_AGE", "0s"); err != nil {
		return nil, err
	}

	if cfg.ProviderRPS, err = src.getFloat("PROVIDER_RPS", "1"); err != nil {
		return nil, err
	}
	if cfg.ProviderRPS < 0 {
		return nil, errors.New("invalid PROVIDER_RPS: must not be negative")
	}

	cfg.MQTTBroker = src.getDefault("MQTT_BROKER", "")
	cfg.MQTTClientID = src.getDefault("MQTT_CLIENT_ID", "weather-acquisition")
	cfg.MQTTTopic = src.getDefault("MQTT_TOPIC", "weather/acquisition/state")

	cfg.Port = src.getDefault("PORT", "8080")

	return cfg, nil
}

func loadFile(path string) (source, error) {
	if path == "" {
		return source{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	log.Printf("INFO: loaded config overlay from %s", path)
	return source(f.values()), nil
}

func loadHomeCoordinates(src source) (*weather.Coordinates, error) {
	latStr := src.getDefault("HOME_LATITUDE", "")
	lonStr := src.getDefault("HOME_LONGITUDE", "")
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, errors.New("HOME_LATITUDE and HOME_LONGITUDE must be set together")
	}

	lat, err := src.getFloat("HOME_LATITUDE", "")
	if err != nil {
		return nil, err
	}
	lon, err := src.getFloat("HOME_LONGITUDE", "")
	if err != nil {
		return nil, err
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("home coordinates out of range: %v,%v", lat, lon)
	}
	return &weather.Coordinates{Latitude: lat, Longitude: lon}, nil
}
