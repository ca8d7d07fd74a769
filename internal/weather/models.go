package weather

import (
	"time"

	"github.com/i474232898/weather-acquisition/internal/units"
)

// Coordinates is a resolved geographic position.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Query identifies what to look up: a city by name, or coordinates.
// City takes precedence when set.
type Query struct {
	City        string
	Coordinates Coordinates
}

// ByCity reports whether the query is a forward lookup by city name.
func (q Query) ByCity() bool {
	return q.City != ""
}

// Settings controls units for a normalization pass. Owned by the caller.
type Settings struct {
	Temperature units.TemperatureUnit `json:"temperatureUnit" yaml:"temperatureUnit" validate:"required,oneof=metric imperial"`
	Wind        units.WindUnit        `json:"windSpeedUnit" yaml:"windSpeedUnit" validate:"required,oneof=km/h mph knot m/s"`
}

// DefaultSettings returns metric temperatures with km/h wind.
func DefaultSettings() Settings {
	return Settings{
		Temperature: units.Metric,
		Wind:        units.KilometersPerHour,
	}
}

// CurrentWeather is the provider's current-conditions snapshot, kept as received.
type CurrentWeather struct {
	Coordinates    Coordinates           `json:"coord"`
	CityName       string                `json:"name"`
	Country        string                `json:"country,omitempty"`
	TimestampUnix  int64                 `json:"dt"`
	TimezoneOffset int                   `json:"timezone"` // seconds east of UTC
	Temperature    float64               `json:"temp"`
	FeelsLike      float64               `json:"feelsLike"`
	WindSpeedMPS   float64               `json:"windSpeed"`
	HumidityPct    int                   `json:"humidity"`
	ConditionMain  string                `json:"conditionMain"`
	ConditionDesc  string                `json:"conditionDescription"`
	Unit           units.TemperatureUnit `json:"unit"`
}

// Zone returns the fixed time zone of the reported location.
func (c CurrentWeather) Zone() *time.Location {
	return time.FixedZone(c.CityName, c.TimezoneOffset)
}

// RawSample is one 3-hourly provider forecast point with all required fields present.
type RawSample struct {
	TimestampUnix        int64   `json:"dt"`
	TimestampText        string  `json:"dtTxt,omitempty"` // provider UTC text, "2006-01-02 15:04:05"
	Temperature          float64 `json:"temp"`
	WindSpeedMPS         float64 `json:"windSpeed"`
	ConditionMain        string  `json:"conditionMain"`
	ConditionDescription string  `json:"conditionDescription"`
	HumidityPct          int     `json:"humidity"`
}

// HourlyEntry is a display-ready reading for one hour.
type HourlyEntry struct {
	TimestampUnix        int64  `json:"dt"`
	Label                string `json:"time"`
	Temperature          string `json:"temp"`
	Wind                 string `json:"wind"`
	ConditionMain        string `json:"weather"`
	ConditionDescription string `json:"description"`
	HumidityPct          int    `json:"humidity"`
	IsDaytime            bool   `json:"isDaytime"`
}

// DailyEntry is a display-ready mid-day reading for one date.
type DailyEntry struct {
	DateLabel            string `json:"date"`
	Temperature          string `json:"temp"`
	Wind                 string `json:"wind"`
	HumidityPct          int    `json:"humidity"`
	ConditionMain        string `json:"weather"`
	ConditionDescription string `json:"description"`
}

// ForecastResult is an immutable normalized forecast. A new result replaces
// the previous one wholesale.
type ForecastResult struct {
	Hourly []HourlyEntry `json:"hourly"`
	Daily  []DailyEntry  `json:"daily"`
}

// Empty reports whether the result carries no entries at all.
func (f ForecastResult) Empty() bool {
	return len(f.Hourly) == 0 && len(f.Daily) == 0
}
