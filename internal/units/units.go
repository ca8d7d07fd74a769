package units

import (
	"fmt"
	"strings"
)

// TemperatureUnit is the measurement system requested from the provider.
// Temperatures are never converted locally; a different unit means a new fetch.
type TemperatureUnit string

const (
	Metric   TemperatureUnit = "metric"
	Imperial TemperatureUnit = "imperial"
)

// WindUnit is the display unit for wind speed.
type WindUnit string

const (
	KilometersPerHour WindUnit = "km/h"
	MilesPerHour      WindUnit = "mph"
	Knots             WindUnit = "knot"
	MetersPerSecond   WindUnit = "m/s"
)

const (
	kmhPerMPS  = 3.6
	mphPerMPS  = 2.237
	knotPerMPS = 1.944
)

// ConvertWindSpeed converts a speed in meters per second to the given unit.
// Unrecognized units fall back to m/s. The value is not rounded.
func ConvertWindSpeed(mps float64, unit WindUnit) (float64, string) {
	switch unit {
	case KilometersPerHour:
		return mps * kmhPerMPS, string(KilometersPerHour)
	case MilesPerHour:
		return mps * mphPerMPS, string(MilesPerHour)
	case Knots:
		return mps * knotPerMPS, string(Knots)
	default:
		return mps, string(MetersPerSecond)
	}
}

// MPSFromMPH converts a provider wind speed reported in miles per hour back to m/s.
func MPSFromMPH(mph float64) float64 {
	return mph / mphPerMPS
}

// FormatWind renders a wind speed as "<value> <unit>" with two decimals.
func FormatWind(mps float64, unit WindUnit) string {
	v, label := ConvertWindSpeed(mps, unit)
	return fmt.Sprintf("%.2f %s", v, label)
}

// FormatTemperature renders a temperature with two decimals.
func FormatTemperature(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// Symbol returns the display symbol for the unit.
func (u TemperatureUnit) Symbol() string {
	if u == Imperial {
		return "°F"
	}
	return "°C"
}

// Valid reports whether u is a known temperature unit.
func (u TemperatureUnit) Valid() bool {
	return u == Metric || u == Imperial
}

// Valid reports whether u is a known wind unit.
func (u WindUnit) Valid() bool {
	switch u {
	case KilometersPerHour, MilesPerHour, Knots, MetersPerSecond:
		return true
	}
	return false
}

// ParseTemperatureUnit accepts "metric"/"imperial" case-insensitively.
func ParseTemperatureUnit(s string) (TemperatureUnit, error) {
	u := TemperatureUnit(strings.ToLower(strings.TrimSpace(s)))
	if !u.Valid() {
		return "", fmt.Errorf("unknown temperature unit %q", s)
	}
	return u, nil
}

// ParseWindUnit accepts the display labels plus a few common spellings.
func ParseWindUnit(s string) (WindUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "km/h", "kmh", "kph":
		return KilometersPerHour, nil
	case "mph":
		return MilesPerHour, nil
	case "knot", "knots", "kt", "kn":
		return Knots, nil
	case "m/s", "mps":
		return MetersPerSecond, nil
	}
	return "", fmt.Errorf("unknown wind speed unit %q", s)
}
