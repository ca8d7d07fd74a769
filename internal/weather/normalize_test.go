package weather

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-acquisition/internal/units"
)

var seriesStart = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

// series builds n samples spaced step apart with increasing readings.
func series(start time.Time, n int, step time.Duration) []RawSample {
	out := make([]RawSample, 0, n)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * step)
		out = append(out, RawSample{
			TimestampUnix:        ts.Unix(),
			TimestampText:        ts.UTC().Format("2006-01-02 15:04:05"),
			Temperature:          10 + float64(i),
			WindSpeedMPS:         float64(i),
			ConditionMain:        "Clear",
			ConditionDescription: "clear sky",
			HumidityPct:          50 + i,
		})
	}
	return out
}

func current() *CurrentWeather {
	return &CurrentWeather{
		CityName:      "Testville",
		Temperature:   21.456,
		WindSpeedMPS:  5,
		HumidityPct:   40,
		ConditionMain: "Clouds",
		ConditionDesc: "scattered clouds",
		Unit:          units.Metric,
	}
}

func TestNormalizeSixteenSamplesWithCurrent(t *testing.T) {
	now := seriesStart.Add(80 * time.Minute)
	res := Normalize(current(), series(seriesStart, 16, 3*time.Hour), DefaultSettings(), now)

	// "Now" plus eight distinct 12-hour clock labels (the second day repeats them).
	require.Len(t, res.Hourly, 9)

	first := res.Hourly[0]
	assert.Equal(t, NowLabel, first.Label)
	assert.Equal(t, seriesStart.Add(time.Hour).Unix(), first.TimestampUnix)
	assert.Equal(t, "21.46", first.Temperature)
	assert.Equal(t, "18.00 km/h", first.Wind)
	assert.False(t, first.IsDaytime)

	assert.Equal(t, "12:00 AM", res.Hourly[1].Label)
	assert.Equal(t, "10.00", res.Hourly[1].Temperature)
	assert.Equal(t, "0.00 km/h", res.Hourly[1].Wind)
	assert.Equal(t, "03:00 AM", res.Hourly[2].Label)
	assert.Equal(t, "3.60 km/h", res.Hourly[2].Wind)
	assert.Equal(t, "09:00 PM", res.Hourly[8].Label)

	require.Len(t, res.Daily, 2)
	assert.Equal(t, "Sat, Jun 1", res.Daily[0].DateLabel)
	assert.Equal(t, "14.00", res.Daily[0].Temperature)
	assert.Equal(t, "Sun, Jun 2", res.Daily[1].DateLabel)
	assert.Equal(t, 62, res.Daily[1].HumidityPct)
}

func TestNormalizeHourlyCapAndUniqueLabels(t *testing.T) {
	res := Normalize(current(), series(seriesStart, 60, time.Hour), DefaultSettings(), seriesStart)

	require.Len(t, res.Hourly, MaxHourlyEntries)
	seen := map[string]bool{}
	for _, h := range res.Hourly {
		if seen[h.Label] {
			t.Fatalf("duplicate hourly label %q", h.Label)
		}
		seen[h.Label] = true
	}
}

func TestNormalizeDailyCapAndOrder(t *testing.T) {
	res := Normalize(nil, series(seriesStart, 48, 3*time.Hour), DefaultSettings(), seriesStart)

	require.Len(t, res.Daily, MaxDailyEntries)
	assert.Equal(t, "Sat, Jun 1", res.Daily[0].DateLabel)
	assert.Equal(t, "Wed, Jun 5", res.Daily[4].DateLabel)
}

func TestNormalizeWithoutCurrentStartsAtSamples(t *testing.T) {
	res := Normalize(nil, series(seriesStart, 3, 3*time.Hour), DefaultSettings(), seriesStart)

	require.Len(t, res.Hourly, 3)
	assert.Equal(t, "12:00 AM", res.Hourly[0].Label)
	assert.Empty(t, res.Daily)
}

func TestNormalizeEmptyInput(t *testing.T) {
	res := Normalize(nil, nil, DefaultSettings(), seriesStart)
	assert.Empty(t, res.Hourly)
	assert.Empty(t, res.Daily)
	assert.True(t, res.Empty())

	res = Normalize(current(), nil, DefaultSettings(), seriesStart)
	require.Len(t, res.Hourly, 1)
	assert.Equal(t, NowLabel, res.Hourly[0].Label)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	samples := series(seriesStart, 40, 3*time.Hour)
	s := Settings{Temperature: units.Imperial, Wind: units.Knots}
	now := seriesStart.Add(7 * time.Hour)

	a, err := json.Marshal(Normalize(current(), samples, s, now))
	require.NoError(t, err)
	b, err := json.Marshal(Normalize(current(), samples, s, now))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNormalizeUsesDisplayZone(t *testing.T) {
	zone := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2024, time.June, 1, 10, 45, 0, 0, zone)

	res := Normalize(current(), series(seriesStart, 2, 3*time.Hour), DefaultSettings(), now)

	require.Len(t, res.Hourly, 3)
	assert.Equal(t, time.Date(2024, time.June, 1, 10, 0, 0, 0, zone).Unix(), res.Hourly[0].TimestampUnix)
	assert.True(t, res.Hourly[0].IsDaytime)
	assert.Equal(t, "05:30 AM", res.Hourly[1].Label)
	assert.False(t, res.Hourly[1].IsDaytime)
	assert.Equal(t, "08:30 AM", res.Hourly[2].Label)
	assert.True(t, res.Hourly[2].IsDaytime)
}

func TestNormalizeWindUnitFromSettings(t *testing.T) {
	samples := series(seriesStart, 2, 3*time.Hour)
	res := Normalize(nil, samples, Settings{Temperature: units.Metric, Wind: units.Knots}, seriesStart)
	assert.Equal(t, "1.94 knot", res.Hourly[1].Wind)

	res = Normalize(nil, samples, Settings{Temperature: units.Metric, Wind: units.MetersPerSecond}, seriesStart)
	assert.Equal(t, "1.00 m/s", res.Hourly[1].Wind)
}

func TestNormalizerInterpolate(t *testing.T) {
	samples := series(seriesStart, 2, 3*time.Hour)
	samples[1].Temperature = 13
	samples[1].WindSpeedMPS = 3
	samples[1].HumidityPct = 53

	res := Normalizer{Interpolate: true}.Normalize(nil, samples, Settings{Wind: units.MetersPerSecond}, seriesStart)

	require.Len(t, res.Hourly, 4)
	labels := []string{"12:00 AM", "01:00 AM", "02:00 AM", "03:00 AM"}
	temps := []string{"10.00", "11.00", "12.00", "13.00"}
	for i, h := range res.Hourly {
		assert.Equal(t, labels[i], h.Label)
		assert.Equal(t, temps[i], h.Temperature)
		assert.Equal(t, 50+i, h.HumidityPct)
	}
}

func TestNormalizerInterpolateCapsAtTwentyFour(t *testing.T) {
	res := Normalizer{Interpolate: true}.Normalize(current(), series(seriesStart, 16, 3*time.Hour), DefaultSettings(), seriesStart)
	assert.Len(t, res.Hourly, MaxHourlyEntries)
}

func TestIsMiddayWithoutText(t *testing.T) {
	noon := RawSample{TimestampUnix: seriesStart.Add(12 * time.Hour).Unix()}
	assert.True(t, IsMidday(noon))
	assert.False(t, IsMidday(RawSample{TimestampUnix: seriesStart.Unix()}))
}

func TestValidSamplesDropsMalformed(t *testing.T) {
	dt := seriesStart.Unix()
	temp, wind, hum := 12.5, 3.0, 70

	points := []ForecastPoint{
		{TimestampUnix: &dt, Temperature: &temp, WindSpeedMPS: &wind, HumidityPct: &hum, ConditionMain: "Rain"},
		{TimestampUnix: &dt, WindSpeedMPS: &wind, HumidityPct: &hum},
		{Temperature: &temp, WindSpeedMPS: &wind, HumidityPct: &hum},
	}

	samples, dropped := ValidSamples(points)
	require.Len(t, samples, 1)
	assert.Equal(t, "Rain", samples[0].ConditionMain)
	assert.Equal(t, 12.5, samples[0].Temperature)
	require.Len(t, dropped, 2)
	for _, err := range dropped {
		assert.True(t, errors.Is(err, ErrMalformedSample))
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindNone, Kind(nil))
	assert.Equal(t, KindLocation, Kind(ErrLocationDenied))
	assert.Equal(t, KindLookup, Kind(errors.Join(errors.New("lookup"), ErrCityNotFound)))
	assert.Equal(t, KindNetwork, Kind(ErrNetwork))
	assert.Equal(t, KindUnknown, Kind(errors.New("boom")))
}
