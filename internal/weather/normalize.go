package weather

import (
	"math"
	"strings"
	"time"

	"github.com/i474232898/weather-acquisition/internal/units"
)

const (
	MaxHourlyEntries = 24
	MaxDailyEntries  = 5

	// NowLabel marks the synthetic entry built from current conditions.
	NowLabel = "Now"

	hourLabelLayout = "03:04 PM"
	dateLabelLayout = "Mon, Jan 2"
	middayMarker    = "12:00:00"
)

// Normalizer turns provider samples into hourly and daily display series.
//
// By default each hour slot is filled from the first sample that maps to it.
// With Interpolate set, slots between two consecutive samples are filled by
// linear interpolation of temperature, wind and humidity; conditions are
// carried from the earlier sample.
type Normalizer struct {
	Interpolate bool
}

// Normalize runs the default (first occurrence wins) normalizer.
func Normalize(current *CurrentWeather, samples []RawSample, s Settings, now time.Time) ForecastResult {
	return Normalizer{}.Normalize(current, samples, s, now)
}

// Normalize builds a ForecastResult. samples must be ordered by timestamp.
// now's location is used for hour labels, daytime and date labels.
func (n Normalizer) Normalize(current *CurrentWeather, samples []RawSample, s Settings, now time.Time) ForecastResult {
	b := &hourlyBuilder{
		settings: s,
		zone:     now.Location(),
		used:     make(map[string]struct{}, MaxHourlyEntries),
		entries:  make([]HourlyEntry, 0, MaxHourlyEntries),
	}

	if current != nil {
		at := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
		b.add(at, NowLabel, current.Temperature, current.WindSpeedMPS, current.HumidityPct,
			current.ConditionMain, current.ConditionDesc)
	}

	if n.Interpolate {
		b.interpolate(samples)
	} else {
		for _, smp := range samples {
			if b.full() {
				break
			}
			b.addSample(smp)
		}
	}

	return ForecastResult{
		Hourly: b.entries,
		Daily:  daily(samples, s, now.Location()),
	}
}

// IsMidday reports whether the sample is the provider's daily summary slot.
// Samples without a text timestamp are matched on 12:00 UTC.
func IsMidday(s RawSample) bool {
	if s.TimestampText != "" {
		return strings.Contains(s.TimestampText, middayMarker)
	}
	t := time.Unix(s.TimestampUnix, 0).UTC()
	return t.Hour() == 12 && t.Minute() == 0 && t.Second() == 0
}

type hourlyBuilder struct {
	settings Settings
	zone     *time.Location
	used     map[string]struct{}
	entries  []HourlyEntry
}

func (b *hourlyBuilder) full() bool {
	return len(b.entries) >= MaxHourlyEntries
}

func (b *hourlyBuilder) addSample(s RawSample) {
	at := time.Unix(s.TimestampUnix, 0).In(b.zone)
	b.add(at, at.Format(hourLabelLayout), s.Temperature, s.WindSpeedMPS, s.HumidityPct,
		s.ConditionMain, s.ConditionDescription)
}

// add appends an entry unless the series is full or the label is taken.
func (b *hourlyBuilder) add(at time.Time, label string, temp, windMPS float64, humidity int, main, desc string) bool {
	if b.full() {
		return false
	}
	if _, seen := b.used[label]; seen {
		return false
	}
	b.used[label] = struct{}{}

	b.entries = append(b.entries, HourlyEntry{
		TimestampUnix:        at.Unix(),
		Label:                label,
		Temperature:          units.FormatTemperature(temp),
		Wind:                 units.FormatWind(windMPS, b.settings.Wind),
		ConditionMain:        main,
		ConditionDescription: desc,
		HumidityPct:          humidity,
		IsDaytime:            isDaytime(at),
	})
	return true
}

func (b *hourlyBuilder) interpolate(samples []RawSample) {
	for i := 0; i < len(samples) && !b.full(); i++ {
		cur := samples[i]
		if i == len(samples)-1 {
			b.addSample(cur)
			break
		}

		next := samples[i+1]
		gap := int((next.TimestampUnix - cur.TimestampUnix) / 3600)
		if gap <= 1 {
			b.addSample(cur)
			continue
		}

		for h := 0; h < gap && !b.full(); h++ {
			f := float64(h) / float64(gap)
			at := time.Unix(cur.TimestampUnix+int64(h)*3600, 0).In(b.zone)
			humidity := math.Round(lerp(float64(cur.HumidityPct), float64(next.HumidityPct), f))
			b.add(at, at.Format(hourLabelLayout),
				lerp(cur.Temperature, next.Temperature, f),
				lerp(cur.WindSpeedMPS, next.WindSpeedMPS, f),
				int(humidity),
				cur.ConditionMain, cur.ConditionDescription)
		}
	}
}

func daily(samples []RawSample, s Settings, zone *time.Location) []DailyEntry {
	out := make([]DailyEntry, 0, MaxDailyEntries)
	for _, smp := range samples {
		if len(out) >= MaxDailyEntries {
			break
		}
		if !IsMidday(smp) {
			continue
		}
		out = append(out, DailyEntry{
			DateLabel:            time.Unix(smp.TimestampUnix, 0).In(zone).Format(dateLabelLayout),
			Temperature:          units.FormatTemperature(smp.Temperature),
			Wind:                 units.FormatWind(smp.WindSpeedMPS, s.Wind),
			HumidityPct:          smp.HumidityPct,
			ConditionMain:        smp.ConditionMain,
			ConditionDescription: smp.ConditionDescription,
		})
	}
	return out
}

func isDaytime(t time.Time) bool {
	h := t.Hour()
	return h >= 6 && h < 18
}

func lerp(a, b, f float64) float64 {
	return a + (b-a)*f
}
