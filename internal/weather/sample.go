package weather

import "fmt"

// ForecastPoint is a provider forecast point as decoded. Numeric fields are
// nil when the provider omitted them.
type ForecastPoint struct {
	TimestampUnix        *int64
	TimestampText        string
	Temperature          *float64
	WindSpeedMPS         *float64
	HumidityPct          *int
	ConditionMain        string
	ConditionDescription string
}

// Sample converts p into a RawSample, failing with ErrMalformedSample when a
// required numeric field is missing.
func (p ForecastPoint) Sample() (RawSample, error) {
	switch {
	case p.TimestampUnix == nil:
		return RawSample{}, fmt.Errorf("%w: missing dt", ErrMalformedSample)
	case p.Temperature == nil:
		return RawSample{}, fmt.Errorf("%w: missing temperature at dt=%d", ErrMalformedSample, *p.TimestampUnix)
	case p.WindSpeedMPS == nil:
		return RawSample{}, fmt.Errorf("%w: missing wind speed at dt=%d", ErrMalformedSample, *p.TimestampUnix)
	case p.HumidityPct == nil:
		return RawSample{}, fmt.Errorf("%w: missing humidity at dt=%d", ErrMalformedSample, *p.TimestampUnix)
	}

	return RawSample{
		TimestampUnix:        *p.TimestampUnix,
		TimestampText:        p.TimestampText,
		Temperature:          *p.Temperature,
		WindSpeedMPS:         *p.WindSpeedMPS,
		ConditionMain:        p.ConditionMain,
		ConditionDescription: p.ConditionDescription,
		HumidityPct:          *p.HumidityPct,
	}, nil
}

// ValidSamples keeps the well-formed points in their original order and
// returns the errors for the ones it dropped.
func ValidSamples(points []ForecastPoint) ([]RawSample, []error) {
	samples := make([]RawSample, 0, len(points))
	var dropped []error
	for _, p := range points {
		s, err := p.Sample()
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		samples = append(samples, s)
	}
	return samples, dropped
}
