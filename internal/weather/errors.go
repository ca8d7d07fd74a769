package weather

import "errors"

var (
	ErrLocationDenied      = errors.New("location permission denied")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrCityNotFound        = errors.New("city not found")
	ErrNetwork             = errors.New("network failure")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrOffline             = errors.New("offline")
	ErrNoCachedData        = errors.New("no cached weather data")
	ErrCacheRead           = errors.New("cache read failure")
	ErrMalformedSample     = errors.New("malformed forecast sample")
)

// FailureKind groups acquisition errors for callers that only need the category.
type FailureKind string

const (
	KindNone      FailureKind = ""
	KindLocation  FailureKind = "location"
	KindLookup    FailureKind = "lookup"
	KindNetwork   FailureKind = "network"
	KindAuth      FailureKind = "auth"
	KindOffline   FailureKind = "offline"
	KindCacheMiss FailureKind = "cache_miss"
	KindCacheRead FailureKind = "cache_read"
	KindMalformed FailureKind = "malformed_input"
	KindUnknown   FailureKind = "unknown"
)

// Kind classifies err into one of the acquisition failure categories.
func Kind(err error) FailureKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrLocationDenied), errors.Is(err, ErrLocationUnavailable):
		return KindLocation
	case errors.Is(err, ErrCityNotFound):
		return KindLookup
	case errors.Is(err, ErrUnauthorized):
		return KindAuth
	case errors.Is(err, ErrNoCachedData):
		return KindCacheMiss
	case errors.Is(err, ErrOffline):
		return KindOffline
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrCacheRead):
		return KindCacheRead
	case errors.Is(err, ErrMalformedSample):
		return KindMalformed
	default:
		return KindUnknown
	}
}
