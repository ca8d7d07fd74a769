package acquisition

import (
	"errors"
	"time"

	"github.com/i474232898/weather-acquisition/internal/connectivity"
	"github.com/i474232898/weather-acquisition/internal/weather"
)

// State is a step of the retrieval state machine.
type State string

const (
	StateIdle          State = "idle"
	StateResolving     State = "resolving"
	StateFetching      State = "fetching"
	StateNormalizing   State = "normalizing"
	StateCacheFallback State = "cache_fallback"
	StateReady         State = "ready"
	StateEmpty         State = "empty"
)

// Terminal reports whether an attempt ends in s.
func (s State) Terminal() bool {
	return s == StateReady || s == StateEmpty
}

// Trigger is what started an attempt.
type Trigger string

const (
	TriggerInitial   Trigger = "initial"
	TriggerSearch    Trigger = "search"
	TriggerSettings  Trigger = "settings"
	TriggerReconnect Trigger = "reconnect"
	TriggerRetry     Trigger = "retry"
	TriggerScheduled Trigger = "scheduled"
)

var (
	// ErrSuperseded is returned to the caller of an attempt whose result was
	// discarded because a newer attempt started.
	ErrSuperseded = errors.New("attempt superseded by a newer trigger")

	ErrEmptyCity       = errors.New("city name is required")
	ErrInvalidSettings = errors.New("invalid settings")
)

// Snapshot is the state exposed to the UI collaborator.
//
// In StateReady, Stale marks a result served from cache, with Reason set to
// why live retrieval did not happen. In StateEmpty, Reason is always set.
type Snapshot struct {
	Seq          uint64                  `json:"seq"`
	AttemptID    string                  `json:"attemptId,omitempty"`
	Trigger      Trigger                 `json:"trigger,omitempty"`
	State        State                   `json:"state"`
	Connectivity connectivity.State      `json:"connectivity"`
	Settings     weather.Settings        `json:"settings"`
	Current      *weather.CurrentWeather `json:"current,omitempty"`
	Forecast     *weather.ForecastResult `json:"forecast,omitempty"`
	Stale        bool                    `json:"stale"`
	Reason       error                   `json:"-"`
	ReasonText   string                  `json:"reason,omitempty"`
	FailureKind  weather.FailureKind     `json:"failureKind,omitempty"`
	UpdatedAt    time.Time               `json:"updatedAt"`
}

// attempt is the immutable context of one run of the state machine.
type attempt struct {
	seq      uint64
	id       string
	trigger  Trigger
	city     string
	prevCity string
	settings weather.Settings
}
