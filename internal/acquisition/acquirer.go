package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-acquisition/internal/connectivity"
	"github.com/i474232898/weather-acquisition/internal/weather"
)

// SnapshotCache persists the last good current weather and forecast.
// Implementations treat failures as misses.
type SnapshotCache interface {
	LoadCurrent(ctx context.Context) (*weather.CurrentWeather, bool)
	SaveCurrent(ctx context.Context, cw weather.CurrentWeather)
	LoadForecast(ctx context.Context) (*weather.ForecastResult, bool)
	SaveForecast(ctx context.Context, fr weather.ForecastResult)
	SaveSettings(ctx context.Context, s weather.Settings)
	ClearSnapshots(ctx context.Context)
}

// ConnectivitySource reports network state and its transitions.
type ConnectivitySource interface {
	Status(ctx context.Context) connectivity.State
	Current() connectivity.State
	Subscribe(fn func(connectivity.State)) func()
}

// Config bundles the collaborators of an Acquirer.
type Config struct {
	Client       weather.Client
	Resolver     weather.LocationResolver
	Cache        SnapshotCache
	Connectivity ConnectivitySource
	Normalizer   weather.Normalizer
	Settings     weather.Settings
	// Now defaults to time.Now.
	Now func() time.Time
}

// Acquirer runs the retrieval state machine. Attempts are numbered; starting
// one cancels the previous one and only the newest attempt may change state
// or write to the cache.
type Acquirer struct {
	client     weather.Client
	resolver   weather.LocationResolver
	cache      SnapshotCache
	conn       ConnectivitySource
	normalizer weather.Normalizer
	now        func() time.Time

	mu               sync.Mutex
	seq              uint64
	running          uint64
	cancel           context.CancelFunc
	reconnectPending bool
	settings         weather.Settings
	settingsGen      uint64
	city             string
	snap             Snapshot
	nextSub          int
	subs             map[int]chan Snapshot
}

// New creates an Acquirer in StateIdle.
func New(cfg Config) *Acquirer {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	settings := cfg.Settings
	if !settings.Temperature.Valid() || !settings.Wind.Valid() {
		settings = weather.DefaultSettings()
	}

	return &Acquirer{
		client:     cfg.Client,
		resolver:   cfg.Resolver,
		cache:      cfg.Cache,
		conn:       cfg.Connectivity,
		normalizer: cfg.Normalizer,
		now:        now,
		settings:   settings,
		snap: Snapshot{
			State:        StateIdle,
			Connectivity: cfg.Connectivity.Current(),
			Settings:     settings,
			UpdatedAt:    now(),
		},
		subs: make(map[int]chan Snapshot),
	}
}

// request describes a trigger and what it changes before the attempt starts.
type request struct {
	trigger  Trigger
	city     *string
	settings *weather.Settings
}

// Load runs an attempt for the device location.
func (a *Acquirer) Load(ctx context.Context) (Snapshot, error) {
	device := ""
	return a.run(ctx, request{trigger: TriggerInitial, city: &device})
}

// Search runs an attempt for a city. Later retries keep using that city
// until Load is called.
func (a *Acquirer) Search(ctx context.Context, city string) (Snapshot, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return a.Snapshot(), ErrEmptyCity
	}
	return a.run(ctx, request{trigger: TriggerSearch, city: &city})
}

// UpdateSettings activates and persists s, then re-runs the attempt.
// Unchanged settings are a no-op.
func (a *Acquirer) UpdateSettings(ctx context.Context, s weather.Settings) (Snapshot, error) {
	if !s.Temperature.Valid() || !s.Wind.Valid() {
		return a.Snapshot(), fmt.Errorf("%w: %+v", ErrInvalidSettings, s)
	}

	a.mu.Lock()
	unchanged := a.settings == s
	a.mu.Unlock()
	if unchanged {
		return a.Snapshot(), nil
	}

	return a.run(ctx, request{trigger: TriggerSettings, settings: &s})
}

// Retry re-runs the attempt with the current location and settings.
func (a *Acquirer) Retry(ctx context.Context) (Snapshot, error) {
	return a.run(ctx, request{trigger: TriggerRetry})
}

// Refresh is the periodic variant of Retry.
func (a *Acquirer) Refresh(ctx context.Context) (Snapshot, error) {
	return a.run(ctx, request{trigger: TriggerScheduled})
}

// ClearCache drops the persisted snapshots. The displayed result is kept.
func (a *Acquirer) ClearCache(ctx context.Context) {
	a.cache.ClearSnapshots(ctx)
	log.Println("INFO: acquisition: cached snapshots cleared")
}

// Snapshot returns the latest committed state.
func (a *Acquirer) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

// Settings returns the active settings.
func (a *Acquirer) Settings() weather.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// Subscribe returns a channel that receives the current snapshot and every
// later one. A slow reader loses older snapshots, never the newest.
func (a *Acquirer) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	ch <- a.snap
	a.mu.Unlock()

	return ch, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if c, ok := a.subs[id]; ok {
			delete(a.subs, id)
			close(c)
		}
	}
}

// Watch reacts to connectivity transitions until ctx is done or the returned
// function is called. Going online starts a reconnect attempt unless one is
// already running or a fresh result is displayed.
func (a *Acquirer) Watch(ctx context.Context) func() {
	return a.conn.Subscribe(func(s connectivity.State) {
		a.connectivityChanged(ctx, s)
	})
}

func (a *Acquirer) connectivityChanged(ctx context.Context, s connectivity.State) {
	a.mu.Lock()
	a.snap.Connectivity = s
	a.broadcastLocked(a.snap)

	coalesced := s != connectivity.Online ||
		ctx.Err() != nil ||
		a.running != 0 ||
		a.reconnectPending ||
		(a.snap.State == StateReady && !a.snap.Stale)
	if !coalesced {
		a.reconnectPending = true
	}
	a.mu.Unlock()

	if coalesced {
		return
	}

	go func() {
		if _, err := a.run(ctx, request{trigger: TriggerReconnect}); err != nil && !errors.Is(err, ErrSuperseded) {
			log.Printf("WARN: acquisition: reconnect attempt failed: %v", err)
		}
	}()
}

func (a *Acquirer) begin(parent context.Context, req request) (context.Context, context.CancelFunc, attempt) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}
	a.seq++
	a.reconnectPending = false
	prevCity := a.city
	if req.city != nil {
		a.city = *req.city
	}
	if req.settings != nil {
		a.settings = *req.settings
		a.settingsGen++
	}

	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel
	a.running = a.seq

	at := attempt{
		seq:      a.seq,
		id:       uuid.NewString(),
		trigger:  req.trigger,
		city:     a.city,
		prevCity: prevCity,
		settings: a.settings,
	}

	next := a.snap
	next.Seq, next.AttemptID, next.Trigger, next.Settings = at.seq, at.id, at.trigger, at.settings
	next.State = StateIdle
	if req.trigger == TriggerSettings {
		// Results in the old units must not stay on screen.
		next.Current, next.Forecast = nil, nil
		next.Stale, next.Reason, next.ReasonText, next.FailureKind = false, nil, "", weather.KindNone
	}
	next.UpdatedAt = a.now()
	a.snap = next
	a.broadcastLocked(next)

	return ctx, cancel, at
}

func (a *Acquirer) finish(seq uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running == seq {
		a.running = 0
		a.cancel = nil
	}
}

func (a *Acquirer) isCurrent(seq uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seq == seq
}

// run executes one attempt: current weather, then forecast, then
// normalization, then cache writes, then exposure.
func (a *Acquirer) run(parent context.Context, req request) (Snapshot, error) {
	ctx, cancel, at := a.begin(parent, req)
	defer cancel()
	defer a.finish(at.seq)

	log.Printf("INFO: acquisition: attempt %d [%s] started by %s", at.seq, at.id, at.trigger)

	if req.settings != nil {
		a.persistSettings(context.WithoutCancel(ctx))
	}

	conn := a.conn.Status(ctx)
	if conn == connectivity.Offline {
		return a.fallback(ctx, at, conn, weather.ErrOffline)
	}

	if !a.transition(at, StateResolving, conn) {
		return a.superseded(at)
	}
	query, err := a.resolve(ctx, at)
	if err != nil {
		return a.fallback(ctx, at, conn, err)
	}

	if !a.transition(at, StateFetching, conn) {
		return a.superseded(at)
	}
	current, err := a.client.FetchCurrent(ctx, query, at.settings.Temperature)
	if err != nil {
		return a.fallback(ctx, at, conn, err)
	}
	points, err := a.client.FetchForecast(ctx, current.Coordinates, at.settings.Temperature)
	if err != nil {
		return a.fallback(ctx, at, conn, err)
	}

	if !a.isCurrent(at.seq) {
		return a.superseded(at)
	}
	a.cache.SaveCurrent(ctx, current)

	if !a.transition(at, StateNormalizing, conn) {
		return a.superseded(at)
	}
	samples, dropped := weather.ValidSamples(points)
	for _, err := range dropped {
		log.Printf("WARN: acquisition: attempt %d dropped sample: %v", at.seq, err)
	}
	result := a.normalizer.Normalize(&current, samples, at.settings, a.now().In(current.Zone()))

	if !a.isCurrent(at.seq) {
		return a.superseded(at)
	}
	a.cache.SaveForecast(ctx, result)

	return a.complete(at, func(s *Snapshot) {
		s.State = StateReady
		s.Connectivity = conn
		s.Current = &current
		s.Forecast = &result
		s.Stale = false
		s.Reason = nil
	})
}

// persistSettings stores the active settings. A save that finishes after a
// newer settings change was activated is followed by a save of the newer
// value, so the store always ends with the last activated settings.
func (a *Acquirer) persistSettings(ctx context.Context) {
	for {
		a.mu.Lock()
		gen, s := a.settingsGen, a.settings
		a.mu.Unlock()

		a.cache.SaveSettings(ctx, s)

		a.mu.Lock()
		latest := a.settingsGen == gen
		a.mu.Unlock()
		if latest {
			return
		}
	}
}

// forgetCity drops a searched city the provider did not know, so later
// triggers go back to the previous location.
func (a *Acquirer) forgetCity(at attempt) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if at.city != "" && a.city == at.city {
		a.city = at.prevCity
		log.Printf("INFO: acquisition: attempt %d forgot unknown city %q", at.seq, at.city)
	}
}

func (a *Acquirer) resolve(ctx context.Context, at attempt) (weather.Query, error) {
	if at.city != "" {
		return weather.Query{City: at.city}, nil
	}
	if a.resolver == nil {
		return weather.Query{}, fmt.Errorf("%w: no location resolver", weather.ErrLocationUnavailable)
	}

	coords, err := a.resolver.Resolve(ctx)
	if err != nil {
		if weather.Kind(err) != weather.KindLocation {
			err = fmt.Errorf("%w: %w", weather.ErrLocationUnavailable, err)
		}
		return weather.Query{}, err
	}
	return weather.Query{Coordinates: coords}, nil
}

// fallback serves the cached snapshots, if any, with reason attached.
func (a *Acquirer) fallback(ctx context.Context, at attempt, conn connectivity.State, reason error) (Snapshot, error) {
	if !a.transition(at, StateCacheFallback, conn) {
		return a.superseded(at)
	}
	log.Printf("WARN: acquisition: attempt %d falling back to cache: %v", at.seq, reason)

	if at.trigger == TriggerSearch && weather.Kind(reason) == weather.KindLookup {
		a.forgetCity(at)
	}

	// The caller's deadline may be what failed the fetch; cache reads still run.
	cctx := context.WithoutCancel(ctx)
	current, hasCurrent := a.cache.LoadCurrent(cctx)
	forecast, hasForecast := a.cache.LoadForecast(cctx)

	if !hasCurrent && !hasForecast {
		if errors.Is(reason, weather.ErrOffline) {
			reason = fmt.Errorf("%w: %w", weather.ErrNoCachedData, reason)
		}
		return a.complete(at, func(s *Snapshot) {
			s.State = StateEmpty
			s.Connectivity = conn
			s.Current, s.Forecast = nil, nil
			s.Stale = false
			s.Reason = reason
		})
	}

	return a.complete(at, func(s *Snapshot) {
		s.State = StateReady
		s.Connectivity = conn
		s.Current = current
		s.Forecast = forecast
		s.Stale = true
		s.Reason = reason
	})
}

func (a *Acquirer) transition(at attempt, state State, conn connectivity.State) bool {
	_, ok := a.commit(at, func(s *Snapshot) {
		s.State = state
		s.Connectivity = conn
	})
	return ok
}

// complete commits a terminal state.
func (a *Acquirer) complete(at attempt, mutate func(*Snapshot)) (Snapshot, error) {
	snap, ok := a.commit(at, mutate)
	if !ok {
		return a.superseded(at)
	}
	if snap.Reason != nil {
		log.Printf("INFO: acquisition: attempt %d finished %s (stale=%t, reason=%v)", at.seq, snap.State, snap.Stale, snap.Reason)
	} else {
		log.Printf("INFO: acquisition: attempt %d finished %s", at.seq, snap.State)
	}
	return snap, nil
}

func (a *Acquirer) superseded(at attempt) (Snapshot, error) {
	log.Printf("DEBUG: acquisition: attempt %d [%s] superseded; discarding its result", at.seq, at.id)
	return a.Snapshot(), ErrSuperseded
}

// commit applies mutate to the current snapshot if at is still the newest attempt.
func (a *Acquirer) commit(at attempt, mutate func(*Snapshot)) (Snapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if at.seq != a.seq {
		return a.snap, false
	}

	next := a.snap
	mutate(&next)
	next.Seq, next.AttemptID, next.Trigger, next.Settings = at.seq, at.id, at.trigger, at.settings
	next.FailureKind = weather.Kind(next.Reason)
	next.ReasonText = ""
	if next.Reason != nil {
		next.ReasonText = next.Reason.Error()
	}
	next.UpdatedAt = a.now()

	a.snap = next
	a.broadcastLocked(next)
	return next, true
}

func (a *Acquirer) broadcastLocked(s Snapshot) {
	for _, ch := range a.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}
