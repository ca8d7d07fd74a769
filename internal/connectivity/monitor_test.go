package connectivity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitorNotifiesOnTransitionsOnly(t *testing.T) {
	var up bool
	m := NewMonitor(ProbeFunc(func(context.Context) error {
		if up {
			return nil
		}
		return errors.New("no route to host")
	}))

	var seen []State
	m.Subscribe(func(s State) { seen = append(seen, s) })

	ctx := context.Background()
	assert.Equal(t, Offline, m.Status(ctx))
	assert.Equal(t, Offline, m.Status(ctx))

	up = true
	assert.Equal(t, Online, m.Status(ctx))
	assert.Equal(t, Online, m.Status(ctx))

	up = false
	assert.Equal(t, Offline, m.Status(ctx))

	assert.Equal(t, []State{Online, Offline}, seen)
	assert.Equal(t, Offline, m.Current())
}

func TestMonitorFirstObservationIsNotATransition(t *testing.T) {
	m := NewMonitor(ProbeFunc(func(context.Context) error { return nil }))
	calls := 0
	m.Subscribe(func(State) { calls++ })

	m.Status(context.Background())
	assert.Equal(t, 0, calls)
	assert.Equal(t, Online, m.Current())
}

func TestMonitorUnsubscribe(t *testing.T) {
	m := NewMonitor(ProbeFunc(func(context.Context) error { return nil }))
	calls := 0
	unsubscribe := m.Subscribe(func(State) { calls++ })

	m.Set(Offline)
	m.Set(Online)
	unsubscribe()
	m.Set(Offline)

	assert.Equal(t, 1, calls)
}

func TestHTTPProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	probe := HTTPProbe{Client: srv.Client(), URL: srv.URL}
	assert.NoError(t, probe.Check(context.Background()))

	srv.Close()
	assert.Error(t, probe.Check(context.Background()))
}

func TestMonitorIgnoresCancelledStatus(t *testing.T) {
	m := NewMonitor(ProbeFunc(func(ctx context.Context) error { return ctx.Err() }))
	var seen []State
	m.Subscribe(func(s State) { seen = append(seen, s) })

	assert.Equal(t, Online, m.Status(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, Online, m.Status(ctx))

	assert.Equal(t, Online, m.Current())
	assert.Empty(t, seen)
}
