package connectivity

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// State is the process-wide network state.
type State string

const (
	Online  State = "online"
	Offline State = "offline"
)

// Probe checks whether the network is usable.
type Probe interface {
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Check(ctx context.Context) error { return f(ctx) }

// HTTPProbe reports online when a HEAD request to URL gets any HTTP response.
type HTTPProbe struct {
	Client *http.Client
	URL    string
}

func (p HTTPProbe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return err
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.URL, err)
	}
	resp.Body.Close()
	return nil
}

// Monitor tracks connectivity and notifies subscribers on transitions.
type Monitor struct {
	probe Probe

	mu     sync.Mutex
	state  State
	known  bool
	nextID int
	subs   map[int]func(State)
}

// NewMonitor creates a monitor. Until the first Status call it reports Offline.
func NewMonitor(probe Probe) *Monitor {
	return &Monitor{
		probe: probe,
		state: Offline,
		subs:  make(map[int]func(State)),
	}
}

// Status queries the probe and records the result. A failing probe means
// Offline, unless ctx itself ended: then the last observed state is returned
// and nothing is recorded.
func (m *Monitor) Status(ctx context.Context) State {
	s := Online
	if err := m.probe.Check(ctx); err != nil {
		if ctx.Err() != nil {
			log.Printf("DEBUG: connectivity: probe abandoned: %v", err)
			return m.Current()
		}
		log.Printf("DEBUG: connectivity: probe failed: %v", err)
		s = Offline
	}
	m.Set(s)
	return s
}

// Current returns the last observed state without probing.
func (m *Monitor) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Set records s and notifies subscribers if it differs from the previous
// observation. The first observation is not a transition.
func (m *Monitor) Set(s State) {
	m.mu.Lock()
	prev, known := m.state, m.known
	m.state, m.known = s, true
	if !known || prev == s {
		m.mu.Unlock()
		return
	}
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	log.Printf("INFO: connectivity: %s -> %s", prev, s)
	for _, fn := range subs {
		fn(s)
	}
}

// Subscribe registers fn for every transition. The returned function removes it.
func (m *Monitor) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}
