package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-acquisition/internal/acquisition"
	"github.com/i474232898/weather-acquisition/internal/connectivity"
	"github.com/i474232898/weather-acquisition/internal/units"
	"github.com/i474232898/weather-acquisition/internal/weather"
)

type fakeAcquirer struct {
	snap      acquisition.Snapshot
	settings  weather.Settings
	searched  []string
	retries   int
	cleared   bool
	searchErr error
}

func (f *fakeAcquirer) Snapshot() acquisition.Snapshot { return f.snap }

func (f *fakeAcquirer) Search(_ context.Context, city string) (acquisition.Snapshot, error) {
	f.searched = append(f.searched, city)
	if f.searchErr != nil {
		return f.snap, f.searchErr
	}
	f.snap.State = acquisition.StateReady
	f.snap.Trigger = acquisition.TriggerSearch
	return f.snap, nil
}

func (f *fakeAcquirer) Retry(context.Context) (acquisition.Snapshot, error) {
	f.retries++
	f.snap.Trigger = acquisition.TriggerRetry
	return f.snap, nil
}

func (f *fakeAcquirer) Settings() weather.Settings { return f.settings }

func (f *fakeAcquirer) UpdateSettings(_ context.Context, s weather.Settings) (acquisition.Snapshot, error) {
	f.settings = s
	f.snap.Settings = s
	return f.snap, nil
}

func (f *fakeAcquirer) ClearCache(context.Context) { f.cleared = true }

type fixedConn connectivity.State

func (c fixedConn) Current() connectivity.State { return connectivity.State(c) }

func newTestApp(acq *fakeAcquirer) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, acq, fixedConn(connectivity.Online))
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func TestSearchRequiresCity(t *testing.T) {
	acq := &fakeAcquirer{}
	app := newTestApp(acq)

	for _, target := range []string{"/api/v1/weather/search", "/api/v1/weather/search?city=%20%20"} {
		resp, body := doRequest(t, app, http.MethodGet, target, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, resp.StatusCode)
		}
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
		if payload["error"] != true {
			t.Fatalf("expected error payload, got %s", body)
		}
	}
	if len(acq.searched) != 0 {
		t.Fatalf("search should not run, got %v", acq.searched)
	}
}

func TestSearchReturnsSnapshot(t *testing.T) {
	acq := &fakeAcquirer{}
	app := newTestApp(acq)

	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/weather/search?city=Pune", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.StatusCode, body)
	}
	if len(acq.searched) != 1 || acq.searched[0] != "Pune" {
		t.Fatalf("unexpected searches: %v", acq.searched)
	}

	var snap acquisition.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.State != acquisition.StateReady || snap.Trigger != acquisition.TriggerSearch {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestSupersededSearchIsConflict(t *testing.T) {
	acq := &fakeAcquirer{searchErr: acquisition.ErrSuperseded}
	app := newTestApp(acq)

	resp, _ := doRequest(t, app, http.MethodGet, "/api/v1/weather/search?city=Pune", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, resp.StatusCode)
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	acq := &fakeAcquirer{settings: weather.DefaultSettings()}
	app := newTestApp(acq)

	cases := []string{
		`{"temperatureUnit":"kelvin","windSpeedUnit":"km/h"}`,
		`{"temperatureUnit":"metric","windSpeedUnit":"furlong/fortnight"}`,
		`{"temperatureUnit":"metric"}`,
		`not json`,
	}
	for _, body := range cases {
		resp, _ := doRequest(t, app, http.MethodPut, "/api/v1/settings", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", body, http.StatusBadRequest, resp.StatusCode)
		}
	}
	if acq.settings != weather.DefaultSettings() {
		t.Fatalf("settings changed by invalid input: %+v", acq.settings)
	}

	resp, body := doRequest(t, app, http.MethodPut, "/api/v1/settings", `{"temperatureUnit":"imperial","windSpeedUnit":"knot"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.StatusCode, body)
	}
	want := weather.Settings{Temperature: units.Imperial, Wind: units.Knots}
	if acq.settings != want {
		t.Fatalf("expected settings %+v, got %+v", want, acq.settings)
	}

	_, body = doRequest(t, app, http.MethodGet, "/api/v1/settings", "")
	var got weather.Settings
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if got != want {
		t.Fatalf("expected settings %+v, got %+v", want, got)
	}
}

func TestRefreshClearAndConnectivity(t *testing.T) {
	acq := &fakeAcquirer{}
	app := newTestApp(acq)

	resp, _ := doRequest(t, app, http.MethodPost, "/api/v1/weather/refresh", "")
	if resp.StatusCode != http.StatusOK || acq.retries != 1 {
		t.Fatalf("refresh: status %d, retries %d", resp.StatusCode, acq.retries)
	}

	resp, _ = doRequest(t, app, http.MethodDelete, "/api/v1/cache", "")
	if resp.StatusCode != http.StatusNoContent || !acq.cleared {
		t.Fatalf("clear cache: status %d, cleared %t", resp.StatusCode, acq.cleared)
	}

	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/connectivity", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"online"`) {
		t.Fatalf("connectivity: status %d, body %s", resp.StatusCode, body)
	}
}
