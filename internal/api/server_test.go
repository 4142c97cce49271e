package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/garagedoor/internal/connectivity"
	"github.com/nerrad567/garagedoor/internal/door"
	"github.com/nerrad567/garagedoor/internal/infrastructure/config"
	"github.com/nerrad567/garagedoor/internal/infrastructure/logging"
	"github.com/nerrad567/garagedoor/internal/journal"
)

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, config.LoggingConfig{Level: "error", Format: "text"}, "test", "garage")
}

type fakeJournal struct {
	got journal.Filter
	err error
}

func (f *fakeJournal) List(_ context.Context, filter journal.Filter) (*journal.ListResult, error) {
	f.got = filter
	if f.err != nil {
		return nil, f.err
	}
	return &journal.ListResult{
		Entries: []journal.Entry{{ID: "1", Kind: journal.KindDoor, Subject: "door1", Value: "open"}},
		Total:   1,
		Limit:   filter.Limit,
	}, nil
}

func testServer(t *testing.T, deps Deps) (*Server, *Tracker) {
	t.Helper()
	if deps.Tracker == nil {
		deps.Tracker = NewTracker("garage", "test")
	}
	deps.Logger = testLogger()
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, deps.Tracker
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Tracker: NewTracker("garage", "test")}); err == nil {
		t.Error("New() without logger error = nil")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without tracker error = nil")
	}
}

func TestHealth(t *testing.T) {
	srv, tracker := testServer(t, Deps{})
	h := srv.Handler()

	rec := get(t, h, "/api/v1/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health while disconnected = %d, want 503", rec.Code)
	}

	tracker.ObserveConnectivity(connectivity.AddressAcquired, connectivity.BusConnected)
	rec = get(t, h, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Errorf("health while connected = %d, want 200", rec.Code)
	}
	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if body.Connectivity != "bus_connected" {
		t.Errorf("connectivity = %q, want bus_connected", body.Connectivity)
	}

	tracker.ObserveConnectivity(connectivity.BusConnected, connectivity.AddressAcquired)
	if rec := get(t, h, "/api/v1/health"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health after bus loss = %d, want 503", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	srv, tracker := testServer(t, Deps{})
	tracker.AddActuator("opener")
	tracker.ObserveDoor("door2", door.Closed)
	tracker.ObserveDoor("door1", door.Open)
	tracker.ObservePulse("opener", 200*time.Millisecond, nil)
	tracker.ObservePulse("opener", 0, errors.New("line write failed"))
	tracker.ObserveConnectivity(connectivity.Disconnected, connectivity.LinkUp)

	rec := get(t, srv.Handler(), "/api/v1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var snap Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if snap.DeviceID != "garage" || snap.Version != "test" {
		t.Errorf("device, version = %q, %q", snap.DeviceID, snap.Version)
	}
	if snap.Connectivity.State != "link_up" || snap.Connectivity.Transitions != 1 {
		t.Errorf("connectivity = %+v", snap.Connectivity)
	}
	if len(snap.Doors) != 2 || snap.Doors[0].Sensor != "door1" || snap.Doors[0].State != "open" {
		t.Errorf("doors = %+v", snap.Doors)
	}
	if len(snap.Actuators) != 1 {
		t.Fatalf("actuators = %+v", snap.Actuators)
	}
	a := snap.Actuators[0]
	if a.Pulses != 2 || a.Failures != 1 || a.LastError != "line write failed" {
		t.Errorf("actuator = %+v", a)
	}
}

func TestJournal(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		srv, _ := testServer(t, Deps{})
		if rec := get(t, srv.Handler(), "/api/v1/journal"); rec.Code != http.StatusNotFound {
			t.Errorf("journal disabled = %d, want 404", rec.Code)
		}
	})

	t.Run("filter passthrough", func(t *testing.T) {
		fj := &fakeJournal{}
		srv, _ := testServer(t, Deps{Journal: fj})

		rec := get(t, srv.Handler(), "/api/v1/journal?kind=door&subject=door1&limit=5&offset=2&since=2026-03-01T00:00:00Z")
		if rec.Code != http.StatusOK {
			t.Fatalf("journal = %d, want 200", rec.Code)
		}
		want := journal.Filter{
			Kind:    "door",
			Subject: "door1",
			Limit:   5,
			Offset:  2,
			Since:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		}
		if fj.got.Kind != want.Kind || fj.got.Subject != want.Subject ||
			fj.got.Limit != want.Limit || fj.got.Offset != want.Offset || !fj.got.Since.Equal(want.Since) {
			t.Errorf("filter = %+v, want %+v", fj.got, want)
		}
		var res journal.ListResult
		if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
			t.Fatalf("decoding journal: %v", err)
		}
		if res.Total != 1 || res.Entries[0].Subject != "door1" {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("bad query", func(t *testing.T) {
		srv, _ := testServer(t, Deps{Journal: &fakeJournal{}})
		for _, q := range []string{"limit=x", "offset=y", "since=yesterday"} {
			if rec := get(t, srv.Handler(), "/api/v1/journal?"+q); rec.Code != http.StatusBadRequest {
				t.Errorf("journal?%s = %d, want 400", q, rec.Code)
			}
		}
	})

	t.Run("store error", func(t *testing.T) {
		srv, _ := testServer(t, Deps{Journal: &fakeJournal{err: errors.New("disk I/O error")}})
		if rec := get(t, srv.Handler(), "/api/v1/journal"); rec.Code != http.StatusInternalServerError {
			t.Errorf("journal error = %d, want 500", rec.Code)
		}
	})
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "garagedoor_connectivity_state 0\n")
	})
	srv, _ := testServer(t, Deps{Metrics: metrics})

	rec := get(t, srv.Handler(), "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "garagedoor_connectivity_state") {
		t.Errorf("metrics = %d %q", rec.Code, rec.Body.String())
	}

	srv, _ = testServer(t, Deps{})
	if rec := get(t, srv.Handler(), "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("metrics without handler = %d, want 404", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t, Deps{})
	h := srv.Handler()

	rec := get(t, h, "/api/v1/status")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc123" {
		t.Errorf("X-Request-ID = %q, want abc123", got)
	}
}

func TestRecovery(t *testing.T) {
	srv, _ := testServer(t, Deps{Metrics: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})})

	if rec := get(t, srv.Handler(), "/metrics"); rec.Code != http.StatusInternalServerError {
		t.Errorf("panicking handler = %d, want 500", rec.Code)
	}
}

func TestStartClose(t *testing.T) {
	srv, tracker := testServer(t, Deps{Config: config.APIConfig{
		Host:     "127.0.0.1",
		Port:     0,
		Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
	}})
	tracker.ObserveConnectivity(connectivity.AddressAcquired, connectivity.BusConnected)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start error = nil")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() error = nil")
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if srv.Addr() != "" {
		t.Errorf("Addr() after Close = %q", srv.Addr())
	}
}

func TestStart_PortInUse(t *testing.T) {
	first, _ := testServer(t, Deps{Config: config.APIConfig{Host: "127.0.0.1"}})
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer first.Close() //nolint:errcheck // test cleanup

	_, port, err := net.SplitHostPort(first.Addr())
	if err != nil {
		t.Fatalf("SplitHostPort() error = %v", err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("Atoi() error = %v", err)
	}

	second, _ := testServer(t, Deps{Config: config.APIConfig{Host: "127.0.0.1", Port: p}})
	if err := second.Start(context.Background()); err == nil {
		second.Close() //nolint:errcheck // test cleanup
		t.Error("Start() on used port error = nil")
	}
}
