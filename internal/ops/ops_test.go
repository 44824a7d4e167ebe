package ops

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tasklane/tasklane_server/config"
	"github.com/tasklane/tasklane_server/internal/health"
	"github.com/tasklane/tasklane_server/pkg/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startedMonitor(t *testing.T, check func(context.Context) error) *health.Monitor {
	t.Helper()
	bus := events.NewBus(discardLogger())
	m := health.NewMonitor(bus, discardLogger(), config.HealthConfig{
		Interval:     time.Hour,
		ProbeTimeout: 200 * time.Millisecond,
	}, health.Probe{Name: "backend", Check: check})
	m.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		m.Close(ctx)
	})

	// Start runs the first probe round asynchronously.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(m.Snapshot()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	return m
}

func TestLivenessAlwaysUp(t *testing.T) {
	m := startedMonitor(t, func(context.Context) error { return errors.New("down") })
	app := New(m, events.NewBus(discardLogger()))

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/livez", nil))
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("livez status = %d", res.StatusCode)
	}
}

func TestReadinessFollowsMonitor(t *testing.T) {
	healthy := startedMonitor(t, func(context.Context) error { return nil })
	app := New(healthy, events.NewBus(discardLogger()))
	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d, want 200", res.StatusCode)
	}

	degraded := startedMonitor(t, func(context.Context) error { return errors.New("down") })
	app = New(degraded, events.NewBus(discardLogger()))
	res, err = app.Test(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", res.StatusCode)
	}
}

func TestMetricsServed(t *testing.T) {
	m := startedMonitor(t, func(context.Context) error { return nil })
	app := New(m, events.NewBus(discardLogger()))

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", res.StatusCode)
	}
	body, _ := io.ReadAll(res.Body)
	if len(body) == 0 {
		t.Fatal("metrics body is empty")
	}
}

func TestStatusz(t *testing.T) {
	m := startedMonitor(t, func(context.Context) error { return nil })
	bus := events.NewBus(discardLogger())
	bus.On(events.KindEntityCreated, func(context.Context, events.Event) error { return nil })
	app := New(m, bus)

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/statusz", nil))
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("statusz status = %d", res.StatusCode)
	}

	var payload struct {
		Ready    bool            `json:"ready"`
		Services map[string]bool `json:"services"`
		Bus      struct {
			TotalHandlers int `json:"total_handlers"`
		} `json:"bus"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode statusz: %v", err)
	}
	if !payload.Ready || !payload.Services["backend"] {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.Bus.TotalHandlers != 1 {
		t.Fatalf("total handlers = %d", payload.Bus.TotalHandlers)
	}
}
