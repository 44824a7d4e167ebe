package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tasklane/tasklane_server/config"
	"github.com/tasklane/tasklane_server/pkg/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type healthRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *healthRecorder) subscribe(bus *events.Bus) {
	h := func(_ context.Context, ev events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
		return nil
	}
	bus.On(events.KindHealthDegraded, h)
	bus.On(events.KindHealthRecovered, h)
}

func (r *healthRecorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

func testMonitor(t *testing.T, probes ...Probe) (*Monitor, *healthRecorder) {
	t.Helper()
	bus := events.NewBus(discardLogger())
	rec := &healthRecorder{}
	rec.subscribe(bus)
	cfg := config.HealthConfig{Interval: time.Hour, ProbeTimeout: 200 * time.Millisecond}
	return NewMonitor(bus, discardLogger(), cfg, probes...), rec
}

func TestHealthyProbesEmitNothing(t *testing.T) {
	m, rec := testMonitor(t, Probe{Name: "redis", Check: func(context.Context) error { return nil }})

	m.runChecks(context.Background())
	m.runChecks(context.Background())

	if got := rec.all(); len(got) != 0 {
		t.Fatalf("expected no events for healthy probes, got %v", got)
	}
	if !m.Healthy() {
		t.Fatal("monitor should report healthy")
	}
}

func TestDegradedEmitsOnceUntilRecovery(t *testing.T) {
	var mu sync.Mutex
	fail := true
	m, rec := testMonitor(t, Probe{Name: "backend", Check: func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return errors.New("connection refused")
		}
		return nil
	}})

	m.runChecks(context.Background())
	m.runChecks(context.Background())

	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("expected a single degraded event, got %v", got)
	}
	deg, ok := got[0].(events.HealthDegraded)
	if !ok {
		t.Fatalf("expected HealthDegraded, got %T", got[0])
	}
	if deg.Service != "backend" || deg.Reason != "connection refused" {
		t.Fatalf("unexpected event payload: %+v", deg)
	}
	if m.Healthy() {
		t.Fatal("monitor should report unhealthy")
	}

	mu.Lock()
	fail = false
	mu.Unlock()
	m.runChecks(context.Background())

	got = rec.all()
	if len(got) != 2 {
		t.Fatalf("expected degraded then recovered, got %v", got)
	}
	rcv, ok := got[1].(events.HealthRecovered)
	if !ok {
		t.Fatalf("expected HealthRecovered, got %T", got[1])
	}
	if rcv.Service != "backend" {
		t.Fatalf("unexpected service: %q", rcv.Service)
	}
	if !m.Healthy() {
		t.Fatal("monitor should report healthy again")
	}
}

func TestSlowProbeCountsAsDegraded(t *testing.T) {
	m, rec := testMonitor(t, Probe{Name: "redis", Check: func(ctx context.Context) error {
		select {
		case <-time.After(2 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}})

	m.runChecks(context.Background())

	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("expected one degraded event, got %v", got)
	}
	if _, ok := got[0].(events.HealthDegraded); !ok {
		t.Fatalf("expected HealthDegraded, got %T", got[0])
	}
}

func TestSnapshotReportsPerService(t *testing.T) {
	m, _ := testMonitor(t,
		Probe{Name: "redis", Check: func(context.Context) error { return nil }},
		Probe{Name: "backend", Check: func(context.Context) error { return errors.New("down") }},
	)

	m.runChecks(context.Background())

	snap := m.Snapshot()
	if !snap["redis"] || snap["backend"] {
		t.Fatalf("unexpected snapshot: %v", snap)
	}
}

func TestUnprobedServicesAreNotHealthy(t *testing.T) {
	m, _ := testMonitor(t, Probe{Name: "redis", Check: func(context.Context) error { return nil }})

	if m.Healthy() {
		t.Fatal("monitor should not report healthy before the first round")
	}
}

func TestStartAndClose(t *testing.T) {
	m, _ := testMonitor(t, Probe{Name: "redis", Check: func(context.Context) error { return nil }})

	m.Start()
	m.Start() // idempotent

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestCloseWithoutStart(t *testing.T) {
	m, _ := testMonitor(t, Probe{Name: "redis", Check: func(context.Context) error { return nil }})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := m.Close(ctx); err != nil {
		t.Fatalf("close without start: %v", err)
	}
}
