// Package health periodically probes the server's collaborators (redis,
// the admin backend) and publishes health-state transitions on the
// notification bus. Only transitions are published: a service that stays
// degraded does not re-emit every interval.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tasklane/tasklane_server/config"
	"github.com/tasklane/tasklane_server/pkg/events"
	"github.com/tasklane/tasklane_server/pkg/guard"
)

type state int

const (
	stateUnknown state = iota
	stateHealthy
	stateDegraded
)

// Probe checks one service. Check must honor ctx; the monitor bounds it
// with the configured probe timeout regardless.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Monitor runs probes on a fixed interval.
type Monitor struct {
	bus      *events.Bus
	log      *slog.Logger
	interval time.Duration
	timeout  time.Duration
	probes   []Probe

	mu     sync.Mutex
	states map[string]state

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMonitor creates a monitor over the given probes.
func NewMonitor(bus *events.Bus, log *slog.Logger, cfg config.HealthConfig, probes ...Probe) *Monitor {
	return &Monitor{
		bus:      bus,
		log:      log,
		interval: cfg.Interval,
		timeout:  cfg.ProbeTimeout,
		probes:   probes,
		states:   make(map[string]state),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the probe loop. The first round runs immediately.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		m.runChecks(context.Background())
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.runChecks(context.Background())
			}
		}
	}()
}

// runChecks probes every service once and emits transition events.
func (m *Monitor) runChecks(ctx context.Context) {
	for _, p := range m.probes {
		err := guard.Run(ctx, p.Check, m.timeout, "health."+p.Name)

		m.mu.Lock()
		prev := m.states[p.Name]
		next := stateHealthy
		if err != nil {
			next = stateDegraded
		}
		m.states[p.Name] = next
		m.mu.Unlock()

		switch {
		case next == stateDegraded && prev != stateDegraded:
			m.log.Warn("service degraded", "service", p.Name, "error", err)
			m.bus.Emit(ctx, events.HealthDegraded{Service: p.Name, Reason: err.Error()})
		case next == stateHealthy && prev == stateDegraded:
			m.log.Info("service recovered", "service", p.Name)
			m.bus.Emit(ctx, events.HealthRecovered{Service: p.Name})
		}
	}
}

// Healthy reports whether every probed service is currently healthy.
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.probes {
		if m.states[p.Name] != stateHealthy {
			return false
		}
	}
	return true
}

// Snapshot returns the current per-service health view.
func (m *Monitor) Snapshot() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.probes))
	for _, p := range m.probes {
		out[p.Name] = m.states[p.Name] == stateHealthy
	}
	return out
}

// Close stops the probe loop. Safe to call more than once.
func (m *Monitor) Close(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stop) })
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return nil
	}
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
