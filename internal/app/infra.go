package app

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/tasklane/tasklane_server/config"
	"github.com/tasklane/tasklane_server/internal/backend"
	"github.com/tasklane/tasklane_server/internal/health"
	"github.com/tasklane/tasklane_server/internal/locks"
	"github.com/tasklane/tasklane_server/internal/relay"
	"github.com/tasklane/tasklane_server/pkg/events"
	"github.com/tasklane/tasklane_server/pkg/observability"
	redispkg "github.com/tasklane/tasklane_server/pkg/redis"
	"github.com/tasklane/tasklane_server/pkg/shutdown"
	"github.com/tasklane/tasklane_server/pkg/tracing"
)

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(
		ProvideOTel,
		ProvideRedis,
		ProvideNatsClient,
		ProvideBackendClient,
		ProvideLockManager,
		ProvideHealthMonitor,
	),
	// Nothing consumes the otel provider directly; force construction so
	// the global tracer/meter providers are installed.
	fx.Invoke(func(*observability.Provider) {}),
	fx.Invoke(RegisterRelay),
)

func ProvideOTel(cfg *config.Config, orch *shutdown.Orchestrator) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.InitTelemetry(context.Background(), observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Server.Environment,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		OTLPInsecure:   cfg.Observability.OTLPInsecure,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		return nil, err
	}
	if err := orch.Register("otel", provider.Shutdown); err != nil {
		return nil, err
	}
	return provider, nil
}

// ProvideRedis connects to redis when an address is configured. A nil
// client means advisory locking is disabled; tools degrade gracefully.
func ProvideRedis(cfg *config.Config, orch *shutdown.Orchestrator) (*goredis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	rdb, err := redispkg.New(cfg.Redis)
	if err != nil {
		return nil, err
	}
	if err := orch.Register("redis", func(context.Context) error {
		slog.Debug("closing redis connection")
		return rdb.Close()
	}); err != nil {
		return nil, err
	}
	return rdb, nil
}

// ProvideNatsClient connects to NATS when the relay is enabled. A nil
// connection disables event relaying.
func ProvideNatsClient(cfg *config.Config, orch *shutdown.Orchestrator) (*nats.Conn, error) {
	if !cfg.Nats.Enabled {
		return nil, nil
	}
	nc, err := nats.Connect(cfg.Nats.URL)
	if err != nil {
		return nil, err
	}
	if err := orch.Register("nats", func(context.Context) error {
		slog.Debug("draining NATS connection")
		return nc.Drain()
	}); err != nil {
		return nil, err
	}
	return nc, nil
}

func ProvideBackendClient(cfg *config.Config, tracer *tracing.Manager) *backend.Client {
	return backend.New(cfg.Backend, tracer)
}

func ProvideLockManager(cfg *config.Config, rdb *goredis.Client, bus *events.Bus, orch *shutdown.Orchestrator) (*locks.Manager, error) {
	if rdb == nil {
		return nil, nil
	}
	mgr := locks.NewManager(rdb, bus, slog.Default(), cfg.Locks)
	mgr.Start()
	if err := orch.Register("locks", mgr.Close); err != nil {
		return nil, err
	}
	return mgr, nil
}

func ProvideHealthMonitor(cfg *config.Config, client *backend.Client, rdb *goredis.Client, bus *events.Bus, orch *shutdown.Orchestrator) (*health.Monitor, error) {
	probes := []health.Probe{
		{Name: "backend", Check: client.Ping},
	}
	if rdb != nil {
		probes = append(probes, health.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	monitor := health.NewMonitor(bus, slog.Default(), cfg.Health, probes...)
	monitor.Start()
	if err := orch.Register("health", monitor.Close); err != nil {
		return nil, err
	}
	return monitor, nil
}

// RegisterRelay bridges bus events onto NATS when a connection exists.
func RegisterRelay(nc *nats.Conn, bus *events.Bus) {
	if nc == nil {
		return
	}
	relay.New(nc, slog.Default()).Attach(bus)
}
