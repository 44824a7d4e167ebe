package server

import (
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tasklane/tasklane_server/config"
	"github.com/tasklane/tasklane_server/internal/backend"
	"github.com/tasklane/tasklane_server/internal/tools"
	"github.com/tasklane/tasklane_server/pkg/events"
	"github.com/tasklane/tasklane_server/pkg/tracing"
)

// testToolDeps builds a toolset that is valid to register but never
// called; the backend address is intentionally unreachable.
func testToolDeps(t *testing.T) tools.Deps {
	t.Helper()
	tp := sdktrace.NewTracerProvider()
	client := backend.New(config.BackendConfig{
		BaseURL:   "http://127.0.0.1:1",
		APIKey:    "test-key",
		TimeoutMs: 100,
	}, tracing.NewManager(tp.Tracer("test")))
	return tools.Deps{
		Backend: client,
		Bus:     events.NewBus(discardLogger()),
		Log:     discardLogger(),
	}
}
