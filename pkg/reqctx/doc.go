// Package reqctx provides centralized request context management.
//
// This package is the single source of truth for all request-scoped data:
// the request id, the upstream correlation id, the request start time, and
// free-form metadata accumulated while a tool call executes.
//
// # Scoping
//
// RunWith establishes the ambient context for the dynamic extent of the
// function it runs, including everything that function awaits or spawns
// with the derived context:
//
//	err := reqctx.RunWith(ctx, reqctx.Partial{CorrelationID: cid}, func(ctx context.Context) error {
//	    log := reqctx.WithRequestLogger(ctx, slog.Default())
//	    log.Info("handling tool call")
//	    return handler(ctx)
//	})
//
// Nested RunWith calls shadow the outer context for exactly their extent;
// the outer context is visible again the moment the inner call returns.
// Concurrent requests never observe each other's context because the
// context value travels with the goroutine chain that created it.
//
// # Absent context
//
// Every accessor has a defined zero result when no context is active.
// None of them panic or return errors:
//
//	reqctx.HasContext(ctx)                // false
//	reqctx.RequestIDFromContext(ctx)      // ""
//	reqctx.DurationFromContext(ctx)       // 0
//	reqctx.UpdateMetadata(ctx, patch)     // no-op
//	reqctx.WithRequestLogger(ctx, base)   // base, unmodified
package reqctx
