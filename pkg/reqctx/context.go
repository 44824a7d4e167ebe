package reqctx

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey int

const keyRequestContext ctxKey = iota

// requestContext is the ambient per-request state. It lives in the
// context chain and is owned by the request that created it; the metadata
// map is guarded because a handler may fan work out to goroutines that
// share the derived context.
type requestContext struct {
	requestID     string
	correlationID string
	startTime     time.Time

	mu       sync.Mutex
	metadata map[string]any
}

// Partial carries the caller-supplied parts of a new request context.
// Zero fields are defaulted: RequestID to a generated "req-" id,
// StartTime to now. CorrelationID is never generated; it only exists
// when an upstream caller propagated one.
type Partial struct {
	RequestID     string
	CorrelationID string
	StartTime     time.Time
	// Metadata is keyed lookup only; iteration order is not preserved.
	Metadata map[string]any
}

// Snapshot is a read-only copy of the ambient context. Metadata carries
// no key ordering; callers needing stable output sort the keys.
type Snapshot struct {
	RequestID     string
	CorrelationID string
	StartTime     time.Time
	Metadata      map[string]any
}

// Stats summarizes the ambient context for diagnostics.
type Stats struct {
	Active           bool
	RequestID        string
	HasCorrelationID bool
	Elapsed          time.Duration
	MetadataKeys     int
}

// NewRequestID generates a fresh request id in the form "req-<uuid>".
func NewRequestID() string {
	return "req-" + uuid.NewString()
}

// RunWith executes fn with an ambient request context derived from partial.
// The context is observable for the entire dynamic extent of fn and is gone
// the moment fn returns; an enclosing request context, if any, becomes
// visible again at that point.
func RunWith(ctx context.Context, partial Partial, fn func(ctx context.Context) error) error {
	rc := &requestContext{
		requestID:     partial.RequestID,
		correlationID: partial.CorrelationID,
		startTime:     partial.StartTime,
		metadata:      maps.Clone(partial.Metadata),
	}
	if rc.requestID == "" {
		rc.requestID = NewRequestID()
	}
	if rc.startTime.IsZero() {
		rc.startTime = time.Now()
	}
	if rc.metadata == nil {
		rc.metadata = make(map[string]any)
	}
	return fn(context.WithValue(ctx, keyRequestContext, rc))
}

func fromContext(ctx context.Context) (*requestContext, bool) {
	rc, ok := ctx.Value(keyRequestContext).(*requestContext)
	return rc, ok && rc != nil
}

// HasContext reports whether a request context is active.
func HasContext(ctx context.Context) bool {
	_, ok := fromContext(ctx)
	return ok
}

// FromContext returns a snapshot of the ambient request context.
// Returns a zero Snapshot and false when none is active.
func FromContext(ctx context.Context) (Snapshot, bool) {
	rc, ok := fromContext(ctx)
	if !ok {
		return Snapshot{}, false
	}
	rc.mu.Lock()
	md := maps.Clone(rc.metadata)
	rc.mu.Unlock()
	return Snapshot{
		RequestID:     rc.requestID,
		CorrelationID: rc.correlationID,
		StartTime:     rc.startTime,
		Metadata:      md,
	}, true
}

// RequestIDFromContext returns the ambient request id, or "" if none.
func RequestIDFromContext(ctx context.Context) string {
	rc, ok := fromContext(ctx)
	if !ok {
		return ""
	}
	return rc.requestID
}

// CorrelationIDFromContext returns the propagated correlation id, or ""
// when none was supplied upstream.
func CorrelationIDFromContext(ctx context.Context) string {
	rc, ok := fromContext(ctx)
	if !ok {
		return ""
	}
	return rc.correlationID
}

// DurationFromContext returns time elapsed since the request started,
// or 0 when no context is active.
func DurationFromContext(ctx context.Context) time.Duration {
	rc, ok := fromContext(ctx)
	if !ok {
		return 0
	}
	return time.Since(rc.startTime)
}

// UpdateMetadata merges patch into the ambient context's metadata: new
// keys are added, existing keys overwritten, all others preserved.
// A no-op when no context is active.
func UpdateMetadata(ctx context.Context, patch map[string]any) {
	rc, ok := fromContext(ctx)
	if !ok || len(patch) == 0 {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for k, v := range patch {
		rc.metadata[k] = v
	}
}

// StatsFromContext reports summary information about the ambient context.
func StatsFromContext(ctx context.Context) Stats {
	rc, ok := fromContext(ctx)
	if !ok {
		return Stats{}
	}
	rc.mu.Lock()
	keys := len(rc.metadata)
	rc.mu.Unlock()
	return Stats{
		Active:           true,
		RequestID:        rc.requestID,
		HasCorrelationID: rc.correlationID != "",
		Elapsed:          time.Since(rc.startTime),
		MetadataKeys:     keys,
	}
}
