// Package shutdown tears down the server's live resources deterministically.
//
// Resources register a named cleanup while the process runs. On
// termination the orchestrator runs every cleanup exactly once, in reverse
// registration order (later-registered resources usually depend on earlier
// ones), containing failures so one bad resource never blocks the rest,
// and racing the whole sequence against a global deadline.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout is the global budget for the entire cleanup sequence.
const DefaultTimeout = 30 * time.Second

var (
	ErrShutdownStarted = errors.New("shutdown already started")
	ErrDuplicateName   = errors.New("resource name already registered")
	ErrUnknownResource = errors.New("resource not registered")
	ErrResetInProgress = errors.New("cannot reset while shutdown is in progress")
)

// CleanupFunc releases one resource. It may block; the orchestrator's
// global deadline bounds the whole sequence, not each call.
type CleanupFunc func(ctx context.Context) error

type resource struct {
	name    string
	cleanup CleanupFunc
}

// ResourceError records one cleanup failure. Non-fatal: it is aggregated
// into the stats and never stops the remaining cleanups.
type ResourceError struct {
	Resource string
	Err      error
}

func (e ResourceError) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Resource, e.Err)
}

func (e ResourceError) Unwrap() error { return e.Err }

// ResourceTiming records how long one cleanup took.
type ResourceTiming struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Stats is the read-only snapshot produced by one shutdown run.
type Stats struct {
	ResourceCount int
	// Resources lists names in registration order; cleanup ran in reverse.
	Resources  []string
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	// TimedOut reports that the global deadline elapsed before every
	// cleanup finished.
	TimedOut bool
	Timings  []ResourceTiming
	Errors   []ResourceError
}

// Orchestrator is a registry of named cleanups with an idempotent,
// deadline-bounded Shutdown.
type Orchestrator struct {
	log     *slog.Logger
	timeout time.Duration

	mu        sync.Mutex
	resources []resource
	begun     bool
	running   bool
	once      *sync.Once
	stats     *Stats
}

// New creates an orchestrator with the given global cleanup budget.
// timeout <= 0 means DefaultTimeout.
func New(log *slog.Logger, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{
		log:     log,
		timeout: timeout,
		once:    new(sync.Once),
	}
}

// Register adds a named cleanup. Rejected once shutdown has begun and for
// duplicate names; both are diagnostics the caller may ignore, not fatal
// conditions.
func (o *Orchestrator) Register(name string, cleanup CleanupFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.begun {
		o.log.Warn("resource registration rejected, shutdown already started", "resource", name)
		return ErrShutdownStarted
	}
	for _, r := range o.resources {
		if r.name == name {
			o.log.Warn("resource registration rejected, duplicate name", "resource", name)
			return ErrDuplicateName
		}
	}
	o.resources = append(o.resources, resource{name: name, cleanup: cleanup})
	return nil
}

// Unregister removes one named cleanup. Rejected during shutdown.
func (o *Orchestrator) Unregister(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.begun {
		o.log.Warn("resource unregistration rejected, shutdown already started", "resource", name)
		return ErrShutdownStarted
	}
	for i, r := range o.resources {
		if r.name == name {
			o.resources = append(o.resources[:i], o.resources[i+1:]...)
			return nil
		}
	}
	return ErrUnknownResource
}

// RegisteredResources returns resource names in registration order.
func (o *Orchestrator) RegisteredResources() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	names := make([]string, len(o.resources))
	for i, r := range o.resources {
		names[i] = r.name
	}
	return names
}

// InProgress reports whether a shutdown run is currently executing.
func (o *Orchestrator) InProgress() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Stats returns the snapshot of the completed shutdown run, or nil if
// Shutdown has not finished yet. The snapshot is frozen when the run
// ends; callers get a copy and can hold it indefinitely.
func (o *Orchestrator) Stats() *Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stats == nil {
		return nil
	}
	s := *o.stats
	return &s
}

// Reset clears all state so the orchestrator can be reused. Rejected
// while a shutdown run is executing.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrResetInProgress
	}
	o.resources = nil
	o.begun = false
	o.once = new(sync.Once)
	o.stats = nil
	return nil
}

// Shutdown tears down every registered resource. Idempotent: the first
// call performs the cleanups; every later call returns the first call's
// stats without re-running anything.
func (o *Orchestrator) Shutdown(ctx context.Context) *Stats {
	o.mu.Lock()
	o.begun = true
	once := o.once
	o.mu.Unlock()

	once.Do(func() {
		o.run(ctx)
	})

	return o.Stats()
}

func (o *Orchestrator) run(ctx context.Context) {
	o.mu.Lock()
	o.running = true
	snapshot := make([]resource, len(o.resources))
	copy(snapshot, o.resources)
	o.mu.Unlock()

	stats := &Stats{
		ResourceCount: len(snapshot),
		Resources:     make([]string, len(snapshot)),
		StartedAt:     time.Now(),
	}
	for i, r := range snapshot {
		stats.Resources[i] = r.name
	}

	o.log.Info("shutdown started",
		"resources", stats.ResourceCount,
		"timeout", o.timeout,
	)

	deadline, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	// The worker only reports over this channel; stats are merged here so
	// nothing can touch the snapshot once it is published. Buffered to the
	// resource count so a straggling cleanup never blocks on a send after
	// the deadline stops the merge loop.
	results := make(chan ResourceTiming, len(snapshot))

	go func() {
		defer close(results)
		// Reverse registration order: last in, first cleaned up.
		for i := len(snapshot) - 1; i >= 0; i-- {
			if deadline.Err() != nil {
				return
			}
			r := snapshot[i]
			start := time.Now()
			err := runCleanup(deadline, r.cleanup)
			results <- ResourceTiming{Name: r.name, Duration: time.Since(start), Err: err}
		}
	}()

collect:
	for {
		select {
		case timing, ok := <-results:
			if !ok {
				break collect
			}
			o.merge(stats, timing)
		case <-deadline.Done():
			stats.TimedOut = true
			o.log.Warn("shutdown deadline elapsed with cleanups unfinished", "timeout", o.timeout)
			// Keep whatever was already reported; anything the worker
			// finishes after this point is dropped from the snapshot.
		drain:
			for {
				select {
				case timing, ok := <-results:
					if !ok {
						break drain
					}
					o.merge(stats, timing)
				default:
					break drain
				}
			}
			break collect
		}
	}

	stats.FinishedAt = time.Now()
	stats.Duration = stats.FinishedAt.Sub(stats.StartedAt)

	o.mu.Lock()
	o.stats = stats
	o.running = false
	o.mu.Unlock()

	o.log.Info("shutdown complete",
		"duration", stats.Duration,
		"errors", len(stats.Errors),
		"timed_out", stats.TimedOut,
	)
}

func (o *Orchestrator) merge(stats *Stats, timing ResourceTiming) {
	stats.Timings = append(stats.Timings, timing)
	if timing.Err != nil {
		stats.Errors = append(stats.Errors, ResourceError{Resource: timing.Name, Err: timing.Err})
		o.log.Error("resource cleanup failed", "resource", timing.Name, "error", timing.Err)
		return
	}
	o.log.Debug("resource cleaned up", "resource", timing.Name, "duration", timing.Duration)
}

// runCleanup executes one cleanup, converting a panic into an error so a
// single bad resource cannot abort the rest of the sequence.
func runCleanup(ctx context.Context, fn CleanupFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup panic: %v", r)
		}
	}()
	return fn(ctx)
}
