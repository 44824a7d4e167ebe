// Package locks provides redis-backed advisory locks over board objects,
// so concurrent agents editing the same task or sprint can coordinate.
// Lock transitions are published on the notification bus.
package locks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/tasklane/tasklane_server/config"
	"github.com/tasklane/tasklane_server/pkg/events"
)

var ErrNotHeld = errors.New("locks: lock not held by this agent")

// releaseScript deletes the key only if the holder token still matches,
// so an expired-and-reacquired lock is never released by the old holder.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// store abstracts the redis commands the manager needs; tests supply a
// fake, production wraps *redis.Client.
type store interface {
	acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	release(ctx context.Context, key, token string) (bool, error)
	exists(ctx context.Context, key string) (bool, error)
}

type redisStore struct {
	rdb *goredis.Client
}

func (s *redisStore) acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, token, ttl).Result()
}

func (s *redisStore) release(ctx context.Context, key, token string) (bool, error) {
	n, err := s.rdb.Eval(ctx, releaseScript, []string{key}, token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *redisStore) exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type heldLock struct {
	objectType string
	objectID   string
	agent      string
	token      string
	expiresAt  time.Time
}

// Manager acquires and releases advisory locks and watches held locks
// for TTL expiry.
type Manager struct {
	store store
	bus   *events.Bus
	log   *slog.Logger
	ttl   time.Duration
	sweep time.Duration

	mu   sync.Mutex
	held map[string]heldLock

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewManager creates a lock manager over rdb publishing transitions to bus.
func NewManager(rdb *goredis.Client, bus *events.Bus, log *slog.Logger, cfg config.LocksConfig) *Manager {
	return newManager(&redisStore{rdb: rdb}, bus, log, cfg)
}

func newManager(s store, bus *events.Bus, log *slog.Logger, cfg config.LocksConfig) *Manager {
	return &Manager{
		store: s,
		bus:   bus,
		log:   log,
		ttl:   cfg.TTL,
		sweep: cfg.SweepInterval,
		held:  make(map[string]heldLock),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func lockKey(objectType, objectID string) string {
	return fmt.Sprintf("tasklane:lock:%s:%s", objectType, objectID)
}

// Acquire attempts to take the lock for agent. Returns false when the
// lock is currently held by someone else; that is contention, not an
// error. On success a lock:acquired event is published.
func (m *Manager) Acquire(ctx context.Context, objectType, objectID, agent string) (bool, error) {
	key := lockKey(objectType, objectID)
	token := uuid.NewString()

	ok, err := m.store.acquire(ctx, key, token, m.ttl)
	if err != nil {
		return false, fmt.Errorf("acquiring lock %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	m.mu.Lock()
	m.held[key] = heldLock{
		objectType: objectType,
		objectID:   objectID,
		agent:      agent,
		token:      token,
		expiresAt:  time.Now().Add(m.ttl),
	}
	m.mu.Unlock()

	m.bus.Emit(ctx, events.LockAcquired{ObjectType: objectType, ObjectID: objectID, Agent: agent})
	return true, nil
}

// Release gives a held lock back. Returns ErrNotHeld when this agent does
// not hold the lock. On success a lock:released event is published.
func (m *Manager) Release(ctx context.Context, objectType, objectID, agent string) error {
	key := lockKey(objectType, objectID)

	m.mu.Lock()
	h, ok := m.held[key]
	if !ok || h.agent != agent {
		m.mu.Unlock()
		return ErrNotHeld
	}
	delete(m.held, key)
	m.mu.Unlock()

	released, err := m.store.release(ctx, key, h.token)
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", key, err)
	}
	if !released {
		// The TTL lapsed before the release; the sweep may already have
		// reported this, otherwise report it now.
		m.bus.Emit(ctx, events.LockExpired{ObjectType: objectType, ObjectID: objectID, Agent: agent})
		return nil
	}

	m.bus.Emit(ctx, events.LockReleased{ObjectType: objectType, ObjectID: objectID, Agent: agent})
	return nil
}

// Start launches the expiry sweep. Call Close to stop it.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.sweepExpired(context.Background())
			}
		}
	}()
}

// sweepExpired drops tracking for locks whose redis key is gone without a
// release and publishes lock:expired for each.
func (m *Manager) sweepExpired(ctx context.Context) {
	m.mu.Lock()
	candidates := make(map[string]heldLock)
	now := time.Now()
	for key, h := range m.held {
		if now.After(h.expiresAt) {
			candidates[key] = h
		}
	}
	m.mu.Unlock()

	for key, h := range candidates {
		alive, err := m.store.exists(ctx, key)
		if err != nil {
			m.log.Warn("lock expiry check failed", "key", key, "error", err)
			continue
		}
		if alive {
			continue
		}
		m.mu.Lock()
		// Re-check under the lock: a release may have raced the sweep.
		if cur, ok := m.held[key]; !ok || cur.token != h.token {
			m.mu.Unlock()
			continue
		}
		delete(m.held, key)
		m.mu.Unlock()

		m.bus.Emit(ctx, events.LockExpired{ObjectType: h.objectType, ObjectID: h.objectID, Agent: h.agent})
	}
}

// Held reports whether agent currently holds the lock, per local tracking.
func (m *Manager) Held(objectType, objectID, agent string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.held[lockKey(objectType, objectID)]
	return ok && h.agent == agent
}

// Close stops the expiry sweep. Safe to call more than once.
func (m *Manager) Close(ctx context.Context) error {
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
