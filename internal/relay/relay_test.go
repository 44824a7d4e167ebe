package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/tasklane/tasklane_server/pkg/events"
)

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	failWith error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *fakePublisher) published() ([]string, [][]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	subjects := make([]string, len(p.subjects))
	copy(subjects, p.subjects)
	payloads := make([][]byte, len(p.payloads))
	copy(payloads, p.payloads)
	return subjects, payloads
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestForwardsEntityEvents(t *testing.T) {
	pub := &fakePublisher{}
	bus := events.NewBus(discardLogger())
	New(pub, discardLogger()).Attach(bus)

	bus.Emit(context.Background(), events.EntityUpdated{
		EntityType:    "task",
		EntityID:      "t-42",
		ChangedFields: []string{"status"},
	})

	subjects, payloads := pub.published()
	if len(subjects) != 1 {
		t.Fatalf("expected one publish, got %d", len(subjects))
	}
	if subjects[0] != "tasklane.events.entity.updated" {
		t.Fatalf("unexpected subject %q", subjects[0])
	}

	var env struct {
		Kind    events.Kind `json:"kind"`
		Payload struct {
			EntityType    string   `json:"entity_type"`
			EntityID      string   `json:"entity_id"`
			ChangedFields []string `json:"changed_fields"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(payloads[0], &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Kind != events.KindEntityUpdated {
		t.Fatalf("unexpected kind %q", env.Kind)
	}
	if env.Payload.EntityID != "t-42" || len(env.Payload.ChangedFields) != 1 {
		t.Fatalf("unexpected payload: %+v", env.Payload)
	}
}

func TestForwardsLockEvents(t *testing.T) {
	pub := &fakePublisher{}
	bus := events.NewBus(discardLogger())
	New(pub, discardLogger()).Attach(bus)

	bus.Emit(context.Background(), events.LockExpired{ObjectType: "task", ObjectID: "t-1", Agent: "agent-a"})

	subjects, _ := pub.published()
	if len(subjects) != 1 || subjects[0] != "tasklane.events.lock.expired" {
		t.Fatalf("unexpected subjects %v", subjects)
	}
}

func TestHealthEventsAreNotForwarded(t *testing.T) {
	pub := &fakePublisher{}
	bus := events.NewBus(discardLogger())
	New(pub, discardLogger()).Attach(bus)

	bus.Emit(context.Background(), events.HealthDegraded{Service: "redis", Reason: "down"})

	if subjects, _ := pub.published(); len(subjects) != 0 {
		t.Fatalf("health events should stay in process, got %v", subjects)
	}
}

func TestPublishFailureIsContained(t *testing.T) {
	pub := &fakePublisher{failWith: errors.New("broker gone")}
	bus := events.NewBus(discardLogger())
	New(pub, discardLogger()).Attach(bus)

	// Emit must not panic or block when the broker is unreachable.
	bus.Emit(context.Background(), events.EntityCreated{EntityType: "task", EntityID: "t-9"})
}

func TestSubject(t *testing.T) {
	if got := Subject(events.KindEntityCreated); got != "tasklane.events.entity.created" {
		t.Fatalf("unexpected subject %q", got)
	}
}
