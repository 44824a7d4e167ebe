// Package relay bridges the in-process notification bus onto NATS so
// off-process consumers (dashboards, audit sinks) can observe what the
// server did. The bus stays the source of truth; the relay is just one
// more subscriber and its failures never affect the request path.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/tasklane/tasklane_server/pkg/events"
)

// SubjectPrefix is prepended to every published subject.
const SubjectPrefix = "tasklane.events"

// publisher is the slice of *nats.Conn the relay needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// envelope is the wire shape published to NATS.
type envelope struct {
	Kind      events.Kind `json:"kind"`
	EmittedAt time.Time   `json:"emitted_at"`
	Payload   any         `json:"payload"`
}

// Relay forwards bus events to NATS.
type Relay struct {
	pub publisher
	log *slog.Logger
}

// New creates a relay over the given NATS connection.
func New(pub publisher, log *slog.Logger) *Relay {
	return &Relay{pub: pub, log: log}
}

// Attach subscribes the relay to every forwarded kind on the bus.
func (r *Relay) Attach(bus *events.Bus) {
	for _, kind := range []events.Kind{
		events.KindEntityCreated,
		events.KindEntityUpdated,
		events.KindEntityDeleted,
		events.KindLockAcquired,
		events.KindLockReleased,
		events.KindLockExpired,
	} {
		bus.On(kind, r.forward)
	}
}

// Subject maps an event kind to its NATS subject, e.g.
// entity:created becomes tasklane.events.entity.created.
func Subject(kind events.Kind) string {
	return SubjectPrefix + "." + strings.ReplaceAll(string(kind), ":", ".")
}

func (r *Relay) forward(_ context.Context, ev events.Event) error {
	data, err := json.Marshal(envelope{
		Kind:      ev.Kind(),
		EmittedAt: time.Now().UTC(),
		Payload:   ev,
	})
	if err != nil {
		return err
	}
	if err := r.pub.Publish(Subject(ev.Kind()), data); err != nil {
		r.log.Warn("relay publish failed", "kind", ev.Kind(), "error", err)
		return err
	}
	return nil
}
