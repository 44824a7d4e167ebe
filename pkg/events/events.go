// Package events is the in-process notification bus for domain events.
//
// Events form a closed union: every variant is a concrete struct carrying
// only the fields its kind needs. New kinds are added by adding a variant,
// never by widening an existing one. The bus is ephemeral: nothing is
// persisted, and subscribers that need durability must bridge events out
// themselves (see internal/relay).
package events

// Kind discriminates event variants.
type Kind string

const (
	KindEntityCreated Kind = "entity:created"
	KindEntityUpdated Kind = "entity:updated"
	KindEntityDeleted Kind = "entity:deleted"

	KindLockAcquired Kind = "lock:acquired"
	KindLockReleased Kind = "lock:released"
	KindLockExpired  Kind = "lock:expired"

	KindHealthDegraded  Kind = "health:degraded"
	KindHealthRecovered Kind = "health:recovered"
)

// Event is implemented by every variant in the union.
type Event interface {
	Kind() Kind
}

// EntityCreated fires after a task, project, or sprint becomes visible.
type EntityCreated struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

func (EntityCreated) Kind() Kind { return KindEntityCreated }

// EntityUpdated fires after a mutation, naming the fields that changed.
type EntityUpdated struct {
	EntityType    string   `json:"entity_type"`
	EntityID      string   `json:"entity_id"`
	ChangedFields []string `json:"changed_fields"`
}

func (EntityUpdated) Kind() Kind { return KindEntityUpdated }

// EntityDeleted fires after an entity is removed.
type EntityDeleted struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

func (EntityDeleted) Kind() Kind { return KindEntityDeleted }

// LockAcquired fires when an agent takes an advisory lock.
type LockAcquired struct {
	ObjectType string `json:"object_type"`
	ObjectID   string `json:"object_id"`
	Agent      string `json:"agent"`
}

func (LockAcquired) Kind() Kind { return KindLockAcquired }

// LockReleased fires when the holding agent gives a lock back.
type LockReleased struct {
	ObjectType string `json:"object_type"`
	ObjectID   string `json:"object_id"`
	Agent      string `json:"agent"`
}

func (LockReleased) Kind() Kind { return KindLockReleased }

// LockExpired fires when a lock's TTL lapses without a release.
type LockExpired struct {
	ObjectType string `json:"object_type"`
	ObjectID   string `json:"object_id"`
	Agent      string `json:"agent"`
}

func (LockExpired) Kind() Kind { return KindLockExpired }

// HealthDegraded fires on a healthy-to-degraded transition of a service.
type HealthDegraded struct {
	Service string `json:"service"`
	Reason  string `json:"reason"`
}

func (HealthDegraded) Kind() Kind { return KindHealthDegraded }

// HealthRecovered fires on a degraded-to-healthy transition.
type HealthRecovered struct {
	Service string `json:"service"`
}

func (HealthRecovered) Kind() Kind { return KindHealthRecovered }
