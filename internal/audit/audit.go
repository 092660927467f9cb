// Package audit captures structured audit events for every workflow decision.
// Append-only; the storage layer is swappable so tests can use the memory
// sink.
package audit

import (
	"context"
	"time"

	id "habitat/pkg/domain"
)

type Action string

const (
	ActionAddressDecided      Action = "address.decided"
	ActionBuildingProvisioned Action = "building.provisioned"
	ActionRegistrationDecided Action = "registration.decided"
	ActionTenantCleared       Action = "tenant.cleared"
)

// Event is one audit record. Subject identifies the affected entity; Actor is
// the caller who triggered the change.
type Event struct {
	Action    Action
	Actor     id.UserID
	Subject   string
	Detail    string
	Timestamp time.Time
}

type Store interface {
	Append(ctx context.Context, event Event) error
	ListByActor(ctx context.Context, actor id.UserID) ([]Event, error)
}

// Publisher is the single write path for audit events. Audit failures are
// reported to the caller but services treat them as non-fatal.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}
