package registration

import (
	"context"

	id "habitat/pkg/domain"
)

// Store persists registration requests. Create returns sentinel.ErrConflict
// when a pending request for the same (flat, user) pair already exists;
// UpdateDecision returns sentinel.ErrInvalidState when the request is no
// longer pending.
type Store interface {
	Create(ctx context.Context, r *Request) error
	FindByID(ctx context.Context, requestID id.RegistrationID) (*Request, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*Request, error)
	// ListByFlats returns requests targeting any of the given flats, newest
	// first. Feeds the manager-scoped listing.
	ListByFlats(ctx context.Context, flatIDs []id.FlatID) ([]*Request, error)
	// ListPending feeds the stuck-approval reconciliation pass.
	ListPending(ctx context.Context) ([]*Request, error)
	UpdateDecision(ctx context.Context, r *Request) error
}
