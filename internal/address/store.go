package address

import (
	"context"

	id "habitat/pkg/domain"
)

// Store persists addresses. Implementations return sentinel.ErrNotFound for
// missing rows and sentinel.ErrInvalidState when UpdateDecision races a
// concurrent decision.
type Store interface {
	Create(ctx context.Context, a *Address) error
	FindByID(ctx context.Context, addressID id.AddressID) (*Address, error)
	// ListPending returns undecided addresses, newest first.
	ListPending(ctx context.Context) ([]*Address, error)
	ListByCreator(ctx context.Context, creator id.UserID) ([]*Address, error)
	// ListApproved feeds the reconciliation pass.
	ListApproved(ctx context.Context) ([]*Address, error)
	// UpdateDecision persists a terminal transition. The write is conditional
	// on the stored row still being pending.
	UpdateDecision(ctx context.Context, a *Address) error
}
