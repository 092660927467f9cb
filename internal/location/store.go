package location

import (
	"context"

	id "habitat/pkg/domain"
)

// Store resolves settlement hierarchies. Implementations return
// sentinel.ErrNotFound when the settlement does not exist.
type Store interface {
	FindHierarchy(ctx context.Context, settlementID id.SettlementID) (Hierarchy, error)
}
