package building

import (
	"context"

	id "habitat/pkg/domain"
)

// Store persists buildings and flats. Implementations return
// sentinel.ErrConflict for uniqueness violations (one building per address,
// one unit number per building), sentinel.ErrNotFound for missing rows, and
// sentinel.ErrInvalidState for conditional writes that lose their guard.
type Store interface {
	CreateBuilding(ctx context.Context, b *Building) error
	FindBuildingByID(ctx context.Context, buildingID id.BuildingID) (*Building, error)
	FindBuildingByAddress(ctx context.Context, addressID id.AddressID) (*Building, error)
	ListBuildings(ctx context.Context) ([]*Building, error)
	ListBuildingsByManager(ctx context.Context, managerID id.UserID) ([]*Building, error)
	// UpdateBuilding persists name/manager corrections only.
	UpdateBuilding(ctx context.Context, b *Building) error

	CreateFlat(ctx context.Context, f *Flat) error
	// CreateFlats inserts the batch atomically: either every flat lands or
	// none do.
	CreateFlats(ctx context.Context, flats []*Flat) error
	FindFlatByID(ctx context.Context, flatID id.FlatID) (*Flat, error)
	ListFlatsByBuilding(ctx context.Context, buildingID id.BuildingID) ([]*Flat, error)
	// DeleteFlat removes an unoccupied flat. Occupied flats return
	// sentinel.ErrInvalidState.
	DeleteFlat(ctx context.Context, flatID id.FlatID) error
	// AssignTenant sets the tenant slot conditionally: the write succeeds only
	// when the flat is vacant or already held by the same tenant. A flat held
	// by a different tenant returns sentinel.ErrConflict.
	AssignTenant(ctx context.Context, flatID id.FlatID, tenantID id.UserID) error
	// ClearTenant vacates the flat unconditionally.
	ClearTenant(ctx context.Context, flatID id.FlatID) error
}
