package building

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"habitat/internal/address"
	"habitat/internal/audit"
	"habitat/internal/identity"
	"habitat/internal/platform/metrics"
	id "habitat/pkg/domain"
	dErrors "habitat/pkg/domain-errors"
	"habitat/pkg/platform/sentinel"
	"habitat/pkg/requestcontext"
)

// AddressDirectory is the slice of the address store this service needs: the
// lazy building-creation path must verify the address is approved and owned
// by the caller.
type AddressDirectory interface {
	FindByID(ctx context.Context, addressID id.AddressID) (*address.Address, error)
}

// Limits are the configured inventory bounds.
type Limits struct {
	MaxBulkFlats       int
	MaxUnitNumberLen   int
	MaxBuildingNameLen int
}

// BulkResult accounts for every requested unit number: created or reported as
// a duplicate, never silently dropped.
type BulkResult struct {
	Created           []*Flat  `json:"created"`
	SkippedDuplicates []string `json:"skipped_duplicates"`
}

// Service owns building and flat inventory for approved addresses.
type Service struct {
	store     Store
	addresses AddressDirectory
	limits    Limits
	logger    *slog.Logger
	auditor   *audit.Publisher
	metrics   *metrics.Metrics
}

type Option func(s *Service)

func WithAudit(publisher *audit.Publisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, addresses AddressDirectory, limits Limits, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, addresses: addresses, limits: limits, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProvisionForAddress implements the approval engine's Provisioner. It is one
// of the three idempotent creation paths for the one-building-per-address
// invariant: a lost race on the unique constraint is resolved by returning
// the existing building.
func (s *Service) ProvisionForAddress(ctx context.Context, addressID id.AddressID, managerID id.UserID, name string) (bool, error) {
	_, created, err := s.ensureBuilding(ctx, addressID, managerID, name)
	return created, err
}

// EnsureBuilding returns the building for an address, creating it when
// missing. Safe under concurrent callers.
func (s *Service) EnsureBuilding(ctx context.Context, addressID id.AddressID, managerID id.UserID, fullAddressLabel string) (*Building, error) {
	b, _, err := s.ensureBuilding(ctx, addressID, managerID, fullAddressLabel)
	return b, err
}

func (s *Service) ensureBuilding(ctx context.Context, addressID id.AddressID, managerID id.UserID, name string) (*Building, bool, error) {
	existing, err := s.store.FindBuildingByAddress(ctx, addressID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, dErrors.FromStore(err, "failed to look up building")
	}

	b, err := NewBuilding(id.BuildingID(uuid.New()), addressID, name, managerID, s.limits.MaxBuildingNameLen, requestcontext.Now(ctx))
	if err != nil {
		return nil, false, dErrors.New(dErrors.CodeValidation, dErrors.MessageFor(err))
	}
	if err := s.store.CreateBuilding(ctx, b); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the race: someone else created it between our lookup and
			// insert. Fetch and return theirs.
			winner, findErr := s.store.FindBuildingByAddress(ctx, addressID)
			if findErr != nil {
				return nil, false, dErrors.FromStore(findErr, "failed to fetch building after conflict")
			}
			return winner, false, nil
		}
		return nil, false, dErrors.FromStore(err, "failed to create building")
	}
	return b, true, nil
}

// GetBuilding returns a building the caller is allowed to see.
func (s *Service) GetBuilding(ctx context.Context, buildingID id.BuildingID, callerID id.UserID, role identity.Role) (*Building, error) {
	b, err := s.loadBuilding(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManagerScope(b, callerID, role); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBuildings returns the whole inventory. Feeds the reconciliation scan;
// no caller scoping on purpose, the reconcile layer gates access.
func (s *Service) ListBuildings(ctx context.Context) ([]*Building, error) {
	buildings, err := s.store.ListBuildings(ctx)
	if err != nil {
		return nil, dErrors.FromStore(err, "failed to list buildings")
	}
	return buildings, nil
}

// ListForManager returns the caller's buildings.
func (s *Service) ListForManager(ctx context.Context, callerID id.UserID, role identity.Role) ([]*Building, error) {
	if !identity.CanPerform(identity.ActionManageBuildings, role) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role cannot manage buildings")
	}
	buildings, err := s.store.ListBuildingsByManager(ctx, callerID)
	if err != nil {
		return nil, dErrors.FromStore(err, "failed to list buildings")
	}
	return buildings, nil
}

// UpdateBuilding applies name/manager corrections, the only mutations a
// building permits after creation.
func (s *Service) UpdateBuilding(ctx context.Context, buildingID id.BuildingID, name *string, newManagerID *id.UserID, callerID id.UserID, role identity.Role) (*Building, error) {
	b, err := s.loadBuilding(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManagerScope(b, callerID, role); err != nil {
		return nil, err
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "building name cannot be empty")
		}
		if s.limits.MaxBuildingNameLen > 0 && len(trimmed) > s.limits.MaxBuildingNameLen {
			return nil, dErrors.New(dErrors.CodeValidation, "building name exceeds maximum length")
		}
		b.Name = trimmed
	}
	if newManagerID != nil {
		if newManagerID.IsZero() {
			return nil, dErrors.New(dErrors.CodeValidation, "manager id is required")
		}
		b.ManagerID = *newManagerID
	}
	if err := s.store.UpdateBuilding(ctx, b); err != nil {
		return nil, dErrors.FromStore(err, "failed to update building")
	}
	return b, nil
}

// ListFlats returns a building's flats in numeric-then-lexical unit order.
func (s *Service) ListFlats(ctx context.Context, buildingID id.BuildingID, callerID id.UserID, role identity.Role) ([]*Flat, error) {
	b, err := s.loadBuilding(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManagerScope(b, callerID, role); err != nil {
		return nil, err
	}
	flats, err := s.store.ListFlatsByBuilding(ctx, buildingID)
	if err != nil {
		return nil, dErrors.FromStore(err, "failed to list flats")
	}
	SortFlats(flats)
	return flats, nil
}

// CreateFlat adds one flat, resolving (and lazily creating) the building for
// the given approved address.
func (s *Service) CreateFlat(ctx context.Context, addressID id.AddressID, unitNumber string, callerID id.UserID, role identity.Role, fullAddressLabel string) (*Flat, error) {
	if !identity.CanPerform(identity.ActionManageBuildings, role) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role cannot manage flats")
	}
	if err := ValidateUnitNumber(unitNumber, s.limits.MaxUnitNumberLen); err != nil {
		return nil, err
	}

	a, err := s.addresses.FindByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "address not found")
		}
		return nil, dErrors.FromStore(err, "failed to load address")
	}
	if a.Status != address.StatusApproved {
		return nil, dErrors.New(dErrors.CodeConflict, "address is not approved")
	}
	if role != identity.RoleAdmin && a.CreatedBy != callerID {
		return nil, dErrors.New(dErrors.CodeForbidden, "caller does not manage this address")
	}

	label := fullAddressLabel
	if label == "" {
		label = a.StreetAndNumber
	}
	b, created, err := s.ensureBuilding(ctx, addressID, a.CreatedBy, label)
	if err != nil {
		return nil, err
	}
	if created {
		s.metrics.IncBuildingProvisioned("lazy")
	}

	f := &Flat{ID: id.FlatID(uuid.New()), BuildingID: b.ID, UnitNumber: unitNumber}
	if err := s.store.CreateFlat(ctx, f); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "unit number already exists in this building")
		}
		return nil, dErrors.FromStore(err, "failed to create flat")
	}
	return f, nil
}

// BulkCreateFlats is set-based: it computes the difference against existing
// unit numbers and inserts only the new subset in one batch. Duplicates are
// reported back, never silently dropped.
func (s *Service) BulkCreateFlats(ctx context.Context, buildingID id.BuildingID, unitNumbers []string, callerID id.UserID, role identity.Role) (*BulkResult, error) {
	if len(unitNumbers) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "flat numbers must not be empty")
	}
	if s.limits.MaxBulkFlats > 0 && len(unitNumbers) > s.limits.MaxBulkFlats {
		return nil, dErrors.New(dErrors.CodeValidation, "too many flat numbers in one call")
	}
	for _, unit := range unitNumbers {
		if err := ValidateUnitNumber(unit, s.limits.MaxUnitNumberLen); err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "invalid unit number "+strconv.Quote(unit))
		}
	}

	b, err := s.loadBuilding(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManagerScope(b, callerID, role); err != nil {
		return nil, err
	}

	existing, err := s.store.ListFlatsByBuilding(ctx, buildingID)
	if err != nil {
		return nil, dErrors.FromStore(err, "failed to list existing flats")
	}
	taken := make(map[string]bool, len(existing))
	for _, f := range existing {
		taken[f.UnitNumber] = true
	}

	result := &BulkResult{Created: []*Flat{}, SkippedDuplicates: []string{}}
	var batch []*Flat
	for _, unit := range unitNumbers {
		if taken[unit] {
			result.SkippedDuplicates = append(result.SkippedDuplicates, unit)
			continue
		}
		taken[unit] = true // input-internal duplicates count as skipped too
		batch = append(batch, &Flat{ID: id.FlatID(uuid.New()), BuildingID: buildingID, UnitNumber: unit})
	}

	if err := s.store.CreateFlats(ctx, batch); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A concurrent writer landed one of our units between the read and
			// the insert; the whole batch rolled back and the caller retries.
			return nil, dErrors.New(dErrors.CodeConflict, "concurrent flat creation, retry the call")
		}
		return nil, dErrors.FromStore(err, "failed to create flats")
	}
	result.Created = batch
	return result, nil
}

// DeleteFlat removes an unoccupied flat. Deleting an occupied flat is a
// conflict; deletion is retryable after the tenant is cleared.
func (s *Service) DeleteFlat(ctx context.Context, flatID id.FlatID, callerID id.UserID, role identity.Role) error {
	if _, err := s.loadFlatScoped(ctx, flatID, callerID, role); err != nil {
		return err
	}
	if err := s.store.DeleteFlat(ctx, flatID); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeConflict, "flat is occupied")
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "flat not found")
		}
		return dErrors.FromStore(err, "failed to delete flat")
	}
	return nil
}

// ClearTenant vacates a flat outside the registration workflow
// (manager-initiated eviction).
func (s *Service) ClearTenant(ctx context.Context, flatID id.FlatID, callerID id.UserID, role identity.Role) (*Flat, error) {
	f, err := s.loadFlatScoped(ctx, flatID, callerID, role)
	if err != nil {
		return nil, err
	}
	if err := s.store.ClearTenant(ctx, flatID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "flat not found")
		}
		return nil, dErrors.FromStore(err, "failed to clear tenant")
	}
	f.TenantID = nil
	s.logAudit(ctx, audit.ActionTenantCleared, callerID, flatID.String(), f.UnitNumber)
	return f, nil
}

func (s *Service) loadBuilding(ctx context.Context, buildingID id.BuildingID) (*Building, error) {
	b, err := s.store.FindBuildingByID(ctx, buildingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "building not found")
		}
		return nil, dErrors.FromStore(err, "failed to load building")
	}
	return b, nil
}

func (s *Service) loadFlatScoped(ctx context.Context, flatID id.FlatID, callerID id.UserID, role identity.Role) (*Flat, error) {
	f, err := s.store.FindFlatByID(ctx, flatID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "flat not found")
		}
		return nil, dErrors.FromStore(err, "failed to load flat")
	}
	b, err := s.loadBuilding(ctx, f.BuildingID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManagerScope(b, callerID, role); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) requireManagerScope(b *Building, callerID id.UserID, role identity.Role) error {
	if !identity.CanPerform(identity.ActionManageBuildings, role) {
		return dErrors.New(dErrors.CodeForbidden, "role cannot manage buildings")
	}
	if role != identity.RoleAdmin && b.ManagerID != callerID {
		return dErrors.New(dErrors.CodeForbidden, "caller does not manage this building")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, actor id.UserID, subject, detail string) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, audit.Event{Action: action, Actor: actor, Subject: subject, Detail: detail}); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", string(action), "error", err.Error())
	}
}
