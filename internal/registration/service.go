package registration

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"habitat/internal/address"
	"habitat/internal/audit"
	"habitat/internal/building"
	"habitat/internal/identity"
	"habitat/internal/location"
	"habitat/internal/platform/metrics"
	"habitat/internal/profile"
	regcache "habitat/internal/registration/cache"
	id "habitat/pkg/domain"
	dErrors "habitat/pkg/domain-errors"
	"habitat/pkg/platform/sentinel"
	"habitat/pkg/requestcontext"
)

// Inventory is the slice of the building store this workflow needs: flat and
// building lookups for scoping and enrichment, and the conditional tenant
// assignment that makes approval safe under races.
type Inventory interface {
	FindFlatByID(ctx context.Context, flatID id.FlatID) (*building.Flat, error)
	FindBuildingByID(ctx context.Context, buildingID id.BuildingID) (*building.Building, error)
	ListBuildingsByManager(ctx context.Context, managerID id.UserID) ([]*building.Building, error)
	ListFlatsByBuilding(ctx context.Context, buildingID id.BuildingID) ([]*building.Flat, error)
	AssignTenant(ctx context.Context, flatID id.FlatID, tenantID id.UserID) error
}

// AddressDirectory resolves an address row for enrichment.
type AddressDirectory interface {
	FindByID(ctx context.Context, addressID id.AddressID) (*address.Address, error)
}

// ListingCache is the seam in front of the redis-backed listing cache.
// regcache.Cache implements it and is nil-receiver safe, so the zero value of
// the seam is a pass-through.
type ListingCache interface {
	Get(ctx context.Context, scopeKey string) ([]byte, bool)
	Set(ctx context.Context, scopeKey string, payload []byte)
	Invalidate(ctx context.Context, scopeKeys ...string)
}

// Service owns the registration workflow: request, list, approve, reject.
type Service struct {
	store     Store
	inventory Inventory
	addresses AddressDirectory
	locations location.Store
	profiles  profile.Store
	cache     ListingCache
	group     singleflight.Group
	logger    *slog.Logger
	auditor   *audit.Publisher
	metrics   *metrics.Metrics
}

type Option func(s *Service)

func WithCache(c ListingCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithAudit(publisher *audit.Publisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, inventory Inventory, addresses AddressDirectory, locations location.Store, profiles profile.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		inventory: inventory,
		addresses: addresses,
		locations: locations,
		profiles:  profiles,
		cache:     (*regcache.Cache)(nil),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request opens a registration for a flat. Occupancy is deliberately not
// checked here: an occupied flat may free up before the manager reviews, so
// the only gate at request time is flat existence and the one-pending-per-
// (flat, user) uniqueness rule.
func (s *Service) Request(ctx context.Context, flatID id.FlatID) (*Request, error) {
	callerID := requestcontext.UserID(ctx)
	role := identity.Role(requestcontext.Role(ctx))
	if !identity.CanPerform(identity.ActionRequestRegistration, role) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role cannot request registrations")
	}

	f, err := s.inventory.FindFlatByID(ctx, flatID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "flat not found")
		}
		return nil, dErrors.FromStore(err, "failed to load flat")
	}

	r := NewRequest(id.RegistrationID(uuid.New()), flatID, callerID, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a pending request for this flat already exists")
		}
		return nil, dErrors.FromStore(err, "failed to create registration request")
	}

	s.metrics.IncRegistrationCreated()
	// The new request appears in the reviewing manager's listing too, so that
	// scope goes stale along with the applicant's.
	affected := []id.UserID{callerID}
	if b, err := s.inventory.FindBuildingByID(ctx, f.BuildingID); err == nil {
		affected = append(affected, b.ManagerID)
	}
	s.invalidateScopes(ctx, affected...)
	return r, nil
}

// ListForCaller returns the caller's view of the workflow: their own requests
// for tenants, or every request targeting flats in their buildings for
// managers. The listing is served from the cache when fresh; concurrent
// misses for the same scope collapse into one store read.
func (s *Service) ListForCaller(ctx context.Context) ([]*Enriched, error) {
	callerID := requestcontext.UserID(ctx)
	role := identity.Role(requestcontext.Role(ctx))
	if !identity.CanPerform(identity.ActionListRegistrations, role) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role cannot list registrations")
	}

	scopeKey := regcache.ScopeKey(string(role), callerID)
	if payload, ok := s.cache.Get(ctx, scopeKey); ok {
		var cached []*Enriched
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
		// A corrupt entry falls through to the store and gets overwritten.
	}

	result, err, _ := s.group.Do(scopeKey, func() (any, error) {
		listing, err := s.loadListing(ctx, callerID, role)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(listing); err == nil {
			s.cache.Set(ctx, scopeKey, payload)
		}
		return listing, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]*Enriched), nil
}

// Approve grants a pending request and binds the tenant to the flat. The flat
// assignment lands first so a crash between the two writes leaves a closable
// request, never a granted request with no occupancy.
func (s *Service) Approve(ctx context.Context, requestID id.RegistrationID, notes string) (*Request, error) {
	started := time.Now()
	r, managerID, err := s.loadForDecision(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := s.inventory.AssignTenant(ctx, r.FlatID, r.UserID); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "flat is occupied")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeConflict, "flat no longer exists")
		}
		return nil, dErrors.FromStore(err, "failed to assign tenant")
	}

	callerID := requestcontext.UserID(ctx)
	r.ApplyDecision(StatusApproved, callerID, notes, requestcontext.Now(ctx))
	if err := s.closeRequest(ctx, r); err != nil {
		return nil, err
	}

	s.metrics.IncRegistrationDecided(string(StatusApproved))
	s.metrics.ObserveApproveDuration(time.Since(started))
	s.logAudit(ctx, callerID, r, "approved")
	s.invalidateScopes(ctx, callerID, r.UserID, managerID)
	return r, nil
}

// Reject closes a pending request without touching the flat. Notes are
// mandatory: a rejection the applicant cannot understand is not a decision.
func (s *Service) Reject(ctx context.Context, requestID id.RegistrationID, notes string) (*Request, error) {
	if notes == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rejection notes are required")
	}

	r, managerID, err := s.loadForDecision(ctx, requestID)
	if err != nil {
		return nil, err
	}

	callerID := requestcontext.UserID(ctx)
	r.ApplyDecision(StatusRejected, callerID, notes, requestcontext.Now(ctx))
	if err := s.closeRequest(ctx, r); err != nil {
		return nil, err
	}

	s.metrics.IncRegistrationDecided(string(StatusRejected))
	s.logAudit(ctx, callerID, r, "rejected")
	s.invalidateScopes(ctx, callerID, r.UserID, managerID)
	return r, nil
}

// loadForDecision fetches a pending request and verifies the caller manages
// the flat's building. The building's manager is returned so decisions made
// by an admin still invalidate the manager's cached listing.
func (s *Service) loadForDecision(ctx context.Context, requestID id.RegistrationID) (*Request, id.UserID, error) {
	callerID := requestcontext.UserID(ctx)
	role := identity.Role(requestcontext.Role(ctx))
	if !identity.CanPerform(identity.ActionReviewRegistrations, role) {
		return nil, id.UserID{}, dErrors.New(dErrors.CodeForbidden, "role cannot review registrations")
	}

	r, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, id.UserID{}, dErrors.New(dErrors.CodeNotFound, "registration request not found")
		}
		return nil, id.UserID{}, dErrors.FromStore(err, "failed to load registration request")
	}
	if err := r.CanDecide(); err != nil {
		return nil, id.UserID{}, dErrors.New(dErrors.CodeConflict, dErrors.MessageFor(err))
	}

	f, err := s.inventory.FindFlatByID(ctx, r.FlatID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, id.UserID{}, dErrors.New(dErrors.CodeConflict, "flat no longer exists")
		}
		return nil, id.UserID{}, dErrors.FromStore(err, "failed to load flat")
	}
	b, err := s.inventory.FindBuildingByID(ctx, f.BuildingID)
	if err != nil {
		return nil, id.UserID{}, dErrors.FromStore(err, "failed to load building")
	}
	if role != identity.RoleAdmin && b.ManagerID != callerID {
		return nil, id.UserID{}, dErrors.New(dErrors.CodeForbidden, "caller does not manage this building")
	}
	return r, b.ManagerID, nil
}

func (s *Service) closeRequest(ctx context.Context, r *Request) error {
	if err := s.store.UpdateDecision(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodeConflict, "request was decided concurrently")
		}
		return dErrors.FromStore(err, "failed to persist decision")
	}
	return nil
}

func (s *Service) loadListing(ctx context.Context, callerID id.UserID, role identity.Role) ([]*Enriched, error) {
	var (
		requests []*Request
		err      error
	)
	if identity.CanPerform(identity.ActionReviewRegistrations, role) {
		requests, err = s.listManaged(ctx, callerID)
	} else {
		requests, err = s.store.ListByUser(ctx, callerID)
	}
	if err != nil {
		return nil, dErrors.FromStore(err, "failed to list registrations")
	}
	return s.enrich(ctx, requests), nil
}

func (s *Service) listManaged(ctx context.Context, managerID id.UserID) ([]*Request, error) {
	buildings, err := s.inventory.ListBuildingsByManager(ctx, managerID)
	if err != nil {
		return nil, err
	}
	var flatIDs []id.FlatID
	for _, b := range buildings {
		flats, err := s.inventory.ListFlatsByBuilding(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range flats {
			flatIDs = append(flatIDs, f.ID)
		}
	}
	if len(flatIDs) == 0 {
		return nil, nil
	}
	return s.store.ListByFlats(ctx, flatIDs)
}

// enrich joins each request with its flat, building, address, and applicant.
// A failed join degrades that field to the placeholder; the request row is
// always returned.
func (s *Service) enrich(ctx context.Context, requests []*Request) []*Enriched {
	out := make([]*Enriched, 0, len(requests))
	flats := make(map[id.FlatID]*building.Flat)
	buildings := make(map[id.BuildingID]*building.Building)
	labels := make(map[id.AddressID]string)
	applicants := make(map[id.UserID]profile.Profile)

	for _, r := range requests {
		e := &Enriched{
			Request:        *r,
			UnitNumber:     PlaceholderField,
			BuildingName:   PlaceholderField,
			FullAddress:    PlaceholderField,
			ApplicantName:  PlaceholderField,
			ApplicantEmail: PlaceholderField,
		}

		f, ok := flats[r.FlatID]
		if !ok {
			if loaded, err := s.inventory.FindFlatByID(ctx, r.FlatID); err == nil {
				f = loaded
				flats[r.FlatID] = f
			}
		}
		if f != nil {
			e.UnitNumber = f.UnitNumber
			b, ok := buildings[f.BuildingID]
			if !ok {
				if loaded, err := s.inventory.FindBuildingByID(ctx, f.BuildingID); err == nil {
					b = loaded
					buildings[f.BuildingID] = b
				}
			}
			if b != nil {
				e.BuildingName = b.Name
				if label := s.addressLabel(ctx, labels, b.AddressID); label != "" {
					e.FullAddress = label
				}
			}
		}

		p, ok := applicants[r.UserID]
		if !ok {
			if loaded, err := s.profiles.FindByUser(ctx, r.UserID); err == nil {
				p = loaded
				applicants[r.UserID] = p
			}
		}
		if p.Name != "" {
			e.ApplicantName = p.Name
		}
		if p.Email != "" {
			e.ApplicantEmail = p.Email
		}

		out = append(out, e)
	}
	return out
}

func (s *Service) addressLabel(ctx context.Context, cache map[id.AddressID]string, addressID id.AddressID) string {
	if label, ok := cache[addressID]; ok {
		return label
	}
	label := ""
	if a, err := s.addresses.FindByID(ctx, addressID); err == nil {
		if h, err := s.locations.FindHierarchy(ctx, a.SettlementID); err == nil {
			label = location.ComposeFromHierarchy(a.StreetAndNumber, h)
		} else {
			label = a.StreetAndNumber
		}
	}
	cache[addressID] = label
	return label
}

// invalidateScopes drops cached listings for every role the given users could
// hold. The applicant's role is not recorded on the request, so all role
// variants of their key are cleared.
func (s *Service) invalidateScopes(ctx context.Context, userIDs ...id.UserID) {
	var keys []string
	for _, userID := range userIDs {
		for _, role := range identity.Roles {
			keys = append(keys, regcache.ScopeKey(string(role), userID))
		}
	}
	s.cache.Invalidate(ctx, keys...)
}

func (s *Service) logAudit(ctx context.Context, actor id.UserID, r *Request, outcome string) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Action:  audit.ActionRegistrationDecided,
		Actor:   actor,
		Subject: r.ID.String(),
		Detail:  outcome + " for flat " + r.FlatID.String(),
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", string(event.Action), "error", err.Error())
	}
}
