package registration

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"habitat/internal/address"
	"habitat/internal/building"
	"habitat/internal/identity"
	"habitat/internal/location"
	"habitat/internal/profile"
	regcache "habitat/internal/registration/cache"
	id "habitat/pkg/domain"
	dErrors "habitat/pkg/domain-errors"
	"habitat/pkg/requestcontext"
)

type RegistrationServiceSuite struct {
	suite.Suite
	store     *InMemoryStore
	inventory *building.InMemoryStore
	addresses *address.InMemoryStore
	locations *location.InMemoryStore
	profiles  *profile.InMemoryStore
	service   *Service

	manager id.UserID
	tenant  id.UserID
	flat    *building.Flat
}

func TestRegistrationServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistrationServiceSuite))
}

func (s *RegistrationServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.inventory = building.NewInMemoryStore()
	s.addresses = address.NewInMemoryStore()
	s.locations = location.NewInMemoryStore()
	s.profiles = profile.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(s.store, s.inventory, s.addresses, s.locations, s.profiles, logger)

	s.manager = id.UserID(uuid.New())
	s.tenant = id.UserID(uuid.New())

	ctx := context.Background()
	countyID := id.SettlementID(uuid.New())
	municipalityID := id.SettlementID(uuid.New())
	settlementID := id.SettlementID(uuid.New())
	s.locations.Seed(
		location.Settlement{ID: settlementID, MunicipalityID: municipalityID, Name: "Riverside"},
		location.Municipality{ID: municipalityID, CountyID: countyID, Name: "Northfield"},
		location.County{ID: countyID, Name: "Westmark"},
	)

	now := time.Now()
	addr := &address.Address{
		ID:              id.AddressID(uuid.New()),
		StreetAndNumber: "Main Street 5",
		SettlementID:    settlementID,
		Status:          address.StatusApproved,
		CreatedBy:       s.manager,
		CreatedAt:       now,
	}
	s.Require().NoError(s.addresses.Create(ctx, addr))

	b := &building.Building{
		ID:        id.BuildingID(uuid.New()),
		AddressID: addr.ID,
		Name:      "Main Street 5, Riverside, Northfield, Westmark",
		ManagerID: s.manager,
		CreatedAt: now,
	}
	s.Require().NoError(s.inventory.CreateBuilding(ctx, b))

	s.flat = &building.Flat{ID: id.FlatID(uuid.New()), BuildingID: b.ID, UnitNumber: "3"}
	s.Require().NoError(s.inventory.CreateFlat(ctx, s.flat))

	s.profiles.Put(profile.Profile{UserID: s.tenant, Name: "Ada Tenant", Email: "ada@example.com"})
}

func (s *RegistrationServiceSuite) asUser(userID id.UserID, role identity.Role) context.Context {
	ctx := requestcontext.WithUserID(context.Background(), userID)
	return requestcontext.WithRole(ctx, string(role))
}

func (s *RegistrationServiceSuite) request() *Request {
	r, err := s.service.Request(s.asUser(s.tenant, identity.RoleUser), s.flat.ID)
	s.Require().NoError(err)
	return r
}

// TestRequest verifies request creation, including the one-pending-per-pair
// rule and that occupancy is not checked at request time.
func (s *RegistrationServiceSuite) TestRequest() {
	s.Run("creates a pending request", func() {
		r := s.request()
		s.Equal(StatusPending, r.Status)
		s.Equal(s.tenant, r.UserID)
	})

	s.Run("duplicate pending request conflicts", func() {
		_, err := s.service.Request(s.asUser(s.tenant, identity.RoleUser), s.flat.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("occupied flat still accepts requests", func() {
		ctx := context.Background()
		occupant := id.UserID(uuid.New())
		s.Require().NoError(s.inventory.AssignTenant(ctx, s.flat.ID, occupant))

		other := id.UserID(uuid.New())
		r, err := s.service.Request(s.asUser(other, identity.RoleUser), s.flat.ID)
		s.Require().NoError(err)
		s.Equal(StatusPending, r.Status)
	})

	s.Run("unknown flat is not found", func() {
		_, err := s.service.Request(s.asUser(s.tenant, identity.RoleUser), id.FlatID(uuid.New()))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// TestApprove walks the full approval: scope check, tenant binding, request
// closure.
func (s *RegistrationServiceSuite) TestApprove() {
	s.Run("manager approval binds the tenant", func() {
		r := s.request()
		decided, err := s.service.Approve(s.asUser(s.manager, identity.RoleBuildingManager), r.ID, "welcome")
		s.Require().NoError(err)
		s.Equal(StatusApproved, decided.Status)

		f, err := s.inventory.FindFlatByID(context.Background(), s.flat.ID)
		s.Require().NoError(err)
		s.Require().NotNil(f.TenantID)
		s.Equal(s.tenant, *f.TenantID)
	})

	s.Run("occupied flat blocks a different applicant", func() {
		other := id.UserID(uuid.New())
		r, err := s.service.Request(s.asUser(other, identity.RoleUser), s.flat.ID)
		s.Require().NoError(err)

		_, err = s.service.Approve(s.asUser(s.manager, identity.RoleBuildingManager), r.ID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("foreign manager is forbidden", func() {
		applicant := id.UserID(uuid.New())
		r, err := s.service.Request(s.asUser(applicant, identity.RoleUser), s.flat.ID)
		s.Require().NoError(err)

		stranger := id.UserID(uuid.New())
		_, err = s.service.Approve(s.asUser(stranger, identity.RoleBuildingManager), r.ID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("already decided request conflicts", func() {
		r := s.request()
		_, err := s.service.Reject(s.asUser(s.manager, identity.RoleBuildingManager), r.ID, "no")
		s.Require().NoError(err)
		_, err = s.service.Approve(s.asUser(s.manager, identity.RoleBuildingManager), r.ID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("tenant cannot approve", func() {
		r := s.request()
		_, err := s.service.Approve(s.asUser(s.tenant, identity.RoleUser), r.ID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("retry for an already assigned applicant succeeds", func() {
		ctx := context.Background()
		s.Require().NoError(s.inventory.ClearTenant(ctx, s.flat.ID))

		applicant := id.UserID(uuid.New())
		r, err := s.service.Request(s.asUser(applicant, identity.RoleUser), s.flat.ID)
		s.Require().NoError(err)

		// A crash between the two approval writes leaves the flat assigned
		// with the request still pending. The retried approval must complete.
		s.Require().NoError(s.inventory.AssignTenant(ctx, s.flat.ID, applicant))

		decided, err := s.service.Approve(s.asUser(s.manager, identity.RoleBuildingManager), r.ID, "")
		s.Require().NoError(err)
		s.Equal(StatusApproved, decided.Status)

		f, err := s.inventory.FindFlatByID(ctx, s.flat.ID)
		s.Require().NoError(err)
		s.Require().NotNil(f.TenantID)
		s.Equal(applicant, *f.TenantID)
	})
}

// TestReject verifies the notes requirement fires before any store access.
func (s *RegistrationServiceSuite) TestReject() {
	s.Run("empty notes rejected up front", func() {
		_, err := s.service.Reject(s.asUser(s.manager, identity.RoleBuildingManager), id.RegistrationID(uuid.New()), "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejection frees the pair for a new request", func() {
		r := s.request()
		decided, err := s.service.Reject(s.asUser(s.manager, identity.RoleBuildingManager), r.ID, "incomplete paperwork")
		s.Require().NoError(err)
		s.Equal(StatusRejected, decided.Status)
		s.Equal("incomplete paperwork", decided.Notes)

		again, err := s.service.Request(s.asUser(s.tenant, identity.RoleUser), s.flat.ID)
		s.Require().NoError(err)
		s.Equal(StatusPending, again.Status)
	})

	s.Run("rejection never touches the flat", func() {
		other := id.UserID(uuid.New())
		r, err := s.service.Request(s.asUser(other, identity.RoleUser), s.flat.ID)
		s.Require().NoError(err)

		before, err := s.inventory.FindFlatByID(context.Background(), s.flat.ID)
		s.Require().NoError(err)

		_, err = s.service.Reject(s.asUser(s.manager, identity.RoleBuildingManager), r.ID, "not eligible")
		s.Require().NoError(err)

		after, err := s.inventory.FindFlatByID(context.Background(), s.flat.ID)
		s.Require().NoError(err)
		s.Equal(before.TenantID, after.TenantID)
	})
}

// TestListForCaller verifies scoping and enrichment, including placeholder
// degradation for missing joins.
func (s *RegistrationServiceSuite) TestListForCaller() {
	r := s.request()

	s.Run("tenant sees own requests enriched", func() {
		listing, err := s.service.ListForCaller(s.asUser(s.tenant, identity.RoleUser))
		s.Require().NoError(err)
		s.Require().Len(listing, 1)
		e := listing[0]
		s.Equal(r.ID, e.ID)
		s.Equal("3", e.UnitNumber)
		s.Equal("Main Street 5, Riverside, Northfield, Westmark", e.FullAddress)
		s.Equal("Ada Tenant", e.ApplicantName)
		s.Equal("ada@example.com", e.ApplicantEmail)
	})

	s.Run("manager sees requests for managed flats", func() {
		listing, err := s.service.ListForCaller(s.asUser(s.manager, identity.RoleBuildingManager))
		s.Require().NoError(err)
		s.Require().Len(listing, 1)
		s.Equal(r.ID, listing[0].ID)
	})

	s.Run("unrelated manager sees nothing", func() {
		stranger := id.UserID(uuid.New())
		listing, err := s.service.ListForCaller(s.asUser(stranger, identity.RoleBuildingManager))
		s.Require().NoError(err)
		s.Empty(listing)
	})

	s.Run("missing profile degrades to placeholders", func() {
		anonymous := id.UserID(uuid.New())
		_, err := s.service.Request(s.asUser(anonymous, identity.RoleUser), s.flat.ID)
		s.Require().NoError(err)

		listing, err := s.service.ListForCaller(s.asUser(anonymous, identity.RoleUser))
		s.Require().NoError(err)
		s.Require().Len(listing, 1)
		s.Equal(PlaceholderField, listing[0].ApplicantName)
		s.Equal(PlaceholderField, listing[0].ApplicantEmail)
	})

	s.Run("deleted flat degrades to placeholders but keeps the row", func() {
		ctx := context.Background()
		doomed := &building.Flat{ID: id.FlatID(uuid.New()), BuildingID: s.flat.BuildingID, UnitNumber: "99"}
		s.Require().NoError(s.inventory.CreateFlat(ctx, doomed))

		applicant := id.UserID(uuid.New())
		req, err := s.service.Request(s.asUser(applicant, identity.RoleUser), doomed.ID)
		s.Require().NoError(err)

		s.Require().NoError(s.inventory.DeleteFlat(ctx, doomed.ID))

		listing, err := s.service.ListForCaller(s.asUser(applicant, identity.RoleUser))
		s.Require().NoError(err)
		s.Require().Len(listing, 1)
		s.Equal(req.ID, listing[0].ID)
		s.Equal(PlaceholderField, listing[0].UnitNumber)
		s.Equal(PlaceholderField, listing[0].BuildingName)
	})
}

// recordingCache captures invalidated scope keys so tests can assert which
// listings a workflow step clears.
type recordingCache struct {
	invalidated []string
}

func (c *recordingCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (c *recordingCache) Set(context.Context, string, []byte)        {}
func (c *recordingCache) Invalidate(_ context.Context, keys ...string) {
	c.invalidated = append(c.invalidated, keys...)
}

// TestCacheInvalidationScopes verifies workflow writes clear every listing
// scope they touch: a new request also invalidates the reviewing manager, and
// an admin decision still invalidates the actual building manager.
func (s *RegistrationServiceSuite) TestCacheInvalidationScopes() {
	rec := &recordingCache{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewService(s.store, s.inventory, s.addresses, s.locations, s.profiles, logger, WithCache(rec))

	r, err := service.Request(s.asUser(s.tenant, identity.RoleUser), s.flat.ID)
	s.Require().NoError(err)

	s.Run("request clears applicant and manager scopes", func() {
		s.Contains(rec.invalidated, regcache.ScopeKey(string(identity.RoleUser), s.tenant))
		s.Contains(rec.invalidated, regcache.ScopeKey(string(identity.RoleBuildingManager), s.manager))
	})

	s.Run("admin decision clears the manager scope", func() {
		rec.invalidated = nil
		admin := id.UserID(uuid.New())
		_, err := service.Approve(s.asUser(admin, identity.RoleAdmin), r.ID, "verified")
		s.Require().NoError(err)
		s.Contains(rec.invalidated, regcache.ScopeKey(string(identity.RoleBuildingManager), s.manager))
		s.Contains(rec.invalidated, regcache.ScopeKey(string(identity.RoleUser), s.tenant))
	})
}
