package address

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"habitat/internal/identity"
	"habitat/internal/location"
	id "habitat/pkg/domain"
	dErrors "habitat/pkg/domain-errors"
)

// recordingProvisioner stands in for the building service. It records calls
// and can be told to fail so the approval-survives-provisioning-failure path
// is testable.
type recordingProvisioner struct {
	calls int
	fail  bool
}

func (p *recordingProvisioner) ProvisionForAddress(_ context.Context, _ id.AddressID, _ id.UserID, _ string) (bool, error) {
	p.calls++
	if p.fail {
		return false, errors.New("storage down")
	}
	return true, nil
}

type AddressServiceSuite struct {
	suite.Suite
	store        *InMemoryStore
	locations    *location.InMemoryStore
	provisioner  *recordingProvisioner
	service      *Service
	ctx          context.Context
	settlementID id.SettlementID
	applicant    id.UserID
	admin        id.UserID
}

func TestAddressServiceSuite(t *testing.T) {
	suite.Run(t, new(AddressServiceSuite))
}

func (s *AddressServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.locations = location.NewInMemoryStore()
	s.provisioner = &recordingProvisioner{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(s.store, s.locations, s.provisioner, logger)
	s.ctx = context.Background()
	s.applicant = id.UserID(uuid.New())
	s.admin = id.UserID(uuid.New())

	countyID := id.SettlementID(uuid.New())
	municipalityID := id.SettlementID(uuid.New())
	s.settlementID = id.SettlementID(uuid.New())
	s.locations.Seed(
		location.Settlement{ID: s.settlementID, MunicipalityID: municipalityID, Name: "Riverside"},
		location.Municipality{ID: municipalityID, CountyID: countyID, Name: "Northfield"},
		location.County{ID: countyID, Name: "Westmark"},
	)
}

func (s *AddressServiceSuite) submit() *Address {
	a, err := s.service.Submit(s.ctx, "Main Street 5", s.settlementID, s.applicant, identity.RoleUser)
	s.Require().NoError(err)
	return a
}

// TestSubmit verifies validation and the pending initial state.
func (s *AddressServiceSuite) TestSubmit() {
	s.Run("valid submission starts pending", func() {
		a := s.submit()
		s.Equal(StatusPending, a.Status)
		s.Equal(s.applicant, a.CreatedBy)
	})

	s.Run("blank street is rejected", func() {
		_, err := s.service.Submit(s.ctx, "   ", s.settlementID, s.applicant, identity.RoleUser)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown settlement is rejected", func() {
		_, err := s.service.Submit(s.ctx, "Main Street 5", id.SettlementID(uuid.New()), s.applicant, identity.RoleUser)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("accountant cannot submit", func() {
		_, err := s.service.Submit(s.ctx, "Main Street 5", s.settlementID, s.applicant, identity.RoleAccountant)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

// TestListPending verifies the review queue projection and its role gate.
func (s *AddressServiceSuite) TestListPending() {
	s.submit()

	s.Run("admin sees composed full address", func() {
		pending, err := s.service.ListPending(s.ctx, identity.RoleAdmin)
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal("Main Street 5, Riverside, Northfield, Westmark", pending[0].FullAddress)
	})

	s.Run("manager cannot review", func() {
		_, err := s.service.ListPending(s.ctx, identity.RoleBuildingManager)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

// TestDecide verifies the exactly-once transition and the provisioning side
// effect.
func (s *AddressServiceSuite) TestDecide() {
	s.Run("approval provisions a building for the applicant", func() {
		a := s.submit()
		decided, err := s.service.Decide(s.ctx, a.ID, DecisionApproved, s.admin, identity.RoleAdmin)
		s.Require().NoError(err)
		s.Equal(StatusApproved, decided.Status)
		s.Require().NotNil(decided.ReviewedBy)
		s.Equal(s.admin, *decided.ReviewedBy)
		s.Equal(1, s.provisioner.calls)
	})

	s.Run("rejection does not provision", func() {
		before := s.provisioner.calls
		a := s.submit()
		decided, err := s.service.Decide(s.ctx, a.ID, DecisionRejected, s.admin, identity.RoleAdmin)
		s.Require().NoError(err)
		s.Equal(StatusRejected, decided.Status)
		s.Equal(before, s.provisioner.calls)
	})

	s.Run("second decision conflicts", func() {
		a := s.submit()
		_, err := s.service.Decide(s.ctx, a.ID, DecisionApproved, s.admin, identity.RoleAdmin)
		s.Require().NoError(err)
		_, err = s.service.Decide(s.ctx, a.ID, DecisionRejected, s.admin, identity.RoleAdmin)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("approval stands when provisioning fails", func() {
		s.provisioner.fail = true
		defer func() { s.provisioner.fail = false }()

		a := s.submit()
		decided, err := s.service.Decide(s.ctx, a.ID, DecisionApproved, s.admin, identity.RoleAdmin)
		s.Require().NoError(err)
		s.Equal(StatusApproved, decided.Status)

		stored, err := s.store.FindByID(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(StatusApproved, stored.Status)
	})

	s.Run("non-admin cannot decide", func() {
		a := s.submit()
		_, err := s.service.Decide(s.ctx, a.ID, DecisionApproved, s.admin, identity.RoleBuildingManager)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown address is not found", func() {
		_, err := s.service.Decide(s.ctx, id.AddressID(uuid.New()), DecisionApproved, s.admin, identity.RoleAdmin)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// TestListMine verifies creator scoping.
func (s *AddressServiceSuite) TestListMine() {
	s.submit()
	other := id.UserID(uuid.New())

	mine, err := s.service.ListMine(s.ctx, s.applicant, identity.RoleUser)
	s.Require().NoError(err)
	s.Len(mine, 1)

	theirs, err := s.service.ListMine(s.ctx, other, identity.RoleUser)
	s.Require().NoError(err)
	s.Empty(theirs)
}
