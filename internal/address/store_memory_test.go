package address

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "habitat/pkg/domain"
	"habitat/pkg/platform/sentinel"
)

type AddressStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestAddressStoreSuite(t *testing.T) {
	suite.Run(t, new(AddressStoreSuite))
}

func (s *AddressStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *AddressStoreSuite) newAddress(createdAt time.Time) *Address {
	return &Address{
		ID:              id.AddressID(uuid.New()),
		StreetAndNumber: "Main Street 5",
		SettlementID:    id.SettlementID(uuid.New()),
		Status:          StatusPending,
		CreatedBy:       id.UserID(uuid.New()),
		CreatedAt:       createdAt,
	}
}

// TestDecisionIsConditional verifies the pending-only guard on the decision
// write.
func (s *AddressStoreSuite) TestDecisionIsConditional() {
	a := s.newAddress(time.Now())
	s.Require().NoError(s.store.Create(s.ctx, a))

	reviewer := id.UserID(uuid.New())
	now := time.Now()
	a.ApplyDecision(DecisionApproved, reviewer, now)
	s.Require().NoError(s.store.UpdateDecision(s.ctx, a))

	s.Run("second decision loses the guard", func() {
		again := *a
		again.ApplyDecision(DecisionRejected, reviewer, now)
		err := s.store.UpdateDecision(s.ctx, &again)
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)

		stored, err := s.store.FindByID(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(StatusApproved, stored.Status, "first decision must stand")
	})

	s.Run("unknown address is not found", func() {
		ghost := s.newAddress(time.Now())
		ghost.ApplyDecision(DecisionApproved, reviewer, now)
		err := s.store.UpdateDecision(s.ctx, ghost)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestListings verifies status filtering and newest-first ordering.
func (s *AddressStoreSuite) TestListings() {
	older := s.newAddress(time.Now().Add(-time.Hour))
	newer := s.newAddress(time.Now())
	s.Require().NoError(s.store.Create(s.ctx, older))
	s.Require().NoError(s.store.Create(s.ctx, newer))

	pending, err := s.store.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(newer.ID, pending[0].ID, "newest first")

	newer.ApplyDecision(DecisionApproved, id.UserID(uuid.New()), time.Now())
	s.Require().NoError(s.store.UpdateDecision(s.ctx, newer))

	pending, err = s.store.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Len(pending, 1)

	approved, err := s.store.ListApproved(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(approved, 1)
	s.Equal(newer.ID, approved[0].ID)
}
