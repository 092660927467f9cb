//go:build integration

package registration_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"habitat/internal/registration"
	id "habitat/pkg/domain"
	"habitat/pkg/platform/sentinel"
	"habitat/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *registration.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = registration.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "flat_registration_requests")
	s.Require().NoError(err)
}

// TestConcurrentDuplicateRequests verifies the partial unique index admits
// exactly one pending request per (flat, user) pair under concurrency.
func (s *PostgresStoreSuite) TestConcurrentDuplicateRequests() {
	ctx := context.Background()
	flatID := id.FlatID(uuid.New())
	userID := id.UserID(uuid.New())
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := registration.NewRequest(id.RegistrationID(uuid.New()), flatID, userID, time.Now())
			err := s.store.Create(ctx, r)
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one pending request should land")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

// TestPairFreedAfterDecision verifies the index stops binding once the
// request leaves pending.
func (s *PostgresStoreSuite) TestPairFreedAfterDecision() {
	ctx := context.Background()
	flatID := id.FlatID(uuid.New())
	userID := id.UserID(uuid.New())

	first := registration.NewRequest(id.RegistrationID(uuid.New()), flatID, userID, time.Now())
	s.Require().NoError(s.store.Create(ctx, first))

	first.ApplyDecision(registration.StatusRejected, id.UserID(uuid.New()), "incomplete", time.Now())
	s.Require().NoError(s.store.UpdateDecision(ctx, first))

	again := registration.NewRequest(id.RegistrationID(uuid.New()), flatID, userID, time.Now())
	s.Require().NoError(s.store.Create(ctx, again))
}

// TestConcurrentDecisions verifies the conditional transition write lets
// exactly one reviewer win.
func (s *PostgresStoreSuite) TestConcurrentDecisions() {
	ctx := context.Background()
	r := registration.NewRequest(id.RegistrationID(uuid.New()), id.FlatID(uuid.New()), id.UserID(uuid.New()), time.Now())
	s.Require().NoError(s.store.Create(ctx, r))

	const goroutines = 10
	var wg sync.WaitGroup
	var successCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decided := *r
			status := registration.StatusApproved
			if i%2 == 1 {
				status = registration.StatusRejected
			}
			decided.ApplyDecision(status, id.UserID(uuid.New()), "race", time.Now())
			if err := s.store.UpdateDecision(ctx, &decided); err == nil {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one decision should commit")

	stored, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.NotEqual(registration.StatusPending, stored.Status)
}
