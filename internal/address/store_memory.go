package address

import (
	"context"
	"fmt"
	"sort"
	"sync"

	id "habitat/pkg/domain"
	"habitat/pkg/platform/sentinel"
)

// InMemoryStore mirrors the postgres semantics, including the conditional
// decision write, so service tests exercise the same contract.
type InMemoryStore struct {
	mu        sync.RWMutex
	addresses map[id.AddressID]*Address
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{addresses: make(map[id.AddressID]*Address)}
}

func (s *InMemoryStore) Create(_ context.Context, a *Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.addresses[a.ID]; exists {
		return fmt.Errorf("address %s: %w", a.ID, sentinel.ErrConflict)
	}
	copied := *a
	s.addresses[a.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, addressID id.AddressID) (*Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.addresses[addressID]
	if !ok {
		return nil, fmt.Errorf("address %s: %w", addressID, sentinel.ErrNotFound)
	}
	copied := *stored
	return &copied, nil
}

func (s *InMemoryStore) ListPending(_ context.Context) ([]*Address, error) {
	return s.listByStatus(StatusPending, true), nil
}

func (s *InMemoryStore) ListApproved(_ context.Context) ([]*Address, error) {
	return s.listByStatus(StatusApproved, false), nil
}

func (s *InMemoryStore) ListByCreator(_ context.Context, creator id.UserID) ([]*Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Address
	for _, stored := range s.addresses {
		if stored.CreatedBy == creator {
			copied := *stored
			out = append(out, &copied)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) UpdateDecision(_ context.Context, a *Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.addresses[a.ID]
	if !ok {
		return fmt.Errorf("address %s: %w", a.ID, sentinel.ErrNotFound)
	}
	if stored.Status != StatusPending {
		return fmt.Errorf("address %s already %s: %w", a.ID, stored.Status, sentinel.ErrInvalidState)
	}
	copied := *a
	s.addresses[a.ID] = &copied
	return nil
}

func (s *InMemoryStore) listByStatus(status Status, newestFirst bool) []*Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Address
	for _, stored := range s.addresses {
		if stored.Status == status {
			copied := *stored
			out = append(out, &copied)
		}
	}
	if newestFirst {
		sortNewestFirst(out)
	}
	return out
}

func sortNewestFirst(addresses []*Address) {
	sort.Slice(addresses, func(i, j int) bool {
		return addresses[i].CreatedAt.After(addresses[j].CreatedAt)
	})
}
