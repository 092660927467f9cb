package registration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	id "habitat/pkg/domain"
	"habitat/pkg/platform/sentinel"
)

// InMemoryStore mirrors the postgres semantics including the partial-unique
// pending constraint and the conditional decision write.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.RegistrationID]*Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.RegistrationID]*Request)}
}

func (s *InMemoryStore) Create(_ context.Context, r *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.requests {
		if stored.FlatID == r.FlatID && stored.UserID == r.UserID && stored.Status == StatusPending {
			return fmt.Errorf("pending request for flat %s by user %s: %w", r.FlatID, r.UserID, sentinel.ErrConflict)
		}
	}
	copied := *r
	s.requests[r.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, requestID id.RegistrationID) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	copied := *stored
	return &copied, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*Request, error) {
	return s.filter(func(r *Request) bool { return r.UserID == userID }), nil
}

func (s *InMemoryStore) ListByFlats(_ context.Context, flatIDs []id.FlatID) ([]*Request, error) {
	wanted := make(map[id.FlatID]bool, len(flatIDs))
	for _, flatID := range flatIDs {
		wanted[flatID] = true
	}
	return s.filter(func(r *Request) bool { return wanted[r.FlatID] }), nil
}

func (s *InMemoryStore) ListPending(_ context.Context) ([]*Request, error) {
	return s.filter(func(r *Request) bool { return r.Status == StatusPending }), nil
}

func (s *InMemoryStore) UpdateDecision(_ context.Context, r *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.requests[r.ID]
	if !ok {
		return fmt.Errorf("request %s: %w", r.ID, sentinel.ErrNotFound)
	}
	if stored.Status != StatusPending {
		return fmt.Errorf("request %s already %s: %w", r.ID, stored.Status, sentinel.ErrInvalidState)
	}
	copied := *r
	s.requests[r.ID] = &copied
	return nil
}

func (s *InMemoryStore) filter(keep func(*Request) bool) []*Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Request
	for _, stored := range s.requests {
		if keep(stored) {
			copied := *stored
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out
}
