package building

import (
	"context"
	"fmt"
	"sync"

	id "habitat/pkg/domain"
	"habitat/pkg/platform/sentinel"
)

// InMemoryStore mirrors the postgres constraints: unique address per building,
// unique unit number per building, conditional tenant assignment.
type InMemoryStore struct {
	mu        sync.RWMutex
	buildings map[id.BuildingID]*Building
	byAddress map[id.AddressID]id.BuildingID
	flats     map[id.FlatID]*Flat
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		buildings: make(map[id.BuildingID]*Building),
		byAddress: make(map[id.AddressID]id.BuildingID),
		flats:     make(map[id.FlatID]*Flat),
	}
}

func (s *InMemoryStore) CreateBuilding(_ context.Context, b *Building) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byAddress[b.AddressID]; exists {
		return fmt.Errorf("building for address %s: %w", b.AddressID, sentinel.ErrConflict)
	}
	copied := *b
	s.buildings[b.ID] = &copied
	s.byAddress[b.AddressID] = b.ID
	return nil
}

func (s *InMemoryStore) FindBuildingByID(_ context.Context, buildingID id.BuildingID) (*Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.buildings[buildingID]
	if !ok {
		return nil, fmt.Errorf("building %s: %w", buildingID, sentinel.ErrNotFound)
	}
	copied := *stored
	return &copied, nil
}

func (s *InMemoryStore) FindBuildingByAddress(_ context.Context, addressID id.AddressID) (*Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buildingID, ok := s.byAddress[addressID]
	if !ok {
		return nil, fmt.Errorf("building for address %s: %w", addressID, sentinel.ErrNotFound)
	}
	copied := *s.buildings[buildingID]
	return &copied, nil
}

func (s *InMemoryStore) ListBuildings(_ context.Context) ([]*Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Building, 0, len(s.buildings))
	for _, stored := range s.buildings {
		copied := *stored
		out = append(out, &copied)
	}
	return out, nil
}

func (s *InMemoryStore) ListBuildingsByManager(_ context.Context, managerID id.UserID) ([]*Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Building
	for _, stored := range s.buildings {
		if stored.ManagerID == managerID {
			copied := *stored
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *InMemoryStore) UpdateBuilding(_ context.Context, b *Building) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.buildings[b.ID]
	if !ok {
		return fmt.Errorf("building %s: %w", b.ID, sentinel.ErrNotFound)
	}
	stored.Name = b.Name
	stored.ManagerID = b.ManagerID
	return nil
}

func (s *InMemoryStore) CreateFlat(_ context.Context, f *Flat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createFlatLocked(f)
}

func (s *InMemoryStore) CreateFlats(_ context.Context, flats []*Flat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// All-or-nothing, mirroring a single-statement batch insert.
	for _, f := range flats {
		if err := s.duplicateUnitLocked(f); err != nil {
			return err
		}
	}
	for _, f := range flats {
		copied := *f
		s.flats[f.ID] = &copied
	}
	return nil
}

func (s *InMemoryStore) FindFlatByID(_ context.Context, flatID id.FlatID) (*Flat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.flats[flatID]
	if !ok {
		return nil, fmt.Errorf("flat %s: %w", flatID, sentinel.ErrNotFound)
	}
	copied := *stored
	return &copied, nil
}

func (s *InMemoryStore) ListFlatsByBuilding(_ context.Context, buildingID id.BuildingID) ([]*Flat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Flat
	for _, stored := range s.flats {
		if stored.BuildingID == buildingID {
			copied := *stored
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *InMemoryStore) DeleteFlat(_ context.Context, flatID id.FlatID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.flats[flatID]
	if !ok {
		return fmt.Errorf("flat %s: %w", flatID, sentinel.ErrNotFound)
	}
	if stored.TenantID != nil {
		return fmt.Errorf("flat %s is occupied: %w", flatID, sentinel.ErrInvalidState)
	}
	delete(s.flats, flatID)
	return nil
}

func (s *InMemoryStore) AssignTenant(_ context.Context, flatID id.FlatID, tenantID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.flats[flatID]
	if !ok {
		return fmt.Errorf("flat %s: %w", flatID, sentinel.ErrNotFound)
	}
	if stored.TenantID != nil && *stored.TenantID != tenantID {
		return fmt.Errorf("flat %s held by another tenant: %w", flatID, sentinel.ErrConflict)
	}
	stored.TenantID = &tenantID
	return nil
}

func (s *InMemoryStore) ClearTenant(_ context.Context, flatID id.FlatID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.flats[flatID]
	if !ok {
		return fmt.Errorf("flat %s: %w", flatID, sentinel.ErrNotFound)
	}
	stored.TenantID = nil
	return nil
}

func (s *InMemoryStore) createFlatLocked(f *Flat) error {
	if err := s.duplicateUnitLocked(f); err != nil {
		return err
	}
	copied := *f
	s.flats[f.ID] = &copied
	return nil
}

func (s *InMemoryStore) duplicateUnitLocked(f *Flat) error {
	for _, stored := range s.flats {
		if stored.BuildingID == f.BuildingID && stored.UnitNumber == f.UnitNumber {
			return fmt.Errorf("unit %q in building %s: %w", f.UnitNumber, f.BuildingID, sentinel.ErrConflict)
		}
	}
	return nil
}
