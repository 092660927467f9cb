package location

import (
	"context"
	"fmt"
	"sync"

	id "habitat/pkg/domain"
	"habitat/pkg/platform/sentinel"
)

// InMemoryStore holds a fixed settlement hierarchy. Location data is reference
// data; the memory twin is seeded once and read-only afterwards.
type InMemoryStore struct {
	mu             sync.RWMutex
	settlements    map[id.SettlementID]Settlement
	municipalities map[id.SettlementID]Municipality
	counties       map[id.SettlementID]County
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		settlements:    make(map[id.SettlementID]Settlement),
		municipalities: make(map[id.SettlementID]Municipality),
		counties:       make(map[id.SettlementID]County),
	}
}

// Seed loads one settlement chain. Intended for wiring and tests.
func (s *InMemoryStore) Seed(settlement Settlement, municipality Municipality, county County) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements[settlement.ID] = settlement
	s.municipalities[municipality.ID] = municipality
	s.counties[county.ID] = county
}

func (s *InMemoryStore) FindHierarchy(_ context.Context, settlementID id.SettlementID) (Hierarchy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settlement, ok := s.settlements[settlementID]
	if !ok {
		return Hierarchy{}, fmt.Errorf("settlement %s: %w", settlementID, sentinel.ErrNotFound)
	}
	municipality, ok := s.municipalities[settlement.MunicipalityID]
	if !ok {
		return Hierarchy{}, fmt.Errorf("municipality for settlement %s: %w", settlementID, sentinel.ErrNotFound)
	}
	county, ok := s.counties[municipality.CountyID]
	if !ok {
		return Hierarchy{}, fmt.Errorf("county for settlement %s: %w", settlementID, sentinel.ErrNotFound)
	}
	return Hierarchy{Settlement: settlement, Municipality: municipality, County: county}, nil
}
