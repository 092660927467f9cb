package location

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"habitat/internal/platform/postgres"
	id "habitat/pkg/domain"
	"habitat/pkg/platform/sentinel"
)

// PostgresStore resolves the settlement hierarchy with a single three-way
// join. Pure I/O; label composition lives in ComposeFullAddress.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindHierarchy(ctx context.Context, settlementID id.SettlementID) (Hierarchy, error) {
	query := `
		SELECT s.id, s.name, m.id, m.name, c.id, c.name
		FROM settlements s
		JOIN municipalities m ON m.id = s.municipality_id
		JOIN counties c ON c.id = m.county_id
		WHERE s.id = $1
	`
	var (
		h                                         Hierarchy
		settlementRaw, municipalityRaw, countyRaw uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(settlementID)).Scan(
		&settlementRaw, &h.Settlement.Name,
		&municipalityRaw, &h.Municipality.Name,
		&countyRaw, &h.County.Name,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return Hierarchy{}, fmt.Errorf("settlement %s: %w", settlementID, sentinel.ErrNotFound)
		}
		return Hierarchy{}, fmt.Errorf("find hierarchy: %w", postgres.ClassifyError(err))
	}
	h.Settlement.ID = id.SettlementID(settlementRaw)
	h.Municipality.ID = id.SettlementID(municipalityRaw)
	h.Municipality.CountyID = id.SettlementID(countyRaw)
	h.County.ID = id.SettlementID(countyRaw)
	h.Settlement.MunicipalityID = id.SettlementID(municipalityRaw)
	return h, nil
}
