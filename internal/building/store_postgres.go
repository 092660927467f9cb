package building

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"habitat/internal/platform/postgres"
	id "habitat/pkg/domain"
	"habitat/pkg/platform/sentinel"
)

// PostgresStore persists buildings and flats. The schema carries the
// invariants: buildings.address_id is unique, (building_id, unit_number) is
// unique on flats. Pure I/O; policy lives in the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateBuilding(ctx context.Context, b *Building) error {
	query := `
		INSERT INTO buildings (id, address_id, name, manager_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(b.ID), uuid.UUID(b.AddressID), b.Name, uuid.UUID(b.ManagerID), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("create building: %w", postgres.ClassifyError(err))
	}
	return nil
}

func (s *PostgresStore) FindBuildingByID(ctx context.Context, buildingID id.BuildingID) (*Building, error) {
	query := `SELECT id, address_id, name, manager_id, created_at FROM buildings WHERE id = $1`
	b, err := scanBuilding(s.db.QueryRowContext(ctx, query, uuid.UUID(buildingID)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("building %s: %w", buildingID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find building: %w", postgres.ClassifyError(err))
	}
	return b, nil
}

func (s *PostgresStore) FindBuildingByAddress(ctx context.Context, addressID id.AddressID) (*Building, error) {
	query := `SELECT id, address_id, name, manager_id, created_at FROM buildings WHERE address_id = $1`
	b, err := scanBuilding(s.db.QueryRowContext(ctx, query, uuid.UUID(addressID)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("building for address %s: %w", addressID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find building by address: %w", postgres.ClassifyError(err))
	}
	return b, nil
}

func (s *PostgresStore) ListBuildings(ctx context.Context) ([]*Building, error) {
	query := `SELECT id, address_id, name, manager_id, created_at FROM buildings`
	return s.listBuildings(ctx, query)
}

func (s *PostgresStore) ListBuildingsByManager(ctx context.Context, managerID id.UserID) ([]*Building, error) {
	query := `SELECT id, address_id, name, manager_id, created_at FROM buildings WHERE manager_id = $1`
	return s.listBuildings(ctx, query, uuid.UUID(managerID))
}

func (s *PostgresStore) UpdateBuilding(ctx context.Context, b *Building) error {
	query := `UPDATE buildings SET name = $2, manager_id = $3 WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, uuid.UUID(b.ID), b.Name, uuid.UUID(b.ManagerID))
	if err != nil {
		return fmt.Errorf("update building: %w", postgres.ClassifyError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update building: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("building %s: %w", b.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateFlat(ctx context.Context, f *Flat) error {
	query := `
		INSERT INTO flats (id, building_id, unit_number, tenant_id)
		VALUES ($1, $2, $3, NULL)
	`
	_, err := s.db.ExecContext(ctx, query, uuid.UUID(f.ID), uuid.UUID(f.BuildingID), f.UnitNumber)
	if err != nil {
		return fmt.Errorf("create flat: %w", postgres.ClassifyError(err))
	}
	return nil
}

// CreateFlats inserts the whole batch in one statement so a concurrent
// duplicate fails the batch atomically rather than leaving a partial insert.
func (s *PostgresStore) CreateFlats(ctx context.Context, flats []*Flat) error {
	if len(flats) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(flats))
	buildingIDs := make([]uuid.UUID, len(flats))
	unitNumbers := make([]string, len(flats))
	for i, f := range flats {
		ids[i] = uuid.UUID(f.ID)
		buildingIDs[i] = uuid.UUID(f.BuildingID)
		unitNumbers[i] = f.UnitNumber
	}
	query := `
		INSERT INTO flats (id, building_id, unit_number, tenant_id)
		SELECT unnest($1::uuid[]), unnest($2::uuid[]), unnest($3::text[]), NULL
	`
	_, err := s.db.ExecContext(ctx, query, pq.Array(ids), pq.Array(buildingIDs), pq.Array(unitNumbers))
	if err != nil {
		return fmt.Errorf("create flats batch: %w", postgres.ClassifyError(err))
	}
	return nil
}

func (s *PostgresStore) FindFlatByID(ctx context.Context, flatID id.FlatID) (*Flat, error) {
	query := `SELECT id, building_id, unit_number, tenant_id FROM flats WHERE id = $1`
	f, err := scanFlat(s.db.QueryRowContext(ctx, query, uuid.UUID(flatID)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("flat %s: %w", flatID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find flat: %w", postgres.ClassifyError(err))
	}
	return f, nil
}

func (s *PostgresStore) ListFlatsByBuilding(ctx context.Context, buildingID id.BuildingID) ([]*Flat, error) {
	query := `SELECT id, building_id, unit_number, tenant_id FROM flats WHERE building_id = $1`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(buildingID))
	if err != nil {
		return nil, fmt.Errorf("list flats: %w", postgres.ClassifyError(err))
	}
	defer rows.Close()

	var out []*Flat
	for rows.Next() {
		f, err := scanFlat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flat: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFlat deletes only when the tenant slot is empty; the occupancy check
// and the delete are one statement, so there is no window for a concurrent
// assignment to slip between them.
func (s *PostgresStore) DeleteFlat(ctx context.Context, flatID id.FlatID) error {
	query := `DELETE FROM flats WHERE id = $1 AND tenant_id IS NULL`
	result, err := s.db.ExecContext(ctx, query, uuid.UUID(flatID))
	if err != nil {
		return fmt.Errorf("delete flat: %w", postgres.ClassifyError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete flat: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindFlatByID(ctx, flatID); findErr != nil {
			return findErr
		}
		return fmt.Errorf("flat %s is occupied: %w", flatID, sentinel.ErrInvalidState)
	}
	return nil
}

// AssignTenant wins or loses the occupancy race in a single conditional
// write: assignment succeeds when the flat is vacant or already held by the
// same tenant.
func (s *PostgresStore) AssignTenant(ctx context.Context, flatID id.FlatID, tenantID id.UserID) error {
	query := `
		UPDATE flats
		SET tenant_id = $2
		WHERE id = $1 AND (tenant_id IS NULL OR tenant_id = $2)
	`
	result, err := s.db.ExecContext(ctx, query, uuid.UUID(flatID), uuid.UUID(tenantID))
	if err != nil {
		return fmt.Errorf("assign tenant: %w", postgres.ClassifyError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign tenant: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindFlatByID(ctx, flatID); findErr != nil {
			return findErr
		}
		return fmt.Errorf("flat %s held by another tenant: %w", flatID, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) ClearTenant(ctx context.Context, flatID id.FlatID) error {
	query := `UPDATE flats SET tenant_id = NULL WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, uuid.UUID(flatID))
	if err != nil {
		return fmt.Errorf("clear tenant: %w", postgres.ClassifyError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear tenant: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("flat %s: %w", flatID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) listBuildings(ctx context.Context, query string, args ...any) ([]*Building, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list buildings: %w", postgres.ClassifyError(err))
	}
	defer rows.Close()

	var out []*Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan building: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuilding(row rowScanner) (*Building, error) {
	var (
		b                             Building
		rawID, rawAddress, rawManager uuid.UUID
	)
	if err := row.Scan(&rawID, &rawAddress, &b.Name, &rawManager, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.ID = id.BuildingID(rawID)
	b.AddressID = id.AddressID(rawAddress)
	b.ManagerID = id.UserID(rawManager)
	return &b, nil
}

func scanFlat(row rowScanner) (*Flat, error) {
	var (
		f                  Flat
		rawID, rawBuilding uuid.UUID
		rawTenant          uuid.NullUUID
	)
	if err := row.Scan(&rawID, &rawBuilding, &f.UnitNumber, &rawTenant); err != nil {
		return nil, err
	}
	f.ID = id.FlatID(rawID)
	f.BuildingID = id.BuildingID(rawBuilding)
	if rawTenant.Valid {
		tenant := id.UserID(rawTenant.UUID)
		f.TenantID = &tenant
	}
	return &f, nil
}
