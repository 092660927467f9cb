package address

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"habitat/internal/platform/postgres"
	id "habitat/pkg/domain"
	"habitat/pkg/platform/sentinel"
)

// PostgresStore persists addresses. Pure I/O; transition guards live in the
// model and the conditional UPDATE below.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const addressColumns = `id, street_and_number, settlement_id, status, created_by, created_at, reviewed_by, decided_at`

func (s *PostgresStore) Create(ctx context.Context, a *Address) error {
	query := `
		INSERT INTO addresses (` + addressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(a.ID), a.StreetAndNumber, uuid.UUID(a.SettlementID), string(a.Status),
		uuid.UUID(a.CreatedBy), a.CreatedAt, nullableUser(a.ReviewedBy), a.DecidedAt)
	if err != nil {
		return fmt.Errorf("create address: %w", postgres.ClassifyError(err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, addressID id.AddressID) (*Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`
	a, err := scanAddress(s.db.QueryRowContext(ctx, query, uuid.UUID(addressID)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("address %s: %w", addressID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find address: %w", postgres.ClassifyError(err))
	}
	return a, nil
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]*Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE status = 'pending' ORDER BY created_at DESC`
	return s.list(ctx, query)
}

func (s *PostgresStore) ListApproved(ctx context.Context) ([]*Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE status = 'approved'`
	return s.list(ctx, query)
}

func (s *PostgresStore) ListByCreator(ctx context.Context, creator id.UserID) ([]*Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE created_by = $1 ORDER BY created_at DESC`
	return s.list(ctx, query, uuid.UUID(creator))
}

// UpdateDecision commits a terminal transition. The WHERE clause keeps the
// write conditional on the row still being pending; zero rows affected means
// a concurrent reviewer already decided (or the row vanished).
func (s *PostgresStore) UpdateDecision(ctx context.Context, a *Address) error {
	query := `
		UPDATE addresses
		SET status = $2, reviewed_by = $3, decided_at = $4
		WHERE id = $1 AND status = 'pending'
	`
	result, err := s.db.ExecContext(ctx, query,
		uuid.UUID(a.ID), string(a.Status), nullableUser(a.ReviewedBy), a.DecidedAt)
	if err != nil {
		return fmt.Errorf("update address decision: %w", postgres.ClassifyError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update address decision: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindByID(ctx, a.ID); findErr != nil {
			return findErr
		}
		return fmt.Errorf("address %s already decided: %w", a.ID, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Address, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", postgres.ClassifyError(err))
	}
	defer rows.Close()

	var out []*Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAddress(row rowScanner) (*Address, error) {
	var (
		a                    Address
		rawID, rawSettlement uuid.UUID
		rawCreator           uuid.UUID
		rawReviewer          uuid.NullUUID
		status               string
	)
	err := row.Scan(&rawID, &a.StreetAndNumber, &rawSettlement, &status,
		&rawCreator, &a.CreatedAt, &rawReviewer, &a.DecidedAt)
	if err != nil {
		return nil, err
	}
	a.ID = id.AddressID(rawID)
	a.SettlementID = id.SettlementID(rawSettlement)
	a.Status = Status(status)
	a.CreatedBy = id.UserID(rawCreator)
	if rawReviewer.Valid {
		reviewer := id.UserID(rawReviewer.UUID)
		a.ReviewedBy = &reviewer
	}
	return &a, nil
}

func nullableUser(userID *id.UserID) any {
	if userID == nil {
		return nil
	}
	return uuid.UUID(*userID)
}
