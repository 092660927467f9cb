package registration

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

// PostgresStore persists registration requests. The schema carries the
// at-most-one-pending invariant with a partial unique index:
//
//	CREATE UNIQUE INDEX flat_registration_requests_pending_uq
//	ON flat_registration_requests (flat_id, user_id) WHERE status = 'pending'
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, flat_id, user_id, status, requested_at, reviewed_at, reviewed_by, notes`

func (s *PostgresStore) Create(ctx context.Context, r *Request) error {
	query := `
		INSERT INTO flat_registration_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(r.ID), uuid.UUID(r.FlatID), uuid.UUID(r.UserID), string(r.Status),
		r.RequestedAt, r.ReviewedAt, nullableUser(r.ReviewedBy), r.Notes)
	if err != nil {
		return fmt.Errorf("create registration request: %w", postgres.ClassifyError(err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.RegistrationID) (*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM flat_registration_requests WHERE id = $1`
	r, err := scanRequest(s.db.QueryRowContext(ctx, query, uuid.UUID(requestID)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find registration request: %w", postgres.ClassifyError(err))
	}
	return r, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM flat_registration_requests WHERE user_id = $1 ORDER BY requested_at DESC`
	return s.list(ctx, query, uuid.UUID(userID))
}

func (s *PostgresStore) ListByFlats(ctx context.Context, flatIDs []id.FlatID) ([]*Request, error) {
	if len(flatIDs) == 0 {
		return nil, nil
	}
	raw := make([]uuid.UUID, len(flatIDs))
	for i, flatID := range flatIDs {
		raw[i] = uuid.UUID(flatID)
	}
	query := `SELECT ` + requestColumns + ` FROM flat_registration_requests WHERE flat_id = ANY($1) ORDER BY requested_at DESC`
	return s.list(ctx, query, pq.Array(raw))
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM flat_registration_requests WHERE status = 'pending' ORDER BY requested_at DESC`
	return s.list(ctx, query)
}

// UpdateDecision is conditional on the row still being pending, mirroring the
// address decision write.
func (s *PostgresStore) UpdateDecision(ctx context.Context, r *Request) error {
	query := `
		UPDATE flat_registration_requests
		SET status = $2, reviewed_at = $3, reviewed_by = $4, notes = $5
		WHERE id = $1 AND status = 'pending'
	`
	result, err := s.db.ExecContext(ctx, query,
		uuid.UUID(r.ID), string(r.Status), r.ReviewedAt, nullableUser(r.ReviewedBy), r.Notes)
	if err != nil {
		return fmt.Errorf("update registration decision: %w", postgres.ClassifyError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registration decision: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindByID(ctx, r.ID); findErr != nil {
			return findErr
		}
		return fmt.Errorf("request %s already decided: %w", r.ID, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list registration requests: %w", postgres.ClassifyError(err))
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var (
		r              Request
		rawID, rawFlat uuid.UUID
		rawUser        uuid.UUID
		rawReviewer    uuid.NullUUID
		status         string
	)
	err := row.Scan(&rawID, &rawFlat, &rawUser, &status,
		&r.RequestedAt, &r.ReviewedAt, &rawReviewer, &r.Notes)
	if err != nil {
		return nil, err
	}
	r.ID = id.RegistrationID(rawID)
	r.FlatID = id.FlatID(rawFlat)
	r.UserID = id.UserID(rawUser)
	r.Status = Status(status)
	if rawReviewer.Valid {
		reviewer := id.UserID(rawReviewer.UUID)
		r.ReviewedBy = &reviewer
	}
	return &r, nil
}

func nullableUser(userID *id.UserID) any {
	if userID == nil {
		return nil
	}
	return uuid.UUID(*userID)
}
