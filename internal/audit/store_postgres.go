package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"habitat/internal/platform/postgres"
	id "habitat/pkg/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (action, actor_id, subject, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		string(event.Action), uuid.UUID(event.Actor), event.Subject, event.Detail, event.Timestamp)
	if err != nil {
		return fmt.Errorf("append audit event: %w", postgres.ClassifyError(err))
	}
	return nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, actor id.UserID) ([]Event, error) {
	query := `
		SELECT action, actor_id, subject, detail, occurred_at
		FROM audit_events
		WHERE actor_id = $1
		ORDER BY occurred_at
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(actor))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", postgres.ClassifyError(err))
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e   Event
			raw uuid.UUID
		)
		if err := rows.Scan((*string)(&e.Action), &raw, &e.Subject, &e.Detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Actor = id.UserID(raw)
		out = append(out, e)
	}
	return out, rows.Err()
}
