package profile

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"habitat/internal/platform/postgres"
	id "habitat/pkg/domain"
	"habitat/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByUser(ctx context.Context, userID id.UserID) (Profile, error) {
	query := `SELECT user_id, name, email FROM profiles WHERE user_id = $1`
	var (
		p   Profile
		raw uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(userID)).Scan(&raw, &p.Name, &p.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return Profile{}, fmt.Errorf("profile %s: %w", userID, sentinel.ErrNotFound)
		}
		return Profile{}, fmt.Errorf("find profile: %w", postgres.ClassifyError(err))
	}
	p.UserID = id.UserID(raw)
	return p, nil
}
