// Package postgres owns the SQL connection and the single place where raw
// lib/pq error codes are classified into sentinel errors. Store code calls
// ClassifyError on every write so postgres-specific codes never leak upward.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lib/pq"

	"habitat/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInsufficientPriv    = "42501"
)

// Open connects to postgres and verifies the connection.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

// EnsureSchema applies the idempotent schema. Run at startup and by the
// integration test bootstrap.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ClassifyError converts driver errors into sentinel errors:
//   - unique violations become sentinel.ErrConflict so races on constrained
//     writes surface as retryable conflicts rather than raw SQLSTATE codes
//   - foreign-key violations become sentinel.ErrInvalidReference (the write
//     named a related row that does not exist), which services report as a
//     validation failure
//   - privilege denials become sentinel.ErrForbidden
//   - network-class failures become ErrUnavailable
//
// sql.ErrNoRows is mapped by the stores themselves, where "no rows" has a
// per-query meaning.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", sentinel.ErrConflict, pqErr.Constraint)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", sentinel.ErrInvalidReference, pqErr.Constraint)
		case codeInsufficientPriv:
			return fmt.Errorf("%w: insufficient privilege", sentinel.ErrForbidden)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	return err
}
