// Package profile is a read-only lookup of applicant contact data used to
// enrich registration listings for reviewers.
package profile

import (
	"context"

	id "habitat/pkg/domain"
)

type Profile struct {
	UserID id.UserID
	Name   string
	Email  string
}

// Store implementations return sentinel.ErrNotFound for unknown users.
type Store interface {
	FindByUser(ctx context.Context, userID id.UserID) (Profile, error)
}
