// Package registration owns the tenant-to-flat request workflow: a tenant
// asks for a flat, the building's manager approves or rejects, and approval
// binds the tenant to the flat.
package registration

import (
	"time"

	id "habitat/pkg/domain"
	dErrors "habitat/pkg/domain-errors"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request is one tenant's application for one flat.
//
// Invariants:
//   - at most one pending request per (flat, user) pair, enforced by a
//     partial unique index rather than application logic
//   - transitions out of pending are terminal
type Request struct {
	ID          id.RegistrationID `json:"id"`
	FlatID      id.FlatID         `json:"flat_id"`
	UserID      id.UserID         `json:"user_id"`
	Status      Status            `json:"status"`
	RequestedAt time.Time         `json:"requested_at"`
	ReviewedAt  *time.Time        `json:"reviewed_at,omitempty"`
	ReviewedBy  *id.UserID        `json:"reviewed_by,omitempty"`
	Notes       string            `json:"notes,omitempty"`
}

func NewRequest(requestID id.RegistrationID, flatID id.FlatID, userID id.UserID, now time.Time) *Request {
	return &Request{
		ID:          requestID,
		FlatID:      flatID,
		UserID:      userID,
		Status:      StatusPending,
		RequestedAt: now,
	}
}

// CanDecide checks the request is still open for review.
func (r *Request) CanDecide() error {
	if r.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "request is already "+string(r.Status))
	}
	return nil
}

// ApplyDecision closes the request. The store guards the transition with a
// conditional write; call CanDecide first for the fast path.
func (r *Request) ApplyDecision(status Status, reviewer id.UserID, notes string, now time.Time) {
	r.Status = status
	r.ReviewedBy = &reviewer
	r.ReviewedAt = &now
	r.Notes = notes
}

// Enriched is the reviewer-facing projection: the request joined with its
// flat, building, and applicant at read time. Placeholder fields mark joins
// that could not be resolved; the request itself is never omitted for that.
type Enriched struct {
	Request
	UnitNumber     string `json:"unit_number"`
	BuildingName   string `json:"building_name"`
	FullAddress    string `json:"full_address"`
	ApplicantName  string `json:"applicant_name"`
	ApplicantEmail string `json:"applicant_email"`
}

// PlaceholderField marks unresolved joined data in Enriched rows.
const PlaceholderField = "(unknown)"
