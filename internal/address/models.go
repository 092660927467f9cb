// Package address owns the address lifecycle: submission by an applicant,
// review by an admin, and the building-provisioning side effect of approval.
package address

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

// Decision is the reviewer's terminal verdict.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Address is a submitted physical location awaiting or having received
// administrative approval.
//
// Invariants:
//   - StreetAndNumber is non-empty; SettlementID references a real settlement
//   - Status transitions: pending → approved | rejected, exactly once
//   - pending is the only mutable state; decided rows are immutable
type Address struct {
	ID              id.AddressID    `json:"id"`
	StreetAndNumber string          `json:"street_and_number"`
	SettlementID    id.SettlementID `json:"settlement_id"`
	Status          Status          `json:"status"`
	CreatedBy       id.UserID       `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	ReviewedBy      *id.UserID      `json:"reviewed_by,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
}

// PendingAddress is the review-queue projection: the row plus the composed
// full address label. The label is computed at read time, never stored.
type PendingAddress struct {
	Address
	FullAddress string `json:"full_address"`
}

func NewAddress(addressID id.AddressID, streetAndNumber string, settlementID id.SettlementID, createdBy id.UserID, now time.Time) (*Address, error) {
	if streetAndNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "street and number cannot be empty")
	}
	if settlementID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "settlement reference is required")
	}
	return &Address{
		ID:              addressID,
		StreetAndNumber: streetAndNumber,
		SettlementID:    settlementID,
		Status:          StatusPending,
		CreatedBy:       createdBy,
		CreatedAt:       now,
	}, nil
}

// CanDecide checks that the address is still undecided.
func (a *Address) CanDecide() error {
	if a.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "address is already "+string(a.Status))
	}
	return nil
}

// ApplyDecision transitions the address to its terminal status. Call CanDecide
// first; the store additionally guards the transition with a conditional
// write so concurrent reviewers cannot both win.
func (a *Address) ApplyDecision(decision Decision, reviewer id.UserID, now time.Time) {
	if decision == DecisionApproved {
		a.Status = StatusApproved
	} else {
		a.Status = StatusRejected
	}
	a.ReviewedBy = &reviewer
	a.DecidedAt = &now
}
