package address

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"habitat/internal/audit"
	"habitat/internal/identity"
	"habitat/internal/location"
	"habitat/internal/platform/metrics"
	id "habitat/pkg/domain"
	dErrors "habitat/pkg/domain-errors"
	"habitat/pkg/platform/sentinel"
	"habitat/pkg/requestcontext"
)

// Provisioner creates the building for an approved address. Implemented by the
// building service; the indirection keeps this package from importing it.
type Provisioner interface {
	// ProvisionForAddress is idempotent with respect to the one-building-per-
	// address invariant. It reports whether a building was actually created.
	ProvisionForAddress(ctx context.Context, addressID id.AddressID, managerID id.UserID, name string) (bool, error)
}

// Service owns the address approval state machine.
type Service struct {
	store     Store
	locations location.Store
	buildings Provisioner
	logger    *slog.Logger
	auditor   *audit.Publisher
	metrics   *metrics.Metrics
}

type Option func(s *Service)

func WithAudit(publisher *audit.Publisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, locations location.Store, buildings Provisioner, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, locations: locations, buildings: buildings, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit creates a pending address owned by the caller.
func (s *Service) Submit(ctx context.Context, streetAndNumber string, settlementID id.SettlementID, callerID id.UserID, role identity.Role) (*Address, error) {
	if !identity.CanPerform(identity.ActionSubmitAddress, role) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role cannot submit addresses")
	}
	streetAndNumber = strings.TrimSpace(streetAndNumber)

	a, err := NewAddress(id.AddressID(uuid.New()), streetAndNumber, settlementID, callerID, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageFor(err))
		}
		return nil, err
	}

	// Reject unknown settlements up front so reviewers never see addresses
	// that cannot be labeled.
	if _, err := s.locations.FindHierarchy(ctx, settlementID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "settlement does not exist")
		}
		return nil, dErrors.FromStore(err, "failed to resolve settlement")
	}

	if err := s.store.Create(ctx, a); err != nil {
		return nil, dErrors.FromStore(err, "failed to create address")
	}
	if s.metrics != nil {
		s.metrics.AddressesSubmitted.Inc()
	}
	return a, nil
}

// ListPending returns the review queue, newest first, each row projected with
// its composed full address label.
func (s *Service) ListPending(ctx context.Context, role identity.Role) ([]*PendingAddress, error) {
	if !identity.CanPerform(identity.ActionReviewAddresses, role) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role cannot review addresses")
	}
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, dErrors.FromStore(err, "failed to list pending addresses")
	}

	out := make([]*PendingAddress, 0, len(pending))
	for _, a := range pending {
		out = append(out, &PendingAddress{
			Address:     *a,
			FullAddress: s.fullAddressLabel(ctx, a),
		})
	}
	return out, nil
}

// ListMine returns the caller's own submissions, newest first.
func (s *Service) ListMine(ctx context.Context, callerID id.UserID, role identity.Role) ([]*Address, error) {
	if !identity.CanPerform(identity.ActionListOwnAddresses, role) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role cannot list addresses")
	}
	addresses, err := s.store.ListByCreator(ctx, callerID)
	if err != nil {
		return nil, dErrors.FromStore(err, "failed to list addresses")
	}
	return addresses, nil
}

// Decide transitions an address exactly once. On approval it provisions the
// building for the original applicant as a follow-up write: if that write
// fails the approval stands and the reconciliation pass backfills the
// building later, so the decision itself stays fast.
func (s *Service) Decide(ctx context.Context, addressID id.AddressID, decision Decision, reviewerID id.UserID, role identity.Role) (*Address, error) {
	if !identity.CanPerform(identity.ActionReviewAddresses, role) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role cannot decide addresses")
	}
	if !decision.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "decision must be approved or rejected")
	}

	a, err := s.store.FindByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "address not found")
		}
		return nil, dErrors.FromStore(err, "failed to load address")
	}
	if err := a.CanDecide(); err != nil {
		return nil, dErrors.New(dErrors.CodeConflict, dErrors.MessageFor(err))
	}

	a.ApplyDecision(decision, reviewerID, requestcontext.Now(ctx))
	if err := s.store.UpdateDecision(ctx, a); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeConflict, "address is already decided")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "address not found")
		}
		return nil, dErrors.FromStore(err, "failed to store decision")
	}
	s.metrics.IncAddressDecided(string(decision))
	s.logAudit(ctx, audit.ActionAddressDecided, reviewerID, a.ID.String(), string(decision))

	if decision == DecisionApproved {
		s.provision(ctx, a)
	}
	return a, nil
}

// provision runs the approval side effect. Failures are logged, not returned:
// the approved-without-building gap is repaired by reconcile.
func (s *Service) provision(ctx context.Context, a *Address) {
	name := s.fullAddressLabel(ctx, a)
	created, err := s.buildings.ProvisionForAddress(ctx, a.ID, a.CreatedBy, name)
	if err != nil {
		s.logger.WarnContext(ctx, "building provisioning failed; reconciliation will repair",
			"request_id", requestcontext.RequestID(ctx),
			"address_id", a.ID.String(),
			"error", err.Error(),
		)
		return
	}
	if created {
		s.metrics.IncBuildingProvisioned("approval")
		s.logAudit(ctx, audit.ActionBuildingProvisioned, a.CreatedBy, a.ID.String(), name)
	}
}

// fullAddressLabel composes the display label, degrading to the street line
// when the hierarchy cannot be resolved.
func (s *Service) fullAddressLabel(ctx context.Context, a *Address) string {
	hierarchy, err := s.locations.FindHierarchy(ctx, a.SettlementID)
	if err != nil {
		s.logger.WarnContext(ctx, "settlement hierarchy unresolved",
			"address_id", a.ID.String(),
			"settlement_id", a.SettlementID.String(),
			"error", err.Error(),
		)
		return a.StreetAndNumber
	}
	return location.ComposeFromHierarchy(a.StreetAndNumber, hierarchy)
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, actor id.UserID, subject, detail string) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, audit.Event{Action: action, Actor: actor, Subject: subject, Detail: detail}); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", string(action), "error", err.Error())
	}
}
