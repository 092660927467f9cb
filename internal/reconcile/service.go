// Package reconcile repairs the two gaps the workflow's non-transactional
// side effects can leave behind: approved addresses whose building was never
// provisioned, and approved flat assignments whose registration request is
// still open.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"habitat/internal/address"
	"habitat/internal/building"
	"habitat/internal/identity"
	"habitat/internal/location"
	"habitat/internal/platform/metrics"
	"habitat/internal/registration"
	id "habitat/pkg/domain"
	dErrors "habitat/pkg/domain-errors"
	"habitat/pkg/platform/sentinel"
	"habitat/pkg/requestcontext"
)

// AddressSource feeds the building repair pass.
type AddressSource interface {
	ListApproved(ctx context.Context) ([]*address.Address, error)
}

// BuildingInventory is the slice of the building layer the repair pass needs.
type BuildingInventory interface {
	ListBuildings(ctx context.Context) ([]*building.Building, error)
	ProvisionForAddress(ctx context.Context, addressID id.AddressID, managerID id.UserID, name string) (bool, error)
}

// RegistrationInventory resolves flats for the stuck-approval pass.
type RegistrationInventory interface {
	FindFlatByID(ctx context.Context, flatID id.FlatID) (*building.Flat, error)
}

// BuildingReport summarizes one building repair pass.
type BuildingReport struct {
	ApprovedAddresses int `json:"approved_addresses"`
	MissingBuildings  int `json:"missing_buildings"`
	Created           int `json:"created"`
	Failed            int `json:"failed"`
}

// RegistrationReport summarizes one stuck-approval pass.
type RegistrationReport struct {
	Pending int `json:"pending"`
	Closed  int `json:"closed"`
	Failed  int `json:"failed"`
}

type Service struct {
	addresses     AddressSource
	buildings     BuildingInventory
	registrations registration.Store
	flats         RegistrationInventory
	locations     location.Store
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

type Option func(s *Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(addresses AddressSource, buildings BuildingInventory, registrations registration.Store, flats RegistrationInventory, locations location.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		addresses:     addresses,
		buildings:     buildings,
		registrations: registrations,
		flats:         flats,
		locations:     locations,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RepairMissingBuildings provisions a building for every approved address
// that lacks one. Safe to run at any time and alongside live approvals: each
// creation goes through the same idempotent path the approval engine uses,
// so a concurrent approval at worst turns a repair into a no-op.
func (s *Service) RepairMissingBuildings(ctx context.Context) (*BuildingReport, error) {
	if err := s.requireReconciler(ctx); err != nil {
		return nil, err
	}

	var (
		approved  []*address.Address
		buildings []*building.Building
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		approved, err = s.addresses.ListApproved(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		buildings, err = s.buildings.ListBuildings(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.FromStore(err, "failed to scan for missing buildings")
	}

	covered := make(map[id.AddressID]bool, len(buildings))
	for _, b := range buildings {
		covered[b.AddressID] = true
	}

	report := &BuildingReport{ApprovedAddresses: len(approved)}
	for _, a := range approved {
		if covered[a.ID] {
			continue
		}
		report.MissingBuildings++

		created, err := s.buildings.ProvisionForAddress(ctx, a.ID, a.CreatedBy, s.addressLabel(ctx, a))
		if err != nil {
			report.Failed++
			s.logger.ErrorContext(ctx, "building repair failed",
				"address_id", a.ID.String(), "error", err.Error())
			continue
		}
		if created {
			report.Created++
			s.metrics.IncBuildingProvisioned("reconcile")
		}
	}

	s.logger.InfoContext(ctx, "building repair pass complete",
		"approved", report.ApprovedAddresses,
		"missing", report.MissingBuildings,
		"created", report.Created,
		"failed", report.Failed)
	return report, nil
}

// CloseStuckApprovals closes pending requests whose flat is already assigned
// to the applicant. That state is the footprint of an approval that crashed
// between the tenant assignment and the request closure.
func (s *Service) CloseStuckApprovals(ctx context.Context) (*RegistrationReport, error) {
	if err := s.requireReconciler(ctx); err != nil {
		return nil, err
	}

	pending, err := s.registrations.ListPending(ctx)
	if err != nil {
		return nil, dErrors.FromStore(err, "failed to list pending requests")
	}

	callerID := requestcontext.UserID(ctx)
	report := &RegistrationReport{Pending: len(pending)}
	for _, r := range pending {
		f, err := s.flats.FindFlatByID(ctx, r.FlatID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// The flat was deleted while the request was open; leave the
				// request for the manager to reject.
				continue
			}
			report.Failed++
			continue
		}
		if f.TenantID == nil || *f.TenantID != r.UserID {
			continue
		}

		r.ApplyDecision(registration.StatusApproved, callerID, "closed by reconciliation", requestcontext.Now(ctx))
		if err := s.registrations.UpdateDecision(ctx, r); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				// Someone decided it first; that is the outcome we wanted.
				continue
			}
			report.Failed++
			s.logger.ErrorContext(ctx, "stuck approval close failed",
				"request_id", r.ID.String(), "error", err.Error())
			continue
		}
		report.Closed++
		s.metrics.IncRegistrationDecided(string(registration.StatusApproved))
	}

	s.logger.InfoContext(ctx, "stuck approval pass complete",
		"pending", report.Pending, "closed", report.Closed, "failed", report.Failed)
	return report, nil
}

func (s *Service) requireReconciler(ctx context.Context) error {
	role := identity.Role(requestcontext.Role(ctx))
	if !identity.CanPerform(identity.ActionReconcile, role) {
		return dErrors.New(dErrors.CodeForbidden, "role cannot run reconciliation")
	}
	return nil
}

func (s *Service) addressLabel(ctx context.Context, a *address.Address) string {
	h, err := s.locations.FindHierarchy(ctx, a.SettlementID)
	if err != nil {
		return a.StreetAndNumber
	}
	return location.ComposeFromHierarchy(a.StreetAndNumber, h)
}
