package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"habitat/internal/reconcile"
	"habitat/internal/transport/http/shared"
	dErrors "habitat/pkg/domain-errors"
	"habitat/pkg/requestcontext"
)

// Service defines the reconciliation passes the handler exposes.
type Service interface {
	RepairMissingBuildings(ctx context.Context) (*reconcile.BuildingReport, error)
	CloseStuckApprovals(ctx context.Context) (*reconcile.RegistrationReport, error)
}

type Handler struct {
	reconciler Service
	logger     *slog.Logger
}

func New(reconciler Service, logger *slog.Logger) *Handler {
	return &Handler{reconciler: reconciler, logger: logger}
}

// Register attaches the operator-facing reconciliation routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/internal/reconcile", func(r chi.Router) {
		r.Post("/buildings", h.handleRepairBuildings)
		r.Post("/registrations", h.handleCloseStuckApprovals)
	})
}

func (h *Handler) handleRepairBuildings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.reconciler.RepairMissingBuildings(ctx)
	if err != nil {
		h.logFailure(ctx, "building repair pass failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleCloseStuckApprovals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.reconciler.CloseStuckApprovals(ctx)
	if err != nil {
		h.logFailure(ctx, "stuck approval pass failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err.Error())
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err.Error())
}
