package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"habitat/internal/address"
	"habitat/internal/identity"
	"habitat/internal/transport/http/shared"
	id "habitat/pkg/domain"
	dErrors "habitat/pkg/domain-errors"
	"habitat/pkg/requestcontext"
)

// Service defines the address operations the handler exposes.
type Service interface {
	Submit(ctx context.Context, streetAndNumber string, settlementID id.SettlementID, callerID id.UserID, role identity.Role) (*address.Address, error)
	ListPending(ctx context.Context, role identity.Role) ([]*address.PendingAddress, error)
	ListMine(ctx context.Context, callerID id.UserID, role identity.Role) ([]*address.Address, error)
	Decide(ctx context.Context, addressID id.AddressID, decision address.Decision, reviewerID id.UserID, role identity.Role) (*address.Address, error)
}

type Handler struct {
	addresses Service
	logger    *slog.Logger
}

func New(addresses Service, logger *slog.Logger) *Handler {
	return &Handler{addresses: addresses, logger: logger}
}

// Register attaches the address routes. The caller's middleware chain has
// already authenticated the request.
func (h *Handler) Register(r chi.Router) {
	r.Route("/addresses", func(r chi.Router) {
		r.Post("/", h.handleSubmit)
		r.Get("/pending", h.handleListPending)
		r.Get("/mine", h.handleListMine)
		r.Post("/{addressID}/decision", h.handleDecide)
	})
}

type submitRequest struct {
	StreetAndNumber string `json:"street_and_number"`
	SettlementID    string `json:"settlement_id"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	settlementID, err := id.ParseSettlementID(req.SettlementID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	a, err := h.addresses.Submit(ctx, req.StreetAndNumber, settlementID, requestcontext.UserID(ctx), identity.Role(requestcontext.Role(ctx)))
	if err != nil {
		h.logFailure(ctx, "address submit failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pending, err := h.addresses.ListPending(ctx, identity.Role(requestcontext.Role(ctx)))
	if err != nil {
		h.logFailure(ctx, "pending address listing failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, pending)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mine, err := h.addresses.ListMine(ctx, requestcontext.UserID(ctx), identity.Role(requestcontext.Role(ctx)))
	if err != nil {
		h.logFailure(ctx, "own address listing failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, mine)
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	addressID, err := id.ParseAddressID(chi.URLParam(r, "addressID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	decision := address.Decision(req.Decision)
	if !decision.Valid() {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "decision must be approved or rejected"))
		return
	}

	a, err := h.addresses.Decide(ctx, addressID, decision, requestcontext.UserID(ctx), identity.Role(requestcontext.Role(ctx)))
	if err != nil {
		h.logFailure(ctx, "address decision failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err.Error())
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err.Error())
}
