package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"habitat/internal/registration"
	"habitat/internal/transport/http/shared"
	id "habitat/pkg/domain"
	dErrors "habitat/pkg/domain-errors"
	"habitat/pkg/requestcontext"
)

// Service defines the registration workflow operations the handler exposes.
type Service interface {
	Request(ctx context.Context, flatID id.FlatID) (*registration.Request, error)
	ListForCaller(ctx context.Context) ([]*registration.Enriched, error)
	Approve(ctx context.Context, requestID id.RegistrationID, notes string) (*registration.Request, error)
	Reject(ctx context.Context, requestID id.RegistrationID, notes string) (*registration.Request, error)
}

type Handler struct {
	registrations Service
	logger        *slog.Logger
}

func New(registrations Service, logger *slog.Logger) *Handler {
	return &Handler{registrations: registrations, logger: logger}
}

// Register attaches the registration workflow routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/registrations", func(r chi.Router) {
		r.Post("/", h.handleRequest)
		r.Get("/", h.handleList)
		r.Post("/{requestID}/approve", h.handleApprove)
		r.Post("/{requestID}/reject", h.handleReject)
	})
}

type createRequest struct {
	FlatID string `json:"flat_id"`
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	flatID, err := id.ParseFlatID(req.FlatID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	created, err := h.registrations.Request(ctx, flatID)
	if err != nil {
		h.logFailure(ctx, "registration request failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	listing, err := h.registrations.ListForCaller(ctx)
	if err != nil {
		h.logFailure(ctx, "registration listing failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listing)
}

type decisionRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.registrations.Approve)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.registrations.Reject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, decide func(ctx context.Context, requestID id.RegistrationID, notes string) (*registration.Request, error)) {
	ctx := r.Context()

	requestID, err := id.ParseRegistrationID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	decided, err := decide(ctx, requestID, req.Notes)
	if err != nil {
		h.logFailure(ctx, "registration decision failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, decided)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err.Error())
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err.Error())
}
