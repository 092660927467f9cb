package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"habitat/internal/building"
	"habitat/internal/identity"
	"habitat/internal/transport/http/shared"
	id "habitat/pkg/domain"
	dErrors "habitat/pkg/domain-errors"
	"habitat/pkg/requestcontext"
)

// Service defines the inventory operations the handler exposes.
type Service interface {
	ListForManager(ctx context.Context, callerID id.UserID, role identity.Role) ([]*building.Building, error)
	UpdateBuilding(ctx context.Context, buildingID id.BuildingID, name *string, newManagerID *id.UserID, callerID id.UserID, role identity.Role) (*building.Building, error)
	ListFlats(ctx context.Context, buildingID id.BuildingID, callerID id.UserID, role identity.Role) ([]*building.Flat, error)
	CreateFlat(ctx context.Context, addressID id.AddressID, unitNumber string, callerID id.UserID, role identity.Role, fullAddressLabel string) (*building.Flat, error)
	BulkCreateFlats(ctx context.Context, buildingID id.BuildingID, unitNumbers []string, callerID id.UserID, role identity.Role) (*building.BulkResult, error)
	DeleteFlat(ctx context.Context, flatID id.FlatID, callerID id.UserID, role identity.Role) error
	ClearTenant(ctx context.Context, flatID id.FlatID, callerID id.UserID, role identity.Role) (*building.Flat, error)
}

type Handler struct {
	buildings Service
	logger    *slog.Logger
}

func New(buildings Service, logger *slog.Logger) *Handler {
	return &Handler{buildings: buildings, logger: logger}
}

// Register attaches building and flat inventory routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/buildings", func(r chi.Router) {
		r.Get("/", h.handleListBuildings)
		r.Patch("/{buildingID}", h.handleUpdateBuilding)
		r.Get("/{buildingID}/flats", h.handleListFlats)
	})
	r.Route("/flats", func(r chi.Router) {
		r.Post("/", h.handleCreateFlat)
		r.Post("/bulk", h.handleBulkCreateFlats)
		r.Delete("/{flatID}", h.handleDeleteFlat)
		r.Post("/{flatID}/clear-tenant", h.handleClearTenant)
	})
}

func (h *Handler) handleListBuildings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buildings, err := h.buildings.ListForManager(ctx, requestcontext.UserID(ctx), identity.Role(requestcontext.Role(ctx)))
	if err != nil {
		h.logFailure(ctx, "building listing failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, buildings)
}

type updateBuildingRequest struct {
	Name      *string `json:"name,omitempty"`
	ManagerID *string `json:"manager_id,omitempty"`
}

func (h *Handler) handleUpdateBuilding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buildingID, err := id.ParseBuildingID(chi.URLParam(r, "buildingID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req updateBuildingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	var managerID *id.UserID
	if req.ManagerID != nil {
		parsed, err := id.ParseUserID(*req.ManagerID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		managerID = &parsed
	}

	b, err := h.buildings.UpdateBuilding(ctx, buildingID, req.Name, managerID, requestcontext.UserID(ctx), identity.Role(requestcontext.Role(ctx)))
	if err != nil {
		h.logFailure(ctx, "building update failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) handleListFlats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buildingID, err := id.ParseBuildingID(chi.URLParam(r, "buildingID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	flats, err := h.buildings.ListFlats(ctx, buildingID, requestcontext.UserID(ctx), identity.Role(requestcontext.Role(ctx)))
	if err != nil {
		h.logFailure(ctx, "flat listing failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, flats)
}

type createFlatRequest struct {
	AddressID  string `json:"address_id"`
	UnitNumber string `json:"unit_number"`
}

func (h *Handler) handleCreateFlat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createFlatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	addressID, err := id.ParseAddressID(req.AddressID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	f, err := h.buildings.CreateFlat(ctx, addressID, req.UnitNumber, requestcontext.UserID(ctx), identity.Role(requestcontext.Role(ctx)), "")
	if err != nil {
		h.logFailure(ctx, "flat creation failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, f)
}

type bulkCreateRequest struct {
	BuildingID  string   `json:"building_id"`
	FlatNumbers []string `json:"flat_numbers"`
}

type bulkCreateResponse struct {
	CreatedCount      int              `json:"created_count"`
	SkippedCount      int              `json:"skipped_count"`
	Created           []*building.Flat `json:"created"`
	SkippedDuplicates []string         `json:"skipped_duplicates"`
}

func (h *Handler) handleBulkCreateFlats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req bulkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	buildingID, err := id.ParseBuildingID(req.BuildingID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.buildings.BulkCreateFlats(ctx, buildingID, req.FlatNumbers, requestcontext.UserID(ctx), identity.Role(requestcontext.Role(ctx)))
	if err != nil {
		h.logFailure(ctx, "bulk flat creation failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, bulkCreateResponse{
		CreatedCount:      len(result.Created),
		SkippedCount:      len(result.SkippedDuplicates),
		Created:           result.Created,
		SkippedDuplicates: result.SkippedDuplicates,
	})
}

func (h *Handler) handleDeleteFlat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flatID, err := id.ParseFlatID(chi.URLParam(r, "flatID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.buildings.DeleteFlat(ctx, flatID, requestcontext.UserID(ctx), identity.Role(requestcontext.Role(ctx))); err != nil {
		h.logFailure(ctx, "flat deletion failed", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flatID, err := id.ParseFlatID(chi.URLParam(r, "flatID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	f, err := h.buildings.ClearTenant(ctx, flatID, requestcontext.UserID(ctx), identity.Role(requestcontext.Role(ctx)))
	if err != nil {
		h.logFailure(ctx, "tenant clear failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err.Error())
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err.Error())
}
