package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"habitat/internal/address"
	addresshandler "habitat/internal/address/handler"
	"habitat/internal/building"
	buildinghandler "habitat/internal/building/handler"
	"habitat/internal/identity"
	"habitat/internal/location"
	"habitat/internal/profile"
	"habitat/internal/reconcile"
	reconcilehandler "habitat/internal/reconcile/handler"
	"habitat/internal/registration"
	registrationhandler "habitat/internal/registration/handler"
	id "habitat/pkg/domain"
)

type testEnv struct {
	router    http.Handler
	tokens    *identity.TokenService
	locations *location.InMemoryStore

	settlementID id.SettlementID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	addressStore := address.NewInMemoryStore()
	buildingStore := building.NewInMemoryStore()
	registrationStore := registration.NewInMemoryStore()
	locations := location.NewInMemoryStore()
	profiles := profile.NewInMemoryStore()

	countyID := id.SettlementID(uuid.New())
	municipalityID := id.SettlementID(uuid.New())
	settlementID := id.SettlementID(uuid.New())
	locations.Seed(
		location.Settlement{ID: settlementID, MunicipalityID: municipalityID, Name: "Riverside"},
		location.Municipality{ID: municipalityID, CountyID: countyID, Name: "Northfield"},
		location.County{ID: countyID, Name: "Westmark"},
	)

	buildings := building.NewService(buildingStore, addressStore, building.Limits{
		MaxBulkFlats:       200,
		MaxUnitNumberLen:   10,
		MaxBuildingNameLen: 100,
	}, logger)
	addresses := address.NewService(addressStore, locations, buildings, logger)
	registrations := registration.NewService(registrationStore, buildingStore, addressStore, locations, profiles, logger)
	reconciler := reconcile.NewService(addressStore, buildings, registrationStore, buildingStore, locations, logger)

	tokens := identity.NewTokenService("test-key", "habitat")
	router := NewRouter(logger, tokens, NewHealthHandler(nil, nil),
		addresshandler.New(addresses, logger),
		buildinghandler.New(buildings, logger),
		registrationhandler.New(registrations, logger),
		reconcilehandler.New(reconciler, logger),
	)

	return &testEnv{router: router, tokens: tokens, locations: locations, settlementID: settlementID}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, userID id.UserID, role identity.Role) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if role != "" {
		token, err := e.tokens.Issue(userID, role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/addresses/mine", nil, id.UserID{}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "healthz stays outside the auth boundary")
}

// TestFullWorkflow drives the complete lifecycle over HTTP: address
// submission, admin approval, flat inventory, tenant registration, manager
// decision.
func TestFullWorkflow(t *testing.T) {
	env := newTestEnv(t)

	manager := id.UserID(uuid.New())
	admin := id.UserID(uuid.New())
	tenant := id.UserID(uuid.New())

	// Submit an address as the future manager.
	rec := env.do(t, http.MethodPost, "/addresses", map[string]string{
		"street_and_number": "Main Street 5",
		"settlement_id":     env.settlementID.String(),
	}, manager, identity.RoleBuildingManager)
	require.Equal(t, http.StatusCreated, rec.Code)
	addr := decode[address.Address](t, rec)

	// The admin sees it in the review queue with the composed label.
	rec = env.do(t, http.MethodGet, "/addresses/pending", nil, admin, identity.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[[]address.PendingAddress](t, rec)
	require.Len(t, pending, 1)
	require.Equal(t, "Main Street 5, Riverside, Northfield, Westmark", pending[0].FullAddress)

	// Approval provisions the building.
	rec = env.do(t, http.MethodPost, "/addresses/"+addr.ID.String()+"/decision",
		map[string]string{"decision": "approved"}, admin, identity.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/buildings", nil, manager, identity.RoleBuildingManager)
	require.Equal(t, http.StatusOK, rec.Code)
	buildings := decode[[]building.Building](t, rec)
	require.Len(t, buildings, 1)
	buildingID := buildings[0].ID

	// Bulk-create flats; one duplicate in the input is reported back.
	rec = env.do(t, http.MethodPost, "/flats/bulk", map[string]any{
		"building_id":  buildingID.String(),
		"flat_numbers": []string{"1", "2", "2A", "10", "2"},
	}, manager, identity.RoleBuildingManager)
	require.Equal(t, http.StatusCreated, rec.Code)
	bulk := decode[struct {
		CreatedCount      int      `json:"created_count"`
		SkippedCount      int      `json:"skipped_count"`
		SkippedDuplicates []string `json:"skipped_duplicates"`
	}](t, rec)
	require.Equal(t, 4, bulk.CreatedCount)
	require.Equal(t, []string{"2"}, bulk.SkippedDuplicates)

	// Flats come back in resident order.
	rec = env.do(t, http.MethodGet, "/buildings/"+buildingID.String()+"/flats", nil, manager, identity.RoleBuildingManager)
	require.Equal(t, http.StatusOK, rec.Code)
	// IDs must appear on the wire as UUID strings, not raw byte arrays, so
	// clients can feed a listed flat ID straight into a registration request.
	require.Contains(t, rec.Body.String(), `"building_id":"`+buildingID.String()+`"`)
	flats := decode[[]building.Flat](t, rec)
	units := make([]string, 0, len(flats))
	for _, f := range flats {
		units = append(units, f.UnitNumber)
	}
	require.Equal(t, []string{"1", "2", "2A", "10"}, units)

	// The tenant requests flat "2A".
	var target building.Flat
	for _, f := range flats {
		if f.UnitNumber == "2A" {
			target = f
		}
	}
	rec = env.do(t, http.MethodPost, "/registrations", map[string]string{
		"flat_id": target.ID.String(),
	}, tenant, identity.RoleUser)
	require.Equal(t, http.StatusCreated, rec.Code)
	request := decode[registration.Request](t, rec)

	// A duplicate request conflicts while the first is pending.
	rec = env.do(t, http.MethodPost, "/registrations", map[string]string{
		"flat_id": target.ID.String(),
	}, tenant, identity.RoleUser)
	require.Equal(t, http.StatusConflict, rec.Code)

	// The manager sees it and approves.
	rec = env.do(t, http.MethodGet, "/registrations", nil, manager, identity.RoleBuildingManager)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decode[[]registration.Enriched](t, rec)
	require.Len(t, listing, 1)
	require.Equal(t, "2A", listing[0].UnitNumber)

	rec = env.do(t, http.MethodPost, "/registrations/"+request.ID.String()+"/approve",
		map[string]string{"notes": ""}, manager, identity.RoleBuildingManager)
	require.Equal(t, http.StatusOK, rec.Code)
	approved := decode[registration.Request](t, rec)
	require.Equal(t, registration.StatusApproved, approved.Status)

	// The occupied flat can no longer be deleted.
	rec = env.do(t, http.MethodDelete, "/flats/"+target.ID.String(), nil, manager, identity.RoleBuildingManager)
	require.Equal(t, http.StatusConflict, rec.Code)

	// Clearing the tenant frees it.
	rec = env.do(t, http.MethodPost, "/flats/"+target.ID.String()+"/clear-tenant", nil, manager, identity.RoleBuildingManager)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodDelete, "/flats/"+target.ID.String(), nil, manager, identity.RoleBuildingManager)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

// TestRejectRequiresNotes verifies the HTTP surface of the notes rule.
func TestRejectRequiresNotes(t *testing.T) {
	env := newTestEnv(t)
	manager := id.UserID(uuid.New())

	rec := env.do(t, http.MethodPost, "/registrations/"+uuid.NewString()+"/reject",
		map[string]string{"notes": ""}, manager, identity.RoleBuildingManager)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestReconcileEndpoints verifies the operator surface and its admin gate.
func TestReconcileEndpoints(t *testing.T) {
	env := newTestEnv(t)
	admin := id.UserID(uuid.New())
	manager := id.UserID(uuid.New())

	rec := env.do(t, http.MethodPost, "/internal/reconcile/buildings", nil, admin, identity.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[reconcile.BuildingReport](t, rec)
	require.Equal(t, 0, report.MissingBuildings)

	rec = env.do(t, http.MethodPost, "/internal/reconcile/registrations", nil, admin, identity.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/internal/reconcile/buildings", nil, manager, identity.RoleBuildingManager)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
