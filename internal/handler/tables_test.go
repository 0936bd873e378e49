package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Qaiser2raza/fireflow-api/internal/database"
	"github.com/Qaiser2raza/fireflow-api/internal/enum"
	"github.com/Qaiser2raza/fireflow-api/internal/handler"
	"github.com/Qaiser2raza/fireflow-api/internal/middleware"
	"github.com/Qaiser2raza/fireflow-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type mockTableService struct {
	listFn      func(ctx context.Context, restaurantID uuid.UUID) ([]database.DiningTable, error)
	setStatusFn func(ctx context.Context, restaurantID, tableID uuid.UUID, next string) (*database.DiningTable, error)
}

func (m *mockTableService) ListTables(ctx context.Context, restaurantID uuid.UUID) ([]database.DiningTable, error) {
	return m.listFn(ctx, restaurantID)
}

func (m *mockTableService) SetTableStatus(ctx context.Context, restaurantID, tableID uuid.UUID, next string) (*database.DiningTable, error) {
	return m.setStatusFn(ctx, restaurantID, tableID, next)
}

func setupTableRouter(svc *mockTableService, hub *mockHub) *chi.Mux {
	h := handler.NewTableHandler(svc, hub)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/restaurants/{rid}/tables", func(sr chi.Router) {
		sr.Use(middleware.RequireRestaurant)
		h.RegisterRoutes(sr)
	})
	return r
}

func TestTableList_ReturnsFloorPlan(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID, enum.UserRoleWaiter)

	svc := &mockTableService{
		listFn: func(ctx context.Context, rid uuid.UUID) ([]database.DiningTable, error) {
			if rid != restaurantID {
				t.Errorf("restaurant id: got %s, want %s", rid, restaurantID)
			}
			return []database.DiningTable{
				{ID: uuid.New(), RestaurantID: rid, TableNumber: 1, Capacity: 2, Status: enum.TableStatusAvailable},
				{ID: uuid.New(), RestaurantID: rid, TableNumber: 2, Capacity: 6, Status: enum.TableStatusOccupied},
			}, nil
		},
	}

	router := setupTableRouter(svc, &mockHub{})
	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/tables", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var tables []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&tables); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("tables: got %d, want 2", len(tables))
	}
	if tables[1]["status"] != "OCCUPIED" {
		t.Errorf("second table status: got %v, want OCCUPIED", tables[1]["status"])
	}
}

func TestTableSetStatus_BroadcastsUpdate(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID, enum.UserRoleWaiter)
	hub := &mockHub{}

	tableID := uuid.New()
	svc := &mockTableService{
		setStatusFn: func(ctx context.Context, rid, tid uuid.UUID, next string) (*database.DiningTable, error) {
			if next != "AVAILABLE" {
				t.Errorf("next: got %q, want AVAILABLE", next)
			}
			return &database.DiningTable{
				ID: tid, RestaurantID: rid, TableNumber: 3, Capacity: 4,
				Status: enum.TableStatusAvailable,
			}, nil
		},
	}

	router := setupTableRouter(svc, hub)
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/tables/"+tableID.String()+"/status",
		map[string]interface{}{"status": "AVAILABLE"}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if len(hub.events) != 1 || hub.events[0] != "table.updated" {
		t.Errorf("broadcast events: got %v, want [table.updated]", hub.events)
	}
}

func TestTableSetStatus_HoldsOrderConflict(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID, enum.UserRoleWaiter)

	svc := &mockTableService{
		setStatusFn: func(ctx context.Context, rid, tid uuid.UUID, next string) (*database.DiningTable, error) {
			return nil, service.ErrTableHoldsOrder
		},
	}

	router := setupTableRouter(svc, &mockHub{})
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/tables/"+uuid.New().String()+"/status",
		map[string]interface{}{"status": "AVAILABLE"}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestTableSetStatus_NotFound(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID, enum.UserRoleWaiter)

	svc := &mockTableService{
		setStatusFn: func(ctx context.Context, rid, tid uuid.UUID, next string) (*database.DiningTable, error) {
			return nil, service.ErrTableNotFound
		},
	}

	router := setupTableRouter(svc, &mockHub{})
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/tables/"+uuid.New().String()+"/status",
		map[string]interface{}{"status": "DIRTY"}, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
