package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/Qaiser2raza/fireflow-api/internal/database"
	"github.com/Qaiser2raza/fireflow-api/internal/enum"
	"github.com/Qaiser2raza/fireflow-api/internal/handler"
	"github.com/Qaiser2raza/fireflow-api/internal/middleware"
	"github.com/Qaiser2raza/fireflow-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================
// Mock driver / settlement services
// =====================

type mockDriverService struct {
	listFn       func(ctx context.Context, restaurantID uuid.UUID) ([]service.DriverWithShift, error)
	openShiftFn  func(ctx context.Context, restaurantID, driverID uuid.UUID, openingFloat decimal.Decimal) (*database.DriverShift, error)
	closeShiftFn func(ctx context.Context, restaurantID, driverID, closedBy uuid.UUID, closingActual decimal.Decimal) (*service.CloseShiftResult, error)
}

func (m *mockDriverService) ListDrivers(ctx context.Context, restaurantID uuid.UUID) ([]service.DriverWithShift, error) {
	return m.listFn(ctx, restaurantID)
}

func (m *mockDriverService) OpenShift(ctx context.Context, restaurantID, driverID uuid.UUID, openingFloat decimal.Decimal) (*database.DriverShift, error) {
	return m.openShiftFn(ctx, restaurantID, driverID, openingFloat)
}

func (m *mockDriverService) CloseShift(ctx context.Context, restaurantID, driverID, closedBy uuid.UUID, closingActual decimal.Decimal) (*service.CloseShiftResult, error) {
	return m.closeShiftFn(ctx, restaurantID, driverID, closedBy, closingActual)
}

type mockSettlementService struct {
	settleFn  func(ctx context.Context, req service.SettleRequest) (*service.SettleResult, error)
	pendingFn func(ctx context.Context, restaurantID, driverID uuid.UUID) ([]database.Order, error)
	historyFn func(ctx context.Context, restaurantID, driverID uuid.UUID) ([]service.SettlementWithOrders, error)
}

func (m *mockSettlementService) Settle(ctx context.Context, req service.SettleRequest) (*service.SettleResult, error) {
	return m.settleFn(ctx, req)
}

func (m *mockSettlementService) PendingOrders(ctx context.Context, restaurantID, driverID uuid.UUID) ([]database.Order, error) {
	return m.pendingFn(ctx, restaurantID, driverID)
}

func (m *mockSettlementService) History(ctx context.Context, restaurantID, driverID uuid.UUID) ([]service.SettlementWithOrders, error) {
	return m.historyFn(ctx, restaurantID, driverID)
}

func setupDriverRouter(svc *mockDriverService, settlement *mockSettlementService) *chi.Mux {
	h := handler.NewDriverHandler(svc, settlement)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/restaurants/{rid}/drivers", func(sr chi.Router) {
		sr.Use(middleware.RequireRestaurant)
		h.RegisterRoutes(sr)
	})
	return r
}

func testShift(t *testing.T, driverID uuid.UUID) database.DriverShift {
	t.Helper()
	return database.DriverShift{
		ID:           uuid.New(),
		DriverID:     driverID,
		OpeningFloat: testNumeric(t, "500.00"),
		Status:       "OPEN",
		OpenedAt:     time.Now(),
	}
}

// =====================
// Driver handler tests
// =====================

func TestDriverOpenShift_HappyPath(t *testing.T) {
	restaurantID := uuid.New()
	driverID := uuid.New()
	claims := testClaims(restaurantID, enum.UserRoleManager)

	svc := &mockDriverService{
		openShiftFn: func(ctx context.Context, rid, did uuid.UUID, openingFloat decimal.Decimal) (*database.DriverShift, error) {
			if did != driverID {
				t.Errorf("driver id: got %s, want %s", did, driverID)
			}
			if !openingFloat.Equal(decimal.RequireFromString("500.00")) {
				t.Errorf("opening float: got %s, want 500.00", openingFloat)
			}
			shift := testShift(t, did)
			return &shift, nil
		},
	}

	router := setupDriverRouter(svc, &mockSettlementService{})
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/drivers/"+driverID.String()+"/shifts",
		map[string]interface{}{"opening_float": "500.00"}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["opening_float"] != "500.00" {
		t.Errorf("opening_float: got %v, want 500.00", resp["opening_float"])
	}
}

func TestDriverOpenShift_AlreadyOpenConflict(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID, enum.UserRoleManager)

	svc := &mockDriverService{
		openShiftFn: func(ctx context.Context, rid, did uuid.UUID, openingFloat decimal.Decimal) (*database.DriverShift, error) {
			return nil, service.ErrShiftAlreadyOpen
		},
	}

	router := setupDriverRouter(svc, &mockSettlementService{})
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/drivers/"+uuid.New().String()+"/shifts",
		map[string]interface{}{"opening_float": "500.00"}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestDriverOpenShift_BadFloat(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID, enum.UserRoleManager)

	router := setupDriverRouter(&mockDriverService{}, &mockSettlementService{})
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/drivers/"+uuid.New().String()+"/shifts",
		map[string]interface{}{"opening_float": "five hundred"}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestDriverCloseShift_UnsettledOrdersConflict(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID, enum.UserRoleManager)

	svc := &mockDriverService{
		closeShiftFn: func(ctx context.Context, rid, did, closedBy uuid.UUID, closingActual decimal.Decimal) (*service.CloseShiftResult, error) {
			return nil, service.ErrUnsettledOrders
		},
	}

	router := setupDriverRouter(svc, &mockSettlementService{})
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/drivers/"+uuid.New().String()+"/shifts/close",
		map[string]interface{}{"closing_actual": "4200.00"}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestDriverCloseShift_ReturnsVariance(t *testing.T) {
	restaurantID := uuid.New()
	driverID := uuid.New()
	claims := testClaims(restaurantID, enum.UserRoleManager)

	svc := &mockDriverService{
		closeShiftFn: func(ctx context.Context, rid, did, closedBy uuid.UUID, closingActual decimal.Decimal) (*service.CloseShiftResult, error) {
			if closedBy != claims.UserID {
				t.Errorf("closed by: got %s, want %s", closedBy, claims.UserID)
			}
			shift := testShift(t, did)
			shift.Status = "CLOSED"
			return &service.CloseShiftResult{
				Shift:    shift,
				Expected: decimal.RequireFromString("500.00"),
				Variance: decimal.RequireFromString("-50.00"),
			}, nil
		},
	}

	router := setupDriverRouter(svc, &mockSettlementService{})
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/drivers/"+driverID.String()+"/shifts/close",
		map[string]interface{}{"closing_actual": "450.00"}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["expected"] != "500.00" {
		t.Errorf("expected: got %v, want 500.00", resp["expected"])
	}
	if resp["variance"] != "-50.00" {
		t.Errorf("variance: got %v, want -50.00", resp["variance"])
	}
}

func TestDriverSettle_HappyPath(t *testing.T) {
	restaurantID := uuid.New()
	driverID := uuid.New()
	claims := testClaims(restaurantID, enum.UserRoleCashier)

	orderID := uuid.New()
	svc := &mockSettlementService{
		settleFn: func(ctx context.Context, req service.SettleRequest) (*service.SettleResult, error) {
			if len(req.OrderIDs) != 1 || req.OrderIDs[0] != orderID {
				t.Errorf("order ids: got %v, want [%s]", req.OrderIDs, orderID)
			}
			if req.ProcessedBy != claims.UserID {
				t.Errorf("processed by: got %s, want %s", req.ProcessedBy, claims.UserID)
			}
			order := testOrder(t, restaurantID, claims.UserID)
			order.Status = enum.OrderStatusPaid
			return &service.SettleResult{
				Settlement: database.RiderSettlement{
					ID:              uuid.New(),
					DriverID:        req.DriverID,
					AmountExpected:  testNumeric(t, "2784.00"),
					AmountCollected: testNumeric(t, "2784.00"),
					Variance:        testNumeric(t, "0.00"),
					ProcessedBy:     req.ProcessedBy,
					CreatedAt:       time.Now(),
				},
				Orders:   []database.Order{order},
				Expected: decimal.RequireFromString("2784.00"),
				Variance: decimal.Zero,
			}, nil
		},
	}

	router := setupDriverRouter(&mockDriverService{}, svc)
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/drivers/"+driverID.String()+"/settlements",
		map[string]interface{}{
			"order_ids":        []string{orderID.String()},
			"amount_collected": "2784.00",
		}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["expected"] != "2784.00" {
		t.Errorf("expected: got %v, want 2784.00", resp["expected"])
	}
	settlement, ok := resp["settlement"].(map[string]interface{})
	if !ok {
		t.Fatalf("settlement missing from response: %s", rr.Body.String())
	}
	if settlement["amount_collected"] != "2784.00" {
		t.Errorf("amount_collected: got %v, want 2784.00", settlement["amount_collected"])
	}
}

func TestDriverSettle_EmptyOrderIDs(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID, enum.UserRoleCashier)

	router := setupDriverRouter(&mockDriverService{}, &mockSettlementService{})
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/drivers/"+uuid.New().String()+"/settlements",
		map[string]interface{}{"order_ids": []string{}, "amount_collected": "100.00"}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestDriverSettle_NotSettleableConflict(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID, enum.UserRoleCashier)

	svc := &mockSettlementService{
		settleFn: func(ctx context.Context, req service.SettleRequest) (*service.SettleResult, error) {
			return nil, service.ErrOrderNotSettleable
		},
	}

	router := setupDriverRouter(&mockDriverService{}, svc)
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/drivers/"+uuid.New().String()+"/settlements",
		map[string]interface{}{"order_ids": []string{uuid.New().String()}, "amount_collected": "100.00"}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestDriverList_IncludesOpenShift(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID, enum.UserRoleManager)

	driverID := uuid.New()
	svc := &mockDriverService{
		listFn: func(ctx context.Context, rid uuid.UUID) ([]service.DriverWithShift, error) {
			shift := testShift(t, driverID)
			return []service.DriverWithShift{
				{
					Driver: database.Driver{
						ID: driverID, RestaurantID: rid,
						FullName: "Bilal Hussain", Phone: "+923001234567",
						CashInHand: testNumeric(t, "500.00"),
					},
					Shift: &shift,
				},
				{
					Driver: database.Driver{
						ID: uuid.New(), RestaurantID: rid,
						FullName: "Imran Shah", Phone: "+923007654321",
						CashInHand: testNumeric(t, "0.00"),
					},
				},
			}, nil
		},
	}

	router := setupDriverRouter(svc, &mockSettlementService{})
	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/drivers", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var drivers []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&drivers); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(drivers) != 2 {
		t.Fatalf("drivers: got %d, want 2", len(drivers))
	}
	if _, ok := drivers[0]["shift"]; !ok {
		t.Error("first driver should include open shift")
	}
	if _, ok := drivers[1]["shift"]; ok {
		t.Error("second driver should have no shift")
	}
}
