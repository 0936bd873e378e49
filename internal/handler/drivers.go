package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Qaiser2raza/fireflow-api/internal/database"
	"github.com/Qaiser2raza/fireflow-api/internal/middleware"
	"github.com/Qaiser2raza/fireflow-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DriverServicer defines the shift lifecycle methods needed by driver
// handlers. Satisfied by *service.DeliveryService.
type DriverServicer interface {
	ListDrivers(ctx context.Context, restaurantID uuid.UUID) ([]service.DriverWithShift, error)
	OpenShift(ctx context.Context, restaurantID, driverID uuid.UUID, openingFloat decimal.Decimal) (*database.DriverShift, error)
	CloseShift(ctx context.Context, restaurantID, driverID, closedBy uuid.UUID, closingActual decimal.Decimal) (*service.CloseShiftResult, error)
}

// SettlementServicer defines the cash reconciliation methods needed by driver
// handlers. Satisfied by *service.SettlementService.
type SettlementServicer interface {
	Settle(ctx context.Context, req service.SettleRequest) (*service.SettleResult, error)
	PendingOrders(ctx context.Context, restaurantID, driverID uuid.UUID) ([]database.Order, error)
	History(ctx context.Context, restaurantID, driverID uuid.UUID) ([]service.SettlementWithOrders, error)
}

// DriverHandler handles rider shift and settlement endpoints.
type DriverHandler struct {
	svc        DriverServicer
	settlement SettlementServicer
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(svc DriverServicer, settlement SettlementServicer) *DriverHandler {
	return &DriverHandler{svc: svc, settlement: settlement}
}

// RegisterRoutes registers driver endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter:
// /restaurants/{rid}/drivers
func (h *DriverHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{id}/shifts", h.OpenShift)
	r.Post("/{id}/shifts/close", h.CloseShift)
	r.Get("/{id}/settlements/pending", h.PendingOrders)
	r.Post("/{id}/settlements", h.Settle)
	r.Get("/{id}/settlements", h.History)
}

// --- Request / Response types ---

type openShiftRequest struct {
	OpeningFloat string `json:"opening_float"`
}

type closeShiftRequest struct {
	ClosingActual string `json:"closing_actual"`
}

type settleRequest struct {
	OrderIDs        []string `json:"order_ids"`
	AmountCollected string   `json:"amount_collected"`
}

type driverResponse struct {
	ID         uuid.UUID      `json:"id"`
	FullName   string         `json:"full_name"`
	Phone      string         `json:"phone"`
	CashInHand string         `json:"cash_in_hand"`
	Shift      *shiftResponse `json:"shift,omitempty"`
}

type shiftResponse struct {
	ID            uuid.UUID  `json:"id"`
	DriverID      uuid.UUID  `json:"driver_id"`
	OpeningFloat  string     `json:"opening_float"`
	Status        string     `json:"status"`
	OpenedAt      time.Time  `json:"opened_at"`
	ClosedAt      *time.Time `json:"closed_at"`
	ClosingActual *string    `json:"closing_actual"`
	Variance      *string    `json:"variance"`
}

type closeShiftResponse struct {
	Shift    shiftResponse `json:"shift"`
	Expected string        `json:"expected"`
	Variance string        `json:"variance"`
}

type settlementResponse struct {
	ID              uuid.UUID                 `json:"id"`
	DriverID        uuid.UUID                 `json:"driver_id"`
	AmountExpected  string                    `json:"amount_expected"`
	AmountCollected string                    `json:"amount_collected"`
	Variance        string                    `json:"variance"`
	ProcessedBy     uuid.UUID                 `json:"processed_by"`
	CreatedAt       time.Time                 `json:"created_at"`
	Orders          []settlementOrderResponse `json:"orders,omitempty"`
}

type settlementOrderResponse struct {
	OrderID uuid.UUID `json:"order_id"`
	Amount  string    `json:"amount"`
}

type settleResultResponse struct {
	Settlement settlementResponse `json:"settlement"`
	Orders     []orderResponse    `json:"orders"`
	Expected   string             `json:"expected"`
	Variance   string             `json:"variance"`
}

// --- Handlers ---

// List handles GET /restaurants/{rid}/drivers.
func (h *DriverHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	drivers, err := h.svc.ListDrivers(r.Context(), restaurantID)
	if err != nil {
		log.Printf("ERROR: list drivers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]driverResponse, len(drivers))
	for i, d := range drivers {
		resp[i] = driverResponse{
			ID:         d.Driver.ID,
			FullName:   d.Driver.FullName,
			Phone:      d.Driver.Phone,
			CashInHand: numericToString(d.Driver.CashInHand),
		}
		if d.Shift != nil {
			s := dbShiftToResponse(*d.Shift)
			resp[i].Shift = &s
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// OpenShift handles POST /restaurants/{rid}/drivers/{id}/shifts.
func (h *DriverHandler) OpenShift(w http.ResponseWriter, r *http.Request) {
	restaurantID, driverID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req openShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	openingFloat, err := decimal.NewFromString(req.OpeningFloat)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid opening_float"})
		return
	}

	shift, err := h.svc.OpenShift(r.Context(), restaurantID, driverID, openingFloat)
	if err != nil {
		h.writeServiceError(w, err, "open shift")
		return
	}
	writeJSON(w, http.StatusCreated, dbShiftToResponse(*shift))
}

// CloseShift handles POST /restaurants/{rid}/drivers/{id}/shifts/close.
func (h *DriverHandler) CloseShift(w http.ResponseWriter, r *http.Request) {
	restaurantID, driverID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req closeShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	closingActual, err := decimal.NewFromString(req.ClosingActual)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid closing_actual"})
		return
	}

	result, err := h.svc.CloseShift(r.Context(), restaurantID, driverID, claims.UserID, closingActual)
	if err != nil {
		h.writeServiceError(w, err, "close shift")
		return
	}

	writeJSON(w, http.StatusOK, closeShiftResponse{
		Shift:    dbShiftToResponse(result.Shift),
		Expected: result.Expected.StringFixed(2),
		Variance: result.Variance.StringFixed(2),
	})
}

// PendingOrders handles GET /restaurants/{rid}/drivers/{id}/settlements/pending.
func (h *DriverHandler) PendingOrders(w http.ResponseWriter, r *http.Request) {
	restaurantID, driverID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	orders, err := h.settlement.PendingOrders(r.Context(), restaurantID, driverID)
	if err != nil {
		h.writeServiceError(w, err, "pending settlement orders")
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Settle handles POST /restaurants/{rid}/drivers/{id}/settlements.
func (h *DriverHandler) Settle(w http.ResponseWriter, r *http.Request) {
	restaurantID, driverID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.OrderIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_ids are required"})
		return
	}
	collected, err := decimal.NewFromString(req.AmountCollected)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount_collected"})
		return
	}
	orderIDs := make([]uuid.UUID, len(req.OrderIDs))
	for i, s := range req.OrderIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID in order_ids"})
			return
		}
		orderIDs[i] = id
	}

	result, err := h.settlement.Settle(r.Context(), service.SettleRequest{
		RestaurantID:    restaurantID,
		DriverID:        driverID,
		OrderIDs:        orderIDs,
		AmountCollected: collected,
		ProcessedBy:     claims.UserID,
	})
	if err != nil {
		h.writeServiceError(w, err, "settle rider")
		return
	}

	orders := make([]orderResponse, len(result.Orders))
	for i, o := range result.Orders {
		orders[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusCreated, settleResultResponse{
		Settlement: dbSettlementToResponse(result.Settlement, nil),
		Orders:     orders,
		Expected:   result.Expected.StringFixed(2),
		Variance:   result.Variance.StringFixed(2),
	})
}

// History handles GET /restaurants/{rid}/drivers/{id}/settlements.
func (h *DriverHandler) History(w http.ResponseWriter, r *http.Request) {
	restaurantID, driverID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	history, err := h.settlement.History(r.Context(), restaurantID, driverID)
	if err != nil {
		h.writeServiceError(w, err, "settlement history")
		return
	}

	resp := make([]settlementResponse, len(history))
	for i, s := range history {
		resp[i] = dbSettlementToResponse(s.Settlement, s.Orders)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *DriverHandler) pathIDs(w http.ResponseWriter, r *http.Request) (restaurantID, driverID uuid.UUID, ok bool) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return uuid.Nil, uuid.Nil, false
	}
	driverID, err = uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid driver ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return restaurantID, driverID, true
}

func (h *DriverHandler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrDriverNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrShiftAlreadyOpen),
		errors.Is(err, service.ErrNoOpenShift),
		errors.Is(err, service.ErrUnsettledOrders),
		errors.Is(err, service.ErrOrderNotSettleable),
		errors.Is(err, service.ErrStatusChanged):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidFloat),
		errors.Is(err, service.ErrNoOrdersToSettle),
		errors.Is(err, service.ErrNegativeCollected):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func dbShiftToResponse(s database.DriverShift) shiftResponse {
	return shiftResponse{
		ID:            s.ID,
		DriverID:      s.DriverID,
		OpeningFloat:  numericToString(s.OpeningFloat),
		Status:        s.Status,
		OpenedAt:      s.OpenedAt,
		ClosedAt:      pgTimePtr(s.ClosedAt),
		ClosingActual: pgNumericPtr(s.ClosingActual),
		Variance:      pgNumericPtr(s.Variance),
	}
}

func dbSettlementToResponse(s database.RiderSettlement, orders []database.SettlementOrder) settlementResponse {
	resp := settlementResponse{
		ID:              s.ID,
		DriverID:        s.DriverID,
		AmountExpected:  numericToString(s.AmountExpected),
		AmountCollected: numericToString(s.AmountCollected),
		Variance:        numericToString(s.Variance),
		ProcessedBy:     s.ProcessedBy,
		CreatedAt:       s.CreatedAt,
	}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, settlementOrderResponse{
			OrderID: o.OrderID,
			Amount:  numericToString(o.Amount),
		})
	}
	return resp
}
