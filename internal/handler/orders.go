package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Qaiser2raza/fireflow-api/internal/database"
	"github.com/Qaiser2raza/fireflow-api/internal/middleware"
	"github.com/Qaiser2raza/fireflow-api/internal/service"
	"github.com/Qaiser2raza/fireflow-api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	GetOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (*service.OrderResult, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	FireOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (*service.OrderResult, error)
	UpdateOrderItems(ctx context.Context, req service.UpdateOrderItemsRequest) (*service.OrderResult, error)
	ProcessPayment(ctx context.Context, req service.PaymentRequest) (*service.PaymentResult, error)
	VoidOrder(ctx context.Context, restaurantID, orderID uuid.UUID, reason string) (*service.OrderResult, error)
}

// DispatchServicer covers the delivery transitions exposed on the order
// resource. Satisfied by *service.DeliveryService.
type DispatchServicer interface {
	Dispatch(ctx context.Context, restaurantID, orderID, driverID uuid.UUID) (*database.Order, error)
	CompleteDelivery(ctx context.Context, restaurantID, orderID uuid.UUID) (*database.Order, error)
}

// OrderHandler handles order lifecycle endpoints.
type OrderHandler struct {
	svc      OrderServicer
	delivery DispatchServicer
	hub      Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, delivery DispatchServicer, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, delivery: delivery, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter:
// /restaurants/{rid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/fire", h.Fire)
	r.Patch("/{id}/items", h.UpdateItems)
	r.Post("/{id}/payment", h.Payment)
	r.Post("/{id}/void", h.Void)
	r.Post("/{id}/dispatch", h.Dispatch)
	r.Post("/{id}/delivered", h.Delivered)
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType       string                   `json:"order_type"`
	TableID         string                   `json:"table_id"`
	GuestCount      int32                    `json:"guest_count"`
	CustomerPhone   string                   `json:"customer_phone"`
	DeliveryAddress string                   `json:"delivery_address"`
	Items           []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Notes      string `json:"notes"`
}

type updateOrderItemsRequest struct {
	Add    []createOrderItemRequest `json:"add"`
	Update []updateItemRequest      `json:"update"`
	Remove []string                 `json:"remove"`
}

type updateItemRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int32  `json:"quantity"`
	Notes    string `json:"notes"`
}

type paymentRequest struct {
	Method   string `json:"payment_method"`
	Tendered string `json:"tendered_amount"`
}

type voidOrderRequest struct {
	Reason string `json:"reason"`
}

type dispatchRequest struct {
	DriverID string `json:"driver_id"`
}

type orderResponse struct {
	ID                 uuid.UUID           `json:"id"`
	RestaurantID       uuid.UUID           `json:"restaurant_id"`
	OrderNumber        string              `json:"order_number"`
	OrderType          string              `json:"order_type"`
	Status             string              `json:"status"`
	TableID            *string             `json:"table_id"`
	GuestCount         *int32              `json:"guest_count"`
	DriverID           *string             `json:"driver_id"`
	CustomerPhone      *string             `json:"customer_phone"`
	DeliveryAddress    *string             `json:"delivery_address"`
	Subtotal           string              `json:"subtotal"`
	TaxAmount          string              `json:"tax_amount"`
	ServiceCharge      string              `json:"service_charge"`
	DeliveryFee        string              `json:"delivery_fee"`
	TotalAmount        string              `json:"total_amount"`
	IsSettledWithRider bool                `json:"is_settled_with_rider"`
	CancelReason       *string             `json:"cancel_reason"`
	CreatedBy          uuid.UUID           `json:"created_by"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	Items              []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	UnitPrice  string    `json:"unit_price"`
	Quantity   int32     `json:"quantity"`
	Status     string    `json:"status"`
	Station    string    `json:"station"`
	Notes      *string   `json:"notes"`
}

type paymentResponse struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	PaymentMethod  string    `json:"payment_method"`
	Amount         string    `json:"amount"`
	TenderedAmount *string   `json:"tendered_amount"`
	ChangeAmount   *string   `json:"change_amount"`
	ProcessedBy    uuid.UUID `json:"processed_by"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// paymentResultResponse pairs the payment with the paid order and the change
// the cashier hands back.
type paymentResultResponse struct {
	Payment paymentResponse `json:"payment"`
	Order   orderResponse   `json:"order"`
	Change  string          `json:"change"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// Create handles POST /restaurants/{rid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.OrderType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_type is required"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}
	for i, item := range req.Items {
		if item.MenuItemID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "menu_item_id is required"),
			})
			return
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return
		}
	}

	svcItems := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		svcItems[i] = service.CreateOrderItemRequest{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Notes:      item.Notes,
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		RestaurantID:    restaurantID,
		CreatedBy:       claims.UserID,
		OrderType:       req.OrderType,
		TableID:         req.TableID,
		GuestCount:      req.GuestCount,
		CustomerPhone:   req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
		Items:           svcItems,
	})
	if err != nil {
		h.writeServiceError(w, err, "create order")
		return
	}

	resp := toOrderResponse(result)
	h.hub.Broadcast(restaurantID, ws.EventOrderCreated, resp)
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /restaurants/{rid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		RestaurantID: restaurantID,
		Limit:        int32(limit),
		Offset:       int32(offset),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("type"); s != "" {
		params.OrderType = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t, Valid: true}
	}

	orders, err := h.svc.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /restaurants/{rid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	result, err := h.svc.GetOrder(r.Context(), restaurantID, orderID)
	if err != nil {
		h.writeServiceError(w, err, "get order")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// Fire handles POST /restaurants/{rid}/orders/{id}/fire. All PENDING items go
// to their stations; quantities freeze.
func (h *OrderHandler) Fire(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	result, err := h.svc.FireOrder(r.Context(), restaurantID, orderID)
	if err != nil {
		h.writeServiceError(w, err, "fire order")
		return
	}

	resp := toOrderResponse(result)
	h.hub.Broadcast(restaurantID, ws.EventOrderUpdated, resp)
	writeJSON(w, http.StatusOK, resp)
}

// UpdateItems handles PATCH /restaurants/{rid}/orders/{id}/items.
func (h *OrderHandler) UpdateItems(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req updateOrderItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Add) == 0 && len(req.Update) == 0 && len(req.Remove) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no changes supplied"})
		return
	}

	add := make([]service.CreateOrderItemRequest, len(req.Add))
	for i, a := range req.Add {
		add[i] = service.CreateOrderItemRequest{MenuItemID: a.MenuItemID, Quantity: a.Quantity, Notes: a.Notes}
	}
	update := make([]service.UpdateItemRequest, len(req.Update))
	for i, u := range req.Update {
		update[i] = service.UpdateItemRequest{ItemID: u.ItemID, Quantity: u.Quantity, Notes: u.Notes}
	}

	result, err := h.svc.UpdateOrderItems(r.Context(), service.UpdateOrderItemsRequest{
		RestaurantID: restaurantID,
		OrderID:      orderID,
		Add:          add,
		Update:       update,
		Remove:       req.Remove,
	})
	if err != nil {
		h.writeServiceError(w, err, "update order items")
		return
	}

	resp := toOrderResponse(result)
	h.hub.Broadcast(restaurantID, ws.EventOrderUpdated, resp)
	writeJSON(w, http.StatusOK, resp)
}

// Payment handles POST /restaurants/{rid}/orders/{id}/payment.
func (h *OrderHandler) Payment(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Method == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method is required"})
		return
	}

	result, err := h.svc.ProcessPayment(r.Context(), service.PaymentRequest{
		RestaurantID: restaurantID,
		OrderID:      orderID,
		Method:       req.Method,
		Tendered:     req.Tendered,
		ProcessedBy:  claims.UserID,
	})
	if err != nil {
		h.writeServiceError(w, err, "process payment")
		return
	}

	resp := paymentResultResponse{
		Payment: dbPaymentToResponse(result.Payment),
		Order:   dbOrderToResponse(result.Order),
		Change:  result.Change.StringFixed(2),
	}
	h.hub.Broadcast(restaurantID, ws.EventOrderPaid, resp.Order)
	writeJSON(w, http.StatusOK, resp)
}

// Void handles POST /restaurants/{rid}/orders/{id}/void.
func (h *OrderHandler) Void(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req voidOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.VoidOrder(r.Context(), restaurantID, orderID, req.Reason)
	if err != nil {
		h.writeServiceError(w, err, "void order")
		return
	}

	resp := toOrderResponse(result)
	h.hub.Broadcast(restaurantID, ws.EventOrderVoided, resp)
	writeJSON(w, http.StatusOK, resp)
}

// Dispatch handles POST /restaurants/{rid}/orders/{id}/dispatch.
func (h *OrderHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	driverID, err := uuid.Parse(req.DriverID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid driver_id"})
		return
	}

	order, err := h.delivery.Dispatch(r.Context(), restaurantID, orderID, driverID)
	if err != nil {
		h.writeServiceError(w, err, "dispatch order")
		return
	}

	resp := dbOrderToResponse(*order)
	h.hub.Broadcast(restaurantID, ws.EventOrderUpdated, resp)
	writeJSON(w, http.StatusOK, resp)
}

// Delivered handles POST /restaurants/{rid}/orders/{id}/delivered. Custody of
// the order's cash value moves to the assigned rider.
func (h *OrderHandler) Delivered(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	order, err := h.delivery.CompleteDelivery(r.Context(), restaurantID, orderID)
	if err != nil {
		h.writeServiceError(w, err, "complete delivery")
		return
	}

	resp := dbOrderToResponse(*order)
	h.hub.Broadcast(restaurantID, ws.EventOrderUpdated, resp)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *OrderHandler) pathIDs(w http.ResponseWriter, r *http.Request) (restaurantID, orderID uuid.UUID, ok bool) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return uuid.Nil, uuid.Nil, false
	}
	orderID, err = uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return restaurantID, orderID, true
}

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

// isOrderValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isOrderValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidOrderType) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrMenuItemNotFound) ||
		errors.Is(err, service.ErrTableRequired) ||
		errors.Is(err, service.ErrAddressRequired) ||
		errors.Is(err, service.ErrPhoneRequired) ||
		errors.Is(err, service.ErrTenderedRequired) ||
		errors.Is(err, service.ErrInsufficientCash) ||
		errors.Is(err, service.ErrInvalidMethod) ||
		errors.Is(err, service.ErrReasonRequired)
}

// isOrderConflictError checks for state conflicts that should result in
// 409 Conflict: the order exists but the requested transition lost a race or
// is not legal from its current state.
func isOrderConflictError(err error) bool {
	return errors.Is(err, service.ErrTableUnavailable) ||
		errors.Is(err, service.ErrOrderTerminal) ||
		errors.Is(err, service.ErrOrderNotEditable) ||
		errors.Is(err, service.ErrItemNotPending) ||
		errors.Is(err, service.ErrNoPendingItems) ||
		errors.Is(err, service.ErrItemsPending) ||
		errors.Is(err, service.ErrDeliveryViaRider) ||
		errors.Is(err, service.ErrOrderNotVoidable) ||
		errors.Is(err, service.ErrOrderAlreadyPaid) ||
		errors.Is(err, service.ErrStatusChanged) ||
		errors.Is(err, service.ErrNotDispatchable) ||
		errors.Is(err, service.ErrNotOutForDelivery) ||
		errors.Is(err, service.ErrNoOpenShift)
}

func (h *OrderHandler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrDriverNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case isOrderConflictError(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case isOrderValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func toOrderResponse(result *service.OrderResult) orderResponse {
	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, item := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}
	return resp
}

// dbOrderToResponse converts a database.Order to an orderResponse without
// items, for list and transition endpoints.
func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:                 o.ID,
		RestaurantID:       o.RestaurantID,
		OrderNumber:        o.OrderNumber,
		OrderType:          o.OrderType,
		Status:             o.Status,
		TableID:            pgUUIDPtr(o.TableID),
		DriverID:           pgUUIDPtr(o.DriverID),
		CustomerPhone:      pgTextPtr(o.CustomerPhone),
		DeliveryAddress:    pgTextPtr(o.DeliveryAddress),
		Subtotal:           numericToString(o.Subtotal),
		TaxAmount:          numericToString(o.TaxAmount),
		ServiceCharge:      numericToString(o.ServiceCharge),
		DeliveryFee:        numericToString(o.DeliveryFee),
		TotalAmount:        numericToString(o.TotalAmount),
		IsSettledWithRider: o.IsSettledWithRider,
		CancelReason:       pgTextPtr(o.CancelReason),
		CreatedBy:          o.CreatedBy,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	if o.GuestCount.Valid {
		resp.GuestCount = &o.GuestCount.Int32
	}
	return resp
}

func dbOrderItemToResponse(item database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:         item.ID,
		MenuItemID: item.MenuItemID,
		Name:       item.Name,
		UnitPrice:  numericToString(item.UnitPrice),
		Quantity:   item.Quantity,
		Status:     item.Status,
		Station:    item.Station,
		Notes:      pgTextPtr(item.Notes),
	}
}

func dbPaymentToResponse(p database.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		OrderID:        p.OrderID,
		PaymentMethod:  p.PaymentMethod,
		Amount:         numericToString(p.Amount),
		TenderedAmount: pgNumericPtr(p.TenderedAmount),
		ChangeAmount:   pgNumericPtr(p.ChangeAmount),
		ProcessedBy:    p.ProcessedBy,
		ProcessedAt:    p.ProcessedAt,
	}
}
