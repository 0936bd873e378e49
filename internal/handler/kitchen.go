package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Qaiser2raza/fireflow-api/internal/database"
	"github.com/Qaiser2raza/fireflow-api/internal/service"
	"github.com/Qaiser2raza/fireflow-api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// KitchenServicer defines the service methods needed by KDS handlers.
// Satisfied by *service.KitchenService.
type KitchenServicer interface {
	SetItemStatus(ctx context.Context, restaurantID, orderID, itemID uuid.UUID, next string) (*service.ItemStatusResult, error)
	ReadyAllStation(ctx context.Context, restaurantID uuid.UUID, station string) ([]database.Order, error)
	Undo(ctx context.Context, restaurantID uuid.UUID) error
	Queue(ctx context.Context, restaurantID uuid.UUID, station string) ([]database.KitchenQueueRow, error)
}

// KitchenHandler handles the kitchen display endpoints.
type KitchenHandler struct {
	svc KitchenServicer
	hub Broadcaster
}

// NewKitchenHandler creates a new KitchenHandler.
func NewKitchenHandler(svc KitchenServicer, hub Broadcaster) *KitchenHandler {
	return &KitchenHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers KDS endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter:
// /restaurants/{rid}/kitchen
func (h *KitchenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/queue", h.Queue)
	r.Patch("/orders/{id}/items/{itemID}/status", h.SetItemStatus)
	r.Post("/stations/{station}/ready", h.ReadyAllStation)
	r.Post("/undo", h.Undo)
}

// --- Request / Response types ---

type setItemStatusRequest struct {
	Status string `json:"status"`
}

type itemStatusResponse struct {
	Item  orderItemResponse `json:"item"`
	Order orderResponse     `json:"order"`
	Table *tableResponse    `json:"table,omitempty"`
}

type queueRowResponse struct {
	Item        orderItemResponse `json:"item"`
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	OrderType   string            `json:"order_type"`
}

// --- Handlers ---

// Queue handles GET /restaurants/{rid}/kitchen/queue. The station query
// parameter filters to one station; absent means all stations.
func (h *KitchenHandler) Queue(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	queue, err := h.svc.Queue(r.Context(), restaurantID, r.URL.Query().Get("station"))
	if err != nil {
		log.Printf("ERROR: kitchen queue: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]queueRowResponse, len(queue))
	for i, row := range queue {
		resp[i] = queueRowResponse{
			Item:        dbOrderItemToResponse(row.Item),
			OrderID:     row.Item.OrderID,
			OrderNumber: row.OrderNumber,
			OrderType:   row.OrderType,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetItemStatus handles PATCH /restaurants/{rid}/kitchen/orders/{id}/items/{itemID}/status.
func (h *KitchenHandler) SetItemStatus(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req setItemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	result, err := h.svc.SetItemStatus(r.Context(), restaurantID, orderID, itemID, req.Status)
	if err != nil {
		h.writeServiceError(w, err, "set item status")
		return
	}

	resp := itemStatusResponse{
		Item:  dbOrderItemToResponse(result.Item),
		Order: dbOrderToResponse(result.Order),
	}
	if result.Table != nil {
		t := dbTableToResponse(*result.Table)
		resp.Table = &t
	}

	h.hub.Broadcast(restaurantID, ws.EventItemUpdated, resp)
	if resp.Table != nil {
		h.hub.Broadcast(restaurantID, ws.EventTableUpdated, *resp.Table)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReadyAllStation handles POST /restaurants/{rid}/kitchen/stations/{station}/ready.
func (h *KitchenHandler) ReadyAllStation(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}
	station := chi.URLParam(r, "station")
	if station == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "station is required"})
		return
	}

	orders, err := h.svc.ReadyAllStation(r.Context(), restaurantID, station)
	if err != nil {
		h.writeServiceError(w, err, "ready all station")
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
		h.hub.Broadcast(restaurantID, ws.EventOrderUpdated, resp[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// Undo handles POST /restaurants/{rid}/kitchen/undo. Reverts the most recent
// KDS action for this restaurant.
func (h *KitchenHandler) Undo(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	if err := h.svc.Undo(r.Context(), restaurantID); err != nil {
		if errors.Is(err, service.ErrNothingToUndo) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: kitchen undo: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Broadcast(restaurantID, ws.EventKitchenUndone, map[string]string{"restaurant_id": restaurantID.String()})
	writeJSON(w, http.StatusOK, map[string]string{"status": "undone"})
}

// --- Helpers ---

func (h *KitchenHandler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderTerminal), errors.Is(err, service.ErrItemChanged):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidItemStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
