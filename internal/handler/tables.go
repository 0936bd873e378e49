package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Qaiser2raza/fireflow-api/internal/database"
	"github.com/Qaiser2raza/fireflow-api/internal/service"
	"github.com/Qaiser2raza/fireflow-api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TableServicer defines the service methods needed by table handlers.
// Satisfied by *service.TableService.
type TableServicer interface {
	ListTables(ctx context.Context, restaurantID uuid.UUID) ([]database.DiningTable, error)
	SetTableStatus(ctx context.Context, restaurantID, tableID uuid.UUID, next string) (*database.DiningTable, error)
}

// TableHandler handles floor plan endpoints.
type TableHandler struct {
	svc TableServicer
	hub Broadcaster
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(svc TableServicer, hub Broadcaster) *TableHandler {
	return &TableHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers table endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter:
// /restaurants/{rid}/tables
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Patch("/{id}/status", h.SetStatus)
}

// --- Request / Response types ---

type tableStatusRequest struct {
	Status string `json:"status"`
}

type tableResponse struct {
	ID               uuid.UUID `json:"id"`
	TableNumber      int32     `json:"table_number"`
	Capacity         int32     `json:"capacity"`
	Status           string    `json:"status"`
	ServerID         *string   `json:"server_id"`
	ActiveOrderID    *string   `json:"active_order_id"`
	LastStatusChange time.Time `json:"last_status_change"`
}

// --- Handlers ---

// List handles GET /restaurants/{rid}/tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	tables, err := h.svc.ListTables(r.Context(), restaurantID)
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = dbTableToResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetStatus handles PATCH /restaurants/{rid}/tables/{id}/status. Covers the
// operator-declared part of the bus cycle (DIRTY, back to AVAILABLE).
func (h *TableHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	var req tableStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	table, err := h.svc.SetTableStatus(r.Context(), restaurantID, tableID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTableNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidTableStatus),
			errors.Is(err, service.ErrTableChanged),
			errors.Is(err, service.ErrTableHoldsOrder):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: set table status: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := dbTableToResponse(*table)
	h.hub.Broadcast(restaurantID, ws.EventTableUpdated, resp)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func dbTableToResponse(t database.DiningTable) tableResponse {
	return tableResponse{
		ID:               t.ID,
		TableNumber:      t.TableNumber,
		Capacity:         t.Capacity,
		Status:           t.Status,
		ServerID:         pgUUIDPtr(t.ServerID),
		ActiveOrderID:    pgUUIDPtr(t.ActiveOrderID),
		LastStatusChange: t.LastStatusChange,
	}
}
