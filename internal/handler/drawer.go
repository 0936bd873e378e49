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
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DrawerServicer defines the service methods needed by drawer handlers.
// Satisfied by *service.DrawerService.
type DrawerServicer interface {
	OpenSession(ctx context.Context, restaurantID, openedBy uuid.UUID, openingBalance decimal.Decimal) (*database.DrawerSession, error)
	RecordPayout(ctx context.Context, restaurantID uuid.UUID, amount decimal.Decimal, reason string) (*database.LedgerEntry, error)
	CloseSession(ctx context.Context, restaurantID, closedBy uuid.UUID, closingActual decimal.Decimal) (*service.ZReport, error)
	CurrentSession(ctx context.Context, restaurantID uuid.UUID) (*service.ZReport, error)
	Report(ctx context.Context, restaurantID, sessionID uuid.UUID) (*service.ZReport, error)
	ListSessions(ctx context.Context, restaurantID uuid.UUID, limit, offset int32) ([]database.DrawerSession, error)
}

// DrawerHandler handles cash drawer endpoints.
type DrawerHandler struct {
	svc DrawerServicer
}

// NewDrawerHandler creates a new DrawerHandler.
func NewDrawerHandler(svc DrawerServicer) *DrawerHandler {
	return &DrawerHandler{svc: svc}
}

// RegisterRoutes registers drawer endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter:
// /restaurants/{rid}/drawer
func (h *DrawerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.OpenSession)
	r.Get("/sessions", h.ListSessions)
	r.Get("/sessions/current", h.CurrentSession)
	r.Post("/sessions/close", h.CloseSession)
	r.Get("/sessions/{id}/report", h.Report)
	r.Post("/payouts", h.RecordPayout)
}

// --- Request / Response types ---

type openSessionRequest struct {
	OpeningBalance string `json:"opening_balance"`
}

type closeSessionRequest struct {
	ClosingActual string `json:"closing_actual"`
}

type payoutRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

type sessionResponse struct {
	ID             uuid.UUID  `json:"id"`
	RestaurantID   uuid.UUID  `json:"restaurant_id"`
	OpenedBy       uuid.UUID  `json:"opened_by"`
	OpeningBalance string     `json:"opening_balance"`
	Status         string     `json:"status"`
	OpenedAt       time.Time  `json:"opened_at"`
	ClosedAt       *time.Time `json:"closed_at"`
	ClosedBy       *string    `json:"closed_by"`
	ClosingActual  *string    `json:"closing_actual"`
	ExpectedCash   *string    `json:"expected_cash"`
	Variance       *string    `json:"variance"`
	TotalSales     *string    `json:"total_sales"`
	TotalPayouts   *string    `json:"total_payouts"`
}

type ledgerEntryResponse struct {
	ID            uuid.UUID `json:"id"`
	EntryType     string    `json:"entry_type"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   *string   `json:"reference_id"`
	AccountID     *string   `json:"account_id"`
	Amount        string    `json:"amount"`
	Notes         *string   `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}

type zReportResponse struct {
	Session      sessionResponse       `json:"session"`
	TotalSales   string                `json:"total_sales"`
	TotalPayouts string                `json:"total_payouts"`
	ExpectedCash string                `json:"expected_cash"`
	Variance     string                `json:"variance"`
	Entries      []ledgerEntryResponse `json:"entries"`
}

// --- Handlers ---

// OpenSession handles POST /restaurants/{rid}/drawer/sessions.
func (h *DrawerHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
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

	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	balance, err := decimal.NewFromString(req.OpeningBalance)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid opening_balance"})
		return
	}

	session, err := h.svc.OpenSession(r.Context(), restaurantID, claims.UserID, balance)
	if err != nil {
		h.writeServiceError(w, err, "open drawer session")
		return
	}
	writeJSON(w, http.StatusCreated, dbSessionToResponse(*session))
}

// ListSessions handles GET /restaurants/{rid}/drawer/sessions.
func (h *DrawerHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
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
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	sessions, err := h.svc.ListSessions(r.Context(), restaurantID, int32(limit), int32(offset))
	if err != nil {
		log.Printf("ERROR: list drawer sessions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]sessionResponse, len(sessions))
	for i, s := range sessions {
		resp[i] = dbSessionToResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CurrentSession handles GET /restaurants/{rid}/drawer/sessions/current.
func (h *DrawerHandler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	report, err := h.svc.CurrentSession(r.Context(), restaurantID)
	if err != nil {
		h.writeServiceError(w, err, "current drawer session")
		return
	}
	writeJSON(w, http.StatusOK, toZReportResponse(report))
}

// CloseSession handles POST /restaurants/{rid}/drawer/sessions/close. Returns
// the Z-report for the closed session.
func (h *DrawerHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
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

	var req closeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	closingActual, err := decimal.NewFromString(req.ClosingActual)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid closing_actual"})
		return
	}

	report, err := h.svc.CloseSession(r.Context(), restaurantID, claims.UserID, closingActual)
	if err != nil {
		h.writeServiceError(w, err, "close drawer session")
		return
	}
	writeJSON(w, http.StatusOK, toZReportResponse(report))
}

// Report handles GET /restaurants/{rid}/drawer/sessions/{id}/report.
func (h *DrawerHandler) Report(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	report, err := h.svc.Report(r.Context(), restaurantID, sessionID)
	if err != nil {
		h.writeServiceError(w, err, "drawer session report")
		return
	}
	writeJSON(w, http.StatusOK, toZReportResponse(report))
}

// RecordPayout handles POST /restaurants/{rid}/drawer/payouts.
func (h *DrawerHandler) RecordPayout(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	var req payoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}

	entry, err := h.svc.RecordPayout(r.Context(), restaurantID, amount, req.Reason)
	if err != nil {
		h.writeServiceError(w, err, "record payout")
		return
	}
	writeJSON(w, http.StatusCreated, dbLedgerEntryToResponse(*entry))
}

// --- Helpers ---

func (h *DrawerHandler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrSessionAlreadyOpen), errors.Is(err, service.ErrNoOpenSession):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidBalance),
		errors.Is(err, service.ErrReasonForPayout):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func dbSessionToResponse(s database.DrawerSession) sessionResponse {
	return sessionResponse{
		ID:             s.ID,
		RestaurantID:   s.RestaurantID,
		OpenedBy:       s.OpenedBy,
		OpeningBalance: numericToString(s.OpeningBalance),
		Status:         s.Status,
		OpenedAt:       s.OpenedAt,
		ClosedAt:       pgTimePtr(s.ClosedAt),
		ClosedBy:       pgUUIDPtr(s.ClosedBy),
		ClosingActual:  pgNumericPtr(s.ClosingActual),
		ExpectedCash:   pgNumericPtr(s.ExpectedCash),
		Variance:       pgNumericPtr(s.Variance),
		TotalSales:     pgNumericPtr(s.TotalSales),
		TotalPayouts:   pgNumericPtr(s.TotalPayouts),
	}
}

func dbLedgerEntryToResponse(e database.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:            e.ID,
		EntryType:     e.EntryType,
		ReferenceType: e.ReferenceType,
		ReferenceID:   pgUUIDPtr(e.ReferenceID),
		AccountID:     pgUUIDPtr(e.AccountID),
		Amount:        numericToString(e.Amount),
		Notes:         pgTextPtr(e.Notes),
		CreatedAt:     e.CreatedAt,
	}
}

func toZReportResponse(r *service.ZReport) zReportResponse {
	entries := make([]ledgerEntryResponse, len(r.Entries))
	for i, e := range r.Entries {
		entries[i] = dbLedgerEntryToResponse(e)
	}
	return zReportResponse{
		Session:      dbSessionToResponse(r.Session),
		TotalSales:   r.TotalSales.StringFixed(2),
		TotalPayouts: r.TotalPayouts.StringFixed(2),
		ExpectedCash: r.ExpectedCash.StringFixed(2),
		Variance:     r.Variance.StringFixed(2),
		Entries:      entries,
	}
}
