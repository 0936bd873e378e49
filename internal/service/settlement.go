package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Qaiser2raza/fireflow-api/internal/database"
	"github.com/Qaiser2raza/fireflow-api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the settlement service.
var (
	ErrNoOrdersToSettle   = errors.New("no orders to settle")
	ErrOrderNotSettleable = errors.New("order is not settleable for this rider")
	ErrNegativeCollected  = errors.New("amount_collected must be >= 0")
)

// SettlementStore defines the DB methods rider settlement needs.
type SettlementStore interface {
	GetDriverForUpdate(ctx context.Context, arg database.GetDriverParams) (database.Driver, error)
	SettleOrderWithRider(ctx context.Context, arg database.SettleOrderWithRiderParams) (database.Order, error)
	ListUnsettledDeliveredOrders(ctx context.Context, driverID uuid.UUID) ([]database.Order, error)
	CreateRiderSettlement(ctx context.Context, arg database.CreateRiderSettlementParams) (database.RiderSettlement, error)
	CreateSettlementOrder(ctx context.Context, arg database.CreateSettlementOrderParams) error
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	SubtractDriverCash(ctx context.Context, arg database.AdjustDriverCashParams) (database.Driver, error)
	GetOpenDrawerSession(ctx context.Context, restaurantID uuid.UUID) (database.DrawerSession, error)
	CreateLedgerEntry(ctx context.Context, arg database.CreateLedgerEntryParams) (database.LedgerEntry, error)
	ListSettlementsByDriver(ctx context.Context, driverID uuid.UUID) ([]database.RiderSettlement, error)
	ListSettlementOrders(ctx context.Context, settlementID uuid.UUID) ([]database.SettlementOrder, error)
}

// NewSettlementStore creates a SettlementStore from a DBTX.
type NewSettlementStore func(db database.DBTX) SettlementStore

// SettleRequest is the validated input for settling a batch of delivered
// orders with a rider.
type SettleRequest struct {
	RestaurantID    uuid.UUID
	DriverID        uuid.UUID
	OrderIDs        []uuid.UUID
	AmountCollected decimal.Decimal
	ProcessedBy     uuid.UUID
}

// SettleResult is an accepted settlement.
type SettleResult struct {
	Settlement database.RiderSettlement
	Orders     []database.Order
	Expected   decimal.Decimal
	Variance   decimal.Decimal
}

// SettlementService reconciles rider cash against their delivered orders.
type SettlementService struct {
	pool     TxBeginner
	newStore NewSettlementStore
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(pool TxBeginner, newStore NewSettlementStore) *SettlementService {
	return &SettlementService{pool: pool, newStore: newStore}
}

// Settle clears a batch of the rider's delivered orders in one transaction.
// Each order's settlement flag flips through a guarded UPDATE, so an order
// that is already settled, not DELIVERED, or assigned to another rider fails
// the whole batch. Each order gets a CASH payment row and moves to PAID; the
// rider's liability drops by the expected amount and the collected cash lands
// in the open drawer as a DEBIT. The counted variance is recorded for audit,
// never redistributed to orders.
func (s *SettlementService) Settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	if len(req.OrderIDs) == 0 {
		return nil, ErrNoOrdersToSettle
	}
	if req.AmountCollected.IsNegative() {
		return nil, ErrNegativeCollected
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	driver, err := store.GetDriverForUpdate(ctx, database.GetDriverParams{ID: req.DriverID, RestaurantID: req.RestaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("get driver: %w", err)
	}

	expected := decimal.Zero
	var settled []database.Order
	for i, orderID := range req.OrderIDs {
		order, err := store.SettleOrderWithRider(ctx, database.SettleOrderWithRiderParams{
			ID:       orderID,
			DriverID: driver.ID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("orders[%d]: %w", i, ErrOrderNotSettleable)
			}
			return nil, fmt.Errorf("orders[%d]: settle: %w", i, err)
		}
		expected = expected.Add(numericToDecimal(order.TotalAmount))
		settled = append(settled, order)
	}

	variance := req.AmountCollected.Sub(expected)

	settlement, err := store.CreateRiderSettlement(ctx, database.CreateRiderSettlementParams{
		RestaurantID:    req.RestaurantID,
		DriverID:        driver.ID,
		AmountExpected:  decimalToNumeric(expected),
		AmountCollected: decimalToNumeric(req.AmountCollected),
		Variance:        decimalToNumeric(variance),
		ProcessedBy:     req.ProcessedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create settlement: %w", err)
	}

	var paid []database.Order
	for i, order := range settled {
		if err := store.CreateSettlementOrder(ctx, database.CreateSettlementOrderParams{
			SettlementID: settlement.ID,
			OrderID:      order.ID,
			Amount:       order.TotalAmount,
		}); err != nil {
			return nil, fmt.Errorf("orders[%d]: join row: %w", i, err)
		}
		if _, err := store.CreatePayment(ctx, database.CreatePaymentParams{
			OrderID:       order.ID,
			PaymentMethod: enum.PaymentMethodCash,
			Amount:        order.TotalAmount,
			ProcessedBy:   req.ProcessedBy,
		}); err != nil {
			return nil, fmt.Errorf("orders[%d]: payment: %w", i, err)
		}
		p, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:           order.ID,
			RestaurantID: req.RestaurantID,
			Status:       enum.OrderStatusPaid,
			PriorStatus:  enum.OrderStatusDelivered,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("orders[%d]: %w", i, ErrStatusChanged)
			}
			return nil, fmt.Errorf("orders[%d]: mark paid: %w", i, err)
		}
		paid = append(paid, p)
	}

	// Liability drops by what the orders were worth. A short count stays
	// visible on the settlement's variance, not on the rider's balance.
	if _, err := store.SubtractDriverCash(ctx, database.AdjustDriverCashParams{
		ID:     driver.ID,
		Amount: decimalToNumeric(expected),
	}); err != nil {
		return nil, fmt.Errorf("subtract driver cash: %w", err)
	}

	if req.AmountCollected.IsPositive() {
		session, err := store.GetOpenDrawerSession(ctx, req.RestaurantID)
		if err == nil {
			_, err = store.CreateLedgerEntry(ctx, database.CreateLedgerEntryParams{
				SessionID:     session.ID,
				EntryType:     enum.LedgerEntryDebit,
				ReferenceType: enum.LedgerRefSettlement,
				ReferenceID:   pgtype.UUID{Bytes: settlement.ID, Valid: true},
				AccountID:     pgtype.UUID{Bytes: driver.ID, Valid: true},
				Amount:        decimalToNumeric(req.AmountCollected),
				Notes:         pgtype.Text{String: "rider settlement " + driver.FullName, Valid: true},
			})
			if err != nil {
				return nil, fmt.Errorf("ledger settlement entry: %w", err)
			}
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get open session: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &SettleResult{Settlement: settlement, Orders: paid, Expected: expected, Variance: variance}, nil
}

// PendingOrders lists the rider's delivered, unsettled orders for the
// settlement screen.
func (s *SettlementService) PendingOrders(ctx context.Context, restaurantID, driverID uuid.UUID) ([]database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if _, err := store.GetDriverForUpdate(ctx, database.GetDriverParams{ID: driverID, RestaurantID: restaurantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("get driver: %w", err)
	}
	orders, err := store.ListUnsettledDeliveredOrders(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("list unsettled: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return orders, nil
}

// SettlementWithOrders is a past settlement with its order breakdown.
type SettlementWithOrders struct {
	Settlement database.RiderSettlement
	Orders     []database.SettlementOrder
}

// History lists a rider's past settlements, newest first.
func (s *SettlementService) History(ctx context.Context, restaurantID, driverID uuid.UUID) ([]SettlementWithOrders, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if _, err := store.GetDriverForUpdate(ctx, database.GetDriverParams{ID: driverID, RestaurantID: restaurantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("get driver: %w", err)
	}
	settlements, err := store.ListSettlementsByDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	result := make([]SettlementWithOrders, 0, len(settlements))
	for _, st := range settlements {
		orders, err := store.ListSettlementOrders(ctx, st.ID)
		if err != nil {
			return nil, fmt.Errorf("list settlement orders: %w", err)
		}
		result = append(result, SettlementWithOrders{Settlement: st, Orders: orders})
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}
