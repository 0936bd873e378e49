package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Qaiser2raza/fireflow-api/internal/database"
	"github.com/Qaiser2raza/fireflow-api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the delivery service.
var (
	ErrDriverNotFound    = errors.New("driver not found")
	ErrShiftAlreadyOpen  = errors.New("driver already has an open shift")
	ErrNoOpenShift       = errors.New("driver has no open shift")
	ErrInvalidFloat      = errors.New("opening_float must be >= 0")
	ErrNotDispatchable   = errors.New("order cannot be dispatched")
	ErrNotOutForDelivery = errors.New("order is not out for delivery")
	ErrUnsettledOrders   = errors.New("driver has unsettled delivered orders")
)

// DeliveryStore defines the DB methods the delivery service needs.
type DeliveryStore interface {
	GetDriver(ctx context.Context, arg database.GetDriverParams) (database.Driver, error)
	GetDriverForUpdate(ctx context.Context, arg database.GetDriverParams) (database.Driver, error)
	ListDrivers(ctx context.Context, restaurantID uuid.UUID) ([]database.Driver, error)
	CreateDriverShift(ctx context.Context, arg database.CreateDriverShiftParams) (database.DriverShift, error)
	GetOpenShift(ctx context.Context, driverID uuid.UUID) (database.DriverShift, error)
	CloseDriverShift(ctx context.Context, arg database.CloseDriverShiftParams) (database.DriverShift, error)
	AddDriverCash(ctx context.Context, arg database.AdjustDriverCashParams) (database.Driver, error)
	AssignDriver(ctx context.Context, arg database.AssignDriverParams) (database.Order, error)
	MarkOrderDelivered(ctx context.Context, arg database.MarkOrderDeliveredParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListUnsettledDeliveredOrders(ctx context.Context, driverID uuid.UUID) ([]database.Order, error)
	GetOpenDrawerSession(ctx context.Context, restaurantID uuid.UUID) (database.DrawerSession, error)
	CreateLedgerEntry(ctx context.Context, arg database.CreateLedgerEntryParams) (database.LedgerEntry, error)
}

// NewDeliveryStore creates a DeliveryStore from a DBTX.
type NewDeliveryStore func(db database.DBTX) DeliveryStore

// DeliveryService handles rider shifts, dispatch and delivery confirmation.
type DeliveryService struct {
	pool     TxBeginner
	newStore NewDeliveryStore
}

// NewDeliveryService creates a new DeliveryService.
func NewDeliveryService(pool TxBeginner, newStore NewDeliveryStore) *DeliveryService {
	return &DeliveryService{pool: pool, newStore: newStore}
}

// OpenShift starts a rider's shift with an opening float. The float leaves
// the till, so the open drawer session gets a CREDIT entry when one exists.
// The partial unique index on open shifts turns a concurrent double open into
// a unique violation.
func (s *DeliveryService) OpenShift(ctx context.Context, restaurantID, driverID uuid.UUID, openingFloat decimal.Decimal) (*database.DriverShift, error) {
	if openingFloat.IsNegative() {
		return nil, ErrInvalidFloat
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	driver, err := store.GetDriver(ctx, database.GetDriverParams{ID: driverID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("get driver: %w", err)
	}

	shift, err := store.CreateDriverShift(ctx, database.CreateDriverShiftParams{
		DriverID:     driver.ID,
		OpeningFloat: decimalToNumeric(openingFloat),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrShiftAlreadyOpen
		}
		return nil, fmt.Errorf("create shift: %w", err)
	}

	if openingFloat.IsPositive() {
		session, err := store.GetOpenDrawerSession(ctx, restaurantID)
		if err == nil {
			_, err = store.CreateLedgerEntry(ctx, database.CreateLedgerEntryParams{
				SessionID:     session.ID,
				EntryType:     enum.LedgerEntryCredit,
				ReferenceType: enum.LedgerRefFloat,
				ReferenceID:   pgtype.UUID{Bytes: shift.ID, Valid: true},
				AccountID:     pgtype.UUID{Bytes: driver.ID, Valid: true},
				Amount:        decimalToNumeric(openingFloat),
				Notes:         pgtype.Text{String: "opening float " + driver.FullName, Valid: true},
			})
			if err != nil {
				return nil, fmt.Errorf("ledger float entry: %w", err)
			}
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get open session: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &shift, nil
}

// CloseShiftResult is the reconciliation outcome of a closed shift.
type CloseShiftResult struct {
	Shift    database.DriverShift
	Expected decimal.Decimal
	Variance decimal.Decimal
}

// CloseShift ends a rider's shift against a counted cash amount. Every
// delivered order must be settled first; the expected figure is the opening
// float plus any residual cash liability.
func (s *DeliveryService) CloseShift(ctx context.Context, restaurantID, driverID, closedBy uuid.UUID, closingActual decimal.Decimal) (*CloseShiftResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	driver, err := store.GetDriverForUpdate(ctx, database.GetDriverParams{ID: driverID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("get driver: %w", err)
	}

	shift, err := store.GetOpenShift(ctx, driverID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenShift
		}
		return nil, fmt.Errorf("get open shift: %w", err)
	}

	unsettled, err := store.ListUnsettledDeliveredOrders(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("list unsettled: %w", err)
	}
	if len(unsettled) > 0 {
		return nil, ErrUnsettledOrders
	}

	expected := numericToDecimal(shift.OpeningFloat).Add(numericToDecimal(driver.CashInHand))
	variance := closingActual.Sub(expected)

	closed, err := store.CloseDriverShift(ctx, database.CloseDriverShiftParams{
		ID:            shift.ID,
		ClosingActual: decimalToNumeric(closingActual),
		Variance:      decimalToNumeric(variance),
		ClosedBy:      closedBy,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenShift
		}
		return nil, fmt.Errorf("close shift: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CloseShiftResult{Shift: closed, Expected: expected, Variance: variance}, nil
}

// Dispatch assigns a driver to a delivery order and moves it to
// OUT_FOR_DELIVERY. The driver must have an open shift.
func (s *DeliveryService) Dispatch(ctx context.Context, restaurantID, orderID, driverID uuid.UUID) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetDriver(ctx, database.GetDriverParams{ID: driverID, RestaurantID: restaurantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("get driver: %w", err)
	}
	if _, err := store.GetOpenShift(ctx, driverID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenShift
		}
		return nil, fmt.Errorf("get open shift: %w", err)
	}

	order, err := store.AssignDriver(ctx, database.AssignDriverParams{
		ID:           orderID,
		RestaurantID: restaurantID,
		DriverID:     driverID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotDispatchable
		}
		return nil, fmt.Errorf("assign driver: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &order, nil
}

// CompleteDelivery confirms handover to the customer. The order's cash value
// becomes the rider's liability until settlement.
func (s *DeliveryService) CompleteDelivery(ctx context.Context, restaurantID, orderID uuid.UUID) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.MarkOrderDelivered(ctx, database.MarkOrderDeliveredParams{
		ID:           orderID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotOutForDelivery
		}
		return nil, fmt.Errorf("mark delivered: %w", err)
	}

	if order.DriverID.Valid {
		_, err := store.AddDriverCash(ctx, database.AdjustDriverCashParams{
			ID:     order.DriverID.Bytes,
			Amount: order.TotalAmount,
		})
		if err != nil {
			return nil, fmt.Errorf("add driver cash: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &order, nil
}

// DriverWithShift pairs a rider with their open shift, if any.
type DriverWithShift struct {
	Driver database.Driver
	Shift  *database.DriverShift
}

// ListDrivers returns the restaurant's riders with their open shifts.
func (s *DeliveryService) ListDrivers(ctx context.Context, restaurantID uuid.UUID) ([]DriverWithShift, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	drivers, err := store.ListDrivers(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}

	result := make([]DriverWithShift, 0, len(drivers))
	for _, d := range drivers {
		entry := DriverWithShift{Driver: d}
		shift, err := store.GetOpenShift(ctx, d.ID)
		if err == nil {
			entry.Shift = &shift
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get open shift: %w", err)
		}
		result = append(result, entry)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}
