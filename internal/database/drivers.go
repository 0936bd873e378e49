package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const driverColumns = `id, restaurant_id, full_name, phone, cash_in_hand, created_at`

const shiftColumns = `id, driver_id, opening_float, status, opened_at, closed_at, closing_actual, variance, closed_by`

func scanDriver(row pgx.Row) (Driver, error) {
	var d Driver
	err := row.Scan(&d.ID, &d.RestaurantID, &d.FullName, &d.Phone, &d.CashInHand, &d.CreatedAt)
	return d, err
}

func scanShift(row pgx.Row) (DriverShift, error) {
	var s DriverShift
	err := row.Scan(
		&s.ID, &s.DriverID, &s.OpeningFloat, &s.Status, &s.OpenedAt,
		&s.ClosedAt, &s.ClosingActual, &s.Variance, &s.ClosedBy,
	)
	return s, err
}

type GetDriverParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetDriver(ctx context.Context, arg GetDriverParams) (Driver, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+driverColumns+` FROM drivers WHERE id = $1 AND restaurant_id = $2`,
		arg.ID, arg.RestaurantID,
	)
	return scanDriver(row)
}

func (q *Queries) GetDriverForUpdate(ctx context.Context, arg GetDriverParams) (Driver, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+driverColumns+` FROM drivers WHERE id = $1 AND restaurant_id = $2 FOR NO KEY UPDATE`,
		arg.ID, arg.RestaurantID,
	)
	return scanDriver(row)
}

func (q *Queries) ListDrivers(ctx context.Context, restaurantID uuid.UUID) ([]Driver, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+driverColumns+` FROM drivers WHERE restaurant_id = $1 ORDER BY full_name`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var drivers []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

type AdjustDriverCashParams struct {
	ID     uuid.UUID
	Amount pgtype.Numeric
}

// AddDriverCash increases a rider's cash liability when custody of an
// order's cash value transfers to them at handover.
func (q *Queries) AddDriverCash(ctx context.Context, arg AdjustDriverCashParams) (Driver, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE drivers SET cash_in_hand = cash_in_hand + $2 WHERE id = $1 RETURNING `+driverColumns,
		arg.ID, arg.Amount,
	)
	return scanDriver(row)
}

// SubtractDriverCash decreases the liability when a settlement clears it.
func (q *Queries) SubtractDriverCash(ctx context.Context, arg AdjustDriverCashParams) (Driver, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE drivers SET cash_in_hand = cash_in_hand - $2 WHERE id = $1 RETURNING `+driverColumns,
		arg.ID, arg.Amount,
	)
	return scanDriver(row)
}

type CreateDriverShiftParams struct {
	DriverID     uuid.UUID
	OpeningFloat pgtype.Numeric
}

func (q *Queries) CreateDriverShift(ctx context.Context, arg CreateDriverShiftParams) (DriverShift, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO driver_shifts (driver_id, opening_float, status)
		VALUES ($1, $2, 'OPEN')
		RETURNING `+shiftColumns,
		arg.DriverID, arg.OpeningFloat,
	)
	return scanShift(row)
}

func (q *Queries) GetOpenShift(ctx context.Context, driverID uuid.UUID) (DriverShift, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+shiftColumns+` FROM driver_shifts WHERE driver_id = $1 AND status = 'OPEN'`,
		driverID,
	)
	return scanShift(row)
}

type CloseDriverShiftParams struct {
	ID            uuid.UUID
	ClosingActual pgtype.Numeric
	Variance      pgtype.Numeric
	ClosedBy      uuid.UUID
}

func (q *Queries) CloseDriverShift(ctx context.Context, arg CloseDriverShiftParams) (DriverShift, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE driver_shifts
		SET status = 'CLOSED', closed_at = NOW(), closing_actual = $2, variance = $3, closed_by = $4
		WHERE id = $1 AND status = 'OPEN'
		RETURNING `+shiftColumns,
		arg.ID, arg.ClosingActual, arg.Variance, arg.ClosedBy,
	)
	return scanShift(row)
}

type CreateRiderSettlementParams struct {
	RestaurantID    uuid.UUID
	DriverID        uuid.UUID
	AmountExpected  pgtype.Numeric
	AmountCollected pgtype.Numeric
	Variance        pgtype.Numeric
	ProcessedBy     uuid.UUID
}

func (q *Queries) CreateRiderSettlement(ctx context.Context, arg CreateRiderSettlementParams) (RiderSettlement, error) {
	var s RiderSettlement
	err := q.db.QueryRow(ctx, `
		INSERT INTO rider_settlements (restaurant_id, driver_id, amount_expected, amount_collected, variance, processed_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, restaurant_id, driver_id, amount_expected, amount_collected, variance, processed_by, created_at
	`, arg.RestaurantID, arg.DriverID, arg.AmountExpected, arg.AmountCollected, arg.Variance, arg.ProcessedBy).Scan(
		&s.ID, &s.RestaurantID, &s.DriverID, &s.AmountExpected, &s.AmountCollected, &s.Variance,
		&s.ProcessedBy, &s.CreatedAt,
	)
	return s, err
}

type CreateSettlementOrderParams struct {
	SettlementID uuid.UUID
	OrderID      uuid.UUID
	Amount       pgtype.Numeric
}

func (q *Queries) CreateSettlementOrder(ctx context.Context, arg CreateSettlementOrderParams) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO settlement_orders (settlement_id, order_id, amount) VALUES ($1, $2, $3)`,
		arg.SettlementID, arg.OrderID, arg.Amount,
	)
	return err
}

func (q *Queries) ListSettlementsByDriver(ctx context.Context, driverID uuid.UUID) ([]RiderSettlement, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, restaurant_id, driver_id, amount_expected, amount_collected, variance, processed_by, created_at
		FROM rider_settlements WHERE driver_id = $1 ORDER BY created_at DESC
	`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var settlements []RiderSettlement
	for rows.Next() {
		var s RiderSettlement
		if err := rows.Scan(
			&s.ID, &s.RestaurantID, &s.DriverID, &s.AmountExpected, &s.AmountCollected, &s.Variance,
			&s.ProcessedBy, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}

func (q *Queries) ListSettlementOrders(ctx context.Context, settlementID uuid.UUID) ([]SettlementOrder, error) {
	rows, err := q.db.Query(ctx,
		`SELECT settlement_id, order_id, amount FROM settlement_orders WHERE settlement_id = $1`,
		settlementID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []SettlementOrder
	for rows.Next() {
		var so SettlementOrder
		if err := rows.Scan(&so.SettlementID, &so.OrderID, &so.Amount); err != nil {
			return nil, err
		}
		orders = append(orders, so)
	}
	return orders, rows.Err()
}
