package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, restaurant_id, table_number, capacity, status, server_id, active_order_id, last_status_change`

func scanTable(row pgx.Row) (DiningTable, error) {
	var t DiningTable
	err := row.Scan(
		&t.ID, &t.RestaurantID, &t.TableNumber, &t.Capacity, &t.Status,
		&t.ServerID, &t.ActiveOrderID, &t.LastStatusChange,
	)
	return t, err
}

func (q *Queries) ListTables(ctx context.Context, restaurantID uuid.UUID) ([]DiningTable, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+tableColumns+` FROM dining_tables WHERE restaurant_id = $1 ORDER BY table_number`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tables []DiningTable
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

type GetTableParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+tableColumns+` FROM dining_tables WHERE id = $1 AND restaurant_id = $2`,
		arg.ID, arg.RestaurantID,
	)
	return scanTable(row)
}

func (q *Queries) GetTableForUpdate(ctx context.Context, arg GetTableParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+tableColumns+` FROM dining_tables WHERE id = $1 AND restaurant_id = $2 FOR NO KEY UPDATE`,
		arg.ID, arg.RestaurantID,
	)
	return scanTable(row)
}

type SeatTableParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	ServerID     pgtype.UUID
	OrderID      uuid.UUID
}

// SeatTable claims a table for an order. The AVAILABLE/no-active-order guard
// in the UPDATE keeps two terminals from double-seating the same table.
func (q *Queries) SeatTable(ctx context.Context, arg SeatTableParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE dining_tables
		SET status = 'OCCUPIED', server_id = $3, active_order_id = $4, last_status_change = NOW()
		WHERE id = $1 AND restaurant_id = $2 AND status = 'AVAILABLE' AND active_order_id IS NULL
		RETURNING `+tableColumns,
		arg.ID, arg.RestaurantID, arg.ServerID, arg.OrderID,
	)
	return scanTable(row)
}

type UpdateTableStatusParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Status       string
	PriorStatus  string
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE dining_tables SET status = $3, last_status_change = NOW()
		WHERE id = $1 AND restaurant_id = $2 AND status = $4
		RETURNING `+tableColumns,
		arg.ID, arg.RestaurantID, arg.Status, arg.PriorStatus,
	)
	return scanTable(row)
}

// SetTablePaymentPending flips an occupied table when its order's pro-forma
// bill is ready. It is a no-op (no rows) unless the table is OCCUPIED.
func (q *Queries) SetTablePaymentPending(ctx context.Context, id uuid.UUID) (DiningTable, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE dining_tables SET status = 'PAYMENT_PENDING', last_status_change = NOW()
		WHERE id = $1 AND status = 'OCCUPIED'
		RETURNING `+tableColumns,
		id,
	)
	return scanTable(row)
}

// ResetTableAvailable returns a table to service after a void, clearing the
// seat and any order linkage regardless of the current status.
func (q *Queries) ResetTableAvailable(ctx context.Context, id uuid.UUID) (DiningTable, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE dining_tables
		SET status = 'AVAILABLE', active_order_id = NULL, server_id = NULL, last_status_change = NOW()
		WHERE id = $1
		RETURNING `+tableColumns,
		id,
	)
	return scanTable(row)
}

// ReleaseTableOrder detaches the active order once it is paid and marks the
// table DIRTY for bussing. Returning it to AVAILABLE is an operator action.
func (q *Queries) ReleaseTableOrder(ctx context.Context, id uuid.UUID) (DiningTable, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE dining_tables
		SET status = 'DIRTY', active_order_id = NULL, server_id = NULL, last_status_change = NOW()
		WHERE id = $1
		RETURNING `+tableColumns,
		id,
	)
	return scanTable(row)
}
