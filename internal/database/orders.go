package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, restaurant_id, order_number, order_type, status, table_id, guest_count,
	driver_id, customer_phone, delivery_address, subtotal, tax_amount, service_charge, delivery_fee,
	total_amount, is_settled_with_rider, cancel_reason, created_by, created_at, updated_at`

const orderItemColumns = `id, order_id, menu_item_id, name, unit_price, quantity, status, station, notes, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.RestaurantID, &o.OrderNumber, &o.OrderType, &o.Status, &o.TableID, &o.GuestCount,
		&o.DriverID, &o.CustomerPhone, &o.DeliveryAddress, &o.Subtotal, &o.TaxAmount, &o.ServiceCharge,
		&o.DeliveryFee, &o.TotalAmount, &o.IsSettledWithRider, &o.CancelReason, &o.CreatedBy,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func scanOrderItem(row pgx.Row) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(
		&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.UnitPrice, &it.Quantity,
		&it.Status, &it.Station, &it.Notes, &it.CreatedAt,
	)
	return it, err
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetNextOrderNumber returns the next sequential order number for a
// restaurant. Concurrent transactions can observe the same MAX; callers
// retry on the (restaurant_id, order_number) unique violation.
func (q *Queries) GetNextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM 4) AS INT)), 0) + 1
		FROM orders WHERE restaurant_id = $1
	`, restaurantID).Scan(&next)
	return next, err
}

type CreateOrderParams struct {
	RestaurantID    uuid.UUID
	OrderNumber     string
	OrderType       string
	TableID         pgtype.UUID
	GuestCount      pgtype.Int4
	CustomerPhone   pgtype.Text
	DeliveryAddress pgtype.Text
	Subtotal        pgtype.Numeric
	TaxAmount       pgtype.Numeric
	ServiceCharge   pgtype.Numeric
	DeliveryFee     pgtype.Numeric
	TotalAmount     pgtype.Numeric
	CreatedBy       uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (restaurant_id, order_number, order_type, table_id, guest_count,
			customer_phone, delivery_address, subtotal, tax_amount, service_charge, delivery_fee,
			total_amount, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+orderColumns,
		arg.RestaurantID, arg.OrderNumber, arg.OrderType, arg.TableID, arg.GuestCount,
		arg.CustomerPhone, arg.DeliveryAddress, arg.Subtotal, arg.TaxAmount, arg.ServiceCharge,
		arg.DeliveryFee, arg.TotalAmount, arg.CreatedBy,
	)
	return scanOrder(row)
}

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	UnitPrice  pgtype.Numeric
	Quantity   int32
	Status     string
	Station    string
	Notes      pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, menu_item_id, name, unit_price, quantity, status, station, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+orderItemColumns,
		arg.OrderID, arg.MenuItemID, arg.Name, arg.UnitPrice, arg.Quantity, arg.Status, arg.Station, arg.Notes,
	)
	return scanOrderItem(row)
}

type GetOrderParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND restaurant_id = $2`,
		arg.ID, arg.RestaurantID,
	)
	return scanOrder(row)
}

// GetOrderForUpdate locks the order row (FOR NO KEY UPDATE) to serialize
// concurrent terminal writes against the same order.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND restaurant_id = $2 FOR NO KEY UPDATE`,
		arg.ID, arg.RestaurantID,
	)
	return scanOrder(row)
}

type ListOrdersParams struct {
	RestaurantID uuid.UUID
	Status       pgtype.Text
	OrderType    pgtype.Text
	StartDate    pgtype.Timestamptz
	EndDate      pgtype.Timestamptz
	Limit        int32
	Offset       int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE restaurant_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::text IS NULL OR order_type = $3)
		  AND ($4::timestamptz IS NULL OR created_at >= $4)
		  AND ($5::timestamptz IS NULL OR created_at < $5)
		ORDER BY created_at DESC
		LIMIT $6 OFFSET $7
	`, arg.RestaurantID, arg.Status, arg.OrderType, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1 ORDER BY created_at, id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type GetOrderItemParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) GetOrderItem(ctx context.Context, arg GetOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE id = $1 AND order_id = $2`,
		arg.ID, arg.OrderID,
	)
	return scanOrderItem(row)
}

type UpdateOrderItemStatusParams struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Status      string
	PriorStatus string
}

// UpdateOrderItemStatus is a targeted compare-and-swap on a single item's
// status. No rows means the item moved underneath the caller.
func (q *Queries) UpdateOrderItemStatus(ctx context.Context, arg UpdateOrderItemStatusParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_items SET status = $3
		WHERE id = $1 AND order_id = $2 AND status = $4
		RETURNING `+orderItemColumns,
		arg.ID, arg.OrderID, arg.Status, arg.PriorStatus,
	)
	return scanOrderItem(row)
}

// RestoreOrderItemStatus writes an item's status back without a prior-status
// guard. Used only by the KDS undo path, which replays snapshots verbatim.
func (q *Queries) RestoreOrderItemStatus(ctx context.Context, id uuid.UUID, status string) (OrderItem, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE order_items SET status = $2 WHERE id = $1 RETURNING `+orderItemColumns,
		id, status,
	)
	return scanOrderItem(row)
}

type UpdateOrderItemQuantityParams struct {
	ID       uuid.UUID
	OrderID  uuid.UUID
	Quantity int32
	Notes    pgtype.Text
}

// UpdateOrderItemQuantity only applies to PENDING items; quantity is frozen
// once an item has been fired to a station.
func (q *Queries) UpdateOrderItemQuantity(ctx context.Context, arg UpdateOrderItemQuantityParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_items SET quantity = $3, notes = $4
		WHERE id = $1 AND order_id = $2 AND status = 'PENDING'
		RETURNING `+orderItemColumns,
		arg.ID, arg.OrderID, arg.Quantity, arg.Notes,
	)
	return scanOrderItem(row)
}

type DeleteOrderItemParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) DeleteOrderItem(ctx context.Context, arg DeleteOrderItemParams) error {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM order_items WHERE id = $1 AND order_id = $2 AND status = 'PENDING'`,
		arg.ID, arg.OrderID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type UpdateOrderStatusParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Status       string
	PriorStatus  string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND restaurant_id = $2 AND status = $4
		RETURNING `+orderColumns,
		arg.ID, arg.RestaurantID, arg.Status, arg.PriorStatus,
	)
	return scanOrder(row)
}

// SetOrderStatusInKitchen recomputes the order-level status while the order
// is still in its kitchen phase. Once an order leaves the kitchen
// (dispatch, payment, void) aggregation must never move it backward.
func (q *Queries) SetOrderStatusInKitchen(ctx context.Context, id uuid.UUID, status string) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('NEW', 'PREPARING', 'READY')
		RETURNING `+orderColumns,
		id, status,
	)
	return scanOrder(row)
}

// RestoreOrderStatus writes an order's status back without guards. Used only
// by the KDS undo path.
func (q *Queries) RestoreOrderStatus(ctx context.Context, id uuid.UUID, status string) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+orderColumns,
		id, status,
	)
	return scanOrder(row)
}

type UpdateOrderAmountsParams struct {
	ID            uuid.UUID
	Subtotal      pgtype.Numeric
	TaxAmount     pgtype.Numeric
	ServiceCharge pgtype.Numeric
	TotalAmount   pgtype.Numeric
}

func (q *Queries) UpdateOrderAmounts(ctx context.Context, arg UpdateOrderAmountsParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET subtotal = $2, tax_amount = $3, service_charge = $4, total_amount = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderColumns,
		arg.ID, arg.Subtotal, arg.TaxAmount, arg.ServiceCharge, arg.TotalAmount,
	)
	return scanOrder(row)
}

type CancelOrderParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Reason       string
}

// CancelOrder voids an order atomically; only pre-payment, pre-dispatch
// orders can be voided.
func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = 'CANCELLED', cancel_reason = $3, updated_at = NOW()
		WHERE id = $1 AND restaurant_id = $2 AND status IN ('NEW', 'PREPARING', 'READY')
		RETURNING `+orderColumns,
		arg.ID, arg.RestaurantID, arg.Reason,
	)
	return scanOrder(row)
}

type AssignDriverParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	DriverID     uuid.UUID
}

// AssignDriver moves a delivery order into OUT_FOR_DELIVERY. The conditions
// are enforced in the UPDATE itself so two dispatch terminals cannot both
// claim the order.
func (q *Queries) AssignDriver(ctx context.Context, arg AssignDriverParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET driver_id = $3, status = 'OUT_FOR_DELIVERY', updated_at = NOW()
		WHERE id = $1 AND restaurant_id = $2 AND order_type = 'DELIVERY'
		  AND driver_id IS NULL AND status IN ('NEW', 'PREPARING', 'READY')
		RETURNING `+orderColumns,
		arg.ID, arg.RestaurantID, arg.DriverID,
	)
	return scanOrder(row)
}

type MarkOrderDeliveredParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) MarkOrderDelivered(ctx context.Context, arg MarkOrderDeliveredParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = 'DELIVERED', updated_at = NOW()
		WHERE id = $1 AND restaurant_id = $2 AND status = 'OUT_FOR_DELIVERY'
		RETURNING `+orderColumns,
		arg.ID, arg.RestaurantID,
	)
	return scanOrder(row)
}

type SettleOrderWithRiderParams struct {
	ID       uuid.UUID
	DriverID uuid.UUID
}

// SettleOrderWithRider flips the settlement flag at most once per order.
// No rows means the order is not DELIVERED, not this rider's, or already
// settled; the caller must reject, never re-apply.
func (q *Queries) SettleOrderWithRider(ctx context.Context, arg SettleOrderWithRiderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET is_settled_with_rider = TRUE, updated_at = NOW()
		WHERE id = $1 AND driver_id = $2 AND status = 'DELIVERED' AND NOT is_settled_with_rider
		RETURNING `+orderColumns,
		arg.ID, arg.DriverID,
	)
	return scanOrder(row)
}

func (q *Queries) ListUnsettledDeliveredOrders(ctx context.Context, driverID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE driver_id = $1 AND status = 'DELIVERED' AND NOT is_settled_with_rider
		ORDER BY created_at
	`, driverID)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

// KitchenQueueRow is an order item joined with enough of its order for a
// station display.
type KitchenQueueRow struct {
	Item        OrderItem
	OrderNumber string
	OrderType   string
}

type ListKitchenQueueParams struct {
	RestaurantID uuid.UUID
	Station      pgtype.Text
}

// ListKitchenQueue returns items visible on a station display: station
// matches the filter and the item is not yet READY or SERVED.
func (q *Queries) ListKitchenQueue(ctx context.Context, arg ListKitchenQueueParams) ([]KitchenQueueRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.menu_item_id, oi.name, oi.unit_price, oi.quantity,
			oi.status, oi.station, oi.notes, oi.created_at, o.order_number, o.order_type
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.restaurant_id = $1
		  AND ($2::text IS NULL OR oi.station = $2)
		  AND oi.status IN ('FIRED', 'PREPARING')
		  AND o.status IN ('NEW', 'PREPARING', 'READY')
		ORDER BY oi.created_at, oi.id
	`, arg.RestaurantID, arg.Station)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var queue []KitchenQueueRow
	for rows.Next() {
		var r KitchenQueueRow
		if err := rows.Scan(
			&r.Item.ID, &r.Item.OrderID, &r.Item.MenuItemID, &r.Item.Name, &r.Item.UnitPrice,
			&r.Item.Quantity, &r.Item.Status, &r.Item.Station, &r.Item.Notes, &r.Item.CreatedAt,
			&r.OrderNumber, &r.OrderType,
		); err != nil {
			return nil, err
		}
		queue = append(queue, r)
	}
	return queue, rows.Err()
}

type ReadyStationItemsParams struct {
	RestaurantID uuid.UUID
	Station      string
}

// ReadyStationItems is the bulk "ready all" clearance for one station: every
// fired or preparing item at the station flips to READY in a single UPDATE.
// Returns the ids of the orders touched so their statuses can be recomputed.
func (q *Queries) ReadyStationItems(ctx context.Context, arg ReadyStationItemsParams) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, `
		UPDATE order_items oi SET status = 'READY'
		FROM orders o
		WHERE oi.order_id = o.id
		  AND o.restaurant_id = $1
		  AND oi.station = $2
		  AND oi.status IN ('FIRED', 'PREPARING')
		  AND o.status IN ('NEW', 'PREPARING', 'READY')
		RETURNING oi.order_id
	`, arg.RestaurantID, arg.Station)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seen := make(map[uuid.UUID]bool)
	var orderIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			orderIDs = append(orderIDs, id)
		}
	}
	return orderIDs, rows.Err()
}

// FireOrderItems sends every PENDING item on the order to its station.
// Returns the number of items fired.
func (q *Queries) FireOrderItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE order_items SET status = 'FIRED' WHERE order_id = $1 AND status = 'PENDING'`,
		orderID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type CreatePaymentParams struct {
	OrderID        uuid.UUID
	PaymentMethod  string
	Amount         pgtype.Numeric
	TenderedAmount pgtype.Numeric
	ChangeAmount   pgtype.Numeric
	ProcessedBy    uuid.UUID
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	var p Payment
	err := q.db.QueryRow(ctx, `
		INSERT INTO payments (order_id, payment_method, amount, tendered_amount, change_amount, processed_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, order_id, payment_method, amount, tendered_amount, change_amount, processed_by, processed_at
	`, arg.OrderID, arg.PaymentMethod, arg.Amount, arg.TenderedAmount, arg.ChangeAmount, arg.ProcessedBy).Scan(
		&p.ID, &p.OrderID, &p.PaymentMethod, &p.Amount, &p.TenderedAmount, &p.ChangeAmount,
		&p.ProcessedBy, &p.ProcessedAt,
	)
	return p, err
}

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, payment_method, amount, tendered_amount, change_amount, processed_by, processed_at
		FROM payments WHERE order_id = $1 ORDER BY processed_at
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(
			&p.ID, &p.OrderID, &p.PaymentMethod, &p.Amount, &p.TenderedAmount, &p.ChangeAmount,
			&p.ProcessedBy, &p.ProcessedAt,
		); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
