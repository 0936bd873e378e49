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

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems         = errors.New("items are required")
	ErrInvalidOrderType   = errors.New("invalid order_type")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrMenuItemNotFound   = errors.New("menu item not found in restaurant")
	ErrTableRequired      = errors.New("table_id is required for DINE_IN orders")
	ErrTableUnavailable   = errors.New("table is occupied or holds another order")
	ErrAddressRequired    = errors.New("delivery_address is required for DELIVERY orders")
	ErrPhoneRequired      = errors.New("customer_phone is required for DELIVERY orders")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderTerminal      = errors.New("order is in a terminal status")
	ErrOrderNotEditable   = errors.New("order has left the kitchen and cannot be edited")
	ErrItemNotPending     = errors.New("item already fired, quantity is frozen")
	ErrNoPendingItems     = errors.New("no pending items to fire")
	ErrItemsPending       = errors.New("order items pending, cannot process payment")
	ErrDeliveryViaRider   = errors.New("delivery orders are settled through rider settlement")
	ErrInsufficientCash   = errors.New("tendered amount is below the order total")
	ErrTenderedRequired   = errors.New("tendered_amount is required for CASH payments")
	ErrInvalidMethod      = errors.New("invalid payment_method")
	ErrReasonRequired     = errors.New("a void reason is required")
	ErrOrderNotVoidable   = errors.New("order cannot be voided after payment or dispatch")
	ErrOrderAlreadyPaid   = errors.New("order is already paid")
	ErrStatusChanged      = errors.New("order status changed, please retry")
)

// TxBeginner starts a new database transaction. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	GetMenuItemForOrder(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	GetNextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	FireOrderItems(ctx context.Context, orderID uuid.UUID) (int64, error)
	UpdateOrderItemQuantity(ctx context.Context, arg database.UpdateOrderItemQuantityParams) (database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, arg database.DeleteOrderItemParams) error
	UpdateOrderAmounts(ctx context.Context, arg database.UpdateOrderAmountsParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	SeatTable(ctx context.Context, arg database.SeatTableParams) (database.DiningTable, error)
	ReleaseTableOrder(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	ResetTableAvailable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetOpenDrawerSession(ctx context.Context, restaurantID uuid.UUID) (database.DrawerSession, error)
	CreateLedgerEntry(ctx context.Context, arg database.CreateLedgerEntryParams) (database.LedgerEntry, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	RestaurantID    uuid.UUID
	CreatedBy       uuid.UUID
	OrderType       string
	TableID         string
	GuestCount      int32
	CustomerPhone   string
	DeliveryAddress string
	Items           []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line in the order.
type CreateOrderItemRequest struct {
	MenuItemID string
	Quantity   int32
	Notes      string
}

// UpdateOrderItemsRequest holds targeted edits to an order's pending lines.
// Items that have been fired to a station are immutable except for status.
type UpdateOrderItemsRequest struct {
	RestaurantID uuid.UUID
	OrderID      uuid.UUID
	Add          []CreateOrderItemRequest
	Update       []UpdateItemRequest
	Remove       []string
}

// UpdateItemRequest adjusts one pending item.
type UpdateItemRequest struct {
	ItemID   string
	Quantity int32
	Notes    string
}

// PaymentRequest is the validated input for settling a dine-in or takeaway
// bill.
type PaymentRequest struct {
	RestaurantID uuid.UUID
	OrderID      uuid.UUID
	Method       string
	Tendered     string
	ProcessedBy  uuid.UUID
}

// OrderResult is an order with its items.
type OrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// PaymentResult is a completed payment with the updated order.
type PaymentResult struct {
	Payment database.Payment
	Order   database.Order
	Change  decimal.Decimal
}

// OrderService handles order lifecycle business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// CreateOrder validates, snapshots menu prices, computes the cost breakdown
// and creates the order with PENDING items atomically. Dine-in orders claim
// their table in the same transaction. Retries on order_number unique
// violations (concurrent transactions can read the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	if err := validateOrderType(req.OrderType); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.OrderType == enum.OrderTypeDineIn && req.TableID == "" {
		return nil, ErrTableRequired
	}
	if req.OrderType == enum.OrderTypeDelivery {
		if req.DeliveryAddress == "" {
			return nil, ErrAddressRequired
		}
		if req.CustomerPhone == "" {
			return nil, ErrPhoneRequired
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_restaurant_id_order_number_key"
	}
	return false
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	restaurant, err := store.GetRestaurant(ctx, req.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}

	nextNum, err := store.GetNextOrderNumber(ctx, req.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("FF-%04d", nextNum)

	// Price snapshot: each line freezes the menu item's name, price and
	// station at order time.
	subtotal := decimal.Zero
	type line struct {
		menuItem database.MenuItem
		qty      int32
		notes    string
	}
	var lines []line
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrMenuItemNotFound)
		}
		mi, err := store.GetMenuItemForOrder(ctx, database.GetMenuItemParams{
			ID:           menuItemID,
			RestaurantID: req.RestaurantID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("items[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, fmt.Errorf("items[%d]: get menu item: %w", i, err)
		}
		subtotal = subtotal.Add(numericToDecimal(mi.Price).Mul(decimal.NewFromInt32(item.Quantity)))
		lines = append(lines, line{menuItem: mi, qty: item.Quantity, notes: item.Notes})
	}

	breakdown := computeBreakdown(subtotal, req.OrderType, restaurant)

	tableID := pgtype.UUID{}
	guestCount := pgtype.Int4{}
	if req.OrderType == enum.OrderTypeDineIn {
		tid, err := uuid.Parse(req.TableID)
		if err != nil {
			return nil, ErrTableUnavailable
		}
		tableID = pgtype.UUID{Bytes: tid, Valid: true}
		if req.GuestCount > 0 {
			guestCount = pgtype.Int4{Int32: req.GuestCount, Valid: true}
		}
	}

	customerPhone := pgtype.Text{}
	if req.CustomerPhone != "" {
		customerPhone = pgtype.Text{String: req.CustomerPhone, Valid: true}
	}
	deliveryAddress := pgtype.Text{}
	if req.DeliveryAddress != "" {
		deliveryAddress = pgtype.Text{String: req.DeliveryAddress, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		RestaurantID:    req.RestaurantID,
		OrderNumber:     orderNumber,
		OrderType:       req.OrderType,
		TableID:         tableID,
		GuestCount:      guestCount,
		CustomerPhone:   customerPhone,
		DeliveryAddress: deliveryAddress,
		Subtotal:        decimalToNumeric(breakdown.subtotal),
		TaxAmount:       decimalToNumeric(breakdown.tax),
		ServiceCharge:   decimalToNumeric(breakdown.serviceCharge),
		DeliveryFee:     decimalToNumeric(breakdown.deliveryFee),
		TotalAmount:     decimalToNumeric(breakdown.total),
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// Dine-in: claim the table. The guarded UPDATE rejects a table that is
	// not AVAILABLE or already holds an order, keeping the table's
	// active-order reference and the order's table reference in agreement.
	if order.TableID.Valid {
		serverID := pgtype.UUID{Bytes: req.CreatedBy, Valid: true}
		_, err := store.SeatTable(ctx, database.SeatTableParams{
			ID:           order.TableID.Bytes,
			RestaurantID: req.RestaurantID,
			ServerID:     serverID,
			OrderID:      order.ID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTableUnavailable
			}
			return nil, fmt.Errorf("seat table: %w", err)
		}
	}

	var items []database.OrderItem
	for _, l := range lines {
		notes := pgtype.Text{}
		if l.notes != "" {
			notes = pgtype.Text{String: l.notes, Valid: true}
		}
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:    order.ID,
			MenuItemID: l.menuItem.ID,
			Name:       l.menuItem.Name,
			UnitPrice:  l.menuItem.Price,
			Quantity:   l.qty,
			Status:     enum.ItemStatusPending,
			Station:    l.menuItem.Station,
			Notes:      notes,
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderResult{Order: order, Items: items}, nil
}

// FireOrder sends all PENDING items to their stations. After firing,
// quantities are frozen and the kitchen owns the items' statuses.
func (s *OrderService) FireOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: orderID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if IsTerminalOrderStatus(order.Status) {
		return nil, ErrOrderTerminal
	}
	if !IsKitchenPhase(order.Status) {
		return nil, ErrOrderNotEditable
	}

	fired, err := store.FireOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("fire items: %w", err)
	}
	if fired == 0 {
		return nil, ErrNoPendingItems
	}

	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &OrderResult{Order: order, Items: items}, nil
}

// UpdateOrderItems applies targeted add/update/remove edits to an order's
// pending lines, then recomputes the cost breakdown. Fired items are
// rejected, not silently skipped.
func (s *OrderService) UpdateOrderItems(ctx context.Context, req UpdateOrderItemsRequest) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: req.OrderID, RestaurantID: req.RestaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if IsTerminalOrderStatus(order.Status) {
		return nil, ErrOrderTerminal
	}
	if !IsKitchenPhase(order.Status) {
		return nil, ErrOrderNotEditable
	}

	restaurant, err := store.GetRestaurant(ctx, req.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}

	for i, rm := range req.Remove {
		itemID, err := uuid.Parse(rm)
		if err != nil {
			return nil, fmt.Errorf("remove[%d]: %w", i, ErrItemNotPending)
		}
		if err := store.DeleteOrderItem(ctx, database.DeleteOrderItemParams{ID: itemID, OrderID: req.OrderID}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("remove[%d]: %w", i, ErrItemNotPending)
			}
			return nil, fmt.Errorf("remove[%d]: %w", i, err)
		}
	}

	for i, up := range req.Update {
		if up.Quantity <= 0 {
			return nil, fmt.Errorf("update[%d]: %w", i, ErrInvalidQuantity)
		}
		itemID, err := uuid.Parse(up.ItemID)
		if err != nil {
			return nil, fmt.Errorf("update[%d]: %w", i, ErrItemNotPending)
		}
		notes := pgtype.Text{}
		if up.Notes != "" {
			notes = pgtype.Text{String: up.Notes, Valid: true}
		}
		_, err = store.UpdateOrderItemQuantity(ctx, database.UpdateOrderItemQuantityParams{
			ID:       itemID,
			OrderID:  req.OrderID,
			Quantity: up.Quantity,
			Notes:    notes,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("update[%d]: %w", i, ErrItemNotPending)
			}
			return nil, fmt.Errorf("update[%d]: %w", i, err)
		}
	}

	for i, add := range req.Add {
		if add.Quantity <= 0 {
			return nil, fmt.Errorf("add[%d]: %w", i, ErrInvalidQuantity)
		}
		menuItemID, err := uuid.Parse(add.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("add[%d]: %w", i, ErrMenuItemNotFound)
		}
		mi, err := store.GetMenuItemForOrder(ctx, database.GetMenuItemParams{
			ID:           menuItemID,
			RestaurantID: req.RestaurantID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("add[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, fmt.Errorf("add[%d]: get menu item: %w", i, err)
		}
		notes := pgtype.Text{}
		if add.Notes != "" {
			notes = pgtype.Text{String: add.Notes, Valid: true}
		}
		_, err = store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:    req.OrderID,
			MenuItemID: mi.ID,
			Name:       mi.Name,
			UnitPrice:  mi.Price,
			Quantity:   add.Quantity,
			Status:     enum.ItemStatusPending,
			Station:    mi.Station,
			Notes:      notes,
		})
		if err != nil {
			return nil, fmt.Errorf("add[%d]: %w", i, err)
		}
	}

	items, err := store.ListOrderItemsByOrder(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(numericToDecimal(it.UnitPrice).Mul(decimal.NewFromInt32(it.Quantity)))
	}
	breakdown := computeBreakdown(subtotal, order.OrderType, restaurant)

	updated, err := store.UpdateOrderAmounts(ctx, database.UpdateOrderAmountsParams{
		ID:            req.OrderID,
		Subtotal:      decimalToNumeric(breakdown.subtotal),
		TaxAmount:     decimalToNumeric(breakdown.tax),
		ServiceCharge: decimalToNumeric(breakdown.serviceCharge),
		TotalAmount:   decimalToNumeric(breakdown.total),
	})
	if err != nil {
		return nil, fmt.Errorf("update amounts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &OrderResult{Order: updated, Items: items}, nil
}

// ProcessPayment settles a dine-in or takeaway bill. The payment guard: the
// order must be READY (every item ready or served). Delivery orders take the
// rider-settlement path instead. A CASH sale writes a DEBIT ledger entry into
// the open drawer session, if one exists.
func (s *OrderService) ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if !isValidPaymentMethod(req.Method) {
		return nil, ErrInvalidMethod
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: req.OrderID, RestaurantID: req.RestaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	switch {
	case order.Status == enum.OrderStatusPaid:
		return nil, ErrOrderAlreadyPaid
	case order.Status == enum.OrderStatusCancelled:
		return nil, ErrOrderTerminal
	case order.OrderType == enum.OrderTypeDelivery:
		return nil, ErrDeliveryViaRider
	case order.Status != enum.OrderStatusReady:
		return nil, ErrItemsPending
	}

	total := numericToDecimal(order.TotalAmount)

	tendered := pgtype.Numeric{}
	change := pgtype.Numeric{}
	changeDec := decimal.Zero
	if req.Method == enum.PaymentMethodCash {
		if req.Tendered == "" {
			return nil, ErrTenderedRequired
		}
		t, err := decimal.NewFromString(req.Tendered)
		if err != nil {
			return nil, ErrTenderedRequired
		}
		if t.LessThan(total) {
			return nil, ErrInsufficientCash
		}
		changeDec = t.Sub(total)
		tendered = decimalToNumeric(t)
		change = decimalToNumeric(changeDec)
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID:        req.OrderID,
		PaymentMethod:  req.Method,
		Amount:         order.TotalAmount,
		TenderedAmount: tendered,
		ChangeAmount:   change,
		ProcessedBy:    req.ProcessedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	paid, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:           req.OrderID,
		RestaurantID: req.RestaurantID,
		Status:       enum.OrderStatusPaid,
		PriorStatus:  enum.OrderStatusReady,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusChanged
		}
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	if order.TableID.Valid {
		if _, err := store.ReleaseTableOrder(ctx, order.TableID.Bytes); err != nil {
			return nil, fmt.Errorf("release table: %w", err)
		}
	}

	// Only physical cash lands in the drawer; card and bank-transfer sales
	// never touch expected cash.
	if req.Method == enum.PaymentMethodCash {
		session, err := store.GetOpenDrawerSession(ctx, req.RestaurantID)
		if err == nil {
			_, err = store.CreateLedgerEntry(ctx, database.CreateLedgerEntryParams{
				SessionID:     session.ID,
				EntryType:     enum.LedgerEntryDebit,
				ReferenceType: enum.LedgerRefSale,
				ReferenceID:   pgtype.UUID{Bytes: payment.ID, Valid: true},
				Amount:        order.TotalAmount,
				Notes:         pgtype.Text{String: "sale " + order.OrderNumber, Valid: true},
			})
			if err != nil {
				return nil, fmt.Errorf("ledger sale entry: %w", err)
			}
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get open session: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &PaymentResult{Payment: payment, Order: paid, Change: changeDec}, nil
}

// VoidOrder cancels an order with a mandatory reason and releases any table
// hold. Voiding is only permitted before payment or dispatch.
func (s *OrderService) VoidOrder(ctx context.Context, restaurantID, orderID uuid.UUID, reason string) (*OrderResult, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	cancelled, err := store.CancelOrder(ctx, database.CancelOrderParams{
		ID:           orderID,
		RestaurantID: restaurantID,
		Reason:       reason,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish "not found" from "not voidable" for the caller.
			if _, getErr := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: orderID, RestaurantID: restaurantID}); getErr != nil {
				if errors.Is(getErr, pgx.ErrNoRows) {
					return nil, ErrOrderNotFound
				}
				return nil, fmt.Errorf("get order for void: %w", getErr)
			}
			return nil, ErrOrderNotVoidable
		}
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if cancelled.TableID.Valid {
		if _, err := store.ResetTableAvailable(ctx, cancelled.TableID.Bytes); err != nil {
			return nil, fmt.Errorf("reset table: %w", err)
		}
	}

	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &OrderResult{Order: cancelled, Items: items}, nil
}

// GetOrder returns an order with its items.
func (s *OrderService) GetOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	order, err := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &OrderResult{Order: order, Items: items}, nil
}

// ListOrders returns orders matching the optional status, type and date
// filters, newest first.
func (s *OrderService) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	if arg.Limit <= 0 || arg.Limit > 100 {
		arg.Limit = 20
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	orders, err := s.newStore(tx).ListOrders(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return orders, nil
}

// --- Helpers ---

type breakdown struct {
	subtotal      decimal.Decimal
	tax           decimal.Decimal
	serviceCharge decimal.Decimal
	deliveryFee   decimal.Decimal
	total         decimal.Decimal
}

// computeBreakdown applies restaurant-level rates: tax on every order,
// service charge on dine-in, a flat fee on delivery.
func computeBreakdown(subtotal decimal.Decimal, orderType string, r database.Restaurant) breakdown {
	b := breakdown{
		subtotal:      subtotal,
		tax:           subtotal.Mul(numericToDecimal(r.TaxRate)).Round(2),
		serviceCharge: decimal.Zero,
		deliveryFee:   decimal.Zero,
	}
	if orderType == enum.OrderTypeDineIn {
		b.serviceCharge = subtotal.Mul(numericToDecimal(r.ServiceChargeRate)).Round(2)
	}
	if orderType == enum.OrderTypeDelivery {
		b.deliveryFee = numericToDecimal(r.DeliveryFee)
	}
	b.total = b.subtotal.Add(b.tax).Add(b.serviceCharge).Add(b.deliveryFee)
	return b
}

func validateOrderType(s string) error {
	switch s {
	case enum.OrderTypeDineIn, enum.OrderTypeTakeaway, enum.OrderTypeDelivery:
		return nil
	}
	return ErrInvalidOrderType
}

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodRaast:
		return true
	}
	return false
}
