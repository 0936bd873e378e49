package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Qaiser2raza/fireflow-api/internal/database"
	"github.com/Qaiser2raza/fireflow-api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// maxUndoDepth bounds the per-restaurant undo history. Old snapshots fall off
// the bottom.
const maxUndoDepth = 10

// Errors returned by the kitchen service.
var (
	ErrItemNotFound      = errors.New("order item not found")
	ErrInvalidItemStatus = errors.New("invalid item status")
	ErrItemChanged       = errors.New("item status changed, please retry")
	ErrNothingToUndo     = errors.New("nothing to undo")
)

// KitchenStore defines the DB methods the kitchen service needs.
type KitchenStore interface {
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderItem(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error)
	UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	RestoreOrderItemStatus(ctx context.Context, id uuid.UUID, status string) (database.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	SetOrderStatusInKitchen(ctx context.Context, id uuid.UUID, status string) (database.Order, error)
	RestoreOrderStatus(ctx context.Context, id uuid.UUID, status string) (database.Order, error)
	SetTablePaymentPending(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	ListKitchenQueue(ctx context.Context, arg database.ListKitchenQueueParams) ([]database.KitchenQueueRow, error)
	ReadyStationItems(ctx context.Context, arg database.ReadyStationItemsParams) ([]uuid.UUID, error)
}

// NewKitchenStore creates a KitchenStore from a DBTX.
type NewKitchenStore func(db database.DBTX) KitchenStore

// undoSnapshot captures the state a single KDS action overwrote: one item's
// prior status plus the prior status of every order the action touched.
type undoSnapshot struct {
	items  map[uuid.UUID]string
	orders map[uuid.UUID]string
}

// KitchenService drives item statuses from the kitchen display and keeps the
// order-level status in sync.
type KitchenService struct {
	pool     TxBeginner
	newStore NewKitchenStore

	mu   sync.Mutex
	undo map[uuid.UUID][]undoSnapshot
}

// NewKitchenService creates a new KitchenService.
func NewKitchenService(pool TxBeginner, newStore NewKitchenStore) *KitchenService {
	return &KitchenService{
		pool:     pool,
		newStore: newStore,
		undo:     make(map[uuid.UUID][]undoSnapshot),
	}
}

// ItemStatusResult is the outcome of a KDS action: the changed item, its
// order after recomputation, and the table if the action flipped one to
// PAYMENT_PENDING.
type ItemStatusResult struct {
	Item  database.OrderItem
	Order database.Order
	Table *database.DiningTable
}

// SetItemStatus advances one item through the kitchen machine and recomputes
// the order-level status from all sibling items. If the recomputed status is
// READY and the order is dine-in, the table flips to PAYMENT_PENDING as a
// side effect.
func (s *KitchenService) SetItemStatus(ctx context.Context, restaurantID, orderID, itemID uuid.UUID, next string) (*ItemStatusResult, error) {
	if !IsValidItemStatus(next) {
		return nil, ErrInvalidItemStatus
	}

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

	current, err := store.GetOrderItem(ctx, database.GetOrderItemParams{ID: itemID, OrderID: orderID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	if err := ValidateItemTransition(current.Status, next); err != nil {
		return nil, err
	}

	item, err := store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
		ID:          itemID,
		OrderID:     orderID,
		Status:      next,
		PriorStatus: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemChanged
		}
		return nil, fmt.Errorf("update item status: %w", err)
	}

	result := &ItemStatusResult{Item: item, Order: order}
	snap := undoSnapshot{
		items:  map[uuid.UUID]string{itemID: current.Status},
		orders: map[uuid.UUID]string{},
	}

	if IsKitchenPhase(order.Status) {
		items, err := store.ListOrderItemsByOrder(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		agg := AggregateStatus(itemStatuses(items))
		if agg != order.Status {
			snap.orders[orderID] = order.Status
			updated, err := store.SetOrderStatusInKitchen(ctx, orderID, agg)
			if err != nil {
				return nil, fmt.Errorf("recompute order status: %w", err)
			}
			result.Order = updated

			if agg == enum.OrderStatusReady && order.OrderType == enum.OrderTypeDineIn && order.TableID.Valid {
				table, err := store.SetTablePaymentPending(ctx, order.TableID.Bytes)
				if err == nil {
					result.Table = &table
				} else if !errors.Is(err, pgx.ErrNoRows) {
					return nil, fmt.Errorf("flag table: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.pushUndo(restaurantID, snap)
	return result, nil
}

// ReadyAllStation flips every active item at one station to READY in bulk and
// recomputes each touched order.
func (s *KitchenService) ReadyAllStation(ctx context.Context, restaurantID uuid.UUID, station string) ([]database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Snapshot the queue before the bulk UPDATE so undo can restore each
	// item's prior status individually.
	queue, err := store.ListKitchenQueue(ctx, database.ListKitchenQueueParams{
		RestaurantID: restaurantID,
		Station:      pgtype.Text{String: station, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	snap := undoSnapshot{
		items:  make(map[uuid.UUID]string, len(queue)),
		orders: map[uuid.UUID]string{},
	}
	for _, row := range queue {
		snap.items[row.Item.ID] = row.Item.Status
	}

	orderIDs, err := store.ReadyStationItems(ctx, database.ReadyStationItemsParams{
		RestaurantID: restaurantID,
		Station:      station,
	})
	if err != nil {
		return nil, fmt.Errorf("ready station: %w", err)
	}

	var updated []database.Order
	for _, id := range orderIDs {
		order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: id, RestaurantID: restaurantID})
		if err != nil {
			return nil, fmt.Errorf("get order: %w", err)
		}
		if !IsKitchenPhase(order.Status) {
			continue
		}
		items, err := store.ListOrderItemsByOrder(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		agg := AggregateStatus(itemStatuses(items))
		if agg == order.Status {
			updated = append(updated, order)
			continue
		}
		snap.orders[id] = order.Status
		o, err := store.SetOrderStatusInKitchen(ctx, id, agg)
		if err != nil {
			return nil, fmt.Errorf("recompute order status: %w", err)
		}
		if agg == enum.OrderStatusReady && o.OrderType == enum.OrderTypeDineIn && o.TableID.Valid {
			if _, err := store.SetTablePaymentPending(ctx, o.TableID.Bytes); err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("flag table: %w", err)
			}
		}
		updated = append(updated, o)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if len(snap.items) > 0 {
		s.pushUndo(restaurantID, snap)
	}
	return updated, nil
}

// Undo reverts the most recent KDS action for a restaurant by writing the
// snapshot statuses back. The history lives in memory and does not survive a
// restart; a misplaced tap is corrected within seconds or not at all.
func (s *KitchenService) Undo(ctx context.Context, restaurantID uuid.UUID) error {
	snap, ok := s.popUndo(restaurantID)
	if !ok {
		return ErrNothingToUndo
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	for itemID, status := range snap.items {
		if _, err := store.RestoreOrderItemStatus(ctx, itemID, status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return fmt.Errorf("restore item: %w", err)
		}
	}
	for orderID, status := range snap.orders {
		if _, err := store.RestoreOrderStatus(ctx, orderID, status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return fmt.Errorf("restore order: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Queue returns the station display rows. An empty station means all stations.
func (s *KitchenService) Queue(ctx context.Context, restaurantID uuid.UUID, station string) ([]database.KitchenQueueRow, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	filter := pgtype.Text{}
	if station != "" {
		filter = pgtype.Text{String: station, Valid: true}
	}
	queue, err := store.ListKitchenQueue(ctx, database.ListKitchenQueueParams{
		RestaurantID: restaurantID,
		Station:      filter,
	})
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return queue, nil
}

func itemStatuses(items []database.OrderItem) []string {
	statuses := make([]string, len(items))
	for i, it := range items {
		statuses[i] = it.Status
	}
	return statuses
}

func (s *KitchenService) pushUndo(restaurantID uuid.UUID, snap undoSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := append(s.undo[restaurantID], snap)
	if len(stack) > maxUndoDepth {
		stack = stack[len(stack)-maxUndoDepth:]
	}
	s.undo[restaurantID] = stack
}

func (s *KitchenService) popUndo(restaurantID uuid.UUID) (undoSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := s.undo[restaurantID]
	if len(stack) == 0 {
		return undoSnapshot{}, false
	}
	snap := stack[len(stack)-1]
	s.undo[restaurantID] = stack[:len(stack)-1]
	return snap, true
}
