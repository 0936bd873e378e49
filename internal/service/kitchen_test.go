package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Qaiser2raza/fireflow-api/internal/database"
	"github.com/Qaiser2raza/fireflow-api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// mockKitchenStore implements KitchenStore with configurable behavior.
type mockKitchenStore struct {
	getOrderForUpdateFn      func(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	getOrderItemFn           func(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error)
	updateOrderItemStatusFn  func(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	restoreOrderItemStatusFn func(ctx context.Context, id uuid.UUID, status string) (database.OrderItem, error)
	listOrderItemsFn         func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	setOrderStatusFn         func(ctx context.Context, id uuid.UUID, status string) (database.Order, error)
	restoreOrderStatusFn     func(ctx context.Context, id uuid.UUID, status string) (database.Order, error)
	setTablePaymentFn        func(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	listKitchenQueueFn       func(ctx context.Context, arg database.ListKitchenQueueParams) ([]database.KitchenQueueRow, error)
	readyStationItemsFn      func(ctx context.Context, arg database.ReadyStationItemsParams) ([]uuid.UUID, error)
}

func (m *mockKitchenStore) GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	return m.getOrderForUpdateFn(ctx, arg)
}
func (m *mockKitchenStore) GetOrderItem(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error) {
	return m.getOrderItemFn(ctx, arg)
}
func (m *mockKitchenStore) UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error) {
	return m.updateOrderItemStatusFn(ctx, arg)
}
func (m *mockKitchenStore) RestoreOrderItemStatus(ctx context.Context, id uuid.UUID, status string) (database.OrderItem, error) {
	return m.restoreOrderItemStatusFn(ctx, id, status)
}
func (m *mockKitchenStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.listOrderItemsFn(ctx, orderID)
}
func (m *mockKitchenStore) SetOrderStatusInKitchen(ctx context.Context, id uuid.UUID, status string) (database.Order, error) {
	return m.setOrderStatusFn(ctx, id, status)
}
func (m *mockKitchenStore) RestoreOrderStatus(ctx context.Context, id uuid.UUID, status string) (database.Order, error) {
	return m.restoreOrderStatusFn(ctx, id, status)
}
func (m *mockKitchenStore) SetTablePaymentPending(ctx context.Context, id uuid.UUID) (database.DiningTable, error) {
	return m.setTablePaymentFn(ctx, id)
}
func (m *mockKitchenStore) ListKitchenQueue(ctx context.Context, arg database.ListKitchenQueueParams) ([]database.KitchenQueueRow, error) {
	return m.listKitchenQueueFn(ctx, arg)
}
func (m *mockKitchenStore) ReadyStationItems(ctx context.Context, arg database.ReadyStationItemsParams) ([]uuid.UUID, error) {
	return m.readyStationItemsFn(ctx, arg)
}

func newTestKitchenService(store *mockKitchenStore) *KitchenService {
	pool := &mockTxBeginner{tx: &mockTx{}}
	return NewKitchenService(pool, func(db database.DBTX) KitchenStore { return store })
}

// kdsStore wires a single order with two items so their statuses drive the
// aggregate. Tests mutate the items slice through the update hooks.
func kdsStore(restaurantID, orderID uuid.UUID, orderStatus, orderType string, items []database.OrderItem) *mockKitchenStore {
	order := database.Order{
		ID:           orderID,
		RestaurantID: restaurantID,
		Status:       orderStatus,
		OrderType:    orderType,
	}
	store := &mockKitchenStore{}
	store.getOrderForUpdateFn = func(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
		return order, nil
	}
	store.getOrderItemFn = func(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error) {
		for _, it := range items {
			if it.ID == arg.ID {
				return it, nil
			}
		}
		return database.OrderItem{}, pgx.ErrNoRows
	}
	store.updateOrderItemStatusFn = func(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error) {
		for i := range items {
			if items[i].ID == arg.ID && items[i].Status == arg.PriorStatus {
				items[i].Status = arg.Status
				return items[i], nil
			}
		}
		return database.OrderItem{}, pgx.ErrNoRows
	}
	store.listOrderItemsFn = func(ctx context.Context, id uuid.UUID) ([]database.OrderItem, error) {
		return items, nil
	}
	store.setOrderStatusFn = func(ctx context.Context, id uuid.UUID, status string) (database.Order, error) {
		order.Status = status
		return order, nil
	}
	store.setTablePaymentFn = func(ctx context.Context, id uuid.UUID) (database.DiningTable, error) {
		return database.DiningTable{ID: id, Status: enum.TableStatusPaymentPending}, nil
	}
	return store
}

func TestSetItemStatus_InvalidStatus(t *testing.T) {
	svc := newTestKitchenService(&mockKitchenStore{})
	_, err := svc.SetItemStatus(context.Background(), uuid.New(), uuid.New(), uuid.New(), "BURNT")
	if !errors.Is(err, ErrInvalidItemStatus) {
		t.Fatalf("expected ErrInvalidItemStatus, got: %v", err)
	}
}

func TestSetItemStatus_RejectsBackwardMove(t *testing.T) {
	restaurantID := uuid.New()
	orderID := uuid.New()
	itemID := uuid.New()
	items := []database.OrderItem{{ID: itemID, OrderID: orderID, Status: enum.ItemStatusReady}}
	store := kdsStore(restaurantID, orderID, enum.OrderStatusReady, enum.OrderTypeTakeaway, items)
	svc := newTestKitchenService(store)

	_, err := svc.SetItemStatus(context.Background(), restaurantID, orderID, itemID, enum.ItemStatusPreparing)
	if err == nil {
		t.Fatal("expected transition error for READY -> PREPARING")
	}
}

func TestSetItemStatus_RecomputesOrderStatus(t *testing.T) {
	restaurantID := uuid.New()
	orderID := uuid.New()
	itemA := uuid.New()
	itemB := uuid.New()
	items := []database.OrderItem{
		{ID: itemA, OrderID: orderID, Status: enum.ItemStatusFired},
		{ID: itemB, OrderID: orderID, Status: enum.ItemStatusFired},
	}
	store := kdsStore(restaurantID, orderID, enum.OrderStatusNew, enum.OrderTypeTakeaway, items)
	svc := newTestKitchenService(store)

	result, err := svc.SetItemStatus(context.Background(), restaurantID, orderID, itemA, enum.ItemStatusPreparing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Order.Status != enum.OrderStatusPreparing {
		t.Errorf("order status = %s, want PREPARING", result.Order.Status)
	}
}

func TestSetItemStatus_AllReadyFlagsDineInTable(t *testing.T) {
	restaurantID := uuid.New()
	orderID := uuid.New()
	tableID := uuid.New()
	itemA := uuid.New()
	itemB := uuid.New()
	items := []database.OrderItem{
		{ID: itemA, OrderID: orderID, Status: enum.ItemStatusReady},
		{ID: itemB, OrderID: orderID, Status: enum.ItemStatusPreparing},
	}
	store := kdsStore(restaurantID, orderID, enum.OrderStatusPreparing, enum.OrderTypeDineIn, items)
	order := database.Order{
		ID:           orderID,
		RestaurantID: restaurantID,
		Status:       enum.OrderStatusPreparing,
		OrderType:    enum.OrderTypeDineIn,
		TableID:      pgtype.UUID{Bytes: tableID, Valid: true},
	}
	store.getOrderForUpdateFn = func(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
		return order, nil
	}
	store.setOrderStatusFn = func(ctx context.Context, id uuid.UUID, status string) (database.Order, error) {
		order.Status = status
		return order, nil
	}
	flagged := false
	store.setTablePaymentFn = func(ctx context.Context, id uuid.UUID) (database.DiningTable, error) {
		if id != tableID {
			t.Errorf("flagged table %s, want %s", id, tableID)
		}
		flagged = true
		return database.DiningTable{ID: id, Status: enum.TableStatusPaymentPending}, nil
	}
	svc := newTestKitchenService(store)

	result, err := svc.SetItemStatus(context.Background(), restaurantID, orderID, itemB, enum.ItemStatusReady)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Order.Status != enum.OrderStatusReady {
		t.Errorf("order status = %s, want READY", result.Order.Status)
	}
	if !flagged {
		t.Error("expected table flagged PAYMENT_PENDING")
	}
	if result.Table == nil || result.Table.Status != enum.TableStatusPaymentPending {
		t.Error("expected table in result")
	}
}

func TestSetItemStatus_TerminalOrderRejected(t *testing.T) {
	restaurantID := uuid.New()
	orderID := uuid.New()
	store := &mockKitchenStore{
		getOrderForUpdateFn: func(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
			return database.Order{ID: orderID, Status: enum.OrderStatusPaid}, nil
		},
	}
	svc := newTestKitchenService(store)

	_, err := svc.SetItemStatus(context.Background(), restaurantID, orderID, uuid.New(), enum.ItemStatusServed)
	if !errors.Is(err, ErrOrderTerminal) {
		t.Fatalf("expected ErrOrderTerminal, got: %v", err)
	}
}

func TestSetItemStatus_DeliveredOrderNeverRegresses(t *testing.T) {
	restaurantID := uuid.New()
	orderID := uuid.New()
	itemID := uuid.New()
	items := []database.OrderItem{{ID: itemID, OrderID: orderID, Status: enum.ItemStatusReady}}
	store := kdsStore(restaurantID, orderID, enum.OrderStatusOutForDelivery, enum.OrderTypeDelivery, items)
	store.setOrderStatusFn = func(ctx context.Context, id uuid.UUID, status string) (database.Order, error) {
		t.Errorf("aggregation must not touch a dispatched order (tried %s)", status)
		return database.Order{}, nil
	}
	svc := newTestKitchenService(store)

	result, err := svc.SetItemStatus(context.Background(), restaurantID, orderID, itemID, enum.ItemStatusServed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Order.Status != enum.OrderStatusOutForDelivery {
		t.Errorf("order status = %s, want OUT_FOR_DELIVERY", result.Order.Status)
	}
}

func TestUndo_EmptyStack(t *testing.T) {
	svc := newTestKitchenService(&mockKitchenStore{})
	err := svc.Undo(context.Background(), uuid.New())
	if !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo, got: %v", err)
	}
}

func TestUndo_RestoresLastAction(t *testing.T) {
	restaurantID := uuid.New()
	orderID := uuid.New()
	itemID := uuid.New()
	items := []database.OrderItem{{ID: itemID, OrderID: orderID, Status: enum.ItemStatusFired}}
	store := kdsStore(restaurantID, orderID, enum.OrderStatusNew, enum.OrderTypeTakeaway, items)

	var restoredItem, restoredOrder string
	store.restoreOrderItemStatusFn = func(ctx context.Context, id uuid.UUID, status string) (database.OrderItem, error) {
		restoredItem = status
		return database.OrderItem{ID: id, Status: status}, nil
	}
	store.restoreOrderStatusFn = func(ctx context.Context, id uuid.UUID, status string) (database.Order, error) {
		restoredOrder = status
		return database.Order{ID: id, Status: status}, nil
	}
	svc := newTestKitchenService(store)

	if _, err := svc.SetItemStatus(context.Background(), restaurantID, orderID, itemID, enum.ItemStatusPreparing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Undo(context.Background(), restaurantID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restoredItem != enum.ItemStatusFired {
		t.Errorf("restored item status = %s, want FIRED", restoredItem)
	}
	if restoredOrder != enum.OrderStatusNew {
		t.Errorf("restored order status = %s, want NEW", restoredOrder)
	}

	// A second undo finds nothing.
	if err := svc.Undo(context.Background(), restaurantID); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo, got: %v", err)
	}
}

func TestUndo_StackIsBounded(t *testing.T) {
	svc := newTestKitchenService(&mockKitchenStore{})
	restaurantID := uuid.New()
	for i := 0; i < maxUndoDepth+5; i++ {
		svc.pushUndo(restaurantID, undoSnapshot{items: map[uuid.UUID]string{uuid.New(): enum.ItemStatusFired}})
	}
	svc.mu.Lock()
	depth := len(svc.undo[restaurantID])
	svc.mu.Unlock()
	if depth != maxUndoDepth {
		t.Errorf("stack depth = %d, want %d", depth, maxUndoDepth)
	}
}

func TestReadyAllStation_RecomputesTouchedOrders(t *testing.T) {
	restaurantID := uuid.New()
	orderID := uuid.New()
	itemID := uuid.New()

	order := database.Order{ID: orderID, RestaurantID: restaurantID, Status: enum.OrderStatusPreparing, OrderType: enum.OrderTypeTakeaway}
	items := []database.OrderItem{{ID: itemID, OrderID: orderID, Status: enum.ItemStatusReady}}

	store := &mockKitchenStore{
		listKitchenQueueFn: func(ctx context.Context, arg database.ListKitchenQueueParams) ([]database.KitchenQueueRow, error) {
			return []database.KitchenQueueRow{{Item: database.OrderItem{ID: itemID, Status: enum.ItemStatusPreparing}}}, nil
		},
		readyStationItemsFn: func(ctx context.Context, arg database.ReadyStationItemsParams) ([]uuid.UUID, error) {
			if arg.Station != enum.StationHot {
				t.Errorf("station = %s, want HOT", arg.Station)
			}
			return []uuid.UUID{orderID}, nil
		},
		getOrderForUpdateFn: func(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
			return order, nil
		},
		listOrderItemsFn: func(ctx context.Context, id uuid.UUID) ([]database.OrderItem, error) {
			return items, nil
		},
		setOrderStatusFn: func(ctx context.Context, id uuid.UUID, status string) (database.Order, error) {
			order.Status = status
			return order, nil
		},
	}
	svc := newTestKitchenService(store)

	updated, err := svc.ReadyAllStation(context.Background(), restaurantID, enum.StationHot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated) != 1 || updated[0].Status != enum.OrderStatusReady {
		t.Errorf("expected one order moved to READY, got %+v", updated)
	}
}
