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

// mockTableStore implements TableStore with configurable behavior.
type mockTableStore struct {
	listTablesFn        func(ctx context.Context, restaurantID uuid.UUID) ([]database.DiningTable, error)
	getTableFn          func(ctx context.Context, arg database.GetTableParams) (database.DiningTable, error)
	updateTableStatusFn func(ctx context.Context, arg database.UpdateTableStatusParams) (database.DiningTable, error)
}

func (m *mockTableStore) ListTables(ctx context.Context, restaurantID uuid.UUID) ([]database.DiningTable, error) {
	return m.listTablesFn(ctx, restaurantID)
}
func (m *mockTableStore) GetTable(ctx context.Context, arg database.GetTableParams) (database.DiningTable, error) {
	return m.getTableFn(ctx, arg)
}
func (m *mockTableStore) UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.DiningTable, error) {
	return m.updateTableStatusFn(ctx, arg)
}

func newTestTableService(store *mockTableStore) *TableService {
	pool := &mockTxBeginner{tx: &mockTx{}}
	return NewTableService(pool, func(db database.DBTX) TableStore { return store })
}

func TestSetTableStatus_BusDirtyTable(t *testing.T) {
	restaurantID := uuid.New()
	tableID := uuid.New()

	store := &mockTableStore{
		getTableFn: func(ctx context.Context, arg database.GetTableParams) (database.DiningTable, error) {
			return database.DiningTable{
				ID: tableID, RestaurantID: restaurantID,
				Status: enum.TableStatusDirty,
			}, nil
		},
		updateTableStatusFn: func(ctx context.Context, arg database.UpdateTableStatusParams) (database.DiningTable, error) {
			if arg.PriorStatus != enum.TableStatusDirty {
				t.Errorf("prior status: got %s, want DIRTY", arg.PriorStatus)
			}
			return database.DiningTable{
				ID: arg.ID, RestaurantID: arg.RestaurantID, Status: arg.Status,
			}, nil
		},
	}

	svc := newTestTableService(store)
	table, err := svc.SetTableStatus(context.Background(), restaurantID, tableID, enum.TableStatusAvailable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Status != enum.TableStatusAvailable {
		t.Errorf("status: got %s, want AVAILABLE", table.Status)
	}
}

func TestSetTableStatus_RejectsBackwardMove(t *testing.T) {
	store := &mockTableStore{
		getTableFn: func(ctx context.Context, arg database.GetTableParams) (database.DiningTable, error) {
			return database.DiningTable{ID: arg.ID, Status: enum.TableStatusAvailable}, nil
		},
	}

	svc := newTestTableService(store)
	_, err := svc.SetTableStatus(context.Background(), uuid.New(), uuid.New(), enum.TableStatusDirty)
	if !errors.Is(err, ErrInvalidTableStatus) {
		t.Fatalf("expected ErrInvalidTableStatus, got: %v", err)
	}
}

func TestSetTableStatus_BlockedByActiveOrder(t *testing.T) {
	store := &mockTableStore{
		getTableFn: func(ctx context.Context, arg database.GetTableParams) (database.DiningTable, error) {
			return database.DiningTable{
				ID:            arg.ID,
				Status:        enum.TableStatusOccupied,
				ActiveOrderID: pgtype.UUID{Bytes: uuid.New(), Valid: true},
			}, nil
		},
	}

	svc := newTestTableService(store)
	_, err := svc.SetTableStatus(context.Background(), uuid.New(), uuid.New(), enum.TableStatusDirty)
	if !errors.Is(err, ErrTableHoldsOrder) {
		t.Fatalf("expected ErrTableHoldsOrder, got: %v", err)
	}
}

func TestSetTableStatus_NotFound(t *testing.T) {
	store := &mockTableStore{
		getTableFn: func(ctx context.Context, arg database.GetTableParams) (database.DiningTable, error) {
			return database.DiningTable{}, pgx.ErrNoRows
		},
	}

	svc := newTestTableService(store)
	_, err := svc.SetTableStatus(context.Background(), uuid.New(), uuid.New(), enum.TableStatusAvailable)
	if !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got: %v", err)
	}
}

func TestSetTableStatus_LosesRace(t *testing.T) {
	store := &mockTableStore{
		getTableFn: func(ctx context.Context, arg database.GetTableParams) (database.DiningTable, error) {
			return database.DiningTable{ID: arg.ID, Status: enum.TableStatusDirty}, nil
		},
		updateTableStatusFn: func(ctx context.Context, arg database.UpdateTableStatusParams) (database.DiningTable, error) {
			return database.DiningTable{}, pgx.ErrNoRows
		},
	}

	svc := newTestTableService(store)
	_, err := svc.SetTableStatus(context.Background(), uuid.New(), uuid.New(), enum.TableStatusAvailable)
	if !errors.Is(err, ErrTableChanged) {
		t.Fatalf("expected ErrTableChanged, got: %v", err)
	}
}

func TestListTables_ReturnsFloorPlan(t *testing.T) {
	restaurantID := uuid.New()
	store := &mockTableStore{
		listTablesFn: func(ctx context.Context, rid uuid.UUID) ([]database.DiningTable, error) {
			if rid != restaurantID {
				t.Errorf("restaurant id: got %s, want %s", rid, restaurantID)
			}
			return []database.DiningTable{
				{ID: uuid.New(), TableNumber: 1, Status: enum.TableStatusAvailable},
				{ID: uuid.New(), TableNumber: 2, Status: enum.TableStatusOccupied},
			}, nil
		},
	}

	svc := newTestTableService(store)
	tables, err := svc.ListTables(context.Background(), restaurantID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tables) != 2 {
		t.Errorf("tables: got %d, want 2", len(tables))
	}
}
