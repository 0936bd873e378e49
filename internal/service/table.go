package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Qaiser2raza/fireflow-api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Errors returned by the table service.
var (
	ErrTableNotFound      = errors.New("table not found")
	ErrInvalidTableStatus = errors.New("invalid table status")
	ErrTableChanged       = errors.New("table status changed, please retry")
	ErrTableHoldsOrder    = errors.New("table still holds an active order")
)

// TableStore defines the DB methods the table service needs.
type TableStore interface {
	ListTables(ctx context.Context, restaurantID uuid.UUID) ([]database.DiningTable, error)
	GetTable(ctx context.Context, arg database.GetTableParams) (database.DiningTable, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.DiningTable, error)
}

// NewTableStore creates a TableStore from a DBTX.
type NewTableStore func(db database.DBTX) TableStore

// TableService handles the floor plan: listing tables and the operator-driven
// part of the bus cycle. Seating and releasing are owned by the order
// lifecycle and are not exposed here.
type TableService struct {
	pool     TxBeginner
	newStore NewTableStore
}

// NewTableService creates a new TableService.
func NewTableService(pool TxBeginner, newStore NewTableStore) *TableService {
	return &TableService{pool: pool, newStore: newStore}
}

// ListTables returns the restaurant's floor plan.
func (s *TableService) ListTables(ctx context.Context, restaurantID uuid.UUID) ([]database.DiningTable, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tables, err := s.newStore(tx).ListTables(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return tables, nil
}

// SetTableStatus applies an operator-declared status change (bus the table,
// put it back in service). The guarded UPDATE carries the prior status so a
// stale client loses the race instead of overwriting.
func (s *TableService) SetTableStatus(ctx context.Context, restaurantID, tableID uuid.UUID, next string) (*database.DiningTable, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetTable(ctx, database.GetTableParams{ID: tableID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}
	if err := ValidateTableTransition(current.Status, next); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTableStatus, err)
	}
	if current.ActiveOrderID.Valid {
		return nil, ErrTableHoldsOrder
	}

	table, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID:           tableID,
		RestaurantID: restaurantID,
		Status:       next,
		PriorStatus:  current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableChanged
		}
		return nil, fmt.Errorf("update table status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &table, nil
}
