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

// Errors returned by the drawer service.
var (
	ErrSessionAlreadyOpen = errors.New("restaurant already has an open drawer session")
	ErrNoOpenSession      = errors.New("no open drawer session")
	ErrSessionNotFound    = errors.New("drawer session not found")
	ErrInvalidAmount      = errors.New("amount must be > 0")
	ErrInvalidBalance     = errors.New("opening_balance must be >= 0")
	ErrReasonForPayout    = errors.New("a payout reason is required")
)

// DrawerStore defines the DB methods the cash drawer needs.
type DrawerStore interface {
	CreateDrawerSession(ctx context.Context, arg database.CreateDrawerSessionParams) (database.DrawerSession, error)
	GetOpenDrawerSession(ctx context.Context, restaurantID uuid.UUID) (database.DrawerSession, error)
	GetOpenDrawerSessionForUpdate(ctx context.Context, restaurantID uuid.UUID) (database.DrawerSession, error)
	GetDrawerSession(ctx context.Context, arg database.GetDrawerSessionParams) (database.DrawerSession, error)
	ListDrawerSessions(ctx context.Context, arg database.ListDrawerSessionsParams) ([]database.DrawerSession, error)
	CreateLedgerEntry(ctx context.Context, arg database.CreateLedgerEntryParams) (database.LedgerEntry, error)
	ListLedgerEntriesBySession(ctx context.Context, sessionID uuid.UUID) ([]database.LedgerEntry, error)
	SumLedgerBySession(ctx context.Context, sessionID uuid.UUID) (database.LedgerTotalsRow, error)
	CloseDrawerSession(ctx context.Context, arg database.CloseDrawerSessionParams) (database.DrawerSession, error)
}

// NewDrawerStore creates a DrawerStore from a DBTX.
type NewDrawerStore func(db database.DBTX) DrawerStore

// DrawerService handles till sessions, payouts and the Z-report.
type DrawerService struct {
	pool     TxBeginner
	newStore NewDrawerStore
}

// NewDrawerService creates a new DrawerService.
func NewDrawerService(pool TxBeginner, newStore NewDrawerStore) *DrawerService {
	return &DrawerService{pool: pool, newStore: newStore}
}

// OpenSession starts a till session with a counted opening balance. The
// partial unique index on open sessions makes the second concurrent open
// fail, so exactly one session per restaurant is ever open.
func (s *DrawerService) OpenSession(ctx context.Context, restaurantID, openedBy uuid.UUID, openingBalance decimal.Decimal) (*database.DrawerSession, error) {
	if openingBalance.IsNegative() {
		return nil, ErrInvalidBalance
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	session, err := s.newStore(tx).CreateDrawerSession(ctx, database.CreateDrawerSessionParams{
		RestaurantID:   restaurantID,
		OpenedBy:       openedBy,
		OpeningBalance: decimalToNumeric(openingBalance),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrSessionAlreadyOpen
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &session, nil
}

// RecordPayout takes cash out of the drawer for an expense. Requires an open
// session; the reason lands in the ledger notes.
func (s *DrawerService) RecordPayout(ctx context.Context, restaurantID uuid.UUID, amount decimal.Decimal, reason string) (*database.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if reason == "" {
		return nil, ErrReasonForPayout
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	session, err := store.GetOpenDrawerSessionForUpdate(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenSession
		}
		return nil, fmt.Errorf("get open session: %w", err)
	}

	entry, err := store.CreateLedgerEntry(ctx, database.CreateLedgerEntryParams{
		SessionID:     session.ID,
		EntryType:     enum.LedgerEntryCredit,
		ReferenceType: enum.LedgerRefPayout,
		Amount:        decimalToNumeric(amount),
		Notes:         pgtype.Text{String: reason, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &entry, nil
}

// ZReport is the session reconciliation snapshot.
type ZReport struct {
	Session      database.DrawerSession
	TotalSales   decimal.Decimal
	TotalPayouts decimal.Decimal
	ExpectedCash decimal.Decimal
	Variance     decimal.Decimal
	Entries      []database.LedgerEntry
}

// CloseSession counts the drawer down and produces the Z-report. Expected
// cash is the opening balance plus debit entries minus credit entries; the
// variance against the counted amount is persisted on the session so the
// report survives the session.
func (s *DrawerService) CloseSession(ctx context.Context, restaurantID, closedBy uuid.UUID, closingActual decimal.Decimal) (*ZReport, error) {
	if closingActual.IsNegative() {
		return nil, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	session, err := store.GetOpenDrawerSessionForUpdate(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenSession
		}
		return nil, fmt.Errorf("get open session: %w", err)
	}

	totals, err := store.SumLedgerBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("sum ledger: %w", err)
	}
	sales := numericToDecimal(totals.Debits)
	payouts := numericToDecimal(totals.Credits)
	expected := numericToDecimal(session.OpeningBalance).Add(sales).Sub(payouts)
	variance := closingActual.Sub(expected)

	closed, err := store.CloseDrawerSession(ctx, database.CloseDrawerSessionParams{
		ID:            session.ID,
		ClosedBy:      closedBy,
		ClosingActual: decimalToNumeric(closingActual),
		ExpectedCash:  decimalToNumeric(expected),
		Variance:      decimalToNumeric(variance),
		TotalSales:    decimalToNumeric(sales),
		TotalPayouts:  decimalToNumeric(payouts),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenSession
		}
		return nil, fmt.Errorf("close session: %w", err)
	}

	entries, err := store.ListLedgerEntriesBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &ZReport{
		Session:      closed,
		TotalSales:   sales,
		TotalPayouts: payouts,
		ExpectedCash: expected,
		Variance:     variance,
		Entries:      entries,
	}, nil
}

// CurrentSession returns the open session with running ledger totals.
func (s *DrawerService) CurrentSession(ctx context.Context, restaurantID uuid.UUID) (*ZReport, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	session, err := store.GetOpenDrawerSession(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenSession
		}
		return nil, fmt.Errorf("get open session: %w", err)
	}
	return s.report(ctx, tx, store, session)
}

// Report returns the persisted Z-report for any session, open or closed.
func (s *DrawerService) Report(ctx context.Context, restaurantID, sessionID uuid.UUID) (*ZReport, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	session, err := store.GetDrawerSession(ctx, database.GetDrawerSessionParams{ID: sessionID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s.report(ctx, tx, store, session)
}

func (s *DrawerService) report(ctx context.Context, tx pgx.Tx, store DrawerStore, session database.DrawerSession) (*ZReport, error) {
	totals, err := store.SumLedgerBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("sum ledger: %w", err)
	}
	entries, err := store.ListLedgerEntriesBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	sales := numericToDecimal(totals.Debits)
	payouts := numericToDecimal(totals.Credits)
	expected := numericToDecimal(session.OpeningBalance).Add(sales).Sub(payouts)

	report := &ZReport{
		Session:      session,
		TotalSales:   sales,
		TotalPayouts: payouts,
		ExpectedCash: expected,
		Entries:      entries,
	}
	if session.ClosingActual.Valid {
		report.Variance = numericToDecimal(session.ClosingActual).Sub(expected)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return report, nil
}

// ListSessions returns past sessions for the reports screen.
func (s *DrawerService) ListSessions(ctx context.Context, restaurantID uuid.UUID, limit, offset int32) ([]database.DrawerSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	sessions, err := s.newStore(tx).ListDrawerSessions(ctx, database.ListDrawerSessionsParams{
		RestaurantID: restaurantID,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return sessions, nil
}
