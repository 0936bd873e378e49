package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const sessionColumns = `id, restaurant_id, opened_by, opening_balance, status, opened_at, closed_at,
	closed_by, closing_actual, expected_cash, variance, total_sales, total_payouts`

const ledgerColumns = `id, session_id, entry_type, reference_type, reference_id, account_id, amount, notes, created_at`

func scanSession(row pgx.Row) (DrawerSession, error) {
	var s DrawerSession
	err := row.Scan(
		&s.ID, &s.RestaurantID, &s.OpenedBy, &s.OpeningBalance, &s.Status, &s.OpenedAt, &s.ClosedAt,
		&s.ClosedBy, &s.ClosingActual, &s.ExpectedCash, &s.Variance, &s.TotalSales, &s.TotalPayouts,
	)
	return s, err
}

func scanLedgerEntry(row pgx.Row) (LedgerEntry, error) {
	var e LedgerEntry
	err := row.Scan(
		&e.ID, &e.SessionID, &e.EntryType, &e.ReferenceType, &e.ReferenceID, &e.AccountID,
		&e.Amount, &e.Notes, &e.CreatedAt,
	)
	return e, err
}

type CreateDrawerSessionParams struct {
	RestaurantID   uuid.UUID
	OpenedBy       uuid.UUID
	OpeningBalance pgtype.Numeric
}

// CreateDrawerSession opens a till session. The partial unique index on
// (restaurant_id) WHERE status = 'OPEN' makes a second concurrent open fail
// with a 23505, which the service maps to a conflict.
func (q *Queries) CreateDrawerSession(ctx context.Context, arg CreateDrawerSessionParams) (DrawerSession, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO drawer_sessions (restaurant_id, opened_by, opening_balance, status)
		VALUES ($1, $2, $3, 'OPEN')
		RETURNING `+sessionColumns,
		arg.RestaurantID, arg.OpenedBy, arg.OpeningBalance,
	)
	return scanSession(row)
}

func (q *Queries) GetOpenDrawerSession(ctx context.Context, restaurantID uuid.UUID) (DrawerSession, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM drawer_sessions WHERE restaurant_id = $1 AND status = 'OPEN'`,
		restaurantID,
	)
	return scanSession(row)
}

// GetOpenDrawerSessionForUpdate locks the open session row so close and
// concurrent ledger writes serialize.
func (q *Queries) GetOpenDrawerSessionForUpdate(ctx context.Context, restaurantID uuid.UUID) (DrawerSession, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM drawer_sessions WHERE restaurant_id = $1 AND status = 'OPEN' FOR NO KEY UPDATE`,
		restaurantID,
	)
	return scanSession(row)
}

type GetDrawerSessionParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetDrawerSession(ctx context.Context, arg GetDrawerSessionParams) (DrawerSession, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM drawer_sessions WHERE id = $1 AND restaurant_id = $2`,
		arg.ID, arg.RestaurantID,
	)
	return scanSession(row)
}

type ListDrawerSessionsParams struct {
	RestaurantID uuid.UUID
	Limit        int32
	Offset       int32
}

func (q *Queries) ListDrawerSessions(ctx context.Context, arg ListDrawerSessionsParams) ([]DrawerSession, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+sessionColumns+` FROM drawer_sessions
		WHERE restaurant_id = $1 ORDER BY opened_at DESC LIMIT $2 OFFSET $3
	`, arg.RestaurantID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []DrawerSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

type CreateLedgerEntryParams struct {
	SessionID     uuid.UUID
	EntryType     string
	ReferenceType string
	ReferenceID   pgtype.UUID
	AccountID     pgtype.UUID
	Amount        pgtype.Numeric
	Notes         pgtype.Text
}

func (q *Queries) CreateLedgerEntry(ctx context.Context, arg CreateLedgerEntryParams) (LedgerEntry, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO ledger_entries (session_id, entry_type, reference_type, reference_id, account_id, amount, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+ledgerColumns,
		arg.SessionID, arg.EntryType, arg.ReferenceType, arg.ReferenceID, arg.AccountID, arg.Amount, arg.Notes,
	)
	return scanLedgerEntry(row)
}

func (q *Queries) ListLedgerEntriesBySession(ctx context.Context, sessionID uuid.UUID) ([]LedgerEntry, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE session_id = $1 ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LedgerTotalsRow carries the debit and credit sums for a session.
type LedgerTotalsRow struct {
	Debits  pgtype.Numeric
	Credits pgtype.Numeric
}

func (q *Queries) SumLedgerBySession(ctx context.Context, sessionID uuid.UUID) (LedgerTotalsRow, error) {
	var t LedgerTotalsRow
	err := q.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE entry_type = 'DEBIT'), 0),
			COALESCE(SUM(amount) FILTER (WHERE entry_type = 'CREDIT'), 0)
		FROM ledger_entries WHERE session_id = $1
	`, sessionID).Scan(&t.Debits, &t.Credits)
	return t, err
}

type CloseDrawerSessionParams struct {
	ID            uuid.UUID
	ClosedBy      uuid.UUID
	ClosingActual pgtype.Numeric
	ExpectedCash  pgtype.Numeric
	Variance      pgtype.Numeric
	TotalSales    pgtype.Numeric
	TotalPayouts  pgtype.Numeric
}

// CloseDrawerSession persists the Z-report snapshot and moves the session to
// CLOSED in one guarded UPDATE; closing twice finds no rows.
func (q *Queries) CloseDrawerSession(ctx context.Context, arg CloseDrawerSessionParams) (DrawerSession, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE drawer_sessions
		SET status = 'CLOSED', closed_at = NOW(), closed_by = $2, closing_actual = $3,
			expected_cash = $4, variance = $5, total_sales = $6, total_payouts = $7
		WHERE id = $1 AND status = 'OPEN'
		RETURNING `+sessionColumns,
		arg.ID, arg.ClosedBy, arg.ClosingActual, arg.ExpectedCash, arg.Variance, arg.TotalSales, arg.TotalPayouts,
	)
	return scanSession(row)
}
