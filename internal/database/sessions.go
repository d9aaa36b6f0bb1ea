package database

import (
	"context"

	"github.com/google/uuid"
)

const createSession = `
INSERT INTO sessions (table_id, restaurant_id, branch_id)
VALUES ($1, $2, $3)
RETURNING id, table_id, restaurant_id, branch_id, started_at, ended_at, is_active
`

type CreateSessionParams struct {
	TableID      uuid.UUID
	RestaurantID uuid.UUID
	BranchID     uuid.UUID
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	row := q.db.QueryRow(ctx, createSession, arg.TableID, arg.RestaurantID, arg.BranchID)
	var s Session
	err := row.Scan(&s.ID, &s.TableID, &s.RestaurantID, &s.BranchID, &s.StartedAt, &s.EndedAt, &s.IsActive)
	return s, err
}

const getSession = `
SELECT id, table_id, restaurant_id, branch_id, started_at, ended_at, is_active
FROM sessions
WHERE id = $1
`

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	row := q.db.QueryRow(ctx, getSession, id)
	var s Session
	err := row.Scan(&s.ID, &s.TableID, &s.RestaurantID, &s.BranchID, &s.StartedAt, &s.EndedAt, &s.IsActive)
	return s, err
}

const getSessionForUpdate = `
SELECT id, table_id, restaurant_id, branch_id, started_at, ended_at, is_active
FROM sessions
WHERE id = $1
FOR UPDATE
`

// GetSessionForUpdate locks the session row for the rest of the transaction.
// Order placement and session end both read through it, so End's open-order
// count and CreateOrder's is_active check serialize against each other.
func (q *Queries) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (Session, error) {
	row := q.db.QueryRow(ctx, getSessionForUpdate, id)
	var s Session
	err := row.Scan(&s.ID, &s.TableID, &s.RestaurantID, &s.BranchID, &s.StartedAt, &s.EndedAt, &s.IsActive)
	return s, err
}

const getActiveSessionByTable = `
SELECT id, table_id, restaurant_id, branch_id, started_at, ended_at, is_active
FROM sessions
WHERE table_id = $1 AND is_active
`

func (q *Queries) GetActiveSessionByTable(ctx context.Context, tableID uuid.UUID) (Session, error) {
	row := q.db.QueryRow(ctx, getActiveSessionByTable, tableID)
	var s Session
	err := row.Scan(&s.ID, &s.TableID, &s.RestaurantID, &s.BranchID, &s.StartedAt, &s.EndedAt, &s.IsActive)
	return s, err
}

const endSession = `
UPDATE sessions
SET is_active = false, ended_at = now()
WHERE id = $1 AND is_active
RETURNING id, table_id, restaurant_id, branch_id, started_at, ended_at, is_active
`

// EndSession flips the session inactive. Returns pgx.ErrNoRows when the
// session was already ended, so callers can distinguish the second end.
func (q *Queries) EndSession(ctx context.Context, id uuid.UUID) (Session, error) {
	row := q.db.QueryRow(ctx, endSession, id)
	var s Session
	err := row.Scan(&s.ID, &s.TableID, &s.RestaurantID, &s.BranchID, &s.StartedAt, &s.EndedAt, &s.IsActive)
	return s, err
}

const countOpenOrdersBySession = `
SELECT COUNT(*)
FROM orders
WHERE session_id = $1 AND status NOT IN ('COMPLETED', 'CANCELLED')
`

func (q *Queries) CountOpenOrdersBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countOpenOrdersBySession, sessionID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listSessionsByBranch = `
SELECT id, table_id, restaurant_id, branch_id, started_at, ended_at, is_active
FROM sessions
WHERE branch_id = $1
ORDER BY started_at DESC
LIMIT $2 OFFSET $3
`

type ListSessionsByBranchParams struct {
	BranchID uuid.UUID
	Limit    int32
	Offset   int32
}

func (q *Queries) ListSessionsByBranch(ctx context.Context, arg ListSessionsByBranchParams) ([]Session, error) {
	rows, err := q.db.Query(ctx, listSessionsByBranch, arg.BranchID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.TableID, &s.RestaurantID, &s.BranchID, &s.StartedAt, &s.EndedAt, &s.IsActive); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
