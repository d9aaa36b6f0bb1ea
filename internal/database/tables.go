package database

import (
	"context"

	"github.com/google/uuid"
)

const createTable = `
INSERT INTO tables (restaurant_id, branch_id, table_number, seat_count, active)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, restaurant_id, branch_id, table_number, seat_count, active, created_at
`

type CreateTableParams struct {
	RestaurantID uuid.UUID
	BranchID     uuid.UUID
	TableNumber  int32
	SeatCount    int32
	Active       bool
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, createTable,
		arg.RestaurantID, arg.BranchID, arg.TableNumber, arg.SeatCount, arg.Active)
	return scanTable(row)
}

const getTable = `
SELECT id, restaurant_id, branch_id, table_number, seat_count, active, created_at
FROM tables
WHERE id = $1
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTable, id))
}

const listTablesByBranch = `
SELECT id, restaurant_id, branch_id, table_number, seat_count, active, created_at
FROM tables
WHERE branch_id = $1
ORDER BY table_number
`

func (q *Queries) ListTablesByBranch(ctx context.Context, branchID uuid.UUID) ([]Table, error) {
	rows, err := q.db.Query(ctx, listTablesByBranch, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Table
	for rows.Next() {
		tbl, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tbl)
	}
	return items, rows.Err()
}

const updateTable = `
UPDATE tables
SET table_number = $2, seat_count = $3, active = $4
WHERE id = $1
RETURNING id, restaurant_id, branch_id, table_number, seat_count, active, created_at
`

type UpdateTableParams struct {
	ID          uuid.UUID
	TableNumber int32
	SeatCount   int32
	Active      bool
}

func (q *Queries) UpdateTable(ctx context.Context, arg UpdateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, updateTable, arg.ID, arg.TableNumber, arg.SeatCount, arg.Active)
	return scanTable(row)
}

const deleteTable = `
DELETE FROM tables WHERE id = $1
`

func (q *Queries) DeleteTable(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteTable, id)
	return err
}

func scanTable(row rowScanner) (Table, error) {
	var t Table
	err := row.Scan(&t.ID, &t.RestaurantID, &t.BranchID, &t.TableNumber, &t.SeatCount, &t.Active, &t.CreatedAt)
	return t, err
}
