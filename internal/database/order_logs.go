package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createOrderLog = `
INSERT INTO order_logs (order_id, status, acting_user_id, notes)
VALUES ($1, $2, $3, $4)
RETURNING id, order_id, status, acting_user_id, notes, created_at
`

type CreateOrderLogParams struct {
	OrderID      uuid.UUID
	Status       string
	ActingUserID pgtype.UUID
	Notes        pgtype.Text
}

func (q *Queries) CreateOrderLog(ctx context.Context, arg CreateOrderLogParams) (OrderLog, error) {
	row := q.db.QueryRow(ctx, createOrderLog, arg.OrderID, arg.Status, arg.ActingUserID, arg.Notes)
	var l OrderLog
	err := row.Scan(&l.ID, &l.OrderID, &l.Status, &l.ActingUserID, &l.Notes, &l.CreatedAt)
	return l, err
}

const listOrderLogsByOrder = `
SELECT id, order_id, status, acting_user_id, notes, created_at
FROM order_logs
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrderLogsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderLog, error) {
	rows, err := q.db.Query(ctx, listOrderLogsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderLog
	for rows.Next() {
		var l OrderLog
		if err := rows.Scan(&l.ID, &l.OrderID, &l.Status, &l.ActingUserID, &l.Notes, &l.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}
