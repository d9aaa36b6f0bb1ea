package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createPayment = `
INSERT INTO payments (order_id, amount, method, status, processed_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, amount, method, status, processed_by, created_at, updated_at
`

type CreatePaymentParams struct {
	OrderID     uuid.UUID
	Amount      pgtype.Numeric
	Method      string
	Status      string
	ProcessedBy pgtype.UUID
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment,
		arg.OrderID, arg.Amount, arg.Method, arg.Status, arg.ProcessedBy)
	return scanPayment(row)
}

const getPayment = `
SELECT id, order_id, amount, method, status, processed_by, created_at, updated_at
FROM payments
WHERE id = $1
`

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPayment, id))
}

const listPaymentsByOrder = `
SELECT id, order_id, amount, method, status, processed_by, created_at, updated_at
FROM payments
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const sumCompletedPaymentsByOrder = `
SELECT COALESCE(SUM(amount), 0)
FROM payments
WHERE order_id = $1 AND status = 'COMPLETED'
`

// SumCompletedPaymentsByOrder is the figure the overpayment check and the
// order completion gate both run on; PENDING and FAILED rows never count.
func (q *Queries) SumCompletedPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, sumCompletedPaymentsByOrder, orderID)
	var sum pgtype.Numeric
	err := row.Scan(&sum)
	return sum, err
}

const updatePaymentStatus = `
UPDATE payments
SET status = $2, updated_at = now()
WHERE id = $1 AND status = 'PENDING'
RETURNING id, order_id, amount, method, status, processed_by, created_at, updated_at
`

type UpdatePaymentStatusParams struct {
	ID     uuid.UUID
	Status string
}

// UpdatePaymentStatus moves a PENDING payment to COMPLETED or FAILED.
// Settled payments are immutable; pgx.ErrNoRows signals the conflict.
func (q *Queries) UpdatePaymentStatus(ctx context.Context, arg UpdatePaymentStatusParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, updatePaymentStatus, arg.ID, arg.Status))
}

func scanPayment(row rowScanner) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.Status, &p.ProcessedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
