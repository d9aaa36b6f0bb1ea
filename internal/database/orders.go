package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createOrder = `
INSERT INTO orders (session_id, restaurant_id, branch_id, status, total_amount, notes, version)
VALUES ($1, $2, $3, $4, $5, $6, 1)
RETURNING id, session_id, restaurant_id, branch_id, status, total_amount, notes, version, created_at, updated_at
`

type CreateOrderParams struct {
	SessionID    uuid.UUID
	RestaurantID uuid.UUID
	BranchID     uuid.UUID
	Status       string
	TotalAmount  pgtype.Numeric
	Notes        pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.SessionID, arg.RestaurantID, arg.BranchID, arg.Status, arg.TotalAmount, arg.Notes)
	return scanOrder(row)
}

const getOrder = `
SELECT id, session_id, restaurant_id, branch_id, status, total_amount, notes, version, created_at, updated_at
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `
SELECT id, session_id, restaurant_id, branch_id, status, total_amount, notes, version, created_at, updated_at
FROM orders
WHERE id = $1
FOR UPDATE
`

// GetOrderForUpdate locks the order row for the rest of the transaction.
// Payment writes read through it so checks against the completed sum
// serialize per order.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrdersBySession = `
SELECT id, session_id, restaurant_id, branch_id, status, total_amount, notes, version, created_at, updated_at
FROM orders
WHERE session_id = $1
ORDER BY created_at
`

func (q *Queries) ListOrdersBySession(ctx context.Context, sessionID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersBySession, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const listOrdersByBranch = `
SELECT id, session_id, restaurant_id, branch_id, status, total_amount, notes, version, created_at, updated_at
FROM orders
WHERE branch_id = $1
  AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListOrdersByBranchParams struct {
	BranchID uuid.UUID
	Status   pgtype.Text
	Limit    int32
	Offset   int32
}

func (q *Queries) ListOrdersByBranch(ctx context.Context, arg ListOrdersByBranchParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByBranch, arg.BranchID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const updateOrderStatus = `
UPDATE orders
SET status = $3, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $2
RETURNING id, session_id, restaurant_id, branch_id, status, total_amount, notes, version, created_at, updated_at
`

type UpdateOrderStatusParams struct {
	ID              uuid.UUID
	ExpectedVersion int32
	Status          string
}

// UpdateOrderStatus is the optimistic-concurrency write: it matches on the
// version the caller last observed and returns pgx.ErrNoRows when another
// writer got there first.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.ExpectedVersion, arg.Status))
}

const createOrderItem = `
INSERT INTO order_items (order_id, menu_item_id, quantity, unit_price, notes)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, menu_item_id, quantity, unit_price, notes
`

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	UnitPrice  pgtype.Numeric
	Notes      pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.MenuItemID, arg.Quantity, arg.UnitPrice, arg.Notes)
	var i OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.MenuItemID, &i.Quantity, &i.UnitPrice, &i.Notes)
	return i, err
}

const listOrderItemsByOrder = `
SELECT id, order_id, menu_item_id, quantity, unit_price, notes
FROM order_items
WHERE order_id = $1
ORDER BY id
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.MenuItemID, &i.Quantity, &i.UnitPrice, &i.Notes); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.SessionID, &o.RestaurantID, &o.BranchID, &o.Status,
		&o.TotalAmount, &o.Notes, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}
