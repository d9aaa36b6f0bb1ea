package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getDailySales = `
SELECT date_trunc('day', o.created_at)::date AS day,
       COUNT(*) AS order_count,
       COALESCE(SUM(o.total_amount), 0) AS gross_sales,
       COALESCE(SUM(p.paid), 0) AS collected
FROM orders o
LEFT JOIN (
    SELECT order_id, SUM(amount) AS paid
    FROM payments
    WHERE status = 'COMPLETED'
    GROUP BY order_id
) p ON p.order_id = o.id
WHERE o.branch_id = $1
  AND o.status = 'COMPLETED'
  AND o.created_at >= $2
  AND o.created_at < $3
GROUP BY day
ORDER BY day
`

type GetDailySalesParams struct {
	BranchID uuid.UUID
	From     time.Time
	To       time.Time
}

type GetDailySalesRow struct {
	Day        time.Time
	OrderCount int64
	GrossSales pgtype.Numeric
	Collected  pgtype.Numeric
}

func (q *Queries) GetDailySales(ctx context.Context, arg GetDailySalesParams) ([]GetDailySalesRow, error) {
	rows, err := q.db.Query(ctx, getDailySales, arg.BranchID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetDailySalesRow
	for rows.Next() {
		var r GetDailySalesRow
		if err := rows.Scan(&r.Day, &r.OrderCount, &r.GrossSales, &r.Collected); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getTopMenuItems = `
SELECT m.id, m.name, SUM(oi.quantity) AS quantity_sold,
       COALESCE(SUM(oi.quantity * oi.unit_price), 0) AS revenue
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN menu_items m ON m.id = oi.menu_item_id
WHERE o.branch_id = $1
  AND o.status = 'COMPLETED'
  AND o.created_at >= $2
  AND o.created_at < $3
GROUP BY m.id, m.name
ORDER BY quantity_sold DESC
LIMIT $4
`

type GetTopMenuItemsParams struct {
	BranchID uuid.UUID
	From     time.Time
	To       time.Time
	Limit    int32
}

type GetTopMenuItemsRow struct {
	MenuItemID   uuid.UUID
	Name         string
	QuantitySold int64
	Revenue      pgtype.Numeric
}

func (q *Queries) GetTopMenuItems(ctx context.Context, arg GetTopMenuItemsParams) ([]GetTopMenuItemsRow, error) {
	rows, err := q.db.Query(ctx, getTopMenuItems, arg.BranchID, arg.From, arg.To, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetTopMenuItemsRow
	for rows.Next() {
		var r GetTopMenuItemsRow
		if err := rows.Scan(&r.MenuItemID, &r.Name, &r.QuantitySold, &r.Revenue); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
