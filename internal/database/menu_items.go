package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createMenuItem = `
INSERT INTO menu_items (restaurant_id, branch_id, name, description, price, category, is_available)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, restaurant_id, branch_id, name, description, price, category, is_available, created_at, updated_at
`

type CreateMenuItemParams struct {
	RestaurantID uuid.UUID
	BranchID     pgtype.UUID
	Name         string
	Description  pgtype.Text
	Price        pgtype.Numeric
	Category     pgtype.Text
	IsAvailable  bool
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem,
		arg.RestaurantID, arg.BranchID, arg.Name, arg.Description, arg.Price, arg.Category, arg.IsAvailable)
	return scanMenuItem(row)
}

const getMenuItem = `
SELECT id, restaurant_id, branch_id, name, description, price, category, is_available, created_at, updated_at
FROM menu_items
WHERE id = $1
`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItem, id))
}

const getMenuItemForOrder = `
SELECT id, restaurant_id, branch_id, name, description, price, category, is_available, created_at, updated_at
FROM menu_items
WHERE id = $1 AND restaurant_id = $2
`

type GetMenuItemForOrderParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetMenuItemForOrder(ctx context.Context, arg GetMenuItemForOrderParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItemForOrder, arg.ID, arg.RestaurantID))
}

const listMenuItems = `
SELECT id, restaurant_id, branch_id, name, description, price, category, is_available, created_at, updated_at
FROM menu_items
WHERE restaurant_id = $1
  AND ($2::uuid IS NULL OR branch_id IS NULL OR branch_id = $2)
ORDER BY category NULLS LAST, name
`

type ListMenuItemsParams struct {
	RestaurantID uuid.UUID
	BranchID     pgtype.UUID
}

func (q *Queries) ListMenuItems(ctx context.Context, arg ListMenuItemsParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems, arg.RestaurantID, arg.BranchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const updateMenuItem = `
UPDATE menu_items
SET name = $2, description = $3, price = $4, category = $5, is_available = $6, updated_at = now()
WHERE id = $1
RETURNING id, restaurant_id, branch_id, name, description, price, category, is_available, created_at, updated_at
`

type UpdateMenuItemParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Category    pgtype.Text
	IsAvailable bool
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, updateMenuItem,
		arg.ID, arg.Name, arg.Description, arg.Price, arg.Category, arg.IsAvailable)
	return scanMenuItem(row)
}

const setMenuItemAvailability = `
UPDATE menu_items
SET is_available = $2, updated_at = now()
WHERE id = $1
RETURNING id, restaurant_id, branch_id, name, description, price, category, is_available, created_at, updated_at
`

type SetMenuItemAvailabilityParams struct {
	ID          uuid.UUID
	IsAvailable bool
}

func (q *Queries) SetMenuItemAvailability(ctx context.Context, arg SetMenuItemAvailabilityParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, setMenuItemAvailability, arg.ID, arg.IsAvailable))
}

const deleteMenuItem = `
DELETE FROM menu_items WHERE id = $1
`

func (q *Queries) DeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteMenuItem, id)
	return err
}

func scanMenuItem(row rowScanner) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(&m.ID, &m.RestaurantID, &m.BranchID, &m.Name, &m.Description,
		&m.Price, &m.Category, &m.IsAvailable, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}
