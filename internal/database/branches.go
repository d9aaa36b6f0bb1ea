package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createBranch = `
INSERT INTO branches (restaurant_id, name, address, phone)
VALUES ($1, $2, $3, $4)
RETURNING id, restaurant_id, name, address, phone, admin_user_id, created_at, updated_at
`

type CreateBranchParams struct {
	RestaurantID uuid.UUID
	Name         string
	Address      pgtype.Text
	Phone        pgtype.Text
}

func (q *Queries) CreateBranch(ctx context.Context, arg CreateBranchParams) (Branch, error) {
	row := q.db.QueryRow(ctx, createBranch, arg.RestaurantID, arg.Name, arg.Address, arg.Phone)
	return scanBranch(row)
}

const getBranch = `
SELECT id, restaurant_id, name, address, phone, admin_user_id, created_at, updated_at
FROM branches
WHERE id = $1
`

func (q *Queries) GetBranch(ctx context.Context, id uuid.UUID) (Branch, error) {
	return scanBranch(q.db.QueryRow(ctx, getBranch, id))
}

const listBranchesByRestaurant = `
SELECT id, restaurant_id, name, address, phone, admin_user_id, created_at, updated_at
FROM branches
WHERE restaurant_id = $1
ORDER BY name
`

func (q *Queries) ListBranchesByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]Branch, error) {
	rows, err := q.db.Query(ctx, listBranchesByRestaurant, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

const updateBranch = `
UPDATE branches
SET name = $2, address = $3, phone = $4, updated_at = now()
WHERE id = $1
RETURNING id, restaurant_id, name, address, phone, admin_user_id, created_at, updated_at
`

type UpdateBranchParams struct {
	ID      uuid.UUID
	Name    string
	Address pgtype.Text
	Phone   pgtype.Text
}

func (q *Queries) UpdateBranch(ctx context.Context, arg UpdateBranchParams) (Branch, error) {
	row := q.db.QueryRow(ctx, updateBranch, arg.ID, arg.Name, arg.Address, arg.Phone)
	return scanBranch(row)
}

const assignBranchAdmin = `
UPDATE branches
SET admin_user_id = $2, updated_at = now()
WHERE id = $1
RETURNING id, restaurant_id, name, address, phone, admin_user_id, created_at, updated_at
`

type AssignBranchAdminParams struct {
	ID          uuid.UUID
	AdminUserID pgtype.UUID
}

// AssignBranchAdmin overwrites any previous assignment; a branch holds at
// most one admin at a time.
func (q *Queries) AssignBranchAdmin(ctx context.Context, arg AssignBranchAdminParams) (Branch, error) {
	return scanBranch(q.db.QueryRow(ctx, assignBranchAdmin, arg.ID, arg.AdminUserID))
}

const deleteBranch = `
DELETE FROM branches WHERE id = $1
`

func (q *Queries) DeleteBranch(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteBranch, id)
	return err
}

const countActiveSessionsByBranch = `
SELECT COUNT(*) FROM sessions WHERE branch_id = $1 AND is_active
`

func (q *Queries) CountActiveSessionsByBranch(ctx context.Context, branchID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countActiveSessionsByBranch, branchID).Scan(&count)
	return count, err
}

const countStaffByBranch = `
SELECT COUNT(*) FROM users WHERE branch_id = $1
`

func (q *Queries) CountStaffByBranch(ctx context.Context, branchID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countStaffByBranch, branchID).Scan(&count)
	return count, err
}

func scanBranch(row rowScanner) (Branch, error) {
	var b Branch
	err := row.Scan(&b.ID, &b.RestaurantID, &b.Name, &b.Address, &b.Phone, &b.AdminUserID, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}
