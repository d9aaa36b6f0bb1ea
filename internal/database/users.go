package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createUser = `
INSERT INTO users (restaurant_id, branch_id, email, hashed_password, full_name, role, permissions)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, restaurant_id, branch_id, email, hashed_password, full_name, role, permissions, created_at, updated_at
`

type CreateUserParams struct {
	RestaurantID   uuid.UUID
	BranchID       pgtype.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	Permissions    []string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.RestaurantID, arg.BranchID, arg.Email, arg.HashedPassword, arg.FullName, arg.Role, arg.Permissions)
	return scanUser(row)
}

const getUserByEmail = `
SELECT id, restaurant_id, branch_id, email, hashed_password, full_name, role, permissions, created_at, updated_at
FROM users
WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `
SELECT id, restaurant_id, branch_id, email, hashed_password, full_name, role, permissions, created_at, updated_at
FROM users
WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const listUsersByRestaurant = `
SELECT id, restaurant_id, branch_id, email, hashed_password, full_name, role, permissions, created_at, updated_at
FROM users
WHERE restaurant_id = $1
  AND ($2::uuid IS NULL OR branch_id = $2)
ORDER BY full_name
`

type ListUsersByRestaurantParams struct {
	RestaurantID uuid.UUID
	BranchID     pgtype.UUID
}

func (q *Queries) ListUsersByRestaurant(ctx context.Context, arg ListUsersByRestaurantParams) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsersByRestaurant, arg.RestaurantID, arg.BranchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

const updateUser = `
UPDATE users
SET branch_id = $2, full_name = $3, role = $4, permissions = $5, updated_at = now()
WHERE id = $1
RETURNING id, restaurant_id, branch_id, email, hashed_password, full_name, role, permissions, created_at, updated_at
`

type UpdateUserParams struct {
	ID          uuid.UUID
	BranchID    pgtype.UUID
	FullName    string
	Role        string
	Permissions []string
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, updateUser,
		arg.ID, arg.BranchID, arg.FullName, arg.Role, arg.Permissions)
	return scanUser(row)
}

const deleteUser = `
DELETE FROM users WHERE id = $1
`

func (q *Queries) DeleteUser(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteUser, id)
	return err
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.RestaurantID, &u.BranchID, &u.Email, &u.HashedPassword,
		&u.FullName, &u.Role, &u.Permissions, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
