package database

import (
	"context"

	"github.com/google/uuid"
)

const createRestaurant = `
INSERT INTO restaurants (name, owner_user_id, timezone, currency)
VALUES ($1, $2, $3, $4)
RETURNING id, name, owner_user_id, timezone, currency, created_at, updated_at
`

type CreateRestaurantParams struct {
	Name        string
	OwnerUserID uuid.UUID
	Timezone    string
	Currency    string
}

func (q *Queries) CreateRestaurant(ctx context.Context, arg CreateRestaurantParams) (Restaurant, error) {
	row := q.db.QueryRow(ctx, createRestaurant, arg.Name, arg.OwnerUserID, arg.Timezone, arg.Currency)
	return scanRestaurant(row)
}

const getRestaurant = `
SELECT id, name, owner_user_id, timezone, currency, created_at, updated_at
FROM restaurants
WHERE id = $1
`

func (q *Queries) GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	return scanRestaurant(q.db.QueryRow(ctx, getRestaurant, id))
}

const updateRestaurant = `
UPDATE restaurants
SET name = $2, timezone = $3, currency = $4, updated_at = now()
WHERE id = $1
RETURNING id, name, owner_user_id, timezone, currency, created_at, updated_at
`

type UpdateRestaurantParams struct {
	ID       uuid.UUID
	Name     string
	Timezone string
	Currency string
}

func (q *Queries) UpdateRestaurant(ctx context.Context, arg UpdateRestaurantParams) (Restaurant, error) {
	row := q.db.QueryRow(ctx, updateRestaurant, arg.ID, arg.Name, arg.Timezone, arg.Currency)
	return scanRestaurant(row)
}

const deleteRestaurant = `
DELETE FROM restaurants WHERE id = $1
`

func (q *Queries) DeleteRestaurant(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteRestaurant, id)
	return err
}

func scanRestaurant(row rowScanner) (Restaurant, error) {
	var r Restaurant
	err := row.Scan(&r.ID, &r.Name, &r.OwnerUserID, &r.Timezone, &r.Currency, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}
