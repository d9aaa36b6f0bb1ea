package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Restaurant struct {
	ID          uuid.UUID
	Name        string
	OwnerUserID uuid.UUID
	Timezone    string
	Currency    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Branch struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	Address      pgtype.Text
	Phone        pgtype.Text
	AdminUserID  pgtype.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Table struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	BranchID     uuid.UUID
	TableNumber  int32
	SeatCount    int32
	Active       bool
	CreatedAt    time.Time
}

type Session struct {
	ID           uuid.UUID
	TableID      uuid.UUID
	RestaurantID uuid.UUID
	BranchID     uuid.UUID
	StartedAt    time.Time
	EndedAt      pgtype.Timestamptz
	IsActive     bool
}

type MenuItem struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	BranchID     pgtype.UUID
	Name         string
	Description  pgtype.Text
	Price        pgtype.Numeric
	Category     pgtype.Text
	IsAvailable  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Order struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	RestaurantID uuid.UUID
	BranchID     uuid.UUID
	Status       string
	TotalAmount  pgtype.Numeric
	Notes        pgtype.Text
	Version      int32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	UnitPrice  pgtype.Numeric
	Notes      pgtype.Text
}

// OrderLog rows are append-only: one per accepted transition, never edited
// or deleted. The order's status column is a projection of the latest entry.
type OrderLog struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	Status       string
	ActingUserID pgtype.UUID
	Notes        pgtype.Text
	CreatedAt    time.Time
}

type Payment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Amount      pgtype.Numeric
	Method      string
	Status      string
	ProcessedBy pgtype.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type User struct {
	ID             uuid.UUID
	RestaurantID   uuid.UUID
	BranchID       pgtype.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	Permissions    []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
