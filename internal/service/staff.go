package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

// Errors returned by the staff service.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrInvalidStaffRole = errors.New("role is not a staff role")
	ErrWeakPassword     = errors.New("password must be at least 8 characters")
)

// StaffStore defines the DB methods needed by the staff service.
type StaffStore interface {
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	ListUsersByRestaurant(ctx context.Context, arg database.ListUsersByRestaurantParams) ([]database.User, error)
	UpdateUser(ctx context.Context, arg database.UpdateUserParams) (database.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// CreateStaffRequest is the validated input for creating a staff account.
type CreateStaffRequest struct {
	RestaurantID uuid.UUID
	BranchID     pgtype.UUID
	Email        string
	Password     string
	FullName     string
	Role         string
	Permissions  []string
}

// StaffService manages staff accounts. SUPERADMIN accounts are seeded, not
// created through here, and customers have no account at all.
type StaffService struct {
	store StaffStore
}

func NewStaffService(store StaffStore) *StaffService {
	return &StaffService{store: store}
}

// isStaffRole limits creation to roles that log in as staff.
func isStaffRole(role string) bool {
	switch role {
	case enum.RoleAdmin, enum.RoleWaiter, enum.RoleKitchen:
		return true
	}
	return false
}

func (s *StaffService) Create(ctx context.Context, req CreateStaffRequest) (database.User, error) {
	if !isStaffRole(req.Role) {
		return database.User{}, ErrInvalidStaffRole
	}
	if len(req.Password) < 8 {
		return database.User{}, ErrWeakPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return database.User{}, err
	}

	user, err := s.store.CreateUser(ctx, database.CreateUserParams{
		RestaurantID:   req.RestaurantID,
		BranchID:       req.BranchID,
		Email:          req.Email,
		HashedPassword: string(hashed),
		FullName:       req.FullName,
		Role:           req.Role,
		Permissions:    req.Permissions,
	})
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return database.User{}, ErrEmailTaken
		}
		return database.User{}, err
	}
	return user, nil
}

func (s *StaffService) Get(ctx context.Context, id uuid.UUID) (database.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.User{}, ErrUserNotFound
		}
		return database.User{}, err
	}
	return user, nil
}

func (s *StaffService) List(ctx context.Context, arg database.ListUsersByRestaurantParams) ([]database.User, error) {
	return s.store.ListUsersByRestaurant(ctx, arg)
}

func (s *StaffService) Update(ctx context.Context, arg database.UpdateUserParams) (database.User, error) {
	if !isStaffRole(arg.Role) {
		return database.User{}, ErrInvalidStaffRole
	}
	user, err := s.store.UpdateUser(ctx, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.User{}, ErrUserNotFound
		}
		return database.User{}, err
	}
	return user, nil
}

func (s *StaffService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteUser(ctx, id)
}
