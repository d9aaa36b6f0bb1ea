package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

// mockStaffStore implements StaffStore.
type mockStaffStore struct {
	createUserFn  func(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	getUserByIDFn func(ctx context.Context, id uuid.UUID) (database.User, error)
	listUsersFn   func(ctx context.Context, arg database.ListUsersByRestaurantParams) ([]database.User, error)
	updateUserFn  func(ctx context.Context, arg database.UpdateUserParams) (database.User, error)
	deleteUserFn  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockStaffStore) CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
	return m.createUserFn(ctx, arg)
}
func (m *mockStaffStore) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	return m.getUserByIDFn(ctx, id)
}
func (m *mockStaffStore) ListUsersByRestaurant(ctx context.Context, arg database.ListUsersByRestaurantParams) ([]database.User, error) {
	return m.listUsersFn(ctx, arg)
}
func (m *mockStaffStore) UpdateUser(ctx context.Context, arg database.UpdateUserParams) (database.User, error) {
	return m.updateUserFn(ctx, arg)
}
func (m *mockStaffStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return m.deleteUserFn(ctx, id)
}

func TestCreateStaff_RejectsSuperadmin(t *testing.T) {
	svc := NewStaffService(&mockStaffStore{})
	_, err := svc.Create(context.Background(), CreateStaffRequest{
		Role:     enum.RoleSuperAdmin,
		Password: "longenough",
	})
	if !errors.Is(err, ErrInvalidStaffRole) {
		t.Fatalf("expected ErrInvalidStaffRole, got %v", err)
	}
}

func TestCreateStaff_RejectsCustomer(t *testing.T) {
	svc := NewStaffService(&mockStaffStore{})
	_, err := svc.Create(context.Background(), CreateStaffRequest{
		Role:     enum.RoleCustomer,
		Password: "longenough",
	})
	if !errors.Is(err, ErrInvalidStaffRole) {
		t.Fatalf("expected ErrInvalidStaffRole, got %v", err)
	}
}

func TestCreateStaff_WeakPassword(t *testing.T) {
	svc := NewStaffService(&mockStaffStore{})
	_, err := svc.Create(context.Background(), CreateStaffRequest{
		Role:     enum.RoleWaiter,
		Password: "short",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestCreateStaff_EmailTaken(t *testing.T) {
	store := &mockStaffStore{
		createUserFn: func(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
			return database.User{}, &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		},
	}
	svc := NewStaffService(store)
	_, err := svc.Create(context.Background(), CreateStaffRequest{
		Role:     enum.RoleKitchen,
		Email:    "cook@example.com",
		Password: "longenough",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestCreateStaff_HashesPassword(t *testing.T) {
	var gotParams database.CreateUserParams
	store := &mockStaffStore{
		createUserFn: func(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
			gotParams = arg
			return database.User{
				ID:           uuid.New(),
				RestaurantID: arg.RestaurantID,
				Email:        arg.Email,
				Role:         arg.Role,
			}, nil
		},
	}
	svc := NewStaffService(store)
	_, err := svc.Create(context.Background(), CreateStaffRequest{
		RestaurantID: uuid.New(),
		Email:        "waiter@example.com",
		Password:     "supersecret",
		FullName:     "Wira",
		Role:         enum.RoleWaiter,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotParams.HashedPassword == "supersecret" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(gotParams.HashedPassword), []byte("supersecret")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestUpdateStaff_RejectsNonStaffRole(t *testing.T) {
	svc := NewStaffService(&mockStaffStore{})
	_, err := svc.Update(context.Background(), database.UpdateUserParams{Role: enum.RoleCustomer})
	if !errors.Is(err, ErrInvalidStaffRole) {
		t.Fatalf("expected ErrInvalidStaffRole, got %v", err)
	}
}
