package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tabletap/api/internal/database"
)

// Errors returned by the directory service.
var (
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrBranchNotFound     = errors.New("branch not found")
	ErrBranchNotEmpty     = errors.New("branch still has active sessions or assigned staff")
	ErrMenuItemNotFound   = errors.New("menu item not found")
	ErrInvalidPrice       = errors.New("price must be > 0")
	ErrTableNumberTaken   = errors.New("table number already used in branch")
)

// DirectoryStore defines the DB methods needed by the directory service.
type DirectoryStore interface {
	CreateRestaurant(ctx context.Context, arg database.CreateRestaurantParams) (database.Restaurant, error)
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	UpdateRestaurant(ctx context.Context, arg database.UpdateRestaurantParams) (database.Restaurant, error)
	DeleteRestaurant(ctx context.Context, id uuid.UUID) error

	CreateBranch(ctx context.Context, arg database.CreateBranchParams) (database.Branch, error)
	GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error)
	ListBranchesByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.Branch, error)
	UpdateBranch(ctx context.Context, arg database.UpdateBranchParams) (database.Branch, error)
	AssignBranchAdmin(ctx context.Context, arg database.AssignBranchAdminParams) (database.Branch, error)
	DeleteBranch(ctx context.Context, id uuid.UUID) error
	CountActiveSessionsByBranch(ctx context.Context, branchID uuid.UUID) (int64, error)
	CountStaffByBranch(ctx context.Context, branchID uuid.UUID) (int64, error)

	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	ListTablesByBranch(ctx context.Context, branchID uuid.UUID) ([]database.Table, error)
	UpdateTable(ctx context.Context, arg database.UpdateTableParams) (database.Table, error)
	DeleteTable(ctx context.Context, id uuid.UUID) error

	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	ListMenuItems(ctx context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	SetMenuItemAvailability(ctx context.Context, arg database.SetMenuItemAvailabilityParams) (database.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id uuid.UUID) error
}

// NewDirectoryStore creates a DirectoryStore from a DBTX (pool or tx).
type NewDirectoryStore func(db database.DBTX) DirectoryStore

// DirectoryService manages restaurants, branches, tables, and the menu.
type DirectoryService struct {
	pool     TxBeginner
	store    DirectoryStore
	newStore NewDirectoryStore
}

func NewDirectoryService(pool TxBeginner, store DirectoryStore, newStore NewDirectoryStore) *DirectoryService {
	return &DirectoryService{pool: pool, store: store, newStore: newStore}
}

// --- Restaurants ---

func (s *DirectoryService) CreateRestaurant(ctx context.Context, arg database.CreateRestaurantParams) (database.Restaurant, error) {
	return s.store.CreateRestaurant(ctx, arg)
}

func (s *DirectoryService) GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error) {
	r, err := s.store.GetRestaurant(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Restaurant{}, ErrRestaurantNotFound
		}
		return database.Restaurant{}, err
	}
	return r, nil
}

func (s *DirectoryService) UpdateRestaurant(ctx context.Context, arg database.UpdateRestaurantParams) (database.Restaurant, error) {
	r, err := s.store.UpdateRestaurant(ctx, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Restaurant{}, ErrRestaurantNotFound
		}
		return database.Restaurant{}, err
	}
	return r, nil
}

func (s *DirectoryService) DeleteRestaurant(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteRestaurant(ctx, id)
}

// --- Branches ---

func (s *DirectoryService) CreateBranch(ctx context.Context, arg database.CreateBranchParams) (database.Branch, error) {
	return s.store.CreateBranch(ctx, arg)
}

func (s *DirectoryService) GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error) {
	b, err := s.store.GetBranch(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Branch{}, ErrBranchNotFound
		}
		return database.Branch{}, err
	}
	return b, nil
}

func (s *DirectoryService) ListBranches(ctx context.Context, restaurantID uuid.UUID) ([]database.Branch, error) {
	return s.store.ListBranchesByRestaurant(ctx, restaurantID)
}

func (s *DirectoryService) UpdateBranch(ctx context.Context, arg database.UpdateBranchParams) (database.Branch, error) {
	b, err := s.store.UpdateBranch(ctx, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Branch{}, ErrBranchNotFound
		}
		return database.Branch{}, err
	}
	return b, nil
}

// AssignBranchAdmin sets the branch admin, replacing any previous one.
func (s *DirectoryService) AssignBranchAdmin(ctx context.Context, branchID, adminUserID uuid.UUID) (database.Branch, error) {
	b, err := s.store.AssignBranchAdmin(ctx, database.AssignBranchAdminParams{
		ID:          branchID,
		AdminUserID: pgtype.UUID{Bytes: adminUserID, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Branch{}, ErrBranchNotFound
		}
		return database.Branch{}, err
	}
	return b, nil
}

// DeleteBranch removes a branch only when nothing depends on it anymore:
// no active session and no staff still assigned. The checks and the delete
// share a transaction.
func (s *DirectoryService) DeleteBranch(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetBranch(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBranchNotFound
		}
		return fmt.Errorf("get branch: %w", err)
	}

	sessions, err := store.CountActiveSessionsByBranch(ctx, id)
	if err != nil {
		return fmt.Errorf("count active sessions: %w", err)
	}
	if sessions > 0 {
		return ErrBranchNotEmpty
	}
	staff, err := store.CountStaffByBranch(ctx, id)
	if err != nil {
		return fmt.Errorf("count staff: %w", err)
	}
	if staff > 0 {
		return ErrBranchNotEmpty
	}

	if err := store.DeleteBranch(ctx, id); err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	return tx.Commit(ctx)
}

// --- Tables ---

func (s *DirectoryService) CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error) {
	t, err := s.store.CreateTable(ctx, arg)
	if err != nil {
		if isUniqueViolation(err, "tables_branch_id_table_number_key") {
			return database.Table{}, ErrTableNumberTaken
		}
		return database.Table{}, err
	}
	return t, nil
}

func (s *DirectoryService) GetTable(ctx context.Context, id uuid.UUID) (database.Table, error) {
	t, err := s.store.GetTable(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Table{}, ErrTableNotFound
		}
		return database.Table{}, err
	}
	return t, nil
}

func (s *DirectoryService) ListTables(ctx context.Context, branchID uuid.UUID) ([]database.Table, error) {
	return s.store.ListTablesByBranch(ctx, branchID)
}

func (s *DirectoryService) UpdateTable(ctx context.Context, arg database.UpdateTableParams) (database.Table, error) {
	t, err := s.store.UpdateTable(ctx, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Table{}, ErrTableNotFound
		}
		if isUniqueViolation(err, "tables_branch_id_table_number_key") {
			return database.Table{}, ErrTableNumberTaken
		}
		return database.Table{}, err
	}
	return t, nil
}

func (s *DirectoryService) DeleteTable(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteTable(ctx, id)
}

// --- Menu ---

// CreateMenuItem validates the price before insert. Price comes in as a
// decimal so handlers never push raw strings into the numeric column.
func (s *DirectoryService) CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams, price decimal.Decimal) (database.MenuItem, error) {
	if !price.IsPositive() {
		return database.MenuItem{}, ErrInvalidPrice
	}
	arg.Price = decimalToNumeric(price)
	return s.store.CreateMenuItem(ctx, arg)
}

func (s *DirectoryService) GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
	m, err := s.store.GetMenuItem(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.MenuItem{}, ErrMenuItemNotFound
		}
		return database.MenuItem{}, err
	}
	return m, nil
}

func (s *DirectoryService) ListMenuItems(ctx context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error) {
	return s.store.ListMenuItems(ctx, arg)
}

func (s *DirectoryService) UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams, price decimal.Decimal) (database.MenuItem, error) {
	if !price.IsPositive() {
		return database.MenuItem{}, ErrInvalidPrice
	}
	arg.Price = decimalToNumeric(price)
	m, err := s.store.UpdateMenuItem(ctx, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.MenuItem{}, ErrMenuItemNotFound
		}
		return database.MenuItem{}, err
	}
	return m, nil
}

func (s *DirectoryService) SetMenuItemAvailability(ctx context.Context, arg database.SetMenuItemAvailabilityParams) (database.MenuItem, error) {
	m, err := s.store.SetMenuItemAvailability(ctx, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.MenuItem{}, ErrMenuItemNotFound
		}
		return database.MenuItem{}, err
	}
	return m, nil
}

func (s *DirectoryService) DeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteMenuItem(ctx, id)
}

// isUniqueViolation checks for a 23505 on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
