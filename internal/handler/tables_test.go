package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/handler"
	"github.com/tabletap/api/internal/service"
)

// --- Mock TableServicer ---

type mockTableService struct {
	createFn    func(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	getFn       func(ctx context.Context, id uuid.UUID) (database.Table, error)
	listFn      func(ctx context.Context, branchID uuid.UUID) ([]database.Table, error)
	updateFn    func(ctx context.Context, arg database.UpdateTableParams) (database.Table, error)
	deleteFn    func(ctx context.Context, id uuid.UUID) error
	getBranchFn func(ctx context.Context, id uuid.UUID) (database.Branch, error)
}

func (m *mockTableService) CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error) {
	return m.createFn(ctx, arg)
}

func (m *mockTableService) GetTable(ctx context.Context, id uuid.UUID) (database.Table, error) {
	return m.getFn(ctx, id)
}

func (m *mockTableService) ListTables(ctx context.Context, branchID uuid.UUID) ([]database.Table, error) {
	if m.listFn != nil {
		return m.listFn(ctx, branchID)
	}
	return []database.Table{}, nil
}

func (m *mockTableService) UpdateTable(ctx context.Context, arg database.UpdateTableParams) (database.Table, error) {
	return m.updateFn(ctx, arg)
}

func (m *mockTableService) DeleteTable(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockTableService) GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error) {
	return m.getBranchFn(ctx, id)
}

// --- Test helpers ---

func setupTableRouter(svc *mockTableService) *chi.Mux {
	h := handler.NewTableHandler(svc)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func testTable(restaurantID, branchID uuid.UUID) database.Table {
	return database.Table{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		BranchID:     branchID,
		TableNumber:  7,
		SeatCount:    4,
		Active:       true,
		CreatedAt:    time.Now(),
	}
}

// --- Tests ---

func TestTableCreate_AdminOwnBranch(t *testing.T) {
	restaurantID := uuid.New()
	branch := testBranch(restaurantID)
	p := staffPrincipal(enum.RoleAdmin, restaurantID, branch.ID)

	svc := &mockTableService{
		getBranchFn: func(ctx context.Context, id uuid.UUID) (database.Branch, error) {
			return branch, nil
		},
		createFn: func(ctx context.Context, arg database.CreateTableParams) (database.Table, error) {
			if arg.TableNumber != 12 {
				t.Errorf("table_number: got %d, want 12", arg.TableNumber)
			}
			if arg.RestaurantID != restaurantID || arg.BranchID != branch.ID {
				t.Error("scope must come from the branch row, not the request")
			}
			table := testTable(restaurantID, branch.ID)
			table.TableNumber = arg.TableNumber
			return table, nil
		},
	}

	router := setupTableRouter(svc)
	rr := doRequest(t, router, "POST", "/branches/"+branch.ID.String()+"/tables", map[string]interface{}{
		"table_number": 12,
		"seat_count":   4,
	}, p)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
}

func TestTableCreate_NumberTaken(t *testing.T) {
	restaurantID := uuid.New()
	branch := testBranch(restaurantID)
	p := staffPrincipal(enum.RoleAdmin, restaurantID, branch.ID)

	svc := &mockTableService{
		getBranchFn: func(ctx context.Context, id uuid.UUID) (database.Branch, error) {
			return branch, nil
		},
		createFn: func(ctx context.Context, arg database.CreateTableParams) (database.Table, error) {
			return database.Table{}, service.ErrTableNumberTaken
		},
	}

	router := setupTableRouter(svc)
	rr := doRequest(t, router, "POST", "/branches/"+branch.ID.String()+"/tables", map[string]interface{}{
		"table_number": 7,
		"seat_count":   4,
	}, p)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestTableCreate_WaiterDenied(t *testing.T) {
	restaurantID := uuid.New()
	branch := testBranch(restaurantID)
	p := staffPrincipal(enum.RoleWaiter, restaurantID, branch.ID)

	svc := &mockTableService{
		getBranchFn: func(ctx context.Context, id uuid.UUID) (database.Branch, error) {
			return branch, nil
		},
		createFn: func(ctx context.Context, arg database.CreateTableParams) (database.Table, error) {
			t.Fatal("service must not be called when the policy denies")
			return database.Table{}, nil
		},
	}

	router := setupTableRouter(svc)
	rr := doRequest(t, router, "POST", "/branches/"+branch.ID.String()+"/tables", map[string]interface{}{
		"table_number": 7,
		"seat_count":   4,
	}, p)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestTableCreate_InvalidInput(t *testing.T) {
	p := staffPrincipal(enum.RoleAdmin, uuid.New(), uuid.New())

	router := setupTableRouter(&mockTableService{})
	rr := doRequest(t, router, "POST", "/branches/"+uuid.New().String()+"/tables", map[string]interface{}{
		"table_number": 0,
		"seat_count":   4,
	}, p)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestTableList_BranchScoped(t *testing.T) {
	restaurantID := uuid.New()
	branchID := uuid.New()
	p := staffPrincipal(enum.RoleWaiter, restaurantID, branchID)

	svc := &mockTableService{
		getBranchFn: branchRow(restaurantID),
		listFn: func(ctx context.Context, id uuid.UUID) ([]database.Table, error) {
			return []database.Table{testTable(restaurantID, branchID)}, nil
		},
	}

	router := setupTableRouter(svc)
	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/tables", nil, p)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	tables, ok := resp["tables"].([]interface{})
	if !ok || len(tables) != 1 {
		t.Fatalf("tables: got %v, want one table", resp["tables"])
	}
}

func TestTableList_OtherRestaurantSuperAdminDenied(t *testing.T) {
	p := staffPrincipal(enum.RoleSuperAdmin, uuid.New(), uuid.New())
	p.BranchID = nil

	svc := &mockTableService{
		// The branch belongs to another restaurant.
		getBranchFn: branchRow(uuid.New()),
		listFn: func(ctx context.Context, id uuid.UUID) ([]database.Table, error) {
			t.Fatal("service must not be called for a foreign restaurant's branch")
			return nil, nil
		},
	}

	router := setupTableRouter(svc)
	rr := doRequest(t, router, "GET", "/branches/"+uuid.New().String()+"/tables", nil, p)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestTableUpdate_DeactivatesTable(t *testing.T) {
	restaurantID := uuid.New()
	branchID := uuid.New()
	table := testTable(restaurantID, branchID)
	p := staffPrincipal(enum.RoleAdmin, restaurantID, branchID)

	svc := &mockTableService{
		getFn: func(ctx context.Context, id uuid.UUID) (database.Table, error) {
			return table, nil
		},
		updateFn: func(ctx context.Context, arg database.UpdateTableParams) (database.Table, error) {
			if arg.Active {
				t.Error("expected active=false")
			}
			out := table
			out.Active = false
			return out, nil
		},
	}

	router := setupTableRouter(svc)
	active := false
	rr := doRequest(t, router, "PUT", "/tables/"+table.ID.String(), map[string]interface{}{
		"table_number": table.TableNumber,
		"seat_count":   table.SeatCount,
		"active":       active,
	}, p)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	if resp["active"] != false {
		t.Errorf("active: got %v, want false", resp["active"])
	}
}

func TestTableDelete_AdminOwnBranch(t *testing.T) {
	restaurantID := uuid.New()
	branchID := uuid.New()
	table := testTable(restaurantID, branchID)
	p := staffPrincipal(enum.RoleAdmin, restaurantID, branchID)

	deleted := false
	svc := &mockTableService{
		getFn: func(ctx context.Context, id uuid.UUID) (database.Table, error) {
			return table, nil
		},
		deleteFn: func(ctx context.Context, id uuid.UUID) error {
			deleted = true
			return nil
		},
	}

	router := setupTableRouter(svc)
	rr := doRequest(t, router, "DELETE", "/tables/"+table.ID.String(), nil, p)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if !deleted {
		t.Error("expected the table to be deleted")
	}
}
