package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/handler"
)

// --- Mock ReportStore ---

type mockReportStore struct {
	getBranchFn  func(ctx context.Context, id uuid.UUID) (database.Branch, error)
	dailySalesFn func(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
	topItemsFn   func(ctx context.Context, arg database.GetTopMenuItemsParams) ([]database.GetTopMenuItemsRow, error)
}

func (m *mockReportStore) GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error) {
	if m.getBranchFn != nil {
		return m.getBranchFn(ctx, id)
	}
	return database.Branch{}, pgx.ErrNoRows
}

func (m *mockReportStore) GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error) {
	if m.dailySalesFn != nil {
		return m.dailySalesFn(ctx, arg)
	}
	return []database.GetDailySalesRow{}, nil
}

func (m *mockReportStore) GetTopMenuItems(ctx context.Context, arg database.GetTopMenuItemsParams) ([]database.GetTopMenuItemsRow, error) {
	if m.topItemsFn != nil {
		return m.topItemsFn(ctx, arg)
	}
	return []database.GetTopMenuItemsRow{}, nil
}

// --- Test helpers ---

func setupReportRouter(store *mockReportStore) *chi.Mux {
	h := handler.NewReportHandler(store)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// --- Tests ---

func TestDailySales_AdminOwnBranch(t *testing.T) {
	restaurantID := uuid.New()
	branchID := uuid.New()
	p := staffPrincipal(enum.RoleAdmin, restaurantID, branchID)

	day, _ := time.Parse("2006-01-02", "2026-03-10")
	store := &mockReportStore{
		getBranchFn: branchRow(restaurantID),
		dailySalesFn: func(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error) {
			if arg.BranchID != branchID {
				t.Errorf("branch_id: got %v, want %v", arg.BranchID, branchID)
			}
			wantFrom, _ := time.Parse("2006-01-02", "2026-03-01")
			if !arg.From.Equal(wantFrom) {
				t.Errorf("from: got %v, want %v", arg.From, wantFrom)
			}
			// to is exclusive: the requested day plus one.
			wantTo, _ := time.Parse("2006-01-02", "2026-03-16")
			if !arg.To.Equal(wantTo) {
				t.Errorf("to: got %v, want %v", arg.To, wantTo)
			}
			return []database.GetDailySalesRow{{
				Day:        day,
				OrderCount: 4,
				GrossSales: testNumeric("310.00"),
				Collected:  testNumeric("310.00"),
			}}, nil
		},
	}

	router := setupReportRouter(store)
	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/reports/daily-sales?from=2026-03-01&to=2026-03-15", nil, p)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	days, ok := resp["days"].([]interface{})
	if !ok || len(days) != 1 {
		t.Fatalf("days: got %v, want one row", resp["days"])
	}
	row := days[0].(map[string]interface{})
	if row["day"] != "2026-03-10" {
		t.Errorf("day: got %v, want 2026-03-10", row["day"])
	}
	if row["gross_sales"] != "310.00" {
		t.Errorf("gross_sales: got %v, want 310.00", row["gross_sales"])
	}
}

func TestDailySales_WaiterDenied(t *testing.T) {
	restaurantID := uuid.New()
	branchID := uuid.New()
	p := staffPrincipal(enum.RoleWaiter, restaurantID, branchID)

	router := setupReportRouter(&mockReportStore{getBranchFn: branchRow(restaurantID)})
	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/reports/daily-sales", nil, p)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestDailySales_ForeignBranchAdminDenied(t *testing.T) {
	restaurantID := uuid.New()
	p := staffPrincipal(enum.RoleAdmin, restaurantID, uuid.New())

	router := setupReportRouter(&mockReportStore{getBranchFn: branchRow(restaurantID)})
	rr := doRequest(t, router, "GET", "/branches/"+uuid.New().String()+"/reports/daily-sales", nil, p)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestDailySales_SuperAdminAnyOwnBranch(t *testing.T) {
	restaurantID := uuid.New()
	p := staffPrincipal(enum.RoleSuperAdmin, restaurantID, uuid.New())
	p.BranchID = nil

	router := setupReportRouter(&mockReportStore{getBranchFn: branchRow(restaurantID)})
	rr := doRequest(t, router, "GET", "/branches/"+uuid.New().String()+"/reports/daily-sales", nil, p)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestDailySales_OtherRestaurantSuperAdminDenied(t *testing.T) {
	p := staffPrincipal(enum.RoleSuperAdmin, uuid.New(), uuid.New())
	p.BranchID = nil

	store := &mockReportStore{
		// The branch belongs to another restaurant.
		getBranchFn: branchRow(uuid.New()),
		dailySalesFn: func(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error) {
			t.Fatal("store must not be queried for a foreign restaurant's branch")
			return nil, nil
		},
	}

	router := setupReportRouter(store)
	rr := doRequest(t, router, "GET", "/branches/"+uuid.New().String()+"/reports/daily-sales", nil, p)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestDailySales_UnknownBranch(t *testing.T) {
	restaurantID := uuid.New()
	p := staffPrincipal(enum.RoleSuperAdmin, restaurantID, uuid.New())
	p.BranchID = nil

	router := setupReportRouter(&mockReportStore{}) // GetBranch defaults to pgx.ErrNoRows
	rr := doRequest(t, router, "GET", "/branches/"+uuid.New().String()+"/reports/daily-sales", nil, p)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestDailySales_BadFromDate(t *testing.T) {
	restaurantID := uuid.New()
	branchID := uuid.New()
	p := staffPrincipal(enum.RoleAdmin, restaurantID, branchID)

	router := setupReportRouter(&mockReportStore{getBranchFn: branchRow(restaurantID)})
	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/reports/daily-sales?from=yesterday", nil, p)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestDailySales_ToBeforeFrom(t *testing.T) {
	restaurantID := uuid.New()
	branchID := uuid.New()
	p := staffPrincipal(enum.RoleAdmin, restaurantID, branchID)

	router := setupReportRouter(&mockReportStore{getBranchFn: branchRow(restaurantID)})
	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/reports/daily-sales?from=2026-03-15&to=2026-03-01", nil, p)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestTopItems_AdminOwnBranch(t *testing.T) {
	restaurantID := uuid.New()
	branchID := uuid.New()
	itemID := uuid.New()
	p := staffPrincipal(enum.RoleAdmin, restaurantID, branchID)

	store := &mockReportStore{
		getBranchFn: branchRow(restaurantID),
		topItemsFn: func(ctx context.Context, arg database.GetTopMenuItemsParams) ([]database.GetTopMenuItemsRow, error) {
			if arg.Limit != 5 {
				t.Errorf("limit: got %d, want 5", arg.Limit)
			}
			return []database.GetTopMenuItemsRow{{
				MenuItemID:   itemID,
				Name:         "Nasi Goreng",
				QuantitySold: 42,
				Revenue:      testNumeric("1050.00"),
			}}, nil
		},
	}

	router := setupReportRouter(store)
	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/reports/top-items?limit=5", nil, p)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	items, ok := resp["items"].([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("items: got %v, want one row", resp["items"])
	}
	row := items[0].(map[string]interface{})
	if row["name"] != "Nasi Goreng" {
		t.Errorf("name: got %v, want Nasi Goreng", row["name"])
	}
	if row["revenue"] != "1050.00" {
		t.Errorf("revenue: got %v, want 1050.00", row["revenue"])
	}
}

func TestTopItems_InvalidLimit(t *testing.T) {
	restaurantID := uuid.New()
	branchID := uuid.New()
	p := staffPrincipal(enum.RoleAdmin, restaurantID, branchID)

	router := setupReportRouter(&mockReportStore{getBranchFn: branchRow(restaurantID)})
	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/reports/top-items?limit=500", nil, p)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestTopItems_KitchenDenied(t *testing.T) {
	restaurantID := uuid.New()
	branchID := uuid.New()
	p := staffPrincipal(enum.RoleKitchen, restaurantID, branchID)

	router := setupReportRouter(&mockReportStore{getBranchFn: branchRow(restaurantID)})
	rr := doRequest(t, router, "GET", "/branches/"+branchID.String()+"/reports/top-items", nil, p)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}
