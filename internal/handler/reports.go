package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/identity"
	"github.com/tabletap/api/internal/middleware"
)

// ReportStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries.
type ReportStore interface {
	GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error)
	GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
	GetTopMenuItems(ctx context.Context, arg database.GetTopMenuItemsParams) ([]database.GetTopMenuItemsRow, error)
}

// ReportHandler serves branch sales reports. Reports aggregate COMPLETED
// orders only; cancelled orders never count.
type ReportHandler struct {
	store ReportStore
}

func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

// RegisterRoutes registers report endpoints on an authenticated router.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/branches/{id}/reports/daily-sales", h.DailySales)
	r.Get("/branches/{id}/reports/top-items", h.TopItems)
}

// --- Response types ---

type dailySalesResponse struct {
	Day        string `json:"day"`
	OrderCount int64  `json:"order_count"`
	GrossSales string `json:"gross_sales"`
	Collected  string `json:"collected"`
}

type topItemResponse struct {
	MenuItemID   uuid.UUID `json:"menu_item_id"`
	Name         string    `json:"name"`
	QuantitySold int64     `json:"quantity_sold"`
	Revenue      string    `json:"revenue"`
}

// --- Handlers ---

// DailySales handles GET /branches/{id}/reports/daily-sales.
func (h *ReportHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	branchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid branch ID")
		return
	}
	branch, ok := h.loadBranch(w, r, branchID)
	if !ok {
		return
	}
	if !canReadReports(p, branch) {
		writeError(w, http.StatusForbidden, "access denied for branch reports")
		return
	}

	from, to, ok := parseReportRange(w, r)
	if !ok {
		return
	}

	rows, err := h.store.GetDailySales(r.Context(), database.GetDailySalesParams{
		BranchID: branchID,
		From:     from,
		To:       to,
	})
	if err != nil {
		log.Printf("ERROR: daily sales report: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]dailySalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = dailySalesResponse{
			Day:        row.Day.Format("2006-01-02"),
			OrderCount: row.OrderCount,
			GrossSales: numericToString(row.GrossSales),
			Collected:  numericToString(row.Collected),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from": from.Format("2006-01-02"),
		"to":   to.Format("2006-01-02"),
		"days": resp,
	})
}

// TopItems handles GET /branches/{id}/reports/top-items.
func (h *ReportHandler) TopItems(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	branchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid branch ID")
		return
	}
	branch, ok := h.loadBranch(w, r, branchID)
	if !ok {
		return
	}
	if !canReadReports(p, branch) {
		writeError(w, http.StatusForbidden, "access denied for branch reports")
		return
	}

	from, to, ok := parseReportRange(w, r)
	if !ok {
		return
	}

	limit := int32(10)
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > 100 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = int32(v)
	}

	rows, err := h.store.GetTopMenuItems(r.Context(), database.GetTopMenuItemsParams{
		BranchID: branchID,
		From:     from,
		To:       to,
		Limit:    limit,
	})
	if err != nil {
		log.Printf("ERROR: top items report: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]topItemResponse, len(rows))
	for i, row := range rows {
		resp[i] = topItemResponse{
			MenuItemID:   row.MenuItemID,
			Name:         row.Name,
			QuantitySold: row.QuantitySold,
			Revenue:      numericToString(row.Revenue),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":  from.Format("2006-01-02"),
		"to":    to.Format("2006-01-02"),
		"items": resp,
	})
}

// --- Helpers ---

// loadBranch resolves the branch a report is scoped to. Writes the 404 or
// 500 itself on failure.
func (h *ReportHandler) loadBranch(w http.ResponseWriter, r *http.Request, branchID uuid.UUID) (database.Branch, bool) {
	branch, err := h.store.GetBranch(r.Context(), branchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "branch not found")
			return database.Branch{}, false
		}
		log.Printf("ERROR: get branch: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return database.Branch{}, false
	}
	return branch, true
}

// canReadReports limits reports to the management roles: branch admins for
// their own branch, the restaurant owner across their own restaurant only.
func canReadReports(p *identity.Principal, b database.Branch) bool {
	if p.RestaurantID != b.RestaurantID {
		return false
	}
	switch p.Role {
	case enum.RoleSuperAdmin:
		return true
	case enum.RoleAdmin:
		return p.BranchID != nil && *p.BranchID == b.ID
	}
	return false
}

// parseReportRange reads from/to (YYYY-MM-DD, to exclusive). Defaults to the
// last 30 days. Writes the 400 itself on bad input.
func parseReportRange(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	from = now.AddDate(0, 0, -30)
	to = now.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date")
			return from, to, false
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date")
			return from, to, false
		}
		to = t.AddDate(0, 0, 1)
	}
	if !to.After(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return from, to, false
	}
	return from, to, true
}
