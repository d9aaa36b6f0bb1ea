package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/identity"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

// staffBranchScope reports whether a staff principal may read data of the
// given branch. Mutations go through the authorization policy; read
// endpoints use branch scoping directly so kitchen and waiter stations can
// poll their queues. Callers resolve the branch row first: superadmin reads
// are bounded by the branch's restaurant, not by the URL alone.
func staffBranchScope(p *identity.Principal, b database.Branch) bool {
	if p.RestaurantID != b.RestaurantID {
		return false
	}
	switch p.Role {
	case enum.RoleSuperAdmin:
		return true
	case enum.RoleAdmin, enum.RoleWaiter, enum.RoleKitchen:
		return p.BranchID != nil && *p.BranchID == b.ID
	}
	return false
}

// staffOwnBranch reports whether a branch-bound staff role is assigned to
// the given branch. Superadmin reads are resolved by the callers against
// the loaded row's restaurant id.
func staffOwnBranch(p *identity.Principal, branchID uuid.UUID) bool {
	switch p.Role {
	case enum.RoleAdmin, enum.RoleWaiter, enum.RoleKitchen:
		return p.BranchID != nil && *p.BranchID == branchID
	}
	return false
}

// canReadSession reports whether the principal may read a session: staff by
// branch scope, customers only their own.
func canReadSession(p *identity.Principal, s database.Session) bool {
	if p.Role == enum.RoleCustomer {
		return p.SessionID != nil && *p.SessionID == s.ID
	}
	if p.Role == enum.RoleSuperAdmin {
		return p.RestaurantID == s.RestaurantID
	}
	return staffOwnBranch(p, s.BranchID)
}

// parsePagination reads limit/offset query params with the usual clamps.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	offset = 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
