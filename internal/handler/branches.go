package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tabletap/api/internal/authz"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/identity"
	"github.com/tabletap/api/internal/middleware"
	"github.com/tabletap/api/internal/service"
)

// BranchServicer defines the service methods needed by branch handlers.
// Satisfied by *service.DirectoryService; narrow interface for testability.
type BranchServicer interface {
	CreateBranch(ctx context.Context, arg database.CreateBranchParams) (database.Branch, error)
	GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error)
	ListBranches(ctx context.Context, restaurantID uuid.UUID) ([]database.Branch, error)
	UpdateBranch(ctx context.Context, arg database.UpdateBranchParams) (database.Branch, error)
	AssignBranchAdmin(ctx context.Context, branchID, adminUserID uuid.UUID) (database.Branch, error)
	DeleteBranch(ctx context.Context, id uuid.UUID) error
}

// BranchHandler handles branch endpoints.
type BranchHandler struct {
	svc BranchServicer
}

func NewBranchHandler(svc BranchServicer) *BranchHandler {
	return &BranchHandler{svc: svc}
}

// RegisterRoutes registers branch endpoints on an authenticated router.
func (h *BranchHandler) RegisterRoutes(r chi.Router) {
	r.Post("/restaurants/{id}/branches", h.Create)
	r.Get("/restaurants/{id}/branches", h.List)
	r.Get("/branches/{id}", h.Get)
	r.Put("/branches/{id}", h.Update)
	r.Post("/branches/{id}/admin", h.AssignAdmin)
	r.Delete("/branches/{id}", h.Delete)
}

// --- Request / Response types ---

type branchRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type assignAdminRequest struct {
	UserID string `json:"user_id"`
}

type branchResponse struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Name         string    `json:"name"`
	Address      *string   `json:"address"`
	Phone        *string   `json:"phone"`
	AdminUserID  *string   `json:"admin_user_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// --- Handlers ---

// Create handles POST /restaurants/{id}/branches.
func (h *BranchHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	restaurantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid restaurant ID")
		return
	}

	var req branchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceBranch,
		Verb:         authz.VerbCreate,
		RestaurantID: restaurantID,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	arg := database.CreateBranchParams{
		RestaurantID: restaurantID,
		Name:         req.Name,
	}
	if req.Address != "" {
		arg.Address = pgtype.Text{String: req.Address, Valid: true}
	}
	if req.Phone != "" {
		arg.Phone = pgtype.Text{String: req.Phone, Valid: true}
	}

	branch, err := h.svc.CreateBranch(r.Context(), arg)
	if err != nil {
		log.Printf("ERROR: create branch: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toBranchResponse(branch))
}

// List handles GET /restaurants/{id}/branches.
func (h *BranchHandler) List(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	restaurantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid restaurant ID")
		return
	}
	if p.RestaurantID != restaurantID {
		writeError(w, http.StatusForbidden, "access denied for this restaurant")
		return
	}

	branches, err := h.svc.ListBranches(r.Context(), restaurantID)
	if err != nil {
		log.Printf("ERROR: list branches: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]branchResponse, len(branches))
	for i, b := range branches {
		resp[i] = toBranchResponse(b)
	}
	writeJSON(w, http.StatusOK, map[string]any{"branches": resp})
}

// Get handles GET /branches/{id}.
func (h *BranchHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	branch, err := h.svc.GetBranch(r.Context(), branchID)
	if err != nil {
		if errors.Is(err, service.ErrBranchNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get branch: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !canReadBranch(p, branch) {
		writeError(w, http.StatusForbidden, "access denied for this branch")
		return
	}
	writeJSON(w, http.StatusOK, toBranchResponse(branch))
}

// Update handles PUT /branches/{id}.
func (h *BranchHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req branchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	existing, err := h.svc.GetBranch(r.Context(), branchID)
	if err != nil {
		if errors.Is(err, service.ErrBranchNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get branch: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceBranch,
		Verb:         authz.VerbUpdate,
		RestaurantID: existing.RestaurantID,
		BranchID:     &existing.ID,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	arg := database.UpdateBranchParams{
		ID:   branchID,
		Name: req.Name,
	}
	if req.Address != "" {
		arg.Address = pgtype.Text{String: req.Address, Valid: true}
	}
	if req.Phone != "" {
		arg.Phone = pgtype.Text{String: req.Phone, Valid: true}
	}

	branch, err := h.svc.UpdateBranch(r.Context(), arg)
	if err != nil {
		if errors.Is(err, service.ErrBranchNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: update branch: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toBranchResponse(branch))
}

// AssignAdmin handles POST /branches/{id}/admin. Assigning a new admin
// replaces the previous one; a branch has at most one.
func (h *BranchHandler) AssignAdmin(w http.ResponseWriter, r *http.Request) {
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

	var req assignAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	adminUserID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	existing, err := h.svc.GetBranch(r.Context(), branchID)
	if err != nil {
		if errors.Is(err, service.ErrBranchNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get branch: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Only the restaurant owner hands out branch admin seats.
	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceBranch,
		Verb:         authz.VerbUpdate,
		RestaurantID: existing.RestaurantID,
	})
	if !decision.Allowed || p.Role != enum.RoleSuperAdmin {
		writeError(w, http.StatusForbidden, "only the restaurant owner assigns branch admins")
		return
	}

	branch, err := h.svc.AssignBranchAdmin(r.Context(), branchID, adminUserID)
	if err != nil {
		if errors.Is(err, service.ErrBranchNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: assign branch admin: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toBranchResponse(branch))
}

// Delete handles DELETE /branches/{id}. Refused while the branch still has
// active sessions or assigned staff.
func (h *BranchHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	existing, err := h.svc.GetBranch(r.Context(), branchID)
	if err != nil {
		if errors.Is(err, service.ErrBranchNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get branch: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceBranch,
		Verb:         authz.VerbDelete,
		RestaurantID: existing.RestaurantID,
	})
	if !decision.Allowed || p.Role != enum.RoleSuperAdmin {
		writeError(w, http.StatusForbidden, "only the restaurant owner deletes branches")
		return
	}

	if err := h.svc.DeleteBranch(r.Context(), branchID); err != nil {
		switch {
		case errors.Is(err, service.ErrBranchNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrBranchNotEmpty):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("ERROR: delete branch: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func canReadBranch(p *identity.Principal, b database.Branch) bool {
	return staffBranchScope(p, b)
}

func toBranchResponse(b database.Branch) branchResponse {
	resp := branchResponse{
		ID:           b.ID,
		RestaurantID: b.RestaurantID,
		Name:         b.Name,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
	if b.Address.Valid {
		resp.Address = &b.Address.String
	}
	if b.Phone.Valid {
		resp.Phone = &b.Phone.String
	}
	if b.AdminUserID.Valid {
		s := uuid.UUID(b.AdminUserID.Bytes).String()
		resp.AdminUserID = &s
	}
	return resp
}
