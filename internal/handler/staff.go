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

// StaffServicer defines the service methods needed by staff handlers.
// Satisfied by *service.StaffService; narrow interface for testability.
type StaffServicer interface {
	Create(ctx context.Context, req service.CreateStaffRequest) (database.User, error)
	Get(ctx context.Context, id uuid.UUID) (database.User, error)
	List(ctx context.Context, arg database.ListUsersByRestaurantParams) ([]database.User, error)
	Update(ctx context.Context, arg database.UpdateUserParams) (database.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// StaffHandler handles staff account endpoints.
type StaffHandler struct {
	svc StaffServicer
}

func NewStaffHandler(svc StaffServicer) *StaffHandler {
	return &StaffHandler{svc: svc}
}

// RegisterRoutes registers staff endpoints on an authenticated router.
func (h *StaffHandler) RegisterRoutes(r chi.Router) {
	r.Post("/restaurants/{id}/staff", h.Create)
	r.Get("/restaurants/{id}/staff", h.List)
	r.Get("/staff/{id}", h.Get)
	r.Put("/staff/{id}", h.Update)
	r.Delete("/staff/{id}", h.Delete)
}

// --- Request / Response types ---

type createStaffRequest struct {
	BranchID    *string  `json:"branch_id"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	FullName    string   `json:"full_name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type updateStaffRequest struct {
	BranchID    *string  `json:"branch_id"`
	FullName    string   `json:"full_name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type staffResponse struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	BranchID     *string   `json:"branch_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	Permissions  []string  `json:"permissions"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// --- Handlers ---

// Create handles POST /restaurants/{id}/staff.
func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req createStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.FullName == "" {
		writeError(w, http.StatusBadRequest, "email and full_name are required")
		return
	}
	if !enum.IsValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	var branchID pgtype.UUID
	var branchPtr *uuid.UUID
	if req.BranchID != nil {
		b, err := uuid.Parse(*req.BranchID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid branch_id")
			return
		}
		branchID = pgtype.UUID{Bytes: b, Valid: true}
		branchPtr = &b
	}

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceStaff,
		Verb:         authz.VerbCreate,
		RestaurantID: restaurantID,
		BranchID:     branchPtr,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	user, err := h.svc.Create(r.Context(), service.CreateStaffRequest{
		RestaurantID: restaurantID,
		BranchID:     branchID,
		Email:        req.Email,
		Password:     req.Password,
		FullName:     req.FullName,
		Role:         req.Role,
		Permissions:  req.Permissions,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStaffRole),
			errors.Is(err, service.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEmailTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("ERROR: create staff: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toStaffResponse(user))
}

// List handles GET /restaurants/{id}/staff. Admins see only their branch;
// the filter is forced rather than trusted from the query string.
func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
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

	params := database.ListUsersByRestaurantParams{RestaurantID: restaurantID}
	switch p.Role {
	case enum.RoleSuperAdmin:
		if s := r.URL.Query().Get("branch_id"); s != "" {
			branchID, err := uuid.Parse(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid branch_id")
				return
			}
			params.BranchID = pgtype.UUID{Bytes: branchID, Valid: true}
		}
	case enum.RoleAdmin:
		if p.BranchID == nil {
			writeError(w, http.StatusForbidden, "admin account has no branch")
			return
		}
		params.BranchID = pgtype.UUID{Bytes: *p.BranchID, Valid: true}
	default:
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	users, err := h.svc.List(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list staff: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]staffResponse, len(users))
	for i, u := range users {
		resp[i] = toStaffResponse(u)
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": resp})
}

// Get handles GET /staff/{id}.
func (h *StaffHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	user, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get staff: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !canReadStaff(p, user) {
		writeError(w, http.StatusForbidden, "access denied for this user")
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(user))
}

// Update handles PUT /staff/{id}.
func (h *StaffHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	var req updateStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FullName == "" {
		writeError(w, http.StatusBadRequest, "full_name is required")
		return
	}
	if !enum.IsValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	existing, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get staff: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !h.authorizeStaffMutation(w, p, existing, authz.VerbUpdate) {
		return
	}

	branchID := existing.BranchID
	if req.BranchID != nil {
		b, err := uuid.Parse(*req.BranchID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid branch_id")
			return
		}
		branchID = pgtype.UUID{Bytes: b, Valid: true}
	}

	user, err := h.svc.Update(r.Context(), database.UpdateUserParams{
		ID:          userID,
		BranchID:    branchID,
		FullName:    req.FullName,
		Role:        req.Role,
		Permissions: req.Permissions,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStaffRole):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			log.Printf("ERROR: update staff: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(user))
}

// Delete handles DELETE /staff/{id}.
func (h *StaffHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	existing, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get staff: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !h.authorizeStaffMutation(w, p, existing, authz.VerbDelete) {
		return
	}

	if err := h.svc.Delete(r.Context(), userID); err != nil {
		log.Printf("ERROR: delete staff: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *StaffHandler) authorizeStaffMutation(w http.ResponseWriter, p *identity.Principal, u database.User, verb string) bool {
	var branchPtr *uuid.UUID
	if u.BranchID.Valid {
		b := uuid.UUID(u.BranchID.Bytes)
		branchPtr = &b
	}
	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceStaff,
		Verb:         verb,
		RestaurantID: u.RestaurantID,
		BranchID:     branchPtr,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return false
	}
	return true
}

func canReadStaff(p *identity.Principal, u database.User) bool {
	if p.UserID == u.ID {
		return true
	}
	if p.Role == enum.RoleSuperAdmin {
		return p.RestaurantID == u.RestaurantID
	}
	if p.Role == enum.RoleAdmin {
		return u.BranchID.Valid && p.BranchID != nil && uuid.UUID(u.BranchID.Bytes) == *p.BranchID
	}
	return false
}

func toStaffResponse(u database.User) staffResponse {
	resp := staffResponse{
		ID:           u.ID,
		RestaurantID: u.RestaurantID,
		Email:        u.Email,
		FullName:     u.FullName,
		Role:         u.Role,
		Permissions:  u.Permissions,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if resp.Permissions == nil {
		resp.Permissions = []string{}
	}
	if u.BranchID.Valid {
		s := uuid.UUID(u.BranchID.Bytes).String()
		resp.BranchID = &s
	}
	return resp
}
