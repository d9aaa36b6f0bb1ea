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
	"github.com/shopspring/decimal"
	"github.com/tabletap/api/internal/authz"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/identity"
	"github.com/tabletap/api/internal/middleware"
	"github.com/tabletap/api/internal/service"
)

// MenuServicer defines the service methods needed by menu handlers.
// Satisfied by *service.DirectoryService; narrow interface for testability.
type MenuServicer interface {
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams, price decimal.Decimal) (database.MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	ListMenuItems(ctx context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams, price decimal.Decimal) (database.MenuItem, error)
	SetMenuItemAvailability(ctx context.Context, arg database.SetMenuItemAvailabilityParams) (database.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id uuid.UUID) error
}

// MenuHandler handles menu catalog endpoints. The catalog is owned at the
// restaurant level: superadmin writes, everyone else reads.
type MenuHandler struct {
	svc MenuServicer
}

func NewMenuHandler(svc MenuServicer) *MenuHandler {
	return &MenuHandler{svc: svc}
}

// RegisterRoutes registers menu endpoints on an authenticated router.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/restaurants/{id}/menu", h.List)
	r.Post("/restaurants/{id}/menu", h.Create)
	r.Get("/menu-items/{id}", h.Get)
	r.Put("/menu-items/{id}", h.Update)
	r.Patch("/menu-items/{id}/availability", h.SetAvailability)
	r.Delete("/menu-items/{id}", h.Delete)
}

// --- Request / Response types ---

type menuItemRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       string  `json:"price"`
	Category    string  `json:"category"`
	BranchID    *string `json:"branch_id"`
	IsAvailable *bool   `json:"is_available"`
}

type setAvailabilityRequest struct {
	IsAvailable bool `json:"is_available"`
}

type menuItemResponse struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	BranchID     *string   `json:"branch_id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	Price        string    `json:"price"`
	Category     *string   `json:"category"`
	IsAvailable  bool      `json:"is_available"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// --- Handlers ---

// List handles GET /restaurants/{id}/menu. Customers browse it to order;
// staff see the same catalog. An optional branch_id narrows the list to
// shared items plus that branch's own.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
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

	params := database.ListMenuItemsParams{RestaurantID: restaurantID}
	if s := r.URL.Query().Get("branch_id"); s != "" {
		branchID, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid branch_id")
			return
		}
		params.BranchID = pgtype.UUID{Bytes: branchID, Valid: true}
	}

	items, err := h.svc.ListMenuItems(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, item := range items {
		resp[i] = toMenuItemResponse(item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": resp})
}

// Create handles POST /restaurants/{id}/menu.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid price")
		return
	}

	arg := database.CreateMenuItemParams{
		RestaurantID: restaurantID,
		Name:         req.Name,
		IsAvailable:  true,
	}
	if req.IsAvailable != nil {
		arg.IsAvailable = *req.IsAvailable
	}
	if req.Description != "" {
		arg.Description = pgtype.Text{String: req.Description, Valid: true}
	}
	if req.Category != "" {
		arg.Category = pgtype.Text{String: req.Category, Valid: true}
	}
	var branchID *uuid.UUID
	if req.BranchID != nil {
		b, err := uuid.Parse(*req.BranchID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid branch_id")
			return
		}
		branchID = &b
		arg.BranchID = pgtype.UUID{Bytes: b, Valid: true}
	}

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceMenuItem,
		Verb:         authz.VerbCreate,
		RestaurantID: restaurantID,
		BranchID:     branchID,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	item, err := h.svc.CreateMenuItem(r.Context(), arg, price)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPrice) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("ERROR: create menu item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

// Get handles GET /menu-items/{id}.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid menu item ID")
		return
	}

	item, err := h.svc.GetMenuItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, service.ErrMenuItemNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if item.RestaurantID != p.RestaurantID {
		writeError(w, http.StatusForbidden, "access denied for this restaurant")
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// Update handles PUT /menu-items/{id}. Price changes only affect future
// orders; placed orders keep their snapshot.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid menu item ID")
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid price")
		return
	}

	existing, err := h.svc.GetMenuItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, service.ErrMenuItemNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !h.authorizeMutation(w, p, existing) {
		return
	}

	arg := database.UpdateMenuItemParams{
		ID:          itemID,
		Name:        req.Name,
		IsAvailable: existing.IsAvailable,
	}
	if req.IsAvailable != nil {
		arg.IsAvailable = *req.IsAvailable
	}
	if req.Description != "" {
		arg.Description = pgtype.Text{String: req.Description, Valid: true}
	}
	if req.Category != "" {
		arg.Category = pgtype.Text{String: req.Category, Valid: true}
	}

	item, err := h.svc.UpdateMenuItem(r.Context(), arg, price)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPrice):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrMenuItemNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			log.Printf("ERROR: update menu item: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// SetAvailability handles PATCH /menu-items/{id}/availability.
func (h *MenuHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid menu item ID")
		return
	}

	var req setAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing, err := h.svc.GetMenuItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, service.ErrMenuItemNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !h.authorizeMutation(w, p, existing) {
		return
	}

	item, err := h.svc.SetMenuItemAvailability(r.Context(), database.SetMenuItemAvailabilityParams{
		ID:          itemID,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		if errors.Is(err, service.ErrMenuItemNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: set menu item availability: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// Delete handles DELETE /menu-items/{id}.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid menu item ID")
		return
	}

	existing, err := h.svc.GetMenuItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, service.ErrMenuItemNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !h.authorizeMutation(w, p, existing) {
		return
	}

	if err := h.svc.DeleteMenuItem(r.Context(), itemID); err != nil {
		log.Printf("ERROR: delete menu item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// authorizeMutation runs the policy for a write against an existing item and
// writes the 403 itself on deny.
func (h *MenuHandler) authorizeMutation(w http.ResponseWriter, p *identity.Principal, item database.MenuItem) bool {
	var branchID *uuid.UUID
	if item.BranchID.Valid {
		b := uuid.UUID(item.BranchID.Bytes)
		branchID = &b
	}
	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceMenuItem,
		Verb:         authz.VerbUpdate,
		RestaurantID: item.RestaurantID,
		BranchID:     branchID,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return false
	}
	return true
}

func toMenuItemResponse(m database.MenuItem) menuItemResponse {
	resp := menuItemResponse{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		Name:         m.Name,
		Price:        numericToString(m.Price),
		IsAvailable:  m.IsAvailable,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.BranchID.Valid {
		s := uuid.UUID(m.BranchID.Bytes).String()
		resp.BranchID = &s
	}
	if m.Description.Valid {
		resp.Description = &m.Description.String
	}
	if m.Category.Valid {
		resp.Category = &m.Category.String
	}
	return resp
}
