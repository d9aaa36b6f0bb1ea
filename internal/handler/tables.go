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
	"github.com/tabletap/api/internal/authz"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/identity"
	"github.com/tabletap/api/internal/middleware"
	"github.com/tabletap/api/internal/service"
)

// TableServicer defines the service methods needed by table handlers.
// Satisfied by *service.DirectoryService; narrow interface for testability.
type TableServicer interface {
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	ListTables(ctx context.Context, branchID uuid.UUID) ([]database.Table, error)
	UpdateTable(ctx context.Context, arg database.UpdateTableParams) (database.Table, error)
	DeleteTable(ctx context.Context, id uuid.UUID) error
	GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error)
}

// TableHandler handles dining table endpoints.
type TableHandler struct {
	svc TableServicer
}

func NewTableHandler(svc TableServicer) *TableHandler {
	return &TableHandler{svc: svc}
}

// RegisterRoutes registers table endpoints on an authenticated router.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Post("/branches/{id}/tables", h.Create)
	r.Get("/branches/{id}/tables", h.List)
	r.Get("/tables/{id}", h.Get)
	r.Put("/tables/{id}", h.Update)
	r.Delete("/tables/{id}", h.Delete)
}

// --- Request / Response types ---

type tableRequest struct {
	TableNumber int32 `json:"table_number"`
	SeatCount   int32 `json:"seat_count"`
	Active      *bool `json:"active"`
}

type tableResponse struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	BranchID     uuid.UUID `json:"branch_id"`
	TableNumber  int32     `json:"table_number"`
	SeatCount    int32     `json:"seat_count"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// --- Handlers ---

// Create handles POST /branches/{id}/tables.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req tableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TableNumber <= 0 {
		writeError(w, http.StatusBadRequest, "table_number must be > 0")
		return
	}
	if req.SeatCount <= 0 {
		writeError(w, http.StatusBadRequest, "seat_count must be > 0")
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

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceTable,
		Verb:         authz.VerbCreate,
		RestaurantID: branch.RestaurantID,
		BranchID:     &branch.ID,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	table, err := h.svc.CreateTable(r.Context(), database.CreateTableParams{
		RestaurantID: branch.RestaurantID,
		BranchID:     branch.ID,
		TableNumber:  req.TableNumber,
		SeatCount:    req.SeatCount,
		Active:       active,
	})
	if err != nil {
		if errors.Is(err, service.ErrTableNumberTaken) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		log.Printf("ERROR: create table: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(table))
}

// List handles GET /branches/{id}/tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
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
	if !staffBranchScope(p, branch) {
		writeError(w, http.StatusForbidden, "access denied for this branch")
		return
	}

	tables, err := h.svc.ListTables(r.Context(), branchID)
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, table := range tables {
		resp[i] = toTableResponse(table)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": resp})
}

// Get handles GET /tables/{id}.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid table ID")
		return
	}

	table, err := h.svc.GetTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, service.ErrTableNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get table: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !canReadTable(p, table) {
		writeError(w, http.StatusForbidden, "access denied for this table")
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// Update handles PUT /tables/{id}.
func (h *TableHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid table ID")
		return
	}

	var req tableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TableNumber <= 0 {
		writeError(w, http.StatusBadRequest, "table_number must be > 0")
		return
	}
	if req.SeatCount <= 0 {
		writeError(w, http.StatusBadRequest, "seat_count must be > 0")
		return
	}

	existing, err := h.svc.GetTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, service.ErrTableNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get table: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceTable,
		Verb:         authz.VerbUpdate,
		RestaurantID: existing.RestaurantID,
		BranchID:     &existing.BranchID,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	active := existing.Active
	if req.Active != nil {
		active = *req.Active
	}
	table, err := h.svc.UpdateTable(r.Context(), database.UpdateTableParams{
		ID:          tableID,
		TableNumber: req.TableNumber,
		SeatCount:   req.SeatCount,
		Active:      active,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTableNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrTableNumberTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("ERROR: update table: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// Delete handles DELETE /tables/{id}.
func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid table ID")
		return
	}

	existing, err := h.svc.GetTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, service.ErrTableNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get table: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceTable,
		Verb:         authz.VerbDelete,
		RestaurantID: existing.RestaurantID,
		BranchID:     &existing.BranchID,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	if err := h.svc.DeleteTable(r.Context(), tableID); err != nil {
		log.Printf("ERROR: delete table: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func canReadTable(p *identity.Principal, t database.Table) bool {
	if p.Role == enum.RoleSuperAdmin {
		return p.RestaurantID == t.RestaurantID
	}
	return staffOwnBranch(p, t.BranchID)
}

func toTableResponse(t database.Table) tableResponse {
	return tableResponse{
		ID:           t.ID,
		RestaurantID: t.RestaurantID,
		BranchID:     t.BranchID,
		TableNumber:  t.TableNumber,
		SeatCount:    t.SeatCount,
		Active:       t.Active,
		CreatedAt:    t.CreatedAt,
	}
}
