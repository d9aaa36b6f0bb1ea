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
	"github.com/tabletap/api/internal/middleware"
	"github.com/tabletap/api/internal/service"
)

// SessionServicer defines the service methods needed by session handlers.
// Satisfied by *service.SessionService; narrow interface for testability.
type SessionServicer interface {
	Start(ctx context.Context, tableID uuid.UUID) (*service.StartSessionResult, error)
	End(ctx context.Context, sessionID uuid.UUID) (database.Session, error)
	Get(ctx context.Context, id uuid.UUID) (database.Session, error)
	GetActiveByTable(ctx context.Context, tableID uuid.UUID) (database.Session, error)
	ListByBranch(ctx context.Context, arg database.ListSessionsByBranchParams) ([]database.Session, error)
	GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error)
}

// SessionHandler handles session endpoints.
type SessionHandler struct {
	svc SessionServicer
}

func NewSessionHandler(svc SessionServicer) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// RegisterPublicRoutes registers the QR entry point. Starting a session is
// what mints the customer token, so it cannot sit behind authentication.
func (h *SessionHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/sessions/start", h.Start)
}

// RegisterRoutes registers the authenticated session endpoints.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions/{id}/end", h.End)
	r.Get("/sessions/{id}", h.Get)
	r.Get("/tables/{id}/session", h.GetActiveByTable)
	r.Get("/branches/{id}/sessions", h.ListByBranch)
}

// --- Request / Response types ---

type startSessionRequest struct {
	TableID string `json:"table_id"`
}

type startSessionResponse struct {
	Session sessionResponse `json:"session"`
	Token   string          `json:"token"`
}

type sessionResponse struct {
	ID           uuid.UUID  `json:"id"`
	TableID      uuid.UUID  `json:"table_id"`
	RestaurantID uuid.UUID  `json:"restaurant_id"`
	BranchID     uuid.UUID  `json:"branch_id"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
	IsActive     bool       `json:"is_active"`
}

// --- Handlers ---

// Start handles POST /sessions/start.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid table_id")
		return
	}

	result, err := h.svc.Start(r.Context(), tableID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTableNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrTableInactive):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, service.ErrSessionAlreadyActive):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("ERROR: start session: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, startSessionResponse{
		Session: toSessionResponse(result.Session),
		Token:   result.Token,
	})
}

// End handles POST /sessions/{id}/end.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	session, err := h.svc.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get session: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceSession,
		Verb:         authz.VerbUpdate,
		RestaurantID: session.RestaurantID,
		BranchID:     &session.BranchID,
		SessionID:    &session.ID,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	ended, err := h.svc.End(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrSessionAlreadyEnded):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrSessionHasOpenOrders):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("ERROR: end session: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(ended))
}

// Get handles GET /sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	session, err := h.svc.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get session: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !canReadSession(p, session) {
		writeError(w, http.StatusForbidden, "access denied for this session")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// GetActiveByTable handles GET /tables/{id}/session.
func (h *SessionHandler) GetActiveByTable(w http.ResponseWriter, r *http.Request) {
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

	session, err := h.svc.GetActiveByTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "no active session for table")
			return
		}
		log.Printf("ERROR: get active session: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !canReadSession(p, session) {
		writeError(w, http.StatusForbidden, "access denied for this session")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// ListByBranch handles GET /branches/{id}/sessions.
func (h *SessionHandler) ListByBranch(w http.ResponseWriter, r *http.Request) {
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

	limit, offset := parsePagination(r)
	sessions, err := h.svc.ListByBranch(r.Context(), database.ListSessionsByBranchParams{
		BranchID: branchID,
		Limit:    int32(limit),
		Offset:   int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list sessions: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]sessionResponse, len(sessions))
	for i, s := range sessions {
		resp[i] = toSessionResponse(s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": resp, "limit": limit, "offset": offset})
}

// --- Helpers ---

func toSessionResponse(s database.Session) sessionResponse {
	resp := sessionResponse{
		ID:           s.ID,
		TableID:      s.TableID,
		RestaurantID: s.RestaurantID,
		BranchID:     s.BranchID,
		StartedAt:    s.StartedAt,
		IsActive:     s.IsActive,
	}
	if s.EndedAt.Valid {
		resp.EndedAt = &s.EndedAt.Time
	}
	return resp
}
