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
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tabletap/api/internal/authz"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/identity"
	"github.com/tabletap/api/internal/middleware"
	"github.com/tabletap/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	Transition(ctx context.Context, req service.TransitionRequest) (database.Order, error)
	Cancel(ctx context.Context, req service.TransitionRequest) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*service.OrderDetail, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]database.Order, error)
	ListByBranch(ctx context.Context, arg database.ListOrdersByBranchParams) ([]database.Order, error)
}

// SessionGetter loads the rows order scope checks compare against.
// Satisfied by *database.Queries.
type SessionGetter interface {
	GetSession(ctx context.Context, id uuid.UUID) (database.Session, error)
	GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc      OrderServicer
	sessions SessionGetter
}

func NewOrderHandler(svc OrderServicer, sessions SessionGetter) *OrderHandler {
	return &OrderHandler{svc: svc, sessions: sessions}
}

// RegisterRoutes registers order endpoints on an authenticated router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
	r.Get("/orders/{id}", h.Get)
	r.Put("/orders/{id}/status", h.UpdateStatus)
	r.Delete("/orders/{id}", h.Cancel)
	r.Get("/sessions/{id}/orders", h.ListBySession)
	r.Get("/branches/{id}/orders", h.ListByBranch)
}

// --- Request / Response types ---

type createOrderRequest struct {
	SessionID string                   `json:"session_id"`
	Notes     string                   `json:"notes"`
	Items     []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Notes      string `json:"notes"`
}

type updateStatusRequest struct {
	Status          string `json:"status"`
	ExpectedVersion int32  `json:"expected_version"`
	Notes           string `json:"notes"`
}

type cancelOrderRequest struct {
	ExpectedVersion int32  `json:"expected_version"`
	Notes           string `json:"notes"`
}

type orderResponse struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	BranchID     uuid.UUID `json:"branch_id"`
	Status       string    `json:"status"`
	TotalAmount  string    `json:"total_amount"`
	Notes        *string   `json:"notes"`
	Version      int32     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type orderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int32     `json:"quantity"`
	UnitPrice  string    `json:"unit_price"`
	Notes      *string   `json:"notes"`
}

type orderLogResponse struct {
	ID           uuid.UUID `json:"id"`
	Status       string    `json:"status"`
	ActingUserID *string   `json:"acting_user_id"`
	Notes        *string   `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
}

type orderDetailResponse struct {
	orderResponse
	Items []orderItemResponse `json:"items"`
	Logs  []orderLogResponse  `json:"logs"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session_id")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items are required")
		return
	}

	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Printf("ERROR: get session: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceOrder,
		Verb:         authz.VerbCreate,
		RestaurantID: session.RestaurantID,
		BranchID:     &session.BranchID,
		SessionID:    &session.ID,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	svcItems := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		svcItems[i] = service.CreateOrderItemRequest{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Notes:      item.Notes,
		}
	}

	actingUser := pgtype.UUID{}
	if p.Role != enum.RoleCustomer {
		actingUser = pgtype.UUID{Bytes: p.UserID, Valid: true}
	}
	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		SessionID:    sessionID,
		ActingUserID: actingUser,
		Notes:        req.Notes,
		Items:        svcItems,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrSessionNotActive):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrEmptyOrder),
			errors.Is(err, service.ErrInvalidQuantity),
			errors.Is(err, service.ErrInvalidMenuItemID):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrItemUnavailable):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			log.Printf("ERROR: create order: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	resp := orderDetailResponse{
		orderResponse: toOrderResponse(result.Order),
		Items:         toOrderItemResponses(result.Items),
		Logs:          []orderLogResponse{},
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	detail, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !canReadOrder(p, detail.Order) {
		writeError(w, http.StatusForbidden, "access denied for this order")
		return
	}

	logs := make([]orderLogResponse, len(detail.Logs))
	for i, l := range detail.Logs {
		logs[i] = toOrderLogResponse(l)
	}
	writeJSON(w, http.StatusOK, orderDetailResponse{
		orderResponse: toOrderResponse(detail.Order),
		Items:         toOrderItemResponses(detail.Items),
		Logs:          logs,
	})
}

// UpdateStatus handles PUT /orders/{id}/status. Stale expected_version comes
// back as 409 so clients re-read and retry.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	if !enum.IsValidOrderStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if req.ExpectedVersion <= 0 {
		writeError(w, http.StatusBadRequest, "expected_version is required")
		return
	}

	detail, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get order for status update: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	order := detail.Order

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceOrder,
		Verb:         authz.VerbTransition,
		RestaurantID: order.RestaurantID,
		BranchID:     &order.BranchID,
		SessionID:    &order.SessionID,
		From:         order.Status,
		To:           req.Status,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	updated, err := h.svc.Transition(r.Context(), service.TransitionRequest{
		OrderID:         orderID,
		To:              req.Status,
		ExpectedVersion: req.ExpectedVersion,
		ActingUserID:    pgtype.UUID{Bytes: p.UserID, Valid: true},
		Notes:           req.Notes,
	})
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(updated))
}

// Cancel handles DELETE /orders/{id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExpectedVersion <= 0 {
		writeError(w, http.StatusBadRequest, "expected_version is required")
		return
	}

	detail, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get order for cancel: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	order := detail.Order

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceOrder,
		Verb:         authz.VerbTransition,
		RestaurantID: order.RestaurantID,
		BranchID:     &order.BranchID,
		SessionID:    &order.SessionID,
		From:         order.Status,
		To:           enum.OrderStatusCancelled,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	cancelled, err := h.svc.Cancel(r.Context(), service.TransitionRequest{
		OrderID:         orderID,
		ExpectedVersion: req.ExpectedVersion,
		ActingUserID:    pgtype.UUID{Bytes: p.UserID, Valid: true},
		Notes:           req.Notes,
	})
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(cancelled))
}

// ListBySession handles GET /sessions/{id}/orders, the polling endpoint.
func (h *OrderHandler) ListBySession(w http.ResponseWriter, r *http.Request) {
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

	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session not found")
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

	orders, err := h.svc.ListBySession(r.Context(), sessionID)
	if err != nil {
		log.Printf("ERROR: list orders by session: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": resp})
}

// ListByBranch handles GET /branches/{id}/orders.
func (h *OrderHandler) ListByBranch(w http.ResponseWriter, r *http.Request) {
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

	branch, err := h.sessions.GetBranch(r.Context(), branchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "branch not found")
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
	params := database.ListOrdersByBranchParams{
		BranchID: branchID,
		Limit:    int32(limit),
		Offset:   int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		if !enum.IsValidOrderStatus(s) {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}

	orders, err := h.svc.ListByBranch(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders by branch: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": resp, "limit": limit, "offset": offset})
}

// --- Helpers ---

func writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidOrderStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrIllegalTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrVersionConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPaymentIncomplete):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("ERROR: order transition: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func canReadOrder(p *identity.Principal, o database.Order) bool {
	if p.Role == enum.RoleCustomer {
		return p.SessionID != nil && *p.SessionID == o.SessionID
	}
	if p.Role == enum.RoleSuperAdmin {
		return p.RestaurantID == o.RestaurantID
	}
	return staffOwnBranch(p, o.BranchID)
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		SessionID:    o.SessionID,
		RestaurantID: o.RestaurantID,
		BranchID:     o.BranchID,
		Status:       o.Status,
		TotalAmount:  numericToString(o.TotalAmount),
		Version:      o.Version,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	return resp
}

func toOrderItemResponses(items []database.OrderItem) []orderItemResponse {
	resp := make([]orderItemResponse, len(items))
	for i, item := range items {
		resp[i] = orderItemResponse{
			ID:         item.ID,
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			UnitPrice:  numericToString(item.UnitPrice),
		}
		if item.Notes.Valid {
			resp[i].Notes = &item.Notes.String
		}
	}
	return resp
}

func toOrderLogResponse(l database.OrderLog) orderLogResponse {
	resp := orderLogResponse{
		ID:        l.ID,
		Status:    l.Status,
		CreatedAt: l.CreatedAt,
	}
	if l.ActingUserID.Valid {
		s := uuid.UUID(l.ActingUserID.Bytes).String()
		resp.ActingUserID = &s
	}
	if l.Notes.Valid {
		resp.Notes = &l.Notes.String
	}
	return resp
}
