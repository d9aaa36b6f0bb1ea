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
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/middleware"
	"github.com/tabletap/api/internal/service"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService; narrow interface for testability.
type PaymentServicer interface {
	Record(ctx context.Context, req service.RecordPaymentRequest) (database.Payment, error)
	Settle(ctx context.Context, paymentID uuid.UUID, status string) (database.Payment, error)
	Get(ctx context.Context, id uuid.UUID) (database.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc    PaymentServicer
	orders OrderServicer
}

func NewPaymentHandler(svc PaymentServicer, orders OrderServicer) *PaymentHandler {
	return &PaymentHandler{svc: svc, orders: orders}
}

// RegisterRoutes registers payment endpoints on an authenticated router.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders/{id}/payments", h.Record)
	r.Get("/orders/{id}/payments", h.ListByOrder)
	r.Patch("/payments/{id}", h.Settle)
}

// --- Request / Response types ---

type recordPaymentRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method"`
}

type settlePaymentRequest struct {
	Status string `json:"status"`
}

type paymentResponse struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	Amount      string    `json:"amount"`
	Method      string    `json:"method"`
	Status      string    `json:"status"`
	ProcessedBy *string   `json:"processed_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// --- Handlers ---

// Record handles POST /orders/{id}/payments. Cash settles on the spot; card
// and online payments start PENDING and are settled later.
func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request) {
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

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if !enum.IsValidPaymentMethod(req.Method) {
		writeError(w, http.StatusBadRequest, "invalid payment method")
		return
	}

	detail, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get order for payment: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	order := detail.Order

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourcePayment,
		Verb:         authz.VerbCreate,
		RestaurantID: order.RestaurantID,
		BranchID:     &order.BranchID,
		SessionID:    &order.SessionID,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	payment, err := h.svc.Record(r.Context(), service.RecordPaymentRequest{
		OrderID:     orderID,
		Amount:      amount,
		Method:      req.Method,
		Completed:   req.Method == enum.PaymentMethodCash,
		ProcessedBy: pgtype.UUID{Bytes: p.UserID, Valid: true},
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidAmount),
			errors.Is(err, service.ErrInvalidPaymentMethod):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrOrderNotPayable):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrOverpaymentRejected):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			log.Printf("ERROR: record payment: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(payment))
}

// Settle handles PATCH /payments/{id}.
func (h *PaymentHandler) Settle(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment ID")
		return
	}

	var req settlePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing, err := h.svc.Get(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get payment: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	detail, err := h.orders.GetOrder(r.Context(), existing.OrderID)
	if err != nil {
		log.Printf("ERROR: get order for settlement: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	order := detail.Order

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourcePayment,
		Verb:         authz.VerbUpdate,
		RestaurantID: order.RestaurantID,
		BranchID:     &order.BranchID,
		SessionID:    &order.SessionID,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	payment, err := h.svc.Settle(r.Context(), paymentID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPaymentStatus):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPaymentNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrPaymentSettled):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrOverpaymentRejected):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			log.Printf("ERROR: settle payment: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// ListByOrder handles GET /orders/{id}/payments.
func (h *PaymentHandler) ListByOrder(w http.ResponseWriter, r *http.Request) {
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

	detail, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get order for payments: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !canReadOrder(p, detail.Order) {
		writeError(w, http.StatusForbidden, "access denied for this order")
		return
	}

	payments, err := h.svc.ListByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, pay := range payments {
		resp[i] = toPaymentResponse(pay)
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": resp})
}

// --- Helpers ---

func toPaymentResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		ID:        p.ID,
		OrderID:   p.OrderID,
		Amount:    numericToString(p.Amount),
		Method:    p.Method,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.ProcessedBy.Valid {
		s := uuid.UUID(p.ProcessedBy.Bytes).String()
		resp.ProcessedBy = &s
	}
	return resp
}
