package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
)

// Errors returned by the payment service.
var (
	ErrInvalidAmount        = errors.New("amount must be > 0")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrOverpaymentRejected  = errors.New("payment would exceed the order total")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentSettled       = errors.New("payment already settled")
	ErrOrderNotPayable      = errors.New("order cannot accept payments")
)

// PaymentStore defines the DB methods needed by the payment service.
type PaymentStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	SumCompletedPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	UpdatePaymentStatus(ctx context.Context, arg database.UpdatePaymentStatusParams) (database.Payment, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// RecordPaymentRequest records a payment against an order.
type RecordPaymentRequest struct {
	OrderID     uuid.UUID
	Amount      decimal.Decimal
	Method      string
	Completed   bool // cash is settled on the spot, card/online start PENDING
	ProcessedBy pgtype.UUID
}

// PaymentService handles payments against orders.
type PaymentService struct {
	pool     TxBeginner
	store    PaymentStore
	newStore NewPaymentStore
}

func NewPaymentService(pool TxBeginner, store PaymentStore, newStore NewPaymentStore) *PaymentService {
	return &PaymentService{pool: pool, store: store, newStore: newStore}
}

// Record validates and inserts a payment. The order row is locked FOR UPDATE
// before the overpayment check, so concurrent recordings against the same
// order serialize and cannot jointly exceed the total.
func (s *PaymentService) Record(ctx context.Context, req RecordPaymentRequest) (database.Payment, error) {
	if !req.Amount.IsPositive() {
		return database.Payment{}, ErrInvalidAmount
	}
	if !enum.IsValidPaymentMethod(req.Method) {
		return database.Payment{}, ErrInvalidPaymentMethod
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Payment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Payment{}, ErrOrderNotFound
		}
		return database.Payment{}, fmt.Errorf("get order: %w", err)
	}
	if enum.IsTerminalOrderStatus(order.Status) {
		return database.Payment{}, ErrOrderNotPayable
	}

	paid, err := store.SumCompletedPaymentsByOrder(ctx, req.OrderID)
	if err != nil {
		return database.Payment{}, fmt.Errorf("sum payments: %w", err)
	}
	if numericToDecimal(paid).Add(req.Amount).GreaterThan(numericToDecimal(order.TotalAmount)) {
		return database.Payment{}, ErrOverpaymentRejected
	}

	status := enum.PaymentStatusPending
	if req.Completed {
		status = enum.PaymentStatusCompleted
	}
	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID:     req.OrderID,
		Amount:      decimalToNumeric(req.Amount),
		Method:      req.Method,
		Status:      status,
		ProcessedBy: req.ProcessedBy,
	})
	if err != nil {
		return database.Payment{}, fmt.Errorf("create payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Payment{}, fmt.Errorf("commit tx: %w", err)
	}
	return payment, nil
}

// Settle moves a PENDING payment to COMPLETED or FAILED. Completing locks
// the order row and re-runs the overpayment check because other payments may
// have settled since the PENDING row was created.
func (s *PaymentService) Settle(ctx context.Context, paymentID uuid.UUID, status string) (database.Payment, error) {
	if status != enum.PaymentStatusCompleted && status != enum.PaymentStatusFailed {
		return database.Payment{}, ErrInvalidPaymentStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Payment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	payment, err := store.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Payment{}, ErrPaymentNotFound
		}
		return database.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	if payment.Status != enum.PaymentStatusPending {
		return database.Payment{}, ErrPaymentSettled
	}

	if status == enum.PaymentStatusCompleted {
		order, err := store.GetOrderForUpdate(ctx, payment.OrderID)
		if err != nil {
			return database.Payment{}, fmt.Errorf("get order: %w", err)
		}
		paid, err := store.SumCompletedPaymentsByOrder(ctx, payment.OrderID)
		if err != nil {
			return database.Payment{}, fmt.Errorf("sum payments: %w", err)
		}
		if numericToDecimal(paid).Add(numericToDecimal(payment.Amount)).GreaterThan(numericToDecimal(order.TotalAmount)) {
			return database.Payment{}, ErrOverpaymentRejected
		}
	}

	settled, err := store.UpdatePaymentStatus(ctx, database.UpdatePaymentStatusParams{
		ID:     paymentID,
		Status: status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Payment{}, ErrPaymentSettled
		}
		return database.Payment{}, fmt.Errorf("update payment status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Payment{}, fmt.Errorf("commit tx: %w", err)
	}
	return settled, nil
}

// Get returns a single payment.
func (s *PaymentService) Get(ctx context.Context, id uuid.UUID) (database.Payment, error) {
	payment, err := s.store.GetPayment(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Payment{}, ErrPaymentNotFound
		}
		return database.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}

// ListByOrder returns all payments recorded against an order.
func (s *PaymentService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error) {
	return s.store.ListPaymentsByOrder(ctx, orderID)
}
