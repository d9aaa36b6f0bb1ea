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

// Errors returned by the order service.
var (
	ErrEmptyOrder         = errors.New("order must contain at least one item")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrInvalidMenuItemID  = errors.New("invalid menu_item_id")
	ErrItemUnavailable    = errors.New("menu item not available")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionNotActive   = errors.New("session is not active")
	ErrOrderNotFound      = errors.New("order not found")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrVersionConflict    = errors.New("order was modified concurrently")
	ErrPaymentIncomplete  = errors.New("completed payments do not cover the order total")
	ErrInvalidOrderStatus = errors.New("invalid order status")
)

// allowedTransitions is the order lifecycle: each status maps to the set of
// statuses it may move to. Terminal statuses have no entry.
var allowedTransitions = map[string][]string{
	enum.OrderStatusOrdered:         {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing:       {enum.OrderStatusPreparedWaiting, enum.OrderStatusCancelled},
	enum.OrderStatusPreparedWaiting: {enum.OrderStatusServed, enum.OrderStatusCancelled},
	enum.OrderStatusServed:          {enum.OrderStatusCompleted},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetSessionForUpdate(ctx context.Context, id uuid.UUID) (database.Session, error)
	GetMenuItemForOrder(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CreateOrderLog(ctx context.Context, arg database.CreateOrderLogParams) (database.OrderLog, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderLogsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderLog, error)
	ListOrdersBySession(ctx context.Context, sessionID uuid.UUID) ([]database.Order, error)
	ListOrdersByBranch(ctx context.Context, arg database.ListOrdersByBranchParams) ([]database.Order, error)
	SumCompletedPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for placing an order.
type CreateOrderRequest struct {
	SessionID    uuid.UUID
	ActingUserID pgtype.UUID // zero for customer-placed orders
	Notes        string
	Items        []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line of the order.
type CreateOrderItemRequest struct {
	MenuItemID string
	Quantity   int32
	Notes      string
}

// CreateOrderResult is the created order with its lines.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderDetail is an order with its lines and transition history.
type OrderDetail struct {
	Order database.Order
	Items []database.OrderItem
	Logs  []database.OrderLog
}

// TransitionRequest moves an order to a new status.
type TransitionRequest struct {
	OrderID         uuid.UUID
	To              string
	ExpectedVersion int32
	ActingUserID    pgtype.UUID
	Notes           string
}

// OrderService handles the order lifecycle.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore // reads that need no transaction
	newStore NewOrderStore
}

func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, store: store, newStore: newStore}
}

// processedLine holds a priced order line ready to insert.
type processedLine struct {
	params database.CreateOrderItemParams
}

// CreateOrder validates the session and items, snapshots menu prices, and
// inserts the order, its lines, and the initial ORDERED log atomically. The
// session row is locked FOR UPDATE, so placement serializes against End: a
// concurrent End either sees the new order in its open count or flips the
// session first and this call fails with ErrSessionNotActive.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	session, err := store.GetSessionForUpdate(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !session.IsActive {
		return nil, ErrSessionNotActive
	}

	// Price each line from the menu at order time. The snapshot in
	// order_items.unit_price is what the bill is computed from; later menu
	// edits never touch placed orders.
	total := decimal.Zero
	var lines []processedLine
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidMenuItemID)
		}

		menuItem, err := store.GetMenuItemForOrder(ctx, database.GetMenuItemForOrderParams{
			ID:           menuItemID,
			RestaurantID: session.RestaurantID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrItemUnavailable)
			}
			return nil, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}
		if !menuItem.IsAvailable {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrItemUnavailable)
		}
		// Branch-scoped items are only orderable at their own branch.
		if menuItem.BranchID.Valid && uuid.UUID(menuItem.BranchID.Bytes) != session.BranchID {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrItemUnavailable)
		}

		unitPrice := numericToDecimal(menuItem.Price)
		total = total.Add(unitPrice.Mul(decimal.NewFromInt32(item.Quantity)))

		notes := pgtype.Text{}
		if item.Notes != "" {
			notes = pgtype.Text{String: item.Notes, Valid: true}
		}
		lines = append(lines, processedLine{
			params: database.CreateOrderItemParams{
				MenuItemID: menuItemID,
				Quantity:   item.Quantity,
				UnitPrice:  decimalToNumeric(unitPrice),
				Notes:      notes,
			},
		})
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		SessionID:    session.ID,
		RestaurantID: session.RestaurantID,
		BranchID:     session.BranchID,
		Status:       enum.OrderStatusOrdered,
		TotalAmount:  decimalToNumeric(total),
		Notes:        notes,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var items []database.OrderItem
	for _, line := range lines {
		line.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, line.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	logNotes := pgtype.Text{}
	if req.Notes != "" {
		logNotes = pgtype.Text{String: req.Notes, Valid: true}
	}
	if _, err := store.CreateOrderLog(ctx, database.CreateOrderLogParams{
		OrderID:      order.ID,
		Status:       enum.OrderStatusOrdered,
		ActingUserID: req.ActingUserID,
		Notes:        logNotes,
	}); err != nil {
		return nil, fmt.Errorf("create order log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CreateOrderResult{Order: order, Items: items}, nil
}

// Transition moves an order along the lifecycle with optimistic concurrency:
// the write only lands if the order still carries the version the caller last
// saw, otherwise ErrVersionConflict. The transition and its log entry commit
// together.
func (s *OrderService) Transition(ctx context.Context, req TransitionRequest) (database.Order, error) {
	if !enum.IsValidOrderStatus(req.To) {
		return database.Order{}, ErrInvalidOrderStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if !CanTransition(order.Status, req.To) {
		return database.Order{}, fmt.Errorf("%s -> %s: %w", order.Status, req.To, ErrIllegalTransition)
	}

	// Completing an order requires the bill to be settled first.
	if req.To == enum.OrderStatusCompleted {
		paid, err := store.SumCompletedPaymentsByOrder(ctx, order.ID)
		if err != nil {
			return database.Order{}, fmt.Errorf("sum payments: %w", err)
		}
		if numericToDecimal(paid).LessThan(numericToDecimal(order.TotalAmount)) {
			return database.Order{}, ErrPaymentIncomplete
		}
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:              req.OrderID,
		ExpectedVersion: req.ExpectedVersion,
		Status:          req.To,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrVersionConflict
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}
	if _, err := store.CreateOrderLog(ctx, database.CreateOrderLogParams{
		OrderID:      updated.ID,
		Status:       req.To,
		ActingUserID: req.ActingUserID,
		Notes:        notes,
	}); err != nil {
		return database.Order{}, fmt.Errorf("create order log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

// Cancel is a transition to CANCELLED; the lifecycle map limits it to orders
// that have not been served yet.
func (s *OrderService) Cancel(ctx context.Context, req TransitionRequest) (database.Order, error) {
	req.To = enum.OrderStatusCancelled
	return s.Transition(ctx, req)
}

// GetOrder returns the order with its lines and full transition history.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*OrderDetail, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	items, err := s.store.ListOrderItemsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	logs, err := s.store.ListOrderLogsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list order logs: %w", err)
	}
	return &OrderDetail{Order: order, Items: items, Logs: logs}, nil
}

// ListBySession returns all orders of a session, oldest first. Clients poll
// this to pick up kitchen progress.
func (s *OrderService) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]database.Order, error) {
	return s.store.ListOrdersBySession(ctx, sessionID)
}

// ListByBranch returns a page of branch orders, optionally filtered by status.
func (s *OrderService) ListByBranch(ctx context.Context, arg database.ListOrdersByBranchParams) ([]database.Order, error) {
	if arg.Status.Valid && !enum.IsValidOrderStatus(arg.Status.String) {
		return nil, ErrInvalidOrderStatus
	}
	return s.store.ListOrdersByBranch(ctx, arg)
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
