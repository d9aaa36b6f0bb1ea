package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	committed bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockOrderStore implements OrderStore with configurable behavior.
type mockOrderStore struct {
	getSessionForUpdateFn  func(ctx context.Context, id uuid.UUID) (database.Session, error)
	getMenuItemForOrderFn  func(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error)
	createOrderFn          func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn      func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	getOrderFn             func(ctx context.Context, id uuid.UUID) (database.Order, error)
	updateOrderStatusFn    func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	createOrderLogFn       func(ctx context.Context, arg database.CreateOrderLogParams) (database.OrderLog, error)
	listOrderItemsFn       func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	listOrderLogsFn        func(ctx context.Context, orderID uuid.UUID) ([]database.OrderLog, error)
	listOrdersBySessionFn  func(ctx context.Context, sessionID uuid.UUID) ([]database.Order, error)
	listOrdersByBranchFn   func(ctx context.Context, arg database.ListOrdersByBranchParams) ([]database.Order, error)
	sumCompletedPaymentsFn func(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
}

func (m *mockOrderStore) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (database.Session, error) {
	return m.getSessionForUpdateFn(ctx, id)
}
func (m *mockOrderStore) GetMenuItemForOrder(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error) {
	return m.getMenuItemForOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrderFn(ctx, id)
}
func (m *mockOrderStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	return m.updateOrderStatusFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderLog(ctx context.Context, arg database.CreateOrderLogParams) (database.OrderLog, error) {
	return m.createOrderLogFn(ctx, arg)
}
func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.listOrderItemsFn(ctx, orderID)
}
func (m *mockOrderStore) ListOrderLogsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderLog, error) {
	return m.listOrderLogsFn(ctx, orderID)
}
func (m *mockOrderStore) ListOrdersBySession(ctx context.Context, sessionID uuid.UUID) ([]database.Order, error) {
	return m.listOrdersBySessionFn(ctx, sessionID)
}
func (m *mockOrderStore) ListOrdersByBranch(ctx context.Context, arg database.ListOrdersByBranchParams) ([]database.Order, error) {
	return m.listOrdersByBranchFn(ctx, arg)
}
func (m *mockOrderStore) SumCompletedPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	return m.sumCompletedPaymentsFn(ctx, orderID)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func newTestOrderService(store *mockOrderStore) (*OrderService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(pool, store, newStore), tx
}

// defaultOrderStore returns a mock with sensible defaults for one active
// session and one available 25.00 menu item. Tests override what they need.
func defaultOrderStore(sessionID, menuItemID uuid.UUID) *mockOrderStore {
	restaurantID := uuid.New()
	branchID := uuid.New()
	return &mockOrderStore{
		getSessionForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Session, error) {
			if id == sessionID {
				return database.Session{
					ID:           sessionID,
					TableID:      uuid.New(),
					RestaurantID: restaurantID,
					BranchID:     branchID,
					IsActive:     true,
				}, nil
			}
			return database.Session{}, pgx.ErrNoRows
		},
		getMenuItemForOrderFn: func(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error) {
			if arg.ID == menuItemID {
				return database.MenuItem{
					ID:           menuItemID,
					RestaurantID: arg.RestaurantID,
					Name:         "Nasi Goreng",
					Price:        makeNumeric("25.00"),
					IsAvailable:  true,
				}, nil
			}
			return database.MenuItem{}, pgx.ErrNoRows
		},
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			return database.Order{
				ID:           uuid.New(),
				SessionID:    arg.SessionID,
				RestaurantID: arg.RestaurantID,
				BranchID:     arg.BranchID,
				Status:       arg.Status,
				TotalAmount:  arg.TotalAmount,
				Notes:        arg.Notes,
				Version:      1,
			}, nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			return database.OrderItem{
				ID:         uuid.New(),
				OrderID:    arg.OrderID,
				MenuItemID: arg.MenuItemID,
				Quantity:   arg.Quantity,
				UnitPrice:  arg.UnitPrice,
				Notes:      arg.Notes,
			}, nil
		},
		createOrderLogFn: func(ctx context.Context, arg database.CreateOrderLogParams) (database.OrderLog, error) {
			return database.OrderLog{
				ID:      uuid.New(),
				OrderID: arg.OrderID,
				Status:  arg.Status,
			}, nil
		},
	}
}

// --- CreateOrder ---

func TestCreateOrder_EmptyItems(t *testing.T) {
	svc, _ := newTestOrderService(defaultOrderStore(uuid.New(), uuid.New()))
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{SessionID: uuid.New()})
	if !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder, got %v", err)
	}
}

func TestCreateOrder_SessionNotFound(t *testing.T) {
	menuItemID := uuid.New()
	svc, _ := newTestOrderService(defaultOrderStore(uuid.New(), menuItemID))
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SessionID: uuid.New(), // not the one the store knows
		Items:     []CreateOrderItemRequest{{MenuItemID: menuItemID.String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCreateOrder_SessionNotActive(t *testing.T) {
	sessionID := uuid.New()
	menuItemID := uuid.New()
	store := defaultOrderStore(sessionID, menuItemID)
	store.getSessionForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.Session, error) {
		return database.Session{ID: sessionID, IsActive: false}, nil
	}
	svc, _ := newTestOrderService(store)
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SessionID: sessionID,
		Items:     []CreateOrderItemRequest{{MenuItemID: menuItemID.String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
}

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	sessionID := uuid.New()
	menuItemID := uuid.New()
	svc, _ := newTestOrderService(defaultOrderStore(sessionID, menuItemID))
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SessionID: sessionID,
		Items:     []CreateOrderItemRequest{{MenuItemID: menuItemID.String(), Quantity: 0}},
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestCreateOrder_ItemNotFound(t *testing.T) {
	sessionID := uuid.New()
	svc, _ := newTestOrderService(defaultOrderStore(sessionID, uuid.New()))
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SessionID: sessionID,
		Items:     []CreateOrderItemRequest{{MenuItemID: uuid.New().String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrItemUnavailable) {
		t.Fatalf("expected ErrItemUnavailable, got %v", err)
	}
}

func TestCreateOrder_ItemMarkedUnavailable(t *testing.T) {
	sessionID := uuid.New()
	menuItemID := uuid.New()
	store := defaultOrderStore(sessionID, menuItemID)
	store.getMenuItemForOrderFn = func(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error) {
		return database.MenuItem{ID: menuItemID, Price: makeNumeric("25.00"), IsAvailable: false}, nil
	}
	svc, _ := newTestOrderService(store)
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SessionID: sessionID,
		Items:     []CreateOrderItemRequest{{MenuItemID: menuItemID.String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrItemUnavailable) {
		t.Fatalf("expected ErrItemUnavailable, got %v", err)
	}
}

func TestCreateOrder_ItemFromOtherBranch(t *testing.T) {
	sessionID := uuid.New()
	menuItemID := uuid.New()
	store := defaultOrderStore(sessionID, menuItemID)
	otherBranch := uuid.New()
	store.getMenuItemForOrderFn = func(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error) {
		return database.MenuItem{
			ID:          menuItemID,
			BranchID:    pgtype.UUID{Bytes: otherBranch, Valid: true},
			Price:       makeNumeric("25.00"),
			IsAvailable: true,
		}, nil
	}
	svc, _ := newTestOrderService(store)
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SessionID: sessionID,
		Items:     []CreateOrderItemRequest{{MenuItemID: menuItemID.String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrItemUnavailable) {
		t.Fatalf("expected ErrItemUnavailable, got %v", err)
	}
}

func TestCreateOrder_Success(t *testing.T) {
	sessionID := uuid.New()
	menuItemID := uuid.New()
	store := defaultOrderStore(sessionID, menuItemID)
	var loggedStatus string
	store.createOrderLogFn = func(ctx context.Context, arg database.CreateOrderLogParams) (database.OrderLog, error) {
		loggedStatus = arg.Status
		return database.OrderLog{ID: uuid.New(), OrderID: arg.OrderID, Status: arg.Status}, nil
	}
	svc, tx := newTestOrderService(store)

	result, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SessionID: sessionID,
		Items: []CreateOrderItemRequest{
			{MenuItemID: menuItemID.String(), Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Order.Status != enum.OrderStatusOrdered {
		t.Errorf("status = %s, want %s", result.Order.Status, enum.OrderStatusOrdered)
	}
	if result.Order.Version != 1 {
		t.Errorf("version = %d, want 1", result.Order.Version)
	}
	if !numericEquals(result.Order.TotalAmount, "75.00") {
		t.Errorf("total = %v, want 75.00", numericToDecimal(result.Order.TotalAmount))
	}
	if len(result.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(result.Items))
	}
	if !numericEquals(result.Items[0].UnitPrice, "25.00") {
		t.Errorf("unit price = %v, want 25.00", numericToDecimal(result.Items[0].UnitPrice))
	}
	if loggedStatus != enum.OrderStatusOrdered {
		t.Errorf("log status = %s, want %s", loggedStatus, enum.OrderStatusOrdered)
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}
}

// --- Transition ---

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{enum.OrderStatusOrdered, enum.OrderStatusPreparing, true},
		{enum.OrderStatusOrdered, enum.OrderStatusCancelled, true},
		{enum.OrderStatusOrdered, enum.OrderStatusServed, false},
		{enum.OrderStatusPreparing, enum.OrderStatusPreparedWaiting, true},
		{enum.OrderStatusPreparing, enum.OrderStatusCancelled, true},
		{enum.OrderStatusPreparing, enum.OrderStatusCompleted, false},
		{enum.OrderStatusPreparedWaiting, enum.OrderStatusServed, true},
		{enum.OrderStatusPreparedWaiting, enum.OrderStatusCancelled, true},
		{enum.OrderStatusServed, enum.OrderStatusCompleted, true},
		{enum.OrderStatusServed, enum.OrderStatusCancelled, false},
		{enum.OrderStatusCompleted, enum.OrderStatusServed, false},
		{enum.OrderStatusCancelled, enum.OrderStatusOrdered, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func transitionStore(order database.Order) *mockOrderStore {
	return &mockOrderStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			if id == order.ID {
				return order, nil
			}
			return database.Order{}, pgx.ErrNoRows
		},
		updateOrderStatusFn: func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
			if arg.ExpectedVersion != order.Version {
				return database.Order{}, pgx.ErrNoRows
			}
			updated := order
			updated.Status = arg.Status
			updated.Version = order.Version + 1
			return updated, nil
		},
		createOrderLogFn: func(ctx context.Context, arg database.CreateOrderLogParams) (database.OrderLog, error) {
			return database.OrderLog{ID: uuid.New(), OrderID: arg.OrderID, Status: arg.Status}, nil
		},
		sumCompletedPaymentsFn: func(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
			return makeNumeric("0"), nil
		},
	}
}

func TestTransition_OrderNotFound(t *testing.T) {
	order := database.Order{ID: uuid.New(), Status: enum.OrderStatusOrdered, Version: 1}
	svc, _ := newTestOrderService(transitionStore(order))
	_, err := svc.Transition(context.Background(), TransitionRequest{
		OrderID:         uuid.New(),
		To:              enum.OrderStatusPreparing,
		ExpectedVersion: 1,
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestTransition_Illegal(t *testing.T) {
	order := database.Order{ID: uuid.New(), Status: enum.OrderStatusOrdered, Version: 1}
	svc, _ := newTestOrderService(transitionStore(order))
	_, err := svc.Transition(context.Background(), TransitionRequest{
		OrderID:         order.ID,
		To:              enum.OrderStatusCompleted,
		ExpectedVersion: 1,
	})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	order := database.Order{ID: uuid.New(), Status: enum.OrderStatusOrdered, Version: 1}
	svc, _ := newTestOrderService(transitionStore(order))
	_, err := svc.Transition(context.Background(), TransitionRequest{
		OrderID:         order.ID,
		To:              "SHIPPED",
		ExpectedVersion: 1,
	})
	if !errors.Is(err, ErrInvalidOrderStatus) {
		t.Fatalf("expected ErrInvalidOrderStatus, got %v", err)
	}
}

func TestTransition_VersionConflict(t *testing.T) {
	order := database.Order{ID: uuid.New(), Status: enum.OrderStatusOrdered, Version: 2}
	svc, _ := newTestOrderService(transitionStore(order))
	_, err := svc.Transition(context.Background(), TransitionRequest{
		OrderID:         order.ID,
		To:              enum.OrderStatusPreparing,
		ExpectedVersion: 1, // stale
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestTransition_Success(t *testing.T) {
	order := database.Order{ID: uuid.New(), Status: enum.OrderStatusOrdered, Version: 1}
	store := transitionStore(order)
	var loggedStatus string
	store.createOrderLogFn = func(ctx context.Context, arg database.CreateOrderLogParams) (database.OrderLog, error) {
		loggedStatus = arg.Status
		return database.OrderLog{ID: uuid.New(), OrderID: arg.OrderID, Status: arg.Status}, nil
	}
	svc, tx := newTestOrderService(store)

	updated, err := svc.Transition(context.Background(), TransitionRequest{
		OrderID:         order.ID,
		To:              enum.OrderStatusPreparing,
		ExpectedVersion: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enum.OrderStatusPreparing {
		t.Errorf("status = %s, want %s", updated.Status, enum.OrderStatusPreparing)
	}
	if updated.Version != 2 {
		t.Errorf("version = %d, want 2", updated.Version)
	}
	if loggedStatus != enum.OrderStatusPreparing {
		t.Errorf("log status = %s, want %s", loggedStatus, enum.OrderStatusPreparing)
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}
}

func TestTransition_CompleteRequiresFullPayment(t *testing.T) {
	order := database.Order{
		ID:          uuid.New(),
		Status:      enum.OrderStatusServed,
		TotalAmount: makeNumeric("100.00"),
		Version:     3,
	}
	store := transitionStore(order)
	store.sumCompletedPaymentsFn = func(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
		return makeNumeric("60.00"), nil
	}
	svc, _ := newTestOrderService(store)
	_, err := svc.Transition(context.Background(), TransitionRequest{
		OrderID:         order.ID,
		To:              enum.OrderStatusCompleted,
		ExpectedVersion: 3,
	})
	if !errors.Is(err, ErrPaymentIncomplete) {
		t.Fatalf("expected ErrPaymentIncomplete, got %v", err)
	}
}

func TestTransition_CompleteWhenPaid(t *testing.T) {
	order := database.Order{
		ID:          uuid.New(),
		Status:      enum.OrderStatusServed,
		TotalAmount: makeNumeric("100.00"),
		Version:     3,
	}
	store := transitionStore(order)
	store.sumCompletedPaymentsFn = func(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
		return makeNumeric("100.00"), nil
	}
	svc, _ := newTestOrderService(store)
	updated, err := svc.Transition(context.Background(), TransitionRequest{
		OrderID:         order.ID,
		To:              enum.OrderStatusCompleted,
		ExpectedVersion: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enum.OrderStatusCompleted {
		t.Errorf("status = %s, want %s", updated.Status, enum.OrderStatusCompleted)
	}
}

func TestCancel_AfterServedRejected(t *testing.T) {
	order := database.Order{ID: uuid.New(), Status: enum.OrderStatusServed, Version: 1}
	svc, _ := newTestOrderService(transitionStore(order))
	_, err := svc.Cancel(context.Background(), TransitionRequest{
		OrderID:         order.ID,
		ExpectedVersion: 1,
	})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestCancel_FromPreparing(t *testing.T) {
	order := database.Order{ID: uuid.New(), Status: enum.OrderStatusPreparing, Version: 2}
	svc, _ := newTestOrderService(transitionStore(order))
	updated, err := svc.Cancel(context.Background(), TransitionRequest{
		OrderID:         order.ID,
		ExpectedVersion: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enum.OrderStatusCancelled {
		t.Errorf("status = %s, want %s", updated.Status, enum.OrderStatusCancelled)
	}
}
