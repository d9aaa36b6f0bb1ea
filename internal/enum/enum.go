package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusOrdered         = "ORDERED"
	OrderStatusPreparing       = "PREPARING"
	OrderStatusPreparedWaiting = "PREPARED_WAITING"
	OrderStatusServed          = "SERVED"
	OrderStatusCompleted       = "COMPLETED"
	OrderStatusCancelled       = "CANCELLED"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
)

// ── Group B: Roles (CHECK constrained in DB) ──

const (
	RoleSuperAdmin = "SUPERADMIN"
	RoleAdmin      = "ADMIN"
	RoleWaiter     = "WAITER"
	RoleKitchen    = "KITCHEN"
	RoleCustomer   = "CUSTOMER"
)

// ── Group C: Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash   = "CASH"
	PaymentMethodCard   = "CARD"
	PaymentMethodOnline = "ONLINE"
)

// IsTerminalOrderStatus reports whether no transition is defined out of s.
func IsTerminalOrderStatus(s string) bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// IsValidOrderStatus reports whether s is a member of the order status set.
func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusOrdered, OrderStatusPreparing, OrderStatusPreparedWaiting,
		OrderStatusServed, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// IsValidRole reports whether s is a member of the role set.
func IsValidRole(s string) bool {
	switch s {
	case RoleSuperAdmin, RoleAdmin, RoleWaiter, RoleKitchen, RoleCustomer:
		return true
	}
	return false
}

// IsValidPaymentMethod reports whether s is a supported payment method.
func IsValidPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodOnline:
		return true
	}
	return false
}
