// Package authz is the pure authorization policy: (principal, action) in,
// allow/deny out. No I/O, no side effects; handlers consult it before every
// mutation and the lifecycle engine stays policy-agnostic.
package authz

import (
	"github.com/google/uuid"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/identity"
)

// Resources an action can target.
const (
	ResourceRestaurant = "restaurant"
	ResourceBranch     = "branch"
	ResourceTable      = "table"
	ResourceMenuItem   = "menu_item"
	ResourceStaff      = "staff"
	ResourceSession    = "session"
	ResourceOrder      = "order"
	ResourcePayment    = "payment"
	ResourceReport     = "report"
)

// Verbs.
const (
	VerbCreate     = "create"
	VerbRead       = "read"
	VerbUpdate     = "update"
	VerbDelete     = "delete"
	VerbTransition = "transition"
)

// Stable deny reasons. These are part of the API surface: clients and tests
// match on them, so they must not be reworded casually.
const (
	ReasonRestaurantScopeMismatch = "restaurant scope mismatch"
	ReasonBranchScopeMismatch     = "branch scope mismatch"
	ReasonMenuReadOnlyForAdmins   = "menu is read-only for admins"
	ReasonTransitionNotPermitted  = "transition not permitted for role"
	ReasonSessionNotOwned         = "session does not belong to principal"
	ReasonRoleNotPermitted        = "role not permitted for this action"
)

// Action describes a requested operation and the tenant scope of its target.
// From/To are set only for order status transitions; SessionID is set when
// the target is owned by a table session.
type Action struct {
	Resource     string
	Verb         string
	RestaurantID uuid.UUID
	BranchID     *uuid.UUID
	SessionID    *uuid.UUID
	From         string
	To           string
}

// Decision is the policy outcome. Reason is empty on allow.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Decide evaluates the role rules in order; the first matching rule wins.
func Decide(p *identity.Principal, a Action) Decision {
	switch p.Role {
	case enum.RoleSuperAdmin:
		// Superadmin is scoped to exactly one restaurant, not global.
		if a.RestaurantID != p.RestaurantID {
			return deny(ReasonRestaurantScopeMismatch)
		}
		return allow()

	case enum.RoleAdmin:
		// Menu catalog is superadmin-owned; admins read it only.
		if a.Resource == ResourceMenuItem && a.Verb != VerbRead {
			return deny(ReasonMenuReadOnlyForAdmins)
		}
		if !sameBranch(p.BranchID, a.BranchID) {
			return deny(ReasonBranchScopeMismatch)
		}
		return allow()

	case enum.RoleKitchen:
		if a.Resource != ResourceOrder || a.Verb != VerbTransition {
			return deny(ReasonRoleNotPermitted)
		}
		if !kitchenTransition(a.From, a.To) {
			return deny(ReasonTransitionNotPermitted)
		}
		if !sameBranch(p.BranchID, a.BranchID) {
			return deny(ReasonBranchScopeMismatch)
		}
		return allow()

	case enum.RoleWaiter:
		switch {
		case a.Resource == ResourceOrder && a.Verb == VerbTransition:
			if !(a.From == enum.OrderStatusPreparedWaiting && a.To == enum.OrderStatusServed) {
				return deny(ReasonTransitionNotPermitted)
			}
		case a.Resource == ResourcePayment && a.Verb == VerbCreate:
			// fall through to branch check
		default:
			return deny(ReasonRoleNotPermitted)
		}
		if !sameBranch(p.BranchID, a.BranchID) {
			return deny(ReasonBranchScopeMismatch)
		}
		return allow()

	case enum.RoleCustomer:
		if a.Resource != ResourceOrder || (a.Verb != VerbCreate && a.Verb != VerbRead) {
			return deny(ReasonRoleNotPermitted)
		}
		if p.SessionID == nil || a.SessionID == nil || *p.SessionID != *a.SessionID {
			return deny(ReasonSessionNotOwned)
		}
		return allow()
	}

	return deny(ReasonRoleNotPermitted)
}

func sameBranch(principal, target *uuid.UUID) bool {
	return principal != nil && target != nil && *principal == *target
}

func kitchenTransition(from, to string) bool {
	switch {
	case from == enum.OrderStatusOrdered && to == enum.OrderStatusPreparing:
		return true
	case from == enum.OrderStatusPreparing && to == enum.OrderStatusPreparedWaiting:
		return true
	}
	return false
}

// LandingPath returns the post-authentication route for a role. Total over
// the role set: anything without an interactive dashboard lands on /login.
func LandingPath(role string) string {
	switch role {
	case enum.RoleSuperAdmin:
		return "/dashboard/superadmin"
	case enum.RoleAdmin:
		return "/dashboard/admin"
	}
	return "/login"
}
