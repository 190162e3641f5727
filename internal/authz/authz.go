// Package authz decides whether an actor may perform an action on a resource
// within a company, and at which data scope.
package authz

import (
	"context"
	"errors"
	"fmt"

	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
)

var (
	// ErrUnauthenticated means no actor identity was presented.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotMember means the actor has no role in the requested company.
	ErrNotMember = errors.New("not a member of this company")
	// ErrInsufficientPermission means the role lacks the action or the scope.
	ErrInsufficientPermission = errors.New("insufficient permission")
)

// Resources guarded by role permissions.
const (
	ResourceExpenses  = "expenses"
	ResourceIncomes   = "incomes"
	ResourceUsers     = "users"
	ResourceCompanies = "companies"
)

// Actions on resources.
const (
	ActionCreate      = "create"
	ActionRead        = "read"
	ActionUpdate      = "update"
	ActionDelete      = "delete"
	ActionAssignRoles = "assign_roles"
)

// NoRole is reported for actors without a membership.
const NoRole = "none"

// Outcome names the reason behind a decision.
type Outcome string

// Decision outcomes.
const (
	OutcomeAllowed         Outcome = "allowed"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeNotMember       Outcome = "not_member"
	OutcomeMissingAction   Outcome = "missing_action"
	OutcomeScopeTooNarrow  Outcome = "scope_too_narrow"
)

// Decision is the result of an authorization check.
type Decision struct {
	Allowed bool
	Scope   models.Scope
	Role    string
	Outcome Outcome
	Reason  string
}

// Err returns the error matching a denied decision, or nil when allowed.
func (d Decision) Err() error {
	switch d.Outcome {
	case OutcomeAllowed:
		return nil
	case OutcomeUnauthenticated:
		return ErrUnauthenticated
	case OutcomeNotMember:
		return ErrNotMember
	default:
		return fmt.Errorf("%w: %s", ErrInsufficientPermission, d.Reason)
	}
}

// Filter is the mandatory row filter derived from an allowed decision.
type Filter struct {
	TenantID   string
	OwnerID    string
	AllTenants bool
}

// Filter returns the row filter callers must apply for the decision's scope.
func (d Decision) Filter(actorID, tenantID string) Filter {
	switch d.Scope {
	case models.ScopeOwn:
		return Filter{TenantID: tenantID, OwnerID: actorID}
	case models.ScopeGlobal:
		return Filter{AllTenants: true}
	default:
		return Filter{TenantID: tenantID}
	}
}

// Resolve evaluates a membership against a resource, action and optional scope.
// A nil membership is treated as "not a member".
func Resolve(membership *models.Membership, resource, action string, requested models.Scope) Decision {
	if membership == nil {
		return Decision{Role: NoRole, Outcome: OutcomeNotMember, Reason: "no role in this company"}
	}

	role := membership.Role.Name
	perm, ok := membership.Role.Permissions[resource]
	if !ok || !perm.Allows(action) {
		return Decision{
			Role:    role,
			Outcome: OutcomeMissingAction,
			Reason:  fmt.Sprintf("%s on %s", action, resource),
		}
	}

	granted := perm.Scope
	if granted == models.ScopeNone {
		granted = models.ScopeCompany
	}

	effective := granted
	if requested != models.ScopeNone {
		if granted.Rank() < requested.Rank() {
			return Decision{
				Role:    role,
				Outcome: OutcomeScopeTooNarrow,
				Reason:  fmt.Sprintf("requested %s, granted %s", requested, granted),
			}
		}
		effective = requested
	}

	return Decision{Allowed: true, Scope: effective, Role: role, Outcome: OutcomeAllowed}
}

// MembershipStore looks up an actor's role in a company.
// It returns a nil membership and nil error when none exists.
type MembershipStore interface {
	GetMembership(ctx context.Context, actorID, tenantID string) (*models.Membership, error)
}

// Guard confirms membership before permissions are evaluated.
type Guard struct {
	store MembershipStore
}

// NewGuard creates a Guard over the store.
func NewGuard(store MembershipStore) *Guard {
	return &Guard{store: store}
}

// Membership returns the actor's membership in the tenant.
func (g *Guard) Membership(ctx context.Context, actorID, tenantID string) (*models.Membership, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	if tenantID == "" {
		return nil, ErrNotMember
	}

	m, err := g.store.GetMembership(ctx, actorID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up membership: %w", err)
	}
	if m == nil {
		return nil, ErrNotMember
	}
	return m, nil
}

// Authorize runs the guard then the resolver. The returned error is nil only
// when the decision is allowed; store failures are returned unwrapped from
// the authorization taxonomy.
func (g *Guard) Authorize(
	ctx context.Context,
	actorID, tenantID, resource, action string,
	scope models.Scope,
) (Decision, error) {
	m, err := g.Membership(ctx, actorID, tenantID)
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return Decision{Role: NoRole, Outcome: OutcomeUnauthenticated}, err
	case errors.Is(err, ErrNotMember):
		d := Resolve(nil, resource, action, scope)
		return d, d.Err()
	case err != nil:
		return Decision{Role: NoRole}, err
	}

	d := Resolve(m, resource, action, scope)
	return d, d.Err()
}

// PermissionView is the role and permission table exposed to clients.
type PermissionView struct {
	Role        string                   `json:"role"`
	Permissions models.RolePermissionSet `json:"permissions"`
}

// Permissions returns the actor's role and permission table in the tenant.
// Non-members get role "none" and an empty table.
func (g *Guard) Permissions(ctx context.Context, actorID, tenantID string) (PermissionView, error) {
	m, err := g.Membership(ctx, actorID, tenantID)
	switch {
	case errors.Is(err, ErrNotMember):
		return PermissionView{Role: NoRole, Permissions: models.RolePermissionSet{}}, nil
	case err != nil:
		return PermissionView{}, err
	}

	perms := m.Role.Permissions
	if perms == nil {
		perms = models.RolePermissionSet{}
	}
	return PermissionView{Role: m.Role.Name, Permissions: perms}, nil
}

// ResourceForKind maps a record kind to the guarded resource.
func ResourceForKind(kind models.Kind) string {
	if kind == models.KindIncome {
		return ResourceIncomes
	}
	return ResourceExpenses
}
