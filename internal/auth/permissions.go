package auth

import (
	"context"
	"fmt"

	"github.com/nerrad567/venue-core/internal/datastore"
)

// Action is a grantable operation on a table.
type Action string

// Action constants. ActionAny in a grant matches every action.
const (
	ActionCreate Action = "c"
	ActionRead   Action = "r"
	ActionUpdate Action = "u"
	ActionDelete Action = "d"
	ActionAny    Action = "*"
)

// anyResource in a grant matches every table.
const anyResource = "*"

const tableRolePermissions = "role_permissions"

// Policy decides whether a client may perform an action on a table.
type Policy interface {
	// Check returns nil if allowed and an error wrapping ErrForbidden if not.
	Check(ctx context.Context, client *Client, action Action, resource string) error
}

// AllowAll passes every check. It is the Collection default when no policy
// is configured; the server wires StorePolicy for every driver.
type AllowAll struct{}

// Check implements Policy.
func (AllowAll) Check(context.Context, *Client, Action, string) error { return nil }

// StorePolicy reads role grants from the role_permissions table.
//
// A grant row is (role, resource, action); resource "*" and action "*"
// act as wildcards. Roles without rows are denied everything.
type StorePolicy struct {
	store datastore.Store
}

// NewStorePolicy creates a policy that reads grants from store.
func NewStorePolicy(store datastore.Store) *StorePolicy {
	return &StorePolicy{store: store}
}

// Check implements Policy.
func (p *StorePolicy) Check(ctx context.Context, client *Client, action Action, resource string) error {
	role := RoleAnon
	if client != nil && client.Principal.Role != "" {
		role = client.Principal.Role
	}

	rows, err := p.store.Select(ctx, datastore.From(tableRolePermissions).Eq("role", role))
	if err != nil {
		return fmt.Errorf("loading grants for role %s: %w", role, err)
	}
	for _, row := range rows {
		if Grants(row.String("resource"), Action(row.String("action")), action, resource) {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s cannot %s on %s", ErrForbidden, role, action.Verb(), resource)
}

// Grants reports whether a grant on grantResource/grantAction covers the
// requested action on resource.
func Grants(grantResource string, grantAction, action Action, resource string) bool {
	if grantResource != anyResource && grantResource != resource {
		return false
	}
	return grantAction == ActionAny || grantAction == action
}

// Verb returns the human readable name of an action.
func (a Action) Verb() string {
	switch a {
	case ActionCreate:
		return "insert"
	case ActionRead:
		return "read"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	case ActionAny:
		return "any"
	default:
		return string(a)
	}
}
