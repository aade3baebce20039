package auth

import (
	"github.com/nerrad567/venue-core/internal/datastore"
)

// AuthType is the kind of caller a request was authenticated as.
type AuthType string

const (
	// AuthPOS is a point-of-sale device that proved possession of its key.
	AuthPOS AuthType = "pos"

	// AuthUser is a caller presenting an Authorization header.
	AuthUser AuthType = "user"

	// AuthAnon is a caller presenting no credentials at all.
	AuthAnon AuthType = "anon"
)

// Flavor is the response style negotiated for a request.
type Flavor string

const (
	// FlavorAPI requests JSON responses.
	FlavorAPI Flavor = "api"

	// FlavorWeb requests HTML-flavoured responses.
	FlavorWeb Flavor = "web"
)

// Principal roles that are not carried in a session token.
const (
	RoleAnon        = "anon"
	RolePOS         = "pos"
	RoleAdmin       = "admin"
	RoleServiceRole = "service_role"
)

// Principal identifies who a Client acts for.
type Principal struct {
	// ID is the user id (token subject) or the POS device id. Empty for anon.
	ID string `json:"id,omitempty"`

	// Role is the database role the client runs as.
	Role string `json:"role"`
}

// Client is a capability handle: a Store bound to one caller's credentials.
//
// With the postgrest driver the embedded Store sends the caller's token so
// row-level security applies. With the SQL drivers the Store is shared and
// Principal drives the permission checks.
type Client struct {
	datastore.Store
	Principal Principal
}

// AuthContext is the result of authenticating one request.
// It is built once, never mutated, and never persisted.
type AuthContext struct {
	Client *Client
	Type   AuthType
	Flavor Flavor
}
