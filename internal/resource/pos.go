package resource

import (
	"context"
	"errors"
	"strings"

	"github.com/nerrad567/venue-core/internal/auth"
	"github.com/nerrad567/venue-core/internal/crypto"
	"github.com/nerrad567/venue-core/internal/datastore"
	"github.com/nerrad567/venue-core/internal/function"
)

const (
	tablePointsOfSale = "points_of_sale"
	colPublicKey      = "public_key"
)

// POS device statuses.
const (
	POSStatusActive   = "active"
	POSStatusInactive = "inactive"
)

// pointsOfSaleDefinition is the admin view of registered POS devices.
func pointsOfSaleDefinition() *Definition {
	return &Definition{
		Name:  tablePointsOfSale,
		Label: "point of sale",
		Fields: []Field{
			{Name: "name", Kind: KindText, Required: true},
			{Name: "status", Kind: KindEnum, Options: []string{POSStatusActive, POSStatusInactive}},
			{Name: "disabled_reason", Kind: KindText},
			{Name: "agent_id", Kind: KindText},
			{Name: colPublicKey, Kind: KindText, Validate: validatePublicKey},
		},
		Filters: []ListFilter{
			{Params: []string{"status"}, Column: "status", Op: datastore.OpEq},
			{Params: []string{"unconfigured"}, Column: colPublicKey, Op: datastore.OpIsNull},
			{Params: []string{"agent_id"}, Column: "agent_id", Op: datastore.OpEq},
		},
		SearchColumn: "name",
		Defaults:     datastore.Row{"status": POSStatusInactive},
	}
}

func validatePublicKey(v any) string {
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return ""
	}
	if _, err := crypto.NewVerifier(s); err != nil {
		return "public_key must be a base64 encoded RSA public key"
	}
	return ""
}

// POSSelf lets an authenticated POS device read its own registration.
// Every other caller is refused with 403.
type POSSelf struct{}

// Read implements function.Reader.
func (POSSelf) Read(ctx context.Context, req *function.Request) (*function.Response, error) {
	if req.Auth == nil || req.Auth.Type != auth.AuthPOS || req.Auth.Client == nil {
		return nil, function.Forbidden("POS authentication required")
	}
	client := req.Auth.Client

	q := datastore.From(tablePointsOfSale).Eq(colID, client.Principal.ID).IsNull(colDeletedAt)
	row, err := datastore.SelectOne(ctx, client, q)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil, function.NotFound("Point of sale not found").WithCause(err)
		}
		return nil, errorCode("POS", opGet, "Error fetching point of sale", err)
	}
	return function.Success(row), nil
}
