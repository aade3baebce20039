package auth

import (
	"errors"
	"testing"

	"github.com/nerrad567/venue-core/internal/datastore"
)

func TestGrants(t *testing.T) {
	tests := []struct {
		name          string
		grantResource string
		grantAction   Action
		action        Action
		resource      string
		want          bool
	}{
		{"exact", "banners", ActionUpdate, ActionUpdate, "banners", true},
		{"other action", "banners", ActionRead, ActionDelete, "banners", false},
		{"other table", "banners", ActionAny, ActionRead, "contacts", false},
		{"any action", "banners", ActionAny, ActionDelete, "banners", true},
		{"any table", "*", ActionCreate, ActionCreate, "contacts", true},
		{"all", "*", ActionAny, ActionDelete, "points_of_sale", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Grants(tt.grantResource, tt.grantAction, tt.action, tt.resource); got != tt.want {
				t.Errorf("Grants() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStorePolicy(t *testing.T) {
	store := openTestStore(t)
	ctx := t.Context()

	grants := []datastore.Row{
		{"role": "editor", "resource": "banners", "action": "u"},
		{"role": "editor", "resource": "contacts", "action": "*"},
		{"role": RolePOS, "resource": "points_of_sale", "action": "r"},
	}
	for _, g := range grants {
		if _, err := store.Insert(ctx, tableRolePermissions, g); err != nil {
			t.Fatalf("seeding grant: %v", err)
		}
	}
	policy := NewStorePolicy(store)

	tests := []struct {
		name     string
		client   *Client
		action   Action
		resource string
		allowed  bool
	}{
		{"admin seeded wildcard", &Client{Principal: Principal{Role: RoleAdmin}}, ActionDelete, "banners", true},
		{"service role seeded wildcard", &Client{Principal: Principal{Role: RoleServiceRole}}, ActionCreate, "countries", true},
		{"editor update banners", &Client{Principal: Principal{Role: "editor"}}, ActionUpdate, "banners", true},
		{"editor delete banners", &Client{Principal: Principal{Role: "editor"}}, ActionDelete, "banners", false},
		{"editor anything on contacts", &Client{Principal: Principal{Role: "editor"}}, ActionDelete, "contacts", true},
		{"pos read own registry", &Client{Principal: Principal{Role: RolePOS}}, ActionRead, "points_of_sale", true},
		{"pos create banners", &Client{Principal: Principal{Role: RolePOS}}, ActionCreate, "banners", false},
		{"anon", &Client{Principal: Principal{Role: RoleAnon}}, ActionCreate, "countries", false},
		{"nil client is anon", nil, ActionRead, "countries", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Check(ctx, tt.client, tt.action, tt.resource)
			if tt.allowed {
				if err != nil {
					t.Errorf("Check() error = %v, want allowed", err)
				}
				return
			}
			if !errors.Is(err, ErrForbidden) {
				t.Errorf("Check() error = %v, want ErrForbidden", err)
			}
		})
	}
}

func TestAllowAll(t *testing.T) {
	if err := (AllowAll{}).Check(t.Context(), nil, ActionDelete, "anything"); err != nil {
		t.Errorf("AllowAll.Check() error = %v", err)
	}
}

func TestActionVerb(t *testing.T) {
	if ActionCreate.Verb() != "insert" || ActionDelete.Verb() != "delete" || Action("x").Verb() != "x" {
		t.Error("unexpected verb mapping")
	}
}
