package resource

import (
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/venue-core/internal/datastore"
	"github.com/nerrad567/venue-core/internal/function"
)

func testDefinition() *Definition {
	return &Definition{
		Name:  "widgets",
		Label: "widget",
		Fields: []Field{
			{Name: "name", Kind: KindText, Required: true},
			{Name: "owner_id", Kind: KindUUID},
			{Name: "enabled", Kind: KindBool},
			{Name: "email", Kind: KindEmail},
			{Name: "max", Kind: KindInt},
			{Name: "due", Kind: KindTime},
			{Name: "size", Kind: KindEnum, Options: []string{"s", "m", "l"}},
		},
		Filters: []ListFilter{
			{Params: []string{"enabled"}, Column: "enabled", Op: datastore.OpEq, Kind: KindBool},
			{Params: []string{"due"}, Column: "due", Op: datastore.OpEq, Kind: KindTime},
			{Params: []string{"due_from", "dueFrom"}, Column: "due", Op: datastore.OpGte, Kind: KindTime, SkippedBy: []string{"due"}},
			{Params: []string{"orphaned"}, Column: "owner_id", Op: datastore.OpIsNull},
		},
		SearchColumn: "name",
	}
}

func TestDefinition_Validate(t *testing.T) {
	def := testDefinition()

	tests := []struct {
		name    string
		body    function.ParsedBody
		partial bool
		want    []string
	}{
		{"valid", function.ParsedBody{"name": "A", "enabled": "true", "max": "3", "due": "2026-05-01", "size": "m"}, false, nil},
		{"missing required", function.ParsedBody{}, false, []string{"name is required and must be a non-empty string"}},
		{"partial may omit required", function.ParsedBody{"max": float64(2)}, true, nil},
		{"partial blank required", function.ParsedBody{"name": " "}, true, []string{"name must be a non-empty string"}},
		{"null required", function.ParsedBody{"name": nil}, false, []string{"name is required and must be a non-empty string"}},
		{"name not string", function.ParsedBody{"name": float64(4)}, false, []string{"name must be a string"}},
		{"short uuid", function.ParsedBody{"name": "A", "owner_id": "1234"}, false, []string{"owner_id must be a valid UUID"}},
		{"uuid without dashes", function.ParsedBody{"name": "A", "owner_id": "7b1e2c1a9d0e4c558a352d4f4b7c9e10"}, false, []string{"owner_id must be a valid UUID"}},
		{"blank uuid clears", function.ParsedBody{"name": "A", "owner_id": ""}, false, nil},
		{"bool object", function.ParsedBody{"name": "A", "enabled": map[string]any{}}, false,
			[]string{"enabled must be a boolean, string ('1'/'0'/'true'/'false'), or number (1/0)"}},
		{"bad email", function.ParsedBody{"name": "A", "email": "nobody"}, false, []string{"email must be a valid email address"}},
		{"blank email", function.ParsedBody{"name": "A", "email": "  "}, false, nil},
		{"negative int", function.ParsedBody{"name": "A", "max": float64(-1)}, false, []string{"max must be a non-negative integer"}},
		{"fractional int", function.ParsedBody{"name": "A", "max": 1.5}, false, []string{"max must be a non-negative integer"}},
		{"bad time", function.ParsedBody{"name": "A", "due": "tomorrow"}, false, []string{"due must be an ISO 8601 date"}},
		{"bad enum", function.ParsedBody{"name": "A", "size": "xl"}, false, []string{"size must be one of: s, m, l"}},
		{"several", function.ParsedBody{"max": "x", "size": "xl"}, false, []string{
			"name is required and must be a non-empty string",
			"max must be a non-negative integer",
			"size must be one of: s, m, l",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := def.Validate(tt.body, tt.partial)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Validate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefinition_CustomValidator(t *testing.T) {
	def := &Definition{Fields: []Field{{
		Name: "code",
		Kind: KindText,
		Validate: func(v any) string {
			if v.(string) == "bad" {
				return "code is reserved"
			}
			return ""
		},
	}}}

	if got := def.Validate(function.ParsedBody{"code": "bad"}, false); len(got) != 1 || got[0] != "code is reserved" {
		t.Errorf("Validate() = %v", got)
	}
	if got := def.Validate(function.ParsedBody{"code": nil}, false); got != nil {
		t.Errorf("Validate(nil) = %v, want no problems", got)
	}
}

func TestDefinition_Values(t *testing.T) {
	def := testDefinition()
	got := def.Values(function.ParsedBody{
		"name":     "  Widget  ",
		"owner_id": "",
		"enabled":  "1",
		"email":    " a@b.co ",
		"max":      "12",
		"due":      "2026-05-01T10:00:00+02:00",
		"size":     "l",
		"extra":    "dropped",
	})

	want := datastore.Row{
		"name":     "Widget",
		"owner_id": nil,
		"enabled":  true,
		"email":    "a@b.co",
		"max":      int64(12),
		"due":      time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		"size":     "l",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Values() = %#v\nwant %#v", got, want)
	}
}

func TestDefinition_ApplyFilters(t *testing.T) {
	def := testDefinition()
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		query       string
		wantFilters []datastore.Filter
		wantApplied map[string]any
	}{
		{
			name:        "none",
			query:       "",
			wantApplied: map[string]any{},
		},
		{
			name:        "bool filter",
			query:       "enabled=false",
			wantFilters: []datastore.Filter{{Column: "enabled", Op: datastore.OpEq, Value: false}},
			wantApplied: map[string]any{"enabled": false},
		},
		{
			name:        "unparseable bool ignored",
			query:       "enabled=perhaps",
			wantApplied: map[string]any{},
		},
		{
			name:        "alias param",
			query:       "dueFrom=2026-05-01",
			wantFilters: []datastore.Filter{{Column: "due", Op: datastore.OpGte, Value: day}},
			wantApplied: map[string]any{"due_from": day},
		},
		{
			name:        "exact wins over range",
			query:       "due=2026-05-01&due_from=2026-01-01",
			wantFilters: []datastore.Filter{{Column: "due", Op: datastore.OpEq, Value: day}},
			wantApplied: map[string]any{"due": day},
		},
		{
			name:        "null filter",
			query:       "orphaned=true",
			wantFilters: []datastore.Filter{{Column: "owner_id", Op: datastore.OpIsNull}},
			wantApplied: map[string]any{"orphaned": nil},
		},
		{
			name:        "null filter off",
			query:       "orphaned=false",
			wantApplied: map[string]any{},
		},
		{
			name:        "search",
			query:       "search=+gear+",
			wantFilters: []datastore.Filter{{Column: "name", Op: datastore.OpILike, Value: "gear"}},
			wantApplied: map[string]any{"search": "gear"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			q := datastore.From("widgets")
			applied := def.ApplyFilters(params, q)

			if len(q.Filters) != len(tt.wantFilters) {
				t.Fatalf("filters = %+v, want %+v", q.Filters, tt.wantFilters)
			}
			for i, f := range q.Filters {
				if !reflect.DeepEqual(f, tt.wantFilters[i]) {
					t.Errorf("filter[%d] = %+v, want %+v", i, f, tt.wantFilters[i])
				}
			}
			if !reflect.DeepEqual(applied, tt.wantApplied) {
				t.Errorf("applied = %v, want %v", applied, tt.wantApplied)
			}
		})
	}
}
