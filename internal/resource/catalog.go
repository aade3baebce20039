package resource

import (
	"context"
	"fmt"

	"github.com/nerrad567/venue-core/internal/datastore"
	"github.com/nerrad567/venue-core/internal/function"
	"github.com/nerrad567/venue-core/internal/storage"
)

// Function is one deployable function: a name and its two handlers.
type Function struct {
	Name string
	API  function.Handler
	Web  function.Handler
}

// POSFunction is the name of the POS self endpoint.
const POSFunction = "pos"

// Definitions returns the table-backed functions. objects stores banner
// images and may be nil.
func Definitions(objects storage.ObjectStorage, deps Deps) []*Definition {
	deps = deps.withDefaults()
	return []*Definition{
		{
			Name:         "countries",
			Label:        "country",
			Fields:       []Field{{Name: "name", Kind: KindText, Required: true}},
			SearchColumn: "name",
		},
		{
			Name:  "regions",
			Label: "region",
			Fields: []Field{
				{Name: "name", Kind: KindText, Required: true},
				{Name: "country_id", Kind: KindUUID},
			},
			Filters:      []ListFilter{{Params: []string{"country_id"}, Column: "country_id", Op: datastore.OpEq}},
			SearchColumn: "name",
			Check:        referenceCheck("country_id", "countries", "country", false),
		},
		{
			Name:  "event_types",
			Label: "event type",
			Fields: []Field{
				{Name: "name", Kind: KindText, Required: true},
				{Name: "is_active", Kind: KindBool},
			},
			Filters:      []ListFilter{{Params: []string{"is_active"}, Column: "is_active", Op: datastore.OpEq, Kind: KindBool}},
			SearchColumn: "name",
			Defaults:     datastore.Row{"is_active": true},
		},
		{
			Name:  "venue_categories",
			Label: "venue category",
			Fields: []Field{
				{Name: "name", Kind: KindText, Required: true},
				{Name: "parent_id", Kind: KindUUID},
			},
			Filters:      []ListFilter{{Params: []string{"parent_id"}, Column: "parent_id", Op: datastore.OpEq}},
			SearchColumn: "name",
			Check:        referenceCheck("parent_id", "venue_categories", "venue category", true),
		},
		{
			Name:         "news_categories",
			Label:        "news category",
			Fields:       []Field{{Name: "name", Kind: KindText, Required: true}},
			SearchColumn: "name",
		},
		{
			Name:         "contract_types",
			Label:        "contract type",
			Fields:       []Field{{Name: "name", Kind: KindText, Required: true}},
			SearchColumn: "name",
		},
		{
			Name:         "service_categories",
			Label:        "service category",
			Fields:       []Field{{Name: "name", Kind: KindText, Required: true}},
			SearchColumn: "name",
		},
		{
			Name:  "contacts",
			Label: "contact",
			Fields: []Field{
				{Name: "first_name", Kind: KindText, Required: true},
				{Name: "last_name", Kind: KindText, Required: true},
				{Name: "email", Kind: KindEmail},
				{Name: "phone_no", Kind: KindText},
				{Name: "type", Kind: KindText},
			},
			Filters:      []ListFilter{{Params: []string{"type"}, Column: "type", Op: datastore.OpEq}},
			SearchColumn: "last_name",
		},
		bannersDefinition(objects, deps.Now),
		pointsOfSaleDefinition(),
	}
}

// Catalog returns every function venuecore serves: the table-backed
// resources, the banner counters and the POS self endpoint.
func Catalog(objects storage.ObjectStorage, deps Deps) []Function {
	deps = deps.withDefaults()

	var fns []Function
	for _, def := range Definitions(objects, deps) {
		api := NewCollection(def, deps)
		fns = append(fns, Function{Name: def.Name, API: api, Web: NewWebCollection(api)})
	}
	for _, c := range []Counter{ClicksCounter, DisplaysCounter} {
		h := NewCounterHandler(c, objects, deps)
		fns = append(fns, Function{Name: c.Function, API: h, Web: h})
	}
	fns = append(fns, Function{Name: POSFunction, API: POSSelf{}, Web: POSSelf{}})
	return fns
}

// referenceCheck verifies that column, when set, names a live row of table.
// With noSelf set a row may not reference itself.
func referenceCheck(column, table, label string, noSelf bool) CheckFunc {
	return func(ctx context.Context, store datastore.Store, id string, values datastore.Row) ([]string, error) {
		ref, _ := values[column].(string)
		if ref == "" {
			return nil, nil
		}
		if noSelf && ref == id {
			return []string{fmt.Sprintf("%s cannot reference the %s itself", column, label)}, nil
		}
		n, err := store.Count(ctx, datastore.From(table).Eq(colID, ref).IsNull(colDeletedAt))
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", column, err)
		}
		if n == 0 {
			return []string{fmt.Sprintf("%s does not reference an existing %s", column, label)}, nil
		}
		return nil, nil
	}
}
