package datastore

import (
	"fmt"
	"regexp"
)

// Op is a filter operator.
type Op int

// Supported filter operators.
const (
	OpEq Op = iota
	OpIsNull
	OpGte
	OpLte
	OpILike
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpIsNull:
		return "is"
	case OpGte:
		return "gte"
	case OpLte:
		return "lte"
	case OpILike:
		return "ilike"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Filter is a single column predicate. Filters in a Query are ANDed.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Order is a sort key.
type Order struct {
	Column string
	Desc   bool
}

// Query selects rows from one table.
//
// It is a small builder deliberately limited to what both the SQL and the
// PostgREST backends can express identically.
type Query struct {
	Table   string
	Filters []Filter
	Orders  []Order
	// Limit of 0 means unbounded.
	Limit  int
	Offset int
}

// From starts a query against table.
func From(table string) *Query {
	return &Query{Table: table}
}

// Eq adds column = value.
func (q *Query) Eq(column string, value any) *Query {
	q.Filters = append(q.Filters, Filter{Column: column, Op: OpEq, Value: value})
	return q
}

// IsNull adds column IS NULL.
func (q *Query) IsNull(column string) *Query {
	q.Filters = append(q.Filters, Filter{Column: column, Op: OpIsNull})
	return q
}

// Gte adds column >= value.
func (q *Query) Gte(column string, value any) *Query {
	q.Filters = append(q.Filters, Filter{Column: column, Op: OpGte, Value: value})
	return q
}

// Lte adds column <= value.
func (q *Query) Lte(column string, value any) *Query {
	q.Filters = append(q.Filters, Filter{Column: column, Op: OpLte, Value: value})
	return q
}

// ILike adds a case-insensitive substring match on column.
func (q *Query) ILike(column, substring string) *Query {
	q.Filters = append(q.Filters, Filter{Column: column, Op: OpILike, Value: substring})
	return q
}

// OrderBy appends a sort key.
func (q *Query) OrderBy(column string, desc bool) *Query {
	q.Orders = append(q.Orders, Order{Column: column, Desc: desc})
	return q
}

// Range sets the page window.
func (q *Query) Range(offset, limit int) *Query {
	q.Offset = offset
	q.Limit = limit
	return q
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to interpolate as a table or column.
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// Validate checks every identifier and the page window.
func (q *Query) Validate() error {
	if !ValidIdentifier(q.Table) {
		return fmt.Errorf("%w: table %q", ErrInvalidQuery, q.Table)
	}
	for _, f := range q.Filters {
		if !ValidIdentifier(f.Column) {
			return fmt.Errorf("%w: column %q", ErrInvalidQuery, f.Column)
		}
		if f.Op < OpEq || f.Op > OpILike {
			return fmt.Errorf("%w: operator %s", ErrInvalidQuery, f.Op)
		}
	}
	for _, o := range q.Orders {
		if !ValidIdentifier(o.Column) {
			return fmt.Errorf("%w: order column %q", ErrInvalidQuery, o.Column)
		}
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("%w: negative range", ErrInvalidQuery)
	}
	return nil
}

func validateValues(values Row) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: no values", ErrInvalidQuery)
	}
	for col := range values {
		if !ValidIdentifier(col) {
			return fmt.Errorf("%w: column %q", ErrInvalidQuery, col)
		}
	}
	return nil
}
