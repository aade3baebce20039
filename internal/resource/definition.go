package resource

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/venue-core/internal/datastore"
	"github.com/nerrad567/venue-core/internal/function"
)

// Kind is how a field value is validated and normalised before it is stored.
type Kind int

// Field kinds.
const (
	// KindText is a string, trimmed; blank becomes null.
	KindText Kind = iota

	// KindUUID is a canonical UUID string or null.
	KindUUID

	// KindBool accepts true/false, "1"/"0"/"true"/"false" and 1/0.
	KindBool

	// KindEmail is a trimmed address; blank becomes null.
	KindEmail

	// KindInt is a non-negative integer, as a number or numeric string.
	KindInt

	// KindTime is an RFC 3339 timestamp or a YYYY-MM-DD date.
	KindTime

	// KindEnum is one of Field.Options.
	KindEnum
)

// Field is one writable column of a resource.
type Field struct {
	Name     string
	Kind     Kind
	Required bool

	// Options lists the accepted values of a KindEnum field.
	Options []string

	// Validate runs after the kind check on non-null values.
	Validate func(v any) string
}

// ListFilter maps one query parameter onto a list filter.
type ListFilter struct {
	// Params are the accepted parameter names, first non-empty wins.
	Params []string
	Column string
	Op     datastore.Op
	Kind   Kind

	// SkippedBy names parameters whose presence disables this filter.
	SkippedBy []string
}

// CheckFunc runs store-backed validation after field validation passed.
// id is empty on create. It returns the problems found.
type CheckFunc func(ctx context.Context, store datastore.Store, id string, values datastore.Row) ([]string, error)

// Definition describes one table-backed function.
type Definition struct {
	// Name is the function name and URL segment.
	Name string

	// Table holds the rows. Defaults to Name.
	Table string

	// Label is the singular noun used in messages ("country").
	Label string

	Fields  []Field
	Filters []ListFilter

	// SearchColumn is matched case-insensitively by ?search=.
	SearchColumn string

	// Defaults are applied on create for fields the caller omitted.
	Defaults datastore.Row

	Check CheckFunc

	// Decorate adds computed fields to every returned row.
	Decorate func(datastore.Row) datastore.Row

	// BeforeWrite rejects a body before anything is stored. Errors are
	// reported like storage errors.
	BeforeWrite func(body function.ParsedBody) error

	// AfterWrite runs after a successful create or update with the stored
	// row and the raw body. The row it returns is the one rendered.
	AfterWrite func(ctx context.Context, store datastore.Store, row datastore.Row, body function.ParsedBody) (datastore.Row, error)
}

func (d *Definition) table() string {
	if d.Table != "" {
		return d.Table
	}
	return d.Name
}

func (d *Definition) codePrefix() string {
	return strings.ToUpper(d.Name)
}

// Validate checks body against the definition's fields.
// With partial set only the fields present in body are checked and
// required fields may be omitted.
func (d *Definition) Validate(body function.ParsedBody, partial bool) []string {
	var problems []string
	for _, f := range d.Fields {
		v, present := body[f.Name]
		if !present {
			if f.Required && !partial {
				problems = append(problems, requiredMessage(f))
			}
			continue
		}
		if msg := validateValue(f, v, partial); msg != "" {
			problems = append(problems, msg)
		}
	}
	return problems
}

// Values returns the normalised column values found in body.
// Only declared fields are copied. Body must have passed Validate.
func (d *Definition) Values(body function.ParsedBody) datastore.Row {
	values := datastore.Row{}
	for _, f := range d.Fields {
		v, present := body[f.Name]
		if !present {
			continue
		}
		values[f.Name] = normalise(f, v)
	}
	return values
}

// ApplyFilters adds the list filters found in params to q and returns the
// applied values keyed by their first parameter name.
func (d *Definition) ApplyFilters(params url.Values, q *datastore.Query) map[string]any {
	applied := map[string]any{}
	for _, lf := range d.Filters {
		raw := firstParam(params, lf.Params)
		if raw == "" || firstParam(params, lf.SkippedBy) != "" {
			continue
		}
		value, ok := filterValue(lf, raw)
		if !ok {
			continue
		}
		q.Filters = append(q.Filters, datastore.Filter{Column: lf.Column, Op: lf.Op, Value: value})
		applied[lf.Params[0]] = value
	}
	if d.SearchColumn != "" {
		if s := strings.TrimSpace(params.Get("search")); s != "" {
			q.ILike(d.SearchColumn, s)
			applied["search"] = s
		}
	}
	return applied
}

func firstParam(params url.Values, names []string) string {
	for _, n := range names {
		if v := params.Get(n); v != "" {
			return v
		}
	}
	return ""
}

func filterValue(lf ListFilter, raw string) (any, bool) {
	switch {
	case lf.Op == datastore.OpIsNull:
		b, ok := ParseBool(raw)
		return nil, ok && b
	case lf.Kind == KindBool:
		b, ok := ParseBool(raw)
		return b, ok
	case lf.Kind == KindTime:
		t, ok := parseTime(raw)
		return t, ok
	default:
		return raw, true
	}
}

func requiredMessage(f Field) string {
	return f.Name + " is required and must be a non-empty string"
}

func validateValue(f Field, v any, partial bool) string {
	if v == nil {
		if f.Required {
			if partial {
				return f.Name + " must be a non-empty string"
			}
			return requiredMessage(f)
		}
		return ""
	}

	var msg string
	switch f.Kind {
	case KindText:
		s, ok := v.(string)
		switch {
		case !ok:
			msg = f.Name + " must be a string"
		case f.Required && strings.TrimSpace(s) == "":
			if partial {
				msg = f.Name + " must be a non-empty string"
			} else {
				msg = requiredMessage(f)
			}
		}
	case KindUUID:
		s, ok := v.(string)
		s = strings.TrimSpace(s)
		if !ok || (s == "" && f.Required) || (s != "" && !isUUID(s)) {
			msg = f.Name + " must be a valid UUID"
		}
	case KindBool:
		msg = validateBool(f.Name, v)
	case KindEmail:
		s, ok := v.(string)
		switch {
		case !ok:
			msg = f.Name + " must be a string"
		case strings.TrimSpace(s) == "":
			if f.Required {
				msg = requiredMessage(f)
			}
		case !emailPattern.MatchString(strings.TrimSpace(s)):
			msg = f.Name + " must be a valid email address"
		}
	case KindInt:
		if _, ok := toInt(v); !ok {
			msg = f.Name + " must be a non-negative integer"
		}
	case KindTime:
		s, ok := v.(string)
		if !ok {
			msg = f.Name + " must be an ISO 8601 date"
		} else if _, ok := parseTime(s); !ok && strings.TrimSpace(s) != "" {
			msg = f.Name + " must be an ISO 8601 date"
		}
	case KindEnum:
		s, _ := v.(string)
		if !slices.Contains(f.Options, strings.TrimSpace(s)) {
			msg = fmt.Sprintf("%s must be one of: %s", f.Name, strings.Join(f.Options, ", "))
		}
	}
	if msg == "" && f.Validate != nil {
		msg = f.Validate(v)
	}
	return msg
}

func validateBool(name string, v any) string {
	switch val := v.(type) {
	case bool:
		return ""
	case string:
		switch strings.ToLower(val) {
		case "1", "0", "true", "false":
			return ""
		}
		return name + " string value must be '1', '0', 'true', or 'false'"
	case float64:
		if val == 0 || val == 1 {
			return ""
		}
		return name + " number value must be 1 or 0"
	default:
		return name + " must be a boolean, string ('1'/'0'/'true'/'false'), or number (1/0)"
	}
}

func normalise(f Field, v any) any {
	if v == nil {
		return nil
	}
	switch f.Kind {
	case KindText, KindEmail, KindUUID, KindEnum:
		s, _ := v.(string)
		return blankToNil(s)
	case KindBool:
		b, ok := NormalizeBoolean(v)
		if !ok {
			return nil
		}
		return b
	case KindInt:
		n, _ := toInt(v)
		return n
	case KindTime:
		s, _ := v.(string)
		t, ok := parseTime(s)
		if !ok {
			return nil
		}
		return t
	default:
		return v
	}
}

func blankToNil(s string) any {
	if t := strings.TrimSpace(s); t != "" {
		return t
	}
	return nil
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func toInt(v any) (int64, bool) {
	switch val := v.(type) {
	case float64:
		if val < 0 || val != float64(int64(val)) {
			return 0, false
		}
		return int64(val), true
	case int64:
		return val, val >= 0
	case int:
		return int64(val), val >= 0
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
