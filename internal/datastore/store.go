package datastore

import (
	"context"
	"fmt"
	"time"
)

// Row is one record keyed by column name. Values are JSON-friendly:
// string, int64, float64, bool, time.Time or nil.
type Row map[string]any

// String returns the column as a string, or "" if absent, null or not a string.
func (r Row) String(column string) string {
	if s, ok := r[column].(string); ok {
		return s
	}
	return ""
}

// Int returns the column as an int64 and whether it held a number.
func (r Row) Int(column string) (int64, bool) {
	switch v := r[column].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Bool returns the column as a bool. SQLite integers 0/1 are accepted.
func (r Row) Bool(column string) bool {
	switch v := r[column].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case string:
		return v == "true" || v == "t" || v == "1"
	}
	return false
}

// Time returns the column as a time.Time. RFC 3339 strings are parsed.
func (r Row) Time(column string) (time.Time, bool) {
	switch v := r[column].(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Store is the relational backing store every resource handler talks to.
//
// Implementations are safe for concurrent use. The store applies whatever
// row-level security its backend enforces for the principal it was built for.
type Store interface {
	// Select returns the rows matching q in order.
	Select(ctx context.Context, q *Query) ([]Row, error)

	// Count returns the number of rows matching q's filters, ignoring its range.
	Count(ctx context.Context, q *Query) (int, error)

	// Insert writes one row and returns it as stored.
	Insert(ctx context.Context, table string, values Row) (Row, error)

	// Update sets values on every row matching q's filters and returns the updated rows.
	Update(ctx context.Context, q *Query, values Row) ([]Row, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}

// SelectOne returns the single row matching q.
//
// Returns:
//   - Row: the matching row
//   - error: ErrNotFound if none matched, ErrMultipleRows if several did
func SelectOne(ctx context.Context, s Store, q *Query) (Row, error) {
	q.Limit = 2
	rows, err := s.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, fmt.Errorf("%s: %w", q.Table, ErrNotFound)
	case 1:
		return rows[0], nil
	default:
		return nil, fmt.Errorf("%s: %w", q.Table, ErrMultipleRows)
	}
}

// UpdateOne applies values to the single row matching q.
// It returns ErrNotFound when nothing was updated.
func UpdateOne(ctx context.Context, s Store, q *Query, values Row) (Row, error) {
	rows, err := s.Update(ctx, q, values)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", q.Table, ErrNotFound)
	}
	return rows[0], nil
}
