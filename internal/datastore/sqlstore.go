package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SQLStore implements Store over a sqlx connection (SQLite or Postgres).
//
// Queries are written with ? placeholders and rebound for the driver.
// Inserts without an "id" column get a random UUID.
type SQLStore struct {
	db    *sqlx.DB
	newID func() string
}

// NewSQLStore wraps an open sqlx connection.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, newID: uuid.NewString}
}

// Select implements Store.
func (s *SQLStore) Select(ctx context.Context, q *Query) ([]Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(q.Table)
	args := s.writeWhere(&b, q.Filters)

	if len(q.Orders) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range q.Orders {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(o.Column)
			if o.Desc {
				b.WriteString(" DESC")
			} else {
				b.WriteString(" ASC")
			}
		}
	}

	switch {
	case q.Limit > 0:
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
		if q.Offset > 0 {
			b.WriteString(" OFFSET ?")
			args = append(args, q.Offset)
		}
	case q.Offset > 0:
		if s.db.DriverName() == "postgres" {
			b.WriteString(" OFFSET ?")
		} else {
			b.WriteString(" LIMIT -1 OFFSET ?")
		}
		args = append(args, q.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", q.Table, err)
	}
	return scanRows(rows, q.Table)
}

// Count implements Store.
func (s *SQLStore) Count(ctx context.Context, q *Query) (int, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}

	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(q.Table)
	args := s.writeWhere(&b, q.Filters)

	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(b.String()), args...); err != nil {
		return 0, fmt.Errorf("counting %s: %w", q.Table, err)
	}
	return n, nil
}

// Insert implements Store.
func (s *SQLStore) Insert(ctx context.Context, table string, values Row) (Row, error) {
	if !ValidIdentifier(table) {
		return nil, fmt.Errorf("%w: table %q", ErrInvalidQuery, table)
	}
	if err := validateValues(values); err != nil {
		return nil, err
	}

	record := make(Row, len(values)+1)
	for k, v := range values {
		record[k] = v
	}
	if id, ok := record["id"]; !ok || id == nil || id == "" {
		record["id"] = s.newID()
	}

	cols := sortedColumns(record)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = bindValue(record[c])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", table, classifySQLError(err))
	}
	out, err := scanRows(rows, table)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("inserting into %s: no row returned", table)
	}
	return out[0], nil
}

// Update implements Store. An update without filters is rejected.
func (s *SQLStore) Update(ctx context.Context, q *Query, values Row) ([]Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := validateValues(values); err != nil {
		return nil, err
	}
	if len(q.Filters) == 0 {
		return nil, fmt.Errorf("%w: update of %s without filters", ErrInvalidQuery, q.Table)
	}

	cols := sortedColumns(values)
	args := make([]any, 0, len(cols)+len(q.Filters))

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(q.Table)
	b.WriteString(" SET ")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c)
		b.WriteString(" = ?")
		args = append(args, bindValue(values[c]))
	}
	args = append(args, s.writeWhere(&b, q.Filters)...)
	b.WriteString(" RETURNING *")

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("updating %s: %w", q.Table, classifySQLError(err))
	}
	return scanRows(rows, q.Table)
}

// HealthCheck implements Store.
func (s *SQLStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("datastore health check failed: %w", err)
	}
	return nil
}

func (s *SQLStore) writeWhere(b *strings.Builder, filters []Filter) []any {
	if len(filters) == 0 {
		return nil
	}
	like := "LIKE"
	if s.db.DriverName() == "postgres" {
		like = "ILIKE"
	}

	args := make([]any, 0, len(filters))
	b.WriteString(" WHERE ")
	for i, f := range filters {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(f.Column)
		switch f.Op {
		case OpEq:
			b.WriteString(" = ?")
			args = append(args, bindValue(f.Value))
		case OpIsNull:
			b.WriteString(" IS NULL")
		case OpGte:
			b.WriteString(" >= ?")
			args = append(args, bindValue(f.Value))
		case OpLte:
			b.WriteString(" <= ?")
			args = append(args, bindValue(f.Value))
		case OpILike:
			b.WriteString(" " + like + ` ? ESCAPE '\'`)
			args = append(args, "%"+escapeLike(fmt.Sprint(f.Value))+"%")
		}
	}
	return args
}

func scanRows(rows *sqlx.Rows, table string) ([]Row, error) {
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out = append(out, Row(m))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", table, err)
	}
	return out, nil
}

// bindValue converts JSON-decoded values into driver arguments.
func bindValue(v any) any {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
		return val
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return v
	}
}

func sortedColumns(r Row) []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func classifySQLError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value") {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
