// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Column kinds that need conversion before being sent to PostgreSQL.
const (
	kindPlain  = ""
	kindArray  = "array"
	kindJSON   = "json"
	kindVector = "vector"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Postgres is the Datastore backed by a PostgreSQL database. Rows are read
// with row_to_json so every column comes back without a per-table scan list.
// Table and column names are checked against information_schema before any
// statement is built.
type Postgres struct {
	db *sql.DB

	mu      sync.RWMutex
	columns map[string]map[string]string // table -> column -> kind
}

// NewPostgres creates a Postgres datastore over an open pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, columns: make(map[string]map[string]string)}
}

// Get returns the first row of table matching filters.
func (p *Postgres) Get(ctx context.Context, table string, filters ...Filter) (Row, error) {
	rows, err := p.List(ctx, table, Query{Filters: filters, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", table, ErrNotFound)
	}
	return rows[0], nil
}

// List returns the rows of table matching q.
func (p *Postgres) List(ctx context.Context, table string, q Query) ([]Row, error) {
	cols, err := p.tableColumns(ctx, table)
	if err != nil {
		return nil, &PersistenceError{Table: table, Op: "select", Err: err}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT row_to_json(t) FROM %s AS t", quote(table))

	where, args, err := whereClause(cols, q.Filters, 0)
	if err != nil {
		return nil, &PersistenceError{Table: table, Op: "select", Err: err}
	}
	b.WriteString(where)

	if q.OrderBy != "" {
		if _, ok := cols[q.OrderBy]; !ok {
			return nil, &PersistenceError{Table: table, Op: "select", Err: fmt.Errorf("unknown column %q", q.OrderBy)}
		}
		fmt.Fprintf(&b, " ORDER BY %s", quote(q.OrderBy))
		if q.Desc {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	out, err := p.queryRows(ctx, b.String(), args...)
	if err != nil {
		return nil, &PersistenceError{Table: table, Op: "select", Err: err}
	}
	return out, nil
}

// Insert stores row and returns it with generated columns filled in.
func (p *Postgres) Insert(ctx context.Context, table string, row Row) (Row, error) {
	query, args, err := p.insertSQL(ctx, table, row)
	if err != nil {
		return nil, &PersistenceError{Table: table, Op: "insert", Err: err}
	}
	query += " RETURNING row_to_json(t)"

	out, err := p.queryOne(ctx, query, args...)
	if err != nil {
		return nil, &PersistenceError{Table: table, Op: "insert", Err: err}
	}
	return out, nil
}

// Upsert inserts row or, on a conflict over the given columns, updates only
// the columns present in row.
func (p *Postgres) Upsert(ctx context.Context, table string, row Row, conflict ...string) (Row, error) {
	if len(conflict) == 0 {
		return nil, &PersistenceError{Table: table, Op: "upsert", Err: errors.New("no conflict columns")}
	}

	query, args, err := p.insertSQL(ctx, table, row)
	if err != nil {
		return nil, &PersistenceError{Table: table, Op: "upsert", Err: err}
	}

	isConflict := make(map[string]bool, len(conflict))
	target := make([]string, len(conflict))
	for i, c := range conflict {
		if _, ok := row[c]; !ok {
			return nil, &PersistenceError{Table: table, Op: "upsert", Err: fmt.Errorf("conflict column %q not in row", c)}
		}
		isConflict[c] = true
		target[i] = quote(c)
	}

	var sets []string
	for _, col := range sortedKeys(row) {
		if !isConflict[col] {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", quote(col), quote(col)))
		}
	}
	if len(sets) == 0 {
		// Nothing to merge; still touch the row so RETURNING yields it.
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", target[0], target[0]))
	}

	query += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s RETURNING row_to_json(t)",
		strings.Join(target, ", "), strings.Join(sets, ", "))

	out, err := p.queryOne(ctx, query, args...)
	if err != nil {
		return nil, &PersistenceError{Table: table, Op: "upsert", Err: err}
	}
	return out, nil
}

// Update sets values on all rows matching filters. At least one filter is
// required.
func (p *Postgres) Update(ctx context.Context, table string, values Row, filters ...Filter) ([]Row, error) {
	if len(filters) == 0 {
		return nil, &PersistenceError{Table: table, Op: "update", Err: errors.New("refusing to update without a filter")}
	}
	if len(values) == 0 {
		return nil, &PersistenceError{Table: table, Op: "update", Err: errors.New("no values")}
	}

	cols, err := p.tableColumns(ctx, table)
	if err != nil {
		return nil, &PersistenceError{Table: table, Op: "update", Err: err}
	}

	var sets []string
	var args []any
	for _, col := range sortedKeys(values) {
		kind, ok := cols[col]
		if !ok {
			return nil, &PersistenceError{Table: table, Op: "update", Err: fmt.Errorf("unknown column %q", col)}
		}
		v, err := toSQL(kind, values[col])
		if err != nil {
			return nil, &PersistenceError{Table: table, Op: "update", Err: fmt.Errorf("column %s: %w", col, err)}
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", quote(col), len(args)))
	}

	where, whereArgs, err := whereClause(cols, filters, len(args))
	if err != nil {
		return nil, &PersistenceError{Table: table, Op: "update", Err: err}
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s AS t SET %s%s RETURNING row_to_json(t)",
		quote(table), strings.Join(sets, ", "), where)

	out, err := p.queryRows(ctx, query, args...)
	if err != nil {
		return nil, &PersistenceError{Table: table, Op: "update", Err: err}
	}
	return out, nil
}

// Match calls the set-returning SQL function fn with named arguments.
// Vector arguments may be []float32, []float64, []any or the text form.
func (p *Postgres) Match(ctx context.Context, fn string, args Row) ([]Row, error) {
	if !identPattern.MatchString(fn) {
		return nil, &PersistenceError{Table: fn, Op: "match", Err: fmt.Errorf("invalid function name %q", fn)}
	}

	var params []string
	var values []any
	for _, name := range sortedKeys(args) {
		if !identPattern.MatchString(name) {
			return nil, &PersistenceError{Table: fn, Op: "match", Err: fmt.Errorf("invalid argument name %q", name)}
		}
		v, err := matchArg(args[name])
		if err != nil {
			return nil, &PersistenceError{Table: fn, Op: "match", Err: fmt.Errorf("argument %s: %w", name, err)}
		}
		values = append(values, v)
		params = append(params, fmt.Sprintf("%s => $%d", name, len(values)))
	}

	query := fmt.Sprintf("SELECT row_to_json(r) FROM %s(%s) AS r", quote(fn), strings.Join(params, ", "))
	out, err := p.queryRows(ctx, query, values...)
	if err != nil {
		return nil, &PersistenceError{Table: fn, Op: "match", Err: err}
	}
	return out, nil
}

func (p *Postgres) insertSQL(ctx context.Context, table string, row Row) (string, []any, error) {
	cols, err := p.tableColumns(ctx, table)
	if err != nil {
		return "", nil, err
	}
	if len(row) == 0 {
		return fmt.Sprintf("INSERT INTO %s AS t DEFAULT VALUES", quote(table)), nil, nil
	}

	names := make([]string, 0, len(row))
	holders := make([]string, 0, len(row))
	args := make([]any, 0, len(row))
	for _, col := range sortedKeys(row) {
		kind, ok := cols[col]
		if !ok {
			return "", nil, fmt.Errorf("unknown column %q", col)
		}
		v, err := toSQL(kind, row[col])
		if err != nil {
			return "", nil, fmt.Errorf("column %s: %w", col, err)
		}
		args = append(args, v)
		names = append(names, quote(col))
		holders = append(holders, fmt.Sprintf("$%d", len(args)))
	}

	return fmt.Sprintf("INSERT INTO %s AS t (%s) VALUES (%s)",
		quote(table), strings.Join(names, ", "), strings.Join(holders, ", ")), args, nil
}

// tableColumns loads and caches the column kinds of table. An empty result
// means the table does not exist.
func (p *Postgres) tableColumns(ctx context.Context, table string) (map[string]string, error) {
	p.mu.RLock()
	cols, ok := p.columns[table]
	p.mu.RUnlock()
	if ok {
		return cols, nil
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT column_name, data_type, udt_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
	`, table)
	if err != nil {
		return nil, fmt.Errorf("load columns: %w", err)
	}
	defer rows.Close()

	cols = make(map[string]string)
	for rows.Next() {
		var name, dataType, udt string
		if err := rows.Scan(&name, &dataType, &udt); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		switch {
		case dataType == "ARRAY":
			cols[name] = kindArray
		case dataType == "json" || dataType == "jsonb":
			cols[name] = kindJSON
		case udt == "vector":
			cols[name] = kindVector
		default:
			cols[name] = kindPlain
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load columns: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	p.mu.Lock()
	p.columns[table] = cols
	p.mu.Unlock()
	return cols, nil
}

func (p *Postgres) queryRows(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var row Row
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (p *Postgres) queryOne(ctx context.Context, query string, args ...any) (Row, error) {
	var raw []byte
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return nil, err
	}
	var row Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return row, nil
}

// whereClause renders filters with placeholders numbered after offset.
func whereClause(cols map[string]string, filters []Filter, offset int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		kind, ok := cols[f.Field]
		if !ok {
			return "", nil, fmt.Errorf("unknown column %q", f.Field)
		}
		n := offset + len(args) + 1
		col := quote(f.Field)

		switch f.Op {
		case OpEq:
			v, err := toSQL(kind, f.Value)
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, fmt.Sprintf("%s = $%d", col, n))
			args = append(args, v)
		case OpIn:
			conds = append(conds, fmt.Sprintf("%s = ANY($%d)", col, n))
			args = append(args, pq.Array(stringList(f.Value)))
		case OpGte:
			conds = append(conds, fmt.Sprintf("%s >= $%d", col, n))
			args = append(args, f.Value)
		case OpILike:
			conds = append(conds, fmt.Sprintf("%s ILIKE $%d", col, n))
			args = append(args, f.Value)
		case OpContains:
			conds = append(conds, fmt.Sprintf("%s @> $%d", col, n))
			args = append(args, pq.Array(stringList(f.Value)))
		default:
			return "", nil, fmt.Errorf("unsupported filter op %d", f.Op)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// toSQL converts a row value into a driver argument for a column of kind.
func toSQL(kind string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch kind {
	case kindArray:
		return pq.Array(stringList(v)), nil
	case kindVector:
		return vectorArg(v)
	case kindJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}

	switch v.(type) {
	case map[string]any, Row, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
	return v, nil
}

func matchArg(v any) (any, error) {
	switch v.(type) {
	case []float32, []float64, []any:
		return vectorArg(v)
	}
	return v, nil
}

func vectorArg(v any) (any, error) {
	switch x := v.(type) {
	case string, pgvector.Vector:
		return x, nil
	case []float32:
		return pgvector.NewVector(x), nil
	case []float64:
		f := make([]float32, len(x))
		for i, n := range x {
			f[i] = float32(n)
		}
		return pgvector.NewVector(f), nil
	case []any:
		f := make([]float32, len(x))
		for i, n := range x {
			num, ok := n.(float64)
			if !ok {
				return nil, fmt.Errorf("vector element %d is %T", i, n)
			}
			f[i] = float32(num)
		}
		return pgvector.NewVector(f), nil
	}
	return nil, fmt.Errorf("cannot use %T as a vector", v)
}

func stringList(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return []string{x}
	}
	return nil
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func sortedKeys(row Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
