// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store persists and reads the rows the AI routes work on. Rows are
// schemaless maps so that whole database records can be handed to prompt
// templates unchanged; typed views are obtained with Decode.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no row matches.
var ErrNotFound = errors.New("record not found")

// PersistenceError wraps a failed datastore operation.
type PersistenceError struct {
	Table string
	Op    string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Row is a single record keyed by column name.
type Row map[string]any

// String returns the column as a string, or "" when absent or not a string.
func (r Row) String(col string) string {
	s, _ := r[col].(string)
	return s
}

// Float returns a numeric column as float64, or 0.
func (r Row) Float(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// ID returns the row's "id" column.
func (r Row) ID() string { return r.String("id") }

// Op is a filter comparison.
type Op int

const (
	OpEq Op = iota
	OpIn
	OpGte
	OpILike
	OpContains
)

// Filter restricts a read or update to matching rows.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Eq matches rows whose field equals v.
func Eq(field string, v any) Filter { return Filter{Field: field, Op: OpEq, Value: v} }

// ByID matches the row with the given primary key.
func ByID(id string) Filter { return Eq("id", id) }

// In matches rows whose field is one of values.
func In(field string, values []string) Filter { return Filter{Field: field, Op: OpIn, Value: values} }

// Gte matches rows whose field is greater than or equal to v.
func Gte(field string, v any) Filter { return Filter{Field: field, Op: OpGte, Value: v} }

// ILike matches a case-insensitive SQL LIKE pattern.
func ILike(field, pattern string) Filter { return Filter{Field: field, Op: OpILike, Value: pattern} }

// Contains matches array columns holding every one of values.
func Contains(field string, values []string) Filter {
	return Filter{Field: field, Op: OpContains, Value: values}
}

// Query describes a list read.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Datastore is the persistence boundary used by the orchestrator and the
// HTTP handlers. Implementations return stored rows including generated
// columns (id, created_at).
type Datastore interface {
	// Get returns the first row matching all filters, or ErrNotFound.
	Get(ctx context.Context, table string, filters ...Filter) (Row, error)
	List(ctx context.Context, table string, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	// Upsert inserts row, or merges its columns into the existing row that
	// has the same values in the conflict columns.
	Upsert(ctx context.Context, table string, row Row, conflict ...string) (Row, error)
	// Update sets values on every matching row and returns the updated rows.
	Update(ctx context.Context, table string, values Row, filters ...Filter) ([]Row, error)
	// Match calls a vector-similarity function and returns its rows.
	Match(ctx context.Context, fn string, args Row) ([]Row, error)
}

// Decode converts a row into a typed value through its JSON form.
func Decode[T any](row Row) (T, error) {
	var out T
	data, err := json.Marshal(row)
	if err != nil {
		return out, fmt.Errorf("store decode: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("store decode: %w", err)
	}
	return out, nil
}

// ToRow converts a struct (or map) into a Row through its JSON form.
func ToRow(v any) (Row, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store encode: %w", err)
	}
	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("store encode: %w", err)
	}
	return row, nil
}
