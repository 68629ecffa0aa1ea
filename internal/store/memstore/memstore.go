// Package memstore is an in-memory store.Datastore. It mirrors the
// PostgreSQL implementation closely enough for handler and orchestrator
// tests: generated UUIDs and timestamps, merge-upserts, the same filter
// operators and registered similarity functions.
package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"verdant/internal/store"
)

// MatchFunc implements a similarity function over the current tables.
type MatchFunc func(tables map[string][]store.Row, args store.Row) []store.Row

// Store is a concurrency-safe in-memory datastore.
type Store struct {
	mu      sync.Mutex
	tables  map[string][]store.Row
	funcs   map[string]MatchFunc
	failing map[string]error // "op table" -> error
	writes  int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tables:  make(map[string][]store.Row),
		funcs:   make(map[string]MatchFunc),
		failing: make(map[string]error),
	}
}

// Seed adds rows to table as-is, assigning ids where missing. Seeding does
// not count as a write.
func (s *Store) Seed(table string, rows ...store.Row) []store.Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.Row, 0, len(rows))
	for _, r := range rows {
		row := normalize(r)
		if row.ID() == "" {
			row["id"] = uuid.NewString()
		}
		s.tables[table] = append(s.tables[table], row)
		out = append(out, clone(row))
	}
	return out
}

// Rows returns a copy of every row in table.
func (s *Store) Rows(table string) []store.Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.Row, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		out = append(out, clone(r))
	}
	return out
}

// Writes reports how many insert, upsert and update calls succeeded.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// RegisterMatch installs the implementation of a similarity function.
func (s *Store) RegisterMatch(name string, fn MatchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs[name] = fn
}

// FailOn makes every op ("select", "insert", "upsert", "update", "match")
// on table return err.
func (s *Store) FailOn(op, table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[op+" "+table] = err
}

func (s *Store) fail(op, table string) error {
	if err, ok := s.failing[op+" "+table]; ok {
		return &store.PersistenceError{Table: table, Op: op, Err: err}
	}
	return nil
}

// Get returns the first row matching filters.
func (s *Store) Get(ctx context.Context, table string, filters ...store.Filter) (store.Row, error) {
	rows, err := s.List(ctx, table, store.Query{Filters: filters, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", table, store.ErrNotFound)
	}
	return rows[0], nil
}

// List returns the rows matching q.
func (s *Store) List(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("select", table); err != nil {
		return nil, err
	}

	var out []store.Row
	for _, r := range s.tables[table] {
		ok, err := matches(r, q.Filters)
		if err != nil {
			return nil, &store.PersistenceError{Table: table, Op: "select", Err: err}
		}
		if ok {
			out = append(out, clone(r))
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][q.OrderBy], out[j][q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Insert stores a copy of row with an id and created_at when absent.
func (s *Store) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("insert", table); err != nil {
		return nil, err
	}

	r := normalize(row)
	if r.ID() == "" {
		r["id"] = uuid.NewString()
	}
	for _, existing := range s.tables[table] {
		if existing.ID() == r.ID() {
			return nil, &store.PersistenceError{Table: table, Op: "insert", Err: fmt.Errorf("duplicate id %s", r.ID())}
		}
	}
	if _, ok := r["created_at"]; !ok {
		r["created_at"] = now()
	}

	s.tables[table] = append(s.tables[table], r)
	s.writes++
	return clone(r), nil
}

// Upsert merges row into the row sharing its conflict columns, or inserts.
func (s *Store) Upsert(ctx context.Context, table string, row store.Row, conflict ...string) (store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(conflict) == 0 {
		return nil, &store.PersistenceError{Table: table, Op: "upsert", Err: errors.New("no conflict columns")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("upsert", table); err != nil {
		return nil, err
	}

	r := normalize(row)
	for _, existing := range s.tables[table] {
		same := true
		for _, c := range conflict {
			if !reflect.DeepEqual(existing[c], r[c]) {
				same = false
				break
			}
		}
		if !same {
			continue
		}
		for k, v := range r {
			existing[k] = v
		}
		existing["updated_at"] = now()
		s.writes++
		return clone(existing), nil
	}

	if r.ID() == "" {
		r["id"] = uuid.NewString()
	}
	if _, ok := r["created_at"]; !ok {
		r["created_at"] = now()
	}
	s.tables[table] = append(s.tables[table], r)
	s.writes++
	return clone(r), nil
}

// Update sets values on every row matching filters.
func (s *Store) Update(ctx context.Context, table string, values store.Row, filters ...store.Filter) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return nil, &store.PersistenceError{Table: table, Op: "update", Err: errors.New("refusing to update without a filter")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("update", table); err != nil {
		return nil, err
	}

	v := normalize(values)
	var out []store.Row
	for _, r := range s.tables[table] {
		ok, err := matches(r, filters)
		if err != nil {
			return nil, &store.PersistenceError{Table: table, Op: "update", Err: err}
		}
		if !ok {
			continue
		}
		for k, val := range v {
			r[k] = val
		}
		out = append(out, clone(r))
	}
	if len(out) > 0 {
		s.writes++
	}
	return out, nil
}

// Match runs the registered similarity function fn.
func (s *Store) Match(ctx context.Context, fn string, args store.Row) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("match", fn); err != nil {
		return nil, err
	}
	f, ok := s.funcs[fn]
	if !ok {
		return nil, &store.PersistenceError{Table: fn, Op: "match", Err: errors.New("function does not exist")}
	}

	snapshot := make(map[string][]store.Row, len(s.tables))
	for name, rows := range s.tables {
		for _, r := range rows {
			snapshot[name] = append(snapshot[name], clone(r))
		}
	}
	return f(snapshot, normalize(args)), nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// normalize round-trips a row through JSON so stored values have the same
// shapes PostgreSQL's row_to_json produces.
func normalize(r store.Row) store.Row {
	data, err := json.Marshal(r)
	if err != nil {
		panic(fmt.Sprintf("memstore: row is not JSON-encodable: %v", err))
	}
	out := store.Row{}
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("memstore: %v", err))
	}
	return out
}

func clone(r store.Row) store.Row {
	return normalize(r)
}

func matches(r store.Row, filters []store.Filter) (bool, error) {
	for _, f := range filters {
		got := r[f.Field]
		switch f.Op {
		case store.OpEq:
			if !equal(got, f.Value) {
				return false, nil
			}
		case store.OpIn:
			found := false
			for _, v := range toStrings(f.Value) {
				if equal(got, v) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		case store.OpGte:
			if got == nil || compare(got, f.Value) < 0 {
				return false, nil
			}
		case store.OpILike:
			s, _ := got.(string)
			if !likeMatch(s, fmt.Sprint(f.Value)) {
				return false, nil
			}
		case store.OpContains:
			have := toStrings(got)
			for _, want := range toStrings(f.Value) {
				if !containsString(have, want) {
					return false, nil
				}
			}
		default:
			return false, fmt.Errorf("unsupported filter op %d", f.Op)
		}
	}
	return true, nil
}

// equal compares a stored value with a filter value through their text
// forms, the way PostgreSQL coerces a parameter to the column type.
func equal(stored, v any) bool {
	if stored == nil || v == nil {
		return stored == nil && v == nil
	}
	return text(stored) == text(v)
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	}
	data, _ := json.Marshal(v)
	var f float64
	if json.Unmarshal(data, &f) == nil {
		return fmt.Sprintf("%g", f)
	}
	return strings.Trim(string(data), `"`)
}

// compare orders numbers numerically and everything else as text. ISO dates
// sort correctly as text.
func compare(a, b any) int {
	fa, aok := number(a)
	fb, bok := number(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(text(a), text(b))
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

func toStrings(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			out = append(out, text(item))
		}
		return out
	case nil:
		return nil
	}
	return []string{text(v)}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// likeMatch implements ILIKE with % and _ wildcards and backslash escapes.
func likeMatch(s, pattern string) bool {
	var b strings.Builder
	b.WriteString("(?is)^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
