// Package memory is a process-local store with the same transaction contract
// as the Mongo driver: a failed transaction leaves no trace.
package memory

import (
	"context"
	"sort"
	"sync"

	mongotx "rentcore/pkg/db/mongo"
)

type txKey struct{}

// Store serializes every operation. Transactions hold the store for their
// whole duration and restore each table's snapshot when fn fails.
//
// One mutex covers every table, so transactions on different resources wait
// for each other. That is fine for tests and single-process demos; services
// that need per-resource concurrency run on the Mongo driver.
type Store struct {
	mu     sync.Mutex
	tables []snapshotter
}

type snapshotter interface {
	snapshot() func()
}

func NewStore() *Store {
	return &Store{}
}

var _ mongotx.TransactionManager = (*Store)(nil)

func (s *Store) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restores := make([]func(), 0, len(s.tables))
	for _, t := range s.tables {
		restores = append(restores, t.snapshot())
	}

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// enter takes the store for a single operation unless ctx already holds it.
func (s *Store) enter(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Table holds rows of one kind by id. Rows are cloned on the way in and out so
// callers never share memory with the store.
type Table[T any] struct {
	store *Store
	rows  map[string]T
	clone func(T) T
}

func NewTable[T any](s *Store, clone func(T) T) *Table[T] {
	t := &Table[T]{store: s, rows: make(map[string]T), clone: clone}
	s.mu.Lock()
	s.tables = append(s.tables, t)
	s.mu.Unlock()
	return t
}

func (t *Table[T]) snapshot() func() {
	saved := make(map[string]T, len(t.rows))
	for k, v := range t.rows {
		saved[k] = v
	}
	return func() { t.rows = saved }
}

func (t *Table[T]) Get(ctx context.Context, id string) (T, bool) {
	defer t.store.enter(ctx)()
	v, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	return t.clone(v), true
}

// Insert stores v under id and reports false if id is taken.
func (t *Table[T]) Insert(ctx context.Context, id string, v T) bool {
	defer t.store.enter(ctx)()
	if _, exists := t.rows[id]; exists {
		return false
	}
	t.rows[id] = t.clone(v)
	return true
}

// InsertUnique is Insert that also refuses v when clash accepts any stored row.
// It stands in for unique indexes.
func (t *Table[T]) InsertUnique(ctx context.Context, id string, v T, clash func(existing T) bool) bool {
	defer t.store.enter(ctx)()
	if _, exists := t.rows[id]; exists {
		return false
	}
	for _, existing := range t.rows {
		if clash(existing) {
			return false
		}
	}
	t.rows[id] = t.clone(v)
	return true
}

func (t *Table[T]) Put(ctx context.Context, id string, v T) {
	defer t.store.enter(ctx)()
	t.rows[id] = t.clone(v)
}

// Update hands the current row to mutate and stores what it returns when it
// also returns true. It reports false when the row is missing or mutate declines.
func (t *Table[T]) Update(ctx context.Context, id string, mutate func(current T) (T, bool)) bool {
	defer t.store.enter(ctx)()
	current, ok := t.rows[id]
	if !ok {
		return false
	}
	next, ok := mutate(t.clone(current))
	if !ok {
		return false
	}
	t.rows[id] = t.clone(next)
	return true
}

func (t *Table[T]) Delete(ctx context.Context, id string) bool {
	defer t.store.enter(ctx)()
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	return true
}

// DeleteWhere removes every row match accepts and returns how many went.
func (t *Table[T]) DeleteWhere(ctx context.Context, match func(T) bool) int {
	defer t.store.enter(ctx)()
	n := 0
	for id, v := range t.rows {
		if match(v) {
			delete(t.rows, id)
			n++
		}
	}
	return n
}

// Select returns clones of every row match accepts, ordered by less.
func (t *Table[T]) Select(ctx context.Context, match func(T) bool, less func(a, b T) bool) []T {
	defer t.store.enter(ctx)()
	out := make([]T, 0)
	for _, v := range t.rows {
		if match == nil || match(v) {
			out = append(out, t.clone(v))
		}
	}
	if less != nil {
		sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

// Page applies offset and limit to an already ordered slice.
func Page[T any](rows []T, limit int, offset int64) []T {
	if offset >= int64(len(rows)) {
		return []T{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
