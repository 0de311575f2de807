package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

type row struct {
	ID    string
	Value int
}

func cloneRow(r *row) *row {
	c := *r
	return &c
}

func TestTable_CloneIsolation(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable(NewStore(), cloneRow)

	in := &row{ID: "a", Value: 1}
	tbl.Put(ctx, in.ID, in)
	in.Value = 99

	got, ok := tbl.Get(ctx, "a")
	if !ok || got.Value != 1 {
		t.Fatalf("Get() = %+v, %v; stored row must not alias the caller's value", got, ok)
	}
	got.Value = 42
	again, _ := tbl.Get(ctx, "a")
	if again.Value != 1 {
		t.Errorf("returned row must not alias the stored row")
	}
}

func TestStore_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	a := NewTable(store, cloneRow)
	b := NewTable(store, cloneRow)
	a.Put(ctx, "keep", &row{ID: "keep", Value: 1})

	boom := errors.New("boom")
	err := store.ExecuteTransaction(ctx, func(ctx context.Context) error {
		a.Put(ctx, "keep", &row{ID: "keep", Value: 2})
		b.Insert(ctx, "new", &row{ID: "new"})
		a.Delete(ctx, "keep")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ExecuteTransaction() error = %v", err)
	}

	got, ok := a.Get(ctx, "keep")
	if !ok || got.Value != 1 {
		t.Errorf("table a not restored: %+v, %v", got, ok)
	}
	if _, ok := b.Get(ctx, "new"); ok {
		t.Errorf("table b kept a row from a failed transaction")
	}
}

func TestStore_NestedTransactionJoinsOuter(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tbl := NewTable(store, cloneRow)

	err := store.ExecuteTransaction(ctx, func(ctx context.Context) error {
		tbl.Put(ctx, "x", &row{ID: "x"})
		return store.ExecuteTransaction(ctx, func(ctx context.Context) error {
			if _, ok := tbl.Get(ctx, "x"); !ok {
				t.Errorf("inner transaction should see outer writes")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("ExecuteTransaction() error = %v", err)
	}
}

func TestStore_TransactionsSerialize(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	a := NewTable(store, cloneRow)
	b := NewTable(store, cloneRow)

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.ExecuteTransaction(ctx, func(ctx context.Context) error {
			a.Put(ctx, "car-1", &row{ID: "car-1"})
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan struct{})
	go func() {
		_ = store.ExecuteTransaction(ctx, func(ctx context.Context) error {
			b.Put(ctx, "car-2", &row{ID: "car-2"})
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second transaction ran while the first held the store")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second transaction never ran")
	}
}

func TestTable_Update(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable(NewStore(), cloneRow)
	tbl.Put(ctx, "a", &row{ID: "a", Value: 1})

	bumpFrom := func(want int) func(*row) (*row, bool) {
		return func(cur *row) (*row, bool) {
			if cur.Value != want {
				return nil, false
			}
			cur.Value++
			return cur, true
		}
	}

	if tbl.Update(ctx, "a", bumpFrom(2)) {
		t.Errorf("Update() should refuse when mutate declines")
	}
	if !tbl.Update(ctx, "a", bumpFrom(1)) {
		t.Errorf("Update() should apply when mutate accepts")
	}
	if got, _ := tbl.Get(ctx, "a"); got.Value != 2 {
		t.Errorf("Value = %d, want 2", got.Value)
	}
	if tbl.Update(ctx, "missing", bumpFrom(0)) {
		t.Errorf("Update() of a missing row should fail")
	}
}

func TestSelectAndPage(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable(NewStore(), cloneRow)
	for i, id := range []string{"c", "a", "b", "d"} {
		tbl.Put(ctx, id, &row{ID: id, Value: i})
	}

	rows := tbl.Select(ctx, func(r *row) bool { return r.ID != "d" }, func(x, y *row) bool { return x.ID < y.ID })
	if len(rows) != 3 || rows[0].ID != "a" || rows[2].ID != "c" {
		t.Fatalf("Select() = %+v", rows)
	}

	page := Page(rows, 2, 1)
	if len(page) != 2 || page[0].ID != "b" {
		t.Errorf("Page(2,1) = %+v", page)
	}
	if len(Page(rows, 10, 5)) != 0 {
		t.Errorf("Page past the end should be empty")
	}
}
