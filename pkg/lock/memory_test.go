package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryLocker_MutualExclusion(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, ResourceKey("car-1"))
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
	if locker.size() != 0 {
		t.Errorf("entries left after all unlocks: %d", locker.size())
	}
}

func TestMemoryLocker_ContextCancel(t *testing.T) {
	locker := NewMemoryLocker()
	unlock, err := locker.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := locker.Lock(ctx, "k"); !errors.Is(err, ErrNotAcquired) {
		t.Errorf("Lock() error = %v, want ErrNotAcquired", err)
	}
}

func TestMemoryLocker_IndependentKeys(t *testing.T) {
	locker := NewMemoryLocker()
	unlockA, err := locker.Lock(context.Background(), ResourceKey("a"))
	if err != nil {
		t.Fatalf("Lock(a) error = %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := locker.Lock(ctx, ResourceKey("b"))
	if err != nil {
		t.Fatalf("Lock(b) should not wait on a: %v", err)
	}
	unlockB()
}

func TestMemoryLocker_DoubleUnlock(t *testing.T) {
	locker := NewMemoryLocker()
	unlock, err := locker.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	unlock()
	unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	again, err := locker.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("relock after double unlock: %v", err)
	}
	again()
}
