// Package lock provides keyed mutual exclusion across goroutines (memory
// driver) or across processes (mongo driver).
package lock

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Unlock releases a held lock. Calling it more than once is a no-op.
type Unlock func()

type Locker interface {
	// Lock blocks until key is held or ctx is done.
	Lock(ctx context.Context, key string) (Unlock, error)
}

func ResourceKey(resourceID string) string {
	return "resource:" + resourceID
}

func PaymentKey(reservationID string) string {
	return "payment:" + reservationID
}
