// Package lock serializes balance writes per user. Keys are per user, so
// different users never contend.
package lock

import (
	"context"
	"errors"
	"fmt"
)

var ErrLockFailed = errors.New("lock not acquired")

// Locker hands out exclusive per-key leases. release must be called exactly
// once after a successful Acquire.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// UserKey is the lock key for a user's balance row.
func UserKey(userID int64) string {
	return fmt.Sprintf("casino:lock:user:%d", userID)
}

// Noop grants every request immediately. Used with lock_mode=none, where
// the version check alone serializes writers.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
