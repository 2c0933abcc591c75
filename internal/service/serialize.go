package service

import (
	"context"
	"errors"
	"fmt"

	"casino/internal/errs"
	"casino/internal/infrastructure/lock"
	"casino/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// balanceWriter is the single path through which any balance changes. Each
// write holds the user's lock and runs fn in one DB transaction; fn ends
// with a version-checked update, and a lost race re-runs the whole
// transaction on fresh reads, up to maxAttempts times.
type balanceWriter struct {
	db          *gorm.DB
	locker      lock.Locker
	maxAttempts int
	log         logrus.FieldLogger
}

func (w *balanceWriter) run(ctx context.Context, userID int64, fn func(tx *gorm.DB) error) error {
	release, err := w.locker.Acquire(ctx, lock.UserKey(userID))
	if err != nil {
		if errors.Is(err, lock.ErrLockFailed) {
			return fmt.Errorf("user %d busy: %v: %w", userID, err, errs.ErrTransientConflict)
		}
		return fmt.Errorf("lock user %d: %w", userID, err)
	}
	defer release()

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err = w.db.WithContext(ctx).Transaction(fn)
		if !errors.Is(err, repository.ErrOptimisticLock) {
			return translateStoreError(err)
		}
		w.log.WithFields(logrus.Fields{"user_id": userID, "attempt": attempt}).Debug("balance version conflict, retrying")
	}
	return fmt.Errorf("user %d: %d attempts lost the version check: %w", userID, w.maxAttempts, errs.ErrTransientConflict)
}

// translateStoreError maps a unique-key violation (a second writer for the
// same round or reference got in first) onto the duplicate kind.
func translateStoreError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%v: %w", err, errs.ErrDuplicateSettlement)
	}
	return err
}
