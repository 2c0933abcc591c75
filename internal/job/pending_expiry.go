package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"casino/internal/config"
	"casino/internal/errs"
	"casino/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TransactionFailer is the part of the account service the expiry job
// drives.
type TransactionFailer interface {
	FailTransaction(ctx context.Context, transactionNo, reason string) error
}

// PendingTransactionExpiryJob fails pending deposits that were never
// confirmed within jobs.pending_transaction_ttl. Balances are not touched.
type PendingTransactionExpiryJob struct {
	transactionRepo *repository.TransactionRepository
	accounts        TransactionFailer
	ttl             time.Duration
	interval        time.Duration
	batchSize       int
	now             func() time.Time
	log             logrus.FieldLogger
	stopCh          chan struct{}
	stopOnce        sync.Once
}

func NewPendingTransactionExpiryJob(db *gorm.DB, accounts TransactionFailer, cfg *config.Config, log logrus.FieldLogger) *PendingTransactionExpiryJob {
	return &PendingTransactionExpiryJob{
		transactionRepo: repository.NewTransactionRepository(db),
		accounts:        accounts,
		ttl:             cfg.Jobs.PendingTxTTL,
		interval:        cfg.Jobs.PendingExpiryInterval,
		batchSize:       100,
		now:             time.Now,
		log:             log.WithField("job", "pending_expiry"),
		stopCh:          make(chan struct{}),
	}
}

func (j *PendingTransactionExpiryJob) Start(ctx context.Context) {
	j.log.WithFields(logrus.Fields{"interval": j.interval, "ttl": j.ttl}).Info("pending expiry job started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("context done, pending expiry job exiting")
			return
		case <-j.stopCh:
			j.log.Info("pending expiry job stopped")
			return
		case <-ticker.C:
			j.expirePending(ctx)
		}
	}
}

func (j *PendingTransactionExpiryJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

func (j *PendingTransactionExpiryJob) expirePending(ctx context.Context) int {
	cutoff := j.now().Add(-j.ttl)
	pending, err := j.transactionRepo.GetExpiredPending(ctx, cutoff, j.batchSize)
	if err != nil {
		j.log.WithError(err).Error("query expired pending transactions")
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	expired := 0
	for _, t := range pending {
		err := j.accounts.FailTransaction(ctx, t.TransactionNo, "expired")
		switch {
		case err == nil:
			expired++
		case errors.Is(err, errs.ErrInvalidTransition):
			// confirmed between the query and now
		default:
			j.log.WithError(err).WithField("transaction_no", t.TransactionNo).Error("expire pending transaction")
		}
	}
	j.log.WithFields(logrus.Fields{"found": len(pending), "expired": expired}).Info("expired pending transactions")
	return expired
}
