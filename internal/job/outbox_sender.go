package job

import (
	"context"
	"sync"
	"time"

	"casino/internal/config"
	"casino/internal/infrastructure/mq"
	"casino/internal/model"
	"casino/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutboxSender relays pending outbox rows to the message broker, oldest
// first. A row that keeps failing is parked as FAILED after
// kafka.max_retry_count attempts.
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  mq.Publisher
	maxRetry   int
	interval   time.Duration
	batchSize  int
	log        logrus.FieldLogger
	stopCh     chan struct{}
	stopOnce   sync.Once
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, cfg *config.Config, log logrus.FieldLogger) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		maxRetry:   cfg.Kafka.MaxRetryCount,
		interval:   cfg.Jobs.OutboxInterval,
		batchSize:  cfg.Jobs.OutboxBatchSize,
		log:        log.WithField("job", "outbox_sender"),
		stopCh:     make(chan struct{}),
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.WithField("interval", s.interval).Info("outbox sender started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("context done, outbox sender exiting")
			return
		case <-s.stopCh:
			s.log.Info("outbox sender stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// processPendingMessages sends one batch and returns how many went out.
// After a failure the remaining messages of the same key wait for the
// next tick so a user's events never overtake each other.
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.WithError(err).Error("query pending messages")
		return 0
	}

	sent := 0
	blocked := make(map[string]bool)
	for _, msg := range messages {
		if blocked[msg.MessageKey] {
			continue
		}
		if s.sendMessage(ctx, msg) {
			sent++
			continue
		}
		blocked[msg.MessageKey] = true
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	entry := s.log.WithFields(logrus.Fields{"id": msg.ID, "topic": msg.Topic, "key": msg.MessageKey})

	err := s.publisher.Publish(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if err := s.outboxRepo.MarkAsSent(ctx, msg.ID); err != nil {
			// the broker has it; a resend on the next tick is a duplicate consumers must tolerate
			entry.WithError(err).Error("mark message sent")
			return false
		}
		entry.Debug("message sent")
		return true
	}

	giveUp := msg.RetryCount+1 >= s.maxRetry
	if rerr := s.outboxRepo.RecordFailure(ctx, msg.ID, err.Error(), giveUp); rerr != nil {
		entry.WithError(rerr).Error("record send failure")
		return false
	}
	if giveUp {
		entry.WithError(err).WithField("attempts", msg.RetryCount+1).Error("message parked as failed")
		return false
	}
	entry.WithError(err).Warn("message send failed, will retry")
	return false
}
