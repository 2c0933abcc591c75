package service

import (
	"context"
	"fmt"
	"time"

	"casino/internal/infrastructure/cache"
	"casino/internal/model"
	"casino/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	MaxPageSize  = 100
	betPageTTL   = 60 * time.Second
	betKeyPrefix = "casino:bets"
)

type Page[T any] struct {
	Items    []*T  `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// HistoryService lists bets and transactions newest first. Bet pages are
// cached in Redis when a client is configured.
type HistoryService struct {
	betRepo         *repository.BetRepository
	transactionRepo *repository.TransactionRepository
	rdb             *redis.Client
	log             logrus.FieldLogger
}

// NewHistoryService accepts a nil rdb, which disables caching.
func NewHistoryService(db *gorm.DB, rdb *redis.Client, log logrus.FieldLogger) *HistoryService {
	return &HistoryService{
		betRepo:         repository.NewBetRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		rdb:             rdb,
		log:             log,
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func betGenKey(userID int64) string {
	return fmt.Sprintf("%s:gen:%d", betKeyPrefix, userID)
}

func betPageKey(userID, gen int64, page, pageSize int) string {
	return fmt.Sprintf("%s:%d:%d:%d:%d", betKeyPrefix, userID, gen, page, pageSize)
}

// ListBets serves a page from the cache when possible. The page key carries
// the user's bet generation read before the database query, so a page that
// was loaded before a concurrent invalidation is written under a retired key
// and never served.
func (s *HistoryService) ListBets(ctx context.Context, userID int64, page, pageSize int) (*Page[model.Bet], error) {
	page, pageSize = normalizePage(page, pageSize)

	var key string
	if s.rdb != nil {
		gen, err := cache.Generation(ctx, s.rdb, betGenKey(userID))
		if err != nil {
			s.log.WithError(err).WithField("user_id", userID).Warn("read bet generation")
		} else {
			key = betPageKey(userID, gen, page, pageSize)
		}
	}

	if key != "" {
		var cached Page[model.Bet]
		found, err := cache.GetJSON(ctx, s.rdb, key, &cached)
		if err != nil {
			s.log.WithError(err).WithField("key", key).Warn("read bet page cache")
		} else if found {
			return &cached, nil
		}
	}

	bets, total, err := s.betRepo.ListByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	out := &Page[model.Bet]{Items: bets, Total: total, Page: page, PageSize: pageSize}

	if key != "" {
		if err := cache.SetJSON(ctx, s.rdb, key, out, betPageTTL); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("write bet page cache")
		}
	}
	return out, nil
}

// InvalidateBets bumps the user's bet generation and drops the pages cached
// under older ones.
func (s *HistoryService) InvalidateBets(ctx context.Context, userID int64) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Incr(ctx, betGenKey(userID)).Err(); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("bump bet generation")
	}
	pattern := fmt.Sprintf("%s:%d:*", betKeyPrefix, userID)
	if err := cache.DeletePattern(ctx, s.rdb, pattern); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("invalidate bet pages")
	}
}

func (s *HistoryService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) (*Page[model.Transaction], error) {
	page, pageSize = normalizePage(page, pageSize)
	items, total, err := s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return &Page[model.Transaction]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}
