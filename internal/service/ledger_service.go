package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"casino/internal/config"
	"casino/internal/errs"
	"casino/internal/game"
	"casino/internal/infrastructure/lock"
	"casino/internal/model"
	"casino/internal/repository"
	"casino/pkg/idgen"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BetInvalidator drops cached views of a user's bets after a settlement.
type BetInvalidator interface {
	InvalidateBets(ctx context.Context, userID int64)
}

// LedgerService owns the gameplay path to a user's balance.
type LedgerService struct {
	writer      *balanceWriter
	userRepo    *repository.UserRepository
	gameRepo    *repository.GameRepository
	betRepo     *repository.BetRepository
	outboxRepo  *repository.OutboxRepository
	topic       string
	invalidator BetInvalidator
	log         logrus.FieldLogger
}

func NewLedgerService(db *gorm.DB, locker lock.Locker, cfg *config.Config, log logrus.FieldLogger) *LedgerService {
	return &LedgerService{
		writer: &balanceWriter{
			db:          db,
			locker:      locker,
			maxAttempts: cfg.Ledger.MaxSettleAttempts,
			log:         log,
		},
		userRepo:   repository.NewUserRepository(db),
		gameRepo:   repository.NewGameRepository(db),
		betRepo:    repository.NewBetRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
		topic:      cfg.Kafka.Topic.BetSettled,
		log:        log,
	}
}

// SetInvalidator registers the bet-history cache to clear after each settlement.
func (s *LedgerService) SetInvalidator(inv BetInvalidator) {
	s.invalidator = inv
}

type SettleRequest struct {
	UserID int64
	GameID int64
	Amount decimal.Decimal
	Round  game.RoundResult
}

type Settlement struct {
	Bet        *model.Bet       `json:"bet"`
	Round      game.RoundResult `json:"round"`
	NewBalance decimal.Decimal  `json:"new_balance"`
}

type betSettledEvent struct {
	BetNo        string          `json:"bet_no"`
	RoundID      string          `json:"round_id"`
	UserID       int64           `json:"user_id"`
	GameID       int64           `json:"game_id"`
	Game         game.Type       `json:"game"`
	Amount       decimal.Decimal `json:"amount"`
	Outcome      game.Outcome    `json:"outcome"`
	Payout       decimal.Decimal `json:"payout"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	SettledAt    string          `json:"settled_at"`
}

// Settle debits the bet, credits the payout and records the bet in one
// transaction: balance_after = balance_before - amount + payout. Rejections
// leave no trace. A round settles at most once.
func (s *LedgerService) Settle(ctx context.Context, req SettleRequest) (*Settlement, error) {
	log := s.log.WithFields(logrus.Fields{
		"user_id":  req.UserID,
		"game":     req.Round.Game,
		"round_id": req.Round.ID,
		"amount":   req.Amount.StringFixed(game.MoneyPlaces),
	})

	settlement, err := s.settle(ctx, req)
	if err != nil {
		if errs.IsRejection(err) {
			log.WithField("kind", errs.KindOf(err)).Warn("settlement rejected")
		} else if errs.Retryable(err) {
			log.WithError(err).Warn("settlement contended")
		} else {
			log.WithError(err).Error("settlement failed")
		}
		return nil, err
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateBets(ctx, req.UserID)
	}
	log.WithFields(logrus.Fields{
		"bet_no":        settlement.Bet.BetNo,
		"outcome":       settlement.Bet.Outcome,
		"payout":        settlement.Bet.Payout.StringFixed(game.MoneyPlaces),
		"balance_after": settlement.NewBalance.StringFixed(game.MoneyPlaces),
	}).Info("bet settled")
	return settlement, nil
}

func (s *LedgerService) settle(ctx context.Context, req SettleRequest) (*Settlement, error) {
	if err := game.ValidateBet(req.Amount); err != nil {
		return nil, err
	}
	if !req.Amount.Equal(req.Round.Bet) {
		return nil, fmt.Errorf("amount %s does not match round bet %s: %w", req.Amount, req.Round.Bet, errs.ErrInvalidBet)
	}
	if err := req.Round.Validate(); err != nil {
		return nil, err
	}
	meta, err := json.Marshal(req.Round.Detail)
	if err != nil {
		return nil, fmt.Errorf("encode round detail: %w", err)
	}

	var out *Settlement
	err = s.writer.run(ctx, req.UserID, func(tx *gorm.DB) error {
		out = nil

		user, err := s.userRepo.GetByID(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return fmt.Errorf("user %d: %w", user.ID, errs.ErrInactiveAccount)
		}

		g, err := s.gameRepo.GetByID(ctx, tx, req.GameID)
		if err != nil {
			return err
		}
		if !g.IsActive || g.Type != string(req.Round.Game) {
			return fmt.Errorf("game %d (%s) cannot settle a %s round: %w", g.ID, g.Type, req.Round.Game, errs.ErrGameUnavailable)
		}

		settled, err := s.betRepo.ExistsByRoundID(ctx, tx, req.Round.ID)
		if err != nil {
			return fmt.Errorf("check round %s: %w", req.Round.ID, err)
		}
		if settled {
			return fmt.Errorf("round %s: %w", req.Round.ID, errs.ErrDuplicateSettlement)
		}

		if user.Balance.LessThan(req.Amount) {
			return fmt.Errorf("balance %s below bet %s: %w", user.Balance, req.Amount, errs.ErrInsufficientFunds)
		}
		after := user.Balance.Sub(req.Amount).Add(req.Round.Payout)

		if err := s.userRepo.CompareAndSwapBalance(ctx, tx, user.ID, user.Version, after); err != nil {
			return err
		}

		bet := &model.Bet{
			BetNo:         idgen.BetNo(),
			RoundID:       req.Round.ID,
			UserID:        user.ID,
			GameID:        g.ID,
			GameType:      g.Type,
			Amount:        req.Amount,
			Outcome:       string(req.Round.Outcome),
			Payout:        req.Round.Payout,
			BalanceBefore: user.Balance,
			BalanceAfter:  after,
			ResultMeta:    string(meta),
		}
		if err := s.betRepo.Create(ctx, tx, bet); err != nil {
			return fmt.Errorf("record bet: %w", err)
		}

		payload, err := json.Marshal(betSettledEvent{
			BetNo:        bet.BetNo,
			RoundID:      bet.RoundID,
			UserID:       bet.UserID,
			GameID:       bet.GameID,
			Game:         req.Round.Game,
			Amount:       bet.Amount,
			Outcome:      req.Round.Outcome,
			Payout:       bet.Payout,
			BalanceAfter: after,
			SettledAt:    time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return fmt.Errorf("encode bet event: %w", err)
		}
		if err := s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: strconv.FormatInt(bet.UserID, 10),
			Topic:      s.topic,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}); err != nil {
			return fmt.Errorf("write outbox: %w", err)
		}

		out = &Settlement{Bet: bet, Round: req.Round, NewBalance: after}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
