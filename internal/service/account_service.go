package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
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

// AccountService handles registration and every non-gameplay balance
// change. It shares the ledger's lock and version discipline.
type AccountService struct {
	writer          *balanceWriter
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
	betRepo         *repository.BetRepository
	outboxRepo      *repository.OutboxRepository
	topic           string
	log             logrus.FieldLogger
}

func NewAccountService(db *gorm.DB, locker lock.Locker, cfg *config.Config, log logrus.FieldLogger) *AccountService {
	return &AccountService{
		writer: &balanceWriter{
			db:          db,
			locker:      locker,
			maxAttempts: cfg.Ledger.MaxSettleAttempts,
			log:         log,
		},
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		betRepo:         repository.NewBetRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		topic:           cfg.Kafka.Topic.WalletTransaction,
		log:             log,
	}
}

// ============================================================================
// Accounts
// ============================================================================

// OpenAccount creates an active user with a zero balance. credential is
// stored as given.
func (s *AccountService) OpenAccount(ctx context.Context, username, email, credential string) (*model.User, error) {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" || email == "" {
		return nil, fmt.Errorf("username and email are required: %w", errs.ErrInvalidRequest)
	}
	user := &model.User{
		Username:   username,
		Email:      email,
		Credential: credential,
		Balance:    decimal.Zero,
		IsActive:   true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("username or email taken: %w", errs.ErrInvalidRequest)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("account opened")
	return user, nil
}

func (s *AccountService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, nil, userID)
}

func (s *AccountService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// Deactivate clears the active flag. Users are never deleted.
func (s *AccountService) Deactivate(ctx context.Context, userID int64) error {
	if err := s.userRepo.SetActive(ctx, userID, false); err != nil {
		return err
	}
	s.log.WithField("user_id", userID).Info("account deactivated")
	return nil
}

// ============================================================================
// Completed transactions
// ============================================================================

func (s *AccountService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal, remark string) (*model.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.apply(ctx, userID, amount, model.TransactionTypeDeposit, remark)
}

func (s *AccountService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, remark string) (*model.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.apply(ctx, userID, amount.Neg(), model.TransactionTypeWithdrawal, remark)
}

func (s *AccountService) Bonus(ctx context.Context, userID int64, amount decimal.Decimal, remark string) (*model.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.apply(ctx, userID, amount, model.TransactionTypeBonus, remark)
}

// Adjust applies a signed correction. A negative adjustment may not take
// the balance below zero.
func (s *AccountService) Adjust(ctx context.Context, userID int64, amount decimal.Decimal, remark string) (*model.Transaction, error) {
	if err := validateAmount(amount.Abs()); err != nil {
		return nil, err
	}
	return s.apply(ctx, userID, amount, model.TransactionTypeAdjustment, remark)
}

func (s *AccountService) apply(ctx context.Context, userID int64, amount decimal.Decimal, typ, remark string) (*model.Transaction, error) {
	var out *model.Transaction
	err := s.writer.run(ctx, userID, func(tx *gorm.DB) error {
		out = nil
		user, after, err := s.credit(ctx, tx, userID, amount)
		if err != nil {
			return err
		}
		before := user.Balance
		trans := &model.Transaction{
			TransactionNo: idgen.TransactionNo(),
			UserID:        userID,
			Amount:        amount,
			Type:          typ,
			Status:        model.TransactionStatusCompleted,
			BalanceBefore: &before,
			BalanceAfter:  &after,
			Remark:        remark,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}
		if err := s.publish(ctx, tx, trans); err != nil {
			return err
		}
		out = trans
		return nil
	})
	if err != nil {
		s.logFailure(userID, typ, amount, err)
		return nil, err
	}
	s.logTransaction(out)
	return out, nil
}

// credit adds a signed amount to an active user's balance under the
// version check and returns the user as read plus the new balance.
func (s *AccountService) credit(ctx context.Context, tx *gorm.DB, userID int64, amount decimal.Decimal) (*model.User, decimal.Decimal, error) {
	user, err := s.userRepo.GetByID(ctx, tx, userID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if !user.IsActive {
		return nil, decimal.Zero, fmt.Errorf("user %d: %w", userID, errs.ErrInactiveAccount)
	}
	after := user.Balance.Add(amount)
	if after.IsNegative() {
		return nil, decimal.Zero, fmt.Errorf("balance %s cannot cover %s: %w", user.Balance, amount.Neg(), errs.ErrInsufficientFunds)
	}
	if err := s.userRepo.CompareAndSwapBalance(ctx, tx, userID, user.Version, after); err != nil {
		return nil, decimal.Zero, err
	}
	return user, after, nil
}

// ============================================================================
// Pending deposits
// ============================================================================

// RequestDeposit records a pending deposit keyed by an external payment
// reference. Repeating the call with the same reference returns the
// original transaction.
func (s *AccountService) RequestDeposit(ctx context.Context, userID int64, amount decimal.Decimal, externalRef string) (*model.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return nil, fmt.Errorf("external reference is required: %w", errs.ErrInvalidRequest)
	}

	if existing, err := s.sameDeposit(ctx, userID, externalRef); existing != nil || err != nil {
		return existing, err
	}

	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("user %d: %w", userID, errs.ErrInactiveAccount)
	}

	trans := &model.Transaction{
		TransactionNo: idgen.TransactionNo(),
		UserID:        userID,
		Amount:        amount,
		Type:          model.TransactionTypeDeposit,
		Status:        model.TransactionStatusPending,
		ExternalRef:   &externalRef,
		Remark:        "awaiting confirmation",
	}
	if err := s.transactionRepo.Create(ctx, nil, trans); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// a concurrent request with the same reference won
			if existing, err := s.sameDeposit(ctx, userID, externalRef); existing != nil || err != nil {
				return existing, err
			}
		}
		return nil, fmt.Errorf("record pending deposit: %w", err)
	}
	s.logTransaction(trans)
	return trans, nil
}

func (s *AccountService) sameDeposit(ctx context.Context, userID int64, ref string) (*model.Transaction, error) {
	existing, err := s.transactionRepo.GetByExternalRef(ctx, ref)
	if err != nil || existing == nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, fmt.Errorf("external reference %q belongs to another account: %w", ref, errs.ErrInvalidRequest)
	}
	return existing, nil
}

// ConfirmTransaction completes a pending deposit and credits the balance.
func (s *AccountService) ConfirmTransaction(ctx context.Context, transactionNo string) (*model.Transaction, error) {
	pending, err := s.transactionRepo.GetByTransactionNo(ctx, nil, transactionNo)
	if err != nil {
		return nil, err
	}

	var out *model.Transaction
	err = s.writer.run(ctx, pending.UserID, func(tx *gorm.DB) error {
		out = nil
		trans, err := s.transactionRepo.GetByTransactionNo(ctx, tx, transactionNo)
		if err != nil {
			return err
		}
		if trans.Status != model.TransactionStatusPending {
			return fmt.Errorf("transaction %s is %s: %w", transactionNo, trans.Status, errs.ErrInvalidTransition)
		}
		user, after, err := s.credit(ctx, tx, trans.UserID, trans.Amount)
		if err != nil {
			return err
		}
		before := user.Balance
		if err := s.transactionRepo.Transition(ctx, tx, transactionNo,
			model.TransactionStatusPending, model.TransactionStatusCompleted, &before, &after); err != nil {
			return err
		}
		trans.Status = model.TransactionStatusCompleted
		trans.BalanceBefore, trans.BalanceAfter = &before, &after
		if err := s.publish(ctx, tx, trans); err != nil {
			return err
		}
		out = trans
		return nil
	})
	if err != nil {
		s.logFailure(pending.UserID, pending.Type, pending.Amount, err)
		return nil, err
	}
	s.logTransaction(out)
	return out, nil
}

// FailTransaction marks a pending transaction failed. The balance is not
// touched.
func (s *AccountService) FailTransaction(ctx context.Context, transactionNo, reason string) error {
	if err := s.transactionRepo.Transition(ctx, nil, transactionNo,
		model.TransactionStatusPending, model.TransactionStatusFailed, nil, nil); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"transaction_no": transactionNo, "reason": reason}).Info("transaction failed")
	return nil
}

// ============================================================================
// Audit
// ============================================================================

// AuditReport compares the sum of balances with what completed transactions
// and settled bets say it should be.
type AuditReport struct {
	TotalBalances         decimal.Decimal `json:"total_balances"`
	CompletedTransactions decimal.Decimal `json:"completed_transactions"`
	NetGameplay           decimal.Decimal `json:"net_gameplay"`
	Expected              decimal.Decimal `json:"expected"`
	Balanced              bool            `json:"balanced"`
}

// Audit is only exact at a quiescent point; writes racing with it can
// show a transient mismatch.
func (s *AccountService) Audit(ctx context.Context) (*AuditReport, error) {
	balances, err := s.userRepo.SumBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum balances: %w", err)
	}
	completed, err := s.transactionRepo.SumCompleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum transactions: %w", err)
	}
	net, err := s.betRepo.SumNet(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum bets: %w", err)
	}
	expected := completed.Add(net)
	report := &AuditReport{
		TotalBalances:         balances,
		CompletedTransactions: completed,
		NetGameplay:           net,
		Expected:              expected,
		Balanced:              balances.Equal(expected),
	}
	if !report.Balanced {
		s.log.WithFields(logrus.Fields{
			"total_balances": balances.String(),
			"expected":       expected.String(),
		}).Error("conservation audit mismatch")
	}
	return report, nil
}

// ============================================================================
// helpers
// ============================================================================

type walletTransactionEvent struct {
	TransactionNo string          `json:"transaction_no"`
	UserID        int64           `json:"user_id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	CompletedAt   string          `json:"completed_at"`
}

func (s *AccountService) publish(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	payload, err := json.Marshal(walletTransactionEvent{
		TransactionNo: trans.TransactionNo,
		UserID:        trans.UserID,
		Type:          trans.Type,
		Amount:        trans.Amount,
		BalanceAfter:  *trans.BalanceAfter,
		CompletedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encode transaction event: %w", err)
	}
	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: strconv.FormatInt(trans.UserID, 10),
		Topic:      s.topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}

func (s *AccountService) logTransaction(t *model.Transaction) {
	fields := logrus.Fields{
		"user_id":        t.UserID,
		"transaction_no": t.TransactionNo,
		"type":           t.Type,
		"status":         t.Status,
		"amount":         t.Amount.StringFixed(game.MoneyPlaces),
	}
	if t.BalanceAfter != nil {
		fields["balance_after"] = t.BalanceAfter.StringFixed(game.MoneyPlaces)
	}
	s.log.WithFields(fields).Info("wallet transaction")
}

func (s *AccountService) logFailure(userID int64, typ string, amount decimal.Decimal, err error) {
	entry := s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"type":    typ,
		"amount":  amount.StringFixed(game.MoneyPlaces),
	})
	if errs.IsRejection(err) {
		entry.WithField("kind", errs.KindOf(err)).Warn("wallet transaction rejected")
		return
	}
	entry.WithError(err).Error("wallet transaction failed")
}

// validateAmount requires a positive amount in whole cents.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(game.MoneyPlaces)) {
		return fmt.Errorf("amount %s must be positive with at most %d decimal places: %w", amount, game.MoneyPlaces, errs.ErrInvalidBet)
	}
	return nil
}
