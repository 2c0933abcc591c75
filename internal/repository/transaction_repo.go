package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casino/internal/errs"
	"casino/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrTransactionNotFound = fmt.Errorf("transaction %w", errs.ErrNotFound)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByTransactionNo(ctx context.Context, tx *gorm.DB, transactionNo string) (*model.Transaction, error) {
	if tx == nil {
		tx = r.db
	}
	var trans model.Transaction
	err := tx.WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// GetByExternalRef returns nil, nil when no transaction carries ref.
func (r *TransactionRepository) GetByExternalRef(ctx context.Context, ref string) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).Where("external_ref = ?", ref).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// Transition moves a transaction out of status from. It fails with
// errs.ErrInvalidTransition if the row is no longer in that status.
func (r *TransactionRepository) Transition(ctx context.Context, tx *gorm.DB, transactionNo, from, to string, before, after *decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	updates := map[string]interface{}{"status": to}
	if before != nil && after != nil {
		updates["balance_before"] = *before
		updates["balance_after"] = *after
	}
	result := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("transaction_no = ? AND status = ?", transactionNo, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("transaction %s: %w", transactionNo, errs.ErrInvalidTransition)
	}
	return nil
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Transaction{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error
	return transactions, total, err
}

// GetExpiredPending returns pending transactions created before cutoff.
func (r *TransactionRepository) GetExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.TransactionStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}

// SumCompleted adds the signed amounts of every completed transaction.
func (r *TransactionRepository) SumCompleted(ctx context.Context) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("status = ?", model.TransactionStatusCompleted).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}
