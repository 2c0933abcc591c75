package repository

import (
	"context"
	"errors"
	"fmt"

	"casino/internal/errs"
	"casino/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = fmt.Errorf("user %w", errs.ErrNotFound)
	// ErrOptimisticLock means the row changed since it was read. Callers
	// re-read and retry.
	ErrOptimisticLock = errors.New("optimistic lock conflict")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID reads through tx when non-nil so a transaction sees its own view.
func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.User, error) {
	if tx == nil {
		tx = r.db
	}
	var user model.User
	err := tx.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CompareAndSwapBalance writes balance only if the row is still at version,
// and bumps the version. Zero rows affected means another writer got there
// first.
func (r *UserRepository) CompareAndSwapBalance(ctx context.Context, tx *gorm.DB, id int64, version int, balance decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"balance": balance,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active": active,
			"version":   gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SumBalances adds every balance in decimal arithmetic rather than SQL SUM,
// which some drivers return as a float.
func (r *UserRepository) SumBalances(ctx context.Context) (decimal.Decimal, error) {
	var balances []decimal.Decimal
	if err := r.db.WithContext(ctx).Model(&model.User{}).Pluck("balance", &balances).Error; err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, balances...), nil
}
