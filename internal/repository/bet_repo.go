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

var ErrBetNotFound = fmt.Errorf("bet %w", errs.ErrNotFound)

type BetRepository struct {
	db *gorm.DB
}

func NewBetRepository(db *gorm.DB) *BetRepository {
	return &BetRepository{db: db}
}

func (r *BetRepository) Create(ctx context.Context, tx *gorm.DB, bet *model.Bet) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(bet).Error
}

func (r *BetRepository) ExistsByRoundID(ctx context.Context, tx *gorm.DB, roundID string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var n int64
	err := tx.WithContext(ctx).Model(&model.Bet{}).Where("round_id = ?", roundID).Count(&n).Error
	return n > 0, err
}

func (r *BetRepository) GetByBetNo(ctx context.Context, betNo string) (*model.Bet, error) {
	var bet model.Bet
	err := r.db.WithContext(ctx).Where("bet_no = ?", betNo).First(&bet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBetNotFound
		}
		return nil, err
	}
	return &bet, nil
}

// ListByUserID pages newest first. page starts at 1.
func (r *BetRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Bet, int64, error) {
	var bets []*model.Bet
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Bet{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&bets).Error
	return bets, total, err
}

// SumNet returns sum(payout - amount) over every bet.
func (r *BetRepository) SumNet(ctx context.Context) (decimal.Decimal, error) {
	var rows []struct {
		Amount decimal.Decimal
		Payout decimal.Decimal
	}
	if err := r.db.WithContext(ctx).Model(&model.Bet{}).Select("amount", "payout").Find(&rows).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, row := range rows {
		sum = sum.Add(row.Payout).Sub(row.Amount)
	}
	return sum, nil
}
