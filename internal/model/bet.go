package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bet is the immutable record of one settled round. RoundID is unique so a
// round can be settled at most once.
type Bet struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	BetNo         string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"bet_no"`
	RoundID       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"round_id"`
	UserID        int64           `gorm:"index;not null" json:"user_id"`
	GameID        int64           `gorm:"index;not null" json:"game_id"`
	GameType      string          `gorm:"type:varchar(20);not null" json:"game_type"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Outcome       string          `gorm:"type:varchar(10);not null" json:"outcome"`
	Payout        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"payout"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_after"`
	ResultMeta    string          `gorm:"type:text;not null" json:"result_meta"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Bet) TableName() string {
	return "bets"
}
