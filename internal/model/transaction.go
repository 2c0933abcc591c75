package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// Transaction types and statuses
// ============================================================================

const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeBonus      = "bonus"
	TransactionTypeAdjustment = "adjustment"
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// ============================================================================
// Transaction
// ============================================================================

// Transaction is a non-gameplay balance change. Amount is signed: credits are
// positive, withdrawals negative. Rows are append-only apart from the single
// pending -> completed|failed status move.
type Transaction struct {
	ID            int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string           `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID        int64            `gorm:"index;not null" json:"user_id"`
	Amount        decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"amount"`
	Type          string           `gorm:"type:varchar(20);not null" json:"type"`
	Status        string           `gorm:"type:varchar(20);index;not null" json:"status"`
	ExternalRef   *string          `gorm:"type:varchar(128);uniqueIndex" json:"external_ref,omitempty"`
	BalanceBefore *decimal.Decimal `gorm:"type:decimal(12,2)" json:"balance_before,omitempty"`
	BalanceAfter  *decimal.Decimal `gorm:"type:decimal(12,2)" json:"balance_after,omitempty"`
	Remark        string           `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
