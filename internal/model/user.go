package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User holds the player's balance. Balance is changed only through a
// version-checked update; Version is the optimistic lock.
type User struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Username   string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Email      string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Credential string          `gorm:"type:varchar(255);not null" json:"-"`
	Balance    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance"`
	Version    int             `gorm:"not null;default:0" json:"version"`
	IsActive   bool            `gorm:"not null" json:"is_active"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
