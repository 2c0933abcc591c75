package model

import (
	"github.com/shopspring/decimal"
)

// Game is a catalog entry. HouseEdge is informational; the real edge lives
// in the engine's payout tables.
type Game struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string          `gorm:"type:varchar(64);not null" json:"name"`
	Type      string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"type"`
	HouseEdge decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"house_edge"`
	IsActive  bool            `gorm:"not null" json:"is_active"`
}

func (Game) TableName() string {
	return "games"
}
