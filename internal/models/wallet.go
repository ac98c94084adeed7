package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Wallet struct {
	ID            uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId        int             `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	WalletAddress string          `gorm:"column:wallet_address;size:64;not null;uniqueIndex" json:"wallet_address"`
	Balance       decimal.Decimal `gorm:"column:balance;type:decimal(20,2);not null;default:0.00" json:"balance"`
	IsFrozen      bool            `gorm:"column:is_frozen;not null;default:false" json:"is_frozen"`
	Currency      string          `gorm:"column:currency;size:10;not null;default:'ZAR'" json:"currency"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}
