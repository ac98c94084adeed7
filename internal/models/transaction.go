package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TrxDeposit  TransactionType = "Deposit"
	TrxWithdraw TransactionType = "Withdraw"
	TrxBet      TransactionType = "Bet"
	TrxPayout   TransactionType = "Payout"
	TrxBonus    TransactionType = "Bonus"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "Pending"
	StatusCompleted TransactionStatus = "Completed"
	StatusFailed    TransactionStatus = "Failed"
)

// Transaction rows are append-only. The one permitted update is a Pending
// external deposit moving to Completed or Failed.
type Transaction struct {
	ID             string            `gorm:"primaryKey;size:36" json:"id"`
	WalletId       uint              `gorm:"column:wallet_id;not null;index:idx_trx_wallet_created" json:"wallet_id"`
	WalletAddress  string            `gorm:"column:wallet_address;size:64;not null" json:"wallet_address"`
	Amount         decimal.Decimal   `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	TrxType        TransactionType   `gorm:"column:transaction_type;size:20;not null" json:"transaction_type"`
	Description    string            `gorm:"column:description;size:255" json:"description"`
	Status         TransactionStatus `gorm:"column:status;size:20;not null;index" json:"status"`
	BeforeBalance  decimal.Decimal   `gorm:"column:before_balance;type:decimal(20,2);not null" json:"before_balance"`
	AfterBalance   decimal.Decimal   `gorm:"column:after_balance;type:decimal(20,2);not null" json:"after_balance"`
	IdempotencyKey *string           `gorm:"column:idempotency_key;size:128;uniqueIndex" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time         `gorm:"column:created_at;index:idx_trx_wallet_created" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
