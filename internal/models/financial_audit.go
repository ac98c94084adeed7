package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type FinancialAudit struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	WalletAddress   string          `gorm:"column:wallet_address;size:64;not null;index" json:"wallet_address"`
	Action          string          `gorm:"column:action;size:50;not null" json:"action"`
	Amount          decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	PreviousBalance decimal.Decimal `gorm:"column:previous_balance;type:decimal(20,2);not null" json:"previous_balance"`
	NewBalance      decimal.Decimal `gorm:"column:new_balance;type:decimal(20,2);not null" json:"new_balance"`
	Reference       string          `gorm:"column:reference;size:255" json:"reference"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (FinancialAudit) TableName() string {
	return "financial_audits"
}
