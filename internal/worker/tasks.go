package worker

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"cupgame-wallet/internal/models"
)

// Task Types
const (
	TypeInitiateDeposit = "deposit:initiate"
	TypeFinancialAudit  = "audit:financial"
)

// DepositInitiation asks the payment provider to collect funds for a pending deposit.
type DepositInitiation struct {
	TransactionId  string `json:"transaction_id"`
	WalletAddress  string `json:"wallet_address"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Description    string `json:"description"`
	IdempotencyKey string `json:"idempotency_key"`
	WalletHint     string `json:"wallet_hint,omitempty"`
}

// Task Creators

func NewInitiateDepositTask(payload DepositInitiation) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInitiateDeposit, data), nil
}

func NewFinancialAuditTask(payload models.FinancialAudit) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeFinancialAudit, data), nil
}
