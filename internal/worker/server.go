package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"cupgame-wallet/internal/models"
	"cupgame-wallet/internal/store"
	"cupgame-wallet/pkg/common"
)

type Worker struct {
	Store       *store.LedgerStore
	ProviderURL string
	Log         zerolog.Logger
}

func NewWorker(st *store.LedgerStore, providerURL string, log zerolog.Logger) *Worker {
	return &Worker{
		Store:       st,
		ProviderURL: providerURL,
		Log:         log,
	}
}

// HandleInitiateDeposit forwards a pending deposit to the payment provider. The
// provider reports the outcome later through the payment callback.
func (w *Worker) HandleInitiateDeposit(ctx context.Context, t *asynq.Task) error {
	var p DepositInitiation
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if w.ProviderURL == "" {
		w.Log.Error().Str("transaction_id", p.TransactionId).Msg("payment provider url not configured")
		return fmt.Errorf("payment provider not configured: %w", asynq.SkipRetry)
	}

	_, err := common.Post(ctx, w.ProviderURL, p, map[string]string{"Idempotency-Key": p.IdempotencyKey})
	if err != nil {
		w.Log.Warn().Err(err).Str("transaction_id", p.TransactionId).Msg("deposit initiation failed, will retry")
		return err
	}

	w.Log.Info().Str("transaction_id", p.TransactionId).Str("wallet", p.WalletAddress).Msg("deposit initiated")
	return nil
}

// HandleFinancialAudit persists an audit record. Redelivery of a record that is
// already stored is not an error.
func (w *Worker) HandleFinancialAudit(ctx context.Context, t *asynq.Task) error {
	var p models.FinancialAudit
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.Store.InsertAudit(ctx, &p); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return nil
}

func NewServeMux(worker *Worker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeInitiateDeposit, worker.HandleInitiateDeposit)
	mux.HandleFunc(TypeFinancialAudit, worker.HandleFinancialAudit)
	return mux
}

func StartWorker(redisOpt asynq.RedisClientOpt, worker *Worker) error {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	return srv.Run(NewServeMux(worker))
}
