package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"cupgame-wallet/internal/worker"
)

// PaymentGateway starts collection of an external deposit. The outcome arrives
// later through ConfirmExternalDeposit.
type PaymentGateway interface {
	InitiateDeposit(ctx context.Context, req worker.DepositInitiation) error
}

// QueueGateway enqueues the initiation for the worker, which calls the provider
// with retries. The idempotency key doubles as the task id, so a deposit is
// enqueued at most once.
type QueueGateway struct {
	Client   *asynq.Client
	MaxRetry int
}

func NewQueueGateway(client *asynq.Client) *QueueGateway {
	return &QueueGateway{Client: client, MaxRetry: 5}
}

func (g *QueueGateway) InitiateDeposit(ctx context.Context, req worker.DepositInitiation) error {
	task, err := worker.NewInitiateDepositTask(req)
	if err != nil {
		return err
	}

	_, err = g.Client.EnqueueContext(ctx, task,
		asynq.TaskID(fmt.Sprintf("deposit-initiate:%s", req.IdempotencyKey)),
		asynq.Queue("critical"),
		asynq.MaxRetry(g.MaxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}
