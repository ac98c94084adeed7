package services

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cupgame-wallet/internal/models"
	"cupgame-wallet/internal/worker"
)

func newQueueClient(t *testing.T) (*miniredis.Miniredis, *asynq.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestQueueGatewayEnqueuesOncePerKey(t *testing.T) {
	mr, client := newQueueClient(t)
	g := NewQueueGateway(client)

	req := worker.DepositInitiation{TransactionId: "t1", WalletAddress: "W1", Amount: "10.00", IdempotencyKey: "ext-1"}
	require.NoError(t, g.InitiateDeposit(context.Background(), req))
	require.NoError(t, g.InitiateDeposit(context.Background(), req))

	assert.True(t, mr.Exists("asynq:{critical}:t:deposit-initiate:ext-1"))
	pending, err := mr.List("asynq:{critical}:pending")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestQueueAuditSink(t *testing.T) {
	mr, client := newQueueClient(t)
	sink := NewQueueAuditSink(client)

	require.NoError(t, sink.Record(context.Background(), &models.FinancialAudit{ID: "a1", WalletAddress: "W1", Action: "Deposit"}))
	assert.True(t, mr.Exists("asynq:{low}:t:audit:a1"))
}
