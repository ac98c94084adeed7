package services

import (
	"context"

	"github.com/hibiken/asynq"

	"cupgame-wallet/internal/models"
	"cupgame-wallet/internal/store"
	"cupgame-wallet/internal/worker"
)

// AuditSink receives financial audit records after the ledger change committed.
type AuditSink interface {
	Record(ctx context.Context, audit *models.FinancialAudit) error
}

// DBAuditSink writes audit records straight to the ledger database.
type DBAuditSink struct {
	Store *store.LedgerStore
}

func NewDBAuditSink(st *store.LedgerStore) *DBAuditSink {
	return &DBAuditSink{Store: st}
}

func (s *DBAuditSink) Record(ctx context.Context, audit *models.FinancialAudit) error {
	return s.Store.InsertAudit(ctx, audit)
}

// QueueAuditSink hands audit records to the worker so the request path never
// waits on the audit table.
type QueueAuditSink struct {
	Client *asynq.Client
}

func NewQueueAuditSink(client *asynq.Client) *QueueAuditSink {
	return &QueueAuditSink{Client: client}
}

func (s *QueueAuditSink) Record(ctx context.Context, audit *models.FinancialAudit) error {
	task, err := worker.NewFinancialAuditTask(*audit)
	if err != nil {
		return err
	}
	_, err = s.Client.EnqueueContext(ctx, task, asynq.Queue("low"), asynq.TaskID("audit:"+audit.ID))
	return err
}
