package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// PendingDepositSweeper fails external deposits the gateway never confirmed.
type PendingDepositSweeper struct {
	Wallets *WalletService
	MaxAge  time.Duration
	Log     zerolog.Logger
}

func NewPendingDepositSweeper(wallets *WalletService, maxAge time.Duration, log zerolog.Logger) *PendingDepositSweeper {
	return &PendingDepositSweeper{Wallets: wallets, MaxAge: maxAge, Log: log}
}

func (s *PendingDepositSweeper) Sweep(ctx context.Context) {
	s.Log.Info().Msg("starting pending deposit sweep")

	expired, err := s.Wallets.ExpireStalePending(ctx, s.MaxAge)
	if err != nil {
		s.Log.Error().Err(err).Msg("pending deposit sweep failed")
		return
	}
	if expired == 0 {
		s.Log.Info().Msg("no stale pending deposits")
		return
	}
	s.Log.Info().Int("expired", expired).Msg("stale pending deposits marked failed")
}

// StartScheduler runs Sweep on schedule until the returned cron is stopped.
func (s *PendingDepositSweeper) StartScheduler(schedule string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	s.Log.Info().Str("schedule", schedule).Msg("pending deposit sweeper started")
	return c, nil
}
