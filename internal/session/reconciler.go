package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type SweepReport struct {
	Flushed int
	Failed  int
	Removed int
}

// FlushAll settles every entry holding a pending delta and drops entries whose
// connection is gone once they are settled. A failing entry never stops the sweep.
func (g *Game) FlushAll(ctx context.Context) SweepReport {
	var report SweepReport

	g.registry.Range(func(e *Entry) bool {
		if ctx.Err() != nil {
			return false
		}

		e.mu.Lock()
		due := !e.removed && (!e.pendingDelta.IsZero() || e.disconnected)
		userID := e.userID
		e.mu.Unlock()
		if !due {
			return true
		}

		wallet, err := g.Sessions.WalletByUser(ctx, userID)
		if err != nil {
			report.Failed++
			g.Log.Error().Err(err).Int("user_id", userID).Msg("wallet lookup failed during sweep")
			return true
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.removed {
			return true
		}
		e.wallet.IsFrozen = wallet.IsFrozen

		hadDelta := !e.pendingDelta.IsZero()
		if err := g.flush(ctx, e, "reconciler"); err != nil {
			report.Failed++
			g.Log.Error().Err(err).Str("session_id", e.sessionID).Msg("sweep flush failed, delta kept pending")
			return true
		}
		if hadDelta {
			report.Flushed++
		}
		if e.disconnected {
			g.remove(e)
			report.Removed++
		}
		return true
	})

	return report
}

// Reconciler periodically runs Game.FlushAll.
type Reconciler struct {
	Game     *Game
	Interval time.Duration
	Log      zerolog.Logger
}

func NewReconciler(game *Game, interval time.Duration, log zerolog.Logger) *Reconciler {
	return &Reconciler{Game: game, Interval: interval, Log: log}
}

func (r *Reconciler) Sweep(ctx context.Context) SweepReport {
	report := r.Game.FlushAll(ctx)
	if report.Flushed > 0 || report.Failed > 0 || report.Removed > 0 {
		r.Log.Info().Int("flushed", report.Flushed).Int("failed", report.Failed).
			Int("removed", report.Removed).Msg("session sweep finished")
	}
	return report
}

// Start schedules Sweep every Interval. Sweeps never overlap.
func (r *Reconciler) Start(ctx context.Context) (*cron.Cron, error) {
	if r.Interval <= 0 {
		return nil, fmt.Errorf("reconciler interval must be positive, got %s", r.Interval)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc("@every "+r.Interval.String(), func() {
		r.Sweep(ctx)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	r.Log.Info().Dur("interval", r.Interval).Msg("session reconciler started")
	return c, nil
}
