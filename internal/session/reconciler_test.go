package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cupgame-wallet/internal/config"
)

func TestFlushAllSettlesEverySession(t *testing.T) {
	env := newGameEnv(t, config.OwnershipHandoff)
	tokenA, addrA := env.session(t, 1, "20")
	tokenB, addrB := env.session(t, 2, "20")
	tokenC, addrC := env.session(t, 3, "20")

	env.round(t, tokenA, "a", "5", 0)
	env.round(t, tokenB, "b", "5", 2)
	env.round(t, tokenC, "c", "5", 0)
	env.round(t, tokenC, "c", "5", 1)

	report := env.game.FlushAll(context.Background())
	assert.Equal(t, SweepReport{Flushed: 2, Failed: 0, Removed: 0}, report)

	assert.True(t, dec("25").Equal(env.durable(t, addrA)))
	assert.True(t, dec("15").Equal(env.durable(t, addrB)))
	assert.True(t, dec("20").Equal(env.durable(t, addrC)))

	// sessions stay held for further play
	assert.Equal(t, 3, env.game.ActiveSessions())
	snap, _ := env.game.Snapshot(tokenA)
	assert.True(t, snap.PendingDelta.IsZero())
	assert.True(t, dec("25").Equal(snap.ProjectedBalance))

	assert.Equal(t, SweepReport{}, env.game.FlushAll(context.Background()))
}

func TestFlushAllIsolatesFailures(t *testing.T) {
	env := newGameEnv(t, config.OwnershipHandoff)
	tokenA, addrA := env.session(t, 1, "20")
	tokenB, addrB := env.session(t, 2, "20")

	env.round(t, tokenA, "a", "5", 0)
	env.round(t, tokenB, "b", "5", 0)
	env.settler.failNext(1)

	report := env.game.FlushAll(context.Background())
	assert.Equal(t, 1, report.Flushed)
	assert.Equal(t, 1, report.Failed)

	settled := 0
	for _, addr := range []string{addrA, addrB} {
		if dec("25").Equal(env.durable(t, addr)) {
			settled++
		}
	}
	assert.Equal(t, 1, settled)

	report = env.game.FlushAll(context.Background())
	assert.Equal(t, SweepReport{Flushed: 1}, report)
	assert.True(t, dec("25").Equal(env.durable(t, addrA)))
	assert.True(t, dec("25").Equal(env.durable(t, addrB)))
}

func TestReconcilerRunsOnSchedule(t *testing.T) {
	env := newGameEnv(t, config.OwnershipHandoff)
	token, addr := env.session(t, 1, "20")
	env.round(t, token, "c1", "5", 0)

	r := NewReconciler(env.game, time.Second, zerolog.Nop())
	c, err := r.Start(context.Background())
	require.NoError(t, err)
	defer c.Stop()

	assert.Eventually(t, func() bool {
		return dec("25").Equal(env.durable(t, addr))
	}, 5*time.Second, 50*time.Millisecond)
}

func TestReconcilerRejectsBadInterval(t *testing.T) {
	r := NewReconciler(&Game{}, 0, zerolog.Nop())
	_, err := r.Start(context.Background())
	assert.Error(t, err)
}
