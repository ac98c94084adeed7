package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cupgame-wallet/internal/svcerr"
)

func TestOpenSession(t *testing.T) {
	env := newTestEnv(t)
	env.wallet(t, 5, "20")
	sessions := NewSessionService(env.store, zerolog.Nop())

	opened, err := sessions.OpenSession(context.Background(), 5, "cups")
	require.NoError(t, err)
	assert.Len(t, opened.SessionToken, 43)
	assert.NotEqual(t, opened.SessionToken, opened.LaunchToken)
	assert.WithinDuration(t, time.Now().Add(LaunchTokenTTL), opened.ExpiresAt, 5*time.Second)

	active, err := env.store.ActiveSessionByToken(context.Background(), opened.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, opened.SessionId, active.ID)

	reopened, err := sessions.OpenSession(context.Background(), 5, "cups")
	require.NoError(t, err)

	_, err = env.store.ActiveSessionByToken(context.Background(), opened.SessionToken)
	assert.ErrorIs(t, err, svcerr.ErrInvalidSession)
	_, err = sessions.RedeemLaunchToken(context.Background(), opened.LaunchToken)
	assert.ErrorIs(t, err, svcerr.ErrLaunchTokenUsed)

	session, err := sessions.RedeemLaunchToken(context.Background(), reopened.LaunchToken)
	require.NoError(t, err)
	assert.Equal(t, reopened.SessionId, session.ID)

	_, err = sessions.RedeemLaunchToken(context.Background(), reopened.LaunchToken)
	assert.ErrorIs(t, err, svcerr.ErrLaunchTokenUsed)
}

func TestOpenSessionRequiresWallet(t *testing.T) {
	env := newTestEnv(t)
	sessions := NewSessionService(env.store, zerolog.Nop())

	_, err := sessions.OpenSession(context.Background(), 77, "cups")
	assert.ErrorIs(t, err, svcerr.ErrWalletNotFound)
}

func TestRedeemExpiredLaunchToken(t *testing.T) {
	env := newTestEnv(t)
	env.wallet(t, 5, "20")
	sessions := NewSessionService(env.store, zerolog.Nop())

	opened, err := sessions.OpenSession(context.Background(), 5, "cups")
	require.NoError(t, err)

	sessions.Now = func() time.Time { return time.Now().UTC().Add(3 * time.Minute) }
	_, err = sessions.RedeemLaunchToken(context.Background(), opened.LaunchToken)
	assert.ErrorIs(t, err, svcerr.ErrInvalidLaunchToken)
}
