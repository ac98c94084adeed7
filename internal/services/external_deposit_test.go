package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cupgame-wallet/internal/models"
	"cupgame-wallet/internal/svcerr"
)

func externalRequest(addr, key, amount string) ExternalDepositRequest {
	return ExternalDepositRequest{
		WalletAddress:  addr,
		Amount:         dec(amount),
		Description:    "card deposit",
		IdempotencyKey: key,
		WalletHint:     "visa-4242",
	}
}

func TestDepositExternalIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	addr := env.wallet(t, 1, "20")

	first, err := env.svc.DepositExternal(context.Background(), externalRequest(addr, "ext-1", "30"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, first.Status)
	assert.True(t, dec("20").Equal(first.Balance))
	require.NotNil(t, first.TentativeBalance)
	assert.True(t, dec("50").Equal(*first.TentativeBalance))

	second, err := env.svc.DepositExternal(context.Background(), externalRequest(addr, "ext-1", "30"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// cache expired: the durable row answers
	env.svc.Results = NewMemoryResultCache()
	third, err := env.svc.DepositExternal(context.Background(), externalRequest(addr, "ext-1", "30"))
	require.NoError(t, err)
	assert.Equal(t, first.TransactionId, third.TransactionId)
	assert.Equal(t, first.Status, third.Status)
	assert.True(t, first.Balance.Equal(third.Balance))

	var count int64
	require.NoError(t, env.store.DB.Model(&models.Transaction{}).Where("idempotency_key = ?", "ext-1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, env.gateway.calls())
	assert.True(t, dec("20").Equal(env.balance(t, addr)))

	req := env.gateway.requests[0]
	assert.Equal(t, "30.00", req.Amount)
	assert.Equal(t, "ZAR", req.Currency)
	assert.Equal(t, "visa-4242", req.WalletHint)
	assert.Equal(t, first.TransactionId, req.TransactionId)
}

func TestDepositExternalConcurrentSameKey(t *testing.T) {
	env := newTestEnv(t)
	addr := env.wallet(t, 1, "20")

	var wg sync.WaitGroup
	results := make([]*TransactionResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.svc.DepositExternal(context.Background(), externalRequest(addr, "ext-race", "10"))
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, results[0].TransactionId, res.TransactionId)
	}

	var count int64
	require.NoError(t, env.store.DB.Model(&models.Transaction{}).Where("idempotency_key = ?", "ext-race").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDepositExternalKeyBoundToRequest(t *testing.T) {
	env := newTestEnv(t)
	alice := env.wallet(t, 1, "20")
	bob := env.wallet(t, 2, "20")

	first, err := env.svc.DepositExternal(context.Background(), externalRequest(alice, "ext-shared", "30"))
	require.NoError(t, err)

	_, err = env.svc.DepositExternal(context.Background(), externalRequest(bob, "ext-shared", "30"))
	assert.ErrorIs(t, err, svcerr.ErrIdempotencyConflict)
	assert.True(t, svcerr.IsConflict(err))

	_, err = env.svc.DepositExternal(context.Background(), externalRequest(alice, "ext-shared", "45"))
	assert.ErrorIs(t, err, svcerr.ErrIdempotencyConflict)

	// same answers once only the durable row remains
	env.svc.Results = NewMemoryResultCache()
	_, err = env.svc.DepositExternal(context.Background(), externalRequest(bob, "ext-shared", "30"))
	assert.ErrorIs(t, err, svcerr.ErrIdempotencyConflict)
	_, err = env.svc.DepositExternal(context.Background(), externalRequest(alice, "ext-shared", "45"))
	assert.ErrorIs(t, err, svcerr.ErrIdempotencyConflict)

	again, err := env.svc.DepositExternal(context.Background(), externalRequest(alice, "ext-shared", "30.00"))
	require.NoError(t, err)
	assert.Equal(t, first.TransactionId, again.TransactionId)

	for _, row := range env.rows(t, bob) {
		assert.NotEqual(t, models.StatusPending, row.Status)
	}
	assert.Equal(t, 1, env.gateway.calls())
}

func TestDepositExternalValidation(t *testing.T) {
	env := newTestEnv(t)
	addr := env.wallet(t, 1, "20")

	_, err := env.svc.DepositExternal(context.Background(), externalRequest(addr, "  ", "10"))
	assert.ErrorIs(t, err, svcerr.ErrMissingIdempotency)

	_, err = env.svc.DepositExternal(context.Background(), externalRequest(addr, "ext-2", "10.555"))
	assert.ErrorIs(t, err, svcerr.ErrInvalidAmount)

	_, err = env.svc.DepositExternal(context.Background(), externalRequest("Wnope", "ext-3", "10"))
	assert.ErrorIs(t, err, svcerr.ErrWalletNotFound)

	require.NoError(t, env.svc.SetFrozen(context.Background(), addr, true))
	_, err = env.svc.DepositExternal(context.Background(), externalRequest(addr, "ext-4", "10"))
	assert.ErrorIs(t, err, svcerr.ErrWalletFrozen)

	assert.Equal(t, 0, env.gateway.calls())
	assert.Len(t, env.rows(t, addr), 1)
}

func TestDepositExternalCountsTowardDailyLimit(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Limits.MaxDailyDeposit = dec("100")
	addr := env.wallet(t, 1, "20")

	_, err := env.svc.DepositExternal(context.Background(), externalRequest(addr, "ext-1", "80"))
	require.NoError(t, err)

	_, err = env.svc.Deposit(context.Background(), addr, dec("30"), "")
	assert.ErrorIs(t, err, svcerr.ErrDailyLimitExceeded)
}

func TestDepositExternalGatewayFailure(t *testing.T) {
	env := newTestEnv(t)
	addr := env.wallet(t, 1, "20")
	env.gateway.err = errors.New("redis unavailable")

	_, err := env.svc.DepositExternal(context.Background(), externalRequest(addr, "ext-1", "30"))
	assert.ErrorIs(t, err, svcerr.ErrPaymentInitiation)
	assert.True(t, svcerr.IsUpstream(err))

	rows := env.rows(t, addr)
	require.Len(t, rows, 2)
	assert.Equal(t, models.StatusPending, rows[1].Status)
	assert.True(t, dec("20").Equal(env.balance(t, addr)))

	_, cached := env.svc.Results.Get(context.Background(), "ext-1")
	assert.False(t, cached)
}

func TestConfirmExternalDeposit(t *testing.T) {
	env := newTestEnv(t)
	addr := env.wallet(t, 1, "20")

	_, err := env.svc.DepositExternal(context.Background(), externalRequest(addr, "ext-1", "30"))
	require.NoError(t, err)

	// balance moved between initiation and confirmation
	_, err = env.svc.Withdraw(context.Background(), addr, dec("5"), "")
	require.NoError(t, err)

	res, err := env.svc.ConfirmExternalDeposit(context.Background(), "ext-1", true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, res.Status)
	assert.True(t, dec("45").Equal(res.Balance))
	assert.True(t, dec("45").Equal(env.balance(t, addr)))

	again, err := env.svc.ConfirmExternalDeposit(context.Background(), "ext-1", true)
	require.NoError(t, err)
	assert.Equal(t, res.TransactionId, again.TransactionId)
	assert.True(t, dec("45").Equal(env.balance(t, addr)))

	cached, err := env.svc.DepositExternal(context.Background(), externalRequest(addr, "ext-1", "30"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, cached.Status)

	replayed, err := env.svc.ReplayBalance(context.Background(), addr)
	require.NoError(t, err)
	assert.True(t, dec("45").Equal(replayed))
}

func TestConfirmExternalDepositFailed(t *testing.T) {
	env := newTestEnv(t)
	addr := env.wallet(t, 1, "20")

	_, err := env.svc.DepositExternal(context.Background(), externalRequest(addr, "ext-1", "30"))
	require.NoError(t, err)

	res, err := env.svc.ConfirmExternalDeposit(context.Background(), "ext-1", false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, res.Status)
	assert.True(t, dec("20").Equal(env.balance(t, addr)))

	// a late success report cannot revive a failed deposit
	res, err = env.svc.ConfirmExternalDeposit(context.Background(), "ext-1", true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, res.Status)
	assert.True(t, dec("20").Equal(env.balance(t, addr)))

	_, err = env.svc.ConfirmExternalDeposit(context.Background(), "unknown", true)
	assert.ErrorIs(t, err, svcerr.ErrTransactionNotFound)
}

func TestExpireStalePending(t *testing.T) {
	env := newTestEnv(t)
	addr := env.wallet(t, 1, "20")

	_, err := env.svc.DepositExternal(context.Background(), externalRequest(addr, "ext-old", "30"))
	require.NoError(t, err)

	sweeper := NewPendingDepositSweeper(env.svc, 24*time.Hour, env.svc.Log)

	sweeper.Sweep(context.Background())
	rows := env.rows(t, addr)
	assert.Equal(t, models.StatusPending, rows[1].Status)

	base := env.svc.Now
	env.svc.Now = func() time.Time { return base().Add(25 * time.Hour) }
	sweeper.Sweep(context.Background())

	rows = env.rows(t, addr)
	assert.Equal(t, models.StatusFailed, rows[1].Status)
	assert.True(t, dec("20").Equal(env.balance(t, addr)))
}

func TestMemoryResultCacheExpiry(t *testing.T) {
	c := NewMemoryResultCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set(context.Background(), "k", &TransactionResult{TransactionId: "t1"}, time.Minute)
	res, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, "t1", res.TransactionId)

	now = now.Add(time.Minute)
	_, ok = c.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
