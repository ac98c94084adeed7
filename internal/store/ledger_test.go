package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cupgame-wallet/internal/config"
	"cupgame-wallet/internal/database"
	"cupgame-wallet/internal/models"
	"cupgame-wallet/internal/svcerr"
)

func newTestStore(t *testing.T) *LedgerStore {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewLedgerStore(db)
}

func seedWallet(t *testing.T, s *LedgerStore, userId int, address string, balance string) *models.Wallet {
	t.Helper()
	w := &models.Wallet{
		UserId:        userId,
		WalletAddress: address,
		Balance:       decimal.RequireFromString(balance),
		Currency:      "ZAR",
	}
	require.NoError(t, s.CreateWallet(context.Background(), w, nil))
	return w
}

func row(w *models.Wallet, typ models.TransactionType, status models.TransactionStatus, amount string, at time.Time) *models.Transaction {
	return &models.Transaction{
		ID:            uuid.NewString(),
		WalletId:      w.ID,
		WalletAddress: w.WalletAddress,
		Amount:        decimal.RequireFromString(amount),
		TrxType:       typ,
		Status:        status,
		BeforeBalance: w.Balance,
		AfterBalance:  w.Balance,
		CreatedAt:     at,
	}
}

func TestCreateWalletRejectsSecondWalletForUser(t *testing.T) {
	s := newTestStore(t)
	seedWallet(t, s, 7, "Wone", "20.00")

	err := s.CreateWallet(context.Background(), &models.Wallet{UserId: 7, WalletAddress: "Wtwo", Currency: "ZAR"}, nil)
	assert.ErrorIs(t, err, svcerr.ErrWalletExists)
}

func TestLockWalletNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := s.LockWallet(tx, "Wmissing")
		return err
	})
	assert.ErrorIs(t, err, svcerr.ErrWalletNotFound)

	_, err = s.WalletByUser(context.Background(), 404)
	assert.ErrorIs(t, err, svcerr.ErrWalletNotFound)
}

func TestUpdateBalanceAndFreeze(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := seedWallet(t, s, 1, "Wa", "20.00")

	w.Balance = decimal.RequireFromString("35.50")
	require.NoError(t, s.WithTx(ctx, func(tx *gorm.DB) error { return s.UpdateBalance(tx, w) }))
	require.NoError(t, s.SetFrozen(ctx, "Wa", true))

	got, err := s.WalletByAddress(ctx, "Wa")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("35.50").Equal(got.Balance))
	assert.True(t, got.IsFrozen)

	assert.ErrorIs(t, s.SetFrozen(ctx, "Wnone", true), svcerr.ErrWalletNotFound)
}

func TestDepositsSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := seedWallet(t, s, 1, "Wa", "0")
	now := time.Now().UTC()

	rows := []*models.Transaction{
		row(w, models.TrxDeposit, models.StatusCompleted, "100.00", now),
		row(w, models.TrxDeposit, models.StatusPending, "50.25", now),
		row(w, models.TrxDeposit, models.StatusFailed, "999.00", now),
		row(w, models.TrxWithdraw, models.StatusCompleted, "10.00", now),
		row(w, models.TrxDeposit, models.StatusCompleted, "70.00", now.Add(-48*time.Hour)),
	}
	require.NoError(t, s.WithTx(ctx, func(tx *gorm.DB) error {
		for _, r := range rows {
			if err := s.AppendTransaction(tx, r); err != nil {
				return err
			}
		}
		return nil
	}))

	var sum decimal.Decimal
	require.NoError(t, s.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		sum, err = s.DepositsSince(tx, w.ID, now.Add(-time.Hour))
		return err
	}))
	assert.True(t, decimal.RequireFromString("150.25").Equal(sum), sum.String())
}

func TestIdempotencyKeyLookupAndFinalize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := seedWallet(t, s, 1, "Wa", "10")

	key := "ext-1"
	pending := row(w, models.TrxDeposit, models.StatusPending, "5.00", time.Now().UTC())
	pending.IdempotencyKey = &key

	require.NoError(t, s.WithTx(ctx, func(tx *gorm.DB) error { return s.AppendTransaction(tx, pending) }))

	found, err := s.TransactionByIdempotencyKey(s.DB, key)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, pending.ID, found.ID)

	missing, err := s.TransactionByIdempotencyKey(s.DB, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	dup := row(w, models.TrxDeposit, models.StatusPending, "5.00", time.Now().UTC())
	dup.IdempotencyKey = &key
	err = s.WithTx(ctx, func(tx *gorm.DB) error { return s.AppendTransaction(tx, dup) })
	assert.True(t, svcerr.IsPersistence(err))

	found.Status = models.StatusCompleted
	ok, err := s.FinalizePending(s.DB, found)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.FinalizePending(s.DB, found)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListTransactionsPaginates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := seedWallet(t, s, 1, "Wa", "0")
	start := time.Now().UTC().Add(-time.Hour)

	require.NoError(t, s.WithTx(ctx, func(tx *gorm.DB) error {
		for i := 0; i < 5; i++ {
			if err := s.AppendTransaction(tx, row(w, models.TrxBet, models.StatusCompleted, "1.00", start.Add(time.Duration(i)*time.Minute))); err != nil {
				return err
			}
		}
		return nil
	}))

	rows, total, err := s.ListTransactions(ctx, "Wa", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].CreatedAt.After(rows[1].CreatedAt))

	rows, _, err = s.ListTransactions(ctx, "Wa", 3, 2)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestStalePendingDeposits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := seedWallet(t, s, 1, "Wa", "0")
	now := time.Now().UTC()

	old := row(w, models.TrxDeposit, models.StatusPending, "5.00", now.Add(-30*time.Hour))
	fresh := row(w, models.TrxDeposit, models.StatusPending, "5.00", now)
	require.NoError(t, s.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.AppendTransaction(tx, old); err != nil {
			return err
		}
		return s.AppendTransaction(tx, fresh)
	}))

	rows, err := s.StalePendingDeposits(ctx, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, old.ID, rows[0].ID)
}
