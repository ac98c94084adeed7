package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cupgame-wallet/internal/models"
	"cupgame-wallet/internal/svcerr"
)

// LedgerStore is the durable side of the wallet ledger. Methods that take a
// *gorm.DB run inside the caller's transaction.
type LedgerStore struct {
	DB *gorm.DB
}

func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{DB: db}
}

// WithTx runs fn in a database transaction. Returning an error rolls back.
func (s *LedgerStore) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.DB.WithContext(ctx).Transaction(fn)
}

// LockWallet reloads the wallet and takes a row lock on it for the rest of tx.
func (s *LedgerStore) LockWallet(tx *gorm.DB, address string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("wallet_address = ?", address).
		First(&wallet).Error
	if err != nil {
		return nil, walletErr(err)
	}
	return &wallet, nil
}

func (s *LedgerStore) WalletByAddress(ctx context.Context, address string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.DB.WithContext(ctx).Where("wallet_address = ?", address).First(&wallet).Error; err != nil {
		return nil, walletErr(err)
	}
	return &wallet, nil
}

func (s *LedgerStore) WalletByUser(ctx context.Context, userId int) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userId).First(&wallet).Error; err != nil {
		return nil, walletErr(err)
	}
	return &wallet, nil
}

// CreateWallet inserts a wallet together with the row recording its opening balance.
func (s *LedgerStore) CreateWallet(ctx context.Context, wallet *models.Wallet, opening *models.Transaction) error {
	return s.WithTx(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Wallet{}).Where("user_id = ?", wallet.UserId).Count(&count).Error; err != nil {
			return svcerr.Persistence(err)
		}
		if count > 0 {
			return svcerr.ErrWalletExists
		}
		if err := tx.Create(wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return svcerr.ErrWalletExists
			}
			return svcerr.Persistence(err)
		}
		if opening == nil {
			return nil
		}
		opening.WalletId = wallet.ID
		return s.AppendTransaction(tx, opening)
	})
}

func (s *LedgerStore) UpdateBalance(tx *gorm.DB, wallet *models.Wallet) error {
	err := tx.Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Updates(map[string]interface{}{
			"balance":    wallet.Balance,
			"updated_at": time.Now().UTC(),
		}).Error
	return svcerr.Persistence(err)
}

func (s *LedgerStore) SetFrozen(ctx context.Context, address string, frozen bool) error {
	res := s.DB.WithContext(ctx).Model(&models.Wallet{}).
		Where("wallet_address = ?", address).
		Update("is_frozen", frozen)
	if res.Error != nil {
		return svcerr.Persistence(res.Error)
	}
	if res.RowsAffected == 0 {
		return svcerr.ErrWalletNotFound
	}
	return nil
}

func (s *LedgerStore) AppendTransaction(tx *gorm.DB, trx *models.Transaction) error {
	return svcerr.Persistence(tx.Create(trx).Error)
}

// DepositsSince sums deposit amounts of a wallet that are completed or still pending.
func (s *LedgerStore) DepositsSince(tx *gorm.DB, walletId uint, since time.Time) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := tx.Model(&models.Transaction{}).
		Where("wallet_id = ? AND transaction_type = ? AND status IN ? AND created_at >= ?",
			walletId, models.TrxDeposit,
			[]models.TransactionStatus{models.StatusCompleted, models.StatusPending}, since).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, svcerr.Persistence(err)
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}

// TransactionByIdempotencyKey returns nil, nil when no row carries key.
func (s *LedgerStore) TransactionByIdempotencyKey(tx *gorm.DB, key string) (*models.Transaction, error) {
	var trx models.Transaction
	err := tx.Where("idempotency_key = ?", key).First(&trx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, svcerr.Persistence(err)
	}
	return &trx, nil
}

// FinalizePending moves a pending row to its final status. It reports false when
// the row was no longer pending.
func (s *LedgerStore) FinalizePending(tx *gorm.DB, trx *models.Transaction) (bool, error) {
	res := tx.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", trx.ID, models.StatusPending).
		Updates(map[string]interface{}{
			"status":         trx.Status,
			"before_balance": trx.BeforeBalance,
			"after_balance":  trx.AfterBalance,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, svcerr.Persistence(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *LedgerStore) ListTransactions(ctx context.Context, walletAddress string, page, limit int) ([]models.Transaction, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Transaction{}).Where("wallet_address = ?", walletAddress)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, svcerr.Persistence(err)
	}

	var rows []models.Transaction
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, svcerr.Persistence(err)
	}
	return rows, total, nil
}

func (s *LedgerStore) CompletedTransactions(ctx context.Context, walletId uint) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.DB.WithContext(ctx).
		Where("wallet_id = ? AND status = ?", walletId, models.StatusCompleted).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, svcerr.Persistence(err)
	}
	return rows, nil
}

// StalePendingDeposits lists external deposits still pending that were created before cutoff.
func (s *LedgerStore) StalePendingDeposits(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.DB.WithContext(ctx).
		Where("status = ? AND transaction_type = ? AND created_at < ?", models.StatusPending, models.TrxDeposit, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, svcerr.Persistence(err)
	}
	return rows, nil
}

func (s *LedgerStore) InsertAudit(ctx context.Context, audit *models.FinancialAudit) error {
	return svcerr.Persistence(s.DB.WithContext(ctx).Create(audit).Error)
}

func walletErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return svcerr.ErrWalletNotFound
	}
	return svcerr.Persistence(err)
}
