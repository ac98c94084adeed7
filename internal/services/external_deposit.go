package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cupgame-wallet/internal/lock"
	"cupgame-wallet/internal/models"
	"cupgame-wallet/internal/observability"
	"cupgame-wallet/internal/svcerr"
	"cupgame-wallet/internal/worker"
)

const maxIdempotencyKeyLength = 128

type ExternalDepositRequest struct {
	WalletAddress  string
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
	// WalletHint is forwarded to the payment provider as payer metadata only.
	WalletHint string
}

// DepositExternal records a pending deposit and asks the payment gateway to collect
// it. Repeating a request with the same idempotency key returns the first result.
// The wallet balance only changes when the gateway confirms the deposit.
func (s *WalletService) DepositExternal(ctx context.Context, req ExternalDepositRequest) (*TransactionResult, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, svcerr.ErrMissingIdempotency
	}
	if len(key) > maxIdempotencyKeyLength {
		return nil, fmt.Errorf("%w: idempotency key longer than %d characters", svcerr.ErrValidation, maxIdempotencyKeyLength)
	}

	if res, ok := s.Results.Get(ctx, key); ok {
		if !matchesDeposit(res, req) {
			return nil, svcerr.ErrIdempotencyConflict
		}
		observability.IdempotentReplays.WithLabelValues("cache").Inc()
		return res, nil
	}

	existing, err := s.Store.TransactionByIdempotencyKey(s.Store.DB.WithContext(ctx), key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		res := resultFromTransaction(existing)
		if !matchesDeposit(res, req) {
			return nil, svcerr.ErrIdempotencyConflict
		}
		observability.IdempotentReplays.WithLabelValues("db").Inc()
		s.Results.Set(ctx, key, res, s.IdempotencyTTL)
		return res, nil
	}

	if err := s.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	trx, replayed, err := s.recordPendingDeposit(ctx, req, key)
	if err != nil {
		observability.LedgerOperations.WithLabelValues("deposit_external", "error").Inc()
		return nil, err
	}
	if replayed {
		res := resultFromTransaction(trx)
		if !matchesDeposit(res, req) {
			return nil, svcerr.ErrIdempotencyConflict
		}
		s.Results.Set(ctx, key, res, s.IdempotencyTTL)
		return res, nil
	}

	wallet, err := s.Store.WalletByAddress(ctx, trx.WalletAddress)
	currency := s.Limits.Currency
	if err == nil {
		currency = wallet.Currency
	}

	err = s.Gateway.InitiateDeposit(ctx, worker.DepositInitiation{
		TransactionId:  trx.ID,
		WalletAddress:  trx.WalletAddress,
		Amount:         trx.Amount.StringFixed(2),
		Currency:       currency,
		Description:    req.Description,
		IdempotencyKey: key,
		WalletHint:     req.WalletHint,
	})
	if err != nil {
		observability.LedgerOperations.WithLabelValues("deposit_external", "error").Inc()
		s.Log.Error().Err(err).Str("wallet", trx.WalletAddress).Str("transaction_id", trx.ID).
			Msg("payment initiation failed, pending deposit left for reconciliation")
		return nil, fmt.Errorf("%w: %w", svcerr.ErrPaymentInitiation, err)
	}

	observability.LedgerOperations.WithLabelValues("deposit_external", "ok").Inc()
	s.Log.Info().Str("wallet", trx.WalletAddress).Str("transaction_id", trx.ID).Msg("external deposit pending")

	res := resultFromTransaction(trx)
	s.Results.Set(ctx, key, res, s.IdempotencyTTL)
	return res, nil
}

// matchesDeposit reports whether a stored result was produced by the same
// deposit request. A key only replays for the wallet and amount it was first used with.
func matchesDeposit(res *TransactionResult, req ExternalDepositRequest) bool {
	return res.Type == models.TrxDeposit &&
		res.WalletAddress == req.WalletAddress &&
		res.Amount.Equal(req.Amount)
}

// recordPendingDeposit writes the pending row. replayed is true when another
// request with the same key won the race and trx is that request's row.
func (s *WalletService) recordPendingDeposit(ctx context.Context, req ExternalDepositRequest, key string) (trx *models.Transaction, replayed bool, err error) {
	h, err := s.Locks.Acquire(ctx, lock.BalanceKey(req.WalletAddress), s.LockTimeout)
	if err != nil {
		return nil, false, err
	}
	defer h.Release()

	err = s.Store.WithTx(ctx, func(tx *gorm.DB) error {
		existing, err := s.Store.TransactionByIdempotencyKey(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			trx, replayed = existing, true
			return nil
		}

		wallet, err := s.Store.LockWallet(tx, req.WalletAddress)
		if err != nil {
			return err
		}
		if wallet.IsFrozen {
			return svcerr.ErrWalletFrozen
		}
		if err := s.checkDailyLimit(tx, wallet, req.Amount); err != nil {
			return err
		}

		keyCopy := key
		trx = s.newTransaction(wallet, models.TrxDeposit, req.Amount, wallet.Balance, wallet.Balance.Add(req.Amount),
			models.StatusPending, describe("External deposit", req.Description), &keyCopy)
		return s.Store.AppendTransaction(tx, trx)
	})
	if err == nil {
		return trx, replayed, nil
	}

	if svcerr.IsPersistence(err) {
		// a concurrent request with the same key may have inserted first
		if existing, lookupErr := s.Store.TransactionByIdempotencyKey(s.Store.DB.WithContext(ctx), key); lookupErr == nil && existing != nil {
			return existing, true, nil
		}
	}
	return nil, false, err
}

// ConfirmExternalDeposit settles a pending external deposit reported by the
// gateway. Only a successful confirmation credits the wallet. Confirming a row
// that is already final returns it unchanged.
func (s *WalletService) ConfirmExternalDeposit(ctx context.Context, idempotencyKey string, succeeded bool) (*TransactionResult, error) {
	pending, err := s.Store.TransactionByIdempotencyKey(s.Store.DB.WithContext(ctx), idempotencyKey)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, svcerr.ErrTransactionNotFound
	}

	h, err := s.Locks.Acquire(ctx, lock.BalanceKey(pending.WalletAddress), s.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	var (
		res      *TransactionResult
		credited *models.Transaction
	)
	err = s.Store.WithTx(ctx, func(tx *gorm.DB) error {
		trx, err := s.Store.TransactionByIdempotencyKey(tx, idempotencyKey)
		if err != nil {
			return err
		}
		if trx == nil {
			return svcerr.ErrTransactionNotFound
		}
		if trx.Status != models.StatusPending {
			res = resultFromTransaction(trx)
			return nil
		}

		if succeeded {
			wallet, err := s.Store.LockWallet(tx, trx.WalletAddress)
			if err != nil {
				return err
			}
			trx.BeforeBalance = wallet.Balance
			trx.AfterBalance = wallet.Balance.Add(trx.Amount)
			trx.Status = models.StatusCompleted
			wallet.Balance = trx.AfterBalance
			if err := s.Store.UpdateBalance(tx, wallet); err != nil {
				return err
			}
			credited = trx
		} else {
			trx.Status = models.StatusFailed
		}

		ok, err := s.Store.FinalizePending(tx, trx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: transaction %s is no longer pending", svcerr.ErrConflict, trx.ID)
		}
		res = resultFromTransaction(trx)
		return nil
	})
	if err != nil {
		if !svcerr.IsDomain(err) {
			err = svcerr.Persistence(err)
		}
		return nil, err
	}

	s.Results.Set(ctx, idempotencyKey, res, s.IdempotencyTTL)
	s.Log.Info().Str("transaction_id", res.TransactionId).Str("status", string(res.Status)).Msg("external deposit finalized")

	if credited != nil {
		s.audit(ctx, &models.FinancialAudit{
			WalletAddress:   credited.WalletAddress,
			Action:          "ExternalDepositConfirmed",
			Amount:          credited.Amount,
			PreviousBalance: credited.BeforeBalance,
			NewBalance:      credited.AfterBalance,
			Reference:       credited.ID,
		})
	}
	return res, nil
}

// ExpireStalePending fails external deposits that stayed pending longer than maxAge.
func (s *WalletService) ExpireStalePending(ctx context.Context, maxAge time.Duration) (int, error) {
	rows, err := s.Store.StalePendingDeposits(ctx, s.Now().Add(-maxAge), 100)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, trx := range rows {
		if trx.IdempotencyKey == nil {
			continue
		}
		if _, err := s.ConfirmExternalDeposit(ctx, *trx.IdempotencyKey, false); err != nil {
			s.Log.Error().Err(err).Str("transaction_id", trx.ID).Msg("failed to expire pending deposit")
			continue
		}
		expired++
	}
	return expired, nil
}
