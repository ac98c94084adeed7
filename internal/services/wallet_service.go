package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cupgame-wallet/internal/config"
	"cupgame-wallet/internal/lock"
	"cupgame-wallet/internal/models"
	"cupgame-wallet/internal/observability"
	"cupgame-wallet/internal/store"
	"cupgame-wallet/internal/svcerr"
	"cupgame-wallet/pkg/common"
)

type WalletService struct {
	Store          *store.LedgerStore
	Locks          lock.Provider
	Audit          AuditSink
	Gateway        PaymentGateway
	Results        ResultCache
	Limits         config.WalletConfig
	LockTimeout    time.Duration
	IdempotencyTTL time.Duration
	Log            zerolog.Logger
	Now            func() time.Time
}

func NewWalletService(st *store.LedgerStore, locks lock.Provider, audit AuditSink, gateway PaymentGateway, results ResultCache, cfg *config.Config, log zerolog.Logger) *WalletService {
	return &WalletService{
		Store:          st,
		Locks:          locks,
		Audit:          audit,
		Gateway:        gateway,
		Results:        results,
		Limits:         cfg.Wallet,
		LockTimeout:    cfg.Lock.Timeout,
		IdempotencyTTL: cfg.Idempotency.TTL,
		Log:            log,
		Now:            func() time.Time { return time.Now().UTC() },
	}
}

// TransactionResult is what callers learn about a ledger operation. Balance is the
// durable wallet balance; for a pending deposit TentativeBalance is the balance
// it will produce once confirmed.
type TransactionResult struct {
	TransactionId    string                   `json:"transaction_id"`
	WalletAddress    string                   `json:"wallet_address"`
	Type             models.TransactionType   `json:"type"`
	Status           models.TransactionStatus `json:"status"`
	Amount           decimal.Decimal          `json:"amount"`
	Balance          decimal.Decimal          `json:"balance"`
	TentativeBalance *decimal.Decimal         `json:"tentative_balance,omitempty"`
}

func resultFromTransaction(trx *models.Transaction) *TransactionResult {
	res := &TransactionResult{
		TransactionId: trx.ID,
		WalletAddress: trx.WalletAddress,
		Type:          trx.TrxType,
		Status:        trx.Status,
		Amount:        trx.Amount,
	}
	switch trx.Status {
	case models.StatusCompleted:
		res.Balance = trx.AfterBalance
	case models.StatusPending:
		res.Balance = trx.BeforeBalance
		tentative := trx.AfterBalance
		res.TentativeBalance = &tentative
	default:
		res.Balance = trx.BeforeBalance
	}
	return res
}

// ValidateAmount accepts positive amounts with at most two decimal places that do
// not exceed the single transaction maximum.
func (s *WalletService) ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", svcerr.ErrInvalidAmount)
	}
	if !amount.Equal(amount.Truncate(2)) {
		return fmt.Errorf("%w: amount cannot have more than two decimal places", svcerr.ErrInvalidAmount)
	}
	if amount.GreaterThan(s.Limits.MaxSingleTransaction) {
		return fmt.Errorf("%w: amount exceeds the single transaction maximum of %s",
			svcerr.ErrInvalidAmount, s.Limits.MaxSingleTransaction.StringFixed(2))
	}
	return nil
}

// CreateWallet opens a wallet for a user credited with the starting bonus.
func (s *WalletService) CreateWallet(ctx context.Context, userId int) (*models.Wallet, error) {
	address, err := common.GenerateWalletAddress()
	if err != nil {
		return nil, err
	}

	now := s.Now()
	wallet := &models.Wallet{
		UserId:        userId,
		WalletAddress: address,
		Balance:       s.Limits.StartingBonus,
		Currency:      s.Limits.Currency,
	}

	var opening *models.Transaction
	if s.Limits.StartingBonus.IsPositive() {
		opening = &models.Transaction{
			ID:            uuid.NewString(),
			WalletAddress: address,
			Amount:        s.Limits.StartingBonus,
			TrxType:       models.TrxBonus,
			Description:   "Registration bonus",
			Status:        models.StatusCompleted,
			BeforeBalance: decimal.Zero,
			AfterBalance:  s.Limits.StartingBonus,
			CreatedAt:     now,
		}
	}

	if err := s.Store.CreateWallet(ctx, wallet, opening); err != nil {
		return nil, err
	}

	s.Log.Info().Int("user_id", userId).Str("wallet", address).Msg("wallet created")
	s.audit(ctx, &models.FinancialAudit{
		WalletAddress:   address,
		Action:          "WalletCreated",
		Amount:          s.Limits.StartingBonus,
		PreviousBalance: decimal.Zero,
		NewBalance:      s.Limits.StartingBonus,
		Reference:       "registration",
	})
	return wallet, nil
}

func (s *WalletService) Deposit(ctx context.Context, walletAddress string, amount decimal.Decimal, reference string) (*TransactionResult, error) {
	if err := s.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return s.apply(ctx, mutation{
		op:          "deposit",
		address:     walletAddress,
		delta:       amount,
		trxType:     models.TrxDeposit,
		description: describe("Deposit", reference),
		auditAction: "Deposit",
		check: func(tx *gorm.DB, w *models.Wallet) error {
			if w.IsFrozen {
				return svcerr.ErrWalletFrozen
			}
			return s.checkDailyLimit(tx, w, amount)
		},
	})
}

func (s *WalletService) Withdraw(ctx context.Context, walletAddress string, amount decimal.Decimal, reference string) (*TransactionResult, error) {
	if err := s.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return s.apply(ctx, mutation{
		op:          "withdraw",
		address:     walletAddress,
		delta:       amount.Neg(),
		trxType:     models.TrxWithdraw,
		description: describe("Withdrawal", reference),
		auditAction: "Withdraw",
		check: func(tx *gorm.DB, w *models.Wallet) error {
			if w.IsFrozen {
				return svcerr.ErrWalletFrozen
			}
			return nil
		},
	})
}

// Settle applies a signed game delta exactly once per idempotency key. A row that
// already carries the key is returned without applying the delta again.
func (s *WalletService) Settle(ctx context.Context, walletAddress string, delta decimal.Decimal, idempotencyKey string) (*TransactionResult, error) {
	if delta.IsZero() {
		return nil, fmt.Errorf("%w: settlement delta is zero", svcerr.ErrInvalidAmount)
	}
	if idempotencyKey == "" {
		return nil, svcerr.ErrMissingIdempotency
	}

	trxType := models.TrxPayout
	if delta.IsNegative() {
		trxType = models.TrxBet
	}
	return s.apply(ctx, mutation{
		op:             "settle",
		address:        walletAddress,
		delta:          delta,
		trxType:        trxType,
		description:    "Game session settlement",
		auditAction:    "Settlement",
		idempotencyKey: &idempotencyKey,
	})
}

type mutation struct {
	op             string
	address        string
	delta          decimal.Decimal
	trxType        models.TransactionType
	description    string
	auditAction    string
	idempotencyKey *string
	check          func(tx *gorm.DB, w *models.Wallet) error
}

// apply is the single read-modify-write path for completed balance changes:
// wallet lock, then a DB transaction with the wallet row reloaded under FOR UPDATE.
func (s *WalletService) apply(ctx context.Context, m mutation) (res *TransactionResult, err error) {
	start := time.Now()
	defer func() {
		observability.LedgerOperations.WithLabelValues(m.op, observability.Outcome(err)).Inc()
		observability.LedgerOperationDuration.WithLabelValues(m.op).Observe(time.Since(start).Seconds())
	}()

	h, err := s.Locks.Acquire(ctx, lock.BalanceKey(m.address), s.LockTimeout)
	if err != nil {
		s.Log.Warn().Err(err).Str("wallet", m.address).Str("op", m.op).Msg("could not acquire wallet lock")
		return nil, err
	}
	defer h.Release()

	var applied *models.Transaction
	err = s.Store.WithTx(ctx, func(tx *gorm.DB) error {
		if m.idempotencyKey != nil {
			existing, err := s.Store.TransactionByIdempotencyKey(tx, *m.idempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.WalletAddress != m.address {
					return svcerr.ErrIdempotencyConflict
				}
				res = resultFromTransaction(existing)
				return nil
			}
		}

		wallet, err := s.Store.LockWallet(tx, m.address)
		if err != nil {
			return err
		}
		if m.check != nil {
			if err := m.check(tx, wallet); err != nil {
				return err
			}
		}

		before := wallet.Balance
		after := before.Add(m.delta)
		if after.IsNegative() {
			return svcerr.ErrInsufficientFunds
		}

		wallet.Balance = after
		if err := s.Store.UpdateBalance(tx, wallet); err != nil {
			return err
		}

		trx := s.newTransaction(wallet, m.trxType, m.delta.Abs(), before, after, models.StatusCompleted, m.description, m.idempotencyKey)
		if err := s.Store.AppendTransaction(tx, trx); err != nil {
			return err
		}
		applied = trx
		res = resultFromTransaction(trx)
		return nil
	})
	if err != nil {
		if !svcerr.IsDomain(err) {
			err = svcerr.Persistence(err)
		}
		s.Log.Info().Err(err).Str("wallet", m.address).Str("op", m.op).Msg("ledger operation rejected")
		return nil, err
	}

	if applied == nil {
		observability.IdempotentReplays.WithLabelValues("db").Inc()
		return res, nil
	}

	s.Log.Info().
		Str("wallet", m.address).
		Str("op", m.op).
		Str("transaction_id", applied.ID).
		Str("amount", applied.Amount.StringFixed(2)).
		Str("balance", applied.AfterBalance.StringFixed(2)).
		Msg("ledger operation applied")

	s.audit(ctx, &models.FinancialAudit{
		WalletAddress:   m.address,
		Action:          m.auditAction,
		Amount:          applied.Amount,
		PreviousBalance: applied.BeforeBalance,
		NewBalance:      applied.AfterBalance,
		Reference:       applied.ID,
	})
	return res, nil
}

func (s *WalletService) checkDailyLimit(tx *gorm.DB, w *models.Wallet, amount decimal.Decimal) error {
	if !s.Limits.MaxDailyDeposit.IsPositive() {
		return nil
	}
	today, err := s.Store.DepositsSince(tx, w.ID, startOfDay(s.Now()))
	if err != nil {
		return err
	}
	if today.Add(amount).GreaterThan(s.Limits.MaxDailyDeposit) {
		return svcerr.ErrDailyLimitExceeded
	}
	return nil
}

func (s *WalletService) newTransaction(w *models.Wallet, typ models.TransactionType, amount, before, after decimal.Decimal, status models.TransactionStatus, description string, key *string) *models.Transaction {
	return &models.Transaction{
		ID:             uuid.NewString(),
		WalletId:       w.ID,
		WalletAddress:  w.WalletAddress,
		Amount:         amount,
		TrxType:        typ,
		Description:    description,
		Status:         status,
		BeforeBalance:  before,
		AfterBalance:   after,
		IdempotencyKey: key,
		CreatedAt:      s.Now(),
	}
}

// audit records a financial audit entry after the ledger change committed.
// Failures are logged and never reach the caller.
func (s *WalletService) audit(ctx context.Context, a *models.FinancialAudit) {
	if s.Audit == nil {
		return
	}
	a.ID = uuid.NewString()
	a.CreatedAt = s.Now()
	if err := s.Audit.Record(context.WithoutCancel(ctx), a); err != nil {
		s.Log.Error().Err(err).Str("wallet", a.WalletAddress).Str("action", a.Action).Msg("failed to write financial audit")
	}
}

func (s *WalletService) GetWallet(ctx context.Context, walletAddress string) (*models.Wallet, error) {
	return s.Store.WalletByAddress(ctx, walletAddress)
}

func (s *WalletService) ListTransactions(ctx context.Context, walletAddress string, page, limit int) (common.PaginationResult, error) {
	if _, err := s.Store.WalletByAddress(ctx, walletAddress); err != nil {
		return common.PaginationResult{}, err
	}
	page, limit = common.NormalizePage(page, limit)
	rows, total, err := s.Store.ListTransactions(ctx, walletAddress, page, limit)
	if err != nil {
		return common.PaginationResult{}, err
	}
	return common.PaginateResponse(rows, total, page, limit, "Transactions fetched"), nil
}

// ReplayBalance recomputes a wallet balance from its completed transactions.
func (s *WalletService) ReplayBalance(ctx context.Context, walletAddress string) (decimal.Decimal, error) {
	wallet, err := s.Store.WalletByAddress(ctx, walletAddress)
	if err != nil {
		return decimal.Zero, err
	}
	rows, err := s.Store.CompletedTransactions(ctx, wallet.ID)
	if err != nil {
		return decimal.Zero, err
	}

	balance := decimal.Zero
	for _, trx := range rows {
		switch trx.TrxType {
		case models.TrxWithdraw, models.TrxBet:
			balance = balance.Sub(trx.Amount)
		default:
			balance = balance.Add(trx.Amount)
		}
	}
	return balance, nil
}

func (s *WalletService) SetFrozen(ctx context.Context, walletAddress string, frozen bool) error {
	if err := s.Store.SetFrozen(ctx, walletAddress, frozen); err != nil {
		return err
	}
	s.Log.Info().Str("wallet", walletAddress).Bool("frozen", frozen).Msg("wallet freeze flag changed")
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func describe(kind, reference string) string {
	if reference == "" {
		return kind
	}
	return kind + ": " + reference
}
