package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cupgame-wallet/internal/config"
	"cupgame-wallet/internal/models"
	"cupgame-wallet/internal/observability"
	"cupgame-wallet/internal/services"
	"cupgame-wallet/internal/svcerr"
)

// Cups is the number of choices in a round.
const Cups = 3

var swapPool = [][2]int{{0, 1}, {1, 2}, {0, 2}, {1, 0}, {2, 1}, {0, 1}}

// Settler applies a signed delta to a wallet at most once per idempotency key.
type Settler interface {
	Settle(ctx context.Context, walletAddress string, delta decimal.Decimal, idempotencyKey string) (*services.TransactionResult, error)
}

// SessionLookup resolves session tokens and wallets from durable storage.
type SessionLookup interface {
	ActiveSessionByToken(ctx context.Context, token string) (*models.GameSession, error)
	WalletByUser(ctx context.Context, userId int) (*models.Wallet, error)
}

type ShuffleDescriptor struct {
	Swaps [][2]int `json:"swaps"`
}

type RoundResult struct {
	IsWin          bool            `json:"isWin"`
	NewBalance     decimal.Decimal `json:"newBalance"`
	RevealedTarget int             `json:"ballIndex"`
}

// Game owns the session registry and runs the bet/select rounds against it.
// Lock order is entry mutex first, wallet lock second. Nothing in this package
// acquires an entry mutex while a wallet lock is held.
type Game struct {
	Sessions  SessionLookup
	Settler   Settler
	BatchSize int
	Policy    config.OwnershipPolicy
	Log       zerolog.Logger

	registry Registry
	randInt  func(n int) (int, error)
}

func NewGame(sessions SessionLookup, settler Settler, cfg config.GameConfig, log zerolog.Logger) *Game {
	batch := cfg.BatchSize
	if batch < 1 {
		batch = 10
	}
	policy := cfg.OwnershipPolicy
	if policy == "" {
		policy = config.OwnershipHandoff
	}
	return &Game{
		Sessions:  sessions,
		Settler:   settler,
		BatchSize: batch,
		Policy:    policy,
		Log:       log,
		randInt:   cryptoInt,
	}
}

func cryptoInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// PlaceBet debits amount from the session's pending delta and hides the ball
// under a random cup. Only the shuffle is returned.
func (g *Game) PlaceBet(ctx context.Context, token, connID string, amount decimal.Decimal) (*ShuffleDescriptor, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return nil, svcerr.ErrInvalidAmount
	}

	e, err := g.acquire(ctx, token, connID, true)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	if e.wallet.IsFrozen {
		return nil, svcerr.ErrWalletFrozen
	}
	if e.projectedBalance().LessThan(amount) {
		return nil, svcerr.ErrInsufficientBalance
	}

	target, err := g.randInt(Cups)
	if err != nil {
		return nil, fmt.Errorf("pick target: %w", err)
	}
	swaps, err := g.shuffle()
	if err != nil {
		return nil, fmt.Errorf("shuffle: %w", err)
	}

	if e.state == AwaitingOutcome {
		g.Log.Debug().Str("session_id", e.sessionID).Msg("unresolved bet forfeited by new bet")
	}
	e.target = target
	e.pendingDelta = e.pendingDelta.Sub(amount)
	e.roundCount++
	e.lastBet = amount
	e.state = AwaitingOutcome

	return &ShuffleDescriptor{Swaps: swaps}, nil
}

// SelectOutcome resolves the bet in flight. A win credits twice the stake.
func (g *Game) SelectOutcome(ctx context.Context, token, connID string, choice int) (*RoundResult, error) {
	e, err := g.acquire(ctx, token, connID, false)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	if choice < 0 || choice >= Cups {
		return nil, svcerr.ErrInvalidChoice
	}
	if e.state != AwaitingOutcome {
		return nil, svcerr.ErrNoBetInFlight
	}

	isWin := choice == e.target
	if isWin {
		e.pendingDelta = e.pendingDelta.Add(e.lastBet.Mul(decimal.NewFromInt(2)))
		observability.RoundsPlayed.WithLabelValues("win").Inc()
	} else {
		observability.RoundsPlayed.WithLabelValues("loss").Inc()
	}
	e.roundCount++
	e.state = Idle
	target := e.target

	if e.roundCount >= g.BatchSize {
		if err := g.flush(ctx, e, "batch"); err != nil {
			g.Log.Error().Err(err).Str("session_id", e.sessionID).Msg("batch flush failed, delta kept pending")
		}
	}

	return &RoundResult{
		IsWin:          isWin,
		NewBalance:     e.projectedBalance(),
		RevealedTarget: target,
	}, nil
}

// CloseSession flushes and forgets the session when its owning connection goes
// away. A close from a connection that no longer owns the session does nothing.
func (g *Game) CloseSession(ctx context.Context, token, connID string) error {
	e, ok := g.registry.Load(token)
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || e.connID != connID {
		return nil
	}

	e.disconnected = true
	if err := g.flush(ctx, e, "disconnect"); err != nil {
		g.Log.Error().Err(err).Str("session_id", e.sessionID).Msg("final flush failed, reconciler will retry")
		return err
	}
	g.remove(e)
	return nil
}

// Snapshot returns a copy of the session state, if the session is held in memory.
func (g *Game) Snapshot(token string) (Snapshot, bool) {
	e, ok := g.registry.Load(token)
	if !ok {
		return Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

func (g *Game) ActiveSessions() int {
	return g.registry.Len()
}

// acquire returns the entry for token with its mutex held and ownership settled.
func (g *Game) acquire(ctx context.Context, token, connID string, create bool) (*Entry, error) {
	for {
		e, ok := g.registry.Load(token)
		if !ok {
			if !create {
				return nil, svcerr.ErrInvalidSession
			}
			fresh, err := g.load(ctx, token)
			if err != nil {
				return nil, err
			}
			var loaded bool
			e, loaded = g.registry.LoadOrStore(fresh)
			if !loaded {
				observability.ActiveSessions.Inc()
				g.Log.Info().Str("session_id", e.sessionID).Str("wallet", e.wallet.WalletAddress).Msg("session loaded")
			}
		}

		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		if err := g.claim(e, connID); err != nil {
			e.mu.Unlock()
			return nil, err
		}
		return e, nil
	}
}

func (g *Game) load(ctx context.Context, token string) (*Entry, error) {
	session, err := g.Sessions.ActiveSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	wallet, err := g.Sessions.WalletByUser(ctx, session.UserId)
	if err != nil {
		return nil, err
	}
	return newEntry(token, session, wallet), nil
}

// claim applies the ownership policy. The caller holds e.mu.
func (g *Game) claim(e *Entry, connID string) error {
	if e.connID == connID {
		return nil
	}
	if e.connID != "" && !e.disconnected && g.Policy == config.OwnershipStrict {
		return svcerr.ErrSessionInUse
	}
	if e.connID != "" {
		g.Log.Info().Str("session_id", e.sessionID).Str("from", e.connID).Str("to", connID).Msg("session handed off")
	}
	e.connID = connID
	e.disconnected = false
	return nil
}

// flush settles the pending delta. The delta is cleared only once the ledger
// confirms the write. A retry after a lost answer reuses the key of the failed
// attempt, so the ledger may report an earlier, smaller delta; what remains is
// settled under a fresh key. The caller holds e.mu.
func (g *Game) flush(ctx context.Context, e *Entry, trigger string) error {
	for !e.pendingDelta.IsZero() {
		if e.settleKey == "" {
			e.settleKey = fmt.Sprintf("settle:%s:%s", e.sessionID, uuid.NewString())
		}

		res, err := g.Settler.Settle(ctx, e.wallet.WalletAddress, e.pendingDelta, e.settleKey)
		if err != nil {
			observability.SessionFlushes.WithLabelValues(trigger, "error").Inc()
			return err
		}

		applied := signedAmount(res)
		e.pendingDelta = e.pendingDelta.Sub(applied)
		e.settleKey = ""
		e.settled++
		e.wallet.Balance = res.Balance
		observability.SessionFlushes.WithLabelValues(trigger, "ok").Inc()
		g.Log.Info().Str("session_id", e.sessionID).Str("wallet", e.wallet.WalletAddress).
			Str("delta", applied.String()).Str("balance", res.Balance.String()).Str("trigger", trigger).
			Msg("session delta settled")
	}
	e.roundCount = 0
	return nil
}

func signedAmount(res *services.TransactionResult) decimal.Decimal {
	if res.Type == models.TrxBet {
		return res.Amount.Neg()
	}
	return res.Amount
}

// remove drops e from the registry. The caller holds e.mu.
func (g *Game) remove(e *Entry) {
	if g.registry.Remove(e) {
		observability.ActiveSessions.Dec()
		g.Log.Info().Str("session_id", e.sessionID).Msg("session removed")
	}
}

func (g *Game) shuffle() ([][2]int, error) {
	swaps := make([][2]int, len(swapPool))
	copy(swaps, swapPool)
	for i := len(swaps) - 1; i > 0; i-- {
		j, err := g.randInt(i + 1)
		if err != nil {
			return nil, err
		}
		swaps[i], swaps[j] = swaps[j], swaps[i]
	}
	return swaps, nil
}
