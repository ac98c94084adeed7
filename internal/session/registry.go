package session

import (
	"sync"

	"github.com/shopspring/decimal"

	"cupgame-wallet/internal/models"
)

type State int

const (
	Idle State = iota
	AwaitingOutcome
)

func (s State) String() string {
	if s == AwaitingOutcome {
		return "awaiting_outcome"
	}
	return "idle"
}

// Entry is the in-memory state of one game session. Every field below mu is
// guarded by it.
type Entry struct {
	token string

	mu           sync.Mutex
	sessionID    string
	userID       int
	wallet       models.Wallet
	pendingDelta decimal.Decimal
	roundCount   int
	lastBet      decimal.Decimal
	target       int
	state        State
	connID       string
	disconnected bool
	removed      bool
	// settleKey is the idempotency key of the settlement in flight. It is kept
	// across failed attempts and cleared once the ledger answers.
	settleKey string
	settled   int
}

func newEntry(token string, session *models.GameSession, wallet *models.Wallet) *Entry {
	return &Entry{
		token:     token,
		sessionID: session.ID,
		userID:    session.UserId,
		wallet:    *wallet,
	}
}

func (e *Entry) projectedBalance() decimal.Decimal {
	return e.wallet.Balance.Add(e.pendingDelta)
}

// Snapshot is a point-in-time copy of an entry for callers outside the package.
type Snapshot struct {
	SessionID        string
	WalletAddress    string
	DurableBalance   decimal.Decimal
	PendingDelta     decimal.Decimal
	ProjectedBalance decimal.Decimal
	RoundCount       int
	Settlements      int
	State            State
	ConnID           string
	Disconnected     bool
}

func (e *Entry) snapshot() Snapshot {
	return Snapshot{
		SessionID:        e.sessionID,
		WalletAddress:    e.wallet.WalletAddress,
		DurableBalance:   e.wallet.Balance,
		PendingDelta:     e.pendingDelta,
		ProjectedBalance: e.projectedBalance(),
		RoundCount:       e.roundCount,
		Settlements:      e.settled,
		State:            e.state,
		ConnID:           e.connID,
		Disconnected:     e.disconnected,
	}
}

// Registry maps session tokens to entries.
type Registry struct {
	entries sync.Map
}

func (r *Registry) Load(token string) (*Entry, bool) {
	v, ok := r.entries.Load(token)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// LoadOrStore returns the entry already stored for e's token, or stores e.
func (r *Registry) LoadOrStore(e *Entry) (actual *Entry, loaded bool) {
	v, loaded := r.entries.LoadOrStore(e.token, e)
	return v.(*Entry), loaded
}

// Remove deletes e if it is still the entry stored for its token. The caller
// holds e.mu.
func (r *Registry) Remove(e *Entry) bool {
	if !r.entries.CompareAndDelete(e.token, e) {
		return false
	}
	e.removed = true
	return true
}

func (r *Registry) Range(fn func(e *Entry) bool) {
	r.entries.Range(func(_, v any) bool {
		return fn(v.(*Entry))
	})
}

func (r *Registry) Len() int {
	n := 0
	r.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
