package lock

import (
	"context"
	"fmt"
	"time"

	"cupgame-wallet/internal/svcerr"
)

const DefaultTimeout = 5 * time.Second

var ErrTimeout = fmt.Errorf("lock acquisition timed out: %w", svcerr.ErrLockTimeout)

// Handle is a held lock. Release is safe to call more than once.
type Handle interface {
	Release()
}

// Provider grants mutually exclusive access per key.
type Provider interface {
	Acquire(ctx context.Context, key string, timeout time.Duration) (Handle, error)
}

// BalanceKey is the key guarding every balance mutation of a wallet.
func BalanceKey(walletAddress string) string {
	return "balance:" + walletAddress
}

func effectiveTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}
