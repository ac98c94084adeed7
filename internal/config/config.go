package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type DatabaseConfig struct {
	Driver   string `env:"DRIVER" envDefault:"mysql"`
	DSN      string `env:"DSN"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"3306"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME" envDefault:"wallet"`
}

type RedisConfig struct {
	Addr     string `env:"URL" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type WalletConfig struct {
	MaxSingleTransaction decimal.Decimal `env:"MAX_SINGLE_TRANSACTION" envDefault:"10000"`
	MaxDailyDeposit      decimal.Decimal `env:"MAX_DAILY_DEPOSIT" envDefault:"50000"`
	StartingBonus        decimal.Decimal `env:"STARTING_BONUS" envDefault:"20.00"`
	Currency             string          `env:"CURRENCY" envDefault:"ZAR"`
}

// OwnershipPolicy decides what happens when a session is used from a connection
// other than the one that currently owns it.
type OwnershipPolicy string

const (
	// OwnershipHandoff lets the newest connection take over the session.
	OwnershipHandoff OwnershipPolicy = "handoff"
	// OwnershipStrict rejects calls from any connection but the owner.
	OwnershipStrict OwnershipPolicy = "strict"
)

type GameConfig struct {
	BatchSize       int             `env:"BATCH_SIZE" envDefault:"10"`
	FlushInterval   time.Duration   `env:"FLUSH_INTERVAL" envDefault:"5s"`
	OwnershipPolicy OwnershipPolicy `env:"OWNERSHIP_POLICY" envDefault:"handoff"`
}

type LockConfig struct {
	Backend  string        `env:"BACKEND" envDefault:"local"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"5s"`
	LeaseTTL time.Duration `env:"LEASE_TTL" envDefault:"30s"`
}

type IdempotencyConfig struct {
	Backend string        `env:"BACKEND" envDefault:"memory"`
	TTL     time.Duration `env:"TTL" envDefault:"10m"`
}

type AuditConfig struct {
	Mode string `env:"MODE" envDefault:"db"`
}

type PaymentConfig struct {
	ProviderURL   string        `env:"PROVIDER_URL"`
	PendingExpiry time.Duration `env:"PENDING_EXPIRY" envDefault:"24h"`
	SweepSchedule string        `env:"SWEEP_SCHEDULE" envDefault:"@hourly"`
}

type Config struct {
	Port        string            `env:"PORT" envDefault:"8080"`
	GrpcPort    string            `env:"GRPC_PORT" envDefault:"50051"`
	GinMode     string            `env:"GIN_MODE"`
	Database    DatabaseConfig    `envPrefix:"DB_"`
	Redis       RedisConfig       `envPrefix:"REDIS_"`
	Wallet      WalletConfig      `envPrefix:"WALLET_"`
	Game        GameConfig        `envPrefix:"GAME_"`
	Lock        LockConfig        `envPrefix:"LOCK_"`
	Idempotency IdempotencyConfig `envPrefix:"IDEMPOTENCY_"`
	Audit       AuditConfig       `envPrefix:"AUDIT_"`
	Payment     PaymentConfig     `envPrefix:"PAYMENT_"`
}

// LoadDotEnv loads the first .env file found among paths. It returns the path
// that was loaded, or "" when the process environment is used as is.
func LoadDotEnv(paths ...string) string {
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Game.OwnershipPolicy {
	case OwnershipHandoff, OwnershipStrict:
	default:
		return fmt.Errorf("unknown GAME_OWNERSHIP_POLICY %q", c.Game.OwnershipPolicy)
	}
	if c.Game.BatchSize < 1 {
		return fmt.Errorf("GAME_BATCH_SIZE must be positive, got %d", c.Game.BatchSize)
	}
	if !c.Wallet.MaxSingleTransaction.IsPositive() {
		return fmt.Errorf("WALLET_MAX_SINGLE_TRANSACTION must be positive")
	}
	switch c.Lock.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.Lock.Backend)
	}
	switch c.Idempotency.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown IDEMPOTENCY_BACKEND %q", c.Idempotency.Backend)
	}
	switch c.Audit.Mode {
	case "db", "queue":
	default:
		return fmt.Errorf("unknown AUDIT_MODE %q", c.Audit.Mode)
	}
	return nil
}
