package main

import (
	"github.com/hibiken/asynq"

	"cupgame-wallet/internal/config"
	"cupgame-wallet/internal/database"
	"cupgame-wallet/internal/observability"
	"cupgame-wallet/internal/store"
	"cupgame-wallet/internal/worker"
)

func main() {
	log := observability.NewLogger("worker")

	// Load env
	if loaded := config.LoadDotEnv("../../.env", ".env"); loaded == "" {
		log.Info().Msg("No .env file found, using system env")
	}
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	w := worker.NewWorker(store.NewLedgerStore(db), cfg.Payment.ProviderURL, log)
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}

	log.Info().Str("redis", cfg.Redis.Addr).Msg("Starting Asynq Worker...")
	if err := worker.StartWorker(redisOpt, w); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
}
