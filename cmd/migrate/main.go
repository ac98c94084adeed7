package main

import (
	"cupgame-wallet/internal/config"
	"cupgame-wallet/internal/database"
	"cupgame-wallet/internal/observability"
)

func main() {
	log := observability.NewLogger("migrate")

	// Load environment variables
	if loaded := config.LoadDotEnv(".env", "../.env"); loaded == "" {
		log.Info().Msg("No .env file found, using system environment variables")
	}
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	log.Info().Str("driver", cfg.Database.Driver).Msg("Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations completed successfully!")
}
