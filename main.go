package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"cupgame-wallet/internal/config"
	"cupgame-wallet/internal/database"
	grpcServer "cupgame-wallet/internal/grpc"
	"cupgame-wallet/internal/handlers"
	"cupgame-wallet/internal/lock"
	"cupgame-wallet/internal/observability"
	"cupgame-wallet/internal/services"
	"cupgame-wallet/internal/session"
	"cupgame-wallet/internal/store"
)

func main() {
	log := observability.NewLogger("wallet-service")

	if loaded := config.LoadDotEnv(".env", "../.env"); loaded == "" {
		log.Info().Msg("No .env file found, using system environment variables")
	}
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	st := store.NewLedgerStore(db)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	var redisClient *redis.Client
	if cfg.Lock.Backend == "redis" || cfg.Idempotency.Backend == "redis" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer redisClient.Close()
	}

	var locks lock.Provider = lock.NewLocalProvider()
	if cfg.Lock.Backend == "redis" {
		locks = lock.NewRedisProvider(redisClient, cfg.Lock.LeaseTTL, observability.NewLogger("lock"))
	}

	var results services.ResultCache = services.NewMemoryResultCache()
	if cfg.Idempotency.Backend == "redis" {
		results = services.NewRedisResultCache(redisClient, observability.NewLogger("idempotency"))
	}

	var audit services.AuditSink = services.NewDBAuditSink(st)
	if cfg.Audit.Mode == "queue" {
		audit = services.NewQueueAuditSink(asynqClient)
	}

	walletService := services.NewWalletService(st, locks, audit, services.NewQueueGateway(asynqClient), results, cfg,
		observability.NewLogger("wallet"))
	sessionService := services.NewSessionService(st, observability.NewLogger("session"))
	countdown := services.NewCountdownService(observability.NewLogger("countdown"))
	game := session.NewGame(st, walletService, cfg.Game, observability.NewLogger("game"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start Cron Schedulers
	reconciler := session.NewReconciler(game, cfg.Game.FlushInterval, observability.NewLogger("reconciler"))
	reconcilerCron, err := reconciler.Start(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start session reconciler")
	}
	sweeper := services.NewPendingDepositSweeper(walletService, cfg.Payment.PendingExpiry, observability.NewLogger("sweeper"))
	sweeperCron, err := sweeper.StartScheduler(cfg.Payment.SweepSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start pending deposit sweeper")
	}

	grpcSrv := grpcServer.NewServer(observability.NewLogger("grpc"))
	go grpcSrv.WatchHealth(ctx, 10*time.Second, func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	go func() {
		if err := grpcSrv.Serve(ctx, cfg.GrpcPort); err != nil {
			log.Error().Err(err).Msg("gRPC server stopped")
		}
	}()

	router := handlers.Router{
		Wallets:  handlers.NewWalletHandler(walletService),
		Payments: handlers.NewPaymentHandler(walletService),
		Sessions: handlers.NewSessionHandler(sessionService),
		Hub:      handlers.NewHub(game, countdown, observability.NewLogger("websocket")),
		Log:      observability.NewLogger("http"),
	}
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router.Engine()}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("HTTP Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdown(log, srv, game, reconcilerCron.Stop(), sweeperCron.Stop())
}

// shutdown drains HTTP, waits for running cron jobs and settles every session
// still holding a pending delta.
func shutdown(log zerolog.Logger, srv *http.Server, game *session.Game, jobs ...context.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown incomplete")
	}
	for _, done := range jobs {
		select {
		case <-done.Done():
		case <-ctx.Done():
		}
	}

	report := game.FlushAll(ctx)
	log.Info().Int("flushed", report.Flushed).Int("failed", report.Failed).Msg("final session flush finished")
}
