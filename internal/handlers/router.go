package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Router struct {
	Wallets  *WalletHandler
	Payments *PaymentHandler
	Sessions *SessionHandler
	Hub      *Hub
	Log      zerolog.Logger
}

func (r Router) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(r.Log))

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "Welcome To Cup Game Wallet service",
		})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	wallets := engine.Group("/wallets")
	wallets.POST("", r.Wallets.CreateWallet)
	wallets.GET("/:address", r.Wallets.GetWallet)
	wallets.GET("/:address/transactions", r.Wallets.GetTransactions)
	wallets.GET("/:address/replay", r.Wallets.ReplayBalance)
	wallets.POST("/:address/deposit", r.Wallets.Deposit)
	wallets.POST("/:address/withdraw", r.Wallets.Withdraw)
	wallets.POST("/:address/deposits/external", r.Wallets.DepositExternal)
	wallets.PUT("/:address/freeze", r.Wallets.SetFrozen)

	engine.POST("/payments/callback", r.Payments.Callback)

	engine.POST("/sessions", r.Sessions.Open)
	engine.POST("/sessions/launch", r.Sessions.Launch)

	engine.GET("/ws", r.Hub.HandleWebSocket)

	return engine
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := log.Info()
		if c.Writer.Status() >= 500 {
			ev = log.Error().Str("errors", c.Errors.String())
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
