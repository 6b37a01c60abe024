package router

import (
	"github.com/gin-gonic/gin"

	"launchpad-backend/internal/middleware"
)

// SetupLaunchpadRoutes registers /api. Reads are public, writes need an operator token.
func SetupLaunchpadRoutes(r *gin.Engine, h Handlers, auth *middleware.AuthMiddleware, localhostOnly *middleware.LocalhostOnly) {
	api := r.Group("/api")
	{
		// ============ Tokens ============
		tokens := api.Group("/tokens")
		{
			tokens.GET("", h.Tokens.ListTokensHandler)
			tokens.GET("/search", h.Tokens.SearchTokensHandler)
			tokens.GET("/created", h.Tokens.ListCreatedTokensHandler)
			tokens.GET("/:address", h.Tokens.GetTokenHandler)
			tokens.GET("/:address/balances", h.Tokens.GetBalancesHandler)
			tokens.GET("/:address/transactions", h.Tokens.GetTransactionsHandler)
			tokens.POST("", auth.RequireAuth(), h.Tokens.CreateTokenHandler)
		}

		api.GET("/price", h.Price.GetPriceHandler)

		// ============ Trading ============
		trade := api.Group("/trade")
		{
			trade.POST("/quote", h.Trade.QuoteHandler)
			trade.GET("/presets", h.Trade.PresetsHandler)

			sessions := trade.Group("/sessions")
			sessions.Use(auth.RequireAuth())
			{
				sessions.POST("", h.Trade.OpenSessionHandler)
				sessions.GET("/:id", h.Trade.GetSessionHandler)
				sessions.PUT("/:id/input", h.Trade.SetInputHandler)
				sessions.POST("/:id/submit", h.Trade.SubmitHandler)
				sessions.DELETE("/:id", h.Trade.CloseSessionHandler)
			}
		}
		api.GET("/trades/:id", h.Trade.GetTradeHandler)

		// ============ Staking ============
		staking := api.Group("/staking")
		{
			staking.GET("", h.Staking.GetStakingHandler)
			staking.POST("/deposit", auth.RequireAuth(), h.Staking.DepositHandler)
			staking.POST("/withdraw", auth.RequireAuth(), h.Staking.WithdrawHandler)
		}

		// ============ Operator ============
		admin := api.Group("/admin")
		{
			admin.POST("/login", h.Admin.LoginHandler)
			admin.POST("/totp/generate", localhostOnly.Restrict(), h.Admin.GenerateTOTPSecretHandler)
		}

		api.GET("/ws/status", h.WebSocket.GetConnectionStatus)
	}
}
