package router

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/config"
	"launchpad-backend/internal/handlers"
	"launchpad-backend/internal/middleware"
)

const (
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders = "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Cache-Control, Accept"
)

// Handlers everything the routes dispatch to
type Handlers struct {
	Health    *handlers.HealthHandler
	Tokens    *handlers.TokenHandler
	Trade     *handlers.TradeHandler
	Staking   *handlers.StakingHandler
	Price     *handlers.PriceHandler
	Admin     *handlers.AdminAuthHandler
	WebSocket *handlers.WebSocketHandler
	Auth      middleware.TokenValidator
}

// corsMiddleware CORS middleware. No configured origins means allow all (*).
func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 3600
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin == "":
			// same-origin request or direct access
		case slices.Contains(allowedOrigins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		default:
			logrus.WithFields(logrus.Fields{
				"request_origin":  origin,
				"allowed_origins": allowedOrigins,
				"path":            c.Request.URL.Path,
				"method":          c.Request.Method,
				"remote_addr":     c.ClientIP(),
			}).Warn("🚫 CORS: Request blocked - Origin not in whitelist")
		}

		c.Header("Access-Control-Allow-Methods", corsAllowMethods)
		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
		if cfg.AllowCredentials && !allowAll {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type")
		c.Next()
	}
}

// SetupRouter builds the gin engine with CORS, metrics and every API route
func SetupRouter(cfg *config.Config, logger *logrus.Logger, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), middleware.Metrics())
	r.Use(corsMiddleware(cfg.CORS))

	if len(cfg.Admin.AllowedIPs) > 0 {
		logger.WithFields(logrus.Fields{
			"allowed_ips": cfg.Admin.AllowedIPs,
			"count":       len(cfg.Admin.AllowedIPs),
		}).Info("Restricted API IP whitelist configured")
	} else {
		logger.Info("No admin.allowedIPs configured, using localhost-only mode")
	}
	localhostOnly := middleware.NewLocalhostOnly(logger, cfg.Admin.AllowedIPs)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", h.Health.HealthCheckHandler)
	r.GET("/metrics", localhostOnly.Restrict(), gin.WrapH(promhttp.Handler()))
	r.GET("/ws", h.WebSocket.HandleWebSocket)

	auth := middleware.NewAuthMiddleware(logger, h.Auth)
	SetupLaunchpadRoutes(r, h, auth, localhostOnly)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Not Found",
			"message": "API endpoint not found",
			"path":    c.Request.URL.Path,
			"code":    "NOT_FOUND",
		})
	})

	return r
}

// requestLogger logs one line per request through logrus
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		entry := logger.WithFields(logrus.Fields{
			"status":    c.Writer.Status(),
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"client_ip": c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("HTTP request failed")
			return
		}
		entry.Debug("HTTP request")
	}
}
