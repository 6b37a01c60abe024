package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/handlers"
)

// OperatorKey context key holding the authenticated operator username
const OperatorKey = "operator"

// TokenValidator validates an operator bearer token
type TokenValidator interface {
	Validate(tokenString string) (*handlers.OperatorClaims, error)
}

// AuthMiddleware operator JWT authentication
type AuthMiddleware struct {
	logger    *logrus.Logger
	validator TokenValidator
}

func NewAuthMiddleware(logger *logrus.Logger, validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		logger:    logger,
		validator: validator,
	}
}

func (a *AuthMiddleware) reject(c *gin.Context, reason, errText, message, code string) {
	a.logger.WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}).Warnf("JWT auth failed - %s", reason)

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   errText,
		"message": message,
		"code":    code,
	})
}

// RequireAuth rejects requests without a valid operator token
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			a.reject(c, "missing Authorization header",
				"Authentication required",
				"Missing Authorization header. Please provide a valid JWT token.",
				"MISSING_AUTH_HEADER")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			a.reject(c, "bad Authorization format",
				"Invalid authorization format",
				"Authorization header must be in format: Bearer <token>",
				"INVALID_AUTH_FORMAT")
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			a.reject(c, "empty token", "Empty token", "Token cannot be empty", "EMPTY_TOKEN")
			return
		}

		claims, err := a.validator.Validate(tokenString)
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"error":  err.Error(),
			}).Warn("JWT auth failed - token verification failed")

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid or expired token",
				"message": err.Error(),
				"code":    "INVALID_TOKEN",
			})
			return
		}

		c.Set(OperatorKey, claims.Username)

		a.logger.WithFields(logrus.Fields{
			"path":     c.Request.URL.Path,
			"method":   c.Request.Method,
			"operator": claims.Username,
		}).Debug("JWT auth success")

		c.Next()
	}
}
