package handlers

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/repository"
	"launchpad-backend/internal/services"
	"launchpad-backend/internal/utils"
)

// respondWithError unified error response, same shape as the auth middleware
func respondWithError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   http.StatusText(statusCode),
		"message": message,
		"code":    code,
	})
}

// respondServiceError maps a service error to its HTTP status
func respondServiceError(c *gin.Context, err error) {
	switch {
	case services.IsInputError(err):
		respondWithError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, services.ErrSessionBusy):
		respondWithError(c, http.StatusConflict, "SESSION_BUSY", err.Error())
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrTokenNotFound),
		errors.Is(err, repository.ErrNotFound):
		respondWithError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrQuoteUnavailable):
		respondWithError(c, http.StatusServiceUnavailable, "QUOTE_UNAVAILABLE", err.Error())
	case errors.Is(err, services.ErrTransactionReverted),
		errors.Is(err, services.ErrConfirmationTimeout):
		respondWithError(c, http.StatusBadGateway, "TRANSACTION_FAILED", err.Error())
	default:
		logrus.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"error":  err.Error(),
		}).Error("❌ Request failed")
		respondWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

// parseAddress reads a hex address from a path or query value
func parseAddress(c *gin.Context, value, field string) (common.Address, bool) {
	addr, err := utils.ParseAddress(value)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_ADDRESS", field+" must be a 0x-prefixed hex address")
		return common.Address{}, false
	}
	return addr, true
}
