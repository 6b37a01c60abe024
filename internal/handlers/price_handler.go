package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"launchpad-backend/internal/clients"
)

// PriceSource latest native asset ticker
type PriceSource interface {
	Latest() *clients.NativePrice
}

// PriceHandler handles native price queries
type PriceHandler struct {
	source PriceSource
}

// NewPriceHandler creates a new PriceHandler instance
func NewPriceHandler(source PriceSource) *PriceHandler {
	return &PriceHandler{source: source}
}

// GetPriceHandler returns the last ticker with 24h stats
// GET /api/price
func (h *PriceHandler) GetPriceHandler(c *gin.Context) {
	p := h.source.Latest()
	if p == nil {
		respondWithError(c, http.StatusServiceUnavailable, "PRICE_UNAVAILABLE", "native price has not been fetched yet")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"price": gin.H{
			"inst_id":    p.InstID,
			"price":      p.Price.String(),
			"change_24h": p.Change24h.StringFixed(2),
			"high_24h":   p.High24h.String(),
			"low_24h":    p.Low24h.String(),
			"volume_24h": p.Volume24h.String(),
			"timestamp":  p.Timestamp,
		},
	})
}
