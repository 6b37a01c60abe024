package handlers

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"launchpad-backend/internal/models"
	"launchpad-backend/internal/services"
	"launchpad-backend/internal/utils"
)

// Quoter one-shot quotes and trade lookup
type Quoter interface {
	Quote(ctx context.Context, req services.QuoteRequest) (*services.Quote, error)
	Get(ctx context.Context, id string) (*models.TradeRecord, error)
}

// SessionManager trade dialog sessions
type SessionManager interface {
	Presets() services.Presets
	Open(token common.Address, direction models.TradeDirection) (services.TradeSession, error)
	Get(id string) (services.TradeSession, error)
	SetInput(ctx context.Context, id string, in services.SessionInput) (services.TradeSession, error)
	SubmitAsync(id string) (services.TradeSession, error)
	Close(id string) error
}

// TradeHandler quotes, sessions and trade records
type TradeHandler struct {
	quoter      Quoter
	sessions    SessionManager
	maxSlippage decimal.Decimal
}

func NewTradeHandler(quoter Quoter, sessions SessionManager) *TradeHandler {
	presets := sessions.Presets()
	maxSlippage, err := decimal.NewFromString(presets.MaxSlippage)
	if err != nil {
		maxSlippage = decimal.NewFromInt(50)
	}
	return &TradeHandler{
		quoter:      quoter,
		sessions:    sessions,
		maxSlippage: maxSlippage,
	}
}

// QuoteBody one-shot quote request; slippage is a percent and defaults to the configured one
type QuoteBody struct {
	Token     string                `json:"token" binding:"required"`
	Direction models.TradeDirection `json:"direction" binding:"required"`
	Amount    string                `json:"amount" binding:"required"`
	Slippage  string                `json:"slippage"`
}

// OpenSessionBody opens a trade dialog on a token
type OpenSessionBody struct {
	Token     string                `json:"token" binding:"required"`
	Direction models.TradeDirection `json:"direction"`
}

// QuoteHandler POST /api/trade/quote
func (h *TradeHandler) QuoteHandler(c *gin.Context) {
	var body QuoteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	token, ok := parseAddress(c, body.Token, "token")
	if !ok {
		return
	}

	slippage := body.Slippage
	if slippage == "" {
		slippage = h.sessions.Presets().DefaultSlippage
	}
	bps, err := utils.SlippageToBps(slippage, h.maxSlippage)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_SLIPPAGE", err.Error())
		return
	}

	quote, err := h.quoter.Quote(c.Request.Context(), services.QuoteRequest{
		Token:       token,
		Direction:   body.Direction,
		Amount:      body.Amount,
		SlippageBps: bps,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"quote":   quote,
	})
}

// PresetsHandler GET /api/trade/presets
func (h *TradeHandler) PresetsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"presets": h.sessions.Presets(),
	})
}

// OpenSessionHandler POST /api/trade/sessions
func (h *TradeHandler) OpenSessionHandler(c *gin.Context) {
	var body OpenSessionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	token, ok := parseAddress(c, body.Token, "token")
	if !ok {
		return
	}
	if body.Direction == "" {
		body.Direction = models.TradeDirectionBuy
	}

	session, err := h.sessions.Open(token, body.Direction)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"session": session,
	})
}

// GetSessionHandler GET /api/trade/sessions/:id
func (h *TradeHandler) GetSessionHandler(c *gin.Context) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": session,
	})
}

// SetInputHandler PUT /api/trade/sessions/:id/input
func (h *TradeHandler) SetInputHandler(c *gin.Context) {
	var in services.SessionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	session, err := h.sessions.SetInput(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": session,
	})
}

// SubmitHandler starts the trade and answers 202; the outcome is read from the session
// POST /api/trade/sessions/:id/submit
func (h *TradeHandler) SubmitHandler(c *gin.Context) {
	session, err := h.sessions.SubmitAsync(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"session": session,
	})
}

// CloseSessionHandler DELETE /api/trade/sessions/:id
func (h *TradeHandler) CloseSessionHandler(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetTradeHandler GET /api/trades/:id
func (h *TradeHandler) GetTradeHandler(c *gin.Context) {
	record, err := h.quoter.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"trade":   record,
	})
}
