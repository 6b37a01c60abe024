package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/models"
	"launchpad-backend/internal/services"
)

// TokenFeed read side of the token snapshot
type TokenFeed interface {
	List(tab services.FeedTab, query string) []models.TokenView
	Search(query string) []models.TokenView
	Detail(ctx context.Context, addr common.Address) (models.TokenView, error)
}

// BalanceReader native and token balances of an owner
type BalanceReader interface {
	Get(ctx context.Context, token, owner common.Address) (*services.Balances, error)
}

// TransactionIndex indexed transaction history
type TransactionIndex interface {
	Enabled() bool
	GetTransactions(ctx context.Context, first, skip int) ([]clients.SubgraphTransaction, error)
}

// TradeHistory trades executed by this service
type TradeHistory interface {
	History(ctx context.Context, token common.Address, limit int) ([]*models.TradeRecord, error)
}

// TokenCreator launches tokens
type TokenCreator interface {
	Create(ctx context.Context, req services.CreateTokenRequest) (*models.CreatedToken, error)
	List(ctx context.Context, limit int) ([]*models.CreatedToken, error)
}

// TokenHandler token list, detail, balances, history and creation
type TokenHandler struct {
	feed     TokenFeed
	balances BalanceReader
	index    TransactionIndex
	trades   TradeHistory
	creator  TokenCreator
}

func NewTokenHandler(feed TokenFeed, balances BalanceReader, index TransactionIndex, trades TradeHistory, creator TokenCreator) *TokenHandler {
	return &TokenHandler{
		feed:     feed,
		balances: balances,
		index:    index,
		trades:   trades,
		creator:  creator,
	}
}

// queryLimit reads ?limit= clamped to [1, max]
func queryLimit(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// ListTokensHandler list view for a tab
// GET /api/tokens?tab=newly|soaring|launched&q=
func (h *TokenHandler) ListTokensHandler(c *gin.Context) {
	tab, err := services.ParseTab(c.Query("tab"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_TAB", err.Error())
		return
	}

	tokens := h.feed.List(tab, c.Query("q"))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tab":     tab,
		"count":   len(tokens),
		"tokens":  tokens,
	})
}

// SearchTokensHandler GET /api/tokens/search?q=
func (h *TokenHandler) SearchTokensHandler(c *gin.Context) {
	tokens := h.feed.Search(c.Query("q"))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(tokens),
		"tokens":  tokens,
	})
}

// GetTokenHandler GET /api/tokens/:address
func (h *TokenHandler) GetTokenHandler(c *gin.Context) {
	addr, ok := parseAddress(c, c.Param("address"), "address")
	if !ok {
		return
	}

	view, err := h.feed.Detail(c.Request.Context(), addr)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   view,
	})
}

// GetBalancesHandler GET /api/tokens/:address/balances?owner=
func (h *TokenHandler) GetBalancesHandler(c *gin.Context) {
	token, ok := parseAddress(c, c.Param("address"), "address")
	if !ok {
		return
	}
	owner, ok := parseAddress(c, c.Query("owner"), "owner")
	if !ok {
		return
	}

	balances, err := h.balances.Get(c.Request.Context(), token, owner)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"balances": balances,
	})
}

// GetTransactionsHandler indexed transfers touching the token plus trades sent by this service
// GET /api/tokens/:address/transactions
func (h *TokenHandler) GetTransactionsHandler(c *gin.Context) {
	token, ok := parseAddress(c, c.Param("address"), "address")
	if !ok {
		return
	}
	limit := queryLimit(c, 50, 500)
	ctx := c.Request.Context()

	trades, err := h.trades.History(ctx, token, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	indexed := []clients.SubgraphTransaction{}
	if h.index != nil && h.index.Enabled() {
		all, err := h.index.GetTransactions(ctx, limit, 0)
		if err != nil {
			respondWithError(c, http.StatusBadGateway, "SUBGRAPH_UNAVAILABLE", err.Error())
			return
		}
		hex := strings.ToLower(token.Hex())
		for _, tx := range all {
			if strings.ToLower(tx.To) == hex || strings.ToLower(tx.From) == hex {
				indexed = append(indexed, tx)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"token":        token.Hex(),
		"trades":       trades,
		"transactions": indexed,
	})
}

// CreateTokenHandler POST /api/tokens
func (h *TokenHandler) CreateTokenHandler(c *gin.Context) {
	var req services.CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	created, err := h.creator.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"token":   created,
	})
}

// ListCreatedTokensHandler GET /api/tokens/created
func (h *TokenHandler) ListCreatedTokensHandler(c *gin.Context) {
	tokens, err := h.creator.List(c.Request.Context(), queryLimit(c, 50, 500))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(tokens),
		"tokens":  tokens,
	})
}
