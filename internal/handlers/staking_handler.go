package handlers

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"launchpad-backend/internal/services"
)

// Staking airdrop staking reads and writes
type Staking interface {
	Read(ctx context.Context, owner *common.Address) (*services.StakingView, error)
	Deposit(ctx context.Context, amount string) (*services.TxResult, error)
	Withdraw(ctx context.Context) (*services.TxResult, error)
}

type StakingHandler struct {
	staking Staking
}

func NewStakingHandler(staking Staking) *StakingHandler {
	return &StakingHandler{staking: staking}
}

// DepositBody amount in native units
type DepositBody struct {
	Amount string `json:"amount" binding:"required"`
}

// GetStakingHandler GET /api/staking[?owner=]
func (h *StakingHandler) GetStakingHandler(c *gin.Context) {
	var owner *common.Address
	if raw := c.Query("owner"); raw != "" {
		addr, ok := parseAddress(c, raw, "owner")
		if !ok {
			return
		}
		owner = &addr
	}

	view, err := h.staking.Read(c.Request.Context(), owner)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"staking": view,
	})
}

// DepositHandler POST /api/staking/deposit
func (h *StakingHandler) DepositHandler(c *gin.Context) {
	var body DepositBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	res, err := h.staking.Deposit(c.Request.Context(), body.Amount)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, txResponse(res))
}

// WithdrawHandler POST /api/staking/withdraw
func (h *StakingHandler) WithdrawHandler(c *gin.Context) {
	res, err := h.staking.Withdraw(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, txResponse(res))
}

func txResponse(res *services.TxResult) gin.H {
	out := gin.H{
		"success":      true,
		"tx_hash":      res.Hash.Hex(),
		"gas_limit":    res.GasLimit,
		"gas_fallback": res.GasFallback,
	}
	if res.GasPrice != nil {
		out["gas_price"] = res.GasPrice.String()
	}
	if res.Receipt != nil && res.Receipt.BlockNumber != nil {
		out["block_number"] = res.Receipt.BlockNumber.Uint64()
	}
	return out
}
