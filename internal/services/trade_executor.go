package services

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"launchpad-backend/internal/contracts"
	"launchpad-backend/internal/models"
)

// VenueQuote raw output of one venue quote
type VenueQuote struct {
	AmountOut *big.Int
	// Refund unspent input returned by the curve on an internal buy; zero elsewhere
	Refund *big.Int
}

// TradeExecutor quotes and builds trades on one venue
type TradeExecutor interface {
	Venue() models.Venue
	Quote(ctx context.Context, token common.Address, direction models.TradeDirection, amountIn *big.Int) (*VenueQuote, error)
	BuildTrade(token common.Address, direction models.TradeDirection, amountIn, minOut *big.Int, recipient common.Address) (TxRequest, error)
	// Spender is the address the sell side must approve
	Spender() common.Address
}

// ===== Internal bonding curve =====

// InternalCurveExecutor trades against the TokenManager curve before graduation
type InternalCurveExecutor struct {
	batcher Batcher
	manager common.Address
}

func NewInternalCurveExecutor(batcher Batcher, manager common.Address) *InternalCurveExecutor {
	return &InternalCurveExecutor{batcher: batcher, manager: manager}
}

func (e *InternalCurveExecutor) Venue() models.Venue { return models.VenueInternal }

func (e *InternalCurveExecutor) Spender() common.Address { return e.manager }

// Quote calls tryBuy or trySell
func (e *InternalCurveExecutor) Quote(ctx context.Context, token common.Address, direction models.TradeDirection, amountIn *big.Int) (*VenueQuote, error) {
	switch direction {
	case models.TradeDirectionBuy:
		data, err := e.batcher.Call(ctx, e.manager, contracts.MustPack(contracts.TokenManagerABI, "tryBuy", token, amountIn))
		if err != nil {
			return nil, fmt.Errorf("tryBuy: %w", err)
		}
		q, err := contracts.DecodeTryBuy(data).Get()
		if err != nil {
			return nil, err
		}
		return &VenueQuote{AmountOut: q.AmountOut, Refund: q.Refund}, nil
	case models.TradeDirectionSell:
		data, err := e.batcher.Call(ctx, e.manager, contracts.MustPack(contracts.TokenManagerABI, "trySell", token, amountIn))
		if err != nil {
			return nil, fmt.Errorf("trySell: %w", err)
		}
		out, err := contracts.DecodeUint(contracts.TokenManagerABI, "trySell", data).Get()
		if err != nil {
			return nil, err
		}
		return &VenueQuote{AmountOut: out, Refund: new(big.Int)}, nil
	}
	return nil, fmt.Errorf("unknown trade direction %q", direction)
}

// BuildTrade buyToken is payable with value = amountIn
func (e *InternalCurveExecutor) BuildTrade(token common.Address, direction models.TradeDirection, amountIn, minOut *big.Int, _ common.Address) (TxRequest, error) {
	switch direction {
	case models.TradeDirectionBuy:
		return TxRequest{
			Kind:  "buy",
			To:    e.manager,
			Value: new(big.Int).Set(amountIn),
			Data:  contracts.MustPack(contracts.TokenManagerABI, "buyToken", token, amountIn, minOut),
		}, nil
	case models.TradeDirectionSell:
		return TxRequest{
			Kind: "sell",
			To:   e.manager,
			Data: contracts.MustPack(contracts.TokenManagerABI, "sellToken", token, amountIn, minOut),
		}, nil
	}
	return TxRequest{}, fmt.Errorf("unknown trade direction %q", direction)
}

// ===== External router pool =====

// ExternalSwapExecutor trades graduated tokens. Quotes come from the router,
// swaps go through the TokenManager, which forwards them to the router.
type ExternalSwapExecutor struct {
	batcher  Batcher
	router   common.Address
	manager  common.Address
	weth     common.Address
	deadline time.Duration
	now      func() time.Time
}

func NewExternalSwapExecutor(batcher Batcher, router, manager, weth common.Address, deadline time.Duration) *ExternalSwapExecutor {
	if deadline <= 0 {
		deadline = 20 * time.Minute
	}
	return &ExternalSwapExecutor{
		batcher:  batcher,
		router:   router,
		manager:  manager,
		weth:     weth,
		deadline: deadline,
		now:      time.Now,
	}
}

func (e *ExternalSwapExecutor) Venue() models.Venue { return models.VenueExternal }

func (e *ExternalSwapExecutor) Spender() common.Address { return e.manager }

// Path [WETH, token] for a buy, [token, WETH] for a sell
func (e *ExternalSwapExecutor) Path(token common.Address, direction models.TradeDirection) []common.Address {
	if direction == models.TradeDirectionBuy {
		return []common.Address{e.weth, token}
	}
	return []common.Address{token, e.weth}
}

// Quote returns getAmountsOut(amountIn, path)[1]
func (e *ExternalSwapExecutor) Quote(ctx context.Context, token common.Address, direction models.TradeDirection, amountIn *big.Int) (*VenueQuote, error) {
	data, err := e.batcher.Call(ctx, e.router, contracts.MustPack(contracts.RouterABI, "getAmountsOut", amountIn, e.Path(token, direction)))
	if err != nil {
		return nil, fmt.Errorf("getAmountsOut: %w", err)
	}
	amounts, err := contracts.DecodeAmounts(contracts.RouterABI, "getAmountsOut", data).Get()
	if err != nil {
		return nil, err
	}
	if len(amounts) < 2 {
		return nil, fmt.Errorf("%w: getAmountsOut returned %d amounts", contracts.ErrDecodeFailed, len(amounts))
	}
	return &VenueQuote{AmountOut: amounts[1], Refund: new(big.Int)}, nil
}

// BuildTrade swaps with a deadline of now + deadline
func (e *ExternalSwapExecutor) BuildTrade(token common.Address, direction models.TradeDirection, amountIn, minOut *big.Int, recipient common.Address) (TxRequest, error) {
	deadline := big.NewInt(e.now().Add(e.deadline).Unix())
	path := e.Path(token, direction)

	switch direction {
	case models.TradeDirectionBuy:
		return TxRequest{
			Kind:  "buy",
			To:    e.manager,
			Value: new(big.Int).Set(amountIn),
			Data:  contracts.MustPack(contracts.TokenManagerABI, "swapExactETHForTokens", minOut, path, recipient, deadline),
		}, nil
	case models.TradeDirectionSell:
		return TxRequest{
			Kind: "sell",
			To:   e.manager,
			Data: contracts.MustPack(contracts.TokenManagerABI, "swapExactTokensForETH", amountIn, minOut, path, recipient, deadline),
		}, nil
	}
	return TxRequest{}, fmt.Errorf("unknown trade direction %q", direction)
}

var (
	_ TradeExecutor = (*InternalCurveExecutor)(nil)
	_ TradeExecutor = (*ExternalSwapExecutor)(nil)
)
