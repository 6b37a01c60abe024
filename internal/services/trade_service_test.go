package services

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad-backend/internal/chaintest"
	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/contracts"
	"launchpad-backend/internal/models"
	"launchpad-backend/internal/repository"
)

var operator = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

type tradeFixture struct {
	chain     *chaintest.Chain
	trades    *TradeService
	balances  *BalanceService
	tx        *BlockchainTransactionService
	repo      *repository.MemoryTradeRepository
	publisher *recordingPublisher
	// curveRate tokens out per native unit on the curve, router rate is twice that
	curveRate atomic.Int64
}

// newTradeFixture installs tokenA at the given progress with balance handlers for the operator
func newTradeFixture(t *testing.T, reserve1 int64) *tradeFixture {
	t.Helper()
	chain, mc := newTestChain()
	installTokens(t, chain, []common.Address{tokenA}, []testToken{
		{addr: tokenA, uri: "ipfs://a", symbol: "AAA", reserve1: reserve1, target: 100, price: big.NewInt(1_000_000_000)},
	})
	chain.SetBalance(operator, ether(10))

	f := &tradeFixture{chain: chain}
	f.curveRate.Store(1000)

	chain.Handle(testManager, contracts.TokenManagerABI, "tryBuy", func(data []byte) ([]byte, error) {
		in := unpackArgs(t, "tryBuy", data)[1].(*big.Int)
		out := new(big.Int).Mul(in, big.NewInt(f.curveRate.Load()))
		return contracts.TokenManagerABI.Methods["tryBuy"].Outputs.Pack(out, big.NewInt(0))
	})
	chain.Handle(testManager, contracts.TokenManagerABI, "trySell", func(data []byte) ([]byte, error) {
		in := unpackArgs(t, "trySell", data)[1].(*big.Int)
		out := new(big.Int).Quo(in, big.NewInt(f.curveRate.Load()))
		return contracts.TokenManagerABI.Methods["trySell"].Outputs.Pack(out)
	})
	chain.Handle(testRouter, contracts.RouterABI, "getAmountsOut", func(data []byte) ([]byte, error) {
		args, err := contracts.RouterABI.Methods["getAmountsOut"].Inputs.Unpack(data[4:])
		require.NoError(t, err)
		in := args[0].(*big.Int)
		out := new(big.Int).Mul(in, big.NewInt(2*f.curveRate.Load()))
		return contracts.RouterABI.Methods["getAmountsOut"].Outputs.Pack([]*big.Int{in, out})
	})
	f.tx = newTestTxService(t, chain)
	f.balances = NewBalanceService(mc, chain.Multicall, time.Minute)
	f.setTokenBalance(ether(0))
	f.setAllowance(ether(0))
	f.repo = repository.NewMemoryTradeRepository()
	f.publisher = newRecordingPublisher()

	state := NewTokenStateService(mc, testManager)
	f.trades = NewTradeService(
		state,
		NewInternalCurveExecutor(mc, testManager),
		NewExternalSwapExecutor(mc, testRouter, testManager, testWETH, 20*time.Minute),
		mc,
		f.tx,
		f.balances,
		f.repo,
		f.publisher,
		decimal.NewFromInt(50),
	)
	return f
}

func (f *tradeFixture) setTokenBalance(v *big.Int) {
	f.chain.Returns(tokenA, contracts.ERC20ABI, "balanceOf", v)
	f.balances.Invalidate(operator)
}

func (f *tradeFixture) setAllowance(v *big.Int) {
	f.chain.Returns(tokenA, contracts.ERC20ABI, "allowance", v)
}

func sentMethod(t *testing.T, tx *types.Transaction) string {
	t.Helper()
	if m, err := contracts.TokenManagerABI.MethodById(tx.Data()[:4]); err == nil {
		return m.Name
	}
	m, err := contracts.ERC20ABI.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	return m.Name
}

func buyReq(amount string) ExecuteRequest {
	return ExecuteRequest{QuoteRequest: QuoteRequest{Token: tokenA, Direction: models.TradeDirectionBuy, Amount: amount, SlippageBps: 100}}
}

func sellReq(amount string) ExecuteRequest {
	return ExecuteRequest{QuoteRequest: QuoteRequest{Token: tokenA, Direction: models.TradeDirectionSell, Amount: amount, SlippageBps: 100}}
}

func TestQuoteSelectsVenueByProgress(t *testing.T) {
	f := newTradeFixture(t, 50)
	q, err := f.trades.Quote(context.Background(), buyReq("1").QuoteRequest)
	require.NoError(t, err)
	assert.Equal(t, models.VenueInternal, q.Venue)
	assert.Equal(t, "1000", q.AmountOut)
	assert.Equal(t, "990", q.MinAmountOut)
	assert.Equal(t, "50.00", q.Progress)

	f = newTradeFixture(t, 100)
	q, err = f.trades.Quote(context.Background(), buyReq("1").QuoteRequest)
	require.NoError(t, err)
	assert.Equal(t, models.VenueExternal, q.Venue)
	assert.Equal(t, "2000", q.AmountOut)
	assert.Equal(t, "1980", q.MinAmountOut)
}

func TestQuoteRejectsBadInput(t *testing.T) {
	f := newTradeFixture(t, 50)
	ctx := context.Background()

	for _, amount := range []string{"", "0", "-1", "abc", "0.0000000000000000001"} {
		_, err := f.trades.Quote(ctx, buyReq(amount).QuoteRequest)
		assert.ErrorIs(t, err, ErrInvalidAmount, amount)
	}

	req := buyReq("1").QuoteRequest
	req.SlippageBps = 0
	_, err := f.trades.Quote(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidSlippage)
	req.SlippageBps = 5001
	_, err = f.trades.Quote(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidSlippage)

	req = buyReq("1").QuoteRequest
	req.Token = tokenB
	_, err = f.trades.Quote(ctx, req)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestExecuteInternalBuy(t *testing.T) {
	f := newTradeFixture(t, 50)
	_, err := f.balances.Get(context.Background(), tokenA, operator)
	require.NoError(t, err)

	var submitted common.Hash
	req := buyReq("1.5")
	req.OnSubmitted = func(h common.Hash) { submitted = h }

	record, err := f.trades.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusConfirmed, record.Status)
	assert.Equal(t, models.VenueInternal, record.Venue)
	assert.Equal(t, "1500000000000000000", record.AmountIn)
	assert.Equal(t, "1500000000000000000000", record.AmountOutEstimated)
	assert.NotNil(t, record.SettledAt)

	require.Len(t, f.chain.Sent, 1)
	tx := f.chain.Sent[0]
	assert.Equal(t, testManager, *tx.To())
	assert.Equal(t, "buyToken", sentMethod(t, tx))
	assert.Equal(t, "1500000000000000000", tx.Value().String())
	assert.Equal(t, tx.Hash(), submitted)
	assert.Equal(t, tx.Hash().Hex(), record.TxHash)

	args, err := contracts.TokenManagerABI.Methods["buyToken"].Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, record.MinAmountOut, args[2].(*big.Int).String())

	stored, err := f.repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusConfirmed, stored.Status)
	assert.Equal(t, 1, f.publisher.Count(clients.SubjectTradesSettled))
	assert.Empty(t, f.balances.cache, "balances invalidated after settlement")
}

func TestExecuteExternalBuyUsesDeadlineAndPath(t *testing.T) {
	f := newTradeFixture(t, 100)
	record, err := f.trades.Execute(context.Background(), buyReq("1"))
	require.NoError(t, err)
	assert.Equal(t, models.VenueExternal, record.Venue)

	tx := f.chain.Sent[0]
	assert.Equal(t, "swapExactETHForTokens", sentMethod(t, tx))
	args, err := contracts.TokenManagerABI.Methods["swapExactETHForTokens"].Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, []common.Address{testWETH, tokenA}, args[1].([]common.Address))
	assert.Equal(t, operator, args[2].(common.Address))
	deadline := args[3].(*big.Int).Int64()
	assert.InDelta(t, time.Now().Add(20*time.Minute).Unix(), deadline, 5)
}

func TestExecuteSellApprovesWhenAllowanceIsShort(t *testing.T) {
	f := newTradeFixture(t, 50)
	f.setTokenBalance(ether(100))

	record, err := f.trades.Execute(context.Background(), sellReq("40"))
	require.NoError(t, err)

	require.Len(t, f.chain.Sent, 2)
	approve := f.chain.Sent[0]
	assert.Equal(t, tokenA, *approve.To())
	assert.Equal(t, "approve", sentMethod(t, approve))
	args, err := contracts.ERC20ABI.Methods["approve"].Inputs.Unpack(approve.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, testManager, args[0].(common.Address))

	assert.Equal(t, "sellToken", sentMethod(t, f.chain.Sent[1]))
	assert.Equal(t, approve.Hash().Hex(), record.ApprovalTxHash)
}

func TestExecuteSellSkipsApprovalWhenAllowed(t *testing.T) {
	f := newTradeFixture(t, 100)
	f.setTokenBalance(ether(100))
	f.setAllowance(ether(1000))

	_, err := f.trades.Execute(context.Background(), sellReq("100"))
	require.NoError(t, err)
	require.Len(t, f.chain.Sent, 1)
	assert.Equal(t, "swapExactTokensForETH", sentMethod(t, f.chain.Sent[0]))
}

func TestExecuteValidatesBeforeSending(t *testing.T) {
	f := newTradeFixture(t, 50)
	ctx := context.Background()

	_, err := f.trades.Execute(ctx, buyReq("11"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = f.trades.Execute(ctx, sellReq("1"))
	assert.ErrorIs(t, err, ErrInsufficientBalance, "zero token balance")

	f.setTokenBalance(ether(5))
	_, err = f.trades.Execute(ctx, sellReq("6"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = f.trades.Execute(ctx, buyReq("0"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	f.trades.tx = NewBlockchainTransactionService(f.chain, nil, f.chain.ChainIDValue, TxOptions{})
	_, err = f.trades.Execute(ctx, buyReq("1"))
	assert.ErrorIs(t, err, ErrWalletNotConnected)

	assert.Empty(t, f.chain.Sent)
	assert.True(t, IsInputError(err))
}

func TestExecuteRecordsRevert(t *testing.T) {
	f := newTradeFixture(t, 50)
	f.chain.RevertTx = func(*types.Transaction) bool { return true }

	record, err := f.trades.Execute(context.Background(), buyReq("1"))
	assert.ErrorIs(t, err, ErrTransactionReverted)
	require.NotNil(t, record)
	assert.Equal(t, models.TradeStatusFailed, record.Status)
	assert.NotEmpty(t, record.TxHash)
	assert.NotZero(t, record.BlockNumber)

	stored, err := f.repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "reverted")
	assert.Equal(t, 1, f.publisher.Count(clients.SubjectTradesFailed))
	assert.Equal(t, 0, f.publisher.Count(clients.SubjectTradesSettled))
	assert.False(t, IsInputError(err))
}

func TestExecuteSendFailure(t *testing.T) {
	f := newTradeFixture(t, 50)
	f.chain.SendErr = errors.New("user rejected")

	ctx := context.Background()
	before, err := f.balances.Get(ctx, tokenA, operator)
	require.NoError(t, err)

	record, err := f.trades.Execute(ctx, buyReq("1"))
	require.Error(t, err)
	assert.Equal(t, models.TradeStatusFailed, record.Status)
	assert.Empty(t, record.TxHash)

	f.chain.SetBalance(operator, ether(3))
	after, err := f.balances.Get(ctx, tokenA, operator)
	require.NoError(t, err)
	assert.Equal(t, before.FetchedAt, after.FetchedAt, "a failed trade keeps the cached balances")
	assert.Equal(t, 0, after.Native.Cmp(ether(10)))
}
