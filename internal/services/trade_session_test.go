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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad-backend/internal/contracts"
	"launchpad-backend/internal/models"
)

func testPresets() Presets {
	return Presets{
		Buy:             []string{"50", "100", "300", "500"},
		Sell:            []int{25, 50, 75, 100},
		Slippage:        []string{"1", "3", "5"},
		DefaultSlippage: "1",
		MaxSlippage:     "50",
	}
}

func newTestSessions(t *testing.T, f *tradeFixture, interval time.Duration) *TradeSessionManager {
	t.Helper()
	m, err := NewTradeSessionManager(f.trades, f.balances, testPresets(), interval)
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)
	return m
}

func strPtr(s string) *string { return &s }

func TestSessionQuotesOnInput(t *testing.T) {
	f := newTradeFixture(t, 50)
	m := newTestSessions(t, f, time.Hour)

	s, err := m.Open(tokenA, models.TradeDirectionBuy)
	require.NoError(t, err)
	assert.Equal(t, SessionIdle, s.State)
	assert.Equal(t, int64(100), s.SlippageBps)

	s, err = m.SetInput(context.Background(), s.ID, SessionInput{Amount: strPtr("2"), Slippage: strPtr("3")})
	require.NoError(t, err)
	assert.Equal(t, SessionReady, s.State)
	require.NotNil(t, s.Quote)
	assert.Equal(t, "2000", s.Quote.AmountOut)
	assert.Equal(t, "1940", s.Quote.MinAmountOut)

	s, err = m.SetInput(context.Background(), s.ID, SessionInput{Amount: strPtr("0")})
	require.NoError(t, err)
	assert.Equal(t, SessionIdle, s.State)
	assert.Nil(t, s.Quote)
}

func TestSessionPresets(t *testing.T) {
	f := newTradeFixture(t, 50)
	f.setTokenBalance(ether(10))
	m := newTestSessions(t, f, time.Hour)
	ctx := context.Background()

	buy, err := m.Open(tokenA, models.TradeDirectionBuy)
	require.NoError(t, err)
	_, err = m.SetInput(ctx, buy.ID, SessionInput{BuyPreset: strPtr("42")})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	buy, err = m.SetInput(ctx, buy.ID, SessionInput{BuyPreset: strPtr("50")})
	require.NoError(t, err)
	assert.Equal(t, "50", buy.Amount)

	sell, err := m.Open(tokenA, models.TradeDirectionSell)
	require.NoError(t, err)
	pct := 25
	sell, err = m.SetInput(ctx, sell.ID, SessionInput{SellPreset: &pct})
	require.NoError(t, err)
	assert.Equal(t, "2.5", sell.Amount)
	assert.Equal(t, SessionReady, sell.State)

	_, err = m.SetInput(ctx, sell.ID, SessionInput{Slippage: strPtr("51")})
	assert.ErrorIs(t, err, ErrInvalidSlippage)
}

func TestSessionRefreshesQuoteOnTimer(t *testing.T) {
	f := newTradeFixture(t, 50)
	m := newTestSessions(t, f, 20*time.Millisecond)

	s, err := m.Open(tokenA, models.TradeDirectionBuy)
	require.NoError(t, err)
	s, err = m.SetInput(context.Background(), s.ID, SessionInput{Amount: strPtr("1")})
	require.NoError(t, err)
	assert.Equal(t, "1000", s.Quote.AmountOut)

	f.curveRate.Store(900)
	require.Eventually(t, func() bool {
		cur, err := m.Get(s.ID)
		return err == nil && cur.Quote != nil && cur.Quote.AmountOut == "900"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionSubmitSettles(t *testing.T) {
	f := newTradeFixture(t, 50)
	m := newTestSessions(t, f, time.Hour)
	ctx := context.Background()

	s, _ := m.Open(tokenA, models.TradeDirectionBuy)
	_, err := m.SetInput(ctx, s.ID, SessionInput{Amount: strPtr("1")})
	require.NoError(t, err)

	s, err = m.Submit(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionSettled, s.State)
	assert.Empty(t, s.Amount)
	assert.Nil(t, s.Quote)
	require.NotNil(t, s.Notification)
	assert.Equal(t, "success", s.Notification.Kind)
	assert.NotEmpty(t, s.LastTradeID)
}

func TestSessionSubmitFailureKeepsInput(t *testing.T) {
	f := newTradeFixture(t, 50)
	f.chain.RevertTx = func(*types.Transaction) bool { return true }
	m := newTestSessions(t, f, time.Hour)
	ctx := context.Background()

	s, _ := m.Open(tokenA, models.TradeDirectionBuy)
	_, err := m.SetInput(ctx, s.ID, SessionInput{Amount: strPtr("1")})
	require.NoError(t, err)

	before, err := f.balances.Get(ctx, tokenA, operator)
	require.NoError(t, err)

	s, err = m.Submit(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionIdle, s.State)
	assert.Equal(t, "1", s.Amount)
	require.NotNil(t, s.Notification)
	assert.Equal(t, "error", s.Notification.Kind)
	assert.NotEmpty(t, s.Notification.TxHash)

	f.chain.SetBalance(operator, ether(3))
	f.chain.Returns(tokenA, contracts.ERC20ABI, "balanceOf", ether(7))
	after, err := f.balances.Get(ctx, tokenA, operator)
	require.NoError(t, err)
	assert.Equal(t, before.FetchedAt, after.FetchedAt, "a failed trade keeps the cached balances")
	assert.Equal(t, before.NativeText, after.NativeText)
	assert.Equal(t, before.TokenText, after.TokenText)
}

func TestSessionBusyWhileConfirming(t *testing.T) {
	f := newTradeFixture(t, 50)
	f.chain.HoldReceipts = true
	f.tx.opts.ConfirmTimeout = 500 * time.Millisecond
	m := newTestSessions(t, f, time.Hour)
	ctx := context.Background()

	s, _ := m.Open(tokenA, models.TradeDirectionBuy)
	_, err := m.SetInput(ctx, s.ID, SessionInput{Amount: strPtr("1")})
	require.NoError(t, err)

	s, err = m.SubmitAsync(s.ID)
	require.NoError(t, err)
	assert.True(t, s.State.Busy())

	require.Eventually(t, func() bool {
		cur, _ := m.Get(s.ID)
		return cur.State == SessionConfirming
	}, 2*time.Second, 5*time.Millisecond)

	_, err = m.SetInput(ctx, s.ID, SessionInput{Amount: strPtr("2")})
	assert.ErrorIs(t, err, ErrSessionBusy)
	_, err = m.SubmitAsync(s.ID)
	assert.ErrorIs(t, err, ErrSessionBusy)

	require.Eventually(t, func() bool {
		cur, _ := m.Get(s.ID)
		return cur.State == SessionIdle && cur.Notification != nil
	}, 2*time.Second, 10*time.Millisecond, "confirmation timeout returns the session to idle")
}

func TestSessionOpenAndClose(t *testing.T) {
	f := newTradeFixture(t, 50)
	m := newTestSessions(t, f, time.Hour)

	_, err := m.Open(common.Address{}, models.TradeDirectionBuy)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.Open(tokenA, "hold")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	s, err := m.Open(tokenA, models.TradeDirectionSell)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())

	require.NoError(t, m.Close(s.ID))
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Close(s.ID), ErrSessionNotFound)
}

func TestSessionExpiresWhenIdle(t *testing.T) {
	f := newTradeFixture(t, 50)
	var quotes atomic.Int64
	f.chain.Handle(testManager, contracts.TokenManagerABI, "tryBuy", func(data []byte) ([]byte, error) {
		quotes.Add(1)
		in := unpackArgs(t, "tryBuy", data)[1].(*big.Int)
		return contracts.TokenManagerABI.Methods["tryBuy"].Outputs.Pack(new(big.Int).Mul(in, big.NewInt(1000)), big.NewInt(0))
	})
	m := newTestSessions(t, f, 10*time.Millisecond)
	ctx := context.Background()

	kept, err := m.Open(tokenA, models.TradeDirectionBuy)
	require.NoError(t, err)
	abandoned, err := m.Open(tokenA, models.TradeDirectionBuy)
	require.NoError(t, err)
	for _, id := range []string{kept.ID, abandoned.ID} {
		_, err := m.SetInput(ctx, id, SessionInput{Amount: strPtr("1")})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		if _, err := m.Get(kept.ID); err != nil {
			return false
		}
		_, err := m.Get(abandoned.ID)
		return errors.Is(err, ErrSessionNotFound)
	}, 3*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, m.Count())
	cur, err := m.Get(kept.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionReady, cur.State)

	require.NoError(t, m.Close(kept.ID))
	time.Sleep(50 * time.Millisecond)
	settled := quotes.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, quotes.Load(), "no quoting once every session is gone")
}

func TestSessionInFlightTradeIsNotExpired(t *testing.T) {
	f := newTradeFixture(t, 50)
	f.chain.HoldReceipts = true
	f.tx.opts.ConfirmTimeout = time.Second
	m := newTestSessions(t, f, 10*time.Millisecond)
	ctx := context.Background()

	s, _ := m.Open(tokenA, models.TradeDirectionBuy)
	_, err := m.SetInput(ctx, s.ID, SessionInput{Amount: strPtr("1")})
	require.NoError(t, err)
	_, err = m.SubmitAsync(s.ID)
	require.NoError(t, err)

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 1, m.Count(), "a confirming trade outlives the idle window")
}
