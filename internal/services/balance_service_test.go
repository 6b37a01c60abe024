package services

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad-backend/internal/contracts"
)

func TestBalanceServiceReadsAndCaches(t *testing.T) {
	chain, mc := newTestChain()
	chain.SetBalance(operator, ether(3))
	chain.Returns(tokenA, contracts.ERC20ABI, "balanceOf", ether(7))

	svc := NewBalanceService(mc, chain.Multicall, time.Minute)
	b, err := svc.Get(context.Background(), tokenA, operator)
	require.NoError(t, err)
	assert.Equal(t, "3", b.NativeText)
	assert.Equal(t, "7", b.TokenText)

	chain.SetBalance(operator, ether(1))
	b, err = svc.Get(context.Background(), tokenA, operator)
	require.NoError(t, err)
	assert.Equal(t, "3", b.NativeText, "served from cache")

	svc.Invalidate(operator)
	b, err = svc.Get(context.Background(), tokenA, operator)
	require.NoError(t, err)
	assert.Equal(t, "1", b.NativeText)
}

func TestBalanceServiceTTLAndMissingToken(t *testing.T) {
	chain, mc := newTestChain()
	chain.SetBalance(operator, ether(2))

	svc := NewBalanceService(mc, chain.Multicall, time.Second)
	now := time.Now()
	svc.now = func() time.Time { return now }

	// tokenB has no balanceOf handler
	b, err := svc.Get(context.Background(), tokenB, operator)
	require.NoError(t, err)
	assert.Equal(t, "0", b.TokenText)

	b, err = svc.Get(context.Background(), common.Address{}, operator)
	require.NoError(t, err)
	assert.Equal(t, "2", b.NativeText)

	chain.SetBalance(operator, ether(5))
	now = now.Add(2 * time.Second)
	b, err = svc.Get(context.Background(), tokenB, operator)
	require.NoError(t, err)
	assert.Equal(t, "5", b.NativeText)
}
