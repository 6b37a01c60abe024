package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/contracts"
	"launchpad-backend/internal/utils"
)

// Balances native and token balance of one owner
type Balances struct {
	Owner        common.Address `json:"owner"`
	Token        common.Address `json:"token"`
	Native       *big.Int       `json:"-"`
	TokenBalance *big.Int       `json:"-"`
	NativeText   string         `json:"native"`
	TokenText    string         `json:"token_balance"`
	FetchedAt    time.Time      `json:"fetched_at"`
}

type balanceKey struct {
	token common.Address
	owner common.Address
}

// BalanceService reads balances in one multicall and caches them for ttl
type BalanceService struct {
	batcher   Batcher
	multicall common.Address
	ttl       time.Duration

	mu    sync.RWMutex
	cache map[balanceKey]*Balances
	now   func() time.Time
}

func NewBalanceService(batcher Batcher, multicall common.Address, ttl time.Duration) *BalanceService {
	return &BalanceService{
		batcher:   batcher,
		multicall: multicall,
		ttl:       ttl,
		cache:     make(map[balanceKey]*Balances),
		now:       time.Now,
	}
}

// Get returns cached balances when fresh, otherwise reads getEthBalance and balanceOf together.
// A zero token reads only the native balance.
func (s *BalanceService) Get(ctx context.Context, token, owner common.Address) (*Balances, error) {
	key := balanceKey{token: token, owner: owner}

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && s.now().Sub(cached.FetchedAt) < s.ttl {
		return cached, nil
	}

	calls := []contracts.Call3{
		{Target: s.multicall, AllowFailure: false, CallData: contracts.MustPack(contracts.Multicall3ABI, "getEthBalance", owner)},
	}
	if token != (common.Address{}) {
		calls = append(calls, contracts.Call3{Target: token, AllowFailure: true, CallData: contracts.MustPack(contracts.ERC20ABI, "balanceOf", owner)})
	}

	results, err := s.batcher.Aggregate3(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("read balances: %w", err)
	}
	if len(results) != len(calls) {
		return nil, fmt.Errorf("read balances: %d results for %d calls", len(results), len(calls))
	}

	native, err := contracts.FromCall(results[0], func(b []byte) contracts.Result[*big.Int] {
		return contracts.DecodeUint(contracts.Multicall3ABI, "getEthBalance", b)
	}).Get()
	if err != nil {
		return nil, fmt.Errorf("decode native balance: %w", err)
	}

	tokenBal := new(big.Int)
	if len(results) > 1 {
		tokenBal = contracts.FromCall(results[1], func(b []byte) contracts.Result[*big.Int] {
			return contracts.DecodeUint(contracts.ERC20ABI, "balanceOf", b)
		}).OrElse(new(big.Int))
	}

	b := &Balances{
		Owner:        owner,
		Token:        token,
		Native:       native,
		TokenBalance: tokenBal,
		NativeText:   utils.FormatUnits(native, utils.NativeDecimals),
		TokenText:    utils.FormatUnits(tokenBal, utils.NativeDecimals),
		FetchedAt:    s.now(),
	}

	s.mu.Lock()
	s.cache[key] = b
	s.mu.Unlock()
	return b, nil
}

// Invalidate drops every cached entry of owner
func (s *BalanceService) Invalidate(owner common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.cache {
		if k.owner == owner {
			delete(s.cache, k)
			n++
		}
	}
	if n > 0 {
		logrus.Debugf("🔄 [Balances] Invalidated %d entries for %s", n, owner.Hex())
	}
}
