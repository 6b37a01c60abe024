package services

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/contracts"
)

// Batcher is the read path every service uses: one direct call or one aggregate3 batch
type Batcher interface {
	Aggregate3(ctx context.Context, calls []contracts.Call3) ([]contracts.Call3Result, error)
	Call(ctx context.Context, target common.Address, data []byte) ([]byte, error)
}

// TokenDirectoryService resolves the ordered list of launched token addresses
type TokenDirectoryService struct {
	batcher Batcher
	manager common.Address
}

func NewTokenDirectoryService(batcher Batcher, manager common.Address) *TokenDirectoryService {
	return &TokenDirectoryService{batcher: batcher, manager: manager}
}

// Count reads allTokens() directly
func (s *TokenDirectoryService) Count(ctx context.Context) (*big.Int, error) {
	raw, err := s.batcher.Call(ctx, s.manager, contracts.MustPack(contracts.TokenManagerABI, "allTokens"))
	if err != nil {
		return nil, fmt.Errorf("read token count: %w", err)
	}
	count, err := contracts.DecodeUint(contracts.TokenManagerABI, "allTokens", raw).Get()
	if err != nil {
		return nil, fmt.Errorf("read token count: %w", err)
	}
	return count, nil
}

// Resolve returns every token address in creation order. Failed or zero
// entries are dropped and duplicates keep their first position.
func (s *TokenDirectoryService) Resolve(ctx context.Context) ([]common.Address, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count.Sign() == 0 {
		return []common.Address{}, nil
	}
	if !count.IsInt64() {
		return nil, fmt.Errorf("token count %s out of range", count)
	}

	n := count.Int64()
	calls := make([]contracts.Call3, n)
	for i := int64(0); i < n; i++ {
		calls[i] = contracts.Call3{
			Target:       s.manager,
			AllowFailure: true,
			CallData:     contracts.MustPack(contracts.TokenManagerABI, "tokens", big.NewInt(i)),
		}
	}

	results, err := s.batcher.Aggregate3(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("resolve token addresses: %w", err)
	}

	seen := make(map[common.Address]struct{}, len(results))
	addrs := make([]common.Address, 0, len(results))
	dropped := 0
	for _, r := range results {
		addr, err := contracts.FromCall(r, func(b []byte) contracts.Result[common.Address] {
			return contracts.DecodeAddress(contracts.TokenManagerABI, "tokens", b)
		}).Get()
		if err != nil || addr == (common.Address{}) {
			dropped++
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}

	if dropped > 0 {
		logrus.WithFields(logrus.Fields{
			"count":   n,
			"dropped": dropped,
		}).Debug("⚠️ [TokenDirectory] Dropped unresolved directory entries")
	}
	return addrs, nil
}
