package services

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"launchpad-backend/internal/contracts"
	"launchpad-backend/internal/utils"
)

// UnknownSymbol shown when symbol() cannot be read
const UnknownSymbol = "UNKNOWN"

// callsPerToken uri, tokensInfo, symbol
const callsPerToken = 3

// TokenState on-chain view of one token. Info is nil when tokensInfo could not be decoded.
type TokenState struct {
	Address  common.Address
	URI      string
	Info     *contracts.TokenInfo
	Symbol   string
	Progress utils.Progress
}

// Launched is false when Info is unknown
func (t TokenState) Launched() bool {
	return t.Info != nil && t.Info.Launched
}

// TokenStateService reads uri, tokensInfo and symbol for many tokens in one batch
type TokenStateService struct {
	batcher Batcher
	manager common.Address
}

func NewTokenStateService(batcher Batcher, manager common.Address) *TokenStateService {
	return &TokenStateService{batcher: batcher, manager: manager}
}

// Aggregate returns one TokenState per address, in input order
func (s *TokenStateService) Aggregate(ctx context.Context, addrs []common.Address) ([]TokenState, error) {
	if len(addrs) == 0 {
		return []TokenState{}, nil
	}

	calls := make([]contracts.Call3, 0, len(addrs)*callsPerToken)
	for _, addr := range addrs {
		calls = append(calls,
			contracts.Call3{Target: s.manager, AllowFailure: true, CallData: contracts.MustPack(contracts.TokenManagerABI, "uri", addr)},
			contracts.Call3{Target: s.manager, AllowFailure: true, CallData: contracts.MustPack(contracts.TokenManagerABI, "tokensInfo", addr)},
			contracts.Call3{Target: addr, AllowFailure: true, CallData: contracts.MustPack(contracts.ERC20ABI, "symbol")},
		)
	}

	results, err := s.batcher.Aggregate3(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("aggregate token state: %w", err)
	}
	if len(results) != len(calls) {
		return nil, fmt.Errorf("aggregate token state: %d results for %d calls", len(results), len(calls))
	}

	states := make([]TokenState, len(addrs))
	for i, addr := range addrs {
		base := i * callsPerToken
		states[i] = decodeTokenState(addr, results[base], results[base+1], results[base+2])
	}
	return states, nil
}

// Read aggregates a single token
func (s *TokenStateService) Read(ctx context.Context, addr common.Address) (*TokenState, error) {
	states, err := s.Aggregate(ctx, []common.Address{addr})
	if err != nil {
		return nil, err
	}
	return &states[0], nil
}

func decodeTokenState(addr common.Address, uriRes, infoRes, symbolRes contracts.Call3Result) TokenState {
	state := TokenState{
		Address: addr,
		URI: contracts.FromCall(uriRes, func(b []byte) contracts.Result[string] {
			return contracts.DecodeString(contracts.TokenManagerABI, "uri", b)
		}).OrElse(""),
		Symbol: contracts.FromCall(symbolRes, contracts.DecodeSymbol).OrElse(UnknownSymbol),
	}

	if info, err := contracts.FromCall(infoRes, contracts.DecodeTokenInfo).Get(); err == nil {
		state.Info = &info
		state.Progress = utils.CalculateProgress(info.Reserve1, info.Target)
	} else {
		state.Progress = utils.CalculateProgress(nil, nil)
	}
	return state
}
