package services

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/contracts"
	"launchpad-backend/internal/repository"
)

type countingRefresher struct{ n int }

func (r *countingRefresher) Refresh() { r.n++ }

func newTestCreation(t *testing.T) (*TokenCreationService, *tradeFixture, *repository.MemoryCreatedTokenRepository, *countingRefresher) {
	t.Helper()
	f := newTradeFixture(t, 0)
	predicted := common.HexToAddress("0x00000000000000000000000000000000000000Ad")
	f.chain.Returns(testManager, contracts.TokenManagerABI, "predictTokenAddress", predicted)

	repo := repository.NewMemoryCreatedTokenRepository()
	feed := &countingRefresher{}
	mc := clients.NewMulticallClient(f.chain, f.chain.Multicall)
	svc := NewTokenCreationService(mc, testManager, f.tx, repo, f.publisher, feed)
	svc.salt = func(common.Address) (common.Hash, error) {
		return common.HexToHash("0x01"), nil
	}
	return svc, f, repo, feed
}

func TestCreateTokenWithoutPreBuy(t *testing.T) {
	svc, f, repo, feed := newTestCreation(t)

	token, err := svc.Create(context.Background(), CreateTokenRequest{Name: "Moon", Symbol: "MOON", URI: "ipfs://meta"})
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000Ad", token.Address)
	assert.Equal(t, "0", token.PreBuy)

	require.Len(t, f.chain.Sent, 1)
	tx := f.chain.Sent[0]
	assert.Equal(t, "createToken", sentMethod(t, tx))
	assert.Zero(t, tx.Value().Sign())
	args, err := contracts.TokenManagerABI.Methods["createToken"].Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, "Moon", args[0])
	assert.Equal(t, [32]byte(common.HexToHash("0x01")), args[3])

	stored, err := repo.GetByAddress(context.Background(), token.Address)
	require.NoError(t, err)
	assert.Equal(t, token.TxHash, stored.TxHash)
	assert.Equal(t, 1, f.publisher.Count(clients.SubjectTokensCreated))
	assert.Equal(t, 1, feed.n)
}

func TestCreateTokenWithPreBuy(t *testing.T) {
	svc, f, _, _ := newTestCreation(t)

	token, err := svc.Create(context.Background(), CreateTokenRequest{Name: "Moon", Symbol: "MOON", URI: "ipfs://meta", PreBuy: "2.5"})
	require.NoError(t, err)
	assert.Equal(t, "2500000000000000000", token.PreBuy)

	tx := f.chain.Sent[0]
	assert.Equal(t, "createTokenAndBuy", sentMethod(t, tx))
	assert.Equal(t, "2500000000000000000", tx.Value().String())
}

func TestCreateTokenValidation(t *testing.T) {
	svc, f, _, feed := newTestCreation(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateTokenRequest{Name: " ", Symbol: "X", URI: "ipfs://x"})
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Create(ctx, CreateTokenRequest{Name: "X", Symbol: "X", URI: ""})
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Create(ctx, CreateTokenRequest{Name: "X", Symbol: "X", URI: "ipfs://x", PreBuy: "-1"})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Create(ctx, CreateTokenRequest{Name: "X", Symbol: "X", URI: "ipfs://x", PreBuy: "11"})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	f.chain.SetBalance(operator, ether(0))
	_, err = svc.Create(ctx, CreateTokenRequest{Name: "X", Symbol: "X", URI: "ipfs://x"})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Empty(t, f.chain.Sent)
	assert.Zero(t, feed.n)
}
