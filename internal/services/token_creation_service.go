package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/contracts"
	"launchpad-backend/internal/models"
	"launchpad-backend/internal/repository"
	"launchpad-backend/internal/utils"
)

// CreateTokenRequest PreBuy is in native units; empty means no pre-buy
type CreateTokenRequest struct {
	Name   string `json:"name" binding:"required"`
	Symbol string `json:"symbol" binding:"required"`
	URI    string `json:"uri" binding:"required"`
	PreBuy string `json:"preBuy"`
}

// FeedRefresher is told to re-poll after a new token is created
type FeedRefresher interface {
	Refresh()
}

// TokenCreationService launches tokens through the TokenManager
type TokenCreationService struct {
	batcher   Batcher
	manager   common.Address
	tx        *BlockchainTransactionService
	repo      repository.CreatedTokenRepository
	publisher EventPublisher
	feed      FeedRefresher
	salt      func(owner common.Address) (common.Hash, error)
}

func NewTokenCreationService(
	batcher Batcher,
	manager common.Address,
	tx *BlockchainTransactionService,
	repo repository.CreatedTokenRepository,
	publisher EventPublisher,
	feed FeedRefresher,
) *TokenCreationService {
	return &TokenCreationService{
		batcher:   batcher,
		manager:   manager,
		tx:        tx,
		repo:      repo,
		publisher: publisher,
		feed:      feed,
		salt:      randomSalt,
	}
}

// randomSalt hashes 32 random bytes with the creator address
func randomSalt(owner common.Address) (common.Hash, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return common.Hash{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	return crypto.Keccak256Hash(owner.Bytes(), buf[:]), nil
}

// Create validates, sends createToken or createTokenAndBuy, waits, then records the predicted address
func (s *TokenCreationService) Create(ctx context.Context, req CreateTokenRequest) (*models.CreatedToken, error) {
	name := strings.TrimSpace(req.Name)
	symbol := strings.TrimSpace(req.Symbol)
	uri := strings.TrimSpace(req.URI)
	if name == "" || symbol == "" || uri == "" {
		return nil, fmt.Errorf("%w: name, symbol and uri are required", ErrInvalidToken)
	}

	preBuy := new(big.Int)
	if strings.TrimSpace(req.PreBuy) != "" {
		v, err := utils.ParseUnits(req.PreBuy, utils.NativeDecimals)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		preBuy = v
	}

	owner, err := s.tx.From()
	if err != nil {
		return nil, err
	}
	balance, err := s.tx.NativeBalance(ctx)
	if err != nil {
		return nil, err
	}
	if balance.Sign() <= 0 || balance.Cmp(preBuy) < 0 {
		return nil, fmt.Errorf("%w: have %s", ErrInsufficientBalance, utils.FormatUnits(balance, utils.NativeDecimals))
	}

	salt, err := s.salt(owner)
	if err != nil {
		return nil, err
	}

	txReq := TxRequest{Kind: "create", To: s.manager}
	if preBuy.Sign() > 0 {
		txReq.Value = preBuy
		txReq.Data = contracts.MustPack(contracts.TokenManagerABI, "createTokenAndBuy", name, symbol, uri, [32]byte(salt), preBuy)
	} else {
		txReq.Data = contracts.MustPack(contracts.TokenManagerABI, "createToken", name, symbol, uri, [32]byte(salt))
	}

	logrus.WithFields(logrus.Fields{
		"name":   name,
		"symbol": symbol,
		"preBuy": preBuy.String(),
		"salt":   salt.Hex(),
	}).Info("🚀 [TokenCreation] Creating token")

	res, err := s.tx.SendAndWait(ctx, txReq)
	if err != nil {
		return nil, err
	}

	data, err := s.batcher.Call(ctx, s.manager, contracts.MustPack(contracts.TokenManagerABI, "predictTokenAddress", [32]byte(salt)))
	if err != nil {
		return nil, fmt.Errorf("predictTokenAddress: %w", err)
	}
	addr, err := contracts.DecodeAddress(contracts.TokenManagerABI, "predictTokenAddress", data).Get()
	if err != nil {
		return nil, err
	}

	token := &models.CreatedToken{
		ID:        uuid.New().String(),
		Address:   addr.Hex(),
		Name:      name,
		Symbol:    symbol,
		URI:       uri,
		Salt:      salt.Hex(),
		Creator:   owner.Hex(),
		PreBuy:    preBuy.String(),
		TxHash:    res.Hash.Hex(),
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, token); err != nil {
		logrus.Warnf("⚠️ [TokenCreation] Failed to save %s: %v", token.Address, err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(clients.SubjectTokensCreated, token); err != nil {
			logrus.Warnf("⚠️ [TokenCreation] Failed to publish %s: %v", token.Address, err)
		}
	}
	if s.feed != nil {
		s.feed.Refresh()
	}

	logrus.Infof("✅ [TokenCreation] %s (%s) created at %s", name, symbol, token.Address)
	return token, nil
}

// List tokens created by this service, newest first
func (s *TokenCreationService) List(ctx context.Context, limit int) ([]*models.CreatedToken, error) {
	return s.repo.List(ctx, limit)
}
