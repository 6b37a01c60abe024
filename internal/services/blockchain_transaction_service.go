package services

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/metrics"
	"launchpad-backend/internal/utils"
)

// ===== Signing strategy =====

// SigningStrategy signs transactions for one account
type SigningStrategy interface {
	Address() common.Address
	Sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	Name() string
}

// PrivateKeySigningStrategy signs with an in-process key
type PrivateKeySigningStrategy struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewPrivateKeySigner parses a hex key, with or without 0x
func NewPrivateKeySigner(hexKey string) (*PrivateKeySigningStrategy, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &PrivateKeySigningStrategy{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *PrivateKeySigningStrategy) Address() common.Address {
	return s.address
}

// Sign produces an EIP-155 signature
func (s *PrivateKeySigningStrategy) Sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.NewEIP155Signer(chainID), s.key)
}

func (s *PrivateKeySigningStrategy) Name() string {
	return "PrivateKey"
}

// ===== Service =====

// TxRequest one contract call to sign and send
type TxRequest struct {
	Kind  string // metrics/log label: approve, buy, sell, create, stake...
	To    common.Address
	Value *big.Int
	Data  []byte
}

// TxResult a mined transaction
type TxResult struct {
	Hash        common.Hash
	Receipt     *types.Receipt
	GasLimit    uint64
	GasPrice    *big.Int
	GasFallback bool
}

// TxOptions gas policy and confirmation timing
type TxOptions struct {
	GasLimitBuffer   int64 // percent added to the estimate
	GasPriceBuffer   int64 // percent added to the suggested price
	FallbackGasLimit uint64
	FallbackGasPrice *big.Int // used only when the node cannot suggest one; nil means fail
	ConfirmTimeout   time.Duration
	PollInterval     time.Duration
}

// BlockchainTransactionService builds, signs, sends and confirms legacy transactions
type BlockchainTransactionService struct {
	backend clients.ChainBackend
	signer  SigningStrategy
	chainID *big.Int
	opts    TxOptions

	nonceMu sync.Mutex
}

// NewBlockchainTransactionService signer may be nil; every send then fails with ErrWalletNotConnected
func NewBlockchainTransactionService(backend clients.ChainBackend, signer SigningStrategy, chainID *big.Int, opts TxOptions) *BlockchainTransactionService {
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 2 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.FallbackGasLimit == 0 {
		opts.FallbackGasLimit = 600000
	}
	return &BlockchainTransactionService{
		backend: backend,
		signer:  signer,
		chainID: chainID,
		opts:    opts,
	}
}

// Connected reports whether a signer is configured
func (b *BlockchainTransactionService) Connected() bool {
	return b.signer != nil
}

// From returns the signer address
func (b *BlockchainTransactionService) From() (common.Address, error) {
	if b.signer == nil {
		return common.Address{}, ErrWalletNotConnected
	}
	return b.signer.Address(), nil
}

// NativeBalance of the signer
func (b *BlockchainTransactionService) NativeBalance(ctx context.Context) (*big.Int, error) {
	from, err := b.From()
	if err != nil {
		return nil, err
	}
	bal, err := b.backend.BalanceAt(ctx, from, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return bal, nil
}

// Send signs and broadcasts req, returning once the node accepted it
func (b *BlockchainTransactionService) Send(ctx context.Context, req TxRequest) (*types.Transaction, bool, error) {
	from, err := b.From()
	if err != nil {
		return nil, false, err
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	b.nonceMu.Lock()
	defer b.nonceMu.Unlock()

	nonce, err := b.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasLimit, fallback := b.gasLimit(ctx, ethereum.CallMsg{From: from, To: &req.To, Value: value, Data: req.Data}, req.Kind)

	gasPrice, err := b.gasPrice(ctx)
	if err != nil {
		return nil, false, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signedTx, err := b.signer.Sign(tx, b.chainID)
	if err != nil {
		metrics.TransactionsTotal.WithLabelValues(req.Kind, "sign_failed").Inc()
		return nil, false, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := b.backend.SendTransaction(ctx, signedTx); err != nil {
		metrics.TransactionsTotal.WithLabelValues(req.Kind, "send_failed").Inc()
		return nil, false, fmt.Errorf("failed to send transaction: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"kind":     req.Kind,
		"hash":     signedTx.Hash().Hex(),
		"nonce":    nonce,
		"to":       req.To.Hex(),
		"value":    value.String(),
		"gasLimit": gasLimit,
		"gasPrice": gasPrice.String(),
		"signer":   b.signer.Name(),
	}).Info("📤 [Tx] Transaction sent")
	return signedTx, fallback, nil
}

// gasLimit estimate plus buffer, or the fallback limit when estimation fails
func (b *BlockchainTransactionService) gasLimit(ctx context.Context, msg ethereum.CallMsg, kind string) (uint64, bool) {
	est, err := b.backend.EstimateGas(ctx, msg)
	if err != nil {
		metrics.GasEstimateFallbacks.Inc()
		logrus.WithFields(logrus.Fields{
			"kind":     kind,
			"error":    err.Error(),
			"fallback": b.opts.FallbackGasLimit,
		}).Warn("⚠️ [Tx] Gas estimation failed, using fallback gas limit")
		return b.opts.FallbackGasLimit, true
	}
	return est + est*uint64(b.opts.GasLimitBuffer)/100, false
}

func (b *BlockchainTransactionService) gasPrice(ctx context.Context) (*big.Int, error) {
	suggested, err := b.backend.SuggestGasPrice(ctx)
	if err != nil {
		if b.opts.FallbackGasPrice != nil {
			logrus.Warnf("⚠️ [Tx] SuggestGasPrice failed, using configured gas price: %v", err)
			return new(big.Int).Set(b.opts.FallbackGasPrice), nil
		}
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return utils.AddPercent(suggested, b.opts.GasPriceBuffer), nil
}

// WaitForReceipt polls until tx is mined or the confirmation timeout expires.
// A mined receipt with status 0 returns ErrTransactionReverted together with the receipt.
func (b *BlockchainTransactionService) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		receipt, err := b.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				logrus.Warnf("❌ [Tx] %s reverted in block %v", hash.Hex(), receipt.BlockNumber)
				return receipt, fmt.Errorf("%w: %s", ErrTransactionReverted, hash.Hex())
			}
			logrus.Infof("✅ [Tx] %s confirmed in block %v after %v", hash.Hex(), receipt.BlockNumber, time.Since(start).Round(time.Millisecond))
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
			logrus.Debugf("⚠️ [Tx] Error querying receipt for %s: %v", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w after %v: %s", ErrConfirmationTimeout, time.Since(start).Round(time.Second), hash.Hex())
		case <-ticker.C:
		}
	}
}

// SendAndWait sends req and waits for its receipt
func (b *BlockchainTransactionService) SendAndWait(ctx context.Context, req TxRequest) (*TxResult, error) {
	tx, fallback, err := b.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	result := &TxResult{Hash: tx.Hash(), GasLimit: tx.Gas(), GasPrice: tx.GasPrice(), GasFallback: fallback}

	receipt, err := b.WaitForReceipt(ctx, tx.Hash())
	result.Receipt = receipt
	if err != nil {
		metrics.TransactionsTotal.WithLabelValues(req.Kind, "failed").Inc()
		return result, err
	}
	metrics.TransactionsTotal.WithLabelValues(req.Kind, "confirmed").Inc()
	return result, nil
}
