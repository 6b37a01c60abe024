package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// ChainReader is the read-only part of the node API the pipeline uses
type ChainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingCallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// ChainBackend is everything the service needs from the node.
// *ethclient.Client satisfies it.
type ChainBackend interface {
	ChainReader
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ ChainBackend = (*ethclient.Client)(nil)

// RPCConnection a dialed node. Verified is false when no endpoint answered eth_chainId;
// the client then points at the first reachable-by-dial endpoint and the pollers stay
// paused until the node responds.
type RPCConnection struct {
	Client   *ethclient.Client
	Endpoint string
	Verified bool
}

// DialRPC connects to the first endpoint that answers eth_chainId with the expected id.
// An endpoint reporting another chain id is skipped. Only a missing or undialable
// endpoint list is an error.
func DialRPC(ctx context.Context, endpoints []string, expectedChainID int64) (*RPCConnection, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("no RPC endpoints configured")
	}

	var (
		lastErr  error
		fallback *RPCConnection
	)
	for i, endpoint := range endpoints {
		logrus.Infof("🔗 [DialRPC] Trying endpoint %d/%d: %s", i+1, len(endpoints), endpoint)

		client, err := ethclient.DialContext(ctx, endpoint)
		if err != nil {
			logrus.Warnf("❌ [DialRPC] Dial failed: %v", err)
			lastErr = err
			continue
		}

		verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		chainID, err := client.ChainID(verifyCtx)
		cancel()
		if err != nil {
			logrus.Warnf("❌ [DialRPC] ChainID check failed: %v", err)
			lastErr = err
			if fallback == nil {
				fallback = &RPCConnection{Client: client, Endpoint: endpoint}
			} else {
				client.Close()
			}
			continue
		}
		if expectedChainID > 0 && chainID.Int64() != expectedChainID {
			client.Close()
			lastErr = fmt.Errorf("endpoint %s reports chain id %s, want %d", endpoint, chainID, expectedChainID)
			logrus.Warnf("❌ [DialRPC] %v", lastErr)
			continue
		}

		if fallback != nil {
			fallback.Client.Close()
		}
		logrus.Infof("✅ [DialRPC] Connected to %s (chain id %s)", endpoint, chainID)
		return &RPCConnection{Client: client, Endpoint: endpoint, Verified: true}, nil
	}

	if fallback != nil {
		logrus.Warnf("⚠️ [DialRPC] No endpoint reachable, starting offline on %s: %v", fallback.Endpoint, lastErr)
		return fallback, nil
	}
	return nil, fmt.Errorf("all RPC endpoints failed: %w", lastErr)
}
