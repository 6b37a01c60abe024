// Package chaintest provides an in-memory node for tests: contract reads are
// dispatched to per-method handlers, aggregate3 is executed natively and sent
// transactions are mined immediately.
package chaintest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"launchpad-backend/internal/contracts"
)

// Handler answers one eth_call. Returning an error makes the call revert.
type Handler func(calldata []byte) ([]byte, error)

type key struct {
	target   common.Address
	selector [4]byte
}

// Chain is a fake node. The zero value is not usable; call New.
type Chain struct {
	mu sync.Mutex

	ChainIDValue *big.Int
	Multicall    common.Address

	handlers map[key]Handler
	balances map[common.Address]*big.Int

	// StaticCallErr, when set, makes CallContract fail so the pending fallback is used
	StaticCallErr error
	// CallErr makes every read fail
	CallErr     error
	EstimateErr error
	GasEstimate uint64
	GasPrice    *big.Int
	GasPriceErr error
	SendErr     error
	RevertTx    func(tx *types.Transaction) bool
	ChainIDErr  error
	OnSend      func(tx *types.Transaction)

	// HoldReceipts leaves sent transactions unmined
	HoldReceipts bool

	StaticCalls  int
	PendingCalls int
	DirectCalls  map[string]int
	Sent         []*types.Transaction
	nonce        uint64
	receipts     map[common.Hash]*types.Receipt
}

// New returns a chain with id 9745 and Multicall3 at its canonical address
func New() *Chain {
	return &Chain{
		ChainIDValue: big.NewInt(9745),
		Multicall:    common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11"),
		handlers:     make(map[key]Handler),
		balances:     make(map[common.Address]*big.Int),
		GasEstimate:  100000,
		GasPrice:     big.NewInt(1_000_000_000),
		DirectCalls:  make(map[string]int),
		receipts:     make(map[common.Hash]*types.Receipt),
	}
}

// Handle registers h for method of parsed at target
func (c *Chain) Handle(target common.Address, parsed abi.ABI, method string, h Handler) {
	m, ok := parsed.Methods[method]
	if !ok {
		panic("unknown method " + method)
	}
	var sel [4]byte
	copy(sel[:], m.ID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[key{target, sel}] = h
}

// Returns registers a handler that always returns outputs packed for method
func (c *Chain) Returns(target common.Address, parsed abi.ABI, method string, values ...interface{}) {
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	if err != nil {
		panic(fmt.Sprintf("pack %s outputs: %v", method, err))
	}
	c.Handle(target, parsed, method, func([]byte) ([]byte, error) { return out, nil })
}

// Reverts registers a handler that always fails
func (c *Chain) Reverts(target common.Address, parsed abi.ABI, method string) {
	c.Handle(target, parsed, method, func([]byte) ([]byte, error) { return nil, errors.New("execution reverted") })
}

// SetBalance sets the native balance of account
func (c *Chain) SetBalance(account common.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[account] = new(big.Int).Set(wei)
}

// SentCount number of transactions accepted so far
func (c *Chain) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

func (c *Chain) dispatch(target common.Address, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("calldata too short")
	}
	var sel [4]byte
	copy(sel[:], data[:4])

	if target == c.Multicall && bytes.Equal(sel[:], contracts.Multicall3ABI.Methods["aggregate3"].ID) {
		return c.aggregate3(data)
	}
	if target == c.Multicall && bytes.Equal(sel[:], contracts.Multicall3ABI.Methods["getEthBalance"].ID) {
		args, err := contracts.Multicall3ABI.Methods["getEthBalance"].Inputs.Unpack(data[4:])
		if err != nil {
			return nil, err
		}
		return contracts.Multicall3ABI.Methods["getEthBalance"].Outputs.Pack(c.balanceOf(args[0].(common.Address)))
	}

	c.mu.Lock()
	h, ok := c.handlers[key{target, sel}]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("execution reverted: no handler for %s %x", target.Hex(), sel)
	}
	return h(data)
}

func (c *Chain) aggregate3(data []byte) ([]byte, error) {
	method := contracts.Multicall3ABI.Methods["aggregate3"]
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	calls := *abi.ConvertType(args[0], new([]contracts.Call3)).(*[]contracts.Call3)

	results := make([]contracts.Call3Result, len(calls))
	for i, call := range calls {
		out, err := c.dispatch(call.Target, call.CallData)
		if err != nil {
			if !call.AllowFailure {
				return nil, errors.New("multicall3: call failed")
			}
			results[i] = contracts.Call3Result{Success: false, ReturnData: []byte{}}
			continue
		}
		results[i] = contracts.Call3Result{Success: true, ReturnData: out}
	}
	return method.Outputs.Pack(results)
}

func (c *Chain) balanceOf(account common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (c *Chain) countCall(target common.Address, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(data) >= 4 {
		c.DirectCalls[fmt.Sprintf("%s:%x", target.Hex(), data[:4])]++
	}
}

// CallCount how many direct (non-multicall) reads hit method at target
func (c *Chain) CallCount(target common.Address, parsed abi.ABI, method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.DirectCalls[fmt.Sprintf("%s:%x", target.Hex(), parsed.Methods[method].ID)]
}

// CallContract implements eth_call at latest
func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.StaticCalls++
	staticErr, callErr := c.StaticCallErr, c.CallErr
	c.mu.Unlock()
	if callErr != nil {
		return nil, callErr
	}
	if staticErr != nil {
		return nil, staticErr
	}
	c.countCall(*msg.To, msg.Data)
	return c.dispatch(*msg.To, msg.Data)
}

// PendingCallContract implements eth_call at pending
func (c *Chain) PendingCallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.PendingCalls++
	callErr := c.CallErr
	c.mu.Unlock()
	if callErr != nil {
		return nil, callErr
	}
	c.countCall(*msg.To, msg.Data)
	return c.dispatch(*msg.To, msg.Data)
}

func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	if c.ChainIDErr != nil {
		return nil, c.ChainIDErr
	}
	return new(big.Int).Set(c.ChainIDValue), nil
}

func (c *Chain) BalanceAt(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	if c.CallErr != nil {
		return nil, c.CallErr
	}
	return c.balanceOf(account), nil
}

func (c *Chain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if c.EstimateErr != nil {
		return 0, c.EstimateErr
	}
	return c.GasEstimate, nil
}

func (c *Chain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if c.GasPriceErr != nil {
		return nil, c.GasPriceErr
	}
	return new(big.Int).Set(c.GasPrice), nil
}

func (c *Chain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce, nil
}

// SendTransaction records tx and mines it into a receipt right away
func (c *Chain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if c.SendErr != nil {
		return c.SendErr
	}
	status := types.ReceiptStatusSuccessful
	if c.RevertTx != nil && c.RevertTx(tx) {
		status = types.ReceiptStatusFailed
	}

	c.mu.Lock()
	c.Sent = append(c.Sent, tx)
	c.nonce++
	if !c.HoldReceipts {
		c.receipts[tx.Hash()] = &types.Receipt{
			Status:      status,
			TxHash:      tx.Hash(),
			GasUsed:     tx.Gas() / 2,
			BlockNumber: big.NewInt(int64(len(c.Sent))),
		}
	}
	onSend := c.OnSend
	c.mu.Unlock()

	if onSend != nil {
		onSend(tx)
	}
	return nil
}

func (c *Chain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}
