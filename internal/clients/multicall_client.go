package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/contracts"
	"launchpad-backend/internal/metrics"
)

// MulticallClient batches independent reads into one aggregate3 call
type MulticallClient struct {
	reader  ChainReader
	address common.Address
}

// NewMulticallClient creates a batcher against the Multicall3 deployment at address
func NewMulticallClient(reader ChainReader, address common.Address) *MulticallClient {
	return &MulticallClient{reader: reader, address: address}
}

// Address of the Multicall3 contract
func (m *MulticallClient) Address() common.Address {
	return m.address
}

// Aggregate3 returns one result per call, in request order. Failed sub-calls
// come back as Success=false; only a failure of the whole batch is an error.
func (m *MulticallClient) Aggregate3(ctx context.Context, calls []contracts.Call3) ([]contracts.Call3Result, error) {
	if len(calls) == 0 {
		return []contracts.Call3Result{}, nil
	}

	payload, err := contracts.EncodeAggregate3(calls)
	if err != nil {
		return nil, fmt.Errorf("encode aggregate3: %w", err)
	}
	msg := ethereum.CallMsg{To: &m.address, Data: payload}

	start := time.Now()
	mode := "static"
	raw, err := m.reader.CallContract(ctx, msg, nil)
	if err != nil && ctx.Err() == nil {
		logrus.WithFields(logrus.Fields{
			"calls": len(calls),
			"error": err.Error(),
		}).Debug("⚠️ [Multicall] static call rejected, retrying as regular call")
		mode = "regular"
		raw, err = m.reader.PendingCallContract(ctx, msg)
	}
	metrics.MulticallDuration.Observe(time.Since(start).Seconds())
	metrics.MulticallBatchSize.Observe(float64(len(calls)))
	if err != nil {
		metrics.MulticallBatchesTotal.WithLabelValues(mode, "error").Inc()
		return nil, fmt.Errorf("aggregate3 (%d calls): %w", len(calls), err)
	}

	results, err := contracts.DecodeAggregate3(raw)
	if err != nil {
		metrics.MulticallBatchesTotal.WithLabelValues(mode, "error").Inc()
		return nil, fmt.Errorf("decode aggregate3: %w", err)
	}
	if len(results) != len(calls) {
		metrics.MulticallBatchesTotal.WithLabelValues(mode, "error").Inc()
		return nil, fmt.Errorf("aggregate3 returned %d results for %d calls", len(results), len(calls))
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	metrics.MulticallSubcallFailures.Add(float64(failed))
	metrics.MulticallBatchesTotal.WithLabelValues(mode, "ok").Inc()
	return results, nil
}

// Call performs a single direct read on target
func (m *MulticallClient) Call(ctx context.Context, target common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &target, Data: data}
	out, err := m.reader.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("eth_call %s: %w", target.Hex(), err)
	}
	return out, nil
}
