package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/contracts"
	"launchpad-backend/internal/metrics"
	"launchpad-backend/internal/models"
	"launchpad-backend/internal/repository"
	"launchpad-backend/internal/utils"
)

// QuoteRequest amount is in native units for a buy and token units for a sell
type QuoteRequest struct {
	Token       common.Address
	Direction   models.TradeDirection
	Amount      string
	SlippageBps int64
}

// Quote expected output of one trade on the venue selected for the token
type Quote struct {
	Token        common.Address        `json:"token"`
	Direction    models.TradeDirection `json:"direction"`
	Venue        models.Venue          `json:"venue"`
	AmountIn     string                `json:"amountIn"`
	AmountOut    string                `json:"amountOut"`
	MinAmountOut string                `json:"minAmountOut"`
	Refund       string                `json:"refund"`
	SlippageBps  int64                 `json:"slippageBps"`
	Progress     string                `json:"progress"`
	QuotedAt     time.Time             `json:"quotedAt"`

	amountIn  *big.Int
	amountOut *big.Int
	minOut    *big.Int
	executor  TradeExecutor
}

// ExecuteRequest a quote request to submit
type ExecuteRequest struct {
	QuoteRequest
	SessionID string
	// OnSubmitted runs once the node accepted the trade transaction
	OnSubmitted func(hash common.Hash)
}

// TradeEvent published on trades.settled and trades.failed
type TradeEvent struct {
	Trade *models.TradeRecord `json:"trade"`
	At    time.Time           `json:"at"`
}

// TradeService quotes and executes trades, picking the venue from curve progress
type TradeService struct {
	state     *TokenStateService
	internal  TradeExecutor
	external  TradeExecutor
	batcher   Batcher
	tx        *BlockchainTransactionService
	balances  *BalanceService
	repo      repository.TradeRepository
	publisher EventPublisher

	maxSlippageBps int64
}

func NewTradeService(
	state *TokenStateService,
	internal, external TradeExecutor,
	batcher Batcher,
	tx *BlockchainTransactionService,
	balances *BalanceService,
	repo repository.TradeRepository,
	publisher EventPublisher,
	maxSlippage decimal.Decimal,
) *TradeService {
	return &TradeService{
		state:          state,
		internal:       internal,
		external:       external,
		batcher:        batcher,
		tx:             tx,
		balances:       balances,
		repo:           repo,
		publisher:      publisher,
		maxSlippageBps: maxSlippage.Mul(decimal.NewFromInt(100)).IntPart(),
	}
}

// ParseTradeAmount parses a positive 18-decimal amount
func ParseTradeAmount(amount string) (*big.Int, error) {
	if strings.TrimSpace(amount) == "" {
		return nil, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	v, err := utils.ParseUnits(amount, utils.NativeDecimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrInvalidAmount)
	}
	return v, nil
}

func (s *TradeService) checkSlippage(bps int64) error {
	if bps <= 0 || bps > s.maxSlippageBps {
		return fmt.Errorf("%w: %d bps outside (0, %d]", ErrInvalidSlippage, bps, s.maxSlippageBps)
	}
	return nil
}

// SelectVenue reads the token once. Progress 100 selects the external pool.
func (s *TradeService) SelectVenue(ctx context.Context, token common.Address) (TradeExecutor, utils.Progress, error) {
	st, err := s.state.Read(ctx, token)
	if err != nil {
		return nil, utils.Progress{}, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	if st.Info == nil {
		return nil, utils.Progress{}, fmt.Errorf("%w: %s", ErrTokenNotFound, token.Hex())
	}
	if st.Progress.Complete() {
		return s.external, st.Progress, nil
	}
	return s.internal, st.Progress, nil
}

// Quote validates the request and asks the selected venue for the expected output
func (s *TradeService) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.Direction != models.TradeDirectionBuy && req.Direction != models.TradeDirectionSell {
		return nil, fmt.Errorf("%w: direction %q", ErrInvalidAmount, req.Direction)
	}
	amountIn, err := ParseTradeAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.checkSlippage(req.SlippageBps); err != nil {
		return nil, err
	}

	exec, progress, err := s.SelectVenue(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	vq, err := exec.Quote(ctx, req.Token, req.Direction, amountIn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	minOut := utils.MinAmountOut(vq.AmountOut, req.SlippageBps)

	return &Quote{
		Token:        req.Token,
		Direction:    req.Direction,
		Venue:        exec.Venue(),
		AmountIn:     utils.FormatUnits(amountIn, utils.NativeDecimals),
		AmountOut:    utils.FormatUnits(vq.AmountOut, utils.NativeDecimals),
		MinAmountOut: utils.FormatUnits(minOut, utils.NativeDecimals),
		Refund:       utils.FormatUnits(vq.Refund, utils.NativeDecimals),
		SlippageBps:  req.SlippageBps,
		Progress:     progress.Text,
		QuotedAt:     time.Now(),
		amountIn:     amountIn,
		amountOut:    vq.AmountOut,
		minOut:       minOut,
		executor:     exec,
	}, nil
}

// validate checks everything that can be checked before a transaction is sent
func (s *TradeService) validate(ctx context.Context, req QuoteRequest) (common.Address, *big.Int, error) {
	owner, err := s.tx.From()
	if err != nil {
		return common.Address{}, nil, err
	}
	amountIn, err := ParseTradeAmount(req.Amount)
	if err != nil {
		return common.Address{}, nil, err
	}
	if err := s.checkSlippage(req.SlippageBps); err != nil {
		return common.Address{}, nil, err
	}

	bal, err := s.balances.Get(ctx, req.Token, owner)
	if err != nil {
		return common.Address{}, nil, err
	}
	switch req.Direction {
	case models.TradeDirectionBuy:
		if bal.Native.Cmp(amountIn) < 0 {
			return common.Address{}, nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, bal.NativeText, req.Amount)
		}
	case models.TradeDirectionSell:
		if bal.TokenBalance.Sign() <= 0 || amountIn.Cmp(bal.TokenBalance) > 0 {
			return common.Address{}, nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, bal.TokenText, req.Amount)
		}
	default:
		return common.Address{}, nil, fmt.Errorf("%w: direction %q", ErrInvalidAmount, req.Direction)
	}
	return owner, amountIn, nil
}

// Execute validates, quotes, approves when needed, sends the trade and waits for it.
// Input errors return a nil record; once a record exists it is returned with any later error.
func (s *TradeService) Execute(ctx context.Context, req ExecuteRequest) (*models.TradeRecord, error) {
	owner, _, err := s.validate(ctx, req.QuoteRequest)
	if err != nil {
		return nil, err
	}

	quote, err := s.Quote(ctx, req.QuoteRequest)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	record := &models.TradeRecord{
		ID:                 uuid.New().String(),
		SessionID:          req.SessionID,
		Token:              req.Token.Hex(),
		Trader:             owner.Hex(),
		Direction:          req.Direction,
		Venue:              quote.Venue,
		AmountIn:           quote.amountIn.String(),
		AmountOutEstimated: quote.amountOut.String(),
		MinAmountOut:       quote.minOut.String(),
		SlippageBps:        req.SlippageBps,
		Status:             models.TradeStatusSubmitted,
		CreatedAt:          start,
		UpdatedAt:          start,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create trade record: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"trade":     record.ID,
		"token":     record.Token,
		"direction": record.Direction,
		"venue":     record.Venue,
		"amountIn":  quote.AmountIn,
		"minOut":    quote.MinAmountOut,
	}).Info("💱 [Trade] Executing trade")

	if req.Direction == models.TradeDirectionSell {
		approval, err := s.ensureAllowance(ctx, req.Token, owner, quote.executor.Spender(), quote.amountIn)
		if err != nil {
			return s.fail(ctx, record, fmt.Errorf("approval failed: %w", err))
		}
		if approval != nil {
			record.ApprovalTxHash = approval.Hex()
		}
	}

	txReq, err := quote.executor.BuildTrade(req.Token, req.Direction, quote.amountIn, quote.minOut, owner)
	if err != nil {
		return s.fail(ctx, record, err)
	}
	tx, _, err := s.tx.Send(ctx, txReq)
	if err != nil {
		return s.fail(ctx, record, err)
	}
	record.TxHash = tx.Hash().Hex()
	record.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, record); err != nil {
		logrus.Warnf("⚠️ [Trade] Failed to save tx hash for %s: %v", record.ID, err)
	}
	if req.OnSubmitted != nil {
		req.OnSubmitted(tx.Hash())
	}

	receipt, err := s.tx.WaitForReceipt(ctx, tx.Hash())
	if receipt != nil {
		if receipt.BlockNumber != nil {
			record.BlockNumber = receipt.BlockNumber.Uint64()
		}
		record.GasUsed = receipt.GasUsed
	}
	if err != nil {
		return s.fail(ctx, record, err)
	}

	now := time.Now()
	record.Status = models.TradeStatusConfirmed
	record.SettledAt = &now
	record.UpdatedAt = now
	if err := s.repo.Update(ctx, record); err != nil {
		logrus.Warnf("⚠️ [Trade] Failed to save settlement of %s: %v", record.ID, err)
	}

	s.balances.Invalidate(owner)
	metrics.TradesTotal.WithLabelValues(string(record.Venue), string(record.Direction), "confirmed").Inc()
	metrics.TradeDuration.WithLabelValues(string(record.Venue)).Observe(time.Since(start).Seconds())
	s.publish(clients.SubjectTradesSettled, record)

	logrus.Infof("✅ [Trade] %s settled: %s in block %d", record.ID, record.TxHash, record.BlockNumber)
	return record, nil
}

// ensureAllowance approves MaxUint256 and waits for it when the allowance is below amount
func (s *TradeService) ensureAllowance(ctx context.Context, token, owner, spender common.Address, amount *big.Int) (*common.Hash, error) {
	data, err := s.batcher.Call(ctx, token, contracts.MustPack(contracts.ERC20ABI, "allowance", owner, spender))
	if err != nil {
		return nil, fmt.Errorf("allowance: %w", err)
	}
	allowance, err := contracts.DecodeUint(contracts.ERC20ABI, "allowance", data).Get()
	if err != nil {
		return nil, err
	}
	if allowance.Cmp(amount) >= 0 {
		return nil, nil
	}

	logrus.Infof("🔓 [Trade] Allowance %s below %s, approving %s", allowance, amount, spender.Hex())
	res, err := s.tx.SendAndWait(ctx, TxRequest{
		Kind: "approve",
		To:   token,
		Data: contracts.MustPack(contracts.ERC20ABI, "approve", spender, math.MaxBig256),
	})
	if err != nil {
		return nil, err
	}
	return &res.Hash, nil
}

func (s *TradeService) fail(ctx context.Context, record *models.TradeRecord, cause error) (*models.TradeRecord, error) {
	record.Status = models.TradeStatusFailed
	record.Error = cause.Error()
	record.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, record); err != nil {
		logrus.Warnf("⚠️ [Trade] Failed to save failure of %s: %v", record.ID, err)
	}

	metrics.TradesTotal.WithLabelValues(string(record.Venue), string(record.Direction), "failed").Inc()
	s.publish(clients.SubjectTradesFailed, record)

	logrus.WithFields(logrus.Fields{
		"trade": record.ID,
		"tx":    record.TxHash,
		"error": cause.Error(),
	}).Warn("❌ [Trade] Trade failed")
	return record, cause
}

func (s *TradeService) publish(subject string, record *models.TradeRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(subject, TradeEvent{Trade: record, At: time.Now()}); err != nil {
		logrus.Warnf("⚠️ [Trade] Failed to publish %s: %v", subject, err)
	}
}

// Get loads a persisted trade record
func (s *TradeService) Get(ctx context.Context, id string) (*models.TradeRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trade %s: %w", id, err)
	}
	return record, nil
}

// History recent trades of token, newest first
func (s *TradeService) History(ctx context.Context, token common.Address, limit int) ([]*models.TradeRecord, error) {
	return s.repo.FindByToken(ctx, token.Hex(), limit)
}
