package services

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/contracts"
	"launchpad-backend/internal/utils"
)

// StakeView user position in the staking contract
type StakeView struct {
	Staked       string `json:"staked"`
	Withdrawn    string `json:"withdrawn"`
	StakeTime    int64  `json:"stakeTime"`
	HasWithdrawn bool   `json:"hasWithdrawn"`
	Allocation   string `json:"allocation"`
}

// StakingView staking round plus the optional user position
type StakingView struct {
	StartTime    int64      `json:"startTime"`
	EndTime      int64      `json:"endTime"`
	TotalStaked  string     `json:"totalStaked"`
	Participants int64      `json:"participants"`
	Active       bool       `json:"active"`
	MinStake     string     `json:"minStake"`
	User         *StakeView `json:"user,omitempty"`
}

// StakingEvent published on staking.updated
type StakingEvent struct {
	Action string    `json:"action"` // deposit | withdraw
	Owner  string    `json:"owner"`
	Amount string    `json:"amount,omitempty"`
	TxHash string    `json:"txHash"`
	At     time.Time `json:"at"`
}

// StakingService reads and writes the airdrop staking contract
type StakingService struct {
	batcher   Batcher
	staking   common.Address
	tx        *BlockchainTransactionService
	balances  *BalanceService
	publisher EventPublisher
	minStake  *big.Int
	now       func() time.Time
}

func NewStakingService(batcher Batcher, staking common.Address, tx *BlockchainTransactionService, balances *BalanceService, publisher EventPublisher, minStake string) (*StakingService, error) {
	minWei, err := utils.ParseUnits(minStake, utils.NativeDecimals)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum stake %q: %w", minStake, err)
	}
	return &StakingService{
		batcher:   batcher,
		staking:   staking,
		tx:        tx,
		balances:  balances,
		publisher: publisher,
		minStake:  minWei,
		now:       time.Now,
	}, nil
}

// Read returns the round info and, when owner is set, the owner's stake and allocation in the same batch
func (s *StakingService) Read(ctx context.Context, owner *common.Address) (*StakingView, error) {
	calls := []contracts.Call3{
		{Target: s.staking, AllowFailure: false, CallData: contracts.MustPack(contracts.StakingABI, "getStakingInfo")},
	}
	if owner != nil {
		calls = append(calls,
			contracts.Call3{Target: s.staking, AllowFailure: true, CallData: contracts.MustPack(contracts.StakingABI, "getUserStakeInfo", *owner)},
			contracts.Call3{Target: s.staking, AllowFailure: true, CallData: contracts.MustPack(contracts.StakingABI, "getUserPEXOAllocation", *owner)},
		)
	}

	results, err := s.batcher.Aggregate3(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("read staking: %w", err)
	}
	if len(results) != len(calls) {
		return nil, fmt.Errorf("read staking: %d results for %d calls", len(results), len(calls))
	}

	info, err := contracts.FromCall(results[0], contracts.DecodeStakingInfo).Get()
	if err != nil {
		return nil, fmt.Errorf("decode staking info: %w", err)
	}

	now := s.now().Unix()
	view := &StakingView{
		StartTime:    info.StartTime.Int64(),
		EndTime:      info.EndTime.Int64(),
		TotalStaked:  utils.FormatUnits(info.TotalStaked, utils.NativeDecimals),
		Participants: info.Participants.Int64(),
		MinStake:     utils.FormatUnits(s.minStake, utils.NativeDecimals),
	}
	view.Active = now >= view.StartTime && now <= view.EndTime

	if owner != nil {
		user := contracts.FromCall(results[1], contracts.DecodeUserStakeInfo).OrElse(contracts.UserStakeInfo{
			Staked: new(big.Int), Withdrawn: new(big.Int), StakeTime: new(big.Int),
		})
		alloc := contracts.FromCall(results[2], func(b []byte) contracts.Result[*big.Int] {
			return contracts.DecodeUint(contracts.StakingABI, "getUserPEXOAllocation", b)
		}).OrElse(new(big.Int))

		view.User = &StakeView{
			Staked:       utils.FormatUnits(user.Staked, utils.NativeDecimals),
			Withdrawn:    utils.FormatUnits(user.Withdrawn, utils.NativeDecimals),
			StakeTime:    user.StakeTime.Int64(),
			HasWithdrawn: user.HasWithdrawn,
			Allocation:   utils.FormatUnits(alloc, utils.NativeDecimals),
		}
	}
	return view, nil
}

// Deposit stakes amount native units while the round is open
func (s *StakingService) Deposit(ctx context.Context, amount string) (*TxResult, error) {
	owner, err := s.tx.From()
	if err != nil {
		return nil, err
	}
	wei, err := ParseTradeAmount(amount)
	if err != nil {
		return nil, err
	}
	if wei.Cmp(s.minStake) < 0 {
		return nil, fmt.Errorf("%w: minimum is %s", ErrBelowMinimumStake, utils.FormatUnits(s.minStake, utils.NativeDecimals))
	}

	view, err := s.Read(ctx, nil)
	if err != nil {
		return nil, err
	}
	if !view.Active {
		return nil, ErrStakingNotActive
	}

	balance, err := s.tx.NativeBalance(ctx)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(wei) < 0 {
		return nil, fmt.Errorf("%w: have %s", ErrInsufficientBalance, utils.FormatUnits(balance, utils.NativeDecimals))
	}

	res, err := s.tx.SendAndWait(ctx, TxRequest{
		Kind:  "stake",
		To:    s.staking,
		Value: wei,
		Data:  contracts.MustPack(contracts.StakingABI, "deposit", wei),
	})
	if err != nil {
		return res, err
	}
	s.settled(owner, "deposit", utils.FormatUnits(wei, utils.NativeDecimals), res)
	return res, nil
}

// Withdraw returns the owner's stake
func (s *StakingService) Withdraw(ctx context.Context) (*TxResult, error) {
	owner, err := s.tx.From()
	if err != nil {
		return nil, err
	}
	view, err := s.Read(ctx, &owner)
	if err != nil {
		return nil, err
	}
	if view.User == nil || view.User.HasWithdrawn || view.User.Staked == "0" {
		return nil, ErrNothingToWithdraw
	}

	res, err := s.tx.SendAndWait(ctx, TxRequest{
		Kind: "unstake",
		To:   s.staking,
		Data: contracts.MustPack(contracts.StakingABI, "withdraw"),
	})
	if err != nil {
		return res, err
	}
	s.settled(owner, "withdraw", view.User.Staked, res)
	return res, nil
}

func (s *StakingService) settled(owner common.Address, action, amount string, res *TxResult) {
	logrus.Infof("✅ [Staking] %s of %s confirmed: %s", action, amount, res.Hash.Hex())
	if s.balances != nil {
		s.balances.Invalidate(owner)
	}
	if s.publisher == nil {
		return
	}
	event := StakingEvent{Action: action, Owner: owner.Hex(), Amount: amount, TxHash: res.Hash.Hex(), At: s.now()}
	if err := s.publisher.Publish(clients.SubjectStakingUpdated, event); err != nil {
		logrus.Warnf("⚠️ [Staking] Failed to publish %s: %v", action, err)
	}
}
