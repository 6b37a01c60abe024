package contracts

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrCallFailed the sub-call reverted or was otherwise unavailable
	ErrCallFailed = errors.New("call failed")
	// ErrDecodeFailed the return data did not match the expected outputs
	ErrDecodeFailed = errors.New("decode failed")
)

// Result is the decoded value of one call, or the reason it could not be decoded.
// The zero value is a failure.
type Result[T any] struct {
	value T
	err   error
	ok    bool
}

// Success wraps a decoded value
func Success[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Failure wraps a decode or call error
func Failure[T any](err error) Result[T] {
	if err == nil {
		err = ErrDecodeFailed
	}
	return Result[T]{err: err}
}

// Get returns the value, or the failure reason
func (r Result[T]) Get() (T, error) {
	if !r.ok {
		var zero T
		if r.err == nil {
			return zero, ErrDecodeFailed
		}
		return zero, r.err
	}
	return r.value, nil
}

// OK reports whether decoding succeeded
func (r Result[T]) OK() bool { return r.ok }

// Err is nil on success
func (r Result[T]) Err() error {
	_, err := r.Get()
	return err
}

// OrElse returns the value, or fallback on failure
func (r Result[T]) OrElse(fallback T) T {
	if !r.ok {
		return fallback
	}
	return r.value
}

// Call3 one aggregate3 sub-call
type Call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Call3Result one aggregate3 sub-result, index-aligned with its Call3
type Call3Result struct {
	Success    bool
	ReturnData []byte
}

// TokenInfo decoded tokensInfo(address)
type TokenInfo struct {
	Base        common.Address `json:"base"`
	Quote       common.Address `json:"quote"`
	Reserve0    *big.Int       `json:"reserve0"`
	Reserve1    *big.Int       `json:"reserve1"`
	VReserve0   *big.Int       `json:"vReserve0"`
	VReserve1   *big.Int       `json:"vReserve1"`
	MaxOffers   *big.Int       `json:"maxOffers"`
	TotalSupply *big.Int       `json:"totalSupply"`
	LastPrice   *big.Int       `json:"lastPrice"`
	Target      *big.Int       `json:"target"`
	Creator     common.Address `json:"creator"`
	Launched    bool           `json:"launched"`
}

// BuyQuote decoded tryBuy(address,uint256)
type BuyQuote struct {
	AmountOut *big.Int
	Refund    *big.Int
}

// StakingInfo decoded getStakingInfo()
type StakingInfo struct {
	StartTime    *big.Int `json:"startTime"`
	EndTime      *big.Int `json:"endTime"`
	TotalStaked  *big.Int `json:"totalStaked"`
	Participants *big.Int `json:"participants"`
}

// UserStakeInfo decoded getUserStakeInfo(address)
type UserStakeInfo struct {
	Staked       *big.Int `json:"staked"`
	Withdrawn    *big.Int `json:"withdrawn"`
	StakeTime    *big.Int `json:"stakeTime"`
	HasWithdrawn bool     `json:"hasWithdrawn"`
}

// MustPack packs a call known to be valid at compile time
func MustPack(parsed abi.ABI, method string, args ...interface{}) []byte {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		panic(fmt.Sprintf("pack %s: %v", method, err))
	}
	return data
}

// FromCall turns a multicall sub-result into a Result using decode.
// A failed sub-call never reaches decode.
func FromCall[T any](r Call3Result, decode func([]byte) Result[T]) Result[T] {
	if !r.Success {
		return Failure[T](ErrCallFailed)
	}
	return decode(r.ReturnData)
}

func unpack(parsed abi.ABI, method string, data []byte, want int) ([]interface{}, error) {
	out, err := parsed.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, method, err)
	}
	if len(out) != want {
		return nil, fmt.Errorf("%w: %s: got %d outputs, want %d", ErrDecodeFailed, method, len(out), want)
	}
	return out, nil
}

func as[T any](method string, v interface{}) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s: unexpected output type %T", ErrDecodeFailed, method, v)
	}
	return t, nil
}

// decodeOne decodes a single-output method
func decodeOne[T any](parsed abi.ABI, method string, data []byte) Result[T] {
	out, err := unpack(parsed, method, data, 1)
	if err != nil {
		return Failure[T](err)
	}
	v, err := as[T](method, out[0])
	if err != nil {
		return Failure[T](err)
	}
	return Success(v)
}

// DecodeUint decodes a single uint256 output of method on parsed
func DecodeUint(parsed abi.ABI, method string, data []byte) Result[*big.Int] {
	return decodeOne[*big.Int](parsed, method, data)
}

// DecodeAddress decodes a single address output of method on parsed
func DecodeAddress(parsed abi.ABI, method string, data []byte) Result[common.Address] {
	return decodeOne[common.Address](parsed, method, data)
}

// DecodeString decodes a single string output of method on parsed
func DecodeString(parsed abi.ABI, method string, data []byte) Result[string] {
	return decodeOne[string](parsed, method, data)
}

// DecodeAmounts decodes a uint256[] output such as getAmountsOut
func DecodeAmounts(parsed abi.ABI, method string, data []byte) Result[[]*big.Int] {
	return decodeOne[[]*big.Int](parsed, method, data)
}

// DecodeSymbol decodes ERC-20 symbol()
func DecodeSymbol(data []byte) Result[string] {
	return DecodeString(ERC20ABI, "symbol", data)
}

// DecodeTokenInfo decodes tokensInfo(address) positionally
func DecodeTokenInfo(data []byte) Result[TokenInfo] {
	const method = "tokensInfo"
	out, err := unpack(TokenManagerABI, method, data, 12)
	if err != nil {
		return Failure[TokenInfo](err)
	}

	var info TokenInfo
	addrs := []*common.Address{&info.Base, &info.Quote}
	for i, dst := range addrs {
		if *dst, err = as[common.Address](method, out[i]); err != nil {
			return Failure[TokenInfo](err)
		}
	}
	ints := []**big.Int{
		&info.Reserve0, &info.Reserve1, &info.VReserve0, &info.VReserve1,
		&info.MaxOffers, &info.TotalSupply, &info.LastPrice, &info.Target,
	}
	for i, dst := range ints {
		if *dst, err = as[*big.Int](method, out[2+i]); err != nil {
			return Failure[TokenInfo](err)
		}
	}
	if info.Creator, err = as[common.Address](method, out[10]); err != nil {
		return Failure[TokenInfo](err)
	}
	if info.Launched, err = as[bool](method, out[11]); err != nil {
		return Failure[TokenInfo](err)
	}
	return Success(info)
}

// DecodeTryBuy decodes tryBuy(address,uint256)
func DecodeTryBuy(data []byte) Result[BuyQuote] {
	const method = "tryBuy"
	out, err := unpack(TokenManagerABI, method, data, 2)
	if err != nil {
		return Failure[BuyQuote](err)
	}
	amountOut, err := as[*big.Int](method, out[0])
	if err != nil {
		return Failure[BuyQuote](err)
	}
	refund, err := as[*big.Int](method, out[1])
	if err != nil {
		return Failure[BuyQuote](err)
	}
	return Success(BuyQuote{AmountOut: amountOut, Refund: refund})
}

// DecodeStakingInfo decodes getStakingInfo()
func DecodeStakingInfo(data []byte) Result[StakingInfo] {
	const method = "getStakingInfo"
	out, err := unpack(StakingABI, method, data, 4)
	if err != nil {
		return Failure[StakingInfo](err)
	}
	var info StakingInfo
	for i, dst := range []**big.Int{&info.StartTime, &info.EndTime, &info.TotalStaked, &info.Participants} {
		if *dst, err = as[*big.Int](method, out[i]); err != nil {
			return Failure[StakingInfo](err)
		}
	}
	return Success(info)
}

// DecodeUserStakeInfo decodes getUserStakeInfo(address)
func DecodeUserStakeInfo(data []byte) Result[UserStakeInfo] {
	const method = "getUserStakeInfo"
	out, err := unpack(StakingABI, method, data, 4)
	if err != nil {
		return Failure[UserStakeInfo](err)
	}
	var info UserStakeInfo
	for i, dst := range []**big.Int{&info.Staked, &info.Withdrawn, &info.StakeTime} {
		if *dst, err = as[*big.Int](method, out[i]); err != nil {
			return Failure[UserStakeInfo](err)
		}
	}
	if info.HasWithdrawn, err = as[bool](method, out[3]); err != nil {
		return Failure[UserStakeInfo](err)
	}
	return Success(info)
}

// EncodeAggregate3 packs an aggregate3 call
func EncodeAggregate3(calls []Call3) ([]byte, error) {
	return Multicall3ABI.Pack("aggregate3", calls)
}

// DecodeAggregate3 unpacks aggregate3 return data
func DecodeAggregate3(data []byte) ([]Call3Result, error) {
	out, err := unpack(Multicall3ABI, "aggregate3", data, 1)
	if err != nil {
		return nil, err
	}
	results := *abi.ConvertType(out[0], new([]Call3Result)).(*[]Call3Result)
	return results, nil
}
