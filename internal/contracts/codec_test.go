package contracts

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packOutputs(t *testing.T, method string, values ...interface{}) []byte {
	t.Helper()
	m, ok := TokenManagerABI.Methods[method]
	require.True(t, ok, method)
	data, err := m.Outputs.Pack(values...)
	require.NoError(t, err)
	return data
}

func TestResultVariants(t *testing.T) {
	ok := Success(42)
	v, err := ok.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, ok.OK())

	bad := Failure[int](ErrCallFailed)
	_, err = bad.Get()
	assert.ErrorIs(t, err, ErrCallFailed)
	assert.Equal(t, 7, bad.OrElse(7))

	var zero Result[string]
	assert.False(t, zero.OK())
	assert.ErrorIs(t, zero.Err(), ErrDecodeFailed)
}

func TestDecodeTokenInfoPreservesFullWidthIntegers(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	base := common.HexToAddress("0x1111111111111111111111111111111111111111")
	creator := common.HexToAddress("0x2222222222222222222222222222222222222222")

	data := packOutputs(t, "tokensInfo",
		base, common.Address{},
		big.NewInt(1), huge, big.NewInt(3), big.NewInt(4),
		big.NewInt(5), big.NewInt(6), big.NewInt(7), big.NewInt(8),
		creator, true,
	)

	info, err := DecodeTokenInfo(data).Get()
	require.NoError(t, err)
	assert.Equal(t, base, info.Base)
	assert.Equal(t, 0, huge.Cmp(info.Reserve1))
	assert.Equal(t, int64(8), info.Target.Int64())
	assert.Equal(t, creator, info.Creator)
	assert.True(t, info.Launched)
}

func TestDecodeIsolatesMalformedData(t *testing.T) {
	r := DecodeTokenInfo([]byte{0x01, 0x02})
	assert.False(t, r.OK())
	assert.ErrorIs(t, r.Err(), ErrDecodeFailed)

	assert.False(t, DecodeSymbol(nil).OK())
	assert.Equal(t, "UNKNOWN", DecodeSymbol(nil).OrElse("UNKNOWN"))
}

func TestFromCallSkipsDecodeOnFailedSubCall(t *testing.T) {
	called := false
	r := FromCall(Call3Result{Success: false}, func(b []byte) Result[string] {
		called = true
		return Success("x")
	})
	assert.False(t, called)
	assert.True(t, errors.Is(r.Err(), ErrCallFailed))
}

func TestDecodeTryBuy(t *testing.T) {
	data := packOutputs(t, "tryBuy", big.NewInt(1000), big.NewInt(5))
	q, err := DecodeTryBuy(data).Get()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), q.AmountOut.Int64())
	assert.Equal(t, int64(5), q.Refund.Int64())
}

func TestAggregate3RoundTripShape(t *testing.T) {
	calls := []Call3{
		{Target: common.HexToAddress("0x01"), AllowFailure: true, CallData: MustPack(TokenManagerABI, "allTokens")},
	}
	payload, err := EncodeAggregate3(calls)
	require.NoError(t, err)
	assert.Equal(t, Multicall3ABI.Methods["aggregate3"].ID, payload[:4])

	type wire struct {
		Success    bool
		ReturnData []byte
	}
	out, err := Multicall3ABI.Methods["aggregate3"].Outputs.Pack([]wire{
		{Success: true, ReturnData: []byte{0xaa}},
		{Success: false, ReturnData: nil},
	})
	require.NoError(t, err)

	results, err := DecodeAggregate3(out)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, []byte{0xaa}, results[0].ReturnData)
	assert.False(t, results[1].Success)
}
