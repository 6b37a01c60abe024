package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// NativeDecimals decimals of the chain's native asset and of every launchpad token
	NativeDecimals = 18
	// Placeholder shown instead of a figure that cannot be computed
	Placeholder = "--"
	// MaxBps full scale of a basis-point value
	MaxBps = 10000
)

var (
	hundred = decimal.NewFromInt(100)

	// DefaultSupplyConstant circulating supply used for market cap
	DefaultSupplyConstant = decimal.NewFromInt(1_300_000_000)

	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

// Progress bonding-curve completion, clamped to [0, 100]
type Progress struct {
	Text    string  `json:"progress"`
	Percent float64 `json:"progressPercent"`
}

// Complete reports whether the curve reached its target
func (p Progress) Complete() bool {
	return p.Text == "100.00"
}

// CalculateProgress returns min(100, reserve1/target*100) rounded to 2 places.
// A zero or missing target yields 0.
func CalculateProgress(reserve1, target *big.Int) Progress {
	if reserve1 == nil || target == nil || target.Sign() <= 0 || reserve1.Sign() <= 0 {
		return Progress{Text: "0.00", Percent: 0}
	}

	p := decimal.NewFromBigInt(reserve1, 0).
		Mul(hundred).
		DivRound(decimal.NewFromBigInt(target, 0), 2)
	if p.GreaterThan(hundred) {
		p = hundred
	}

	f, _ := p.Float64()
	return Progress{Text: p.StringFixed(2), Percent: f}
}

// CalculateMarketCap returns lastPrice / 1e18 * supply * nativeUSD to 2 places,
// or Placeholder when the native price is unknown.
func CalculateMarketCap(lastPrice *big.Int, supply decimal.Decimal, nativeUSD decimal.NullDecimal) string {
	if !nativeUSD.Valid || lastPrice == nil {
		return Placeholder
	}
	return decimal.NewFromBigInt(lastPrice, -NativeDecimals).
		Mul(supply).
		Mul(nativeUSD.Decimal).
		StringFixed(2)
}

// MinAmountOut returns est * (10000 - bps) / 10000, floored.
// bps is clamped to [0, 10000] so the bound never exceeds the estimate.
func MinAmountOut(est *big.Int, bps int64) *big.Int {
	if est == nil || est.Sign() <= 0 {
		return new(big.Int)
	}
	if bps < 0 {
		bps = 0
	}
	if bps > MaxBps {
		bps = MaxBps
	}
	out := new(big.Int).Mul(est, big.NewInt(MaxBps-bps))
	return out.Quo(out, big.NewInt(MaxBps))
}

// SlippageToBps converts a percent string ("1", "0.5") to basis points, rounding up
// so the resulting bound is never looser than requested. Zero or values above
// maxPercent are rejected.
func SlippageToBps(percent string, maxPercent decimal.Decimal) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(percent))
	if err != nil {
		return 0, fmt.Errorf("invalid slippage %q: %w", percent, err)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("slippage must be greater than 0")
	}
	if d.GreaterThan(maxPercent) {
		return 0, fmt.Errorf("slippage cannot exceed %s%%", maxPercent.String())
	}
	return d.Mul(hundred).Ceil().IntPart(), nil
}

// SellPresetAmount returns percent% of balance, truncated to 18 places.
// Trailing zeros are trimmed only when a decimal point is present.
func SellPresetAmount(balance string, percent int) (string, error) {
	b, err := decimal.NewFromString(strings.TrimSpace(balance))
	if err != nil {
		return "", fmt.Errorf("invalid balance %q: %w", balance, err)
	}
	if b.IsNegative() {
		return "", ErrNegativeAmount
	}
	if percent <= 0 || percent > 100 {
		return "", fmt.Errorf("percent must be in (0, 100], got %d", percent)
	}

	amount := b.Mul(decimal.New(int64(percent), -2)).Truncate(NativeDecimals)
	return TrimDecimalZeros(amount.StringFixed(NativeDecimals)), nil
}

// TrimDecimalZeros drops trailing fractional zeros and a dangling point.
// Integers are returned unchanged.
func TrimDecimalZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// ParseUnits converts a decimal string into base units
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, ErrTooManyDecimals
	}
	return scaled.BigInt(), nil
}

// FormatUnits renders base units as a decimal string
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

// AddPercent returns v + v*percent/100 using integer math
func AddPercent(v *big.Int, percent int64) *big.Int {
	extra := new(big.Int).Mul(v, big.NewInt(percent))
	extra.Quo(extra, big.NewInt(100))
	return extra.Add(extra, v)
}
