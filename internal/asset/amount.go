package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrNilAsset       = errors.New("asset: nil asset")
	ErrNilRaw         = errors.New("asset: nil raw value")
	ErrNegativeAmount = errors.New("asset: negative amount")
	ErrAssetMismatch  = errors.New("asset: cannot operate on different assets")
)

// Amount is an immutable value object representing a quantity of an asset.
// The raw value is always in the token's smallest unit.
type Amount struct {
	raw   *big.Int
	asset *Asset
}

// NewAmount creates an Amount from a raw big.Int value in the smallest unit.
func NewAmount(asset *Asset, raw *big.Int) Amount {
	if asset == nil {
		panic(ErrNilAsset)
	}
	if raw == nil {
		panic(ErrNilRaw)
	}
	if raw.Sign() < 0 {
		panic(ErrNegativeAmount)
	}

	return Amount{
		raw:   new(big.Int).Set(raw), // defensive copy
		asset: asset,
	}
}

// Zero creates a zero Amount for the given asset.
func Zero(asset *Asset) Amount {
	return NewAmount(asset, big.NewInt(0))
}

// FromDecimal converts a human-readable quantity into an Amount, truncating
// precision beyond the asset's decimals.
func FromDecimal(asset *Asset, value decimal.Decimal) (Amount, error) {
	if asset == nil {
		return Amount{}, ErrNilAsset
	}
	if value.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}

	scaled := value.Shift(int32(asset.Decimals())).Truncate(0)
	return NewAmount(asset, scaled.BigInt()), nil
}

// Raw returns a copy of the raw value in the smallest unit.
func (a Amount) Raw() *big.Int {
	return new(big.Int).Set(a.raw)
}

// Asset returns the asset this amount is denominated in.
func (a Amount) Asset() *Asset {
	return a.asset
}

// ToDecimal converts the raw value to a human-readable decimal.
func (a Amount) ToDecimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.raw, -int32(a.asset.Decimals()))
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.raw.Sign() == 0
}

// Cmp compares two amounts of the same asset (-1, 0, +1).
func (a Amount) Cmp(other Amount) (int, error) {
	if !a.asset.Equals(other.asset) {
		return 0, ErrAssetMismatch
	}
	return a.raw.Cmp(other.raw), nil
}

// String returns a human-readable representation.
func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.ToDecimal().String(), a.asset.Symbol())
}
