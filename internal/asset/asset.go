// Package asset provides a type-safe model for on-chain tokens.
// Raw amounts use big.Int in the token's smallest unit; decimal.Decimal is
// used at boundaries (feed prices, display, config).
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AssetID uniquely identifies an asset by chain and contract address.
// The symbol is display metadata, not identity.
type AssetID struct {
	chainID uint64
	address common.Address
}

// NewTokenAssetID creates an AssetID for an ERC20 token.
func NewTokenAssetID(chainID uint64, addr common.Address) AssetID {
	return AssetID{chainID: chainID, address: addr}
}

// ChainID returns the chain ID.
func (id AssetID) ChainID() uint64 { return id.chainID }

// Address returns the token contract address.
func (id AssetID) Address() common.Address { return id.address }

// Equals compares two AssetIDs for equality.
func (id AssetID) Equals(other AssetID) bool {
	return id.chainID == other.chainID && id.address == other.address
}

// String returns a human-readable representation.
func (id AssetID) String() string {
	return fmt.Sprintf("chain:%d/%s", id.chainID, id.address.Hex())
}

// Asset represents the metadata of an on-chain token.
type Asset struct {
	id       AssetID
	symbol   string
	name     string
	decimals uint8
}

// NewAsset creates a new Asset with the given parameters.
func NewAsset(id AssetID, symbol string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}

	return &Asset{
		id:       id,
		symbol:   symbol,
		decimals: decimals,
	}
}

// NewAssetWithName creates a new Asset with a human-readable name.
func NewAssetWithName(id AssetID, symbol, name string, decimals uint8) *Asset {
	a := NewAsset(id, symbol, decimals)
	a.name = name
	return a
}

// ID returns the unique identifier for this asset.
func (a *Asset) ID() AssetID { return a.id }

// Symbol returns the ticker symbol (e.g., "HYPE", "USDC").
func (a *Asset) Symbol() string { return a.symbol }

// Name returns the human-readable name.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

// Decimals returns the number of decimal places.
func (a *Asset) Decimals() uint8 { return a.decimals }

// Address returns the token contract address.
func (a *Asset) Address() common.Address { return a.id.Address() }

// ChainID returns the chain ID.
func (a *Asset) ChainID() uint64 { return a.id.ChainID() }

// Equals compares two Assets by their ID.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id.Equals(other.id)
}

// String returns the symbol.
func (a *Asset) String() string { return a.symbol }
