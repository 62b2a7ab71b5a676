package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs
const (
	ChainIDHyperEVM = 999
	ChainIDEthereum = 1
)

// Well-known token addresses on HyperEVM
var (
	AddrWHYPE = common.HexToAddress("0x5555555555555555555555555555555555555555")
	AddrUSDC  = common.HexToAddress("0xb88339CB7199b77E23DB6E890353E22632Ba630f")
	AddrUSDT0 = common.HexToAddress("0xB8CE59FC3717ada4C02eaDF9682A9e934F625ebb")
	AddrUBTC  = common.HexToAddress("0x9FDBdA0A5e284c32744D2f17Ee5c74B284993463")
	AddrUETH  = common.HexToAddress("0xBe6727B535545C67d5cAa73dEa54865B92CF7907")
)

// DefaultRegistry returns a registry pre-populated with well-known HyperEVM tokens.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(NewAssetWithName(NewTokenAssetID(ChainIDHyperEVM, AddrWHYPE), "HYPE", "Wrapped HYPE", 18))
	r.Register(NewAssetWithName(NewTokenAssetID(ChainIDHyperEVM, AddrUSDC), "USDC", "USD Coin", 6))
	r.Register(NewAssetWithName(NewTokenAssetID(ChainIDHyperEVM, AddrUSDT0), "USDT", "USDT0", 6))
	r.Register(NewAssetWithName(NewTokenAssetID(ChainIDHyperEVM, AddrUBTC), "BTC", "Unit Bitcoin", 8))
	r.Register(NewAssetWithName(NewTokenAssetID(ChainIDHyperEVM, AddrUETH), "ETH", "Unit Ethereum", 18))

	return r
}
