package asset

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe registry of known assets.
type Registry struct {
	byID     map[AssetID]*Asset
	bySymbol map[string]*Asset
	mu       sync.RWMutex
}

// NewRegistry creates a new empty asset registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[AssetID]*Asset),
		bySymbol: make(map[string]*Asset),
	}
}

// Register adds an asset to the registry.
// Panics if an asset with the same ID or symbol is already registered.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := a.ID()
	if _, exists := r.byID[id]; exists {
		panic(fmt.Sprintf("asset: %s already registered", id))
	}
	if _, exists := r.bySymbol[a.Symbol()]; exists {
		panic(fmt.Sprintf("asset: symbol %s already registered", a.Symbol()))
	}

	r.byID[id] = a
	r.bySymbol[a.Symbol()] = a
}

// Get retrieves an asset by its ID.
func (r *Registry) Get(id AssetID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	return a, ok
}

// GetBySymbol retrieves an asset by its symbol.
func (r *Registry) GetBySymbol(symbol string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.bySymbol[symbol]
	return a, ok
}

// GetToken retrieves a token by chain and address.
func (r *Registry) GetToken(chainID uint64, address common.Address) (*Asset, bool) {
	return r.Get(NewTokenAssetID(chainID, address))
}

// ResolvePair parses a "BASE-QUOTE" pair symbol into its two assets.
func (r *Registry) ResolvePair(pair string) (base, quote *Asset, err error) {
	parts := strings.SplitN(pair, "-", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("asset: malformed pair %q", pair)
	}

	base, ok := r.GetBySymbol(parts[0])
	if !ok {
		return nil, nil, fmt.Errorf("asset: unknown base token %q", parts[0])
	}
	quote, ok = r.GetBySymbol(parts[1])
	if !ok {
		return nil, nil, fmt.Errorf("asset: unknown quote token %q", parts[1])
	}
	return base, quote, nil
}

// All returns all registered assets.
func (r *Registry) All() []*Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Asset, 0, len(r.byID))
	for _, a := range r.byID {
		result = append(result, a)
	}
	return result
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
