package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xvey/dexmaker/internal/asset"
)

// RouterVersion identifies the swap router generation a quote came from.
type RouterVersion string

const (
	RouterV2 RouterVersion = "v2"
	RouterV3 RouterVersion = "v3"
)

// RouterQuote is a priced swap route from one router.
type RouterQuote struct {
	Version     RouterVersion
	Router      common.Address // router that will execute the swap
	AmountIn    asset.Amount
	AmountOut   asset.Amount
	FeeTier     int              // V3 only, hundredths of a bip
	Path        []common.Address // V2 only, swap hop path
	GasEstimate uint64
	Source      string // "hyperswap-v2", "hyperswap-v3"
	Timestamp   time.Time
}

// BetterThan reports whether this quote yields strictly more output
// than other. A nil other always loses.
func (q *RouterQuote) BetterThan(other *RouterQuote) bool {
	if other == nil {
		return true
	}
	cmp, err := q.AmountOut.Cmp(other.AmountOut)
	if err != nil {
		return false
	}
	return cmp > 0
}
