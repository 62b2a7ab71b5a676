// Package app contains application services and port definitions for the selector context.
package app

import (
	"context"

	"github.com/0xvey/dexmaker/business/selector/domain"
)

// MetricsSource fetches the market snapshot for a candidate pair.
type MetricsSource interface {
	FetchMetrics(ctx context.Context, pair string) (domain.PairMetrics, error)
}
