// Package di contains dependency injection tokens for the feed context.
package di

import (
	"github.com/0xvey/dexmaker/business/feed/app"
	"github.com/0xvey/dexmaker/internal/di"
)

// Public service tokens - exposed to other modules
var (
	FeedService = di.NewToken[*app.FeedService]("feed.FeedService")
)

// Private dependency tokens - internal to feed module
var (
	PriceSource = di.NewToken[app.PriceSource]("feed:priceSource")
)

// Helper functions for type-safe access
func GetFeedService(c di.ServiceRegistry) *app.FeedService {
	return di.GetToken(c, FeedService)
}

func GetPriceSource(c di.ServiceRegistry) app.PriceSource {
	return di.GetToken(c, PriceSource)
}
