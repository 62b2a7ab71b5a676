// Package di contains dependency injection tokens for the selector context.
package di

import (
	"github.com/0xvey/dexmaker/business/selector/app"
	"github.com/0xvey/dexmaker/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Selector = di.NewToken[*app.Selector]("selector.Selector")
)

// Private dependency tokens - internal to selector module
var (
	MetricsSource = di.NewToken[app.MetricsSource]("selector:metricsSource")
)

// Helper functions for type-safe access
func GetSelector(c di.ServiceRegistry) *app.Selector {
	return di.GetToken(c, Selector)
}

func GetMetricsSource(c di.ServiceRegistry) app.MetricsSource {
	return di.GetToken(c, MetricsSource)
}
