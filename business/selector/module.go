// Package selector implements the pair selection bounded context.
package selector

import (
	"context"

	"github.com/0xvey/dexmaker/business/selector/app"
	selectorDI "github.com/0xvey/dexmaker/business/selector/di"
	"github.com/0xvey/dexmaker/business/selector/domain"
	"github.com/0xvey/dexmaker/business/selector/infra/poolstats"
	"github.com/0xvey/dexmaker/internal/config"
	"github.com/0xvey/dexmaker/internal/di"
	"github.com/0xvey/dexmaker/internal/logger"
	"github.com/0xvey/dexmaker/internal/monolith"
)

// Module implements the selector bounded context.
type Module struct{}

// RegisterServices registers all selector services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register MetricsSource (pool stats API) - private dependency
	di.RegisterToken(c, selectorDI.MetricsSource, func(sr di.ServiceRegistry) app.MetricsSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		source, err := poolstats.New(cfg.Selector.StatsBaseURL, log)
		if err != nil {
			panic("failed to create poolstats client: " + err.Error())
		}
		return source
	})

	// Register Selector (public - exposed to other modules)
	di.RegisterToken(c, selectorDI.Selector, func(sr di.ServiceRegistry) *app.Selector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		sel, err := app.NewSelector(
			cfg.Selector.Pairs,
			cfg.Selector.MaxActive,
			cfg.Selector.RotationMarginDecimal(),
			domain.StrategyByName(cfg.Selector.Strategy),
			selectorDI.GetMetricsSource(sr),
			log,
		)
		if err != nil {
			panic("failed to create selector: " + err.Error())
		}
		return sel
	})

	return nil
}

// Startup runs the first evaluation so the agent starts with a ranked
// active set instead of an empty one.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	sel := selectorDI.GetSelector(mono.Services())
	if _, err := sel.EvaluateAndSelect(ctx); err != nil {
		log.Warn(ctx, "initial pair evaluation failed", "error", err)
	}

	log.Info(ctx, "selector module started", "active", sel.GetActivePairs())
	return nil
}
