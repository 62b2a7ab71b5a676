// Package agent implements the market-making agent bounded context. It
// ties the price feed, pair selector, and execution engine together in
// a periodic control loop.
package agent

import (
	"context"

	"github.com/0xvey/dexmaker/business/agent/app"
	agentDI "github.com/0xvey/dexmaker/business/agent/di"
	"github.com/0xvey/dexmaker/business/agent/infra"
	feedDI "github.com/0xvey/dexmaker/business/feed/di"
	selectorDI "github.com/0xvey/dexmaker/business/selector/di"
	tradingDI "github.com/0xvey/dexmaker/business/trading/di"
	"github.com/0xvey/dexmaker/internal/asset"
	"github.com/0xvey/dexmaker/internal/config"
	"github.com/0xvey/dexmaker/internal/di"
	"github.com/0xvey/dexmaker/internal/logger"
	"github.com/0xvey/dexmaker/internal/monolith"
)

// Module implements the agent bounded context.
type Module struct{}

// RegisterServices registers all agent services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register Reporter - private dependency
	di.RegisterToken(c, agentDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		return infra.NewConsoleReporter()
	})

	// Register Runner (public - the application's main loop)
	di.RegisterToken(c, agentDI.Runner, func(sr di.ServiceRegistry) *app.Runner {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		runner, err := app.NewRunner(
			feedDI.GetFeedService(sr),
			tradingDI.GetTradingEngine(sr),
			selectorDI.GetSelector(sr),
			agentDI.GetReporter(sr),
			registry,
			app.RunnerConfig{
				TradeSize:      cfg.Trading.TradeSizeDecimal(),
				SlippageBps:    cfg.Trading.SlippageBps,
				TradeInterval:  cfg.Trading.TradeInterval,
				EvalInterval:   cfg.Selector.EvalInterval,
				RotateInterval: cfg.Selector.RotateInterval,
			},
			log,
		)
		if err != nil {
			panic("failed to create agent runner: " + err.Error())
		}
		return runner
	})

	return nil
}

// Startup launches the market-making loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	runner := agentDI.GetRunner(mono.Services())
	if err := runner.Start(ctx); err != nil {
		return err
	}

	log.Info(ctx, "agent module started")
	return nil
}
