// Package feed implements the streaming price feed bounded context.
package feed

import (
	"context"
	"time"

	"github.com/0xvey/dexmaker/business/feed/app"
	feedDI "github.com/0xvey/dexmaker/business/feed/di"
	"github.com/0xvey/dexmaker/business/feed/infra/hyperliquid"
	"github.com/0xvey/dexmaker/internal/config"
	"github.com/0xvey/dexmaker/internal/di"
	"github.com/0xvey/dexmaker/internal/logger"
	"github.com/0xvey/dexmaker/internal/monolith"
)

// Module implements the feed bounded context.
type Module struct{}

// RegisterServices registers all feed services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register PriceSource (Hyperliquid) - private dependency
	di.RegisterToken(c, feedDI.PriceSource, func(sr di.ServiceRegistry) app.PriceSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		clientCfg := hyperliquid.DefaultClientConfig(cfg.Feed.WebSocketURL)
		clientCfg.PingInterval = cfg.Feed.PingInterval
		clientCfg.PongTimeout = cfg.Feed.PongTimeout
		clientCfg.InitialBackoff = cfg.Feed.InitialBackoff
		clientCfg.MaxBackoff = cfg.Feed.MaxBackoff
		clientCfg.MaxReconnects = cfg.Feed.MaxReconnects
		clientCfg.AnnounceThreshold = cfg.Feed.AnnounceThresholdDecimal()

		client, err := hyperliquid.NewClient(clientCfg, log)
		if err != nil {
			panic("failed to create hyperliquid client: " + err.Error())
		}
		return client
	})

	// Register FeedService (public - exposed to other modules)
	di.RegisterToken(c, feedDI.FeedService, func(sr di.ServiceRegistry) *app.FeedService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		source := feedDI.GetPriceSource(sr)
		return app.NewFeedService(source, cfg.Feed.StaleTimeout, log)
	})

	return nil
}

// Startup connects the price source. A failed first connection does not
// abort startup: the connection keeps retrying in the background.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	source := feedDI.GetPriceSource(mono.Services())

	// The feed reports here when it burns through its reconnect budget.
	// The health check flips to unhealthy at the same moment, so the
	// operator sees both the log line and the failing probe.
	source.OnTerminalError(func(err error) {
		log.Error(ctx, "price feed terminated, manual restart required", "error", err)
	})

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := source.Connect(connectCtx); err != nil {
		log.Warn(ctx, "feed connection failed, will retry in background", "error", err)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
					if err := source.Connect(ctx); err != nil {
						log.Warn(ctx, "feed retry failed", "error", err)
					} else {
						log.Info(ctx, "feed connected successfully")
						return
					}
				}
			}
		}()
	}

	log.Info(ctx, "feed module started")
	return nil
}
