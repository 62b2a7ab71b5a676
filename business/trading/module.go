// Package trading implements the swap execution bounded context.
package trading

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/0xvey/dexmaker/business/trading/app"
	tradingDI "github.com/0xvey/dexmaker/business/trading/di"
	"github.com/0xvey/dexmaker/business/trading/infra/router"
	"github.com/0xvey/dexmaker/internal/config"
	"github.com/0xvey/dexmaker/internal/di"
	"github.com/0xvey/dexmaker/internal/logger"
	"github.com/0xvey/dexmaker/internal/monolith"
	"github.com/0xvey/dexmaker/internal/ratelimit"
)

// Module implements the trading bounded context.
type Module struct{}

// RegisterServices registers all trading services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register QuoteSource (V2 + V3 routers) - private dependency
	di.RegisterToken(c, tradingDI.QuoteSource, func(sr di.ServiceRegistry) app.QuoteSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)

		v3, err := router.NewV3Quoter(
			ethClient,
			cfg.Routers.V3QuoterAddress(),
			cfg.Routers.V3RouterAddress(),
			cfg.Routers.DefaultFeeTier,
			cfg.Trading.V3GasLimit,
			log,
		)
		if err != nil {
			panic("failed to create v3 quoter: " + err.Error())
		}

		v2, err := router.NewV2Quoter(
			ethClient,
			cfg.Routers.V2RouterAddress(),
			cfg.Routers.IntermediateHopAddresses(),
			cfg.Trading.V2GasLimit,
			log,
		)
		if err != nil {
			panic("failed to create v2 quoter: " + err.Error())
		}

		return router.NewCombinedQuoteSource(log, v3, v2)
	})

	// Register Approver - private dependency
	di.RegisterToken(c, tradingDI.Approver, func(sr di.ServiceRegistry) app.Approver {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)

		approver, err := router.NewERC20Approver(ethClient, signer(cfg), cfg.Trading.ConfirmationWait, log)
		if err != nil {
			panic("failed to create approver: " + err.Error())
		}
		return approver
	})

	// Register SwapExecutor - private dependency
	di.RegisterToken(c, tradingDI.SwapExecutor, func(sr di.ServiceRegistry) app.SwapExecutor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)

		executor, err := router.NewExecutor(ethClient, signer(cfg), router.ExecutorConfig{
			V2Router:    cfg.Routers.V2RouterAddress(),
			V3Router:    cfg.Routers.V3RouterAddress(),
			Deadline:    cfg.Trading.Deadline,
			V2GasLimit:  cfg.Trading.V2GasLimit,
			V3GasLimit:  cfg.Trading.V3GasLimit,
			ConfirmWait: cfg.Trading.ConfirmationWait,
		}, log)
		if err != nil {
			panic("failed to create executor: " + err.Error())
		}
		return executor
	})

	// Register Engine (public - exposed to other modules)
	di.RegisterToken(c, tradingDI.TradingEngine, func(sr di.ServiceRegistry) *app.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		var limiter *ratelimit.Limiter
		if cfg.Trading.QuotesPerMinute > 0 {
			limiter = ratelimit.New(cfg.Trading.QuotesPerMinute)
		}

		engine, err := app.NewEngine(
			tradingDI.GetQuoteSource(sr),
			tradingDI.GetApprover(sr),
			tradingDI.GetSwapExecutor(sr),
			limiter,
			log,
		)
		if err != nil {
			panic("failed to create trading engine: " + err.Error())
		}
		return engine
	})

	return nil
}

// Startup initializes the trading module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	// Force engine construction so configuration errors surface at boot.
	_ = tradingDI.GetTradingEngine(mono.Services())
	mono.Logger().Info(ctx, "trading module started")
	return nil
}

// signer builds the transact opts for the configured private key.
func signer(cfg *config.Config) *bind.TransactOpts {
	key, err := crypto.HexToECDSA(cfg.Chain.PrivateKey)
	if err != nil {
		panic("invalid private key: " + err.Error())
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(cfg.Chain.ChainID))
	if err != nil {
		panic("failed to create transactor: " + err.Error())
	}

	return auth
}
