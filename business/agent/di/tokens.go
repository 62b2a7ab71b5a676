// Package di contains dependency injection tokens for the agent context.
package di

import (
	"github.com/0xvey/dexmaker/business/agent/app"
	"github.com/0xvey/dexmaker/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Runner = di.NewToken[*app.Runner]("agent.Runner")
)

// Private dependency tokens - internal to agent module
var (
	Reporter = di.NewToken[app.Reporter]("agent:reporter")
)

// Helper functions for type-safe access
func GetRunner(c di.ServiceRegistry) *app.Runner {
	return di.GetToken(c, Runner)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
