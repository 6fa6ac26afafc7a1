// Package di wires the pipeline and API server with samber/do.
package di

import (
	"github.com/samber/do/v2"

	"github.com/rugbymap/rugbymap/internal/config"
	"github.com/rugbymap/rugbymap/internal/di/providers"
)

// NewContainer creates the DI container for an already loaded configuration.
// Services are built lazily on first use, so a command only pays for what it
// touches: the serve command never opens the profile client.
func NewContainer(cfg *config.Config) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, cfg)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Storage
	do.Provide(injector, providers.ProvideCache)
	do.Provide(injector, providers.ProvideStages)
	do.Provide(injector, providers.ProvideSource)

	// Upstream clients
	do.Provide(injector, providers.ProvideProfileClient)
	do.Provide(injector, providers.ProvideGeocodeClient)
	do.Provide(injector, providers.ProvideBoundaryDownloader)

	// Resolvers and engine
	do.Provide(injector, providers.ProvideAddressResolver)
	do.Provide(injector, providers.ProvideGeocodeResolver)
	do.Provide(injector, providers.ProvideTerritoryEngine)
	do.Provide(injector, providers.ProvidePipelineOptions)
	do.Provide(injector, providers.ProvidePipeline)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}
