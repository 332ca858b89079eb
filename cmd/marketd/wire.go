// File: cmd/marketd/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"deals_marketplace/internal/app"
	"deals_marketplace/internal/config"

	"github.com/google/wire"
	"go.uber.org/zap"
)

// initializeMarketplace is the main Wire injector.
func initializeMarketplace(cfg *config.Config, logger *zap.Logger) (*app.Marketplace, func(), error) {
	wire.Build(
		app.ProvideDatabase,
		app.ProvideClock,
		app.ServiceSet,
	)
	return nil, nil, nil
}
