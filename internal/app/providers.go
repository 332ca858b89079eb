// File: internal/app/providers.go
package app

import (
	"deals_marketplace/internal/common"
	"deals_marketplace/internal/config"
	"deals_marketplace/internal/engagement"
	"deals_marketplace/internal/filestorage"
	"deals_marketplace/internal/jobs"
	"deals_marketplace/internal/platform/database"
	platformElasticsearch "deals_marketplace/internal/platform/elasticsearch"
	"deals_marketplace/internal/platform/events"
	"deals_marketplace/internal/product"
	"deals_marketplace/internal/search"
	"deals_marketplace/internal/user"

	"github.com/google/wire"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProvideDatabase opens the configured database and returns a cleanup that closes it.
func ProvideDatabase(cfg *config.Config, logger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.NewGORM(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { database.CloseGORMDB(db, logger) }, nil
}

// ProvideClock is the wall clock used outside tests.
func ProvideClock() common.Clock {
	return common.SystemClock{}
}

// ServiceSet builds the catalog services on top of an open database.
var ServiceSet = wire.NewSet(
	common.NewValidator,

	user.NewGORMRepository,
	user.NewService,
	wire.Bind(new(user.Service), new(*user.ServiceImplementation)),
	wire.Bind(new(user.Listings), new(*product.ServiceImplementation)),

	filestorage.NewImageStore,
	wire.Bind(new(product.ImageStore), new(*filestorage.ImageStore)),
	platformElasticsearch.NewClient,
	search.NewIndexer,
	events.NewPublisher,
	product.NewGORMRepository,
	product.NewService,
	wire.Bind(new(product.Service), new(*product.ServiceImplementation)),

	engagement.NewGORMRepository,
	engagement.NewService,
	wire.Bind(new(engagement.Service), new(*engagement.ServiceImplementation)),

	jobs.NewProductExpiryJob,
	wire.Bind(new(jobs.Sweeper), new(*product.ServiceImplementation)),

	NewMarketplace,
)
