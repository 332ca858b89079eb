// File: internal/app/marketplace.go
package app

import (
	"context"
	"fmt"

	"deals_marketplace/internal/common"
	"deals_marketplace/internal/config"
	"deals_marketplace/internal/engagement"
	"deals_marketplace/internal/jobs"
	platformElasticsearch "deals_marketplace/internal/platform/elasticsearch"
	"deals_marketplace/internal/platform/events"
	"deals_marketplace/internal/product"
	"deals_marketplace/internal/search"
	"deals_marketplace/internal/user"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Marketplace holds the catalog services and their background machinery.
type Marketplace struct {
	Users      user.Service
	Products   product.Service
	Engagement engagement.Service

	cfg         *config.Config
	logger      *zap.Logger
	db          *gorm.DB
	clock       common.Clock
	productRepo product.Repository
	expiryJob   *jobs.ProductExpiryJob
	publisher   events.Publisher
	esClient    *platformElasticsearch.ESClientWrapper
}

// NewMarketplace creates a new Marketplace.
func NewMarketplace(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	clock common.Clock,
	users user.Service,
	products product.Service,
	engagementService engagement.Service,
	productRepo product.Repository,
	expiryJob *jobs.ProductExpiryJob,
	publisher events.Publisher,
	esClient *platformElasticsearch.ESClientWrapper,
) *Marketplace {
	return &Marketplace{
		Users:       users,
		Products:    products,
		Engagement:  engagementService,
		cfg:         cfg,
		logger:      logger,
		db:          db,
		clock:       clock,
		productRepo: productRepo,
		expiryJob:   expiryJob,
		publisher:   publisher,
		esClient:    esClient,
	}
}

// Migrate creates or updates the four catalog tables. Users go first since
// every other table references them.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&user.User{},
		&product.Product{},
		&engagement.Rating{},
		&engagement.Favorite{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Migrate applies the schema to the marketplace database.
func (m *Marketplace) Migrate(ctx context.Context) error {
	m.logger.Info("Running database migrations", zap.String("driver", m.cfg.DBDriver))
	return Migrate(m.db.WithContext(ctx))
}

// BeforeRequest sweeps expired products. Call it once per unit of work before
// reading the catalog.
func (m *Marketplace) BeforeRequest(ctx context.Context) error {
	if _, err := m.Products.SweepExpired(ctx); err != nil {
		m.logger.Error("Pre-request sweep failed", zap.Error(err))
		return err
	}
	return nil
}

// Sweep runs the expiry job once.
func (m *Marketplace) Sweep(ctx context.Context) (int64, error) {
	return m.expiryJob.RunOnce(ctx)
}

// SearchEnabled reports whether an Elasticsearch cluster is configured.
func (m *Marketplace) SearchEnabled() bool {
	return m.esClient != nil
}

// SyncSearch re-indexes every product in batches.
func (m *Marketplace) SyncSearch(ctx context.Context, batchSize int, refresh string) (search.SyncStats, error) {
	if m.esClient == nil {
		return search.SyncStats{}, fmt.Errorf("search is not configured: set ELASTICSEARCH_URL")
	}
	if err := platformElasticsearch.CreateProductsIndexIfNotExists(ctx, m.esClient, m.logger); err != nil {
		return search.SyncStats{}, err
	}
	return search.NewSyncer(m.productRepo, m.esClient, m.logger).Run(ctx, batchSize, refresh)
}

// Start prepares the search index and starts the expiry scheduler.
func (m *Marketplace) Start(ctx context.Context) error {
	if m.esClient != nil {
		if err := platformElasticsearch.CreateProductsIndexIfNotExists(ctx, m.esClient, m.logger); err != nil {
			m.logger.Error("Failed to create Elasticsearch products index", zap.Error(err))
		}
	} else {
		m.logger.Info("Elasticsearch client not initialized, skipping index creation.")
	}

	if err := m.expiryJob.SetupAndStart(); err != nil {
		m.logger.Error("Failed to setup and start product expiry job", zap.Error(err))
		return err
	}
	m.logger.Info("Marketplace started", zap.String("env", m.cfg.AppEnv))
	return nil
}

// Shutdown stops the scheduler and flushes the event publisher.
func (m *Marketplace) Shutdown(ctx context.Context) error {
	m.logger.Info("Attempting graceful marketplace shutdown...")
	m.expiryJob.Stop()

	done := make(chan error, 1)
	go func() { done <- m.publisher.Close() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close event publisher: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
