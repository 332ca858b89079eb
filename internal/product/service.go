// File: internal/product/service.go
package product

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deals_marketplace/internal/common"
	"deals_marketplace/internal/config"
	"deals_marketplace/internal/filestorage"
	"deals_marketplace/internal/platform/events"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ImageStore is the image ingestion boundary used by listing create/update.
// Uploads are staged inside the database transaction and promoted only after
// it commits.
type ImageStore interface {
	Stage(upload *filestorage.Upload, productID int64) (*filestorage.StagedImage, error)
	Promote(staged *filestorage.StagedImage) error
	Discard(staged *filestorage.StagedImage)
	Delete(publicPath string) error
}

// Indexer mirrors products into a search index.
type Indexer interface {
	IndexProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

// NopIndexer is used when no search backend is configured.
type NopIndexer struct{}

func (NopIndexer) IndexProduct(context.Context, *Product) error { return nil }
func (NopIndexer) DeleteProduct(context.Context, int64) error   { return nil }

// Event types published on the catalog topic.
const (
	EventCreated = "product_created"
	EventUpdated = "product_updated"
	EventDeleted = "product_deleted"
	EventExpired = "products_expired"
)

// Event is the payload published for catalog changes.
type Event struct {
	Type        string    `json:"type"`
	ProductIDs  []int64   `json:"product_ids"`
	SellerEmail string    `json:"seller_email,omitempty"`
	Category    string    `json:"category,omitempty"`
	At          time.Time `json:"at"`
}

// Service defines the catalog operations.
type Service interface {
	GetProduct(ctx context.Context, viewer common.Actor, id int64) (*View, error)
	ListProducts(ctx context.Context, viewer common.Actor, req ListRequest) ([]View, *common.Pagination, error)
	TopProducts(ctx context.Context, viewer common.Actor, n int) ([]View, error)

	CreateProduct(ctx context.Context, actor common.Actor, req CreateProductRequest, upload *filestorage.Upload) (*Product, error)
	UpdateProduct(ctx context.Context, actor common.Actor, id int64, req UpdateProductRequest, upload *filestorage.Upload) (*Product, error)
	DeleteProduct(ctx context.Context, actor common.Actor, id int64) error

	// SweepExpired deletes products older than the retention window.
	SweepExpired(ctx context.Context) (int64, error)

	DeleteSellerProducts(ctx context.Context, sellerEmail string) (int64, error)
	ReindexSeller(ctx context.Context, sellerEmail string) error
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo      Repository
	images    ImageStore
	indexer   Indexer
	publisher events.Publisher
	validate  *validator.Validate
	clock     common.Clock
	cfg       *config.Config
	logger    *zap.Logger
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new product service.
func NewService(
	repo Repository,
	images ImageStore,
	indexer Indexer,
	publisher events.Publisher,
	validate *validator.Validate,
	clock common.Clock,
	cfg *config.Config,
	logger *zap.Logger,
) *ServiceImplementation {
	if indexer == nil {
		indexer = NopIndexer{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ServiceImplementation{
		repo:      repo,
		images:    images,
		indexer:   indexer,
		publisher: publisher,
		validate:  validate,
		clock:     clock,
		cfg:       cfg,
		logger:    logger.Named("ProductService"),
	}
}

// GetProduct fetches one product as seen by viewer.
func (s *ServiceImplementation) GetProduct(ctx context.Context, viewer common.Actor, id int64) (*View, error) {
	if id <= 0 {
		return nil, common.ErrNotFound.WithDetails("Product not found.")
	}
	views, err := s.repo.Find(ctx, Query{ProductID: id, ViewerEmail: common.NormalizeEmail(viewer.Email), Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, common.ErrNotFound.WithDetails("Product not found.")
	}
	return &views[0], nil
}

// ListProducts returns one page of the catalog plus totals counted with the same predicates.
func (s *ServiceImplementation) ListProducts(ctx context.Context, viewer common.Actor, req ListRequest) ([]View, *common.Pagination, error) {
	pq := common.PageQuery{Page: req.Page, PageSize: req.PageSize}.Normalize(s.cfg.ProductsPerPage)
	q := Query{
		Category:      req.Category,
		SellerEmail:   common.NormalizeEmail(req.SellerEmail),
		ViewerEmail:   common.NormalizeEmail(viewer.Email),
		OnlyFavorites: req.OnlyFavorites,
		Filters:       req.Filters,
		Sort:          req.Sort,
		Offset:        pq.Offset(),
		Limit:         pq.Limit(),
	}

	total, err := s.repo.Count(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	views, err := s.repo.Find(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	return views, common.NewPagination(total, pq.Page, pq.PageSize), nil
}

// TopProducts returns the n best rated products, ties broken by id.
func (s *ServiceImplementation) TopProducts(ctx context.Context, viewer common.Actor, n int) ([]View, error) {
	return s.repo.Find(ctx, Query{ViewerEmail: common.NormalizeEmail(viewer.Email), Sort: SortRating, Limit: n})
}

// CreateProduct lists a new product for actor. A rejected image leaves no
// product behind, and the image becomes visible only once the row commits.
func (s *ServiceImplementation) CreateProduct(ctx context.Context, actor common.Actor, req CreateProductRequest, upload *filestorage.Upload) (*Product, error) {
	if actor.IsAnonymous() {
		return nil, common.ErrUnauthorized.WithDetails("You must be logged in to list a product.")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, common.NewValidationError(err)
	}

	p := &Product{
		SellerEmail:   common.NormalizeEmail(actor.Email),
		Name:          strings.TrimSpace(req.Name),
		Features:      Features(req.Features),
		FreeShipping:  req.FreeShipping,
		Description:   req.Description,
		Category:      strings.TrimSpace(req.Category),
		RegularPrice:  req.RegularPrice,
		DiscountPrice: req.DiscountPrice,
		Link:          req.Link,
		PublishDate:   s.clock.Now(),
	}

	var staged *filestorage.StagedImage
	err := s.repo.Transaction(ctx, func(repo Repository) error {
		if err := repo.Create(ctx, p); err != nil {
			return err
		}
		var err error
		if staged, err = s.images.Stage(upload, p.ID); err != nil {
			return err
		}
		p.ImageURL = staged.PublicPath
		return repo.Update(ctx, p.ID, map[string]interface{}{"image_url": staged.PublicPath})
	})
	if err != nil {
		s.images.Discard(staged)
		s.logger.Warn("Product creation rolled back", zap.String("seller", p.SellerEmail), zap.Error(err))
		return nil, err
	}
	if err := s.images.Promote(staged); err != nil {
		p.ImageURL = s.cfg.DefaultImagePath
		s.revertImage(ctx, p.ID, p.ImageURL, err)
	}

	s.logger.Info("Product created", zap.Int64("productID", p.ID), zap.String("seller", p.SellerEmail))
	s.afterWrite(ctx, EventCreated, p)
	return p, nil
}

// UpdateProduct applies a partial edit. Only the seller or an admin may edit;
// every edit re-publishes the product.
func (s *ServiceImplementation) UpdateProduct(ctx context.Context, actor common.Actor, id int64, req UpdateProductRequest, upload *filestorage.Upload) (*Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, common.NewValidationError(err)
	}

	var (
		updated       *Product
		staged        *filestorage.StagedImage
		previousImage string
	)
	err := s.repo.Transaction(ctx, func(repo Repository) error {
		existing, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		previousImage = existing.ImageURL
		if !actor.Owns(existing.SellerEmail) && !actor.IsAdmin() {
			return common.ErrUnauthorized.WithDetails("You can only edit your own products.")
		}

		regular, discount := existing.RegularPrice, existing.DiscountPrice
		if req.RegularPrice != nil {
			regular = *req.RegularPrice
		}
		if req.DiscountPrice != nil {
			discount = *req.DiscountPrice
		}
		if discount > regular {
			return common.ErrValidation.WithDetails("The discount price may not exceed the regular price.")
		}

		changes := updateChanges(req)
		changes["publish_date"] = s.clock.Now()
		if upload != nil {
			if staged, err = s.images.Stage(upload, id); err != nil {
				return err
			}
			changes["image_url"] = staged.PublicPath
		}
		if err := repo.Update(ctx, id, changes); err != nil {
			return err
		}
		updated, err = repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		s.images.Discard(staged)
		return nil, err
	}
	if err := s.images.Promote(staged); err != nil {
		updated.ImageURL = previousImage
		s.revertImage(ctx, id, previousImage, err)
	}

	s.logger.Info("Product updated", zap.Int64("productID", id), zap.String("by", actor.Email))
	s.afterWrite(ctx, EventUpdated, updated)
	return updated, nil
}

func updateChanges(req UpdateProductRequest) map[string]interface{} {
	changes := map[string]interface{}{}
	if req.Name != nil {
		changes["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Features != nil {
		changes["features"] = Features(*req.Features)
	}
	if req.FreeShipping != nil {
		changes["free_shipping"] = *req.FreeShipping
	}
	if req.Description != nil {
		changes["description"] = *req.Description
	}
	if req.Category != nil {
		changes["category"] = strings.TrimSpace(*req.Category)
	}
	if req.RegularPrice != nil {
		changes["regular_price"] = *req.RegularPrice
	}
	if req.DiscountPrice != nil {
		changes["discount_price"] = *req.DiscountPrice
	}
	if req.Link != nil {
		changes["link"] = *req.Link
	}
	return changes
}

// DeleteProduct removes a product and its image. Only the seller or an admin may delete.
func (s *ServiceImplementation) DeleteProduct(ctx context.Context, actor common.Actor, id int64) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Owns(existing.SellerEmail) && !actor.IsAdmin() {
		return common.ErrUnauthorized.WithDetails("You can only delete your own products.")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.discardImage(existing.ImageURL)
	if err := s.indexer.DeleteProduct(ctx, id); err != nil {
		s.logger.Warn("Failed to remove product from search index", zap.Int64("productID", id), zap.Error(err))
	}
	s.publish(ctx, Event{Type: EventDeleted, ProductIDs: []int64{id}, SellerEmail: existing.SellerEmail, At: s.clock.Now()})
	s.logger.Info("Product deleted", zap.Int64("productID", id), zap.String("by", actor.Email))
	return nil
}

// SweepExpired deletes every product published before now minus the retention window.
// Running it twice is harmless.
func (s *ServiceImplementation) SweepExpired(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	cutoff := now.Add(-s.cfg.RetentionWindow())

	expired, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep expired products: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	ids := s.releaseRemoved(ctx, expired)
	s.publish(ctx, Event{Type: EventExpired, ProductIDs: ids, At: now})
	s.logger.Info("Expired products swept", zap.Int("count", len(ids)), zap.Time("cutoff", cutoff))
	return int64(len(ids)), nil
}

// DeleteSellerProducts removes every product of a seller together with their
// images and index entries. Account deletion calls it before the user row goes.
func (s *ServiceImplementation) DeleteSellerProducts(ctx context.Context, sellerEmail string) (int64, error) {
	sellerEmail = common.NormalizeEmail(sellerEmail)
	removed, err := s.repo.DeleteBySeller(ctx, sellerEmail)
	if err != nil {
		return 0, fmt.Errorf("delete products of %s: %w", sellerEmail, err)
	}
	if len(removed) == 0 {
		return 0, nil
	}

	ids := s.releaseRemoved(ctx, removed)
	s.publish(ctx, Event{Type: EventDeleted, ProductIDs: ids, SellerEmail: sellerEmail, At: s.clock.Now()})
	s.logger.Info("Seller products deleted", zap.String("seller", sellerEmail), zap.Int("count", len(ids)))
	return int64(len(ids)), nil
}

// ReindexSeller re-sends a seller's products to the search index, e.g. after
// the seller's email changed. Index failures are logged per product.
func (s *ServiceImplementation) ReindexSeller(ctx context.Context, sellerEmail string) error {
	sellerEmail = common.NormalizeEmail(sellerEmail)
	products, err := s.repo.FindBySeller(ctx, sellerEmail)
	if err != nil {
		return fmt.Errorf("list products of %s: %w", sellerEmail, err)
	}
	if len(products) == 0 {
		return nil
	}

	ids := make([]int64, len(products))
	for i := range products {
		ids[i] = products[i].ID
		if err := s.indexer.IndexProduct(ctx, &products[i]); err != nil {
			s.logger.Warn("Failed to index product", zap.Int64("productID", products[i].ID), zap.Error(err))
		}
	}
	s.publish(ctx, Event{Type: EventUpdated, ProductIDs: ids, SellerEmail: sellerEmail, At: s.clock.Now()})
	return nil
}

// releaseRemoved drops the images and index entries of already deleted rows.
func (s *ServiceImplementation) releaseRemoved(ctx context.Context, removed []Product) []int64 {
	ids := make([]int64, len(removed))
	for i := range removed {
		ids[i] = removed[i].ID
		s.discardImage(removed[i].ImageURL)
		if err := s.indexer.DeleteProduct(ctx, removed[i].ID); err != nil {
			s.logger.Warn("Failed to remove product from search index", zap.Int64("productID", removed[i].ID), zap.Error(err))
		}
	}
	return ids
}

// revertImage points a committed product back at imagePath after its staged
// image could not be moved into place.
func (s *ServiceImplementation) revertImage(ctx context.Context, id int64, imagePath string, cause error) {
	s.logger.Error("Failed to promote product image", zap.Int64("productID", id), zap.Error(cause))
	if err := s.repo.Update(ctx, id, map[string]interface{}{"image_url": imagePath}); err != nil {
		s.logger.Error("Failed to restore product image path", zap.Int64("productID", id), zap.Error(err))
	}
}

func (s *ServiceImplementation) afterWrite(ctx context.Context, eventType string, p *Product) {
	if err := s.indexer.IndexProduct(ctx, p); err != nil {
		s.logger.Warn("Failed to index product", zap.Int64("productID", p.ID), zap.Error(err))
	}
	s.publish(ctx, Event{
		Type:        eventType,
		ProductIDs:  []int64{p.ID},
		SellerEmail: p.SellerEmail,
		Category:    p.Category,
		At:          s.clock.Now(),
	})
}

// publish never fails the caller; the catalog is the source of truth.
func (s *ServiceImplementation) publish(ctx context.Context, ev Event) {
	key := ev.SellerEmail
	if len(ev.ProductIDs) == 1 {
		key = strconv.FormatInt(ev.ProductIDs[0], 10)
	}
	if err := s.publisher.Publish(ctx, key, ev); err != nil {
		s.logger.Warn("Failed to publish catalog event", zap.String("type", ev.Type), zap.Error(err))
	}
}

func (s *ServiceImplementation) discardImage(path string) {
	if path == "" {
		return
	}
	if err := s.images.Delete(path); err != nil && !errors.Is(err, common.ErrNotFound) {
		s.logger.Warn("Failed to remove product image", zap.String("path", path), zap.Error(err))
	}
}
