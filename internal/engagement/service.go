// File: internal/engagement/service.go
package engagement

import (
	"context"
	"fmt"

	"deals_marketplace/internal/common"

	"go.uber.org/zap"
)

// Service defines rating and favorite operations.
type Service interface {
	Rate(ctx context.Context, raterEmail string, productID int64, score int) error
	RatingFor(ctx context.Context, raterEmail string, productID int64) (int, error)
	ToggleFavorite(ctx context.Context, userEmail string, productID int64) (FavoriteAction, error)
	FavoriteProductIDs(ctx context.Context, userEmail string) ([]int64, error)
	ProductAverage(ctx context.Context, productID int64) (float64, error)
	SellerAverage(ctx context.Context, sellerEmail string) (float64, error)
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo   Repository
	logger *zap.Logger
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new engagement service.
func NewService(repo Repository, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{repo: repo, logger: logger.Named("EngagementService")}
}

// Rate records score for the product. Sellers cannot rate their own products.
func (s *ServiceImplementation) Rate(ctx context.Context, raterEmail string, productID int64, score int) error {
	raterEmail = common.NormalizeEmail(raterEmail)
	if raterEmail == "" {
		return common.ErrUnauthorized.WithDetails("You must be logged in to rate a product.")
	}
	if score < MinScore || score > MaxScore {
		return common.ErrValidation.WithDetails(fmt.Sprintf("Rating must be between %d and %d.", MinScore, MaxScore))
	}

	sellerEmail, err := s.repo.ProductSeller(ctx, productID)
	if err != nil {
		return err
	}
	if sellerEmail == raterEmail {
		return common.ErrUnauthorized.WithDetails("You cannot rate your own product.")
	}

	if err := s.repo.UpsertRating(ctx, &Rating{
		UserEmail:   raterEmail,
		SellerEmail: sellerEmail,
		ProductID:   productID,
		Rating:      score,
	}); err != nil {
		return err
	}
	s.logger.Debug("Product rated", zap.Int64("productID", productID), zap.String("rater", raterEmail), zap.Int("score", score))
	return nil
}

func (s *ServiceImplementation) RatingFor(ctx context.Context, raterEmail string, productID int64) (int, error) {
	return s.repo.RatingFor(ctx, common.NormalizeEmail(raterEmail), productID)
}

// ToggleFavorite flips the favorite state and reports which way it went.
func (s *ServiceImplementation) ToggleFavorite(ctx context.Context, userEmail string, productID int64) (FavoriteAction, error) {
	userEmail = common.NormalizeEmail(userEmail)
	if userEmail == "" {
		return FavoriteNone, common.ErrUnauthorized.WithDetails("You must be logged in to favorite a product.")
	}
	action, err := s.repo.ToggleFavorite(ctx, userEmail, productID)
	if err != nil {
		return FavoriteNone, err
	}
	s.logger.Debug("Favorite toggled", zap.Int64("productID", productID), zap.String("user", userEmail), zap.Stringer("action", action))
	return action, nil
}

func (s *ServiceImplementation) FavoriteProductIDs(ctx context.Context, userEmail string) ([]int64, error) {
	return s.repo.FavoriteProductIDs(ctx, common.NormalizeEmail(userEmail))
}

func (s *ServiceImplementation) ProductAverage(ctx context.Context, productID int64) (float64, error) {
	return s.repo.ProductAverage(ctx, productID)
}

func (s *ServiceImplementation) SellerAverage(ctx context.Context, sellerEmail string) (float64, error) {
	return s.repo.SellerAverage(ctx, common.NormalizeEmail(sellerEmail))
}
