// File: internal/engagement/repository.go
package engagement

import (
	"context"

	"deals_marketplace/internal/common"
	"deals_marketplace/internal/platform/database"
	"deals_marketplace/internal/product"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for rating and favorite data operations.
type Repository interface {
	ProductSeller(ctx context.Context, productID int64) (string, error)
	UpsertRating(ctx context.Context, rating *Rating) error
	RatingFor(ctx context.Context, userEmail string, productID int64) (int, error)
	ProductAverage(ctx context.Context, productID int64) (float64, error)
	SellerAverage(ctx context.Context, sellerEmail string) (float64, error)
	ToggleFavorite(ctx context.Context, userEmail string, productID int64) (FavoriteAction, error)
	FavoriteProductIDs(ctx context.Context, userEmail string) ([]int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM engagement repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// ProductSeller returns the owner of a product, or NotFound.
func (r *gormRepository) ProductSeller(ctx context.Context, productID int64) (string, error) {
	var p product.Product
	err := r.db.WithContext(ctx).Select("id", "seller_email").Take(&p, "id = ?", productID).Error
	if err != nil {
		return "", database.TranslateError(err, "Product")
	}
	return p.SellerEmail, nil
}

// UpsertRating inserts a rating or replaces the score of the existing one for
// the same (user, product) pair.
func (r *gormRepository) UpsertRating(ctx context.Context, rating *Rating) error {
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_email"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"rating", "seller_email"}),
		}).
		Create(rating).Error
	if err != nil {
		return database.TranslateError(err, "Rating")
	}
	return nil
}

// RatingFor returns the user's own score for a product, 0 when unrated.
func (r *gormRepository) RatingFor(ctx context.Context, userEmail string, productID int64) (int, error) {
	var ratings []Rating
	err := r.db.WithContext(ctx).
		Where("user_email = ? AND product_id = ?", userEmail, productID).
		Limit(1).
		Find(&ratings).Error
	if err != nil {
		return 0, database.TranslateError(err, "Rating")
	}
	if len(ratings) == 0 {
		return 0, nil
	}
	return ratings[0].Rating, nil
}

// ProductAverage is the mean score of a product, rounded; 0 when unrated.
func (r *gormRepository) ProductAverage(ctx context.Context, productID int64) (float64, error) {
	return r.average(ctx, "product_id = ?", productID)
}

// SellerAverage is the mean score across a seller's products, rounded; 0 when unrated.
func (r *gormRepository) SellerAverage(ctx context.Context, sellerEmail string) (float64, error) {
	return r.average(ctx, "seller_email = ?", sellerEmail)
}

func (r *gormRepository) average(ctx context.Context, cond string, arg interface{}) (float64, error) {
	var avg float64
	err := r.db.WithContext(ctx).
		Raw("SELECT COALESCE(CAST(AVG(rating) AS DOUBLE PRECISION), 0) FROM ratings WHERE "+cond, arg).
		Scan(&avg).Error
	if err != nil {
		return 0, database.TranslateError(err, "Rating")
	}
	return common.RoundRating(avg), nil
}

// ToggleFavorite removes the favorite if present, otherwise adds it, inside
// one transaction. A concurrent insert of the same pair counts as added.
func (r *gormRepository) ToggleFavorite(ctx context.Context, userEmail string, productID int64) (FavoriteAction, error) {
	action := FavoriteNone
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p product.Product
		if err := tx.Select("id").Take(&p, "id = ?", productID).Error; err != nil {
			return err
		}

		removed := tx.Where("user_email = ? AND product_id = ?", userEmail, productID).Delete(&Favorite{})
		if removed.Error != nil {
			return removed.Error
		}
		if removed.RowsAffected > 0 {
			action = FavoriteRemoved
			return nil
		}

		fav := &Favorite{UserEmail: userEmail, ProductID: productID}
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(fav).Error; err != nil {
			return err
		}
		action = FavoriteAdded
		return nil
	})
	if err != nil {
		return FavoriteNone, database.TranslateError(err, "Product")
	}
	return action, nil
}

// FavoriteProductIDs lists the ids a user has favorited.
func (r *gormRepository) FavoriteProductIDs(ctx context.Context, userEmail string) ([]int64, error) {
	ids := []int64{}
	err := r.db.WithContext(ctx).
		Model(&Favorite{}).
		Where("user_email = ?", userEmail).
		Order("product_id").
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, database.TranslateError(err, "Favorite")
	}
	return ids, nil
}
