// File: internal/product/repository.go
package product

import (
	"context"
	"time"

	"deals_marketplace/internal/common"
	"deals_marketplace/internal/platform/database"

	"gorm.io/gorm"
)

// Repository defines the interface for product data operations.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	FindByID(ctx context.Context, id int64) (*Product, error)
	Find(ctx context.Context, q Query) ([]View, error)
	Count(ctx context.Context, q Query) (int64, error)
	Update(ctx context.Context, id int64, changes map[string]interface{}) error
	Delete(ctx context.Context, id int64) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]Product, error)
	DeleteBySeller(ctx context.Context, sellerEmail string) ([]Product, error)
	FindBySeller(ctx context.Context, sellerEmail string) ([]Product, error)
	FindAllForSync(ctx context.Context, offset, limit int) ([]Product, error)
	// Transaction runs fn with a Repository bound to one database transaction.
	Transaction(ctx context.Context, fn func(repo Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM product repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(repo Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

// Create inserts a new product.
func (r *gormRepository) Create(ctx context.Context, p *Product) error {
	if err := r.db.WithContext(ctx).Omit("Seller").Create(p).Error; err != nil {
		return database.TranslateError(err, "Product")
	}
	return nil
}

// FindByID retrieves the raw product row.
func (r *gormRepository) FindByID(ctx context.Context, id int64) (*Product, error) {
	var p Product
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, database.TranslateError(err, "Product")
	}
	return &p, nil
}

// Find runs the enriched catalog query. A non-positive limit yields no rows.
func (r *gormRepository) Find(ctx context.Context, q Query) ([]View, error) {
	views := []View{}
	if q.Limit <= 0 {
		return views, nil
	}

	columns, columnArgs := selectView(q)
	err := r.db.WithContext(ctx).
		Table("products AS p").
		Select(columns, columnArgs...).
		Scopes(scopePredicates(buildPredicates(q))).
		Joins(sellerJoin).
		Joins(productRatingJoin).
		Joins(sellerRatingJoin).
		Order(orderBy(q.Sort)).
		Offset(q.Offset).
		Limit(q.Limit).
		Scan(&views).Error
	if err != nil {
		return nil, database.TranslateError(err, "Product")
	}

	for i := range views {
		views[i].SellerRating = common.RoundRating(views[i].SellerRating)
		views[i].ProductRating = common.RoundRating(views[i].ProductRating)
	}
	return views, nil
}

// Count applies exactly the predicates of Find, without paging or enrichment.
func (r *gormRepository) Count(ctx context.Context, q Query) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Table("products AS p").
		Scopes(scopePredicates(buildPredicates(q))).
		Count(&total).Error
	if err != nil {
		return 0, database.TranslateError(err, "Product")
	}
	return total, nil
}

// Update applies a partial change set to one product.
func (r *gormRepository) Update(ctx context.Context, id int64, changes map[string]interface{}) error {
	if len(changes) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&Product{}).Where("id = ?", id).Updates(changes)
	if result.Error != nil {
		return database.TranslateError(result.Error, "Product")
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("Product not found.")
	}
	return nil
}

// Delete removes one product; its ratings and favorites cascade.
func (r *gormRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&Product{}, "id = ?", id)
	if result.Error != nil {
		return database.TranslateError(result.Error, "Product")
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("Product not found.")
	}
	return nil
}

// DeleteOlderThan removes every product published before cutoff and returns
// the removed rows so their images can be cleaned up.
func (r *gormRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]Product, error) {
	return r.deleteWhere(ctx, "publish_date < ?", cutoff)
}

// DeleteBySeller removes every product of one seller and returns the removed rows.
func (r *gormRepository) DeleteBySeller(ctx context.Context, sellerEmail string) ([]Product, error) {
	return r.deleteWhere(ctx, "seller_email = ?", common.NormalizeEmail(sellerEmail))
}

func (r *gormRepository) deleteWhere(ctx context.Context, cond string, arg interface{}) ([]Product, error) {
	var removed []Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(cond, arg).Order("id").Find(&removed).Error; err != nil {
			return err
		}
		if len(removed) == 0 {
			return nil
		}
		ids := make([]int64, len(removed))
		for i := range removed {
			ids[i] = removed[i].ID
		}
		return tx.Where("id IN ?", ids).Delete(&Product{}).Error
	})
	if err != nil {
		return nil, database.TranslateError(err, "Product")
	}
	return removed, nil
}

// FindBySeller lists one seller's products in id order with the seller loaded.
func (r *gormRepository) FindBySeller(ctx context.Context, sellerEmail string) ([]Product, error) {
	var products []Product
	err := r.db.WithContext(ctx).Preload("Seller").
		Where("seller_email = ?", common.NormalizeEmail(sellerEmail)).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, database.TranslateError(err, "Product")
	}
	return products, nil
}

// FindAllForSync pages through raw products in id order for re-indexing.
func (r *gormRepository) FindAllForSync(ctx context.Context, offset, limit int) ([]Product, error) {
	var products []Product
	err := r.db.WithContext(ctx).Preload("Seller").Order("id ASC").Offset(offset).Limit(limit).Find(&products).Error
	if err != nil {
		return nil, database.TranslateError(err, "Product")
	}
	return products, nil
}
