// File: internal/user/repository.go
package user

import (
	"context"
	"fmt"
	"strings"

	"deals_marketplace/internal/common"
	"deals_marketplace/internal/platform/database"

	"gorm.io/gorm"
)

// Repository defines the interface for user data operations.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindWithStats(ctx context.Context, email string) (*WithStats, error)
	ListWithStats(ctx context.Context, search string, offset, limit int) ([]WithStats, error)
	CountMatching(ctx context.Context, search string) (int64, error)
	TopSellers(ctx context.Context, n int) ([]WithStats, error)
	Update(ctx context.Context, email string, changes map[string]interface{}) error
	Delete(ctx context.Context, email string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM user repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// statsColumns computes product count and seller average with correlated
// subqueries, so a page of users costs one statement.
const statsColumns = `u.*,
	(SELECT COUNT(*) FROM products p WHERE p.seller_email = u.email) AS product_count,
	COALESCE((SELECT CAST(AVG(r.rating) AS DOUBLE PRECISION) FROM ratings r WHERE r.seller_email = u.email), 0) AS avg_rating`

// nameMatching restricts to users whose first or last name contains search, ignoring case.
// List and count share it so page totals always agree with page contents.
func nameMatching(search string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		search = strings.TrimSpace(search)
		if search == "" {
			return db
		}
		pattern := "%" + strings.ToLower(search) + "%"
		return db.Where("(LOWER(u.first_name) LIKE ? OR LOWER(u.last_name) LIKE ?)", pattern, pattern)
	}
}

func (r *gormRepository) withStats(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table("users AS u").Select(statsColumns)
}

// Create inserts a new user record into the database.
func (r *gormRepository) Create(ctx context.Context, user *User) error {
	user.Email = common.NormalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return database.TranslateError(err, "User with this email")
	}
	return nil
}

// FindByEmail retrieves a user by their email address.
func (r *gormRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var userModel User
	err := r.db.WithContext(ctx).Where("email = ?", common.NormalizeEmail(email)).First(&userModel).Error
	if err != nil {
		return nil, database.TranslateError(err, "User")
	}
	return &userModel, nil
}

// FindWithStats retrieves a user together with their seller aggregates.
func (r *gormRepository) FindWithStats(ctx context.Context, email string) (*WithStats, error) {
	var rows []WithStats
	err := r.withStats(ctx).Where("u.email = ?", common.NormalizeEmail(email)).Limit(1).Scan(&rows).Error
	if err != nil {
		return nil, database.TranslateError(err, "User")
	}
	if len(rows) == 0 {
		return nil, common.ErrNotFound.WithDetails("User not found.")
	}
	roundStats(rows)
	return &rows[0], nil
}

// ListWithStats returns one page of users ordered by email.
func (r *gormRepository) ListWithStats(ctx context.Context, search string, offset, limit int) ([]WithStats, error) {
	rows := []WithStats{}
	if limit <= 0 {
		return rows, nil
	}
	err := r.withStats(ctx).
		Scopes(nameMatching(search)).
		Order("u.email ASC").
		Offset(offset).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, database.TranslateError(err, "User")
	}
	roundStats(rows)
	return rows, nil
}

// CountMatching counts users the same way ListWithStats filters them.
func (r *gormRepository) CountMatching(ctx context.Context, search string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Table("users AS u").Scopes(nameMatching(search)).Count(&total).Error
	if err != nil {
		return 0, database.TranslateError(err, "User")
	}
	return total, nil
}

// TopSellers ranks users owning at least one product by seller average, ties by email.
func (r *gormRepository) TopSellers(ctx context.Context, n int) ([]WithStats, error) {
	rows := []WithStats{}
	if n <= 0 {
		return rows, nil
	}
	err := r.withStats(ctx).
		Where("EXISTS (SELECT 1 FROM products p WHERE p.seller_email = u.email)").
		Order("avg_rating DESC, u.email ASC").
		Limit(n).
		Scan(&rows).Error
	if err != nil {
		return nil, database.TranslateError(err, "User")
	}
	roundStats(rows)
	return rows, nil
}

// Update applies a partial change set. An "email" key renames the user; the
// foreign keys cascade the new value into products, ratings and favorites.
func (r *gormRepository) Update(ctx context.Context, email string, changes map[string]interface{}) error {
	if len(changes) == 0 {
		return nil
	}
	if newEmail, ok := changes["email"].(string); ok {
		changes["email"] = common.NormalizeEmail(newEmail)
	}
	result := r.db.WithContext(ctx).Model(&User{}).Where("email = ?", common.NormalizeEmail(email)).Updates(changes)
	if result.Error != nil {
		return database.TranslateError(result.Error, "User with this email")
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("User not found.")
	}
	return nil
}

// Delete removes a user; products, ratings and favorites go with it.
func (r *gormRepository) Delete(ctx context.Context, email string) error {
	result := r.db.WithContext(ctx).Where("email = ?", common.NormalizeEmail(email)).Delete(&User{})
	if result.Error != nil {
		return fmt.Errorf("delete user: %w", database.TranslateError(result.Error, "User"))
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("User not found.")
	}
	return nil
}

func roundStats(rows []WithStats) {
	for i := range rows {
		rows[i].AvgRating = common.RoundRating(rows[i].AvgRating)
	}
}
