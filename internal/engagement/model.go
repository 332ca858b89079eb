// File: internal/engagement/model.go
package engagement

import (
	"deals_marketplace/internal/product"
	"deals_marketplace/internal/user"
)

const (
	MinScore = 1
	MaxScore = 5
)

// Rating is one user's score for one product. A second rating from the same
// user replaces the first.
type Rating struct {
	ID          int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserEmail   string           `gorm:"type:varchar(255);not null;uniqueIndex:idx_ratings_user_product" json:"user_email"`
	SellerEmail string           `gorm:"type:varchar(255);not null;index" json:"seller_email"`
	ProductID   int64            `gorm:"not null;uniqueIndex:idx_ratings_user_product;index" json:"product_id"`
	Rating      int              `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Rater       *user.User       `gorm:"foreignKey:UserEmail;references:Email;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Seller      *user.User       `gorm:"foreignKey:SellerEmail;references:Email;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Product     *product.Product `gorm:"foreignKey:ProductID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for the Rating model.
func (Rating) TableName() string {
	return "ratings"
}

// Favorite bookmarks a product for a user.
type Favorite struct {
	UserEmail string           `gorm:"primaryKey;type:varchar(255)" json:"user_email"`
	ProductID int64            `gorm:"primaryKey;autoIncrement:false" json:"product_id"`
	User      *user.User       `gorm:"foreignKey:UserEmail;references:Email;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Product   *product.Product `gorm:"foreignKey:ProductID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for the Favorite model.
func (Favorite) TableName() string {
	return "favorites"
}

// FavoriteAction reports what a toggle did.
type FavoriteAction int

const (
	// FavoriteNone means nothing changed because the product does not exist.
	FavoriteNone FavoriteAction = iota
	FavoriteAdded
	FavoriteRemoved
)

func (a FavoriteAction) String() string {
	switch a {
	case FavoriteAdded:
		return "added"
	case FavoriteRemoved:
		return "removed"
	default:
		return "none"
	}
}
