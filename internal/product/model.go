// File: internal/product/model.go
package product

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"deals_marketplace/internal/user"
)

// Product is a seller's listing. It is swept once older than the retention window.
type Product struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerEmail   string     `gorm:"type:varchar(255);not null;index" json:"seller_email"`
	Seller        *user.User `gorm:"foreignKey:SellerEmail;references:Email;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Name          string     `gorm:"type:varchar(255);not null" json:"name"`
	Features      Features   `gorm:"type:text" json:"features"`
	FreeShipping  bool       `gorm:"not null" json:"free_shipping"`
	Description   string     `gorm:"type:text" json:"description"`
	Category      string     `gorm:"type:varchar(100);not null;index" json:"category"`
	RegularPrice  float64    `gorm:"not null" json:"regular_price"`
	DiscountPrice float64    `gorm:"not null" json:"discount_price"`
	ImageURL      string     `gorm:"type:varchar(255)" json:"image_url"`
	Link          string     `gorm:"type:text" json:"link"`
	PublishDate   time.Time  `gorm:"not null;index" json:"publish_date"`
}

// TableName specifies the table name for the Product model.
func (Product) TableName() string {
	return "products"
}

// Features is the free-text tag list of a product, stored as one comma separated column.
type Features []string

// Value implements driver.Valuer.
func (f Features) Value() (driver.Value, error) {
	return strings.Join(f, ","), nil
}

// Scan implements sql.Scanner.
func (f *Features) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*f = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported type %T for Features", value)
	}
	*f = ParseFeatures(raw)
	return nil
}

// GormDataType keeps the column a plain text type on every dialect.
func (Features) GormDataType() string {
	return "text"
}

// ParseFeatures splits a comma separated list, dropping blanks.
func ParseFeatures(raw string) Features {
	var out Features
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// View is a product enriched for a particular viewer.
type View struct {
	Product
	SellerName    string  `json:"seller_name"`
	SellerRating  float64 `json:"seller_rating"`
	ProductRating float64 `json:"avg_rating"`
	IsFavorite    bool    `json:"is_favorite"`
}

// SortOrder selects one of the whitelisted orderings.
type SortOrder string

const (
	SortNewest   SortOrder = "newest"
	SortRating   SortOrder = "rating"
	SortPriceAsc SortOrder = "price_asc"
)

// Filters are the optional listing filters a viewer can switch on.
type Filters struct {
	FreeShipping bool
	SearchQuery  string
}

// Query describes one fetch (or count) against the catalog. Zero values mean "no predicate".
type Query struct {
	ProductID     int64
	Category      string
	SellerEmail   string
	ViewerEmail   string
	OnlyFavorites bool
	Filters       Filters
	Sort          SortOrder
	Offset        int
	Limit         int
}

// --- Requests ---

// CreateProductRequest defines the fields of a new listing.
type CreateProductRequest struct {
	Name          string   `validate:"required,max=255"`
	Features      []string `validate:"omitempty,max=50,dive,required,max=100,excludesall=0x2C"`
	FreeShipping  bool
	Description   string  `validate:"max=5000"`
	Category      string  `validate:"required,max=100"`
	RegularPrice  float64 `validate:"gte=0"`
	DiscountPrice float64 `validate:"gte=0,ltefield=RegularPrice"`
	Link          string  `validate:"omitempty,url"`
}

// UpdateProductRequest is a partial edit; nil fields keep their stored value.
type UpdateProductRequest struct {
	Name          *string   `validate:"omitempty,min=1,max=255"`
	Features      *[]string `validate:"omitempty,max=50,dive,required,max=100,excludesall=0x2C"`
	FreeShipping  *bool
	Description   *string  `validate:"omitempty,max=5000"`
	Category      *string  `validate:"omitempty,min=1,max=100"`
	RegularPrice  *float64 `validate:"omitempty,gte=0"`
	DiscountPrice *float64 `validate:"omitempty,gte=0"`
	Link          *string  `validate:"omitempty,url"`
}

// ListRequest is a page of the catalog as seen by a viewer.
type ListRequest struct {
	Category      string
	SellerEmail   string
	OnlyFavorites bool
	Filters       Filters
	Sort          SortOrder
	Page          int
	PageSize      int
}
