// File: internal/user/model.go
package user

import (
	"deals_marketplace/internal/common"
)

// Gender values accepted for a user.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// User is keyed by email. Renaming the email cascades to every owned row.
type User struct {
	Email     string      `gorm:"primaryKey;type:varchar(255)" json:"email"`
	FirstName string      `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName  string      `gorm:"type:varchar(100);not null" json:"last_name"`
	Gender    string      `gorm:"type:varchar(10);not null;check:gender IN ('male','female','other')" json:"gender"`
	Password  string      `gorm:"column:password;not null" json:"-"`
	Role      common.Role `gorm:"type:varchar(10);not null;default:'user';check:role IN ('user','admin')" json:"role"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// DisplayName is the "first last" form shown next to a seller's products.
func (u *User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

// Actor returns the identity this user acts as.
func (u *User) Actor() common.Actor {
	return common.Actor{Email: u.Email, Role: u.Role}
}

// WithStats is a user plus the seller aggregates computed on read.
type WithStats struct {
	User
	ProductCount int64   `json:"product_count"`
	AvgRating    float64 `json:"avg_rating"`
}

// --- Requests ---

// RegisterRequest defines the data required to create an account.
type RegisterRequest struct {
	Email     string `validate:"required,email,max=255"`
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"required,max=100"`
	Gender    string `validate:"required,oneof=male female other"`
	Password  string `validate:"required,min=8,max=72"` // bcrypt max is 72 bytes
	Role      string `validate:"omitempty,oneof=user admin"`
}

// UpdateProfileRequest is a self-service edit. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	CurrentPassword string  `validate:"required"`
	NewEmail        *string `validate:"omitempty,email,max=255"`
	FirstName       *string `validate:"omitempty,min=1,max=100"`
	LastName        *string `validate:"omitempty,min=1,max=100"`
	Gender          *string `validate:"omitempty,oneof=male female other"`
	NewPassword     *string `validate:"omitempty,min=8,max=72"`
}

// AdminUpdateUserRequest is an admin edit of another account.
type AdminUpdateUserRequest struct {
	NewEmail  *string `validate:"omitempty,email,max=255"`
	FirstName *string `validate:"omitempty,min=1,max=100"`
	LastName  *string `validate:"omitempty,min=1,max=100"`
	Gender    *string `validate:"omitempty,oneof=male female other"`
	Role      *string `validate:"omitempty,oneof=user admin"`
}

// ListUsersRequest filters the admin user listing.
type ListUsersRequest struct {
	Search   string
	Page     int
	PageSize int
}
