// File: internal/user/service.go
package user

import (
	"context"
	"errors"
	"fmt"

	"deals_marketplace/internal/common"
	"deals_marketplace/internal/config"
	"deals_marketplace/internal/platform/crypto"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Service defines the user and seller-aggregation operations.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetUser(ctx context.Context, email string) (*User, error)
	GetUserWithStats(ctx context.Context, email string) (*WithStats, error)
	ListUsersWithStats(ctx context.Context, actor common.Actor, req ListUsersRequest) ([]WithStats, *common.Pagination, error)
	TopSellers(ctx context.Context, n int) ([]WithStats, error)
	IsAdmin(ctx context.Context, email string) (bool, error)

	UpdateProfile(ctx context.Context, actor common.Actor, req UpdateProfileRequest) (*User, error)
	AdminUpdateUser(ctx context.Context, actor common.Actor, email string, req AdminUpdateUserRequest) (*User, error)
	DeleteUser(ctx context.Context, actor common.Actor, email string) error
}

// Listings is the seller's catalog as seen from account management.
// Deleting a seller removes their products first; renaming one re-indexes them.
type Listings interface {
	DeleteSellerProducts(ctx context.Context, sellerEmail string) (int64, error)
	ReindexSeller(ctx context.Context, sellerEmail string) error
}

// ServiceImplementation implements Service on top of a Repository.
type ServiceImplementation struct {
	repo     Repository
	listings Listings
	validate *validator.Validate
	cfg      *config.Config
	logger   *zap.Logger
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new user service. A nil listings skips catalog upkeep.
func NewService(repo Repository, listings Listings, validate *validator.Validate, cfg *config.Config, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:     repo,
		listings: listings,
		validate: validate,
		cfg:      cfg,
		logger:   logger.Named("UserService"),
	}
}

// Register creates a new user.
func (s *ServiceImplementation) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Email = common.NormalizeEmail(req.Email)
	if err := s.validate.Struct(req); err != nil {
		return nil, common.NewValidationError(err)
	}

	hashedPassword, err := crypto.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("Failed to hash password during registration", zap.Error(err))
		return nil, common.ErrStorage.Wrap(err)
	}

	role := common.RoleUser
	if req.Role != "" {
		role = common.Role(req.Role)
	}

	u := &User{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Gender:    req.Gender,
		Password:  hashedPassword,
		Role:      role,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrAlreadyExists.WithDetails("User with this email already exists.")
		}
		return nil, err
	}

	s.logger.Info("User registered", zap.String("email", u.Email), zap.String("role", string(u.Role)))
	return u, nil
}

// Authenticate verifies credentials, telling an unknown email apart from a wrong password.
func (s *ServiceImplementation) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound.WithDetails("User does not exist.")
		}
		return nil, err
	}
	ok, err := crypto.CheckPassword(u.Password, password)
	if err != nil {
		return nil, common.ErrStorage.Wrap(err)
	}
	if !ok {
		return nil, common.ErrUnauthorized.WithDetails("Incorrect password.")
	}
	return u, nil
}

func (s *ServiceImplementation) GetUser(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, email)
}

func (s *ServiceImplementation) GetUserWithStats(ctx context.Context, email string) (*WithStats, error) {
	return s.repo.FindWithStats(ctx, email)
}

// ListUsersWithStats is the admin user listing.
func (s *ServiceImplementation) ListUsersWithStats(ctx context.Context, actor common.Actor, req ListUsersRequest) ([]WithStats, *common.Pagination, error) {
	if !actor.IsAdmin() {
		return nil, nil, common.ErrUnauthorized.WithDetails("Only admins can list users.")
	}
	pq := common.PageQuery{Page: req.Page, PageSize: req.PageSize}.Normalize(s.cfg.UsersPerPage)

	total, err := s.repo.CountMatching(ctx, req.Search)
	if err != nil {
		return nil, nil, err
	}
	users, err := s.repo.ListWithStats(ctx, req.Search, pq.Offset(), pq.Limit())
	if err != nil {
		return nil, nil, err
	}
	return users, common.NewPagination(total, pq.Page, pq.PageSize), nil
}

func (s *ServiceImplementation) TopSellers(ctx context.Context, n int) ([]WithStats, error) {
	return s.repo.TopSellers(ctx, n)
}

// IsAdmin reports whether the stored account holds the admin role.
func (s *ServiceImplementation) IsAdmin(ctx context.Context, email string) (bool, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return u.Role == common.RoleAdmin, nil
}

// UpdateProfile lets a user edit their own account after re-entering their password.
func (s *ServiceImplementation) UpdateProfile(ctx context.Context, actor common.Actor, req UpdateProfileRequest) (*User, error) {
	if actor.IsAnonymous() {
		return nil, common.ErrUnauthorized.WithDetails("You must be logged in to edit your profile.")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, common.NewValidationError(err)
	}

	current, err := s.repo.FindByEmail(ctx, actor.Email)
	if err != nil {
		return nil, err
	}
	ok, err := crypto.CheckPassword(current.Password, req.CurrentPassword)
	if err != nil {
		return nil, common.ErrStorage.Wrap(err)
	}
	if !ok {
		return nil, common.ErrUnauthorized.WithDetails("Current password is incorrect.")
	}

	changes := map[string]interface{}{}
	setIfPresent(changes, "first_name", req.FirstName)
	setIfPresent(changes, "last_name", req.LastName)
	setIfPresent(changes, "gender", req.Gender)
	if req.NewPassword != nil {
		hashed, err := crypto.HashPassword(*req.NewPassword)
		if err != nil {
			return nil, common.ErrStorage.Wrap(err)
		}
		changes["password"] = hashed
	}
	newEmail := current.Email
	if req.NewEmail != nil && common.NormalizeEmail(*req.NewEmail) != current.Email {
		newEmail = common.NormalizeEmail(*req.NewEmail)
		changes["email"] = newEmail
	}

	if err := s.applyChanges(ctx, current.Email, changes); err != nil {
		return nil, err
	}
	s.logger.Info("Profile updated", zap.String("email", newEmail), zap.Int("fields", len(changes)))
	if newEmail != current.Email {
		s.reindexSeller(ctx, newEmail)
	}
	return s.repo.FindByEmail(ctx, newEmail)
}

// AdminUpdateUser edits any account's names, gender, role or email.
func (s *ServiceImplementation) AdminUpdateUser(ctx context.Context, actor common.Actor, email string, req AdminUpdateUserRequest) (*User, error) {
	if !actor.IsAdmin() {
		return nil, common.ErrUnauthorized.WithDetails("Only admins can edit other users.")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, common.NewValidationError(err)
	}
	current, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	setIfPresent(changes, "first_name", req.FirstName)
	setIfPresent(changes, "last_name", req.LastName)
	setIfPresent(changes, "gender", req.Gender)
	setIfPresent(changes, "role", req.Role)
	newEmail := current.Email
	if req.NewEmail != nil && common.NormalizeEmail(*req.NewEmail) != current.Email {
		newEmail = common.NormalizeEmail(*req.NewEmail)
		changes["email"] = newEmail
	}

	if err := s.applyChanges(ctx, current.Email, changes); err != nil {
		return nil, err
	}
	s.logger.Info("User updated by admin",
		zap.String("admin", actor.Email),
		zap.String("email", newEmail),
	)
	if newEmail != current.Email {
		s.reindexSeller(ctx, newEmail)
	}
	return s.repo.FindByEmail(ctx, newEmail)
}

// DeleteUser removes an account. Users may delete themselves; admins may delete anyone.
// The seller's products go first so their images and index entries are released.
func (s *ServiceImplementation) DeleteUser(ctx context.Context, actor common.Actor, email string) error {
	if !actor.Owns(email) && !actor.IsAdmin() {
		return common.ErrUnauthorized.WithDetails("You can only delete your own account.")
	}
	target, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	var removed int64
	if s.listings != nil {
		removed, err = s.listings.DeleteSellerProducts(ctx, target.Email)
		if err != nil {
			return fmt.Errorf("remove products of %s: %w", target.Email, err)
		}
	}
	if err := s.repo.Delete(ctx, email); err != nil {
		return err
	}
	s.logger.Info("User deleted",
		zap.String("email", target.Email),
		zap.String("by", actor.Email),
		zap.Int64("products", removed),
	)
	return nil
}

// reindexSeller refreshes the seller email carried by indexed products.
// The account change is already committed, so failures are only logged.
func (s *ServiceImplementation) reindexSeller(ctx context.Context, email string) {
	if s.listings == nil {
		return
	}
	if err := s.listings.ReindexSeller(ctx, email); err != nil {
		s.logger.Warn("Failed to re-index seller products", zap.String("email", email), zap.Error(err))
	}
}

func (s *ServiceImplementation) applyChanges(ctx context.Context, email string, changes map[string]interface{}) error {
	err := s.repo.Update(ctx, email, changes)
	if errors.Is(err, common.ErrAlreadyExists) {
		return common.ErrAlreadyExists.WithDetails("Email is already taken.")
	}
	if err != nil {
		return fmt.Errorf("update user %s: %w", email, err)
	}
	return nil
}

func setIfPresent(changes map[string]interface{}, column string, value *string) {
	if value != nil {
		changes[column] = *value
	}
}
