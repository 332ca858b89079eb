// File: internal/app/seed.go
package app

import (
	"context"
	"errors"
	"fmt"

	"deals_marketplace/internal/common"
	"deals_marketplace/internal/product"
	"deals_marketplace/internal/user"

	"go.uber.org/zap"
)

// SeedPassword is the password of every sample account.
const SeedPassword = "changeme123"

// SeedAdminEmail is the sample administrator.
const SeedAdminEmail = "admin@example.com"

var seedUsers = []user.RegisterRequest{
	{Email: SeedAdminEmail, FirstName: "Yehuda", LastName: "Admin", Gender: user.GenderMale, Role: string(common.RoleAdmin)},
	{Email: "user1@example.com", FirstName: "Dana", LastName: "Levi", Gender: user.GenderFemale},
	{Email: "user2@example.com", FirstName: "Avi", LastName: "Cohen", Gender: user.GenderMale},
	{Email: "user3@example.com", FirstName: "Noa", LastName: "Mizrahi", Gender: user.GenderOther},
}

var seedProducts = []product.Product{
	{SellerEmail: "user1@example.com", Name: "Product 1", Description: "Description 1", Category: "Category 1",
		Features: product.Features{"sample"}, ImageURL: "uploads/image1.jpg", RegularPrice: 100, DiscountPrice: 80, Link: "http://example.com/1"},
	{SellerEmail: "user1@example.com", Name: "Product 2", Description: "Description 2", Category: "Category 2",
		FreeShipping: true, ImageURL: "uploads/example.png", RegularPrice: 200, DiscountPrice: 150, Link: "http://example.com/2"},
	{SellerEmail: "user2@example.com", Name: "Product 3", Description: "Description 3", Category: "Category 1",
		ImageURL: "uploads/image2.jpg", RegularPrice: 120, DiscountPrice: 90, Link: "http://example.com/3"},
	{SellerEmail: "user3@example.com", Name: "Sample Product", Description: "Sample Product", Category: "Category 2",
		FreeShipping: true, ImageURL: "uploads/example.png", RegularPrice: 999, DiscountPrice: 499.99, Link: "http://example.com/4"},
}

// Seed inserts sample accounts and products. Accounts that already exist are
// left alone; products are only added to an empty catalog.
func (m *Marketplace) Seed(ctx context.Context) error {
	log := m.logger.Named("seed")

	for _, req := range seedUsers {
		req.Password = SeedPassword
		if _, err := m.Users.Register(ctx, req); err != nil {
			if errors.Is(err, common.ErrAlreadyExists) {
				log.Debug("Seed user already exists", zap.String("email", req.Email))
				continue
			}
			return fmt.Errorf("seed user %s: %w", req.Email, err)
		}
	}

	existing, err := m.productRepo.Count(ctx, product.Query{})
	if err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if existing > 0 {
		log.Info("Catalog not empty, skipping sample products", zap.Int64("products", existing))
		return nil
	}

	now := m.clock.Now()
	for i := range seedProducts {
		p := seedProducts[i]
		p.PublishDate = now
		if err := m.productRepo.Create(ctx, &p); err != nil {
			return fmt.Errorf("seed product %q: %w", p.Name, err)
		}
	}
	log.Info("Seed data inserted", zap.Int("users", len(seedUsers)), zap.Int("products", len(seedProducts)))
	return nil
}
