// Package market implements marketplace product listings.
package market

import (
	"context"
	"log/slog"

	"gaunroots/internal/store"
)

// Service exposes CRUD over product listings plus the view counter.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a marketplace service.
func New(st store.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger.With("component", "market"),
	}
}

// ListingInput carries the fields a seller supplies for a new listing.
type ListingInput struct {
	SellerID    int64
	SellerName  string
	Name        string
	Price       float64
	Description string
	Type        string
	Phone       string
}

// List returns every product.
func (s *Service) List(ctx context.Context) ([]store.Product, error) {
	return s.store.ListProducts(ctx)
}

// ListBySeller returns products listed by one seller.
func (s *Service) ListBySeller(ctx context.Context, sellerID int64) ([]store.Product, error) {
	return s.store.ListProductsBySeller(ctx, sellerID)
}

// Create stores a new listing with views initialised to zero.
func (s *Service) Create(ctx context.Context, in ListingInput) (*store.Product, error) {
	product, err := s.store.CreateProduct(ctx, store.Product{
		SellerID:    in.SellerID,
		SellerName:  in.SellerName,
		Name:        in.Name,
		Price:       in.Price,
		Description: in.Description,
		Type:        in.Type,
		Phone:       in.Phone,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("product listed", "id", product.ID, "seller_id", product.SellerID)
	return product, nil
}

// Delete removes a listing by id, reporting whether one was removed.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	return s.store.DeleteProduct(ctx, id)
}

// IncrementViews bumps the view counter by one. Not idempotent.
func (s *Service) IncrementViews(ctx context.Context, id int64) (*store.Product, error) {
	return s.store.IncrementProductViews(ctx, id)
}
