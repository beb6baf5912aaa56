package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

// Sort keys accepted by ProductFilter.Sort.
const (
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortNewest    = "newest"
	SortRating    = "rating"
)

// ProductFilter narrows a catalog listing. Only active products are ever listed.
type ProductFilter struct {
	Category string
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
	Page     models.PageRequest
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetWithReviews(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Deactivate(ctx context.Context, id string) error

	// DecrementStock removes qty units from an active product only if at least qty are
	// in stock. It reports false when the product is missing, inactive or short.
	DecrementStock(ctx context.Context, id string, qty int) (bool, error)
	// IncrementStock returns qty units to a product. It reports false when the
	// product no longer exists.
	IncrementStock(ctx context.Context, id string, qty int) (bool, error)

	HasReview(ctx context.Context, productID, userID string) (bool, error)
	AddReview(ctx context.Context, review *models.Review) error
}
