package services

import (
	"context"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

const defaultProductLimit = 12

// ProductInput is the full set of fields of a new product.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    string
	Images      []models.ProductImage
}

// ProductUpdate changes only the fields that are set. A nil Images leaves images as they are.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Category    *string
	IsActive    *bool
	Images      []models.ProductImage
}

// ProductPage is one page of the catalog.
type ProductPage struct {
	Products   []models.Product  `json:"products"`
	Pagination models.Pagination `json:"pagination"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo repositories.ProductRepository
	tx   repositories.Transactor
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, tx repositories.Transactor) *ProductService {
	return &ProductService{
		repo: repo,
		tx:   tx,
	}
}

// ListProducts retrieves one page of active products.
func (s *ProductService) ListProducts(ctx context.Context, filter repositories.ProductFilter) (ProductPage, error) {
	filter.Page = filter.Page.Normalize(defaultProductLimit)
	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return ProductPage{}, err
	}
	return ProductPage{Products: products, Pagination: models.NewPagination(filter.Page, total)}, nil
}

// GetProduct retrieves an active product with its reviews.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetWithReviews(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, apperrors.NotFound("Product not found")
	}
	return product, nil
}

// Categories lists the known catalog categories.
func (s *ProductService) Categories() []string {
	return slices.Clone(models.Categories)
}

func validCategory(category string) bool {
	return category == "" || slices.Contains(models.Categories, category)
}

// CreateProduct creates a new, active product.
func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if !validCategory(in.Category) {
		return nil, apperrors.InvalidRequest("Unknown category: %s", in.Category)
	}
	if !in.Price.IsPositive() {
		return nil, apperrors.InvalidRequest("Price must be greater than zero")
	}
	if in.Stock < 0 {
		return nil, apperrors.InvalidRequest("Stock cannot be negative")
	}

	product := &models.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		Images:      in.Images,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct applies the set fields of in to an existing product.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, in ProductUpdate) (*models.Product, error) {
	var product *models.Product
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		product, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if in.Name != nil {
			product.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			product.Description = *in.Description
		}
		if in.Price != nil {
			if !in.Price.IsPositive() {
				return apperrors.InvalidRequest("Price must be greater than zero")
			}
			product.Price = *in.Price
		}
		if in.Stock != nil {
			if *in.Stock < 0 {
				return apperrors.InvalidRequest("Stock cannot be negative")
			}
			product.Stock = *in.Stock
		}
		if in.Category != nil {
			if !validCategory(*in.Category) {
				return apperrors.InvalidRequest("Unknown category: %s", *in.Category)
			}
			product.Category = *in.Category
		}
		if in.IsActive != nil {
			product.IsActive = *in.IsActive
		}
		product.Images = in.Images
		if err := s.repo.Update(ctx, product); err != nil {
			return err
		}
		product, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct hides a product from the catalog. Orders keep their snapshot of it.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}

// AddReview records userID's rating of an active product. Each user reviews a product once.
func (s *ProductService) AddReview(ctx context.Context, userID, productID string, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.InvalidRequest("Rating must be between 1 and 5")
	}

	review := &models.Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		product, err := s.repo.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return apperrors.NotFound("Product not found")
		}
		reviewed, err := s.repo.HasReview(ctx, productID, userID)
		if err != nil {
			return err
		}
		if reviewed {
			return apperrors.Conflict("You have already reviewed this product")
		}
		return s.repo.AddReview(ctx, review)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}
