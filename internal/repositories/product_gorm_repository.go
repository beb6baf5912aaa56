package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/apperrors"
	"storefront/internal/models"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

func orderedImages(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}

// List returns one page of active products matching filter, and the total match count.
func (r *GORMProductRepository) List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	q := conn(ctx, r.db).Model(&models.Product{}).Where("is_active = ?", true)
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}

	// Share the filters between the count and the page query.
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	var products []models.Product
	err := q.Order(sortClause(filter.Sort)).
		Offset(filter.Page.Offset()).
		Limit(filter.Page.Limit).
		Preload("Images", orderedImages).
		Find(&products).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

func sortClause(sort string) string {
	switch sort {
	case SortPriceLow:
		return "price ASC, created_at DESC"
	case SortPriceHigh:
		return "price DESC, created_at DESC"
	case SortRating:
		return "average_rating DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

// GetByID retrieves a single product by its ID, active or not, with its images.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := conn(ctx, r.db).Preload("Images", orderedImages).First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("product with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// GetWithReviews is GetByID plus the product's reviews, newest first.
func (r *GORMProductRepository) GetWithReviews(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := conn(ctx, r.db).
		Preload("Images", orderedImages).
		Preload("Reviews", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("product with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// Create creates a new product together with its images.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	for i := range product.Images {
		product.Images[i].Position = i
	}
	if err := conn(ctx, r.db).Omit("Reviews").Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update saves the product columns and, when Images is non-nil, replaces its images.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	db := conn(ctx, r.db)
	res := db.Omit(clause.Associations).Save(product)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("product with ID %s not found for update", product.ID)
	}
	if product.Images == nil {
		return nil
	}
	if err := db.Where("product_id = ?", product.ID).Delete(&models.ProductImage{}).Error; err != nil {
		return fmt.Errorf("failed to replace images of product %s: %w", product.ID, err)
	}
	for i := range product.Images {
		product.Images[i].ID = 0
		product.Images[i].ProductID = product.ID
		product.Images[i].Position = i
	}
	if len(product.Images) > 0 {
		if err := db.Create(&product.Images).Error; err != nil {
			return fmt.Errorf("failed to replace images of product %s: %w", product.ID, err)
		}
	}
	return nil
}

// Deactivate soft-deletes a product by clearing its active flag.
func (r *GORMProductRepository) Deactivate(ctx context.Context, id string) error {
	res := conn(ctx, r.db).Model(&models.Product{}).Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("product with ID %s not found for deletion", id)
	}
	return nil
}

func (r *GORMProductRepository) DecrementStock(ctx context.Context, id string, qty int) (bool, error) {
	res := conn(ctx, r.db).Model(&models.Product{}).
		Where("id = ? AND is_active = ? AND stock >= ?", id, true, qty).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to decrement stock of product %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GORMProductRepository) IncrementStock(ctx context.Context, id string, qty int) (bool, error) {
	res := conn(ctx, r.db).Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock + ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to restore stock of product %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GORMProductRepository) HasReview(ctx context.Context, productID, userID string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Review{}).
		Where("product_id = ? AND user_id = ?", productID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up review: %w", err)
	}
	return count > 0, nil
}

// AddReview stores the review and refreshes the product's rating summary.
func (r *GORMProductRepository) AddReview(ctx context.Context, review *models.Review) error {
	db := conn(ctx, r.db)
	if err := db.Create(review).Error; err != nil {
		return fmt.Errorf("failed to add review: %w", err)
	}

	var summary struct {
		Average float64
		Count   int
	}
	err := db.Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("product_id = ?", review.ProductID).
		Scan(&summary).Error
	if err != nil {
		return fmt.Errorf("failed to summarize reviews: %w", err)
	}
	err = db.Model(&models.Product{}).Where("id = ?", review.ProductID).
		UpdateColumns(map[string]any{"average_rating": summary.Average, "num_reviews": summary.Count}).Error
	if err != nil {
		return fmt.Errorf("failed to update rating of product %s: %w", review.ProductID, err)
	}
	return nil
}
