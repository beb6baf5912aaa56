package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Categories lists the catalog categories a product may belong to.
var Categories = []string{
	"gifts",
	"cosmetics",
	"grooming",
	"styling",
	"jewellery",
	"bags",
	"purses",
	"water-bottles",
	"coffee-mugs",
	"seasonal",
}

// ProductImage is an ordered image attached to a product.
type ProductImage struct {
	ID        uint   `json:"-" gorm:"primaryKey"`
	ProductID string `json:"-" gorm:"type:varchar(36);index"`
	URL       string `json:"url" gorm:"type:varchar(500);not null"`
	AltText   string `json:"altText" gorm:"type:varchar(200)"`
	Position  int    `json:"-"`
}

// Review is a single customer rating of a product. A user reviews a product at most once.
type Review struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProductID string    `json:"productId" gorm:"type:varchar(36);uniqueIndex:idx_reviews_product_user"`
	UserID    string    `json:"user" gorm:"type:varchar(36);uniqueIndex:idx_reviews_product_user"`
	Rating    int       `json:"rating" gorm:"not null"`
	Comment   string    `json:"comment" gorm:"type:text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Product represents a product in the store.
type Product struct {
	ID            string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name          string          `json:"name" gorm:"type:varchar(100);not null"`
	Description   string          `json:"description" gorm:"type:text"`
	Price         decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Stock         int             `json:"stock" gorm:"not null;check:stock >= 0"`
	Category      string          `json:"category" gorm:"type:varchar(50);index"`
	IsActive      bool            `json:"isActive" gorm:"index"`
	AverageRating float64         `json:"averageRating"`
	NumReviews    int             `json:"numReviews"`
	Images        []ProductImage  `json:"images" gorm:"constraint:OnDelete:CASCADE"`
	Reviews       []Review        `json:"reviews,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not supply one.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// PrimaryImageURL returns the first image url, or "" when the product has no images.
func (p *Product) PrimaryImageURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}
