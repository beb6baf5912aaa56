package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"storefront/internal/apperrors"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes registers the product routes. Browsing is public; changes need an admin.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, authRequired, adminRequired fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleListProducts)
	productRoutes.Get("/categories", h.HandleCategories)
	productRoutes.Get("/:id", h.HandleGetProduct)
	productRoutes.Post("/:id/reviews", authRequired, h.HandleAddReview)

	productRoutes.Post("/", authRequired, adminRequired, h.HandleCreateProduct)
	productRoutes.Put("/:id", authRequired, adminRequired, h.HandleUpdateProduct)
	productRoutes.Delete("/:id", authRequired, adminRequired, h.HandleDeleteProduct)
}

// ImageRequest is one product image.
type ImageRequest struct {
	URL     string `json:"url" validate:"required,url"`
	AltText string `json:"altText" validate:"omitempty,max=200"`
}

// ProductRequest is the body of a product creation.
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,min=3,max=100"`
	Description string          `json:"description" validate:"max=2000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Category    string          `json:"category" validate:"omitempty,max=50"`
	Images      []ImageRequest  `json:"images" validate:"omitempty,dive"`
}

// ProductUpdateRequest changes only the fields present in the body.
type ProductUpdateRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=3,max=100"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" validate:"omitempty,gte=0"`
	Category    *string          `json:"category" validate:"omitempty,max=50"`
	IsActive    *bool            `json:"isActive"`
	Images      []ImageRequest   `json:"images" validate:"omitempty,dive"`
}

// ReviewRequest is the body of a product review.
type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

func toImages(in []ImageRequest) []models.ProductImage {
	if in == nil {
		return nil
	}
	images := make([]models.ProductImage, len(in))
	for i, img := range in {
		images[i] = models.ProductImage{URL: img.URL, AltText: img.AltText}
	}
	return images
}

func decimalQuery(c *fiber.Ctx, key string) (*decimal.Decimal, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperrors.InvalidRequest("Invalid %s: %s", key, raw)
	}
	return &d, nil
}

// HandleListProducts lists active products.
// Query: category, search, minPrice, maxPrice, sort, page, limit.
func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	minPrice, err := decimalQuery(c, "minPrice")
	if err != nil {
		return err
	}
	maxPrice, err := decimalQuery(c, "maxPrice")
	if err != nil {
		return err
	}

	page, err := h.service.ListProducts(c.UserContext(), repositories.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Sort:     c.Query("sort"),
		Page:     pageQuery(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *ProductHandler) HandleCategories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"categories": h.service.Categories()})
}

// HandleGetProduct retrieves a single product with its reviews.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	product, err := h.service.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"product": product})
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req ProductRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}

	product, err := h.service.CreateProduct(c.UserContext(), services.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		Images:      toImages(req.Images),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Product created successfully",
		"product": product,
	})
}

// HandleUpdateProduct updates an existing product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var req ProductUpdateRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}

	product, err := h.service.UpdateProduct(c.UserContext(), c.Params("id"), services.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		IsActive:    req.IsActive,
		Images:      toImages(req.Images),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Product updated successfully",
		"product": product,
	})
}

// HandleDeleteProduct removes a product from the catalog.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.service.DeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Product deleted successfully"})
}

func (h *ProductHandler) HandleAddReview(c *fiber.Ctx) error {
	var req ReviewRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}

	review, err := h.service.AddReview(c.UserContext(), middleware.Actor(c).UserID, c.Params("id"), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Review added successfully",
		"review":  review,
	})
}
