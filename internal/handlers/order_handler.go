package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
)

// IdempotencyKeyHeader lets a client retry an order placement without ordering twice.
const IdempotencyKeyHeader = "Idempotency-Key"

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes registers the order routes. Every route needs an authenticated caller.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, authRequired, adminRequired fiber.Handler) {
	orderRoutes := router.Group("/orders", authRequired)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/my-orders", h.HandleMyOrders)
	orderRoutes.Get("/", adminRequired, h.HandleAllOrders)
	orderRoutes.Get("/:id", h.HandleGetOrder)
	orderRoutes.Put("/:id/status", adminRequired, h.HandleUpdateOrderStatus)
	orderRoutes.Put("/:id/cancel", h.HandleCancelOrder)
}

// OrderItemRequest is one line of an order placement.
type OrderItemRequest struct {
	Product  string `json:"product" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

// ShippingAddressRequest is where the order is delivered.
type ShippingAddressRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Phone   string `json:"phone" validate:"required,max=30"`
	Street  string `json:"street" validate:"required,max=200"`
	City    string `json:"city" validate:"max=100"`
	State   string `json:"state" validate:"max=100"`
	ZipCode string `json:"zipCode" validate:"max=20"`
	Country string `json:"country" validate:"max=100"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	Items           []OrderItemRequest     `json:"items" validate:"required,min=1,dive"`
	ShippingAddress ShippingAddressRequest `json:"shippingAddress"`
	Notes           string                 `json:"notes" validate:"max=1000"`
}

// UpdateStatusRequest is the body of PUT /orders/:id/status.
type UpdateStatusRequest struct {
	Status             string `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled"`
	TrackingNumber     string `json:"trackingNumber" validate:"max=100"`
	CancellationReason string `json:"cancellationReason" validate:"max=500"`
}

// CancelOrderRequest is the optional body of PUT /orders/:id/cancel.
type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (r CreateOrderRequest) toInput(idempotencyKey string) services.CreateOrderInput {
	items := make([]services.OrderItemInput, len(r.Items))
	for i, it := range r.Items {
		items[i] = services.OrderItemInput{ProductID: it.Product, Quantity: it.Quantity}
	}
	addr := r.ShippingAddress
	return services.CreateOrderInput{
		Items: items,
		ShippingAddress: models.ShippingAddress{
			Name:    addr.Name,
			Phone:   addr.Phone,
			Street:  addr.Street,
			City:    addr.City,
			State:   addr.State,
			ZipCode: addr.ZipCode,
			Country: addr.Country,
		},
		Notes:          r.Notes,
		IdempotencyKey: idempotencyKey,
	}
}

// HandleCreateOrder places an order for the caller. A replayed Idempotency-Key answers 200
// with the order placed by the first request.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}

	order, created, err := h.service.CreateOrder(c.UserContext(), middleware.Actor(c).UserID, req.toInput(c.Get(IdempotencyKeyHeader)))
	if err != nil {
		return err
	}

	status := fiber.StatusCreated
	if !created {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"message": "Order placed successfully",
		"order":   order,
	})
}

// HandleMyOrders lists the caller's orders, newest first.
func (h *OrderHandler) HandleMyOrders(c *fiber.Ctx) error {
	page, err := h.service.ListMyOrders(c.UserContext(), middleware.Actor(c).UserID, pageQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// HandleAllOrders lists every order with per-status statistics. Admin only.
func (h *OrderHandler) HandleAllOrders(c *fiber.Ctx) error {
	page, err := h.service.ListAllOrders(c.UserContext(), models.OrderStatus(c.Query("status")), pageQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// HandleGetOrder retrieves a single order for its owner or an admin.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), middleware.Actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"order": order})
}

// HandleUpdateOrderStatus sets any status on an order. Admin only.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var req UpdateStatusRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}

	order, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), services.UpdateStatusInput{
		Status:             models.OrderStatus(req.Status),
		TrackingNumber:     req.TrackingNumber,
		CancellationReason: req.CancellationReason,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Order status updated successfully",
		"order":   order,
	})
}

// HandleCancelOrder lets the owner cancel a pending or confirmed order.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	var req CancelOrderRequest
	if len(c.Body()) > 0 {
		if err := bind(c, h.validate, &req); err != nil {
			return err
		}
	}

	order, err := h.service.CancelOrder(c.UserContext(), middleware.Actor(c).UserID, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Order cancelled successfully",
		"order":   order,
	})
}
