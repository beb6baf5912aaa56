package repositories

import (
	"context"

	"storefront/internal/models"
)

// OrderRepository defines the interface for order data access.
// Orders are never deleted.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string, page models.PageRequest) ([]models.Order, int64, error)
	// List returns all orders, optionally only those in status (empty = any).
	List(ctx context.Context, status models.OrderStatus, page models.PageRequest) ([]models.Order, int64, error)
	StatsByStatus(ctx context.Context) ([]models.OrderStat, error)
	// UpdateStatus persists the status, payment, tracking and cancellation fields of order,
	// but only while the stored status is one of from (any status when from is empty).
	// It reports false when the stored status did not match.
	UpdateStatus(ctx context.Context, order *models.Order, from ...models.OrderStatus) (bool, error)
}
