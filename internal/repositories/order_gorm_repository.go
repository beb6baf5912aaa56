package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"storefront/internal/apperrors"
	"storefront/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// ownerContact loads only the fields shown next to an order.
func ownerContact(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "email", "phone")
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// Create inserts the order and its items.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := conn(ctx, r.db).Omit("User").Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Conflict("Order number %s is already taken, please retry", order.OrderNumber)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID returns the order with its items and owner contact fields.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := conn(ctx, r.db).
		Preload("Items", orderedItems).
		Preload("User", ownerContact).
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("order with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

func (r *GORMOrderRepository) ListByUser(ctx context.Context, userID string, page models.PageRequest) ([]models.Order, int64, error) {
	q := conn(ctx, r.db).Model(&models.Order{}).Where("user_id = ?", userID)

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders of user %s: %w", userID, err)
	}

	var orders []models.Order
	err := q.Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Preload("Items", orderedItems).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders of user %s: %w", userID, err)
	}
	return orders, total, nil
}

func (r *GORMOrderRepository) List(ctx context.Context, status models.OrderStatus, page models.PageRequest) ([]models.Order, int64, error) {
	q := conn(ctx, r.db).Model(&models.Order{})
	if status != "" {
		q = q.Where("order_status = ?", string(status))
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	err := q.Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Preload("Items", orderedItems).
		Preload("User", ownerContact).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// StatsByStatus counts and sums orders per status across every order.
func (r *GORMOrderRepository) StatsByStatus(ctx context.Context) ([]models.OrderStat, error) {
	var stats []models.OrderStat
	err := conn(ctx, r.db).Model(&models.Order{}).
		Select("order_status AS status, COUNT(*) AS count, COALESCE(SUM(total), 0) AS total_amount").
		Group("order_status").
		Order("order_status").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate order stats: %w", err)
	}
	return stats, nil
}

func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, order *models.Order, from ...models.OrderStatus) (bool, error) {
	order.UpdatedAt = time.Now()
	q := conn(ctx, r.db).Model(&models.Order{}).Where("id = ?", order.ID)
	if len(from) > 0 {
		statuses := make([]string, len(from))
		for i, s := range from {
			statuses[i] = string(s)
		}
		q = q.Where("order_status IN ?", statuses)
	}
	res := q.Updates(map[string]any{
		"order_status":        string(order.OrderStatus),
		"payment_status":      string(order.PaymentStatus),
		"tracking_number":     order.TrackingNumber,
		"cancellation_reason": order.CancellationReason,
		"delivered_at":        order.DeliveredAt,
		"cancelled_at":        order.CancelledAt,
		"updated_at":          order.UpdatedAt,
	})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update status of order %s: %w", order.ID, res.Error)
	}
	return res.RowsAffected == 1, nil
}
