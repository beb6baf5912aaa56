// Package events publishes and consumes order lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

// Event types, also used as routing keys.
const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypeOrderCancelled     = "order.cancelled"
)

// EventItem is the part of an order item consumers care about.
type EventItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// OrderEvent describes a change to an order.
type OrderEvent struct {
	Type          string               `json:"type"`
	OrderID       string               `json:"orderId"`
	OrderNumber   string               `json:"orderNumber"`
	UserID        string               `json:"userId"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	Total         decimal.Decimal      `json:"total"`
	Items         []EventItem          `json:"items"`
	Reason        string               `json:"reason,omitempty"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// NewOrderEvent snapshots order into an event of the given type.
func NewOrderEvent(eventType string, order *models.Order) OrderEvent {
	items := make([]EventItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, EventItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        order.OrderStatus,
		PaymentStatus: order.PaymentStatus,
		Total:         order.Total,
		Items:         items,
		Reason:        order.CancellationReason,
		OccurredAt:    time.Now().UTC(),
	}
}

// Publisher sends order events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// Handler processes one consumed event.
type Handler func(ctx context.Context, event OrderEvent) error
