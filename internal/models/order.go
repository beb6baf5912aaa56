package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is the stage of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Cancellable reports whether a customer may still cancel an order in this stage.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// PaymentStatus tracks payment for an order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// ShippingAddress is captured on the order at placement time.
type ShippingAddress struct {
	Name    string `json:"name" gorm:"type:varchar(100)"`
	Phone   string `json:"phone" gorm:"type:varchar(30)"`
	Street  string `json:"street" gorm:"type:varchar(200)"`
	City    string `json:"city" gorm:"type:varchar(100)"`
	State   string `json:"state" gorm:"type:varchar(100)"`
	ZipCode string `json:"zipCode" gorm:"type:varchar(20)"`
	Country string `json:"country" gorm:"type:varchar(100)"`
}

// OrderItem represents a single item within an order.
// Name, Price and Image are a snapshot of the product when the order was placed.
type OrderItem struct {
	ID        uint            `json:"-" gorm:"primaryKey"`
	OrderID   string          `json:"-" gorm:"type:varchar(36);index"`
	ProductID string          `json:"product" gorm:"type:varchar(36);index;not null"`
	Name      string          `json:"name" gorm:"type:varchar(100)"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Image     string          `json:"image" gorm:"type:varchar(500)"`
}

// LineTotal is price × quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a customer order.
type Order struct {
	ID                 string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderNumber        string          `json:"orderNumber" gorm:"type:varchar(32);uniqueIndex;not null"`
	UserID             string          `json:"userId" gorm:"type:varchar(36);index;not null"`
	User               *User           `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Items              []OrderItem     `json:"items" gorm:"constraint:OnDelete:CASCADE"`
	ShippingAddress    ShippingAddress `json:"shippingAddress" gorm:"embedded;embeddedPrefix:shipping_"`
	Subtotal           decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null"`
	ShippingCost       decimal.Decimal `json:"shippingCost" gorm:"type:numeric(12,2);not null"`
	Tax                decimal.Decimal `json:"tax" gorm:"type:numeric(12,2);not null"`
	Total              decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null"`
	Notes              string          `json:"notes,omitempty" gorm:"type:text"`
	OrderStatus        OrderStatus     `json:"orderStatus" gorm:"type:varchar(20);index;not null"`
	PaymentStatus      PaymentStatus   `json:"paymentStatus" gorm:"type:varchar(20);not null"`
	TrackingNumber     string          `json:"trackingNumber,omitempty" gorm:"type:varchar(100)"`
	CancellationReason string          `json:"cancellationReason,omitempty" gorm:"type:varchar(500)"`
	EstimatedDelivery  time.Time       `json:"estimatedDelivery"`
	DeliveredAt        *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time       `json:"createdAt" gorm:"index"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// BeforeCreate assigns the ID and the order number. The order number is set once here
// and never rewritten afterwards.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.OrderNumber == "" {
		created := o.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		o.OrderNumber = NewOrderNumber(created, o.ID)
	}
	return nil
}

const orderNumberSuffixLen = 12

// NewOrderNumber formats a human readable order number such as ORD-20261018-3F2A9C1B04E7.
// The suffix carries 48 random bits of the order ID.
func NewOrderNumber(at time.Time, id string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(suffix) > orderNumberSuffixLen {
		suffix = suffix[:orderNumberSuffixLen]
	}
	return fmt.Sprintf("ORD-%s-%s", at.UTC().Format("20060102"), suffix)
}

// OwnedBy reports whether userID placed the order.
func (o *Order) OwnedBy(userID string) bool {
	return o.UserID == userID
}

// OrderStat aggregates orders of one status.
type OrderStat struct {
	Status      OrderStatus     `json:"status"`
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}
