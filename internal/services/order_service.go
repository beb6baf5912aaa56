package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/apperrors"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

const (
	defaultMyOrdersLimit  = 10
	defaultAllOrdersLimit = 20

	defaultCancellationReason = "Cancelled by user"
)

// IdempotencyStore deduplicates order placements that carry an idempotency key.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// OrderItemInput is one requested line of a new order.
type OrderItemInput struct {
	ProductID string
	Quantity  int
}

// CreateOrderInput is a validated order placement request.
type CreateOrderInput struct {
	Items           []OrderItemInput
	ShippingAddress models.ShippingAddress
	Notes           string
	IdempotencyKey  string
}

// UpdateStatusInput is an admin status change.
type UpdateStatusInput struct {
	Status             models.OrderStatus
	TrackingNumber     string
	CancellationReason string
}

// OrderPage is one page of orders.
type OrderPage struct {
	Orders     []models.Order    `json:"orders"`
	Pagination models.Pagination `json:"pagination"`
}

// AdminOrderPage adds per-status statistics over every order to an OrderPage.
type AdminOrderPage struct {
	OrderPage
	Stats []models.OrderStat `json:"stats"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	tx          repositories.Transactor
	publisher   events.Publisher
	idem        IdempotencyStore
	log         *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// OrderServiceOption configures optional collaborators of OrderService.
type OrderServiceOption func(*OrderService)

// WithPublisher publishes order events after each committed change.
func WithPublisher(p events.Publisher) OrderServiceOption {
	return func(s *OrderService) { s.publisher = p }
}

// WithIdempotencyStore enables Idempotency-Key handling on order placement.
func WithIdempotencyStore(store IdempotencyStore) OrderServiceOption {
	return func(s *OrderService) { s.idem = store }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) OrderServiceOption {
	return func(s *OrderService) { s.now = now }
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orderRepo repositories.OrderRepository,
	productRepo repositories.ProductRepository,
	tx repositories.Transactor,
	log *slog.Logger,
	opts ...OrderServiceOption,
) *OrderService {
	s := &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		tx:          tx,
		log:         log,
		tracer:      otel.Tracer("storefront/orders"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreateOrder validates the cart, reserves stock, prices the order and persists it.
// Everything happens in one transaction: a failure on any item leaves the stock of
// every item untouched. created is false when an earlier order was replayed for the
// same idempotency key.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (order *models.Order, created bool, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.Int("order.items", len(in.Items))))
	defer func() { endSpan(span, err) }()

	if err := validateCreateOrder(in); err != nil {
		orderRejections.WithLabelValues(apperrors.KindOf(err).String()).Inc()
		return nil, false, err
	}

	if in.IdempotencyKey != "" && s.idem != nil {
		replayed, recallErr := s.recallOrder(ctx, userID, in.IdempotencyKey)
		if recallErr != nil || replayed != nil {
			return replayed, false, recallErr
		}
		locked, lockErr := s.idem.TryLock(ctx, userID, in.IdempotencyKey)
		if lockErr != nil {
			return nil, false, apperrors.Internal(lockErr, "failed to claim idempotency key")
		}
		if !locked {
			return nil, false, apperrors.Conflict("A request with this idempotency key is already being processed")
		}
		defer func() {
			if err != nil {
				if relErr := s.idem.Release(context.WithoutCancel(ctx), userID, in.IdempotencyKey); relErr != nil {
					s.log.Warn("failed to release idempotency key", "userId", userID, "error", relErr)
				}
			}
		}()
	}

	var placed *models.Order
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		placed, err = s.placeOrder(ctx, userID, in)
		return err
	})
	if err != nil {
		orderRejections.WithLabelValues(apperrors.KindOf(err).String()).Inc()
		return nil, false, err
	}

	if in.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.Remember(ctx, userID, in.IdempotencyKey, placed.ID); err != nil {
			s.log.Warn("failed to remember idempotency key", "orderId", placed.ID, "error", err)
		}
	}

	order, err = s.orderRepo.GetByID(ctx, placed.ID)
	if err != nil {
		return nil, false, err
	}

	ordersPlaced.Inc()
	orderRevenue.Add(order.Total.InexactFloat64())
	span.SetAttributes(attribute.String("order.number", order.OrderNumber))
	s.log.Info("order placed", "orderNumber", order.OrderNumber, "userId", userID, "total", order.Total.String())
	s.publish(ctx, events.TypeOrderCreated, order)

	return order, true, nil
}

func (s *OrderService) recallOrder(ctx context.Context, userID, key string) (*models.Order, error) {
	orderID, found, err := s.idem.Recall(ctx, userID, key)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to look up idempotency key")
	}
	if !found {
		return nil, nil
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.log.Info("replayed order for idempotency key", "orderNumber", order.OrderNumber, "userId", userID)
	return order, nil
}

func validateCreateOrder(in CreateOrderInput) error {
	if len(in.Items) == 0 {
		return apperrors.InvalidRequest("No order items provided")
	}
	addr := in.ShippingAddress
	if strings.TrimSpace(addr.Name) == "" || strings.TrimSpace(addr.Phone) == "" || strings.TrimSpace(addr.Street) == "" {
		return apperrors.InvalidRequest("Invalid or incomplete shipping address")
	}
	for _, item := range in.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return apperrors.InvalidRequest("Missing product ID in order items")
		}
		if item.Quantity < 1 {
			return apperrors.InvalidRequest("Quantity for product %s must be at least 1", item.ProductID)
		}
	}
	return nil
}

// placeOrder must run inside a transaction.
func (s *OrderService) placeOrder(ctx context.Context, userID string, in CreateOrderInput) (*models.Order, error) {
	now := s.now()
	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(in.Items))

	for _, item := range in.Items {
		product, err := s.productRepo.GetByID(ctx, item.ProductID)
		if err != nil {
			if apperrors.Is(err, apperrors.KindNotFound) {
				return nil, apperrors.NotFound("Product %s not found or unavailable", item.ProductID)
			}
			return nil, err
		}
		if !product.IsActive {
			return nil, apperrors.NotFound("Product %s not found or unavailable", item.ProductID)
		}

		if err := s.reserve(ctx, product, item.Quantity); err != nil {
			return nil, err
		}

		line := models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  item.Quantity,
			Image:     product.PrimaryImageURL(),
		}
		subtotal = subtotal.Add(line.LineTotal())
		items = append(items, line)
	}

	pricing := PriceOrder(subtotal)
	order := &models.Order{
		UserID:            userID,
		Items:             items,
		ShippingAddress:   in.ShippingAddress,
		Subtotal:          pricing.Subtotal,
		ShippingCost:      pricing.ShippingCost,
		Tax:               pricing.Tax,
		Total:             pricing.Total,
		Notes:             in.Notes,
		OrderStatus:       models.OrderStatusPending,
		PaymentStatus:     models.PaymentStatusPending,
		EstimatedDelivery: now.Add(DeliveryWindow),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder returns an order to its owner or to an admin.
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, id string) (order *models.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer func() { endSpan(span, err) }()

	order, err = s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(actor.UserID) && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("Access denied")
	}
	return order, nil
}

// ListMyOrders returns the caller's orders, newest first.
func (s *OrderService) ListMyOrders(ctx context.Context, userID string, page models.PageRequest) (result OrderPage, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListMyOrders")
	defer func() { endSpan(span, err) }()

	page = page.Normalize(defaultMyOrdersLimit)
	orders, total, err := s.orderRepo.ListByUser(ctx, userID, page)
	if err != nil {
		return OrderPage{}, err
	}
	return OrderPage{Orders: orders, Pagination: models.NewPagination(page, total)}, nil
}

// ListAllOrders returns every order, optionally filtered by status, plus statistics per
// status computed over all orders regardless of the filter.
func (s *OrderService) ListAllOrders(ctx context.Context, status models.OrderStatus, page models.PageRequest) (result AdminOrderPage, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListAllOrders", trace.WithAttributes(attribute.String("order.status", string(status))))
	defer func() { endSpan(span, err) }()

	if status != "" && !status.Valid() {
		return AdminOrderPage{}, apperrors.InvalidRequest("Invalid order status: %s", status)
	}
	page = page.Normalize(defaultAllOrdersLimit)
	orders, total, err := s.orderRepo.List(ctx, status, page)
	if err != nil {
		return AdminOrderPage{}, err
	}
	stats, err := s.orderRepo.StatsByStatus(ctx)
	if err != nil {
		return AdminOrderPage{}, err
	}
	return AdminOrderPage{
		OrderPage: OrderPage{Orders: orders, Pagination: models.NewPagination(page, total)},
		Stats:     stats,
	}, nil
}

// UpdateStatus is the admin override: any known status may be set from any stage.
// Setting delivered completes payment; setting cancelled restores stock. An order that
// is already cancelled cannot be cancelled again, and moving an order out of cancelled
// reserves its stock again, so stock is restored at most once per reservation.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, in UpdateStatusInput) (order *models.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateStatus",
		trace.WithAttributes(attribute.String("order.id", id), attribute.String("order.status", string(in.Status))))
	defer func() { endSpan(span, err) }()

	if !in.Status.Valid() {
		return nil, apperrors.InvalidRequest("Invalid order status: %s", in.Status)
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.orderRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		now := s.now()
		previous := current.OrderStatus
		reopening := previous == models.OrderStatusCancelled && in.Status != models.OrderStatusCancelled

		var from []models.OrderStatus
		current.OrderStatus = in.Status
		if in.TrackingNumber != "" {
			current.TrackingNumber = in.TrackingNumber
		}
		switch in.Status {
		case models.OrderStatusDelivered:
			current.DeliveredAt = &now
			current.PaymentStatus = models.PaymentStatusCompleted
		case models.OrderStatusCancelled:
			current.CancelledAt = &now
			if in.CancellationReason != "" {
				current.CancellationReason = in.CancellationReason
			}
			from = []models.OrderStatus{
				models.OrderStatusPending, models.OrderStatusConfirmed, models.OrderStatusProcessing,
				models.OrderStatusShipped, models.OrderStatusDelivered,
			}
		}
		if reopening {
			current.CancelledAt = nil
			current.CancellationReason = ""
			from = []models.OrderStatus{models.OrderStatusCancelled}
		}

		updated, err := s.orderRepo.UpdateStatus(ctx, current, from...)
		if err != nil {
			return err
		}
		if !updated {
			if reopening {
				return apperrors.Conflict("Order status changed concurrently, please retry")
			}
			return apperrors.Conflict("Order is already cancelled")
		}

		switch {
		case in.Status == models.OrderStatusCancelled:
			if err := s.restoreStock(ctx, current); err != nil {
				return err
			}
		case reopening:
			if err := s.reserveStock(ctx, current); err != nil {
				return err
			}
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	orderTransitions.WithLabelValues(string(in.Status)).Inc()
	s.log.Info("order status updated", "orderNumber", order.OrderNumber, "status", order.OrderStatus)
	if in.Status == models.OrderStatusCancelled {
		s.publish(ctx, events.TypeOrderCancelled, order)
	} else {
		s.publish(ctx, events.TypeOrderStatusChanged, order)
	}
	return order, nil
}

// CancelOrder lets the owner cancel an order that is still pending or confirmed.
func (s *OrderService) CancelOrder(ctx context.Context, userID, id, reason string) (order *models.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CancelOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer func() { endSpan(span, err) }()

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.orderRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !current.OwnedBy(userID) {
			return apperrors.Forbidden("Access denied")
		}
		if !current.OrderStatus.Cancellable() {
			return apperrors.Conflict("Order cannot be cancelled at this stage")
		}

		now := s.now()
		current.OrderStatus = models.OrderStatusCancelled
		current.CancelledAt = &now
		current.CancellationReason = strings.TrimSpace(reason)
		if current.CancellationReason == "" {
			current.CancellationReason = defaultCancellationReason
		}

		updated, err := s.orderRepo.UpdateStatus(ctx, current, models.OrderStatusPending, models.OrderStatusConfirmed)
		if err != nil {
			return err
		}
		if !updated {
			return apperrors.Conflict("Order cannot be cancelled at this stage")
		}
		if err := s.restoreStock(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	orderTransitions.WithLabelValues(string(models.OrderStatusCancelled)).Inc()
	s.log.Info("order cancelled by user", "orderNumber", order.OrderNumber, "userId", userID)
	s.publish(ctx, events.TypeOrderCancelled, order)
	return order, nil
}

// reserve takes qty units of product, failing with Conflict when too few are left.
func (s *OrderService) reserve(ctx context.Context, product *models.Product, qty int) error {
	reserved, err := s.productRepo.DecrementStock(ctx, product.ID, qty)
	if err != nil {
		return err
	}
	if !reserved {
		available := product.Stock
		if current, err := s.productRepo.GetByID(ctx, product.ID); err == nil {
			available = current.Stock
		}
		return apperrors.Conflict("Insufficient stock for %s. Available: %d", product.Name, available)
	}
	return nil
}

// reserveStock takes every item's quantity again for an order leaving cancelled.
func (s *OrderService) reserveStock(ctx context.Context, order *models.Order) error {
	for _, item := range order.Items {
		product, err := s.productRepo.GetByID(ctx, item.ProductID)
		if err != nil && !apperrors.Is(err, apperrors.KindNotFound) {
			return err
		}
		if product == nil || !product.IsActive {
			return apperrors.Conflict("Product %s is no longer available", item.Name)
		}
		if err := s.reserve(ctx, product, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// restoreStock returns every item's quantity to its product. Products that no longer
// exist are skipped.
func (s *OrderService) restoreStock(ctx context.Context, order *models.Order) error {
	for _, item := range order.Items {
		found, err := s.productRepo.IncrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		if !found {
			s.log.Warn("product missing while restoring stock", "orderNumber", order.OrderNumber, "productId", item.ProductID)
		}
	}
	return nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewOrderEvent(eventType, order)); err != nil {
		s.log.Warn("failed to publish order event", "type", eventType, "orderNumber", order.OrderNumber, "error", err)
	}
}
