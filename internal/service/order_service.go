package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/broker"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/domain"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/metrics"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/notification"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pricing policy. Applied once at checkout; totals are frozen on the
// order afterwards.
const (
	TaxRate               = 0.08
	FreeShippingThreshold = 500.0
	StandardShippingPrice = 50.0
)

// notificationTimeout bounds the fire-and-forget side effects, which
// run detached from the request context.
const notificationTimeout = 30 * time.Second

// OrderItemInput is one requested line of a new order.
type OrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderInput carries everything checkout needs besides the user.
type CreateOrderInput struct {
	Items           []OrderItemInput
	ShippingAddress domain.ShippingAddress
	PaymentMethod   domain.PaymentMethod
}

// OrderService defines the interface for order business logic
type OrderService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*domain.Order, error)
	ListOrdersForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Order, int, error)
	ListAllOrders(ctx context.Context, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus domain.OrderStatus, trackingNumber string) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*domain.Order, error)
	ResendOrderNotification(ctx context.Context, orderID uuid.UUID) error
}

type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	mailer      notification.Mailer
	receipts    notification.ReceiptRenderer
	events      broker.EventPublisher
	logger      *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	mailer notification.Mailer,
	receipts notification.ReceiptRenderer,
	events broker.EventPublisher,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		mailer:      mailer,
		receipts:    receipts,
		events:      events,
		logger:      logger,
	}
}

// CreateOrder validates every line, snapshots prices, and persists the
// order with all stock reservations in one transaction. Either every
// line's reservation succeeds and the order exists, or nothing was
// touched.
func (s *orderService) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*domain.Order, error) {
	start := time.Now()
	defer func() {
		metrics.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", domain.ErrValidation)
	}
	if !input.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrValidation, input.PaymentMethod)
	}

	orderID := uuid.New()
	now := time.Now()

	var subtotal float64
	orderItems := make([]domain.OrderItem, 0, len(input.Items))
	for _, line := range input.Items {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidation)
		}

		product, err := s.productRepo.FindByID(ctx, line.ProductID)
		if err != nil {
			metrics.OrdersFailedTotal.WithLabelValues("product_not_found").Inc()
			return nil, err
		}

		// Fast-path check; the authoritative check is the conditional
		// decrement inside the checkout transaction.
		if line.Quantity > product.Stock {
			metrics.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			metrics.StockConflictsTotal.Inc()
			return nil, fmt.Errorf("product %s: %w", product.ID, domain.ErrInsufficientStock)
		}

		unitPrice := product.EffectivePrice()
		subtotal += unitPrice * float64(line.Quantity)

		orderItems = append(orderItems, domain.OrderItem{
			ID:        uuid.New(),
			OrderID:   orderID,
			ProductID: product.ID,
			Name:      product.Name,
			ImageURL:  product.ImageURL,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
		})
	}

	taxPrice := subtotal * TaxRate
	shippingPrice := StandardShippingPrice
	if subtotal > FreeShippingThreshold {
		shippingPrice = 0
	}

	order := &domain.Order{
		ID:              orderID,
		UserID:          userID,
		Items:           orderItems,
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   input.PaymentMethod,
		Status:          domain.OrderStatusPending,
		ItemsSubtotal:   subtotal,
		TaxPrice:        taxPrice,
		ShippingPrice:   shippingPrice,
		TotalPrice:      subtotal + taxPrice + shippingPrice,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			metrics.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			metrics.StockConflictsTotal.Inc()
		} else {
			metrics.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		}
		return nil, err
	}

	metrics.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Float64("total_price", order.TotalPrice),
	)

	// The order is durable; everything past this point is best effort.
	go s.sendConfirmation(order)
	go s.publishEvent(func(ctx context.Context) error {
		return s.events.PublishOrderCreated(ctx, order)
	})

	return order, nil
}

// GetOrder retrieves an order; only its owner or an admin may read it.
func (s *orderService) GetOrder(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.UserID != actorID && actorRole != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: not the order owner", domain.ErrUnauthorized)
	}

	return order, nil
}

// ListOrdersForUser retrieves a user's own orders.
func (s *orderService) ListOrdersForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Order, int, error) {
	return s.orderRepo.ListByUserID(ctx, userID, page, pageSize)
}

// ListAllOrders retrieves orders across all users (admin view).
func (s *orderService) ListAllOrders(ctx context.Context, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error) {
	if status != nil && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown order status %q", domain.ErrValidation, *status)
	}
	return s.orderRepo.List(ctx, status, page, pageSize)
}

// UpdateOrderStatus applies an admin status transition. The repository
// update is conditioned on the current status, so a concurrent
// transition on the same order cannot be silently overwritten.
func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus domain.OrderStatus, trackingNumber string) (*domain.Order, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", domain.ErrValidation, newStatus)
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransition(newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStateTransition, order.Status, newStatus)
	}

	var deliveredAt *time.Time
	if newStatus == domain.OrderStatusDelivered {
		now := time.Now()
		deliveredAt = &now
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, order.Status, newStatus, trackingNumber, deliveredAt); err != nil {
		return nil, err
	}

	updated, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID.String()),
		zap.String("from", string(order.Status)),
		zap.String("to", string(newStatus)),
	)

	go s.sendStatusUpdate(updated)
	go s.publishEvent(func(ctx context.Context) error {
		return s.events.PublishOrderStatusChanged(ctx, updated)
	})

	return updated, nil
}

// CancelOrder cancels a pending or processing order on behalf of its
// owner or an admin, restoring stock for every line.
func (s *orderService) CancelOrder(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.UserID != actorID && actorRole != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: not the order owner", domain.ErrUnauthorized)
	}

	if !order.Status.Cancellable() {
		return nil, fmt.Errorf("%w: order is %s", domain.ErrInvalidStateTransition, order.Status)
	}

	if err := s.orderRepo.Cancel(ctx, orderID); err != nil {
		return nil, err
	}

	metrics.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled",
		zap.String("order_id", orderID.String()),
		zap.String("actor_id", actorID.String()),
	)

	cancelled, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	go s.publishEvent(func(ctx context.Context) error {
		return s.events.PublishOrderCancelled(ctx, cancelled)
	})

	return cancelled, nil
}

// ResendOrderNotification re-sends the confirmation mail for an order.
// Unlike the checkout-time send this is synchronous: the operator asked
// for it, so a collaborator failure is surfaced.
func (s *orderService) ResendOrderNotification(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	user, err := s.userRepo.FindByID(ctx, order.UserID)
	if err != nil {
		return err
	}

	if order.ConfirmationEmailSent {
		s.logger.Info("Resending an already-recorded confirmation",
			zap.String("order_id", order.ID.String()))
	}

	if err := s.mailer.SendOrderConfirmation(ctx, order, user); err != nil {
		metrics.NotificationFailuresTotal.WithLabelValues("confirmation_resend").Inc()
		if errors.Is(err, domain.ErrExternalService) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}

	if !order.ConfirmationEmailSent {
		if err := s.orderRepo.MarkEmailSent(ctx, order.ID, repository.EmailFlagConfirmation); err != nil {
			s.logger.Error("Failed to record confirmation mail",
				zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}

	return nil
}

// sendConfirmation delivers the order-created mail detached from the
// request. Failures are logged and counted, never surfaced.
func (s *orderService) sendConfirmation(order *domain.Order) {
	if order.ConfirmationEmailSent {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
	defer cancel()

	user, err := s.userRepo.FindByID(ctx, order.UserID)
	if err != nil {
		s.logger.Error("Failed to resolve user for confirmation mail",
			zap.String("order_id", order.ID.String()), zap.Error(err))
		return
	}

	if err := s.mailer.SendOrderConfirmation(ctx, order, user); err != nil {
		metrics.NotificationFailuresTotal.WithLabelValues("confirmation").Inc()
		s.logger.Error("Failed to send order confirmation",
			zap.String("order_id", order.ID.String()), zap.Error(err))
		return
	}

	if err := s.orderRepo.MarkEmailSent(ctx, order.ID, repository.EmailFlagConfirmation); err != nil {
		s.logger.Error("Failed to record confirmation mail",
			zap.String("order_id", order.ID.String()), zap.Error(err))
	}
}

// sendStatusUpdate renders the PDF receipt and mails the status change.
// A rendering failure drops the attachment, not the mail.
func (s *orderService) sendStatusUpdate(order *domain.Order) {
	// Statuses without a bookkeeping flag still get a mail; flagged
	// ones are sent at most once.
	var flag repository.EmailFlag
	switch order.Status {
	case domain.OrderStatusShipped:
		if order.ShippedEmailSent {
			return
		}
		flag = repository.EmailFlagShipped
	case domain.OrderStatusDelivered:
		if order.DeliveredEmailSent {
			return
		}
		flag = repository.EmailFlagDelivered
	}

	ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
	defer cancel()

	user, err := s.userRepo.FindByID(ctx, order.UserID)
	if err != nil {
		s.logger.Error("Failed to resolve user for status mail",
			zap.String("order_id", order.ID.String()), zap.Error(err))
		return
	}

	var receipt []byte
	if pdf, err := s.receipts.Render(order, user); err != nil {
		metrics.NotificationFailuresTotal.WithLabelValues("receipt").Inc()
		s.logger.Error("Failed to render receipt",
			zap.String("order_id", order.ID.String()), zap.Error(err))
	} else {
		receipt = pdf
	}

	if err := s.mailer.SendOrderStatusUpdate(ctx, order, user, receipt); err != nil {
		metrics.NotificationFailuresTotal.WithLabelValues("status_update").Inc()
		s.logger.Error("Failed to send status mail",
			zap.String("order_id", order.ID.String()), zap.Error(err))
		return
	}

	if flag == "" {
		return
	}
	if err := s.orderRepo.MarkEmailSent(ctx, order.ID, flag); err != nil {
		s.logger.Error("Failed to record status mail",
			zap.String("order_id", order.ID.String()), zap.Error(err))
	}
}

func (s *orderService) publishEvent(publish func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
	defer cancel()

	if err := publish(ctx); err != nil {
		metrics.NotificationFailuresTotal.WithLabelValues("event").Inc()
		s.logger.Error("Failed to publish order event", zap.Error(err))
	}
}
