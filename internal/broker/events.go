package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/domain"

	"github.com/google/uuid"
)

const (
	EventTypeOrderCreated       = "order.created"
	EventTypeOrderStatusChanged = "order.status_changed"
	EventTypeOrderCancelled     = "order.cancelled"
)

// BaseEvent carries the envelope fields shared by all order events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEvent is the payload published for order lifecycle changes.
type OrderEvent struct {
	BaseEvent
	OrderID    uuid.UUID          `json:"order_id"`
	UserID     uuid.UUID          `json:"user_id"`
	Status     domain.OrderStatus `json:"status"`
	TotalPrice float64            `json:"total_price"`
}

// EventPublisher publishes order lifecycle events. All publishes are
// best-effort: callers log failures and never roll back the order.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *domain.Order) error
	PublishOrderCancelled(ctx context.Context, order *domain.Order) error
}

type eventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates an EventPublisher over a Kafka producer.
func NewEventPublisher(producer *Producer) EventPublisher {
	return &eventPublisher{producer: producer}
}

func (ep *eventPublisher) publish(ctx context.Context, eventType string, order *domain.Order) error {
	event := OrderEvent{
		BaseEvent: BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		TotalPrice: order.TotalPrice,
	}

	key := fmt.Sprintf("order-%s", order.ID)
	return ep.producer.Publish(ctx, key, event)
}

func (ep *eventPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	return ep.publish(ctx, EventTypeOrderCreated, order)
}

func (ep *eventPublisher) PublishOrderStatusChanged(ctx context.Context, order *domain.Order) error {
	return ep.publish(ctx, EventTypeOrderStatusChanged, order)
}

func (ep *eventPublisher) PublishOrderCancelled(ctx context.Context, order *domain.Order) error {
	return ep.publish(ctx, EventTypeOrderCancelled, order)
}

// NopPublisher is used when eventing is disabled in config.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(context.Context, *domain.Order) error       { return nil }
func (NopPublisher) PublishOrderStatusChanged(context.Context, *domain.Order) error { return nil }
func (NopPublisher) PublishOrderCancelled(context.Context, *domain.Order) error     { return nil }
