package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	// OrderStatusRefunded is declared but has no entry transition yet;
	// it is reserved for a future refund operation.
	OrderStatusRefunded OrderStatus = "refunded"
)

// orderTransitions is the set of legal forward edges of the order
// state machine. Cancellation is not listed here: it is only reachable
// through CancelOrder, which has its own ownership and status checks.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransition reports whether an admin status update from -> to is legal.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in this status may still be
// cancelled by its owner or an admin.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// PaymentMethod is recorded on the order; there is no gateway integration.
type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "credit_card"
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodPayPal, PaymentMethodCashOnDelivery:
		return true
	}
	return false
}

// ShippingAddress is embedded in the order record.
type ShippingAddress struct {
	FullName   string `json:"full_name" db:"ship_full_name"`
	Street     string `json:"street" db:"ship_street"`
	City       string `json:"city" db:"ship_city"`
	PostalCode string `json:"postal_code" db:"ship_postal_code"`
	Country    string `json:"country" db:"ship_country"`
}

// OrderItem is a line captured at checkout. Name, image and unit price
// are snapshots; later product edits never touch them.
type OrderItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OrderID   uuid.UUID `json:"order_id" db:"order_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Name      string    `json:"name" db:"name"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UnitPrice float64   `json:"unit_price" db:"unit_price"`
}

// Order is created at checkout and never deleted. Monetary fields are
// computed once at creation and frozen.
type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method" db:"payment_method"`
	Status          OrderStatus     `json:"status" db:"status"`
	ItemsSubtotal   float64         `json:"items_subtotal" db:"items_subtotal"`
	TaxPrice        float64         `json:"tax_price" db:"tax_price"`
	ShippingPrice   float64         `json:"shipping_price" db:"shipping_price"`
	TotalPrice      float64         `json:"total_price" db:"total_price"`
	TrackingNumber  string          `json:"tracking_number,omitempty" db:"tracking_number"`
	IsDelivered     bool            `json:"is_delivered" db:"is_delivered"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty" db:"delivered_at"`

	// Idempotent-notification bookkeeping.
	ConfirmationEmailSent bool `json:"confirmation_email_sent" db:"confirmation_email_sent"`
	ShippedEmailSent      bool `json:"shipped_email_sent" db:"shipped_email_sent"`
	DeliveredEmailSent    bool `json:"delivered_email_sent" db:"delivered_email_sent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
