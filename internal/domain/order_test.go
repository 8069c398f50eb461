package domain

import "testing"

func TestOrderStatusCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"pending to processing", OrderStatusPending, OrderStatusProcessing, true},
		{"processing to shipped", OrderStatusProcessing, OrderStatusShipped, true},
		{"shipped to delivered", OrderStatusShipped, OrderStatusDelivered, true},
		{"pending cannot skip to shipped", OrderStatusPending, OrderStatusShipped, false},
		{"pending cannot skip to delivered", OrderStatusPending, OrderStatusDelivered, false},
		{"shipped cannot go back to processing", OrderStatusShipped, OrderStatusProcessing, false},
		{"delivered is terminal", OrderStatusDelivered, OrderStatusShipped, false},
		{"cancelled is terminal", OrderStatusCancelled, OrderStatusProcessing, false},
		{"cancellation is not a status update", OrderStatusPending, OrderStatusCancelled, false},
		{"refunded is not reachable via status update", OrderStatusDelivered, OrderStatusRefunded, false},
		{"no self transition", OrderStatusProcessing, OrderStatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("%s.CanTransition(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestOrderStatusCancellable(t *testing.T) {
	cancellable := map[OrderStatus]bool{
		OrderStatusPending:    true,
		OrderStatusProcessing: true,
		OrderStatusShipped:    false,
		OrderStatusDelivered:  false,
		OrderStatusCancelled:  false,
		OrderStatusRefunded:   false,
	}

	for status, want := range cancellable {
		if got := status.Cancellable(); got != want {
			t.Errorf("%s.Cancellable() = %v, want %v", status, got, want)
		}
	}
}

func TestOrderStatusValid(t *testing.T) {
	for _, status := range []OrderStatus{
		OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded,
	} {
		if !status.Valid() {
			t.Errorf("%s.Valid() = false, want true", status)
		}
	}

	for _, status := range []OrderStatus{"", "unknown", "Pending", "returned"} {
		if status.Valid() {
			t.Errorf("%q.Valid() = true, want false", status)
		}
	}
}

func TestPaymentMethodValid(t *testing.T) {
	for _, method := range []PaymentMethod{
		PaymentMethodCreditCard, PaymentMethodPayPal, PaymentMethodCashOnDelivery,
	} {
		if !method.Valid() {
			t.Errorf("%s.Valid() = false, want true", method)
		}
	}

	for _, method := range []PaymentMethod{"", "bitcoin", "Credit_Card"} {
		if method.Valid() {
			t.Errorf("%q.Valid() = true, want false", method)
		}
	}
}
