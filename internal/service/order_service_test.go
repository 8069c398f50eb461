package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

type orderServiceFixture struct {
	service   OrderService
	orders    *mockOrderRepository
	products  *mockProductRepository
	users     *mockUserRepository
	carts     *mockCartRepository
	mailer    *mockMailer
	publisher *mockPublisher
}

func newOrderServiceFixture() *orderServiceFixture {
	products := newMockProductRepository()
	carts := newMockCartRepository()
	orders := newMockOrderRepository(products, carts)
	users := newMockUserRepository()
	mailer := &mockMailer{}
	publisher := &mockPublisher{}

	return &orderServiceFixture{
		service:   NewOrderService(orders, products, users, mailer, stubReceiptRenderer{}, publisher, zap.NewNop()),
		orders:    orders,
		products:  products,
		users:     users,
		carts:     carts,
		mailer:    mailer,
		publisher: publisher,
	}
}

func (f *orderServiceFixture) addUser() *domain.User {
	user := &domain.User{
		ID:        uuid.New(),
		Email:     uuid.New().String() + "@example.com",
		FirstName: "Test",
		LastName:  "Buyer",
		Role:      domain.RoleUser,
	}
	f.users.Create(context.Background(), user)
	return user
}

func (f *orderServiceFixture) addProduct(price float64, stock int) *domain.Product {
	product := &domain.Product{
		ID:       uuid.New(),
		Name:     "Product " + uuid.New().String(),
		Price:    price,
		Stock:    stock,
		IsActive: true,
	}
	f.products.add(product)
	return product
}

func testAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName:   "Test Buyer",
		Street:     "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
	}
}

func TestProperty_CheckoutPricingInvariant(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("total = subtotal + 8% tax + shipping, free above 500", prop.ForAll(
		func(price float64, quantity int) bool {
			f := newOrderServiceFixture()
			user := f.addUser()
			product := f.addProduct(price, quantity)

			order, err := f.service.CreateOrder(context.Background(), user.ID, CreateOrderInput{
				Items:           []OrderItemInput{{ProductID: product.ID, Quantity: quantity}},
				ShippingAddress: testAddress(),
				PaymentMethod:   domain.PaymentMethodCreditCard,
			})
			if err != nil {
				t.Logf("FAIL: CreateOrder failed: %v", err)
				return false
			}

			wantSubtotal := price * float64(quantity)
			if math.Abs(order.ItemsSubtotal-wantSubtotal) > 1e-9 {
				t.Logf("FAIL: subtotal %f, want %f", order.ItemsSubtotal, wantSubtotal)
				return false
			}
			if math.Abs(order.TaxPrice-wantSubtotal*TaxRate) > 1e-9 {
				t.Logf("FAIL: tax %f for subtotal %f", order.TaxPrice, wantSubtotal)
				return false
			}

			wantShipping := StandardShippingPrice
			if wantSubtotal > FreeShippingThreshold {
				wantShipping = 0
			}
			if order.ShippingPrice != wantShipping {
				t.Logf("FAIL: shipping %f, want %f", order.ShippingPrice, wantShipping)
				return false
			}

			wantTotal := order.ItemsSubtotal + order.TaxPrice + order.ShippingPrice
			if math.Abs(order.TotalPrice-wantTotal) > 1e-9 {
				t.Logf("FAIL: total %f, want %f", order.TotalPrice, wantTotal)
				return false
			}
			return true
		},
		gen.Float64Range(0.01, 2000),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCreateOrder_FreeShippingBoundary(t *testing.T) {
	f := newOrderServiceFixture()
	user := f.addUser()

	// Exactly at the threshold still pays shipping
	at := f.addProduct(FreeShippingThreshold, 1)
	order, err := f.service.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: at.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   domain.PaymentMethodPayPal,
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.ShippingPrice != StandardShippingPrice {
		t.Errorf("subtotal at threshold must pay shipping, got %f", order.ShippingPrice)
	}

	above := f.addProduct(FreeShippingThreshold+0.01, 1)
	order, err = f.service.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: above.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   domain.PaymentMethodPayPal,
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.ShippingPrice != 0 {
		t.Errorf("subtotal above threshold must ship free, got %f", order.ShippingPrice)
	}
}

func TestCreateOrder_SnapshotsEffectivePrice(t *testing.T) {
	f := newOrderServiceFixture()
	user := f.addUser()

	salePrice := 80.0
	product := f.addProduct(100, 10)
	product.SalePrice = &salePrice
	f.products.add(product)

	order, err := f.service.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 2}},
		ShippingAddress: testAddress(),
		PaymentMethod:   domain.PaymentMethodCreditCard,
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.Items[0].UnitPrice != salePrice {
		t.Fatalf("expected sale price snapshot %f, got %f", salePrice, order.Items[0].UnitPrice)
	}

	// Later catalog edits must not reach the frozen order
	product.Price = 500
	product.SalePrice = nil
	f.products.Update(context.Background(), product)

	found, err := f.service.GetOrder(context.Background(), order.ID, user.ID, domain.RoleUser)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if found.Items[0].UnitPrice != salePrice {
		t.Errorf("order price changed after catalog edit: %f", found.Items[0].UnitPrice)
	}
	if found.TotalPrice != order.TotalPrice {
		t.Errorf("order total changed after catalog edit: %f", found.TotalPrice)
	}
}

func TestCreateOrder_AllOrNothing(t *testing.T) {
	f := newOrderServiceFixture()
	user := f.addUser()
	productA := f.addProduct(100, 10)
	productB := f.addProduct(40, 1)

	_, err := f.service.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items: []OrderItemInput{
			{ProductID: productA.ID, Quantity: 2},
			{ProductID: productB.ID, Quantity: 5},
		},
		ShippingAddress: testAddress(),
		PaymentMethod:   domain.PaymentMethodCreditCard,
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if got := f.products.stock(productA.ID); got != 10 {
		t.Errorf("product A stock must be untouched, got %d", got)
	}
	if got := f.products.stock(productB.ID); got != 1 {
		t.Errorf("product B stock must be untouched, got %d", got)
	}

	orders, _, _ := f.service.ListOrdersForUser(context.Background(), user.ID, 1, 20)
	if len(orders) != 0 {
		t.Errorf("expected no orders after failed checkout, got %d", len(orders))
	}
}

func TestCreateOrder_DuplicateLinesCountAgainstStockCumulatively(t *testing.T) {
	f := newOrderServiceFixture()
	user := f.addUser()
	product := f.addProduct(100, 5)

	// Each line passes the per-line check on its own; together they
	// overdraw the product, so the reservation must reject the order.
	_, err := f.service.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items: []OrderItemInput{
			{ProductID: product.ID, Quantity: 3},
			{ProductID: product.ID, Quantity: 3},
		},
		ShippingAddress: testAddress(),
		PaymentMethod:   domain.PaymentMethodCreditCard,
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if got := f.products.stock(product.ID); got != 5 {
		t.Errorf("stock must be untouched after rejected checkout, got %d", got)
	}

	// Duplicate lines that fit are an ordinary order.
	order, err := f.service.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items: []OrderItemInput{
			{ProductID: product.ID, Quantity: 2},
			{ProductID: product.ID, Quantity: 3},
		},
		ShippingAddress: testAddress(),
		PaymentMethod:   domain.PaymentMethodCreditCard,
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.ItemsSubtotal != 500 {
		t.Errorf("subtotal = %f, want 500", order.ItemsSubtotal)
	}
	if got := f.products.stock(product.ID); got != 0 {
		t.Errorf("stock = %d, want 0", got)
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newOrderServiceFixture()
	user := f.addUser()
	product := f.addProduct(100, 10)

	cases := []struct {
		name  string
		input CreateOrderInput
	}{
		{
			name: "empty items",
			input: CreateOrderInput{
				ShippingAddress: testAddress(),
				PaymentMethod:   domain.PaymentMethodCreditCard,
			},
		},
		{
			name: "zero quantity",
			input: CreateOrderInput{
				Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 0}},
				ShippingAddress: testAddress(),
				PaymentMethod:   domain.PaymentMethodCreditCard,
			},
		},
		{
			name: "unknown payment method",
			input: CreateOrderInput{
				Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
				ShippingAddress: testAddress(),
				PaymentMethod:   "barter",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.CreateOrder(context.Background(), user.ID, tc.input)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

// Two buyers race for the last unit; exactly one order may exist.
func TestCreateOrder_ConcurrentLastUnit(t *testing.T) {
	f := newOrderServiceFixture()
	product := f.addProduct(100, 1)

	const buyers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := f.addUser()
			_, err := f.service.CreateOrder(context.Background(), user.ID, CreateOrderInput{
				Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
				ShippingAddress: testAddress(),
				PaymentMethod:   domain.PaymentMethodCreditCard,
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 successful checkout, got %d", successes)
	}
	if got := f.products.stock(product.ID); got != 0 {
		t.Errorf("expected final stock 0, got %d", got)
	}
}

func TestGetOrder_OwnerOnly(t *testing.T) {
	f := newOrderServiceFixture()
	owner := f.addUser()
	product := f.addProduct(100, 10)

	order, err := f.service.CreateOrder(context.Background(), owner.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   domain.PaymentMethodCreditCard,
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if _, err := f.service.GetOrder(context.Background(), order.ID, owner.ID, domain.RoleUser); err != nil {
		t.Errorf("owner must read their order: %v", err)
	}

	stranger := f.addUser()
	if _, err := f.service.GetOrder(context.Background(), order.ID, stranger.ID, domain.RoleUser); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for stranger, got %v", err)
	}

	if _, err := f.service.GetOrder(context.Background(), order.ID, stranger.ID, domain.RoleAdmin); err != nil {
		t.Errorf("admin must read any order: %v", err)
	}
}

func TestUpdateOrderStatus_Transitions(t *testing.T) {
	f := newOrderServiceFixture()
	user := f.addUser()
	product := f.addProduct(100, 10)

	order, err := f.service.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   domain.PaymentMethodCreditCard,
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// Skipping a step is rejected
	_, err = f.service.UpdateOrderStatus(context.Background(), order.ID, domain.OrderStatusDelivered, "")
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}

	updated, err := f.service.UpdateOrderStatus(context.Background(), order.ID, domain.OrderStatusProcessing, "")
	if err != nil {
		t.Fatalf("UpdateOrderStatus failed: %v", err)
	}
	if updated.Status != domain.OrderStatusProcessing {
		t.Errorf("expected processing, got %s", updated.Status)
	}

	updated, err = f.service.UpdateOrderStatus(context.Background(), order.ID, domain.OrderStatusShipped, "TRACK-9")
	if err != nil {
		t.Fatalf("UpdateOrderStatus failed: %v", err)
	}
	if updated.TrackingNumber != "TRACK-9" {
		t.Errorf("expected tracking number recorded, got %q", updated.TrackingNumber)
	}

	updated, err = f.service.UpdateOrderStatus(context.Background(), order.ID, domain.OrderStatusDelivered, "")
	if err != nil {
		t.Fatalf("UpdateOrderStatus failed: %v", err)
	}
	if !updated.IsDelivered || updated.DeliveredAt == nil {
		t.Error("delivered bookkeeping not set")
	}

	// Backwards moves are rejected
	_, err = f.service.UpdateOrderStatus(context.Background(), order.ID, domain.OrderStatusPending, "")
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}

	// Unknown status is a validation error
	_, err = f.service.UpdateOrderStatus(context.Background(), order.ID, "teleported", "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCancelOrder(t *testing.T) {
	t.Run("owner cancel restores stock", func(t *testing.T) {
		f := newOrderServiceFixture()
		user := f.addUser()
		product := f.addProduct(100, 10)

		order, err := f.service.CreateOrder(context.Background(), user.ID, CreateOrderInput{
			Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 4}},
			ShippingAddress: testAddress(),
			PaymentMethod:   domain.PaymentMethodCreditCard,
		})
		if err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
		if got := f.products.stock(product.ID); got != 6 {
			t.Fatalf("expected stock 6 after checkout, got %d", got)
		}

		cancelled, err := f.service.CancelOrder(context.Background(), order.ID, user.ID, domain.RoleUser)
		if err != nil {
			t.Fatalf("CancelOrder failed: %v", err)
		}
		if cancelled.Status != domain.OrderStatusCancelled {
			t.Errorf("expected cancelled status, got %s", cancelled.Status)
		}
		if got := f.products.stock(product.ID); got != 10 {
			t.Errorf("expected stock restored to 10, got %d", got)
		}
	})

	t.Run("stranger cannot cancel", func(t *testing.T) {
		f := newOrderServiceFixture()
		user := f.addUser()
		product := f.addProduct(100, 10)

		order, _ := f.service.CreateOrder(context.Background(), user.ID, CreateOrderInput{
			Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
			ShippingAddress: testAddress(),
			PaymentMethod:   domain.PaymentMethodCreditCard,
		})

		stranger := f.addUser()
		_, err := f.service.CancelOrder(context.Background(), order.ID, stranger.ID, domain.RoleUser)
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("delivered order cannot be cancelled", func(t *testing.T) {
		f := newOrderServiceFixture()
		user := f.addUser()
		product := f.addProduct(100, 10)

		order, _ := f.service.CreateOrder(context.Background(), user.ID, CreateOrderInput{
			Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 2}},
			ShippingAddress: testAddress(),
			PaymentMethod:   domain.PaymentMethodCreditCard,
		})

		for _, status := range []domain.OrderStatus{
			domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusDelivered,
		} {
			if _, err := f.service.UpdateOrderStatus(context.Background(), order.ID, status, ""); err != nil {
				t.Fatalf("transition to %s failed: %v", status, err)
			}
		}

		_, err := f.service.CancelOrder(context.Background(), order.ID, user.ID, domain.RoleUser)
		if !errors.Is(err, domain.ErrInvalidStateTransition) {
			t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
		}
		if got := f.products.stock(product.ID); got != 8 {
			t.Errorf("stock must stay reserved for a delivered order, got %d", got)
		}
	})
}

func TestResendOrderNotification(t *testing.T) {
	f := newOrderServiceFixture()
	user := f.addUser()
	product := f.addProduct(100, 10)

	order, err := f.service.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   domain.PaymentMethodCreditCard,
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if err := f.service.ResendOrderNotification(context.Background(), order.ID); err != nil {
		t.Fatalf("ResendOrderNotification failed: %v", err)
	}

	// Unlike the async checkout send, a resend surfaces failures
	f.mailer.mu.Lock()
	f.mailer.err = errors.New("smtp: connection refused")
	f.mailer.mu.Unlock()

	err = f.service.ResendOrderNotification(context.Background(), order.ID)
	if !errors.Is(err, domain.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}

	if err := f.service.ResendOrderNotification(context.Background(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown order, got %v", err)
	}
}

func TestOrderNotificationBookkeeping(t *testing.T) {
	newOrder := func(f *orderServiceFixture, user *domain.User) *domain.Order {
		order := &domain.Order{
			ID:     uuid.New(),
			UserID: user.ID,
			Status: domain.OrderStatusPending,
		}
		f.orders.mu.Lock()
		f.orders.orders[order.ID] = order
		f.orders.mu.Unlock()
		return order
	}

	t.Run("resend records the confirmation flag once", func(t *testing.T) {
		f := newOrderServiceFixture()
		user := f.addUser()
		order := newOrder(f, user)

		if err := f.service.ResendOrderNotification(context.Background(), order.ID); err != nil {
			t.Fatalf("ResendOrderNotification failed: %v", err)
		}

		stored, err := f.orders.FindByID(context.Background(), order.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if !stored.ConfirmationEmailSent {
			t.Error("expected the confirmation send to be recorded")
		}

		// A recorded confirmation does not block an explicit resend.
		if err := f.service.ResendOrderNotification(context.Background(), order.ID); err != nil {
			t.Fatalf("repeat resend failed: %v", err)
		}
		f.mailer.mu.Lock()
		sent := f.mailer.confirmations
		f.mailer.mu.Unlock()
		if sent != 2 {
			t.Errorf("confirmations sent = %d, want 2", sent)
		}
	})

	t.Run("checkout confirmation is skipped when already recorded", func(t *testing.T) {
		f := newOrderServiceFixture()
		user := f.addUser()
		order := newOrder(f, user)
		order.ConfirmationEmailSent = true

		f.service.(*orderService).sendConfirmation(order)

		f.mailer.mu.Lock()
		sent := f.mailer.confirmations
		f.mailer.mu.Unlock()
		if sent != 0 {
			t.Errorf("confirmations sent = %d, want 0", sent)
		}
	})

	t.Run("status mail is sent at most once per flagged status", func(t *testing.T) {
		f := newOrderServiceFixture()
		user := f.addUser()
		order := newOrder(f, user)
		order.Status = domain.OrderStatusShipped

		svc := f.service.(*orderService)
		svc.sendStatusUpdate(order)

		stored, err := f.orders.FindByID(context.Background(), order.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if !stored.ShippedEmailSent {
			t.Error("expected the shipped send to be recorded")
		}

		svc.sendStatusUpdate(stored)

		f.mailer.mu.Lock()
		sent := f.mailer.statusUpdates
		f.mailer.mu.Unlock()
		if sent != 1 {
			t.Errorf("status mails sent = %d, want 1", sent)
		}
	})
}

func TestCreateOrder_ConsumesCart(t *testing.T) {
	f := newOrderServiceFixture()
	user := f.addUser()
	product := f.addProduct(100, 10)

	cart := &domain.Cart{ID: uuid.New(), UserID: user.ID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.carts.Create(context.Background(), cart)
	f.carts.UpsertItem(context.Background(), cart.ID, product.ID, 2)

	_, err := f.service.CreateOrder(context.Background(), user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 2}},
		ShippingAddress: testAddress(),
		PaymentMethod:   domain.PaymentMethodCashOnDelivery,
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if _, err := f.carts.FindByUserID(context.Background(), user.ID); err == nil {
		t.Error("cart must be consumed by checkout")
	}
}
