package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/domain"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/repository"

	"github.com/google/uuid"
)

// Mock repositories for testing. All of them guard their maps with a
// mutex so concurrency tests can hammer them from multiple goroutines.

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type mockTokenStore struct {
	mu     sync.Mutex
	tokens map[string]uuid.UUID
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{tokens: make(map[string]uuid.UUID)}
}

func (m *mockTokenStore) Save(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = userID
	return nil
}

func (m *mockTokenStore) Lookup(ctx context.Context, token string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, exists := m.tokens[token]
	if !exists {
		return uuid.Nil, repository.ErrRefreshTokenNotFound
	}
	return userID, nil
}

func (m *mockTokenStore) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

type mockCategoryRepository struct {
	mu         sync.Mutex
	categories map[uuid.UUID]*domain.Category
}

func newMockCategoryRepository() *mockCategoryRepository {
	return &mockCategoryRepository{categories: make(map[uuid.UUID]*domain.Category)}
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.categories {
		if existing.Name == category.Name {
			return fmt.Errorf("category with this name already exists: %w", domain.ErrValidation)
		}
	}
	m.categories[category.ID] = category
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Category, 0, len(m.categories))
	for _, category := range m.categories {
		out = append(out, category)
	}
	return out, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	category, exists := m.categories[id]
	if !exists {
		return nil, repository.ErrCategoryNotFound
	}
	return category, nil
}

type mockProductRepository struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func (m *mockProductRepository) add(product *domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *product
	m.products[product.ID] = &copied
}

func (m *mockProductRepository) stock(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.add(product)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, exists := m.products[product.ID]
	if !exists {
		return repository.ErrProductNotFound
	}
	// Stock and rating aggregates are owned elsewhere
	stock, rating, numReviews := existing.Stock, existing.AverageRating, existing.NumReviews
	copied := *product
	copied.Stock, copied.AverageRating, copied.NumReviews = stock, rating, numReviews
	m.products[product.ID] = &copied
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.products[id]; !exists {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, exists := m.products[id]
	if !exists {
		return nil, repository.ErrProductNotFound
	}
	copied := *product
	return &copied, nil
}

func (m *mockProductRepository) List(ctx context.Context, categoryID *uuid.UUID, activeOnly bool, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domain.Product{}
	for _, product := range m.products {
		if activeOnly && !product.IsActive {
			continue
		}
		if categoryID != nil && product.CategoryID != *categoryID {
			continue
		}
		copied := *product
		result = append(result, &copied)
	}
	return result, len(result), nil
}

func (m *mockProductRepository) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	return m.List(ctx, nil, true, page, pageSize, "", repository.SortOrderAsc)
}

func (m *mockProductRepository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decrementLocked(id, qty)
}

func (m *mockProductRepository) decrementLocked(id uuid.UUID, qty int) error {
	product, exists := m.products[id]
	if !exists {
		return repository.ErrProductNotFound
	}
	if product.Stock < qty {
		return repository.ErrInsufficientStock
	}
	product.Stock -= qty
	return nil
}

func (m *mockProductRepository) RestoreStock(ctx context.Context, id uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, exists := m.products[id]
	if !exists {
		return repository.ErrProductNotFound
	}
	product.Stock += qty
	return nil
}

type mockCartRepository struct {
	mu    sync.Mutex
	carts map[uuid.UUID]*domain.Cart // by user ID
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[uuid.UUID]*domain.Cart)}
}

func (m *mockCartRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, exists := m.carts[userID]
	if !exists {
		return nil, repository.ErrCartNotFound
	}
	copied := *cart
	copied.Items = append([]domain.CartItem{}, cart.Items...)
	return &copied, nil
}

func (m *mockCartRepository) Create(ctx context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, exists := m.carts[cart.UserID]; exists {
		*cart = *existing
		return nil
	}
	copied := *cart
	m.carts[cart.UserID] = &copied
	return nil
}

func (m *mockCartRepository) findByCartID(cartID uuid.UUID) *domain.Cart {
	for _, cart := range m.carts {
		if cart.ID == cartID {
			return cart
		}
	}
	return nil
}

func (m *mockCartRepository) UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := m.findByCartID(cartID)
	if cart == nil {
		return repository.ErrCartNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity += quantity
			return nil
		}
	}
	cart.Items = append(cart.Items, domain.CartItem{
		ID:        uuid.New(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
	})
	return nil
}

func (m *mockCartRepository) SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := m.findByCartID(cartID)
	if cart == nil {
		return repository.ErrCartNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = quantity
			return nil
		}
	}
	return repository.ErrCartItemNotFound
}

func (m *mockCartRepository) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) error {
	return m.RemoveItems(ctx, cartID, []uuid.UUID{productID})
}

func (m *mockCartRepository) RemoveItems(ctx context.Context, cartID uuid.UUID, productIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := m.findByCartID(cartID)
	if cart == nil {
		return repository.ErrCartNotFound
	}
	drop := make(map[uuid.UUID]bool, len(productIDs))
	for _, id := range productIDs {
		drop[id] = true
	}
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if !drop[item.ProductID] {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	return nil
}

func (m *mockCartRepository) Clear(ctx context.Context, cartID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := m.findByCartID(cartID)
	if cart == nil {
		return repository.ErrCartNotFound
	}
	cart.Items = nil
	return nil
}

func (m *mockCartRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

// mockOrderRepository mimics the transactional checkout: the stock
// check-and-apply for all lines happens under the product repo's lock,
// so either every line is reserved or none is.
type mockOrderRepository struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*domain.Order
	products *mockProductRepository
	carts    *mockCartRepository
}

func newMockOrderRepository(products *mockProductRepository, carts *mockCartRepository) *mockOrderRepository {
	return &mockOrderRepository{
		orders:   make(map[uuid.UUID]*domain.Order),
		products: products,
		carts:    carts,
	}
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	// Decrement line by line so duplicate lines for the same product
	// count cumulatively, like the sequential conditional decrements in
	// the real transaction. A failed line undoes the earlier ones.
	m.products.mu.Lock()
	applied := make([]domain.OrderItem, 0, len(order.Items))
	rollback := func() {
		for _, item := range applied {
			m.products.products[item.ProductID].Stock += item.Quantity
		}
	}
	for _, item := range order.Items {
		product, exists := m.products.products[item.ProductID]
		if !exists {
			rollback()
			m.products.mu.Unlock()
			return repository.ErrProductNotFound
		}
		if product.Stock < item.Quantity {
			rollback()
			m.products.mu.Unlock()
			return repository.ErrInsufficientStock
		}
		product.Stock -= item.Quantity
		applied = append(applied, item)
	}
	m.products.mu.Unlock()

	m.mu.Lock()
	copied := *order
	copied.Items = append([]domain.OrderItem{}, order.Items...)
	m.orders[order.ID] = &copied
	m.mu.Unlock()

	if m.carts != nil {
		return m.carts.DeleteByUserID(ctx, order.UserID)
	}
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, exists := m.orders[id]
	if !exists {
		return nil, repository.ErrOrderNotFound
	}
	copied := *order
	copied.Items = append([]domain.OrderItem{}, order.Items...)
	return &copied, nil
}

func (m *mockOrderRepository) ListByUserID(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domain.Order{}
	for _, order := range m.orders {
		if order.UserID == userID {
			copied := *order
			result = append(result, &copied)
		}
	}
	return result, len(result), nil
}

func (m *mockOrderRepository) List(ctx context.Context, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domain.Order{}
	for _, order := range m.orders {
		if status != nil && order.Status != *status {
			continue
		}
		copied := *order
		result = append(result, &copied)
	}
	return result, len(result), nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, trackingNumber string, deliveredAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, exists := m.orders[id]
	if !exists {
		return repository.ErrOrderNotFound
	}
	if order.Status != from {
		return repository.ErrStatusConflict
	}
	order.Status = to
	if trackingNumber != "" {
		order.TrackingNumber = trackingNumber
	}
	if to == domain.OrderStatusDelivered {
		order.IsDelivered = true
		order.DeliveredAt = deliveredAt
	}
	return nil
}

func (m *mockOrderRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	order, exists := m.orders[id]
	if !exists {
		m.mu.Unlock()
		return repository.ErrOrderNotFound
	}
	if !order.Status.Cancellable() {
		m.mu.Unlock()
		return repository.ErrStatusConflict
	}
	order.Status = domain.OrderStatusCancelled
	items := append([]domain.OrderItem{}, order.Items...)
	m.mu.Unlock()

	for _, item := range items {
		if err := m.products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockOrderRepository) MarkEmailSent(ctx context.Context, id uuid.UUID, flag repository.EmailFlag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, exists := m.orders[id]
	if !exists {
		return repository.ErrOrderNotFound
	}
	switch flag {
	case repository.EmailFlagConfirmation:
		order.ConfirmationEmailSent = true
	case repository.EmailFlagShipped:
		order.ShippedEmailSent = true
	case repository.EmailFlagDelivered:
		order.DeliveredEmailSent = true
	}
	return nil
}

func (m *mockOrderRepository) HasCompletedOrderWithProduct(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.UserID != userID || order.Status != domain.OrderStatusDelivered {
			continue
		}
		for _, item := range order.Items {
			if item.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

type mockReviewRepository struct {
	mu       sync.Mutex
	reviews  map[uuid.UUID]*domain.Review
	products *mockProductRepository
}

func newMockReviewRepository(products *mockProductRepository) *mockReviewRepository {
	return &mockReviewRepository{
		reviews:  make(map[uuid.UUID]*domain.Review),
		products: products,
	}
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reviews {
		if existing.UserID == review.UserID && existing.ProductID == review.ProductID {
			return repository.ErrDuplicateReview
		}
	}
	copied := *review
	m.reviews[review.ID] = &copied
	return nil
}

func (m *mockReviewRepository) Update(ctx context.Context, review *domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.reviews[review.ID]; !exists {
		return repository.ErrReviewNotFound
	}
	copied := *review
	m.reviews[review.ID] = &copied
	return nil
}

func (m *mockReviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.reviews[id]; !exists {
		return repository.ErrReviewNotFound
	}
	delete(m.reviews, id)
	return nil
}

func (m *mockReviewRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	review, exists := m.reviews[id]
	if !exists {
		return nil, repository.ErrReviewNotFound
	}
	copied := *review
	return &copied, nil
}

func (m *mockReviewRepository) FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, review := range m.reviews {
		if review.UserID == userID && review.ProductID == productID {
			copied := *review
			return &copied, nil
		}
	}
	return nil, repository.ErrReviewNotFound
}

func (m *mockReviewRepository) ListByProductID(ctx context.Context, productID uuid.UUID) ([]*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domain.Review{}
	for _, review := range m.reviews {
		if review.ProductID == productID {
			copied := *review
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockReviewRepository) RecomputeProductRating(ctx context.Context, productID uuid.UUID) error {
	m.mu.Lock()
	count := 0
	sum := 0
	for _, review := range m.reviews {
		if review.ProductID == productID {
			count++
			sum += review.Rating
		}
	}
	m.mu.Unlock()

	m.products.mu.Lock()
	defer m.products.mu.Unlock()
	product, exists := m.products.products[productID]
	if !exists {
		return repository.ErrProductNotFound
	}
	product.NumReviews = count
	if count == 0 {
		product.AverageRating = 0
	} else {
		product.AverageRating = float64(sum) / float64(count)
	}
	return nil
}

type mockMailer struct {
	mu            sync.Mutex
	confirmations int
	statusUpdates int
	lastReceipt   []byte
	err           error
}

func (m *mockMailer) SendOrderConfirmation(ctx context.Context, order *domain.Order, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.confirmations++
	return nil
}

func (m *mockMailer) SendOrderStatusUpdate(ctx context.Context, order *domain.Order, user *domain.User, receipt []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.statusUpdates++
	m.lastReceipt = receipt
	return nil
}

type mockPublisher struct {
	mu        sync.Mutex
	created   int
	changed   int
	cancelled int
}

func (m *mockPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
	return nil
}

func (m *mockPublisher) PublishOrderStatusChanged(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed++
	return nil
}

func (m *mockPublisher) PublishOrderCancelled(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled++
	return nil
}

type stubReceiptRenderer struct{}

func (stubReceiptRenderer) Render(order *domain.Order, user *domain.User) ([]byte, error) {
	return []byte("%PDF-stub"), nil
}
