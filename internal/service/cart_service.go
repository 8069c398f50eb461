package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/domain"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartLine is a cart item joined with its product's current catalog
// data for display. Unlike order items these are live values, not
// snapshots.
type CartLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url"`
	UnitPrice float64   `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	LineTotal float64   `json:"line_total"`
	Stock     int       `json:"stock"`
}

// CartView is the read contract of the cart: the surviving lines plus
// explicit notices for lines dropped because their product became
// unavailable, so callers are never silently out of sync.
type CartView struct {
	CartID     uuid.UUID                `json:"cart_id"`
	Items      []CartLine               `json:"items"`
	Removed    []domain.RemovedCartItem `json:"removed_items,omitempty"`
	TotalItems int                      `json:"total_items"`
	Subtotal   float64                  `json:"subtotal"`
}

// CartService defines the interface for cart business logic
type CartService interface {
	GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*CartView, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartView, error)
	UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartView, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartView, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	logger      *zap.Logger
}

// NewCartService creates a new instance of CartService
func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, logger *zap.Logger) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		logger:      logger,
	}
}

// GetOrCreateCart returns the user's cart, creating an empty one on
// first access. Lines whose product is gone, inactive or out of stock
// are dropped from storage and reported in the view's Removed list.
func (s *cartService) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	cart, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, cart)
}

func (s *cartService) loadOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	cart, err := s.cartRepo.FindByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrCartNotFound) {
		return nil, err
	}

	now := time.Now()
	cart = &domain.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		Items:     []domain.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.cartRepo.Create(ctx, cart); err != nil {
		return nil, err
	}

	return cart, nil
}

// buildView resolves every line's product, drops unavailable lines and
// persists the filtered result. Carts are per-user, so the
// read-filter-write here is last-write-wins by design.
func (s *cartService) buildView(ctx context.Context, cart *domain.Cart) (*CartView, error) {
	view := &CartView{
		CartID: cart.ID,
		Items:  []CartLine{},
	}

	removedIDs := []uuid.UUID{}
	for _, item := range cart.Items {
		product, err := s.productRepo.FindByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				view.Removed = append(view.Removed, domain.RemovedCartItem{
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
					Reason:    domain.CartRemovalReasonMissing,
				})
				removedIDs = append(removedIDs, item.ProductID)
				continue
			}
			return nil, err
		}

		if !product.Available() {
			reason := domain.CartRemovalReasonOutOfStock
			if !product.IsActive {
				reason = domain.CartRemovalReasonInactive
			}
			view.Removed = append(view.Removed, domain.RemovedCartItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Reason:    reason,
			})
			removedIDs = append(removedIDs, item.ProductID)
			continue
		}

		unitPrice := product.EffectivePrice()
		view.Items = append(view.Items, CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			ImageURL:  product.ImageURL,
			UnitPrice: unitPrice,
			Quantity:  item.Quantity,
			LineTotal: unitPrice * float64(item.Quantity),
			Stock:     product.Stock,
		})
		view.TotalItems += item.Quantity
		view.Subtotal += unitPrice * float64(item.Quantity)
	}

	if len(removedIDs) > 0 {
		if err := s.cartRepo.RemoveItems(ctx, cart.ID, removedIDs); err != nil {
			return nil, err
		}
		s.logger.Debug("Dropped unavailable cart lines",
			zap.String("cart_id", cart.ID.String()),
			zap.Int("removed", len(removedIDs)),
		)
	}

	return view, nil
}

// AddItem merges quantity into an existing line or appends a new one,
// capped by the product's current stock.
func (s *cartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartView, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidation)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Available() {
		return nil, fmt.Errorf("product %s is unavailable: %w", productID, domain.ErrNotFound)
	}

	cart, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing := 0
	for _, item := range cart.Items {
		if item.ProductID == productID {
			existing = item.Quantity
			break
		}
	}

	if existing+quantity > product.Stock {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrInsufficientStock)
	}

	if err := s.cartRepo.UpsertItem(ctx, cart.ID, productID, quantity); err != nil {
		return nil, err
	}

	return s.refresh(ctx, userID)
}

// UpdateItem overwrites a line's quantity, which must fit current stock.
func (s *cartService) UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartView, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidation)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > product.Stock {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrInsufficientStock)
	}

	cart, err := s.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cartRepo.SetItemQuantity(ctx, cart.ID, productID, quantity); err != nil {
		return nil, err
	}

	return s.refresh(ctx, userID)
}

// RemoveItem drops a line unconditionally.
func (s *cartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartView, error) {
	cart, err := s.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cartRepo.RemoveItem(ctx, cart.ID, productID); err != nil {
		return nil, err
	}

	return s.refresh(ctx, userID)
}

// ClearCart removes every line unconditionally.
func (s *cartService) ClearCart(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil
		}
		return err
	}

	return s.cartRepo.Clear(ctx, cart.ID)
}

func (s *cartService) refresh(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	cart, err := s.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, cart)
}
