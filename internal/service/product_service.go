package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/domain"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductInput carries the admin-editable fields of a product.
type ProductInput struct {
	Name        string
	Description string
	Price       float64
	SalePrice   *float64
	CategoryID  uuid.UUID
	ImageURL    string
	Stock       int
	IsActive    bool
}

// ProductService defines the interface for catalog business logic.
type ProductService interface {
	CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error)
	SearchProducts(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	CreateCategory(ctx context.Context, name, description string) (*domain.Category, error)
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	logger       *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(productRepo repository.ProductRepository, categoryRepo repository.CategoryRepository, logger *zap.Logger) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		logger:       logger,
	}
}

func validateProductInput(input ProductInput) error {
	if input.Name == "" {
		return fmt.Errorf("%w: product name is required", domain.ErrValidation)
	}
	if input.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
	}
	if input.SalePrice != nil && *input.SalePrice < 0 {
		return fmt.Errorf("%w: sale price must not be negative", domain.ErrValidation)
	}
	if input.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", domain.ErrValidation)
	}
	return nil
}

// CreateProduct creates a catalog entry. The rating aggregates start
// at zero and stay owned by the review recompute from here on.
func (s *productService) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	if _, err := s.categoryRepo.FindByID(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	now := time.Now()
	product := &domain.Product{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		SalePrice:   input.SalePrice,
		CategoryID:  input.CategoryID,
		ImageURL:    input.ImageURL,
		Stock:       input.Stock,
		IsActive:    input.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
	)

	return product, nil
}

// UpdateProduct rewrites the admin-editable fields. Stock changes go
// through the ledger primitives, not through here, so a price edit can
// never race a checkout's stock reservation.
func (s *productService) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.CategoryID != product.CategoryID {
		if _, err := s.categoryRepo.FindByID(ctx, input.CategoryID); err != nil {
			return nil, err
		}
	}

	product.Name = input.Name
	product.Description = input.Description
	product.Price = input.Price
	product.SalePrice = input.SalePrice
	product.CategoryID = input.CategoryID
	product.ImageURL = input.ImageURL
	product.IsActive = input.IsActive

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	return s.productRepo.FindByID(ctx, id)
}

// DeleteProduct removes a product. Orders keep snapshots, so history
// survives; carts drop the line lazily on next read.
func (s *productService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.productRepo.Delete(ctx, id)
}

// GetProduct retrieves a product by ID.
func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

// ListProducts retrieves active products with pagination and sorting.
func (s *productService) ListProducts(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	return s.productRepo.List(ctx, categoryID, true, page, pageSize, sortBy, sortOrder)
}

// SearchProducts searches active products by name or description.
func (s *productService) SearchProducts(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	return s.productRepo.Search(ctx, query, page, pageSize)
}

// ListCategories retrieves all categories.
func (s *productService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categoryRepo.List(ctx)
}

// CreateCategory creates a category.
func (s *productService) CreateCategory(ctx context.Context, name, description string) (*domain.Category, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", domain.ErrValidation)
	}

	category := &domain.Category{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}
