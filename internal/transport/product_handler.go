package transport

import (
	"net/http"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/middleware"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/repository"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductRequest represents the admin create/update payload.
type ProductRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Price       float64  `json:"price" validate:"required,gte=0"`
	SalePrice   *float64 `json:"sale_price,omitempty" validate:"omitempty,gte=0"`
	CategoryID  string   `json:"category_id" validate:"required,uuid"`
	ImageURL    string   `json:"image_url"`
	Stock       int      `json:"stock" validate:"gte=0"`
	IsActive    bool     `json:"is_active"`
}

// CategoryRequest represents the admin category payload.
type CategoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// ProductHandler handles HTTP requests for catalog operations
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all catalog routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/search", h.SearchProducts)
		r.Get("/{productID}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, adminMiddleware)
			r.Post("/", h.CreateProduct)
			r.Put("/{productID}", h.UpdateProduct)
			r.Delete("/{productID}", h.DeleteProduct)
		})
	})

	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, adminMiddleware)
			r.Post("/", h.CreateCategory)
		})
	})
}

// ListProducts handles the public catalog listing
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	var categoryID *uuid.UUID
	if s := r.URL.Query().Get("category_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid category ID")
			return
		}
		categoryID = &id
	}

	sortBy := r.URL.Query().Get("sort_by")
	sortOrder := repository.SortOrderAsc
	if r.URL.Query().Get("sort_order") == "desc" {
		sortOrder = repository.SortOrderDesc
	}

	products, total, err := h.productService.ListProducts(r.Context(), categoryID, page, pageSize, sortBy, sortOrder)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, PagedResponse{
		Items:    products,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// SearchProducts handles free-text catalog search
func (h *ProductHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	page, pageSize := pagination(r)
	products, total, err := h.productService.SearchProducts(r.Context(), query, page, pageSize)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, PagedResponse{
		Items:    products,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetProduct handles reading a single product
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathUUID(r, "productID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	product, err := h.productService.GetProduct(r.Context(), productID)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) decodeProductInput(w http.ResponseWriter, r *http.Request) (service.ProductInput, bool) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return service.ProductInput{}, false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return service.ProductInput{}, false
	}

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category ID")
		return service.ProductInput{}, false
	}

	return service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		SalePrice:   req.SalePrice,
		CategoryID:  categoryID,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
		IsActive:    req.IsActive,
	}, true
}

// CreateProduct handles admin product creation
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeProductInput(w, r)
	if !ok {
		return
	}

	product, err := h.productService.CreateProduct(r.Context(), input)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles admin product edits
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathUUID(r, "productID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	input, ok := h.decodeProductInput(w, r)
	if !ok {
		return
	}

	product, err := h.productService.UpdateProduct(r.Context(), productID, input)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct handles admin product removal
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathUUID(r, "productID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.productService.DeleteProduct(r.Context(), productID); err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", productID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// ListCategories handles the public category listing
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.productService.ListCategories(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// CreateCategory handles admin category creation
func (h *ProductHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category, err := h.productService.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, category)
}
