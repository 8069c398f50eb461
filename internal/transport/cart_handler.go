package transport

import (
	"net/http"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/middleware"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartItemRequest represents an add-to-cart payload.
type CartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// CartQuantityRequest represents a quantity update payload.
type CartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// CartHandler handles HTTP requests for cart operations
type CartHandler struct {
	cartService service.CartService
	logger      *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		logger:      logger,
	}
}

// RegisterRoutes registers all cart routes. Everything is
// owner-scoped, so the whole subtree sits behind auth.
func (h *CartHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.GetCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{productID}", h.UpdateItem)
		r.Delete("/items/{productID}", h.RemoveItem)
		r.Delete("/", h.ClearCart)
	})
}

// GetCart handles reading the caller's cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	caller, err := requestActor(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	view, err := h.cartService.GetOrCreateCart(r.Context(), caller.ID)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// AddItem handles adding a product to the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	caller, err := requestActor(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CartItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	view, err := h.cartService.AddItem(r.Context(), caller.ID, productID, req.Quantity)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	h.logger.Debug("Cart item added",
		zap.String("user_id", caller.ID.String()),
		zap.String("product_id", productID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// UpdateItem handles replacing a cart line's quantity
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	caller, err := requestActor(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := pathUUID(r, "productID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req CartQuantityRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.cartService.UpdateItem(r.Context(), caller.ID, productID, req.Quantity)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// RemoveItem handles removing a single cart line
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	caller, err := requestActor(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := pathUUID(r, "productID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	view, err := h.cartService.RemoveItem(r.Context(), caller.ID, productID)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// ClearCart handles emptying the caller's cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	caller, err := requestActor(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.cartService.ClearCart(r.Context(), caller.ID); err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "cart cleared"})
}
