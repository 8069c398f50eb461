package transport

import (
	"errors"
	"net/http"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/domain"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/middleware"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderItemRequest is one line of a checkout request.
type OrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// ShippingAddressRequest is the delivery address of a checkout request.
type ShippingAddressRequest struct {
	FullName   string `json:"full_name" validate:"required"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// CreateOrderRequest represents the checkout payload.
type CreateOrderRequest struct {
	Items           []OrderItemRequest     `json:"items" validate:"required,min=1,dive"`
	ShippingAddress ShippingAddressRequest `json:"shipping_address" validate:"required"`
	PaymentMethod   string                 `json:"payment_method" validate:"required"`
}

// UpdateOrderStatusRequest represents the admin status transition payload.
type UpdateOrderStatusRequest struct {
	Status         string `json:"status" validate:"required"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

// OrderHandler handles HTTP requests for order operations
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers all order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.CreateOrder)
			r.Get("/mine", h.ListMyOrders)
			r.Get("/{orderID}", h.GetOrder)
			r.Post("/{orderID}/cancel", h.CancelOrder)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, adminMiddleware)
			r.Get("/", h.ListAllOrders)
			r.Put("/{orderID}/status", h.UpdateOrderStatus)
			r.Post("/{orderID}/resend-notification", h.ResendNotification)
		})
	})
}

// CreateOrder handles checkout
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, err := requestActor(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.CreateOrderInput{
		Items: make([]service.OrderItemInput, 0, len(req.Items)),
		ShippingAddress: domain.ShippingAddress{
			FullName:   req.ShippingAddress.FullName,
			Street:     req.ShippingAddress.Street,
			City:       req.ShippingAddress.City,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
		},
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	}

	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
			return
		}
		input.Items = append(input.Items, service.OrderItemInput{
			ProductID: productID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orderService.CreateOrder(r.Context(), caller.ID, input)
	if err != nil {
		h.logger.Debug("Checkout failed", zap.Error(err))
		middleware.RespondWithDomainError(w, err)
		return
	}

	h.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", caller.ID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// GetOrder handles reading a single order
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	caller, err := requestActor(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := pathUUID(r, "orderID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), orderID, caller.ID, caller.Role)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// ListMyOrders handles listing the caller's own orders
func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	caller, err := requestActor(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, pageSize := pagination(r)
	orders, total, err := h.orderService.ListOrdersForUser(r.Context(), caller.ID, page, pageSize)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, PagedResponse{
		Items:    orders,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// ListAllOrders handles the admin order listing with status filter
func (h *OrderHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	var status *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.OrderStatus(s)
		status = &st
	}

	orders, total, err := h.orderService.ListAllOrders(r.Context(), status, page, pageSize)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, PagedResponse{
		Items:    orders,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// UpdateOrderStatus handles admin status transitions
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "orderID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req UpdateOrderStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orderService.UpdateOrderStatus(r.Context(), orderID, domain.OrderStatus(req.Status), req.TrackingNumber)
	if err != nil {
		h.logger.Debug("Order status update rejected",
			zap.String("order_id", orderID.String()), zap.Error(err))
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// CancelOrder handles cancellation by the owner or an admin
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	caller, err := requestActor(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := pathUUID(r, "orderID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.orderService.CancelOrder(r.Context(), orderID, caller.ID, caller.Role)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	h.logger.Info("Order cancelled via API", zap.String("order_id", orderID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// ResendNotification handles the admin notification re-trigger
func (h *OrderHandler) ResendNotification(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "orderID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	if err := h.orderService.ResendOrderNotification(r.Context(), orderID); err != nil {
		if errors.Is(err, domain.ErrExternalService) {
			h.logger.Error("Notification resend failed",
				zap.String("order_id", orderID.String()), zap.Error(err))
		}
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "notification sent"})
}
