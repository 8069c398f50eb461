package transport

import (
	"net/http"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/middleware"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ReviewRequest represents a review create/update payload.
type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment"`
}

// ReviewHandler handles HTTP requests for review operations
type ReviewHandler struct {
	reviewService service.ReviewService
	logger        *zap.Logger
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(reviewService service.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		logger:        logger,
	}
}

// RegisterRoutes registers all review routes
func (h *ReviewHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products/{productID}/reviews", func(r chi.Router) {
		r.Get("/", h.ListProductReviews)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.CreateReview)
			r.Get("/eligibility", h.CheckEligibility)
		})
	})

	r.Route("/api/reviews", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Put("/{reviewID}", h.UpdateReview)
		r.Delete("/{reviewID}", h.DeleteReview)
	})
}

// ListProductReviews handles the public review listing for a product
func (h *ReviewHandler) ListProductReviews(w http.ResponseWriter, r *http.Request) {
	productID, err := pathUUID(r, "productID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	reviews, err := h.reviewService.ListProductReviews(r.Context(), productID)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, reviews)
}

// CreateReview handles posting a review against a purchased product
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
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

	var req ReviewRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	review, err := h.reviewService.CreateReview(r.Context(), caller.ID, productID, req.Rating, req.Comment)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	h.logger.Info("Review posted",
		zap.String("review_id", review.ID.String()),
		zap.String("product_id", productID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, review)
}

// CheckEligibility reports whether the caller may review the product
func (h *ReviewHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
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

	eligible, err := h.reviewService.CanUserReview(r.Context(), caller.ID, productID)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]bool{"eligible": eligible})
}

// UpdateReview handles edits by the review's author
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	caller, err := requestActor(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reviewID, err := pathUUID(r, "reviewID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid review ID")
		return
	}

	var req ReviewRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	review, err := h.reviewService.UpdateReview(r.Context(), reviewID, caller.ID, req.Rating, req.Comment)
	if err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, review)
}

// DeleteReview handles removal by the author or an admin
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	caller, err := requestActor(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reviewID, err := pathUUID(r, "reviewID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid review ID")
		return
	}

	if err := h.reviewService.DeleteReview(r.Context(), reviewID, caller.ID, caller.Role); err != nil {
		middleware.RespondWithDomainError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "review deleted"})
}
