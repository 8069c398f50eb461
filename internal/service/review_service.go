package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/domain"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/metrics"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/repository"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/sanitize"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReviewService defines the interface for review business logic. Every
// mutation ends with an explicit rating recompute on the owning
// product; the aggregation is never a hidden storage-layer side effect.
type ReviewService interface {
	CreateReview(ctx context.Context, userID, productID uuid.UUID, rating int, comment string) (*domain.Review, error)
	UpdateReview(ctx context.Context, reviewID, actorID uuid.UUID, rating int, comment string) (*domain.Review, error)
	DeleteReview(ctx context.Context, reviewID, actorID uuid.UUID, actorRole string) error
	CanUserReview(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	ListProductReviews(ctx context.Context, productID uuid.UUID) ([]*domain.Review, error)
}

type reviewService struct {
	reviewRepo  repository.ReviewRepository
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	filter      sanitize.Filter
	logger      *zap.Logger
}

// NewReviewService creates a new instance of ReviewService
func NewReviewService(
	reviewRepo repository.ReviewRepository,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	filter sanitize.Filter,
	logger *zap.Logger,
) ReviewService {
	return &reviewService{
		reviewRepo:  reviewRepo,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		filter:      filter,
		logger:      logger,
	}
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrValidation)
	}
	return nil
}

// CreateReview creates a review after the verified-purchase gate: the
// user must have a delivered order containing the product, and must
// not have reviewed it before.
func (s *reviewService) CreateReview(ctx context.Context, userID, productID uuid.UUID, rating int, comment string) (*domain.Review, error) {
	if err := validateRating(rating); err != nil {
		return nil, err
	}

	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, err
	}

	purchased, err := s.orderRepo.HasCompletedOrderWithProduct(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if !purchased {
		return nil, fmt.Errorf("%w: reviews require a delivered purchase", domain.ErrUnauthorized)
	}

	if _, err := s.reviewRepo.FindByUserAndProduct(ctx, userID, productID); err == nil {
		return nil, domain.ErrDuplicateReview
	} else if !errors.Is(err, repository.ErrReviewNotFound) {
		return nil, err
	}

	cleaned, filtered := s.filter.Clean(comment)

	now := time.Now()
	review := &domain.Review{
		ID:         uuid.New(),
		UserID:     userID,
		ProductID:  productID,
		Rating:     rating,
		Comment:    cleaned,
		IsFiltered: filtered,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// The unique constraint still backs this against a concurrent
	// duplicate create.
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		return nil, err
	}

	if err := s.reviewRepo.RecomputeProductRating(ctx, productID); err != nil {
		return nil, err
	}

	metrics.ReviewsCreatedTotal.Inc()
	s.logger.Info("Review created",
		zap.String("review_id", review.ID.String()),
		zap.String("product_id", productID.String()),
		zap.Int("rating", rating),
	)

	return review, nil
}

// UpdateReview rewrites the author's own review.
func (s *reviewService) UpdateReview(ctx context.Context, reviewID, actorID uuid.UUID, rating int, comment string) (*domain.Review, error) {
	if err := validateRating(rating); err != nil {
		return nil, err
	}

	review, err := s.reviewRepo.FindByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	if review.UserID != actorID {
		return nil, fmt.Errorf("%w: not the review author", domain.ErrUnauthorized)
	}

	cleaned, filtered := s.filter.Clean(comment)
	review.Rating = rating
	review.Comment = cleaned
	review.IsFiltered = filtered
	review.UpdatedAt = time.Now()

	if err := s.reviewRepo.Update(ctx, review); err != nil {
		return nil, err
	}

	if err := s.reviewRepo.RecomputeProductRating(ctx, review.ProductID); err != nil {
		return nil, err
	}

	return review, nil
}

// DeleteReview removes a review on behalf of its author or an admin.
func (s *reviewService) DeleteReview(ctx context.Context, reviewID, actorID uuid.UUID, actorRole string) error {
	review, err := s.reviewRepo.FindByID(ctx, reviewID)
	if err != nil {
		return err
	}

	if review.UserID != actorID && actorRole != domain.RoleAdmin {
		return fmt.Errorf("%w: not the review author", domain.ErrUnauthorized)
	}

	if err := s.reviewRepo.Delete(ctx, reviewID); err != nil {
		return err
	}

	return s.reviewRepo.RecomputeProductRating(ctx, review.ProductID)
}

// CanUserReview reports whether the user passes the verified-purchase
// gate and has not yet reviewed the product.
func (s *reviewService) CanUserReview(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	purchased, err := s.orderRepo.HasCompletedOrderWithProduct(ctx, userID, productID)
	if err != nil {
		return false, err
	}
	if !purchased {
		return false, nil
	}

	_, err = s.reviewRepo.FindByUserAndProduct(ctx, userID, productID)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, repository.ErrReviewNotFound) {
		return true, nil
	}
	return false, err
}

// ListProductReviews retrieves a product's reviews.
func (s *reviewService) ListProductReviews(ctx context.Context, productID uuid.UUID) ([]*domain.Review, error) {
	return s.reviewRepo.ListByProductID(ctx, productID)
}
