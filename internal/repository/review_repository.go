package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/domain"

	"github.com/google/uuid"
)

const reviewColumns = `id, user_id, product_id, rating, comment, is_filtered, created_at, updated_at`

// ReviewRepository defines the interface for review data access and
// the rating recompute over a product's review set.
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	Update(ctx context.Context, review *domain.Review) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Review, error)
	FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.Review, error)
	ListByProductID(ctx context.Context, productID uuid.UUID) ([]*domain.Review, error)
	RecomputeProductRating(ctx context.Context, productID uuid.UUID) error
}

type reviewRepository struct {
	db *sql.DB
}

// NewReviewRepository creates a new instance of ReviewRepository
func NewReviewRepository(db *sql.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

// Create inserts a new review. The (user_id, product_id) unique
// constraint backs the one-review-per-product rule even under
// concurrent creates.
func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	query := fmt.Sprintf(`
		INSERT INTO reviews (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, reviewColumns)

	_, err := r.db.ExecContext(
		ctx,
		query,
		review.ID,
		review.UserID,
		review.ProductID,
		review.Rating,
		review.Comment,
		review.IsFiltered,
		review.CreatedAt,
		review.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReview
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

// Update rewrites the author-editable fields of a review.
func (r *reviewRepository) Update(ctx context.Context, review *domain.Review) error {
	query := `
		UPDATE reviews
		SET rating = $2, comment = $3, is_filtered = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, review.ID, review.Rating, review.Comment, review.IsFiltered)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrReviewNotFound
	}

	return nil
}

// Delete removes a review from the database.
func (r *reviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrReviewNotFound
	}

	return nil
}

func scanReview(row interface{ Scan(dest ...any) error }) (*domain.Review, error) {
	review := &domain.Review{}
	err := row.Scan(
		&review.ID,
		&review.UserID,
		&review.ProductID,
		&review.Rating,
		&review.Comment,
		&review.IsFiltered,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return review, nil
}

// FindByID retrieves a review by ID.
func (r *reviewRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, reviewColumns)

	review, err := scanReview(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to find review by ID: %w", err)
	}

	return review, nil
}

// FindByUserAndProduct retrieves the user's review of a product if any.
func (r *reviewRepository) FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE user_id = $1 AND product_id = $2`, reviewColumns)

	review, err := scanReview(r.db.QueryRowContext(ctx, query, userID, productID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to find review: %w", err)
	}

	return review, nil
}

// ListByProductID retrieves all reviews for a product, newest first.
func (r *reviewRepository) ListByProductID(ctx context.Context, productID uuid.UUID) ([]*domain.Review, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM reviews
		WHERE product_id = $1
		ORDER BY created_at DESC
	`, reviewColumns)

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*domain.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, nil
}

// RecomputeProductRating rewrites the product's aggregate rating
// fields from its current review set. Count, mean and write are one
// statement, so a concurrent review mutation cannot interleave between
// the read and the write.
func (r *reviewRepository) RecomputeProductRating(ctx context.Context, productID uuid.UUID) error {
	query := `
		UPDATE products
		SET num_reviews = agg.cnt,
		    average_rating = agg.avg_rating,
		    updated_at = NOW()
		FROM (
			SELECT COUNT(*) AS cnt, COALESCE(AVG(rating), 0) AS avg_rating
			FROM reviews
			WHERE product_id = $1
		) AS agg
		WHERE products.id = $1
	`

	result, err := r.db.ExecContext(ctx, query, productID)
	if err != nil {
		return fmt.Errorf("failed to recompute product rating: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}
