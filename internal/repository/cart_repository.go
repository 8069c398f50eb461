package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/domain"

	"github.com/google/uuid"
)

// CartRepository defines the interface for cart data access. Carts are
// per-user; concurrent writes by the same user are last-write-wins.
type CartRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	Create(ctx context.Context, cart *domain.Cart) error
	UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error
	SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, cartID, productID uuid.UUID) error
	RemoveItems(ctx context.Context, cartID uuid.UUID, productIDs []uuid.UUID) error
	Clear(ctx context.Context, cartID uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

// FindByUserID retrieves the user's cart with its items.
func (r *cartRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	query := `
		SELECT id, user_id, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`

	cart := &domain.Cart{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to find cart: %w", err)
	}

	itemsQuery := `
		SELECT id, cart_id, product_id, quantity
		FROM cart_items
		WHERE cart_id = $1
	`

	rows, err := r.db.QueryContext(ctx, itemsQuery, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	defer rows.Close()

	cart.Items = []domain.CartItem{}
	for rows.Next() {
		item := domain.CartItem{}
		err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return cart, nil
}

// Create inserts an empty cart for the user.
func (r *cartRepository) Create(ctx context.Context, cart *domain.Cart) error {
	query := `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, cart.ID, cart.UserID, cart.CreatedAt, cart.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent first access already created the cart.
			existing, findErr := r.FindByUserID(ctx, cart.UserID)
			if findErr != nil {
				return fmt.Errorf("failed to load concurrently created cart: %w", findErr)
			}
			*cart = *existing
			return nil
		}
		return fmt.Errorf("failed to create cart: %w", err)
	}

	return nil
}

// UpsertItem appends a line or merges into an existing one by summing
// quantities.
func (r *cartRepository) UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	query := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`

	_, err := r.db.ExecContext(ctx, query, uuid.New(), cartID, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}

	return r.touch(ctx, cartID)
}

// SetItemQuantity overwrites the quantity of an existing line.
func (r *cartRepository) SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	query := `
		UPDATE cart_items
		SET quantity = $3
		WHERE cart_id = $1 AND product_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, cartID, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCartItemNotFound
	}

	return r.touch(ctx, cartID)
}

// RemoveItem removes a single line; removing an absent line is a no-op.
func (r *cartRepository) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	_, err := r.db.ExecContext(ctx, query, cartID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	return r.touch(ctx, cartID)
}

// RemoveItems removes the given product lines, used when the
// availability filter drops stale lines on read.
func (r *cartRepository) RemoveItems(ctx context.Context, cartID uuid.UUID, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}

	query := `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = ANY($2)`

	_, err := r.db.ExecContext(ctx, query, cartID, productIDs)
	if err != nil {
		return fmt.Errorf("failed to remove cart items: %w", err)
	}

	return r.touch(ctx, cartID)
}

// Clear removes every line from the cart.
func (r *cartRepository) Clear(ctx context.Context, cartID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE cart_id = $1`

	_, err := r.db.ExecContext(ctx, query, cartID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return r.touch(ctx, cartID)
}

// DeleteByUserID drops the cart and its items wholesale.
func (r *cartRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return deleteCartByUserID(ctx, r.db, userID)
}

// deleteCartByUserID is shared with the checkout transaction, which
// clears the cart in the same transaction that persists the order.
func deleteCartByUserID(ctx context.Context, q DBTX, userID uuid.UUID) error {
	// cart_items has ON DELETE CASCADE from carts.
	_, err := q.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (r *cartRepository) touch(ctx context.Context, cartID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE carts SET updated_at = $2 WHERE id = $1`, cartID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}
	return nil
}
