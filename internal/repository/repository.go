package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/domain"
)

// Sentinel errors. Each wraps the matching domain taxonomy error so
// callers can classify with errors.Is without losing the specific
// message.
var (
	ErrProductNotFound   = fmt.Errorf("product: %w", domain.ErrNotFound)
	ErrCategoryNotFound  = fmt.Errorf("category: %w", domain.ErrNotFound)
	ErrCartNotFound      = fmt.Errorf("cart: %w", domain.ErrNotFound)
	ErrCartItemNotFound  = fmt.Errorf("cart item: %w", domain.ErrNotFound)
	ErrOrderNotFound     = fmt.Errorf("order: %w", domain.ErrNotFound)
	ErrReviewNotFound    = fmt.Errorf("review: %w", domain.ErrNotFound)
	ErrUserNotFound      = fmt.Errorf("user: %w", domain.ErrNotFound)
	ErrUserAlreadyExists = fmt.Errorf("user with this email already exists: %w", domain.ErrValidation)
	ErrDuplicateReview   = domain.ErrDuplicateReview
	ErrInsufficientStock = domain.ErrInsufficientStock
	// ErrStatusConflict means a status-conditioned update matched no
	// row: either the order vanished or a concurrent transition won.
	ErrStatusConflict = fmt.Errorf("order status changed concurrently: %w", domain.ErrInvalidStateTransition)
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Statements that must run inside a caller-owned transaction take it
// explicitly.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// runInTx executes fn inside a transaction, rolling back on error or
// panic and committing otherwise.
func runInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
