package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/domain"

	"github.com/google/uuid"
)

const orderColumns = `id, user_id, payment_method, status,
		ship_full_name, ship_street, ship_city, ship_postal_code, ship_country,
		items_subtotal, tax_price, shipping_price, total_price,
		tracking_number, is_delivered, delivered_at,
		confirmation_email_sent, shipped_email_sent, delivered_email_sent,
		created_at, updated_at`

// EmailFlag selects one of the idempotent-notification bookkeeping
// columns on an order.
type EmailFlag string

const (
	EmailFlagConfirmation EmailFlag = "confirmation_email_sent"
	EmailFlagShipped      EmailFlag = "shipped_email_sent"
	EmailFlagDelivered    EmailFlag = "delivered_email_sent"
)

// OrderRepository defines the interface for order data access. Create
// and Cancel are transactional: stock movement and the order row
// change commit together or not at all.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Order, int, error)
	List(ctx context.Context, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, trackingNumber string, deliveredAt *time.Time) error
	Cancel(ctx context.Context, id uuid.UUID) error
	MarkEmailSent(ctx context.Context, id uuid.UUID, flag EmailFlag) error
	HasCompletedOrderWithProduct(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create persists the order, reserves stock for every line and deletes
// the user's cart in one transaction. If any line's conditional
// decrement matches no row the whole transaction rolls back, so a
// failure on a later line never leaves earlier reservations behind.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	return runInTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, item := range order.Items {
			if err := decrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		query := fmt.Sprintf(`
			INSERT INTO orders (%s)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
				$14, $15, $16, $17, $18, $19, $20, $21)
		`, orderColumns)

		_, err := tx.ExecContext(
			ctx,
			query,
			order.ID,
			order.UserID,
			order.PaymentMethod,
			order.Status,
			order.ShippingAddress.FullName,
			order.ShippingAddress.Street,
			order.ShippingAddress.City,
			order.ShippingAddress.PostalCode,
			order.ShippingAddress.Country,
			order.ItemsSubtotal,
			order.TaxPrice,
			order.ShippingPrice,
			order.TotalPrice,
			order.TrackingNumber,
			order.IsDelivered,
			order.DeliveredAt,
			order.ConfirmationEmailSent,
			order.ShippedEmailSent,
			order.DeliveredEmailSent,
			order.CreatedAt,
			order.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for _, item := range order.Items {
			_, err := tx.ExecContext(
				ctx,
				`INSERT INTO order_items (id, order_id, product_id, name, image_url, quantity, unit_price)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				item.ID,
				item.OrderID,
				item.ProductID,
				item.Name,
				item.ImageURL,
				item.Quantity,
				item.UnitPrice,
			)
			if err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}

		return deleteCartByUserID(ctx, tx, order.UserID)
	})
}

func scanOrder(row interface{ Scan(dest ...any) error }) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.PaymentMethod,
		&order.Status,
		&order.ShippingAddress.FullName,
		&order.ShippingAddress.Street,
		&order.ShippingAddress.City,
		&order.ShippingAddress.PostalCode,
		&order.ShippingAddress.Country,
		&order.ItemsSubtotal,
		&order.TaxPrice,
		&order.ShippingPrice,
		&order.TotalPrice,
		&order.TrackingNumber,
		&order.IsDelivered,
		&order.DeliveredAt,
		&order.ConfirmationEmailSent,
		&order.ShippedEmailSent,
		&order.DeliveredEmailSent,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, order *domain.Order) error {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, order_id, product_id, name, image_url, quantity, unit_price
		 FROM order_items
		 WHERE order_id = $1`,
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	order.Items = []domain.OrderItem{}
	for rows.Next() {
		item := domain.OrderItem{}
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Name,
			&item.ImageURL,
			&item.Quantity,
			&item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	return rows.Err()
}

// FindByID retrieves an order with its items.
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// ListByUserID retrieves a user's orders, newest first.
func (r *orderRepository) ListByUserID(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Order, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	offset := (page - 1) * pageSize
	query := fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, orderColumns)

	return r.queryOrders(ctx, query, total, userID, pageSize, offset)
}

// List retrieves all orders with an optional status filter, newest first.
func (r *orderRepository) List(ctx context.Context, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error) {
	whereClause := ""
	args := []any{}
	argIndex := 1

	if status != nil {
		whereClause = fmt.Sprintf("WHERE status = $%d", argIndex)
		args = append(args, *status)
		argIndex++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM orders %s", whereClause)
	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	offset := (page - 1) * pageSize
	query := fmt.Sprintf(`
		SELECT %s FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, orderColumns, whereClause, argIndex, argIndex+1)

	args = append(args, pageSize, offset)

	return r.queryOrders(ctx, query, total, args...)
}

func (r *orderRepository) queryOrders(ctx context.Context, query string, total int, args ...any) ([]*domain.Order, int, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating orders: %w", err)
	}

	for _, order := range orders {
		if err := r.loadItems(ctx, order); err != nil {
			return nil, 0, err
		}
	}

	return orders, total, nil
}

// UpdateStatus moves an order from -> to. The previous status is part
// of the WHERE clause, so a concurrent transition on the same order
// loses cleanly instead of overwriting (optimistic concurrency).
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, trackingNumber string, deliveredAt *time.Time) error {
	query := `
		UPDATE orders
		SET status = $3,
		    tracking_number = CASE WHEN $4 <> '' THEN $4 ELSE tracking_number END,
		    is_delivered = $5,
		    delivered_at = COALESCE($6, delivered_at),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	isDelivered := to == domain.OrderStatusDelivered

	result, err := r.db.ExecContext(ctx, query, id, from, to, trackingNumber, isDelivered, deliveredAt)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check order existence: %w", err)
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrStatusConflict
	}

	return nil
}

// Cancel flips the order to cancelled and restores stock for every
// line in one transaction. The status flip is conditioned on the order
// still being cancellable, so a racing delivery or double cancel sees
// ErrStatusConflict and no stock moves.
func (r *orderRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	return runInTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(
			ctx,
			`UPDATE orders
			 SET status = $2, updated_at = NOW()
			 WHERE id = $1 AND status IN ($3, $4)`,
			id,
			domain.OrderStatusCancelled,
			domain.OrderStatusPending,
			domain.OrderStatusProcessing,
		)
		if err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check order existence: %w", err)
			}
			if !exists {
				return ErrOrderNotFound
			}
			return ErrStatusConflict
		}

		rows, err := tx.QueryContext(ctx, `SELECT product_id, quantity FROM order_items WHERE order_id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to load order items: %w", err)
		}
		defer rows.Close()

		type line struct {
			productID uuid.UUID
			quantity  int
		}
		lines := []line{}
		for rows.Next() {
			var l line
			if err := rows.Scan(&l.productID, &l.quantity); err != nil {
				return fmt.Errorf("failed to scan order item: %w", err)
			}
			lines = append(lines, l)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating order items: %w", err)
		}

		for _, l := range lines {
			if err := restoreStock(ctx, tx, l.productID, l.quantity); err != nil {
				return err
			}
		}

		return nil
	})
}

// MarkEmailSent records that a notification went out for the order.
func (r *orderRepository) MarkEmailSent(ctx context.Context, id uuid.UUID, flag EmailFlag) error {
	var column string
	switch flag {
	case EmailFlagConfirmation, EmailFlagShipped, EmailFlagDelivered:
		column = string(flag)
	default:
		return fmt.Errorf("unknown email flag %q", flag)
	}

	query := fmt.Sprintf(`UPDATE orders SET %s = TRUE, updated_at = NOW() WHERE id = $1`, column)

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark email sent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// HasCompletedOrderWithProduct reports whether the user has a
// delivered order containing the product (the verified-purchase gate).
func (r *orderRepository) HasCompletedOrderWithProduct(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM orders o
			JOIN order_items oi ON oi.order_id = o.id
			WHERE o.user_id = $1 AND oi.product_id = $2 AND o.status = $3
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, userID, productID, domain.OrderStatusDelivered).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check purchase history: %w", err)
	}

	return exists, nil
}
