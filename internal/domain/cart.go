package domain

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one line of a cart. (cart_id, product_id) is unique;
// adding an existing product merges quantities.
type CartItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CartID    uuid.UUID `json:"cart_id" db:"cart_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
}

// Cart is the per-user pending selection. One cart per user, created
// lazily on first access and deleted wholesale when an order is placed.
type Cart struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// TotalItems is the summed quantity across all lines.
func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// RemovedCartItem records a line dropped from a cart because its
// product became inactive or ran out of stock. Returned alongside the
// filtered cart so callers are not silently out of sync.
type RemovedCartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
}

const (
	CartRemovalReasonInactive   = "product_inactive"
	CartRemovalReasonOutOfStock = "out_of_stock"
	CartRemovalReasonMissing    = "product_missing"
)
