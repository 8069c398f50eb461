package domain

import (
	"time"

	"github.com/google/uuid"
)

// Review is a product review. At most one review per (user, product);
// creation requires a delivered order containing the product.
type Review struct {
	ID         uuid.UUID `json:"id" db:"id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	ProductID  uuid.UUID `json:"product_id" db:"product_id"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    string    `json:"comment" db:"comment"`
	IsFiltered bool      `json:"is_filtered" db:"is_filtered"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
