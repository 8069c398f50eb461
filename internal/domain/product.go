package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a product in the catalog. Stock is mutated only
// through the conditional-update primitives on the product repository;
// AverageRating and NumReviews are owned by the rating recompute.
type Product struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	Price         float64   `json:"price" db:"price"`
	SalePrice     *float64  `json:"sale_price,omitempty" db:"sale_price"`
	CategoryID    uuid.UUID `json:"category_id" db:"category_id"`
	ImageURL      string    `json:"image_url" db:"image_url"`
	Stock         int       `json:"stock" db:"stock"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	AverageRating float64   `json:"average_rating" db:"average_rating"`
	NumReviews    int       `json:"num_reviews" db:"num_reviews"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// EffectivePrice returns the price an order line is charged at: the
// sale price when one is set and lower than the list price.
func (p *Product) EffectivePrice() float64 {
	if p.SalePrice != nil && *p.SalePrice < p.Price {
		return *p.SalePrice
	}
	return p.Price
}

// Available reports whether the product may appear in a cart.
func (p *Product) Available() bool {
	return p.IsActive && p.Stock > 0
}

// Category represents a product category
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
