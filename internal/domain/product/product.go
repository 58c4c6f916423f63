package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item shown on the product screen.
type Product struct {
	ID          string
	Slug        string
	Name        string
	Category    string
	Price       decimal.Decimal
	Description string

	// CountInStock is the last-known inventory count. It is never negative.
	CountInStock int

	// Image is the primary image, Images the ordered additional ones.
	Image  string
	Images []string

	Rating     float64
	NumReviews int
}

// InStock reports whether the product can be offered for purchase.
func (p Product) InStock() bool {
	return p.CountInStock > 0
}

// Gallery returns the primary image followed by the additional images.
func (p Product) Gallery() []string {
	out := make([]string, 0, len(p.Images)+1)
	if p.Image != "" {
		out = append(out, p.Image)
	}
	return append(out, p.Images...)
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
}
