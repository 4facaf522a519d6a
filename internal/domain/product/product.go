package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrAlreadyReviewed is returned when a user reviews the same product twice.
	ErrAlreadyReviewed = errors.New("product already reviewed")
)

// Product represents a catalog item available for purchase. Price is the
// authoritative unit price used when orders are priced.
type Product struct {
	ID           string
	UserID       string
	Name         string
	Image        string
	Brand        string
	Category     string
	Description  string
	Price        decimal.Decimal
	CountInStock int
	Rating       decimal.Decimal
	NumReviews   int
	Reviews      []Review
	CreatedAt    time.Time
}

// Review is a single customer review. Each user may review a product once.
type Review struct {
	UserID    string
	Name      string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// Update holds the mutable fields of a product.
type Update struct {
	Name         string
	Price        decimal.Decimal
	Description  string
	Image        string
	Brand        string
	Category     string
	CountInStock int
}

// Page is one page of a catalog listing.
type Page struct {
	Products []Product
	Page     int
	Pages    int
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Search(ctx context.Context, keyword string, limit, offset int) ([]Product, error)
	Count(ctx context.Context, keyword string) (int, error)
	Top(ctx context.Context, limit int) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, id string, u Update) (*Product, error)
	Delete(ctx context.Context, id string) error
	// AddReview stores the review and refreshes the product's rating and
	// review count atomically.
	AddReview(ctx context.Context, productID string, r Review) error
}
