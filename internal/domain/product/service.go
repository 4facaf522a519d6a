package product

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize = 8
	topLimit        = 3

	// MaxStock is the largest stock count the catalog stores (INTEGER).
	MaxStock = math.MaxInt32
)

// MaxPrice is the largest unit price the catalog stores (NUMERIC(12,2)).
var MaxPrice = decimal.RequireFromString("9999999999.99")

// InvalidFieldError reports a rejected input field.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Service implements catalog browsing and administration.
type Service struct {
	repo     Repository
	pageSize int
	now      func() time.Time
}

// NewService creates a catalog Service. pageSize <= 0 uses the default of 8.
func NewService(repo Repository, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Service{repo: repo, pageSize: pageSize, now: time.Now}
}

// List returns one page of products whose name contains keyword
// (case-insensitive). Pages are numbered from 1; values below 1 select the
// first page.
func (s *Service) List(ctx context.Context, keyword string, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	keyword = strings.TrimSpace(keyword)

	var (
		total    int
		products []Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.Count(gctx, keyword)
		if err != nil {
			return errors.Wrap(err, "count products")
		}
		total = n
		return nil
	})
	g.Go(func() error {
		list, err := s.repo.Search(gctx, keyword, s.pageSize, s.pageSize*(page-1))
		if err != nil {
			return errors.Wrap(err, "search products")
		}
		products = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Page{
		Products: products,
		Page:     page,
		Pages:    (total + s.pageSize - 1) / s.pageSize,
	}, nil
}

// Get returns a product with its reviews.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Top returns the highest rated products.
func (s *Service) Top(ctx context.Context) ([]Product, error) {
	return s.repo.Top(ctx, topLimit)
}

// CreateSample creates a placeholder product owned by userID that an admin
// then edits through Update.
func (s *Service) CreateSample(ctx context.Context, userID string) (*Product, error) {
	p := &Product{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        "Sample name",
		Image:       "/images/sample.jpg",
		Brand:       "Sample brand",
		Category:    "Sample category",
		Description: "Sample description",
		Price:       decimal.Zero,
		Rating:      decimal.Zero,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Update validates and applies u to the product.
func (s *Service) Update(ctx context.Context, id string, u Update) (*Product, error) {
	u.Name = strings.TrimSpace(u.Name)
	switch {
	case u.Name == "":
		return nil, &InvalidFieldError{Field: "name", Reason: "required"}
	case u.Price.IsNegative():
		return nil, &InvalidFieldError{Field: "price", Reason: "must not be negative"}
	case u.Price.Round(2).GreaterThan(MaxPrice):
		return nil, &InvalidFieldError{Field: "price", Reason: "must not exceed " + MaxPrice.StringFixed(2)}
	case u.CountInStock < 0:
		return nil, &InvalidFieldError{Field: "countInStock", Reason: "must not be negative"}
	case u.CountInStock > MaxStock:
		return nil, &InvalidFieldError{Field: "countInStock", Reason: "too large"}
	}
	u.Price = u.Price.Round(2)
	return s.repo.Update(ctx, id, u)
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// AddReview records a review by the given user. Ratings range from 1 to 5.
func (s *Service) AddReview(ctx context.Context, productID string, r Review) error {
	if r.Rating < 1 || r.Rating > 5 {
		return &InvalidFieldError{Field: "rating", Reason: "must be between 1 and 5"}
	}
	r.Comment = strings.TrimSpace(r.Comment)
	r.CreatedAt = s.now()
	return s.repo.AddReview(ctx, productID, r)
}
