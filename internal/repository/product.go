package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-api/internal/domain/product"
)

const productColumns = `id, user_id, name, image, brand, category, description,
	price, count_in_stock, rating, num_reviews, created_at`

const (
	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	searchProductsSQL = `SELECT ` + productColumns + ` FROM products
	WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'
	ORDER BY created_at DESC, id
	LIMIT $2 OFFSET $3`

	countProductsSQL = `SELECT COUNT(*) FROM products WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'`

	topProductsSQL = `SELECT ` + productColumns + ` FROM products
	ORDER BY rating DESC, num_reviews DESC, id
	LIMIT $1`

	listReviewsSQL = `SELECT user_id, name, rating, comment, created_at
	FROM product_reviews WHERE product_id = $1 ORDER BY created_at`

	createProductSQL = `INSERT INTO products
	(id, user_id, name, image, brand, category, description, price, count_in_stock, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	upsertProductSQL = `INSERT INTO products
	(id, user_id, name, image, brand, category, description, price, count_in_stock)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		image = EXCLUDED.image,
		brand = EXCLUDED.brand,
		category = EXCLUDED.category,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		count_in_stock = EXCLUDED.count_in_stock`

	updateProductSQL = `UPDATE products SET
		name = $2, price = $3, description = $4, image = $5,
		brand = $6, category = $7, count_in_stock = $8
	WHERE id = $1
	RETURNING ` + productColumns

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	lockProductSQL = `SELECT id FROM products WHERE id = $1 FOR UPDATE`

	insertReviewSQL = `INSERT INTO product_reviews (product_id, user_id, name, rating, comment, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	refreshRatingSQL = `UPDATE products SET
		num_reviews = s.n,
		rating = s.avg
	FROM (
		SELECT COUNT(*) AS n, COALESCE(ROUND(AVG(rating), 2), 0) AS avg
		FROM product_reviews WHERE product_id = $1
	) s
	WHERE id = $1`
)

const reviewsPrimaryKey = "product_reviews_pkey"

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product with its reviews.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	rows, err = r.pool.Query(ctx, listReviewsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing reviews of %q: %w", id, err)
	}
	p.Reviews, err = pgx.CollectRows(rows, scanReview)
	if err != nil {
		return nil, fmt.Errorf("listing reviews of %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs, without reviews.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Search returns products whose name contains keyword, newest first.
func (r *ProductRepository) Search(ctx context.Context, keyword string, limit, offset int) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, searchProductsSQL, escapeLike(keyword), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("searching products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Count returns the number of products whose name contains keyword.
func (r *ProductRepository) Count(ctx context.Context, keyword string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countProductsSQL, escapeLike(keyword)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}

// Top returns the highest rated products.
func (r *ProductRepository) Top(ctx context.Context, limit int) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, topProductsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing top products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, createProductSQL,
		p.ID, p.UserID, p.Name, p.Image, p.Brand, p.Category, p.Description,
		p.Price, p.CountInStock, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Upsert inserts the product or overwrites the catalog fields of an existing
// product with the same ID. Ratings and reviews are left untouched.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.UserID, p.Name, p.Image, p.Brand, p.Category, p.Description,
		p.Price, p.CountInStock,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// Update overwrites the mutable fields of a product and returns the result.
func (r *ProductRepository) Update(ctx context.Context, id string, u product.Update) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, updateProductSQL,
		id, u.Name, u.Price, u.Description, u.Image, u.Brand, u.Category, u.CountInStock,
	)
	if err != nil {
		return nil, fmt.Errorf("updating product %q: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("updating product %q: %w", id, err)
	}
	return &p, nil
}

// Delete removes a product and its reviews.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// AddReview stores a review and refreshes the product's rating in one
// transaction. The product row is locked so concurrent reviews serialize.
func (r *ProductRepository) AddReview(ctx context.Context, productID string, rv product.Review) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var id string
		if err := tx.QueryRow(ctx, lockProductSQL, productID).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return product.ErrNotFound
			}
			return errors.Wrap(err, "lock product")
		}

		_, err := tx.Exec(ctx, insertReviewSQL,
			productID, rv.UserID, rv.Name, rv.Rating, rv.Comment, rv.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err, reviewsPrimaryKey) {
				return product.ErrAlreadyReviewed
			}
			return errors.Wrap(err, "insert review")
		}

		if _, err := tx.Exec(ctx, refreshRatingSQL, productID); err != nil {
			return errors.Wrap(err, "refresh rating")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, product.ErrNotFound) || errors.Is(err, product.ErrAlreadyReviewed) {
			return err
		}
		return fmt.Errorf("reviewing product %q: %w", productID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Image, &p.Brand, &p.Category, &p.Description,
		&p.Price, &p.CountInStock, &p.Rating, &p.NumReviews, &p.CreatedAt,
	)
	return p, err
}

func scanReview(row pgx.CollectableRow) (product.Review, error) {
	var rv product.Review
	err := row.Scan(&rv.UserID, &rv.Name, &rv.Rating, &rv.Comment, &rv.CreatedAt)
	return rv, err
}
