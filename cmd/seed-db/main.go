package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/shop-api/internal/domain/auth"
	"github.com/xenking/shop-api/internal/domain/product"
	"github.com/xenking/shop-api/internal/repository"
)

type productJSON struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Image        string          `json:"image"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"countInStock"`
}

type options struct {
	databaseURL   string
	productsFile  string
	jwtSecret     string
	tokenTTL      time.Duration
	adminEmail    string
	customerEmail string
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or SHOP_DATABASE_URL, DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to products JSON file, optionally .gz compressed")
	flag.StringVar(&opts.jwtSecret, "jwt-secret", "", "HMAC secret for printing bearer tokens (or SHOP_AUTH_JWT_SECRET env)")
	flag.DurationVar(&opts.tokenTTL, "token-ttl", 720*time.Hour, "lifetime of printed tokens")
	flag.StringVar(&opts.adminEmail, "admin-email", "admin@example.com", "email of the seeded admin user")
	flag.StringVar(&opts.customerEmail, "customer-email", "john@example.com", "email of the seeded customer")
	flag.Parse()

	opts.databaseURL = firstNonEmpty(opts.databaseURL, os.Getenv("SHOP_DATABASE_URL"), os.Getenv("DATABASE_URL"))
	opts.jwtSecret = firstNonEmpty(opts.jwtSecret, os.Getenv("SHOP_AUTH_JWT_SECRET"))

	lg, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	lg.Info("Connecting to database")
	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	users := repository.NewUserRepository(pool)
	adminID, err := users.Upsert(ctx, auth.User{
		ID:      uuid.NewString(),
		Name:    "Admin User",
		Email:   opts.adminEmail,
		IsAdmin: true,
	})
	if err != nil {
		return errors.Wrap(err, "seed admin")
	}
	customerID, err := users.Upsert(ctx, auth.User{
		ID:    uuid.NewString(),
		Name:  "John Doe",
		Email: opts.customerEmail,
	})
	if err != nil {
		return errors.Wrap(err, "seed customer")
	}
	lg.Info("Upserted users", zap.String("admin", adminID), zap.String("customer", customerID))

	if err := seedProducts(ctx, lg, repository.NewProductRepository(pool), adminID, opts.productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if opts.jwtSecret == "" {
		lg.Info("No JWT secret given, skipping tokens")
		return nil
	}
	tokens := auth.NewTokens([]byte(opts.jwtSecret), opts.tokenTTL)
	for _, u := range []struct{ role, id string }{
		{"admin", adminID},
		{"customer", customerID},
	} {
		tok, err := tokens.Issue(u.id)
		if err != nil {
			return errors.Wrapf(err, "issue %s token", u.role)
		}
		fmt.Printf("%s\t%s\t%s\n", u.role, u.id, tok)
	}
	return nil
}

func seedProducts(ctx context.Context, lg *zap.Logger, repo *repository.ProductRepository, ownerID, path string) error {
	products, err := readProducts(path)
	if err != nil {
		return err
	}
	lg.Info("Upserting products", zap.String("path", path), zap.Int("count", len(products)))

	for _, p := range products {
		if err := repo.Upsert(ctx, &product.Product{
			ID:           p.ID,
			UserID:       ownerID,
			Name:         p.Name,
			Image:        p.Image,
			Brand:        p.Brand,
			Category:     p.Category,
			Description:  p.Description,
			Price:        p.Price,
			CountInStock: p.CountInStock,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		lg.Debug("Upserted product", zap.String("id", p.ID), zap.String("name", p.Name))
	}
	return nil
}

// readProducts decodes the product list, decompressing .gz files.
func readProducts(path string) ([]productJSON, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open products file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	var products []productJSON
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	for i, p := range products {
		if p.ID == "" || p.Name == "" {
			return nil, errors.Errorf("product %d: id and name are required", i)
		}
		if p.Price.IsNegative() || p.CountInStock < 0 {
			return nil, errors.Errorf("product %s: price and stock must not be negative", p.ID)
		}
	}
	return products, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
