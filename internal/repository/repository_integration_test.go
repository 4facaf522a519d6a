//go:build integration

package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/shop-api/internal/domain/auth"
	"github.com/xenking/shop-api/internal/domain/order"
	"github.com/xenking/shop-api/internal/domain/product"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "shop",
			"POSTGRES_PASSWORD": "shop",
			"POSTGRES_DB":       "shop",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://shop:shop@%s:%s/shop?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestRepositories(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()

	users := NewUserRepository(pool)
	products := NewProductRepository(pool)
	orders := NewOrderRepository(pool)

	adminID, err := users.Upsert(ctx, auth.User{ID: "u-admin", Name: "Admin", Email: "admin@example.com", IsAdmin: true})
	require.NoError(t, err)
	buyerID, err := users.Upsert(ctx, auth.User{ID: "u-buyer", Name: "Buyer", Email: "buyer@example.com"})
	require.NoError(t, err)

	t.Run("Users", func(t *testing.T) {
		u, err := users.FindByID(ctx, adminID)
		require.NoError(t, err)
		assert.True(t, u.IsAdmin)

		_, err = users.FindByID(ctx, "nobody")
		require.ErrorIs(t, err, auth.ErrUserNotFound)

		id, err := users.Upsert(ctx, auth.User{ID: "other", Name: "Buyer 2", Email: "buyer@example.com"})
		require.NoError(t, err)
		assert.Equal(t, buyerID, id)
	})

	for _, p := range []product.Product{
		{ID: "p1", UserID: adminID, Name: "Airpods 100% Wireless", Price: decimal.RequireFromString("89.99"), CountInStock: 10},
		{ID: "p2", UserID: adminID, Name: "iPhone 11 Pro", Price: decimal.RequireFromString("599.99"), CountInStock: 7},
		{ID: "p3", UserID: adminID, Name: "Cannon EOS 80D", Price: decimal.RequireFromString("929.99"), CountInStock: 5},
	} {
		require.NoError(t, products.Upsert(ctx, &p))
	}

	t.Run("Products", func(t *testing.T) {
		n, err := products.Count(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = products.Count(ctx, "IPHONE")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		// Wildcards in the keyword match literally.
		found, err := products.Search(ctx, "100%", 8, 0)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "p1", found[0].ID)

		n, err = products.Count(ctx, "_")
		require.NoError(t, err)
		assert.Zero(t, n)

		got, err := products.GetByIDs(ctx, []string{"p1", "p3", "missing"})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		_, err = products.GetByID(ctx, "missing")
		require.ErrorIs(t, err, product.ErrNotFound)

		updated, err := products.Update(ctx, "p3", product.Update{
			Name:         "Canon EOS 80D",
			Price:        decimal.RequireFromString("899.00"),
			CountInStock: 4,
		})
		require.NoError(t, err)
		assert.Equal(t, "Canon EOS 80D", updated.Name)
		assert.Equal(t, "899.00", updated.Price.StringFixed(2))

		_, err = products.Update(ctx, "missing", product.Update{Name: "x"})
		require.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("Reviews", func(t *testing.T) {
		now := time.Now().UTC()
		require.NoError(t, products.AddReview(ctx, "p2", product.Review{UserID: adminID, Name: "Admin", Rating: 5, CreatedAt: now}))
		require.NoError(t, products.AddReview(ctx, "p2", product.Review{UserID: buyerID, Name: "Buyer", Rating: 4, Comment: "ok", CreatedAt: now}))

		err := products.AddReview(ctx, "p2", product.Review{UserID: buyerID, Name: "Buyer", Rating: 1, CreatedAt: now})
		require.ErrorIs(t, err, product.ErrAlreadyReviewed)

		err = products.AddReview(ctx, "missing", product.Review{UserID: buyerID, Name: "Buyer", Rating: 1, CreatedAt: now})
		require.ErrorIs(t, err, product.ErrNotFound)

		p, err := products.GetByID(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, 2, p.NumReviews)
		assert.Equal(t, "4.50", p.Rating.StringFixed(2))
		assert.Len(t, p.Reviews, 2)

		top, err := products.Top(ctx, 3)
		require.NoError(t, err)
		require.NotEmpty(t, top)
		assert.Equal(t, "p2", top[0].ID)
	})

	newOrder := func(id string) *order.Order {
		return &order.Order{
			ID:              id,
			UserID:          buyerID,
			Items:           []order.Item{{ProductID: "p1", Name: "Airpods", Quantity: 2, Price: decimal.RequireFromString("89.99")}},
			ShippingAddress: order.ShippingAddress{Address: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
			PaymentMethod:   "PayPal",
			ItemsPrice:      decimal.RequireFromString("179.98"),
			TaxPrice:        decimal.RequireFromString("27.00"),
			ShippingPrice:   decimal.Zero,
			TotalPrice:      decimal.RequireFromString("206.98"),
			CreatedAt:       time.Now().UTC(),
		}
	}

	t.Run("Orders", func(t *testing.T) {
		require.NoError(t, orders.Create(ctx, newOrder("o1")))
		require.NoError(t, orders.Create(ctx, newOrder("o2")))

		o, err := orders.GetByID(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, "Buyer", o.Owner.Name)
		assert.Equal(t, "206.98", o.TotalPrice.StringFixed(2))
		require.Len(t, o.Items, 1)
		assert.Equal(t, "89.99", o.Items[0].Price.StringFixed(2))
		assert.Equal(t, "Springfield", o.ShippingAddress.City)
		assert.Nil(t, o.PaymentResult)

		_, err = orders.GetByID(ctx, "missing")
		require.ErrorIs(t, err, order.ErrOrderNotFound)

		mine, err := orders.ListByUser(ctx, buyerID)
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		res := order.PaymentResult{ID: "PAY-1", Status: "COMPLETED", UpdateTime: "t", EmailAddress: "b@example.com"}
		require.NoError(t, orders.MarkPaid(ctx, "o1", time.Now().UTC(), res))

		used, err := orders.ExistsPaymentResult(ctx, "PAY-1")
		require.NoError(t, err)
		assert.True(t, used)

		used, err = orders.ExistsPaymentResult(ctx, "pay-1")
		require.NoError(t, err)
		assert.False(t, used)

		var apErr *order.AlreadyPaidError
		require.ErrorAs(t, orders.MarkPaid(ctx, "o1", time.Now().UTC(), order.PaymentResult{ID: "PAY-2"}), &apErr)

		var dupErr *order.DuplicateTransactionError
		require.ErrorAs(t, orders.MarkPaid(ctx, "o2", time.Now().UTC(), res), &dupErr)

		require.ErrorIs(t, orders.MarkPaid(ctx, "missing", time.Now().UTC(), order.PaymentResult{ID: "PAY-3"}), order.ErrOrderNotFound)

		o, err = orders.GetByID(ctx, "o1")
		require.NoError(t, err)
		assert.True(t, o.IsPaid)
		require.NotNil(t, o.PaymentResult)
		assert.Equal(t, "PAY-1", o.PaymentResult.ID)

		require.NoError(t, orders.MarkDelivered(ctx, "o1", time.Now().UTC()))
		require.ErrorIs(t, orders.MarkDelivered(ctx, "missing", time.Now().UTC()), order.ErrOrderNotFound)
	})

	t.Run("ConcurrentReplay", func(t *testing.T) {
		ids := []string{"c1", "c2", "c3", "c4"}
		for _, id := range ids {
			require.NoError(t, orders.Create(ctx, newOrder(id)))
		}

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			paid int
		)
		for _, id := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := orders.MarkPaid(ctx, id, time.Now().UTC(), order.PaymentResult{ID: "PAY-RACE"})
				if err == nil {
					mu.Lock()
					paid++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, paid)
	})
}
