package product

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockRepo struct {
	mu       sync.Mutex
	products []Product
	reviews  map[string][]Review
	countErr error

	lastLimit, lastOffset int
	created              *Product
	updated              *Update
}

func newMockRepo(products ...Product) *mockRepo {
	return &mockRepo{products: products, reviews: make(map[string][]Review)}
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Product, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			p := m.products[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetByIDs(_ context.Context, ids []string) ([]Product, error) {
	var out []Product
	for _, id := range ids {
		if p, err := m.GetByID(context.Background(), id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepo) filter(keyword string) []Product {
	var out []Product
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(keyword)) {
			out = append(out, p)
		}
	}
	return out
}

func (m *mockRepo) Search(_ context.Context, keyword string, limit, offset int) ([]Product, error) {
	m.mu.Lock()
	m.lastLimit, m.lastOffset = limit, offset
	m.mu.Unlock()

	all := m.filter(keyword)
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (m *mockRepo) Count(_ context.Context, keyword string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.filter(keyword)), nil
}

func (m *mockRepo) Top(_ context.Context, limit int) ([]Product, error) {
	return m.products[:min(limit, len(m.products))], nil
}

func (m *mockRepo) Create(_ context.Context, p *Product) error {
	m.created = p
	return nil
}

func (m *mockRepo) Update(_ context.Context, id string, u Update) (*Product, error) {
	p, err := m.GetByID(context.Background(), id)
	if err != nil {
		return nil, err
	}
	m.updated = &u
	p.Name, p.Price = u.Name, u.Price
	return p, nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	_, err := m.GetByID(context.Background(), id)
	return err
}

func (m *mockRepo) AddReview(_ context.Context, productID string, r Review) error {
	if _, err := m.GetByID(context.Background(), productID); err != nil {
		return err
	}
	for _, existing := range m.reviews[productID] {
		if existing.UserID == r.UserID {
			return ErrAlreadyReviewed
		}
	}
	m.reviews[productID] = append(m.reviews[productID], r)
	return nil
}

// --- Helpers ---

func namedProducts(names ...string) []Product {
	out := make([]Product, len(names))
	for i, n := range names {
		out[i] = Product{ID: n, Name: n, Price: decimal.NewFromInt(int64(i + 1))}
	}
	return out
}

// --- Tests ---

func TestService_List_Pagination(t *testing.T) {
	repo := newMockRepo(namedProducts("a1", "a2", "a3", "a4", "a5")...)
	svc := NewService(repo, 2)

	page, err := svc.List(context.Background(), "", 3)
	require.NoError(t, err)

	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 3, page.Pages)
	assert.Equal(t, 2, repo.lastLimit)
	assert.Equal(t, 4, repo.lastOffset)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "a5", page.Products[0].ID)
}

func TestService_List_KeywordAndPageClamp(t *testing.T) {
	repo := newMockRepo(namedProducts("Mouse", "Camera", "mousepad")...)
	svc := NewService(repo, 0)

	page, err := svc.List(context.Background(), "  MOUSE ", -4)
	require.NoError(t, err)

	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.Pages)
	assert.Len(t, page.Products, 2)
	assert.Equal(t, defaultPageSize, repo.lastLimit)
	assert.Equal(t, 0, repo.lastOffset)
}

func TestService_List_Empty(t *testing.T) {
	svc := NewService(newMockRepo(), 8)

	page, err := svc.List(context.Background(), "nothing", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Pages)
	assert.Empty(t, page.Products)
}

func TestService_List_CountError(t *testing.T) {
	repo := newMockRepo()
	repo.countErr = errors.New("db down")
	svc := NewService(repo, 8)

	_, err := svc.List(context.Background(), "", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count products")
}

func TestService_CreateSample(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, 8)

	p, err := svc.CreateSample(context.Background(), "admin-1")
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "admin-1", p.UserID)
	assert.True(t, p.Price.IsZero())
	assert.Same(t, p, repo.created)
}

func TestService_Update(t *testing.T) {
	tests := []struct {
		name      string
		update    Update
		wantField string
	}{
		{name: "empty name", update: Update{Name: "  ", Price: decimal.NewFromInt(1)}, wantField: "name"},
		{name: "negative price", update: Update{Name: "x", Price: decimal.NewFromInt(-1)}, wantField: "price"},
		{name: "negative stock", update: Update{Name: "x", CountInStock: -1}, wantField: "countInStock"},
		{name: "price above column range", update: Update{Name: "x", Price: decimal.RequireFromString("10000000000")}, wantField: "price"},
		{name: "price rounding above range", update: Update{Name: "x", Price: decimal.RequireFromString("9999999999.995")}, wantField: "price"},
		{name: "stock above column range", update: Update{Name: "x", CountInStock: MaxStock + 1}, wantField: "countInStock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newMockRepo(namedProducts("p1")...), 8)

			_, err := svc.Update(context.Background(), "p1", tt.update)

			var fieldErr *InvalidFieldError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, tt.wantField, fieldErr.Field)
		})
	}

	t.Run("rounds price to cents", func(t *testing.T) {
		repo := newMockRepo(namedProducts("p1")...)
		svc := NewService(repo, 8)

		p, err := svc.Update(context.Background(), "p1", Update{
			Name:  "Widget",
			Price: decimal.RequireFromString("10.005"),
		})
		require.NoError(t, err)
		assert.Equal(t, "10.01", p.Price.StringFixed(2))
		assert.Equal(t, "Widget", repo.updated.Name)
	})

	t.Run("max price accepted", func(t *testing.T) {
		repo := newMockRepo(namedProducts("p1")...)
		svc := NewService(repo, 8)

		_, err := svc.Update(context.Background(), "p1", Update{Name: "x", Price: MaxPrice})
		require.NoError(t, err)
		assert.True(t, repo.updated.Price.Equal(MaxPrice))
	})

	t.Run("missing product", func(t *testing.T) {
		svc := NewService(newMockRepo(), 8)

		_, err := svc.Update(context.Background(), "nope", Update{Name: "x"})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_AddReview(t *testing.T) {
	t.Run("rating out of range", func(t *testing.T) {
		svc := NewService(newMockRepo(namedProducts("p1")...), 8)

		err := svc.AddReview(context.Background(), "p1", Review{UserID: "u1", Rating: 6})

		var fieldErr *InvalidFieldError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "rating", fieldErr.Field)
	})

	t.Run("second review by same user", func(t *testing.T) {
		repo := newMockRepo(namedProducts("p1")...)
		svc := NewService(repo, 8)

		require.NoError(t, svc.AddReview(context.Background(), "p1", Review{UserID: "u1", Rating: 5}))
		err := svc.AddReview(context.Background(), "p1", Review{UserID: "u1", Rating: 1})

		require.ErrorIs(t, err, ErrAlreadyReviewed)
		assert.Len(t, repo.reviews["p1"], 1)
	})

	t.Run("unknown product", func(t *testing.T) {
		svc := NewService(newMockRepo(), 8)

		err := svc.AddReview(context.Background(), "p1", Review{UserID: "u1", Rating: 3})
		require.ErrorIs(t, err, ErrNotFound)
	})
}
