// Package handler exposes the shop services over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/shop-api/internal/domain/order"
	"github.com/xenking/shop-api/internal/domain/product"
)

// OrderService is the order API used by the handlers.
type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	Pay(ctx context.Context, req order.PayRequest) (*order.Order, error)
	ListMine(ctx context.Context, userID string) ([]order.Order, error)
	Get(ctx context.Context, id string, viewer order.Viewer) (*order.Order, error)
	ListAll(ctx context.Context) ([]order.Order, error)
	MarkDelivered(ctx context.Context, id string) (*order.Order, error)
}

// CatalogService is the catalog API used by the handlers.
type CatalogService interface {
	List(ctx context.Context, keyword string, page int) (*product.Page, error)
	Get(ctx context.Context, id string) (*product.Product, error)
	Top(ctx context.Context) ([]product.Product, error)
	CreateSample(ctx context.Context, userID string) (*product.Product, error)
	Update(ctx context.Context, id string, u product.Update) (*product.Product, error)
	Delete(ctx context.Context, id string) error
	AddReview(ctx context.Context, productID string, r product.Review) error
}

var (
	_ OrderService   = (*order.Service)(nil)
	_ CatalogService = (*product.Service)(nil)
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// PayPalClientID is handed to the browser SDK; it is not a secret.
	PayPalClientID string
}

// Handler serves the JSON API.
type Handler struct {
	orders         OrderService
	catalog        CatalogService
	paypalClientID string
}

// New constructs a Handler with the required domain dependencies.
func New(cfg Config, orders OrderService, catalog CatalogService) *Handler {
	return &Handler{
		orders:         orders,
		catalog:        catalog,
		paypalClientID: cfg.PayPalClientID,
	}
}

// Routes returns the API router. authn guards every non-public route.
func (h *Handler) Routes(authn *Authenticator) http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(authn.RequireUser)
		r.Post("/", h.createOrder)
		r.Get("/mine", h.listMyOrders)
		r.Get("/{id}", h.getOrder)
		r.Put("/{id}/pay", h.payOrder)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/", h.listOrders)
			r.Put("/{id}/deliver", h.deliverOrder)
		})
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Get("/top", h.topProducts)
		r.Get("/{id}", h.getProduct)

		r.Group(func(r chi.Router) {
			r.Use(authn.RequireUser)
			r.Post("/{id}/reviews", h.createReview)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/", h.createProduct)
				r.Put("/{id}", h.updateProduct)
				r.Delete("/{id}", h.deleteProduct)
			})
		})
	})

	r.Get("/config/paypal", h.paypalConfig)
	return r
}

func (h *Handler) paypalConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		ClientID string `json:"clientId"`
	}{h.paypalClientID})
}
