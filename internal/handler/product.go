package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-api/internal/domain/product"
)

const maxPageNumber = 100000

type reviewResponse struct {
	User      string    `json:"user"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type productResponse struct {
	ID           string           `json:"id"`
	User         string           `json:"user"`
	Name         string           `json:"name"`
	Image        string           `json:"image"`
	Brand        string           `json:"brand"`
	Category     string           `json:"category"`
	Description  string           `json:"description"`
	Price        json.Number      `json:"price"`
	CountInStock int              `json:"countInStock"`
	Rating       json.Number      `json:"rating"`
	NumReviews   int              `json:"numReviews"`
	Reviews      []reviewResponse `json:"reviews"`
	CreatedAt    time.Time        `json:"createdAt"`
}

type productPageResponse struct {
	Products []productResponse `json:"products"`
	Page     int               `json:"page"`
	Pages    int               `json:"pages"`
}

type updateProductRequest struct {
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Description  string          `json:"description"`
	Image        string          `json:"image"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	CountInStock int             `json:"countInStock"`
}

type createReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func toProductResponse(p *product.Product) productResponse {
	reviews := make([]reviewResponse, len(p.Reviews))
	for i, rv := range p.Reviews {
		reviews[i] = reviewResponse{
			User:      rv.UserID,
			Name:      rv.Name,
			Rating:    rv.Rating,
			Comment:   rv.Comment,
			CreatedAt: rv.CreatedAt,
		}
	}
	return productResponse{
		ID:           p.ID,
		User:         p.UserID,
		Name:         p.Name,
		Image:        p.Image,
		Brand:        p.Brand,
		Category:     p.Category,
		Description:  p.Description,
		Price:        money(p.Price),
		CountInStock: p.CountInStock,
		Rating:       money(p.Rating),
		NumReviews:   p.NumReviews,
		Reviews:      reviews,
		CreatedAt:    p.CreatedAt,
	}
}

func toProductList(products []product.Product) []productResponse {
	out := make([]productResponse, len(products))
	for i := range products {
		out[i] = toProductResponse(&products[i])
	}
	return out
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := 1
	if raw := q.Get("pageNumber"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageNumber {
			handleError(w, r, badRequest("pageNumber must be an integer between 1 and "+strconv.Itoa(maxPageNumber)))
			return
		}
		page = n
	}
	res, err := h.catalog.List(r.Context(), q.Get("keyword"), page)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productPageResponse{
		Products: toProductList(res.Products),
		Page:     res.Page,
		Pages:    res.Pages,
	})
}

func (h *Handler) topProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.Top(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductList(products))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.CreateSample(r.Context(), currentUser(r).ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	p, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), product.Update{
		Name:         req.Name,
		Price:        req.Price,
		Description:  req.Description,
		Image:        req.Image,
		Brand:        req.Brand,
		Category:     req.Category,
		CountInStock: req.CountInStock,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Product removed"})
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	u := currentUser(r)
	err := h.catalog.AddReview(r.Context(), chi.URLParam(r, "id"), product.Review{
		UserID:  u.ID,
		Name:    u.Name,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Review added"})
}
