package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/shop-api/internal/domain/order"
)

// orderItemRequest is a client line item. It has no price field, and unknown
// fields are rejected when decoding.
type orderItemRequest struct {
	Product string `json:"product"`
	Qty     int    `json:"qty"`
}

type shippingAddressJSON struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type createOrderRequest struct {
	OrderItems      []orderItemRequest  `json:"orderItems"`
	ShippingAddress shippingAddressJSON `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
}

func (req *createOrderRequest) validate() error {
	a := req.ShippingAddress
	for _, f := range []struct{ name, value string }{
		{"shippingAddress.address", a.Address},
		{"shippingAddress.city", a.City},
		{"shippingAddress.postalCode", a.PostalCode},
		{"shippingAddress.country", a.Country},
		{"paymentMethod", req.PaymentMethod},
	} {
		if strings.TrimSpace(f.value) == "" {
			return badRequest(f.name + " is required")
		}
	}
	return nil
}

type payOrderRequest struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	UpdateTime string `json:"update_time"`
	Payer      struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

type userRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type orderItemResponse struct {
	Product string      `json:"product"`
	Name    string      `json:"name"`
	Image   string      `json:"image"`
	Qty     int         `json:"qty"`
	Price   json.Number `json:"price"`
}

type paymentResultResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

type orderResponse struct {
	ID              string                 `json:"id"`
	User            userRef                `json:"user"`
	OrderItems      []orderItemResponse    `json:"orderItems"`
	ShippingAddress shippingAddressJSON    `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	PaymentResult   *paymentResultResponse `json:"paymentResult,omitempty"`
	ItemsPrice      json.Number            `json:"itemsPrice"`
	TaxPrice        json.Number            `json:"taxPrice"`
	ShippingPrice   json.Number            `json:"shippingPrice"`
	TotalPrice      json.Number            `json:"totalPrice"`
	IsPaid          bool                   `json:"isPaid"`
	PaidAt          *time.Time             `json:"paidAt,omitempty"`
	IsDelivered     bool                   `json:"isDelivered"`
	DeliveredAt     *time.Time             `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			Product: it.ProductID,
			Name:    it.Name,
			Image:   it.Image,
			Qty:     it.Quantity,
			Price:   money(it.Price),
		}
	}
	resp := orderResponse{
		ID:         o.ID,
		User:       userRef{ID: o.UserID, Name: o.Owner.Name, Email: o.Owner.Email},
		OrderItems: items,
		ShippingAddress: shippingAddressJSON{
			Address:    o.ShippingAddress.Address,
			City:       o.ShippingAddress.City,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
		PaymentMethod: o.PaymentMethod,
		ItemsPrice:    money(o.ItemsPrice),
		TaxPrice:      money(o.TaxPrice),
		ShippingPrice: money(o.ShippingPrice),
		TotalPrice:    money(o.TotalPrice),
		IsPaid:        o.IsPaid,
		PaidAt:        o.PaidAt,
		IsDelivered:   o.IsDelivered,
		DeliveredAt:   o.DeliveredAt,
		CreatedAt:     o.CreatedAt,
	}
	if pr := o.PaymentResult; pr != nil {
		resp.PaymentResult = &paymentResultResponse{
			ID:           pr.ID,
			Status:       pr.Status,
			UpdateTime:   pr.UpdateTime,
			EmailAddress: pr.EmailAddress,
		}
	}
	return resp
}

func toOrderList(orders []order.Order, withEmail bool) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
		if !withEmail {
			out[i].User.Email = ""
		}
	}
	return out
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if len(req.OrderItems) == 0 {
		handleError(w, r, order.ErrEmptyItems)
		return
	}
	if err := req.validate(); err != nil {
		handleError(w, r, err)
		return
	}

	items := make([]order.LineItem, len(req.OrderItems))
	for i, it := range req.OrderItems {
		items[i] = order.LineItem{ProductID: it.Product, Quantity: it.Qty}
	}
	u := currentUser(r)
	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID: u.ID,
		Items:  items,
		ShippingAddress: order.ShippingAddress{
			Address:    req.ShippingAddress.Address,
			City:       req.ShippingAddress.City,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
		},
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	o.Owner = order.Owner{ID: u.ID, Name: u.Name, Email: u.Email}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListMine(r.Context(), currentUser(r).ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(orders, true))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), order.Viewer{UserID: u.ID, IsAdmin: u.IsAdmin})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	var req payOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		handleError(w, r, badRequest("id is required"))
		return
	}

	o, err := h.orders.Pay(r.Context(), order.PayRequest{
		OrderID:        chi.URLParam(r, "id"),
		ConfirmationID: req.ID,
		Status:         req.Status,
		UpdateTime:     req.UpdateTime,
		PayerEmail:     req.Payer.EmailAddress,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(orders, false))
}

func (h *Handler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.MarkDelivered(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
