package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a customer order. Prices are fixed when the order is placed and
// never recomputed; TotalPrice is the only amount compared with a payment
// capture.
type Order struct {
	ID              string
	UserID          string
	Owner           Owner
	Items           []Item
	ShippingAddress ShippingAddress
	PaymentMethod   string

	ItemsPrice    decimal.Decimal
	TaxPrice      decimal.Decimal
	ShippingPrice decimal.Decimal
	TotalPrice    decimal.Decimal

	IsPaid        bool
	PaidAt        *time.Time
	PaymentResult *PaymentResult

	IsDelivered bool
	DeliveredAt *time.Time

	CreatedAt time.Time
}

// Owner holds the ordering user's public fields, populated on reads.
type Owner struct {
	ID    string
	Name  string
	Email string
}

// Item is a persisted line item. Price is the catalog unit price at the time
// the order was placed.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// LineItem is what a client may claim about an order line. It deliberately
// carries no price.
type LineItem struct {
	ProductID string
	Quantity  int
}

// ShippingAddress is stored as submitted.
type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// PaymentResult records the processor capture that settled the order.
type PaymentResult struct {
	ID           string
	Status       string
	UpdateTime   string
	EmailAddress string
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// GetByID returns the order with Owner populated, or ErrOrderNotFound.
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	// ExistsPaymentResult reports whether any order was settled by the given
	// confirmation ID (exact match).
	ExistsPaymentResult(ctx context.Context, confirmationID string) (bool, error)
	// MarkPaid flips an unpaid order to paid in a single statement. It returns
	// *DuplicateTransactionError when the confirmation ID already settled
	// another order and *AlreadyPaidError when the order is no longer unpaid.
	MarkPaid(ctx context.Context, id string, paidAt time.Time, res PaymentResult) error
	// MarkDelivered returns ErrOrderNotFound when no order has the given ID.
	MarkDelivered(ctx context.Context, id string, at time.Time) error
}

// EventType names an order lifecycle event.
type EventType string

const (
	EventCreated   EventType = "order.created"
	EventPaid      EventType = "order.paid"
	EventDelivered EventType = "order.delivered"
)

// Event is emitted after an order state change has been persisted.
type Event struct {
	Type       EventType       `json:"type"`
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	At         time.Time       `json:"at"`
}

// Publisher delivers order events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
