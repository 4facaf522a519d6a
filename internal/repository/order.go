package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-api/internal/domain/order"
)

const orderSelect = `SELECT o.id, o.user_id, u.name, u.email,
	o.items, o.shipping_address, o.payment_method,
	o.items_price, o.tax_price, o.shipping_price, o.total_price,
	o.is_paid, o.paid_at,
	o.payment_result_id, o.payment_status, o.payment_update_time, o.payment_email_address,
	o.is_delivered, o.delivered_at, o.created_at
FROM orders o JOIN users u ON u.id = o.user_id`

const (
	createOrderSQL = `INSERT INTO orders
	(id, user_id, items, shipping_address, payment_method,
	 items_price, tax_price, shipping_price, total_price, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	getOrderByIDSQL = orderSelect + ` WHERE o.id = $1`

	listOrdersByUserSQL = orderSelect + ` WHERE o.user_id = $1 ORDER BY o.created_at DESC`

	listOrdersSQL = orderSelect + ` ORDER BY o.created_at DESC`

	existsPaymentResultSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE payment_result_id = $1)`

	existsOrderSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	markPaidSQL = `UPDATE orders SET
		is_paid = TRUE,
		paid_at = $2,
		payment_result_id = $3,
		payment_status = $4,
		payment_update_time = $5,
		payment_email_address = $6
	WHERE id = $1 AND is_paid = FALSE`

	markDeliveredSQL = `UPDATE orders SET is_delivered = TRUE, delivered_at = $2 WHERE id = $1`
)

const paymentResultKey = "orders_payment_result_id_key"

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Items and the shipping address are serialized
// to JSON for storage in JSONB columns.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	addrJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, itemsJSON, addrJSON, o.PaymentMethod,
		o.ItemsPrice, o.TaxPrice, o.ShippingPrice, o.TotalPrice, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns the order with its owner populated.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListAll returns every order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ExistsPaymentResult reports whether the confirmation ID settled any order.
func (r *OrderRepository) ExistsPaymentResult(ctx context.Context, confirmationID string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, existsPaymentResultSQL, confirmationID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking payment result: %w", err)
	}
	return exists, nil
}

// MarkPaid transitions an unpaid order to paid. The unique index on
// payment_result_id rejects a confirmation that raced onto another order.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time, res order.PaymentResult) error {
	tag, err := r.pool.Exec(ctx, markPaidSQL,
		id, paidAt, res.ID, res.Status, res.UpdateTime, res.EmailAddress,
	)
	if err != nil {
		if isUniqueViolation(err, paymentResultKey) {
			return &order.DuplicateTransactionError{ConfirmationID: res.ID}
		}
		return fmt.Errorf("marking order %q paid: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, existsOrderSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return order.ErrOrderNotFound
	}
	return &order.AlreadyPaidError{OrderID: id}
}

// MarkDelivered records delivery of an order.
func (r *OrderRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, markDeliveredSQL, id, at)
	if err != nil {
		return fmt.Errorf("marking order %q delivered: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                         order.Order
		itemsJSON, addrJSON       []byte
		resID, resStatus, resTime *string
		resEmail                  *string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Owner.Name, &o.Owner.Email,
		&itemsJSON, &addrJSON, &o.PaymentMethod,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.IsPaid, &o.PaidAt,
		&resID, &resStatus, &resTime, &resEmail,
		&o.IsDelivered, &o.DeliveredAt, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Owner.ID = o.UserID

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items of %q: %w", o.ID, err)
	}
	if err := json.Unmarshal(addrJSON, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address of %q: %w", o.ID, err)
	}
	if resID != nil {
		o.PaymentResult = &order.PaymentResult{
			ID:           *resID,
			Status:       deref(resStatus),
			UpdateTime:   deref(resTime),
			EmailAddress: deref(resEmail),
		}
	}
	return o, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
