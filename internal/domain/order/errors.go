package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order operations.
var (
	ErrEmptyItems    = errors.New("no order items")
	ErrOrderNotFound = errors.New("order not found")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item quantity outside 1..MaxQuantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be between 1 and %d for product %s", MaxQuantity, e.ProductID)
}

// OrderTooLargeError indicates the order total exceeds MaxAmount.
type OrderTooLargeError struct {
	Total string
}

func (e *OrderTooLargeError) Error() string {
	return fmt.Sprintf("order total %s exceeds %s", e.Total, MaxAmount.StringFixed(2))
}

// PaymentNotVerifiedError indicates the processor did not confirm a completed
// capture, including transport failures and timeouts.
type PaymentNotVerifiedError struct {
	ConfirmationID string
	Reason         error
}

func (e *PaymentNotVerifiedError) Error() string {
	return fmt.Sprintf("payment %s not verified: %v", e.ConfirmationID, e.Reason)
}

func (e *PaymentNotVerifiedError) Unwrap() error { return e.Reason }

// DuplicateTransactionError indicates the confirmation ID already settled an order.
type DuplicateTransactionError struct {
	ConfirmationID string
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("transaction %s has already been used", e.ConfirmationID)
}

// AmountMismatchError indicates the captured amount differs from the order total.
type AmountMismatchError struct {
	OrderID  string
	Expected string
	Captured string
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("order %s: captured %s, expected %s", e.OrderID, e.Captured, e.Expected)
}

// AlreadyPaidError indicates a payment attempt on an order that is already paid.
type AlreadyPaidError struct {
	OrderID string
}

func (e *AlreadyPaidError) Error() string {
	return fmt.Sprintf("order %s is already paid", e.OrderID)
}
