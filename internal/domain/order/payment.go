package order

import (
	"context"
	"time"
)

// CaptureCompleted is the processor status of a settled checkout.
const CaptureCompleted = "COMPLETED"

// Capture is the processor's view of a payment, as returned by a Verifier.
type Capture struct {
	ID         string
	Status     string
	Amount     string // decimal string with two fraction digits, e.g. "207.00"
	Currency   string
	PayerEmail string
	UpdateTime string
}

// Verifier looks up a payment confirmation at the processor. Implementations
// must return an error rather than a partial Capture when the lookup fails.
type Verifier interface {
	VerifyCapturedPayment(ctx context.Context, confirmationID string) (*Capture, error)
}

// PayRequest carries what the client reports after checkout. Only
// ConfirmationID is trusted as a lookup key; the remaining fields are used
// only where the processor reports nothing.
type PayRequest struct {
	OrderID        string
	ConfirmationID string
	Status         string
	UpdateTime     string
	PayerEmail     string
}

// Viewer identifies who is reading an order.
type Viewer struct {
	UserID  string
	IsAdmin bool
}

func (v Viewer) canRead(o *Order) bool {
	return v.IsAdmin || o.UserID == v.UserID
}

// paymentResult builds the stored result from processor-reported values.
func paymentResult(req PayRequest, c *Capture) PaymentResult {
	res := PaymentResult{
		ID:           req.ConfirmationID,
		Status:       c.Status,
		UpdateTime:   c.UpdateTime,
		EmailAddress: c.PayerEmail,
	}
	if res.UpdateTime == "" {
		res.UpdateTime = req.UpdateTime
	}
	if res.EmailAddress == "" {
		res.EmailAddress = req.PayerEmail
	}
	return res
}

const (
	defaultVerifyTimeout = 10 * time.Second
	defaultWriteTimeout  = 5 * time.Second
)
