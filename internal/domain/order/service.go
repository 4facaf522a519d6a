package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/shop-api/internal/domain/product"
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	Pricing Pricing
	// VerifyTimeout bounds the processor lookup.
	VerifyTimeout time.Duration
	// WriteTimeout bounds the paid-state write, which is detached from
	// request cancellation.
	WriteTimeout time.Duration
	// Currency, when set, must match the captured currency.
	Currency string

	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

func (o *Options) setDefaults() {
	if o.Pricing == (Pricing{}) {
		o.Pricing = DefaultPricing()
	}
	if o.VerifyTimeout <= 0 {
		o.VerifyTimeout = defaultVerifyTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.MeterProvider == nil {
		o.MeterProvider = metricnoop.NewMeterProvider()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
}

// Service encapsulates order placement, settlement and fulfilment.
type Service struct {
	products  product.Repository
	orders    Repository
	verifier  Verifier
	publisher Publisher
	opts      Options
	now       func() time.Time

	tracer   trace.Tracer
	placed   metric.Int64Counter
	payments metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	orders Repository,
	verifier Verifier,
	publisher Publisher,
	opts Options,
) (*Service, error) {
	opts.setDefaults()

	meter := opts.MeterProvider.Meter("shop.order")
	placed, err := meter.Int64Counter("shop.orders.placed",
		metric.WithDescription("Orders placed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	payments, err := meter.Int64Counter("shop.orders.payments",
		metric.WithDescription("Payment attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "payments counter")
	}

	return &Service{
		products:  products,
		orders:    orders,
		verifier:  verifier,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
		tracer:    opts.TracerProvider.Tracer("shop.order"),
		placed:    placed,
		payments:  payments,
	}, nil
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	UserID          string
	Items           []LineItem
	ShippingAddress ShippingAddress
	PaymentMethod   string
}

// PlaceOrder prices the requested items from the catalog, persists an unpaid
// order and returns it.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer span.End()

	items, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	totals := s.opts.Pricing.Calc(items)
	if totals.TotalPrice.GreaterThan(MaxAmount) {
		return nil, &OrderTooLargeError{Total: totals.TotalPrice.StringFixed(2)}
	}

	o := &Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      totals.ItemsPrice,
		TaxPrice:        totals.TaxPrice,
		ShippingPrice:   totals.ShippingPrice,
		TotalPrice:      totals.TotalPrice,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.placed.Add(ctx, 1)
	span.SetAttributes(attribute.String("order.id", o.ID))

	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("total", o.TotalPrice.StringFixed(2)),
		zap.Int("items", len(o.Items)),
	)
	s.publish(ctx, EventCreated, o)
	return o, nil
}

// priceItems validates line items and resolves authoritative unit prices in
// a single batch lookup.
func (s *Service) priceItems(ctx context.Context, lines []LineItem) ([]Item, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 || line.Quantity > MaxQuantity {
			return nil, &InvalidQuantityError{ProductID: line.ProductID}
		}
		ids[i] = line.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]Item, len(lines))
	for i, line := range lines {
		p, ok := byID[line.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: line.ProductID}
		}
		items[i] = Item{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.Image,
			Quantity:  line.Quantity,
			Price:     p.Price,
		}
	}
	return items, nil
}

// Pay settles an order with a processor confirmation. The order becomes paid
// only if the processor reports a completed capture whose amount equals the
// stored total and the confirmation has never settled any order.
func (s *Service) Pay(ctx context.Context, req PayRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Pay",
		trace.WithAttributes(attribute.String("order.id", req.OrderID)),
	)
	defer func() {
		outcome := paymentOutcome(rerr)
		s.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	lg := zctx.From(ctx).With(
		zap.String("order_id", req.OrderID),
		zap.String("confirmation_id", req.ConfirmationID),
	)

	capture, err := s.verify(ctx, req.ConfirmationID)
	if err != nil {
		lg.Warn("Payment not verified", zap.Error(err))
		return nil, err
	}

	used, err := s.orders.ExistsPaymentResult(ctx, req.ConfirmationID)
	if err != nil {
		return nil, fmt.Errorf("check payment result: %w", err)
	}
	if used {
		lg.Warn("Confirmation replayed")
		return nil, &DuplicateTransactionError{ConfirmationID: req.ConfirmationID}
	}

	o, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if o.IsPaid {
		return nil, &AlreadyPaidError{OrderID: o.ID}
	}

	expected := o.TotalPrice.StringFixed(2)
	if capture.Amount != expected ||
		(s.opts.Currency != "" && capture.Currency != s.opts.Currency) {
		lg.Warn("Captured amount mismatch",
			zap.String("expected", expected),
			zap.String("captured", capture.Amount),
			zap.String("currency", capture.Currency),
		)
		return nil, &AmountMismatchError{OrderID: o.ID, Expected: expected, Captured: capture.Amount}
	}

	paidAt := s.now().UTC()
	res := paymentResult(req, capture)

	// Once verified, the write must not be abandoned halfway by a client
	// disconnect.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.WriteTimeout)
	defer cancel()
	if err := s.orders.MarkPaid(wctx, o.ID, paidAt, res); err != nil {
		return nil, errors.Wrap(err, "mark paid")
	}

	o.IsPaid = true
	o.PaidAt = &paidAt
	o.PaymentResult = &res

	lg.Info("Order paid", zap.String("total", expected))
	s.publish(wctx, EventPaid, o)
	return o, nil
}

func (s *Service) verify(ctx context.Context, confirmationID string) (*Capture, error) {
	if confirmationID == "" {
		return nil, &PaymentNotVerifiedError{Reason: errors.New("empty confirmation id")}
	}

	vctx, cancel := context.WithTimeout(ctx, s.opts.VerifyTimeout)
	defer cancel()

	capture, err := s.verifier.VerifyCapturedPayment(vctx, confirmationID)
	if err != nil {
		return nil, &PaymentNotVerifiedError{ConfirmationID: confirmationID, Reason: err}
	}
	switch {
	case capture == nil:
		err = errors.New("no capture returned")
	case capture.ID != confirmationID:
		err = errors.Errorf("processor returned capture %q", capture.ID)
	case capture.Status != CaptureCompleted:
		err = errors.Errorf("status %q", capture.Status)
	}
	if err != nil {
		return nil, &PaymentNotVerifiedError{ConfirmationID: confirmationID, Reason: err}
	}
	return capture, nil
}

func paymentOutcome(err error) string {
	var (
		notVerified *PaymentNotVerifiedError
		duplicate   *DuplicateTransactionError
		mismatch    *AmountMismatchError
		alreadyPaid *AlreadyPaidError
	)
	switch {
	case err == nil:
		return "paid"
	case errors.As(err, &notVerified):
		return "not_verified"
	case errors.As(err, &duplicate):
		return "duplicate"
	case errors.As(err, &mismatch):
		return "amount_mismatch"
	case errors.As(err, &alreadyPaid):
		return "already_paid"
	case errors.Is(err, ErrOrderNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// ListMine returns the orders placed by userID, newest first.
func (s *Service) ListMine(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list user orders")
	}
	return orders, nil
}

// Get returns an order visible to the viewer. Orders of other users are
// reported as not found unless the viewer is an admin.
func (s *Service) Get(ctx context.Context, id string, viewer Viewer) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if !viewer.canRead(o) {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// ListAll returns every order, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// MarkDelivered records delivery of an order.
func (s *Service) MarkDelivered(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	at := s.now().UTC()
	if err := s.orders.MarkDelivered(ctx, id, at); err != nil {
		return nil, errors.Wrap(err, "mark delivered")
	}
	o.IsDelivered = true
	o.DeliveredAt = &at

	zctx.From(ctx).Info("Order delivered", zap.String("order_id", id))
	s.publish(ctx, EventDelivered, o)
	return o, nil
}

func (s *Service) publish(ctx context.Context, typ EventType, o *Order) {
	if s.publisher == nil {
		return
	}
	e := Event{
		Type:       typ,
		OrderID:    o.ID,
		UserID:     o.UserID,
		TotalPrice: o.TotalPrice,
		At:         s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		zctx.From(ctx).Warn("Publish order event",
			zap.String("type", string(typ)),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}
