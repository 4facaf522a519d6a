// Package paypal looks up checkout orders at the PayPal REST API.
package paypal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/xenking/shop-api/internal/domain/order"
)

// API base URLs.
const (
	SandboxURL = "https://api-m.sandbox.paypal.com"
	LiveURL    = "https://api-m.paypal.com"
)

const maxBodySize = 1 << 20

// ErrNotFound is returned when PayPal does not know the checkout order.
var ErrNotFound = errors.New("paypal order not found")

// Config holds PayPal REST credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// Options configures optional Client dependencies.
type Options struct {
	// Transport is the base round tripper. Defaults to http.DefaultTransport.
	Transport      http.RoundTripper
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

var _ order.Verifier = (*Client)(nil)

// Client verifies payment confirmations against PayPal.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client that authenticates with OAuth2 client
// credentials. Access tokens are cached and refreshed on expiry.
func NewClient(cfg Config, opts Options) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("paypal client id and secret are required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = SandboxURL
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	var otelOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}
	if opts.MeterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
	}
	transport := otelhttp.NewTransport(base, otelOpts...)

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// The token source uses this client for token requests and wraps its
	// transport for API calls.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: transport})

	return &Client{
		baseURL: baseURL,
		http:    cc.Client(ctx),
	}, nil
}

// VerifyCapturedPayment fetches the checkout order identified by
// confirmationID. The caller decides whether the returned status and amount
// are acceptable.
func (c *Client) VerifyCapturedPayment(ctx context.Context, confirmationID string) (*order.Capture, error) {
	u := c.baseURL + "/v2/checkout/orders/" + url.PathEscape(confirmationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "get checkout order")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, decodeError(resp.StatusCode, body)
	}

	capture, err := decodeCheckoutOrder(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode checkout order")
	}
	return capture, nil
}

// APIError is a non-success PayPal response.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("paypal: status %d", e.StatusCode)
	}
	return fmt.Sprintf("paypal: status %d: %s: %s", e.StatusCode, e.Name, e.Message)
}
