// Package catalog is the product catalog's HTTP contract: the wire codec shared
// with the API handlers and the client used by the storefront.
package catalog

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

const maxBodySize = 1 << 20

// Config holds the client settings.
type Config struct {
	// BaseURL is the API origin, e.g. http://localhost:8080.
	BaseURL string
	// Timeout bounds each request, including reading the body. Zero disables it.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive transport or 5xx failures
	// that opens the circuit breaker. Defaults to 5.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	// Defaults to 30s.
	OpenTimeout time.Duration

	Transport      http.RoundTripper
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client reads products from the catalog API.
type Client struct {
	base    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a Client for cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("base url %q: scheme must be http or https", cfg.BaseURL)
	}

	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	var otelOpts []otelhttp.Option
	if cfg.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(cfg.MeterProvider))
	}

	lg := cfg.Logger
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &Client{
		base: base.String(),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(cfg.Transport, otelOpts...),
		},
		breaker: breaker,
	}, nil
}

// ProductBySlug fetches the product shown on a product screen.
func (c *Client) ProductBySlug(ctx context.Context, slug string) (*product.Product, error) {
	body, err := c.get(ctx, "/api/products/"+url.PathEscape(slug))
	if err != nil {
		return nil, errors.Wrapf(err, "get product by slug %q", slug)
	}
	return DecodeProduct(body)
}

// ProductByID fetches a product by identifier. It is the authoritative stock
// read used before adding to the cart.
func (c *Client) ProductByID(ctx context.Context, id string) (*product.Product, error) {
	body, err := c.get(ctx, "/api/products/product/"+url.PathEscape(id))
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return DecodeProduct(body)
}

// Products lists the whole catalog.
func (c *Client) Products(ctx context.Context) ([]product.Product, error) {
	body, err := c.get(ctx, "/api/products")
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return DecodeProducts(body)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, path)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	return body, err
}

func (c *Client) do(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Code:    resp.StatusCode,
			Message: decodeErrorMessage(body),
		}
	}
	return body, nil
}

// countsAsSuccess decides what the circuit breaker treats as a healthy call:
// client errors and caller cancellation are not the catalog's fault.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code < http.StatusInternalServerError
	}
	return errors.Is(err, context.Canceled)
}
