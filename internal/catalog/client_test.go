package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

const shirtJSON = `{
	"_id": "p1",
	"slug": "nike-slim-shirt",
	"name": "Nike Slim Shirt",
	"category": "Shirts",
	"price": 120.50,
	"countInStock": 10,
	"image": "/images/p1.jpg",
	"images": ["/images/p1-a.jpg", "/images/p1-b.jpg"],
	"rating": 4.5,
	"numReviews": 10,
	"description": "high quality shirt",
	"brand": "Nike"
}`

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "localhost:8080"})
	require.Error(t, err)

	_, err = NewClient(Config{BaseURL: "ftp://catalog"})
	require.Error(t, err)
}

func TestClient_ProductBySlug(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(shirtJSON))
	}))

	p, err := c.ProductBySlug(context.Background(), "nike-slim-shirt")
	require.NoError(t, err)

	assert.Equal(t, "/api/products/nike-slim-shirt", gotPath)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "Nike Slim Shirt", p.Name)
	assert.True(t, decimal.RequireFromString("120.50").Equal(p.Price))
	assert.Equal(t, 10, p.CountInStock)
	assert.Equal(t, []string{"/images/p1-a.jpg", "/images/p1-b.jpg"}, p.Images)
	assert.InDelta(t, 4.5, p.Rating, 0.0001)
	assert.Equal(t, 10, p.NumReviews)
}

func TestClient_ProductByID(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"_id":"p1","countInStock":3}`))
	}))

	p, err := c.ProductByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "/api/products/product/p1", gotPath)
	assert.Equal(t, 3, p.CountInStock)
}

func TestClient_Products(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		_, _ = w.Write([]byte(`[` + shirtJSON + `,{"_id":"p2","slug":"adidas-fit-pant","price":"65"}]`))
	}))

	products, err := c.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "adidas-fit-pant", products[1].Slug)
	assert.True(t, decimal.NewFromInt(65).Equal(products[1].Price))
}

func TestClient_NotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":404,"message":"Product Not Found"}`))
	}))

	_, err := c.ProductBySlug(context.Background(), "unknown-slug")
	require.Error(t, err)
	assert.ErrorIs(t, err, product.ErrNotFound)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "Product Not Found", ErrorMessage(err))
}

func TestClient_ServerErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.ProductBySlug(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, product.ErrNotFound)
	assert.Contains(t, ErrorMessage(err), "status 502")
}

func TestClient_DecodeFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))

	_, err := c.ProductBySlug(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode product")
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.ProductByID(context.Background(), "p1")
	require.Error(t, err)
	assert.NotEmpty(t, ErrorMessage(err))
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, FailureThreshold: 2, OpenTimeout: time.Minute})
	require.NoError(t, err)

	ctx := context.Background()
	for range 2 {
		_, err := c.ProductByID(ctx, "p1")
		require.Error(t, err)
	}

	_, err = c.ProductByID(ctx, "p1")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_BreakerIgnoresNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, FailureThreshold: 1})
	require.NoError(t, err)

	for range 3 {
		_, err := c.ProductBySlug(context.Background(), "missing")
		require.ErrorIs(t, err, product.ErrNotFound)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestErrorMessage(t *testing.T) {
	assert.Empty(t, ErrorMessage(nil))
	assert.Equal(t, "boom", ErrorMessage(errors.New("boom")))
	assert.Equal(t, "Product Not Found",
		ErrorMessage(errors.Wrap(&StatusError{Code: 404, Message: "Product Not Found"}, "get product")))
	assert.Equal(t, "catalog: status 500", ErrorMessage(&StatusError{Code: 500}))
}
