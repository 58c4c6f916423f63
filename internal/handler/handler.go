// Package handler serves the product catalog API consumed by the storefront.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/catalog"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler serves product lookups from a product.Repository.
type Handler struct {
	products     product.Repository
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, products product.Repository) *Handler {
	return &Handler{
		products:     products,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes returns the API router. Mount it under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/products", h.ListProducts)
	r.Get("/products/product/{id}", h.GetProductByID)
	r.Get("/products/{slug}", h.GetProductBySlug)
	return r
}

// ListProducts returns every product in the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.writeError(w, r, errors.Wrap(err, "list products"))
		return
	}

	for i := range products {
		products[i] = h.withImageBase(products[i])
	}

	var e jx.Encoder
	catalog.EncodeProducts(&e, products)
	writeJSON(w, http.StatusOK, e.Bytes())
}

// GetProductBySlug returns the product behind a product page URL.
func (h *Handler) GetProductBySlug(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	h.writeProduct(w, r, p, err)
}

// GetProductByID returns a product by identifier. Clients use it for fresh
// stock reads.
func (h *Handler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	h.writeProduct(w, r, p, err)
}

func (h *Handler) writeProduct(w http.ResponseWriter, r *http.Request, p *product.Product, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var e jx.Encoder
	catalog.EncodeProduct(&e, h.withImageBase(*p))
	writeJSON(w, http.StatusOK, e.Bytes())
}

// withImageBase prefixes image paths with the configured imageBaseURL.
func (h *Handler) withImageBase(p product.Product) product.Product {
	if h.imageBaseURL == "" {
		return p
	}
	if p.Image != "" {
		p.Image = h.imageBaseURL + p.Image
	}
	images := make([]string, len(p.Images))
	for i, img := range p.Images {
		images[i] = h.imageBaseURL + img
	}
	p.Images = images
	return p
}

// writeError maps domain errors to API error responses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := http.StatusInternalServerError, "internal error"
	if errors.Is(err, product.ErrNotFound) {
		code, msg = http.StatusNotFound, "Product Not Found"
	} else {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}

	var e jx.Encoder
	catalog.EncodeError(&e, code, msg)
	writeJSON(w, code, e.Bytes())
}

func writeJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
