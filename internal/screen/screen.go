// Package screen is the product detail screen: it loads a product by slug and
// offers add-to-cart for it while it is in stock.
package screen

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/loader"
)

// ErrNothingToAdd is returned by AddToCart when no in-stock product is
// loaded, i.e. when the screen would not render an add-to-cart button.
var ErrNothingToAdd = errors.New("no in-stock product loaded")

// ProductScreen binds a product loader to the shared cart.
type ProductScreen struct {
	loader *loader.Loader
	adder  *cart.Adder
}

// New creates a screen that loads through l and adds through a.
func New(l *loader.Loader, a *cart.Adder) *ProductScreen {
	return &ProductScreen{loader: l, adder: a}
}

// Open navigates the screen to slug. It returns once the load has resolved or
// ctx is done, and reports the resulting state.
func (s *ProductScreen) Open(ctx context.Context, slug string) loader.FetchState {
	done := s.loader.Load(ctx, slug)
	select {
	case <-done:
	case <-ctx.Done():
	}
	return s.loader.State()
}

// State returns what the screen currently shows.
func (s *ProductScreen) State() loader.FetchState {
	return s.loader.State()
}

// CanAddToCart reports whether the add-to-cart action is offered.
func (s *ProductScreen) CanAddToCart() bool {
	st := s.loader.State()
	return st.Phase == loader.PhaseLoaded && st.Product.InStock()
}

// AddToCart adds one unit of the loaded product. Rejections are returned as an
// Outcome for the caller to show as an alert.
func (s *ProductScreen) AddToCart(ctx context.Context) (cart.Outcome, error) {
	st := s.loader.State()
	if st.Phase != loader.PhaseLoaded || !st.Product.InStock() {
		return cart.Outcome{}, ErrNothingToAdd
	}
	return s.adder.Add(ctx, *st.Product)
}
