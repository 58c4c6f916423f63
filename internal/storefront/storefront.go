// Package storefront runs the product screen from the command line: it opens
// one product, presses add-to-cart as asked and prints the screen and cart.
package storefront

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/catalog"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/loader"
	"github.com/xenking/kart-storefront/internal/screen"
	redisstore "github.com/xenking/kart-storefront/internal/storage/redis"
)

// Run opens cfg.Slug, adds it to the cart cfg.Add times and writes the result
// to out.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config, out io.Writer) error {
	client, err := catalog.NewClient(catalog.Config{
		BaseURL:        cfg.CatalogURL,
		Timeout:        cfg.Timeout,
		Logger:         lg,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create catalog client")
	}

	store, closeStore, err := openCart(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	adder, err := cart.NewAdder(client, store, cart.AdderConfig{
		ErrorMessage:   catalog.ErrorMessage,
		MeterProvider:  m.MeterProvider(),
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create adder")
	}

	s := screen.New(loader.New(client, catalog.ErrorMessage), adder)
	return Drive(ctx, s, store, cfg.Slug, cfg.Add, out)
}

// Drive navigates s to slug, presses add-to-cart up to adds times and renders
// the screen and cart to out. It stops pressing once the action is no longer
// offered.
func Drive(ctx context.Context, s *screen.ProductScreen, store *cart.Store, slug string, adds int, out io.Writer) error {
	st := s.Open(ctx, slug)
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "open product")
	}
	RenderProduct(out, st)

	for range adds {
		if !s.CanAddToCart() {
			break
		}
		o, err := s.AddToCart(ctx)
		if err != nil {
			return errors.Wrap(err, "add to cart")
		}
		if !o.Accepted() {
			_, _ = fmt.Fprintf(out, "! %s\n", o.Message)
			continue
		}
		_, _ = fmt.Fprintf(out, "+ %s x%d\n", o.Line.Name, o.Line.Quantity)
	}

	RenderCart(out, store.Snapshot())
	return nil
}

func openCart(ctx context.Context, cfg *Config) (*cart.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return cart.NewStore(cart.State{}), func() {}, nil
	}
	if cfg.Session == "" {
		cfg.Session = uuid.NewString()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	store, err := cart.NewSessionStore(ctx, redisstore.NewCartRepository(client, 0), cfg.Session)
	if err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrapf(err, "open cart session %s", cfg.Session)
	}
	return store, func() { _ = client.Close() }, nil
}

// RenderProduct writes the screen as text: a loading line, an error alert, or
// the product details.
func RenderProduct(w io.Writer, st loader.FetchState) {
	switch st.Phase {
	case loader.PhaseIdle, loader.PhaseLoading:
		_, _ = fmt.Fprintln(w, "Loading...")
	case loader.PhaseFailed:
		_, _ = fmt.Fprintf(w, "! %s\n", st.Err)
	case loader.PhaseLoaded:
		p := st.Product
		_, _ = fmt.Fprintf(w, "%s\n", p.Name)
		if p.Category != "" {
			_, _ = fmt.Fprintf(w, "Category: %s\n", p.Category)
		}
		_, _ = fmt.Fprintf(w, "Rating: %.1f (%d reviews)\n", p.Rating, p.NumReviews)
		_, _ = fmt.Fprintf(w, "Price: $%s\n", p.Price.StringFixed(2))
		status := "Unavailable"
		if p.InStock() {
			status = "In Stock"
		}
		_, _ = fmt.Fprintf(w, "Status: %s\n", status)
		if p.Description != "" {
			_, _ = fmt.Fprintf(w, "Description: %s\n", p.Description)
		}
		if g := p.Gallery(); len(g) > 0 {
			_, _ = fmt.Fprintf(w, "Images: %s\n", strings.Join(g, ", "))
		}
	}
}

// RenderCart writes one row per line and the totals.
func RenderCart(w io.Writer, s cart.State) {
	if len(s.Lines) == 0 {
		_, _ = fmt.Fprintln(w, "Cart is empty")
		return
	}
	_, _ = fmt.Fprintf(w, "Cart (%d items):\n", s.Count())
	for _, l := range s.Lines {
		_, _ = fmt.Fprintf(w, "  %s x%d @ $%s = $%s\n",
			l.Name, l.Quantity, l.Price.StringFixed(2), l.Subtotal().StringFixed(2))
	}
	_, _ = fmt.Fprintf(w, "Total: $%s\n", s.Total().StringFixed(2))
}
