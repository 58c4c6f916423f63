// Package loader fetches the product shown on a product screen and publishes
// the fetch lifecycle as a FetchState.
//
// Every Load starts a new request and supersedes all earlier ones. Superseded
// requests are not cancelled: they run to completion and their results are
// dropped, so the visible state always belongs to the most recently started
// request.
package loader

import (
	"context"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// Phase enumerates the FetchState variants.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchState is the load progress for one slug. Product is set only in
// PhaseLoaded and Err only in PhaseFailed.
type FetchState struct {
	Phase   Phase
	Slug    string
	Product *product.Product
	Err     string
}

// Terminal reports whether the request behind s has resolved.
func (s FetchState) Terminal() bool {
	return s.Phase == PhaseLoaded || s.Phase == PhaseFailed
}

// Fetcher reads a product by slug.
type Fetcher interface {
	ProductBySlug(ctx context.Context, slug string) (*product.Product, error)
}

// Loader owns a FetchState and the requests that drive it.
type Loader struct {
	fetch  Fetcher
	errMsg func(error) string

	mu          sync.Mutex
	generation  uint64
	state       FetchState
	subscribers []func(FetchState)
}

// New creates an idle Loader. errMsg turns fetch failures into the display
// message of a failed state; nil means err.Error().
func New(fetch Fetcher, errMsg func(error) string) *Loader {
	if errMsg == nil {
		errMsg = func(err error) string { return err.Error() }
	}
	return &Loader{fetch: fetch, errMsg: errMsg}
}

// State returns the current state.
func (l *Loader) State() FetchState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.copy()
}

// Subscribe registers fn to receive every state the loader publishes. fn is
// called with the loader locked and must not call back into the Loader.
func (l *Loader) Subscribe(fn func(FetchState)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

// Load switches the loader to slug. The state becomes Loading before Load
// returns; the fetch runs in the background. The returned channel is closed
// once the fetch has resolved and its result was either applied or, if a newer
// Load happened meanwhile, discarded.
func (l *Loader) Load(ctx context.Context, slug string) <-chan struct{} {
	done := make(chan struct{})
	lg := zctx.From(ctx).With(zap.String("slug", slug))

	l.mu.Lock()
	l.generation++
	gen := l.generation
	if slug == "" {
		l.publish(FetchState{Phase: PhaseFailed, Err: "slug is required"})
		l.mu.Unlock()
		close(done)
		return done
	}
	l.publish(FetchState{Phase: PhaseLoading, Slug: slug})
	l.mu.Unlock()

	lg.Debug("Loading product")
	go func() {
		defer close(done)

		p, err := l.fetch.ProductBySlug(ctx, slug)

		l.mu.Lock()
		defer l.mu.Unlock()

		if gen != l.generation {
			lg.Debug("Discarding stale product response")
			return
		}
		switch {
		case err != nil:
			lg.Warn("Product load failed", zap.Error(err))
			l.publish(FetchState{Phase: PhaseFailed, Slug: slug, Err: l.errMsg(err)})
		case p == nil:
			l.publish(FetchState{Phase: PhaseFailed, Slug: slug, Err: "empty product response"})
		default:
			loaded := *p
			l.publish(FetchState{Phase: PhaseLoaded, Slug: slug, Product: &loaded})
		}
	}()

	return done
}

// publish must be called with l.mu held.
func (l *Loader) publish(s FetchState) {
	l.state = s
	for _, fn := range l.subscribers {
		fn(s.copy())
	}
}

func (s FetchState) copy() FetchState {
	if s.Product != nil {
		p := *s.Product
		p.Images = append([]string(nil), p.Images...)
		s.Product = &p
	}
	return s
}
