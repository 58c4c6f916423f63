package product

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const slugFilterFPR = 0.001

var _ Repository = (*Index)(nil)

// Index is a read-through front for a Repository used by the catalog API.
//
// Concurrent identical lookups are collapsed into one repository call that
// runs detached from the cancellation of whichever caller started it, and a
// bloom filter of known slugs answers lookups for unknown slugs without
// touching the repository. The filter is rebuilt by Rebuild (or periodically by
// Run); a product inserted after the last rebuild is reported as not found
// until the next one.
type Index struct {
	repo  Repository
	slugs atomic.Pointer[bloom.BloomFilter]
	built atomic.Int64
	group singleflight.Group
}

// NewIndex wraps repo. The slug filter is empty until the first Rebuild, and
// until then every lookup goes to the repository.
func NewIndex(repo Repository) *Index {
	return &Index{repo: repo}
}

// Rebuild reloads the slug filter from the full product list.
func (i *Index) Rebuild(ctx context.Context) error {
	products, err := i.repo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list products")
	}

	capacity := uint(2*len(products) + 64)
	f := bloom.NewWithEstimates(capacity, slugFilterFPR)
	for _, p := range products {
		f.AddString(p.Slug)
	}
	i.slugs.Store(f)
	i.built.Store(time.Now().UnixNano())

	zctx.From(ctx).Debug("Slug filter rebuilt", zap.Int("products", len(products)))
	return nil
}

// Run rebuilds the slug filter every interval until ctx is cancelled. Rebuild
// failures are logged and keep the previous filter.
func (i *Index) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := i.Rebuild(ctx); err != nil {
				zctx.From(ctx).Warn("Slug filter rebuild failed", zap.Error(err))
			}
		}
	}
}

// RebuiltAt returns the time of the last successful Rebuild, or zero.
func (i *Index) RebuiltAt() time.Time {
	n := i.built.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// MayContain reports whether slug may exist in the catalog. It always returns
// true before the first Rebuild.
func (i *Index) MayContain(slug string) bool {
	f := i.slugs.Load()
	return f == nil || f.TestString(slug)
}

// List returns all products.
func (i *Index) List(ctx context.Context) ([]Product, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := i.group.Do("list", func() (any, error) {
		return i.repo.List(shared)
	})
	if err != nil {
		return nil, err
	}
	products := v.([]Product)
	out := make([]Product, len(products))
	copy(out, products)
	return out, nil
}

// GetByID returns a single product by its identifier.
func (i *Index) GetByID(ctx context.Context, id string) (*Product, error) {
	shared := context.WithoutCancel(ctx)
	return i.lookup("id:"+id, func() (*Product, error) {
		return i.repo.GetByID(shared, id)
	})
}

// GetBySlug returns a single product by its slug.
func (i *Index) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	if !i.MayContain(slug) {
		return nil, ErrNotFound
	}
	shared := context.WithoutCancel(ctx)
	return i.lookup("slug:"+slug, func() (*Product, error) {
		return i.repo.GetBySlug(shared, slug)
	})
}

func (i *Index) lookup(key string, fn func() (*Product, error)) (*Product, error) {
	v, err, _ := i.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	// Callers sharing a flight must not share the pointer.
	p := *v.(*Product)
	p.Images = append([]string(nil), p.Images...)
	return &p, nil
}
