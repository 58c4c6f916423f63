package product

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockRepo struct {
	products []Product
	listErr  error
	calls    atomic.Int32
	// gate, when set, blocks GetBySlug until closed.
	gate chan struct{}
}

func (m *mockRepo) List(_ context.Context) ([]Product, error) {
	return m.products, m.listErr
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Product, error) {
	m.calls.Add(1)
	for i := range m.products {
		if m.products[i].ID == id {
			p := m.products[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	m.calls.Add(1)
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	for i := range m.products {
		if m.products[i].Slug == slug {
			p := m.products[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func testCatalog() []Product {
	return []Product{
		{ID: "p1", Slug: "nike-slim-shirt", Name: "Nike Slim Shirt", Price: decimal.NewFromInt(120), CountInStock: 10, Images: []string{"/images/p1-a.jpg"}},
		{ID: "p2", Slug: "adidas-fit-pant", Name: "Adidas Fit Pant", Price: decimal.NewFromInt(65), CountInStock: 0},
	}
}

// --- Tests ---

func TestIndex_PassThroughBeforeRebuild(t *testing.T) {
	repo := &mockRepo{products: testCatalog()}
	idx := NewIndex(repo)

	assert.True(t, idx.MayContain("anything"))

	p, err := idx.GetBySlug(context.Background(), "nike-slim-shirt")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, int32(1), repo.calls.Load())
}

func TestIndex_UnknownSlugShortCircuits(t *testing.T) {
	repo := &mockRepo{products: testCatalog()}
	idx := NewIndex(repo)
	assert.True(t, idx.RebuiltAt().IsZero())
	require.NoError(t, idx.Rebuild(context.Background()))
	assert.False(t, idx.RebuiltAt().IsZero())

	_, err := idx.GetBySlug(context.Background(), "definitely-not-a-product")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(0), repo.calls.Load())

	p, err := idx.GetBySlug(context.Background(), "adidas-fit-pant")
	require.NoError(t, err)
	assert.Equal(t, "p2", p.ID)
}

func TestIndex_RebuildError(t *testing.T) {
	repo := &mockRepo{listErr: errors.New("connection reset")}
	idx := NewIndex(repo)

	err := idx.Rebuild(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list products")
	assert.True(t, idx.MayContain("nike-slim-shirt"))
	assert.True(t, idx.RebuiltAt().IsZero())
}

func TestIndex_GetByID(t *testing.T) {
	idx := NewIndex(&mockRepo{products: testCatalog()})

	p, err := idx.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "nike-slim-shirt", p.Slug)

	_, err = idx.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIndex_ConcurrentLookupsCollapse(t *testing.T) {
	repo := &mockRepo{products: testCatalog(), gate: make(chan struct{})}
	idx := NewIndex(repo)

	const callers = 8
	var (
		wg      sync.WaitGroup
		results = make([]*Product, callers)
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := idx.GetBySlug(context.Background(), "nike-slim-shirt")
			assert.NoError(t, err)
			results[i] = p
		}()
	}

	// Let the callers pile up on the in-flight lookup.
	time.Sleep(50 * time.Millisecond)
	close(repo.gate)
	wg.Wait()

	assert.LessOrEqual(t, repo.calls.Load(), int32(callers))
	for _, p := range results {
		require.NotNil(t, p)
		assert.Equal(t, "p1", p.ID)
	}
	// Each caller owns its copy.
	results[0].Images[0] = "mutated"
	assert.Equal(t, "/images/p1-a.jpg", results[1].Images[0])
}

func TestIndex_CancelledCallerDoesNotFailOthers(t *testing.T) {
	repo := &mockRepo{products: testCatalog(), gate: make(chan struct{})}
	idx := NewIndex(repo)

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		wg            sync.WaitGroup
		first, second *Product
		firstErr      error
		secondErr     error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = idx.GetBySlug(firstCtx, "nike-slim-shirt")
	}()
	require.Eventually(t, func() bool { return repo.calls.Load() == 1 }, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		second, secondErr = idx.GetBySlug(context.Background(), "nike-slim-shirt")
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(repo.gate)
	wg.Wait()

	require.NoError(t, secondErr)
	assert.Equal(t, "p1", second.ID)
	require.NoError(t, firstErr)
	assert.Equal(t, "p1", first.ID)
}

func TestProduct_Gallery(t *testing.T) {
	p := Product{Image: "/images/main.jpg", Images: []string{"/images/a.jpg", "/images/b.jpg"}}
	assert.Equal(t, []string{"/images/main.jpg", "/images/a.jpg", "/images/b.jpg"}, p.Gallery())
	assert.Empty(t, Product{}.Gallery())
}

func TestProduct_InStock(t *testing.T) {
	assert.False(t, Product{CountInStock: 0}.InStock())
	assert.True(t, Product{CountInStock: 1}.InStock())
}
