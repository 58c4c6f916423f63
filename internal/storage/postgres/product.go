package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

const productColumns = `id, slug, name, category, price, count_in_stock,
	image, images, rating, num_reviews, description`

const (
	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY created_at, id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductBySlugSQL = `SELECT ` + productColumns + ` FROM products WHERE slug = $1`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			slug = EXCLUDED.slug,
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			count_in_stock = EXCLUDED.count_in_stock,
			image = EXCLUDED.image,
			images = EXCLUDED.images,
			rating = EXCLUDED.rating,
			num_reviews = EXCLUDED.num_reviews,
			description = EXCLUDED.description,
			updated_at = now()`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products in insertion order.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	return r.getOne(ctx, getProductByIDSQL, id)
}

// GetBySlug returns a single product by its slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*product.Product, error) {
	return r.getOne(ctx, getProductBySlugSQL, slug)
}

func (r *ProductRepository) getOne(ctx context.Context, query, arg string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", arg, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", arg, err)
	}
	return &p, nil
}

// Upsert inserts p or replaces the stored product with the same ID.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Slug, p.Name, p.Category, p.Price, p.CountInStock,
		p.Image, images, p.Rating, p.NumReviews, p.Description,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Slug, &p.Name, &p.Category, &p.Price, &p.CountInStock,
		&p.Image, &p.Images, &p.Rating, &p.NumReviews, &p.Description,
	)
	return p, err
}
