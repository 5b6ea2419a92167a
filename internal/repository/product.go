package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basmalabs/storefront/internal/domain/catalog"
	"github.com/basmalabs/storefront/internal/domain/inventory"
	"github.com/basmalabs/storefront/internal/query"
)

const (
	productColumns = `id, title, slug, description, quantity, sold, price, discount_price,
		effective_price, colors, image_cover, images, category_id, brand,
		ratings_average, ratings_quantity, created_at, updated_at`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	createProductSQL = `INSERT INTO products (id, title, slug, description, quantity, sold,
			price, discount_price, colors, image_cover, images, category_id, brand,
			ratings_average, ratings_quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	updateProductSQL = `UPDATE products SET title = $2, slug = $3, description = $4,
			quantity = $5, price = $6, discount_price = $7, colors = $8,
			image_cover = $9, images = $10, category_id = $11, brand = $12,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + productColumns

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	applyStockChangeSQL = `UPDATE products
		SET quantity = quantity - $2, sold = sold + $2, updated_at = now()
		WHERE id = $1`
)

var (
	_ catalog.ProductRepository = (*ProductRepository)(nil)
	_ inventory.Ledger          = (*ProductRepository)(nil)
)

// ProductRepository implements catalog.ProductRepository and the inventory
// ledger, backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List runs the query pipeline against the products collection.
func (r *ProductRepository) List(ctx context.Context, spec query.Spec, scopes ...query.Scope) ([]map[string]any, query.Pagination, error) {
	return runList(ctx, r.pool, catalog.Products.Build(spec, scopes...))
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &catalog.ProductNotFoundError{ProductID: id}
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// Create persists a new product.
func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	_, err := r.pool.Exec(ctx, createProductSQL,
		p.ID, p.Title, p.Slug, p.Description, p.Quantity, p.Sold,
		p.Price, p.DiscountPrice, p.Colors, p.ImageCover, p.Images,
		p.CategoryID, p.Brand, p.RatingsAverage, p.RatingsQuantity,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Update overwrites the mutable columns of a product and returns the stored
// row.
func (r *ProductRepository) Update(ctx context.Context, p *catalog.Product) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, updateProductSQL,
		p.ID, p.Title, p.Slug, p.Description, p.Quantity,
		p.Price, p.DiscountPrice, p.Colors, p.ImageCover, p.Images,
		p.CategoryID, p.Brand,
	)
	if err != nil {
		return nil, fmt.Errorf("updating product %q: %w", p.ID, err)
	}

	updated, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &catalog.ProductNotFoundError{ProductID: p.ID}
		}
		return nil, fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	return &updated, nil
}

// Delete removes a product by id.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &catalog.ProductNotFoundError{ProductID: id}
	}
	return nil
}

// ApplyOrderStockChanges applies an order's stock adjustments as one batch in
// one transaction: a single round-trip whose statements either all apply or
// none do. The first failing item aborts the batch and is reported.
func (r *ProductRepository) ApplyOrderStockChanges(ctx context.Context, changes []inventory.StockChange) error {
	batch := &pgx.Batch{}
	for _, c := range changes {
		batch.Queue(applyStockChangeSQL, c.ProductID, c.Quantity)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin stock batch: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for _, c := range changes {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return &inventory.BatchError{ProductID: c.ProductID, Err: err}
		}
		if tag.RowsAffected() == 0 {
			br.Close()
			return &inventory.BatchError{
				ProductID: c.ProductID,
				Err:       errors.New("no such product"),
			}
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close stock batch: %w", err)
	}

	return tx.Commit(ctx)
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Description, &p.Quantity, &p.Sold,
		&p.Price, &p.DiscountPrice, &p.EffectivePrice, &p.Colors,
		&p.ImageCover, &p.Images, &p.CategoryID, &p.Brand,
		&p.RatingsAverage, &p.RatingsQuantity, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
