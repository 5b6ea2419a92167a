package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basmalabs/storefront/internal/domain/catalog"
	"github.com/basmalabs/storefront/internal/query"
)

const (
	categoryColumns = `id, name, slug, image, show_on_home, created_at, updated_at`

	getCategoryByIDSQL = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	createCategorySQL = `INSERT INTO categories (id, name, slug, image, show_on_home)
		VALUES ($1, $2, $3, $4, $5)`

	updateCategorySQL = `UPDATE categories SET name = $2, slug = $3, image = $4,
			show_on_home = $5, updated_at = now()
		WHERE id = $1
		RETURNING ` + categoryColumns

	deleteCategorySQL = `DELETE FROM categories WHERE id = $1`
)

var _ catalog.CategoryRepository = (*CategoryRepository)(nil)

// CategoryRepository implements catalog.CategoryRepository backed by
// PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// List runs the query pipeline against the categories collection.
func (r *CategoryRepository) List(ctx context.Context, spec query.Spec, scopes ...query.Scope) ([]map[string]any, query.Pagination, error) {
	return runList(ctx, r.pool, catalog.Categories.Build(spec, scopes...))
}

// GetByID returns a single category by its identifier.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*catalog.Category, error) {
	rows, err := r.pool.Query(ctx, getCategoryByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting category %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &catalog.CategoryNotFoundError{CategoryID: id}
		}
		return nil, fmt.Errorf("getting category %q: %w", id, err)
	}
	return &c, nil
}

// Create persists a new category.
func (r *CategoryRepository) Create(ctx context.Context, c *catalog.Category) error {
	_, err := r.pool.Exec(ctx, createCategorySQL,
		c.ID, c.Name, c.Slug, c.Image, c.ShowOnHomePage,
	)
	if err != nil {
		return fmt.Errorf("creating category %q: %w", c.ID, err)
	}
	return nil
}

// Update overwrites the mutable columns of a category and returns the stored
// row.
func (r *CategoryRepository) Update(ctx context.Context, c *catalog.Category) (*catalog.Category, error) {
	rows, err := r.pool.Query(ctx, updateCategorySQL,
		c.ID, c.Name, c.Slug, c.Image, c.ShowOnHomePage,
	)
	if err != nil {
		return nil, fmt.Errorf("updating category %q: %w", c.ID, err)
	}

	updated, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &catalog.CategoryNotFoundError{CategoryID: c.ID}
		}
		return nil, fmt.Errorf("updating category %q: %w", c.ID, err)
	}
	return &updated, nil
}

// Delete removes a category by id.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCategorySQL, id)
	if err != nil {
		return fmt.Errorf("deleting category %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &catalog.CategoryNotFoundError{CategoryID: id}
	}
	return nil
}

func scanCategory(row pgx.CollectableRow) (catalog.Category, error) {
	var c catalog.Category
	err := row.Scan(
		&c.ID, &c.Name, &c.Slug, &c.Image, &c.ShowOnHomePage,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}
