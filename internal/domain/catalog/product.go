// Package catalog holds the product and category aggregates and their
// repository contracts.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/basmalabs/storefront/internal/query"
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("no product for id %s", e.ProductID)
}

// Product is a catalog entry. EffectivePrice is maintained by the store as
// the discounted price when present, the list price otherwise; filtering and
// sorting on "price" target it.
type Product struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Slug            string           `json:"slug"`
	Description     string           `json:"description"`
	Quantity        int              `json:"quantity"`
	Sold            int              `json:"sold"`
	Price           decimal.Decimal  `json:"price"`
	DiscountPrice   *decimal.Decimal `json:"discountPrice,omitempty"`
	EffectivePrice  decimal.Decimal  `json:"effectivePrice"`
	Colors          []string         `json:"colors,omitempty"`
	ImageCover      string           `json:"imageCover"`
	Images          []string         `json:"images,omitempty"`
	CategoryID      string           `json:"categoryId"`
	Brand           string           `json:"brand,omitempty"`
	RatingsAverage  *decimal.Decimal `json:"ratingsAverage,omitempty"`
	RatingsQuantity int              `json:"ratingsQuantity"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// ProductRepository defines persistence operations for products. List runs
// the two-pass query pipeline and returns projected documents rather than
// typed products.
type ProductRepository interface {
	List(ctx context.Context, spec query.Spec, scopes ...query.Scope) ([]map[string]any, query.Pagination, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) (*Product, error)
	Delete(ctx context.Context, id string) error
}

// Products describes the products table for the list-query pipeline:
// which fields clients may filter/sort/project, and that "price" is
// redirected to the effective (post-discount) price everywhere.
var Products = &query.Collection{
	Table: "products",
	Fields: []query.Field{
		{Name: "id", Column: "id"},
		{Name: "title", Column: "title"},
		{Name: "slug", Column: "slug"},
		{Name: "description", Column: "description"},
		{Name: "quantity", Column: "quantity", Kind: query.Numeric},
		{Name: "sold", Column: "sold", Kind: query.Numeric},
		{Name: "price", Column: "price", Kind: query.Numeric},
		{Name: "discountPrice", Column: "discount_price", Kind: query.Numeric},
		{Name: "effectivePrice", Column: "effective_price", Kind: query.Numeric},
		{Name: "imageCover", Column: "image_cover"},
		{Name: "categoryId", Column: "category_id"},
		{Name: "brand", Column: "brand"},
		{Name: "ratingsAverage", Column: "ratings_average", Kind: query.Numeric},
		{Name: "ratingsQuantity", Column: "ratings_quantity", Kind: query.Numeric},
		{Name: "createdAt", Column: "created_at", Kind: query.Time},
		{Name: "updatedAt", Column: "updated_at", Kind: query.Time, Internal: true},
	},
	Aliases:       map[string]string{"price": "effectivePrice"},
	KeywordFields: []string{"title", "description"},
	DefaultSort:   []query.SortKey{{Field: "createdAt", Desc: true}},
}
