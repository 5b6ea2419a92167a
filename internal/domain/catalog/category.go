package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/basmalabs/storefront/internal/query"
)

// CategoryNotFoundError indicates a requested category does not exist.
type CategoryNotFoundError struct {
	CategoryID string
}

func (e *CategoryNotFoundError) Error() string {
	return fmt.Sprintf("no category for id %s", e.CategoryID)
}

// Category groups products for navigation.
type Category struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Image          string    `json:"image,omitempty"`
	ShowOnHomePage bool      `json:"showOnHomePage"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context, spec query.Spec, scopes ...query.Scope) ([]map[string]any, query.Pagination, error)
	GetByID(ctx context.Context, id string) (*Category, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) (*Category, error)
	Delete(ctx context.Context, id string) error
}

// Categories describes the categories table for the list-query pipeline.
// Keyword search matches the name only.
var Categories = &query.Collection{
	Table: "categories",
	Fields: []query.Field{
		{Name: "id", Column: "id"},
		{Name: "name", Column: "name"},
		{Name: "slug", Column: "slug"},
		{Name: "image", Column: "image"},
		{Name: "showOnHomePage", Column: "show_on_home", Kind: query.Bool},
		{Name: "createdAt", Column: "created_at", Kind: query.Time},
		{Name: "updatedAt", Column: "updated_at", Kind: query.Time, Internal: true},
	},
	KeywordFields: []string{"name"},
	DefaultSort:   []query.SortKey{{Field: "createdAt", Desc: true}},
}
