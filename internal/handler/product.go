package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/basmalabs/storefront/internal/domain/catalog"
	"github.com/basmalabs/storefront/internal/query"
)

// productInput is the write shape for products.
type productInput struct {
	Title         string           `json:"title"`
	Slug          string           `json:"slug"`
	Description   string           `json:"description"`
	Quantity      int              `json:"quantity"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice"`
	Colors        []string         `json:"colors"`
	ImageCover    string           `json:"imageCover"`
	Images        []string         `json:"images"`
	CategoryID    string           `json:"categoryId"`
	Brand         string           `json:"brand"`
}

func (in productInput) toProduct(id string) *catalog.Product {
	slug := in.Slug
	if slug == "" {
		slug = strings.ToLower(strings.ReplaceAll(in.Title, " ", "-"))
	}
	return &catalog.Product{
		ID:            id,
		Title:         in.Title,
		Slug:          slug,
		Description:   in.Description,
		Quantity:      in.Quantity,
		Price:         in.Price,
		DiscountPrice: in.DiscountPrice,
		Colors:        in.Colors,
		ImageCover:    in.ImageCover,
		Images:        in.Images,
		CategoryID:    in.CategoryID,
		Brand:         in.Brand,
	}
}

// ListProducts runs the query pipeline over the whole catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	spec := query.ParseSpec(r.URL.Query())

	docs, pg, err := h.products.List(r.Context(), spec)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondList(w, docs, pg)
}

// ListCategoryProducts runs the same pipeline scoped to one category. The
// scope is imposed server-side and cannot be widened by client filters.
func (h *Handler) ListCategoryProducts(w http.ResponseWriter, r *http.Request) {
	spec := query.ParseSpec(r.URL.Query())
	scope := query.Scope{Column: "category_id", Value: chi.URLParam(r, "categoryId")}

	docs, pg, err := h.products.List(r.Context(), spec, scope)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondList(w, docs, pg)
}

// GetProduct returns one product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.rewriteImageURLs(p)
	respondData(w, http.StatusOK, "", p)
}

// CreateProduct adds a catalog entry.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if err := decodeBody(r, &in); err != nil {
		respond(w, http.StatusBadRequest, envelope{Message: err.Error()})
		return
	}
	if in.Title == "" || in.CategoryID == "" {
		respond(w, http.StatusBadRequest, envelope{Message: "title and categoryId are required"})
		return
	}

	p := in.toProduct(uuid.New().String())
	if err := h.products.Create(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, "Created successfully", p)
}

// UpdateProduct overwrites a catalog entry.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if err := decodeBody(r, &in); err != nil {
		respond(w, http.StatusBadRequest, envelope{Message: err.Error()})
		return
	}

	p, err := h.products.Update(r.Context(), in.toProduct(chi.URLParam(r, "id")))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "Updated successfully", p)
}

// DeleteProduct removes a catalog entry.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// rewriteImageURLs prefixes relative image paths with the configured base
// URL; absolute URLs pass through untouched.
func (h *Handler) rewriteImageURLs(p *catalog.Product) {
	if h.cfg.ImageBaseURL == "" {
		return
	}
	prefix := func(path string) string {
		if path == "" || strings.HasPrefix(path, "http") {
			return path
		}
		return strings.TrimSuffix(h.cfg.ImageBaseURL, "/") + "/" + path
	}
	p.ImageCover = prefix(p.ImageCover)
	for i, img := range p.Images {
		p.Images[i] = prefix(img)
	}
}
