package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/basmalabs/storefront/internal/domain/catalog"
	"github.com/basmalabs/storefront/internal/query"
)

type categoryInput struct {
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	Image          string `json:"image"`
	ShowOnHomePage bool   `json:"showOnHomePage"`
}

func (in categoryInput) toCategory(id string) *catalog.Category {
	slug := in.Slug
	if slug == "" {
		slug = strings.ToLower(strings.ReplaceAll(in.Name, " ", "-"))
	}
	return &catalog.Category{
		ID:             id,
		Name:           in.Name,
		Slug:           slug,
		Image:          in.Image,
		ShowOnHomePage: in.ShowOnHomePage,
	}
}

// ListCategories runs the query pipeline over categories; keyword search
// matches the name only.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	spec := query.ParseSpec(r.URL.Query())

	docs, pg, err := h.categories.List(r.Context(), spec)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondList(w, docs, pg)
}

// GetCategory returns one category.
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.categories.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "", c)
}

// CreateCategory adds a category.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryInput
	if err := decodeBody(r, &in); err != nil {
		respond(w, http.StatusBadRequest, envelope{Message: err.Error()})
		return
	}
	if in.Name == "" {
		respond(w, http.StatusBadRequest, envelope{Message: "name is required"})
		return
	}

	c := in.toCategory(uuid.New().String())
	if err := h.categories.Create(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, "Created successfully", c)
}

// UpdateCategory overwrites a category.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryInput
	if err := decodeBody(r, &in); err != nil {
		respond(w, http.StatusBadRequest, envelope{Message: err.Error()})
		return
	}

	c, err := h.categories.Update(r.Context(), in.toCategory(chi.URLParam(r, "id")))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "Updated successfully", c)
}

// DeleteCategory removes a category.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.categories.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
