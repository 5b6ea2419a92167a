//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/v1/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	env := decodeEnvelope(t, resp)
	if env.Results == nil || *env.Results != seededProducts {
		t.Fatalf("expected %d products, got %v", seededProducts, env.Results)
	}
	if env.PaginationResult == nil {
		t.Fatal("paginationResult missing")
	}
	if env.PaginationResult.CurrentPage != 1 {
		t.Errorf("currentPage: got %d, want 1", env.PaginationResult.CurrentPage)
	}
}

func TestListProducts_PriceFilter(t *testing.T) {
	// "price" filters on the effective (post-discount) price, so the
	// discounted hoodie (60 -> 45) is inside the window and the 12-EGP
	// beanie is not.
	resp := doGet(t, "/api/v1/products?price[gte]=20&price[lte]=45")
	defer resp.Body.Close()

	env := decodeEnvelope(t, resp)
	if env.Results == nil || *env.Results != 4 {
		t.Fatalf("expected 4 products in price window, got %v", env.Results)
	}
}

func TestListProducts_Keyword(t *testing.T) {
	resp := doGet(t, "/api/v1/products?keyword=hoodie")
	defer resp.Body.Close()

	env := decodeEnvelope(t, resp)
	if env.Results == nil || *env.Results != 1 {
		t.Fatalf("expected 1 match for keyword, got %v", env.Results)
	}
}

func TestListProducts_SortByPrice(t *testing.T) {
	resp := doGet(t, "/api/v1/products?sort=price")
	defer resp.Body.Close()

	env := decodeEnvelope(t, resp)
	docs := env.documents(t)
	if len(docs) != seededProducts {
		t.Fatalf("expected %d products, got %d", seededProducts, len(docs))
	}

	// Cheapest effective price first: the discounted beanie.
	if got := docs[0]["title"]; got != "Wool Beanie" {
		t.Errorf("first product: got %v, want Wool Beanie", got)
	}
	if got := docs[len(docs)-1]["title"]; got != "Zip Hoodie" {
		t.Errorf("last product: got %v, want Zip Hoodie", got)
	}
}

func TestListProducts_Projection(t *testing.T) {
	resp := doGet(t, "/api/v1/products?fields=title,price")
	defer resp.Body.Close()

	env := decodeEnvelope(t, resp)
	docs := env.documents(t)
	if len(docs) == 0 {
		t.Fatal("no documents returned")
	}

	for _, doc := range docs {
		if len(doc) != 2 {
			t.Fatalf("expected exactly title+price, got keys %v", doc)
		}
		if _, ok := doc["title"]; !ok {
			t.Error("title missing from projected document")
		}
		if _, ok := doc["price"]; !ok {
			t.Error("price missing from projected document")
		}
	}
}

func TestListProducts_Pagination(t *testing.T) {
	resp := doGet(t, "/api/v1/products?pageSize=2&page=2")
	defer resp.Body.Close()

	env := decodeEnvelope(t, resp)
	if env.Results == nil || *env.Results != 2 {
		t.Fatalf("expected 2 products on page, got %v", env.Results)
	}

	pg := env.PaginationResult
	if pg == nil {
		t.Fatal("paginationResult missing")
	}
	if pg.TotalPages != 3 {
		t.Errorf("totalPages: got %d, want 3", pg.TotalPages)
	}
	if pg.NextPage == nil || *pg.NextPage != 3 {
		t.Errorf("nextPage: got %v, want 3", pg.NextPage)
	}
	if pg.PrevPage == nil || *pg.PrevPage != 1 {
		t.Errorf("prevPage: got %v, want 1", pg.PrevPage)
	}
}

func TestListProducts_UnknownFilterIgnored(t *testing.T) {
	resp := doGet(t, "/api/v1/products?warehouse[gte]=3")
	defer resp.Body.Close()

	env := decodeEnvelope(t, resp)
	if env.Results == nil || *env.Results != seededProducts {
		t.Fatalf("unknown filter must be ignored, got %v results", env.Results)
	}
}

func TestProductLifecycle(t *testing.T) {
	// Find a category to attach to.
	resp := doGet(t, "/api/v1/categories")
	env := decodeEnvelope(t, resp)
	resp.Body.Close()

	cats := env.documents(t)
	if len(cats) == 0 {
		t.Fatal("no seeded categories")
	}
	categoryID, _ := cats[0]["id"].(string)

	// Create.
	resp = do(t, http.MethodPost, "/api/v1/products", testAPIKey, map[string]any{
		"title":      "Lifecycle Test Product",
		"price":      "99.99",
		"quantity":   5,
		"categoryId": categoryID,
	})
	created := decodeEnvelope(t, resp)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", resp.StatusCode, created.Message)
	}

	var product struct {
		ID string `json:"id"`
	}
	mustUnmarshal(t, created.Data, &product)
	if !uuidPattern.MatchString(product.ID) {
		t.Fatalf("created product id %q is not a UUID", product.ID)
	}

	// Get.
	resp = doGet(t, "/api/v1/products/"+product.ID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}

	// Delete.
	resp = do(t, http.MethodDelete, "/api/v1/products/"+product.ID, testAPIKey, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}

	// Gone.
	resp = doGet(t, "/api/v1/products/" + product.ID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", resp.StatusCode)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGet(t, "/api/v1/products/00000000-0000-0000-0000-000000000000")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	env := decodeEnvelope(t, resp)
	if env.Status != http.StatusNotFound {
		t.Errorf("envelope status: got %d, want 404", env.Status)
	}
}
